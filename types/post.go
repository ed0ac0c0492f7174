package types

import "time"

// Post represents a forum post under a category.
type Post struct {
	ID      int    `json:"id" db:"id"`
	Title   string `json:"title" db:"title"`
	Content string `json:"content" db:"content"`

	UserID     int `json:"user_id" db:"user_id"`
	CategoryID int `json:"category_id" db:"category_id"`

	// AuthorName and CategoryName are joined in from the users and
	// categories tables for read responses.
	AuthorName   string `json:"author_name" db:"author_name"`
	CategoryName string `json:"category_name" db:"category_name"`

	CommentsCount int       `json:"comments_count" db:"comments_count"`
	Comments      []Comment `json:"comments,omitempty"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Comment represents a comment on a post.
type Comment struct {
	ID      int    `json:"id" db:"id"`
	Content string `json:"content" db:"content"`

	PostID int `json:"post_id" db:"post_id"`
	UserID int `json:"user_id" db:"user_id"`

	AuthorName string `json:"author_name" db:"author_name"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
