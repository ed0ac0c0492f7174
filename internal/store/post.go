package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/myopinion/apiserver/types"
)

// PostRepository handles persistence for posts.
type PostRepository struct {
	db *sql.DB
}

func NewPostRepository(db *sql.DB) *PostRepository {
	return &PostRepository{db: db}
}

func (r *PostRepository) List(ctx context.Context, categoryID int) ([]types.Post, error) {
	const query = `
		SELECT p.id, p.title, p.content, p.user_id, p.category_id,
			u.username, c.name,
			(SELECT COUNT(1) FROM comments cm WHERE cm.post_id = p.id),
			p.created_at, p.updated_at
		FROM posts p
		JOIN users u ON u.id = p.user_id
		JOIN categories c ON c.id = p.category_id
		WHERE ($1 = 0 OR p.category_id = $1)
		ORDER BY p.created_at DESC`
	rows, err := r.db.QueryContext(ctx, query, categoryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var posts []types.Post
	for rows.Next() {
		var post types.Post
		if err := rows.Scan(
			&post.ID,
			&post.Title,
			&post.Content,
			&post.UserID,
			&post.CategoryID,
			&post.AuthorName,
			&post.CategoryName,
			&post.CommentsCount,
			&post.CreatedAt,
			&post.UpdatedAt,
		); err != nil {
			return nil, err
		}
		posts = append(posts, post)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return posts, nil
}

func (r *PostRepository) Get(ctx context.Context, id int) (types.Post, error) {
	const query = `
		SELECT p.id, p.title, p.content, p.user_id, p.category_id,
			u.username, c.name,
			(SELECT COUNT(1) FROM comments cm WHERE cm.post_id = p.id),
			p.created_at, p.updated_at
		FROM posts p
		JOIN users u ON u.id = p.user_id
		JOIN categories c ON c.id = p.category_id
		WHERE p.id = $1`
	var post types.Post
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&post.ID,
		&post.Title,
		&post.Content,
		&post.UserID,
		&post.CategoryID,
		&post.AuthorName,
		&post.CategoryName,
		&post.CommentsCount,
		&post.CreatedAt,
		&post.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Post{}, ErrNotFound
		}
		return types.Post{}, err
	}

	const commentsQuery = `
		SELECT cm.id, cm.content, cm.post_id, cm.user_id, u.username, cm.created_at
		FROM comments cm
		JOIN users u ON u.id = cm.user_id
		WHERE cm.post_id = $1
		ORDER BY cm.created_at DESC`
	rows, err := r.db.QueryContext(ctx, commentsQuery, id)
	if err != nil {
		return types.Post{}, err
	}
	defer rows.Close()

	for rows.Next() {
		var comment types.Comment
		if err := rows.Scan(
			&comment.ID,
			&comment.Content,
			&comment.PostID,
			&comment.UserID,
			&comment.AuthorName,
			&comment.CreatedAt,
		); err != nil {
			return types.Post{}, err
		}
		post.Comments = append(post.Comments, comment)
	}
	if err := rows.Err(); err != nil {
		return types.Post{}, err
	}
	return post, nil
}

func (r *PostRepository) Create(ctx context.Context, post types.Post) (types.Post, error) {
	now := time.Now()
	post.CreatedAt = now
	post.UpdatedAt = now

	const query = `
		INSERT INTO posts (title, content, user_id, category_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		post.Title,
		post.Content,
		post.UserID,
		post.CategoryID,
		post.CreatedAt,
		post.UpdatedAt,
	).Scan(&post.ID); err != nil {
		return types.Post{}, err
	}
	return post, nil
}

func (r *PostRepository) Delete(ctx context.Context, id int) error {
	const query = `DELETE FROM posts WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
