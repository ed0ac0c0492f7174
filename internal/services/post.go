package services

import (
	"context"
	"errors"

	"github.com/myopinion/apiserver/internal/store"
	"github.com/myopinion/apiserver/types"
)

// PostRepository defines persistence operations for posts.
type PostRepository interface {
	List(ctx context.Context, categoryID int) ([]types.Post, error)
	Get(ctx context.Context, id int) (types.Post, error)
	Create(ctx context.Context, post types.Post) (types.Post, error)
	Delete(ctx context.Context, id int) error
}

// CommentRepository defines persistence operations for comments.
type CommentRepository interface {
	Create(ctx context.Context, comment types.Comment) (types.Comment, error)
}

// CategoryRepository defines persistence operations for categories.
type CategoryRepository interface {
	List(ctx context.Context) ([]types.Category, error)
	GetByID(ctx context.Context, id int) (types.Category, error)
	Create(ctx context.Context, category types.Category) (types.Category, error)
}

// PostService encapsulates post and comment use-cases.
type PostService struct {
	posts      PostRepository
	comments   CommentRepository
	categories CategoryRepository
}

func NewPostService(posts PostRepository, comments CommentRepository, categories CategoryRepository) *PostService {
	return &PostService{
		posts:      posts,
		comments:   comments,
		categories: categories,
	}
}

// List returns all posts, optionally filtered to one category.
func (s *PostService) List(ctx context.Context, categoryID int) ([]types.Post, error) {
	return s.posts.List(ctx, categoryID)
}

// Get returns a single post with its comments.
func (s *PostService) Get(ctx context.Context, id int) (types.Post, error) {
	post, err := s.posts.Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.Post{}, ErrPostNotFound
		}
		return types.Post{}, err
	}
	return post, nil
}

// Create stores a new post after checking the category exists.
func (s *PostService) Create(ctx context.Context, post types.Post) (types.Post, error) {
	if _, err := s.categories.GetByID(ctx, post.CategoryID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.Post{}, ErrCategoryNotFound
		}
		return types.Post{}, err
	}
	return s.posts.Create(ctx, post)
}

// AddComment stores a comment after checking the post exists.
func (s *PostService) AddComment(ctx context.Context, comment types.Comment) (types.Comment, error) {
	if _, err := s.posts.Get(ctx, comment.PostID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.Comment{}, ErrPostNotFound
		}
		return types.Comment{}, err
	}
	return s.comments.Create(ctx, comment)
}

// Delete removes a post. Its comments and attachment rows cascade in the
// store.
func (s *PostService) Delete(ctx context.Context, id int) error {
	err := s.posts.Delete(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return ErrPostNotFound
	}
	return err
}
