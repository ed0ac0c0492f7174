package services

import (
	"context"

	"github.com/myopinion/apiserver/types"
)

// CategoryService encapsulates category use-cases.
type CategoryService struct {
	repo CategoryRepository
}

func NewCategoryService(repo CategoryRepository) *CategoryService {
	return &CategoryService{repo: repo}
}

func (s *CategoryService) List(ctx context.Context) ([]types.Category, error) {
	return s.repo.List(ctx)
}

func (s *CategoryService) Create(ctx context.Context, name, description string) (types.Category, error) {
	return s.repo.Create(ctx, types.Category{
		Name:        name,
		Description: description,
	})
}
