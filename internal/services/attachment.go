package services

import (
	"context"
	"errors"

	"github.com/myopinion/apiserver/internal/store"
	"github.com/myopinion/apiserver/types"
)

// AttachmentRepository defines persistence operations for attachment
// metadata.
type AttachmentRepository interface {
	Create(ctx context.Context, attachment types.Attachment) (types.Attachment, error)
	Get(ctx context.Context, id int) (types.Attachment, error)
	ListByPost(ctx context.Context, postID int) ([]types.Attachment, error)
	KeysByUser(ctx context.Context, userID int) ([]string, error)
	KeysByPost(ctx context.Context, postID int) ([]string, error)
}

// ErrAttachmentNotFound is returned when an attachment id does not resolve.
var ErrAttachmentNotFound = errors.New("attachment not found")

// AttachmentService encapsulates attachment metadata use-cases.
type AttachmentService struct {
	repo AttachmentRepository
}

func NewAttachmentService(repo AttachmentRepository) *AttachmentService {
	return &AttachmentService{repo: repo}
}

func (s *AttachmentService) Create(ctx context.Context, attachment types.Attachment) (types.Attachment, error) {
	return s.repo.Create(ctx, attachment)
}

func (s *AttachmentService) Get(ctx context.Context, id int) (types.Attachment, error) {
	attachment, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.Attachment{}, ErrAttachmentNotFound
		}
		return types.Attachment{}, err
	}
	return attachment, nil
}

func (s *AttachmentService) ListByPost(ctx context.Context, postID int) ([]types.Attachment, error) {
	return s.repo.ListByPost(ctx, postID)
}

func (s *AttachmentService) KeysByUser(ctx context.Context, userID int) ([]string, error) {
	return s.repo.KeysByUser(ctx, userID)
}

func (s *AttachmentService) KeysByPost(ctx context.Context, postID int) ([]string, error) {
	return s.repo.KeysByPost(ctx, postID)
}
