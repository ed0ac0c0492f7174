package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/myopinion/apiserver/types"
)

// AttachmentRepository handles persistence for post attachment metadata.
// The object bytes themselves live in object storage.
type AttachmentRepository struct {
	db *sql.DB
}

func NewAttachmentRepository(db *sql.DB) *AttachmentRepository {
	return &AttachmentRepository{db: db}
}

func (r *AttachmentRepository) Create(ctx context.Context, attachment types.Attachment) (types.Attachment, error) {
	attachment.CreatedAt = time.Now()

	const query = `
		INSERT INTO attachments (post_id, object_key, filename, content_type, size, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		attachment.PostID,
		attachment.ObjectKey,
		attachment.Filename,
		attachment.ContentType,
		attachment.Size,
		attachment.CreatedAt,
	).Scan(&attachment.ID); err != nil {
		return types.Attachment{}, err
	}
	return attachment, nil
}

func (r *AttachmentRepository) Get(ctx context.Context, id int) (types.Attachment, error) {
	const query = `
		SELECT id, post_id, object_key, filename, content_type, size, created_at
		FROM attachments
		WHERE id = $1`
	var attachment types.Attachment
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&attachment.ID,
		&attachment.PostID,
		&attachment.ObjectKey,
		&attachment.Filename,
		&attachment.ContentType,
		&attachment.Size,
		&attachment.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Attachment{}, ErrNotFound
		}
		return types.Attachment{}, err
	}
	return attachment, nil
}

func (r *AttachmentRepository) ListByPost(ctx context.Context, postID int) ([]types.Attachment, error) {
	const query = `
		SELECT id, post_id, object_key, filename, content_type, size, created_at
		FROM attachments
		WHERE post_id = $1
		ORDER BY id`
	return r.list(ctx, query, postID)
}

// KeysByUser returns the object keys of every attachment on the user's
// posts. Called before deleting the user, while the rows still exist, so
// the cleanup worker knows which objects to remove after the cascade.
func (r *AttachmentRepository) KeysByUser(ctx context.Context, userID int) ([]string, error) {
	const query = `
		SELECT a.object_key
		FROM attachments a
		JOIN posts p ON p.id = a.post_id
		WHERE p.user_id = $1`
	return r.keys(ctx, query, userID)
}

// KeysByPost returns the object keys of every attachment on the post.
func (r *AttachmentRepository) KeysByPost(ctx context.Context, postID int) ([]string, error) {
	const query = `
		SELECT object_key
		FROM attachments
		WHERE post_id = $1`
	return r.keys(ctx, query, postID)
}

func (r *AttachmentRepository) list(ctx context.Context, query string, arg any) ([]types.Attachment, error) {
	rows, err := r.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attachments []types.Attachment
	for rows.Next() {
		var attachment types.Attachment
		if err := rows.Scan(
			&attachment.ID,
			&attachment.PostID,
			&attachment.ObjectKey,
			&attachment.Filename,
			&attachment.ContentType,
			&attachment.Size,
			&attachment.CreatedAt,
		); err != nil {
			return nil, err
		}
		attachments = append(attachments, attachment)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return attachments, nil
}

func (r *AttachmentRepository) keys(ctx context.Context, query string, arg any) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return keys, nil
}
