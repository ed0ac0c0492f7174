// Package events publishes cleanup notifications for the worker. The
// database cascades row deletion when a user or post goes away, but the
// attachment objects in blob storage cannot cascade; these events carry
// the orphaned object keys to whoever cleans them up.
package events

import (
	"context"
	"encoding/json"

	"github.com/myopinion/apiserver/internal/mq"
	"github.com/sirupsen/logrus"
)

// ChannelCleanup is the mq channel cleanup events travel on.
const ChannelCleanup = "forum.cleanup"

// Event kinds.
const (
	KindUserDeleted = "user.deleted"
	KindPostDeleted = "post.deleted"
)

// Cleanup describes content that was removed and the storage objects it
// leaves behind.
type Cleanup struct {
	Kind       string   `json:"kind"`
	UserID     int      `json:"user_id,omitempty"`
	PostID     int      `json:"post_id,omitempty"`
	ObjectKeys []string `json:"object_keys,omitempty"`
}

// Publisher emits cleanup events on the configured broker. A nil
// Publisher, or one without a broker, drops events silently so callers
// need no configuration checks.
type Publisher struct {
	mq  *mq.MQ
	log *logrus.Logger
}

func NewPublisher(m *mq.MQ, log *logrus.Logger) *Publisher {
	return &Publisher{mq: m, log: log}
}

// UserDeleted announces a removed user and the attachment objects their
// posts leave orphaned.
func (p *Publisher) UserDeleted(ctx context.Context, userID int, objectKeys []string) {
	p.publish(ctx, Cleanup{
		Kind:       KindUserDeleted,
		UserID:     userID,
		ObjectKeys: objectKeys,
	})
}

// PostDeleted announces a removed post and its orphaned attachment objects.
func (p *Publisher) PostDeleted(ctx context.Context, postID int, objectKeys []string) {
	p.publish(ctx, Cleanup{
		Kind:       KindPostDeleted,
		PostID:     postID,
		ObjectKeys: objectKeys,
	})
}

func (p *Publisher) publish(ctx context.Context, event Cleanup) {
	if p == nil || p.mq == nil {
		return
	}

	data, err := json.Marshal(event)
	if err != nil {
		p.log.WithError(err).Error("marshal cleanup event")
		return
	}

	id, err := p.mq.Publish(ctx, ChannelCleanup, data, map[string]string{"kind": event.Kind})
	if err != nil {
		// Cleanup is eventually consistent and best-effort; the deletion
		// itself already succeeded.
		p.log.WithError(err).WithField("kind", event.Kind).Error("publish cleanup event")
		return
	}
	p.log.WithFields(logrus.Fields{"kind": event.Kind, "message_id": id}).Debug("published cleanup event")
}
