// Package worker consumes cleanup events and removes the attachment
// objects that database cascades leave behind. It is the
// eventually-consistent half of user and post deletion.
package worker

import (
	"context"
	"encoding/json"

	"github.com/myopinion/apiserver/internal/events"
	"github.com/myopinion/apiserver/internal/mq"
	"github.com/myopinion/apiserver/internal/storage"
	"github.com/sirupsen/logrus"
)

// Worker subscribes to the cleanup channel and deletes orphaned objects.
type Worker struct {
	mq      *mq.MQ
	storage *storage.Storage
	log     *logrus.Logger
}

func New(m *mq.MQ, store *storage.Storage, log *logrus.Logger) *Worker {
	return &Worker{
		mq:      m,
		storage: store,
		log:     log,
	}
}

// Run blocks consuming cleanup events until the context is canceled.
func (w *Worker) Run(ctx context.Context) error {
	w.log.WithField("channel", events.ChannelCleanup).Info("cleanup worker started")
	return w.mq.Subscribe(ctx, events.ChannelCleanup, w.handle)
}

func (w *Worker) handle(ctx context.Context, msg mq.Message) error {
	var event events.Cleanup
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		// A malformed event will never become parseable; drop it rather
		// than let the broker redeliver forever.
		w.log.WithError(err).WithField("message_id", msg.ID).Warn("dropping malformed cleanup event")
		return nil
	}

	log := w.log.WithFields(logrus.Fields{
		"kind":    event.Kind,
		"user_id": event.UserID,
		"post_id": event.PostID,
	})

	for _, key := range event.ObjectKeys {
		if err := w.storage.Delete(ctx, key); err != nil {
			log.WithError(err).WithField("object_key", key).Error("delete attachment object")
			return err
		}
	}

	log.WithField("objects", len(event.ObjectKeys)).Info("cleanup event processed")
	return nil
}
