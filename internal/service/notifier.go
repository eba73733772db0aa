package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/libstats-api/internal/models"
	appErrors "github.com/noah-isme/libstats-api/pkg/errors"
)

type broadcastPublisher interface {
	Publish(ctx context.Context, channel string, message interface{}) (int64, error)
}

// Notifier delivers broadcast announcements to subscribers of a pub/sub channel.
type Notifier struct {
	publisher broadcastPublisher
	channel   string
	logger    *zap.Logger
	now       func() time.Time
}

// NewNotifier constructs a Notifier publishing on channel.
func NewNotifier(publisher broadcastPublisher, channel string, logger *zap.Logger) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	if channel == "" {
		channel = "libstats:broadcast"
	}
	return &Notifier{publisher: publisher, channel: channel, logger: logger, now: time.Now}
}

// Broadcast publishes the announcement attached to event.
func (n *Notifier) Broadcast(ctx context.Context, event *models.ScheduledEvent) error {
	if n.publisher == nil {
		return appErrors.Clone(appErrors.ErrInternal, "broadcast publisher not configured")
	}
	message := models.BroadcastMessage{
		EventID: event.ID,
		Year:    event.Year,
		SentAt:  n.now().UTC(),
	}
	if event.Notes != nil {
		message.Notes = *event.Notes
	}
	receivers, err := n.publisher.Publish(ctx, n.channel, message)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to publish broadcast")
	}
	n.logger.Info("broadcast published",
		zap.Int64("event_id", event.ID),
		zap.Int("year", event.Year),
		zap.String("channel", n.channel),
		zap.Int64("receivers", receivers),
	)
	return nil
}
