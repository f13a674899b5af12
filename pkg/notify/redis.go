package notify

import (
	"context"

	"github.com/gradeflow/gradeflow/pkg/eventbus"
)

// RedisService publishes notifications on the redis event bus, where a
// downstream mailer or push worker consumes them.
type RedisService struct {
	bus *eventbus.Bus
}

func NewRedisService(bus *eventbus.Bus) *RedisService {
	return &RedisService{bus: bus}
}

func (s *RedisService) Enqueue(ctx context.Context, notification Notification) error {
	event, err := eventbus.NewEvent("grade_notification", eventbus.NotificationEvent{
		SubmissionID: notification.SubmissionID,
		Recipient:    notification.Recipient,
		Subject:      notification.Subject,
		Body:         notification.Body,
	})
	if err != nil {
		return err
	}
	return s.bus.Publish(ctx, eventbus.ChannelNotification, event)
}
