package mail

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const TaskTypeMail = "mail"

// QueueSender hands messages to the worker through a redis stream.
type QueueSender struct {
	client *redis.Client
	stream string
}

func NewQueueSender(client *redis.Client, stream string) *QueueSender {
	return &QueueSender{client: client, stream: stream}
}

func (q *QueueSender) Send(ctx context.Context, msg Message) error {
	_, err := q.client.XAdd(ctx, &redis.XAddArgs{
		Stream: q.stream,
		Values: map[string]any{
			"type":    TaskTypeMail,
			"to":      msg.To,
			"subject": msg.Subject,
			"html":    msg.HTMLBody,
		},
	}).Result()
	if err != nil {
		return fmt.Errorf("enqueue mail: %w", err)
	}
	return nil
}

// FromValues rebuilds a message from stream values written by Send.
func FromValues(values map[string]any) (Message, error) {
	msg := Message{
		To:       stringValue(values["to"]),
		Subject:  stringValue(values["subject"]),
		HTMLBody: stringValue(values["html"]),
	}
	if msg.To == "" {
		return Message{}, fmt.Errorf("mail task without recipient")
	}
	return msg, nil
}

func stringValue(v any) string {
	s, _ := v.(string)
	return s
}
