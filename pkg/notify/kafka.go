package notify

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaService publishes notifications to a kafka topic, keyed by
// submission id so messages for one student submission stay ordered.
type KafkaService struct {
	writer *kafka.Writer
}

func NewKafkaService(brokers []string, clientID, topic string) *KafkaService {
	return &KafkaService{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequireAll,
			Transport: &kafka.Transport{
				ClientID: clientID,
			},
		},
	}
}

func (s *KafkaService) Enqueue(ctx context.Context, notification Notification) error {
	payload, err := json.Marshal(notification)
	if err != nil {
		return err
	}
	return s.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(strconv.FormatInt(notification.SubmissionID, 10)),
		Value: payload,
		Time:  time.Now(),
	})
}

func (s *KafkaService) Close() error {
	return s.writer.Close()
}
