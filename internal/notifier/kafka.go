package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"
)

// KafkaSink publishes position events as JSON. Messages without an event
// are ignored.
type KafkaSink struct {
	producer sarama.SyncProducer
	topic    string
	logger   *zap.Logger
}

// NewKafkaProducer builds a synchronous producer that waits for all in-sync replicas.
func NewKafkaProducer(brokers []string, clientID string) (sarama.SyncProducer, error) {
	config := sarama.NewConfig()
	config.ClientID = clientID
	config.Version = sarama.V2_8_0_0
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 3
	config.Producer.Return.Successes = true
	config.Producer.Timeout = 10 * time.Second
	return sarama.NewSyncProducer(brokers, config)
}

// NewKafkaSink wraps producer. The sink owns it and closes it on Close.
func NewKafkaSink(producer sarama.SyncProducer, topic string, logger *zap.Logger) *KafkaSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &KafkaSink{producer: producer, topic: topic, logger: logger}
}

func (k *KafkaSink) Notify(ctx context.Context, msg Message) error {
	if msg.Event == nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	value, err := json.Marshal(msg.Event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	pm := &sarama.ProducerMessage{
		Topic: k.topic,
		Key:   sarama.StringEncoder(msg.Event.Instrument),
		Value: sarama.ByteEncoder(value),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event_id"), Value: []byte(msg.Event.ID)},
			{Key: []byte("kind"), Value: []byte(msg.Event.Kind)},
		},
	}
	partition, offset, err := k.producer.SendMessage(pm)
	if err != nil {
		return fmt.Errorf("publish event %s: %w", msg.Event.ID, err)
	}
	k.logger.Debug("event published",
		zap.String("topic", k.topic),
		zap.Int32("partition", partition),
		zap.Int64("offset", offset),
		zap.String("event_id", msg.Event.ID))
	return nil
}

func (k *KafkaSink) Close() error {
	return k.producer.Close()
}
