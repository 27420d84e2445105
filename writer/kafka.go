package writer

import (
	"context"
	"encoding/json"
	"fmt"

	kafka "github.com/segmentio/kafka-go"

	"arbflow/config"
	"arbflow/logger"
	"arbflow/models"
)

// KafkaWriter publishes each cycle's opportunity batch to the configured
// topic, keyed by cycle id so a partition preserves cycle ordering.
type KafkaWriter struct {
	writer *kafka.Writer
	log    *logger.Log
}

func NewKafkaWriter(cfg config.KafkaConfig) (*KafkaWriter, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers not configured")
	}

	kw := &KafkaWriter{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(cfg.Brokers...),
			Topic:    cfg.Topic,
			Balancer: &kafka.LeastBytes{},
		},
		log: logger.GetLogger(),
	}

	kw.log.WithComponent("kafka_writer").WithFields(logger.Fields{
		"brokers": cfg.Brokers,
		"topic":   cfg.Topic,
	}).Debug("kafka writer initialized")

	return kw, nil
}

func (kw *KafkaWriter) WriteBatch(ctx context.Context, batch models.OpportunityBatch) error {
	data, err := json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("marshal batch %s: %w", batch.CycleID, err)
	}

	msg := kafka.Message{
		Key:   []byte(batch.CycleID),
		Value: data,
	}
	if err := kw.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write batch %s: %w", batch.CycleID, err)
	}

	logger.IncrementKafkaWrite(int64(len(data)))
	kw.log.WithComponent("kafka_writer").WithFields(logger.Fields{
		"cycle_id":      batch.CycleID,
		"opportunities": len(batch.Opportunities),
		"bytes":         len(data),
	}).Debug("batch published")

	return nil
}

func (kw *KafkaWriter) Close() error {
	return kw.writer.Close()
}
