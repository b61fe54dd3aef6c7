// Package reindex carries vocabulary changes from the mutation boundary to a
// background worker. Mutations emit a ChangeRecord to Kafka; the worker
// consumes the topic and re-indexes every document the change could have
// touched. The engine accepts eventual consistency between a mutation and
// its re-index.
package reindex

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/babelindex/babelindex/pkg/config"
	"github.com/babelindex/babelindex/pkg/kafka"
	"github.com/babelindex/babelindex/pkg/resilience"
)

// ChangeRecord names the meanings and spellings affected by one vocabulary
// mutation.
type ChangeRecord struct {
	MeaningIDs []int64   `json:"meaning_ids,omitempty"`
	Spellings  []string  `json:"spellings,omitempty"`
	QueuedAt   time.Time `json:"queued_at"`
}

// Publisher emits change records to the reindex topic.
type Publisher struct {
	producer *kafka.Producer
	retry    resilience.RetryConfig
	logger   *slog.Logger
}

// NewPublisher creates a Publisher over the configured reindex topic.
func NewPublisher(cfg config.KafkaConfig) *Publisher {
	return &Publisher{
		producer: kafka.NewProducer(cfg, cfg.Topics.ReindexChanges),
		logger:   slog.Default().With("component", "reindex-publisher"),
	}
}

// QueueChanges publishes one change record, retrying transient broker
// failures with backoff.
func (p *Publisher) QueueChanges(ctx context.Context, meaningIDs []int64, spellings []string) error {
	if len(meaningIDs) == 0 && len(spellings) == 0 {
		return nil
	}
	record := ChangeRecord{
		MeaningIDs: meaningIDs,
		Spellings:  spellings,
		QueuedAt:   time.Now().UTC(),
	}
	err := resilience.Retry(ctx, "publish-reindex-changes", p.retry, func() error {
		return p.producer.Publish(ctx, kafka.Event{
			Key:   changeKey(record),
			Value: record,
		})
	})
	if err != nil {
		return fmt.Errorf("queueing reindex changes: %w", err)
	}
	p.logger.Info("reindex changes queued",
		"meanings", len(meaningIDs),
		"spellings", len(spellings),
	)
	return nil
}

// Close flushes and closes the underlying producer.
func (p *Publisher) Close() error {
	return p.producer.Close()
}

func changeKey(record ChangeRecord) string {
	if len(record.Spellings) > 0 {
		return record.Spellings[0]
	}
	if len(record.MeaningIDs) > 0 {
		return fmt.Sprintf("meaning-%d", record.MeaningIDs[0])
	}
	return "reindex"
}
