package reindex

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/babelindex/babelindex/internal/engine/tokenizer"
	"github.com/babelindex/babelindex/internal/indexer"
	"github.com/babelindex/babelindex/internal/store"
	"github.com/babelindex/babelindex/internal/vocab"
	"github.com/babelindex/babelindex/pkg/config"
	"github.com/babelindex/babelindex/pkg/kafka"
	"github.com/babelindex/babelindex/pkg/metrics"
)

// Worker consumes change records and re-indexes potentially changed
// documents: those whose index entries reference a changed meaning, and
// those whose words contain a changed spelling as a substring (a changed
// spelling can alter how a compound token divides).
type Worker struct {
	index     store.DocumentIndexStore
	docs      store.DocumentSource
	indexer   *indexer.Indexer
	batchSize int
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

// NewWorker creates a Worker. The metrics argument may be nil.
func NewWorker(index store.DocumentIndexStore, docs store.DocumentSource, ix *indexer.Indexer, batchSize int, m *metrics.Metrics) *Worker {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Worker{
		index:     index,
		docs:      docs,
		indexer:   ix,
		batchSize: batchSize,
		logger:    slog.Default().With("component", "reindex-worker"),
		metrics:   m,
	}
}

// Run consumes the reindex topic until ctx is cancelled.
func (w *Worker) Run(ctx context.Context, cfg config.KafkaConfig) error {
	consumer := kafka.NewConsumer(cfg, cfg.Topics.ReindexChanges, w.handleMessage)
	return consumer.Start(ctx)
}

func (w *Worker) handleMessage(ctx context.Context, key, value []byte) error {
	record, err := kafka.DecodeJSON[ChangeRecord](value)
	if err != nil {
		w.logger.Error("dropping undecodable change record", "key", string(key), "error", err)
		return nil
	}
	return w.Reindex(ctx, record)
}

// Reindex walks the corpus in batches and re-indexes every document the
// change record could have affected.
func (w *Worker) Reindex(ctx context.Context, record ChangeRecord) error {
	affected, err := w.affectedByMeanings(ctx, record.MeaningIDs)
	if err != nil {
		return err
	}

	reindexed := 0
	after := vocab.DocumentRef{}
	for {
		batch, err := w.docs.ListDocuments(ctx, after, w.batchSize)
		if err != nil {
			return fmt.Errorf("listing documents: %w", err)
		}
		if len(batch) == 0 {
			break
		}
		for _, doc := range batch {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if !w.changed(doc, affected, record.Spellings) {
				continue
			}
			if err := w.indexer.Reindex(ctx, doc.Ref); err != nil {
				w.logger.Error("reindex failed", "document", doc.Ref.String(), "error", err)
				continue
			}
			reindexed++
			if w.metrics != nil {
				w.metrics.DocsReindexedTotal.Inc()
			}
		}
		after = batch[len(batch)-1].Ref
	}

	w.logger.Info("reindex pass complete",
		"changed_meanings", len(record.MeaningIDs),
		"changed_spellings", len(record.Spellings),
		"documents_reindexed", reindexed,
	)
	return nil
}

func (w *Worker) affectedByMeanings(ctx context.Context, meaningIDs []int64) (map[vocab.DocumentRef]struct{}, error) {
	affected := make(map[vocab.DocumentRef]struct{})
	if len(meaningIDs) == 0 {
		return affected, nil
	}
	rows, err := w.index.FindIndexEntries(ctx, meaningIDs, "")
	if err != nil {
		return nil, fmt.Errorf("finding entries for changed meanings: %w", err)
	}
	for _, row := range rows {
		affected[row.Document] = struct{}{}
	}
	return affected, nil
}

func (w *Worker) changed(doc vocab.Document, affected map[vocab.DocumentRef]struct{}, spellings []string) bool {
	if _, ok := affected[doc.Ref]; ok {
		return true
	}
	if len(spellings) == 0 {
		return false
	}
	for _, word := range tokenizer.GetWords(doc.Text) {
		for _, spelling := range spellings {
			if spelling != "" && strings.Contains(word, spelling) {
				return true
			}
		}
	}
	return false
}
