// Package indexer drives the document indexing path: resolve a document's
// text to ordered meanings, then rewrite that document's index rows. The
// former signal-driven hooks of the document lifecycle are replaced by
// explicit IndexDocument/DeleteDocument calls from the document-mutation
// boundary.
package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/babelindex/babelindex/internal/engine/resolver"
	"github.com/babelindex/babelindex/internal/engine/tokenizer"
	"github.com/babelindex/babelindex/internal/store"
	"github.com/babelindex/babelindex/internal/vocab"
	apperrors "github.com/babelindex/babelindex/pkg/errors"
	"github.com/babelindex/babelindex/pkg/metrics"
	"github.com/babelindex/babelindex/pkg/tracing"
)

// FrequencyTracker is an optional collaborator keeping per-spelling usage
// counts. The engine never treats frequencies as an invariant; a nil tracker
// disables the bookkeeping entirely.
type FrequencyTracker interface {
	Adjust(ctx context.Context, spellings []string, delta int64) error
}

// Indexer owns delete-then-create of a document's index rows. Atomicity of
// that rewrite is the index store's responsibility.
type Indexer struct {
	resolver *resolver.Resolver
	index    store.DocumentIndexStore
	docs     store.DocumentSource
	freq     FrequencyTracker
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// New creates an Indexer. freq and m may be nil.
func New(res *resolver.Resolver, index store.DocumentIndexStore, docs store.DocumentSource, freq FrequencyTracker, m *metrics.Metrics) *Indexer {
	return &Indexer{
		resolver: res,
		index:    index,
		docs:     docs,
		freq:     freq,
		logger:   slog.Default().With("component", "indexer"),
		metrics:  m,
	}
}

// IndexDocument stores the document and replaces its index rows with rows
// resolved from its current text. Unknown tokens get fresh vocabulary
// entries so every token position is represented.
func (ix *Indexer) IndexDocument(ctx context.Context, doc vocab.Document) error {
	if doc.Ref.Type == "" || doc.Ref.ID == "" {
		return apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "document reference must carry type and id")
	}
	ctx, span := tracing.StartChildSpan(ctx, "index_document")
	defer span.End()
	span.SetAttr("document", doc.Ref.String())

	if err := ix.deleteEntries(ctx, doc.Ref); err != nil {
		return err
	}
	if err := ix.docs.PutDocument(ctx, doc); err != nil {
		return fmt.Errorf("storing document %s: %w", doc.Ref, err)
	}
	return ix.createEntries(ctx, doc)
}

// DeleteDocument removes the document and its index rows, reversing any
// frequency bookkeeping its words contributed.
func (ix *Indexer) DeleteDocument(ctx context.Context, ref vocab.DocumentRef) error {
	if err := ix.deleteEntries(ctx, ref); err != nil {
		return err
	}
	if err := ix.docs.DeleteDocument(ctx, ref); err != nil {
		return fmt.Errorf("deleting document %s: %w", ref, err)
	}
	return nil
}

// Reindex re-runs index row creation for a document already in the source.
func (ix *Indexer) Reindex(ctx context.Context, ref vocab.DocumentRef) error {
	doc, err := ix.docs.GetDocument(ctx, ref)
	if err != nil {
		return fmt.Errorf("fetching document %s: %w", ref, err)
	}
	if err := ix.deleteEntries(ctx, ref); err != nil {
		return err
	}
	return ix.createEntries(ctx, *doc)
}

// createEntries writes one index row per candidate meaning per token
// position, 1-based. Ambiguity is preserved here and resolved only at
// scoring time.
func (ix *Indexer) createEntries(ctx context.Context, doc vocab.Document) error {
	words := tokenizer.GetWords(doc.Text)
	resolved, err := ix.resolver.LookupOrdered(ctx, words, true)
	if err != nil {
		return fmt.Errorf("resolving document %s: %w", doc.Ref, err)
	}

	written := 0
	for i := 0; i < resolved.Positions.Len(); i++ {
		for _, meaningID := range resolved.Positions.Get(i) {
			if err := ix.index.CreateIndexEntry(ctx, doc.Ref, i+1, meaningID); err != nil {
				return fmt.Errorf("writing index entry for %s position %d: %w", doc.Ref, i+1, err)
			}
			written++
		}
	}
	ix.adjustFrequencies(ctx, resolved.FoundSpellings, 1)
	if ix.metrics != nil {
		ix.metrics.DocsIndexedTotal.Inc()
		ix.metrics.IndexEntriesWritten.Add(float64(written))
	}
	ix.logger.Info("document indexed",
		"document", doc.Ref.String(),
		"tokens", len(words),
		"entries", written,
	)
	return nil
}

// deleteEntries drops the document's rows and decrements frequency counts
// for the spellings its current text resolves to.
func (ix *Indexer) deleteEntries(ctx context.Context, ref vocab.DocumentRef) error {
	if ix.freq != nil {
		if doc, err := ix.docs.GetDocument(ctx, ref); err == nil {
			resolved, err := ix.resolver.Lookup(ctx, tokenizer.GetWords(doc.Text), false)
			if err != nil {
				return err
			}
			ix.adjustFrequencies(ctx, resolved.FoundSpellings, -1)
		}
	}
	if err := ix.index.DeleteIndexEntries(ctx, ref); err != nil {
		return fmt.Errorf("deleting index entries for %s: %w", ref, err)
	}
	return nil
}

// adjustFrequencies logs and moves on when the tracker fails. Counts are
// advisory only.
func (ix *Indexer) adjustFrequencies(ctx context.Context, found map[string]struct{}, delta int64) {
	if ix.freq == nil || len(found) == 0 {
		return
	}
	spellings := make([]string, 0, len(found))
	for spelling := range found {
		spellings = append(spellings, spelling)
	}
	if err := ix.freq.Adjust(ctx, spellings, delta); err != nil {
		ix.logger.Warn("frequency adjustment failed", "delta", delta, "error", err)
	}
}
