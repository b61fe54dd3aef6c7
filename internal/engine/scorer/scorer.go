// Package scorer compares stored index rows against a resolved query and
// produces integer relevance percentages:
//
//	        matching distinct meanings between document and query
//	100 * ----------------------------------------------------------
//	          total distinct meanings in the query
//
// A document containing a meaning at any position counts it once, no matter
// how many positions it occupies.
package scorer

import (
	"context"
	"log/slog"
	"sort"

	"github.com/babelindex/babelindex/internal/engine/resolver"
	"github.com/babelindex/babelindex/internal/engine/setlist"
	"github.com/babelindex/babelindex/internal/store"
	"github.com/babelindex/babelindex/internal/vocab"
	"github.com/babelindex/babelindex/pkg/metrics"
)

// ScoredDoc is one search hit.
type ScoredDoc struct {
	Document vocab.DocumentRef `json:"document"`
	Score    int               `json:"score"`
}

// Scorer scores documents of the index store against resolved queries.
type Scorer struct {
	index   store.DocumentIndexStore
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// New creates a Scorer. The metrics argument may be nil.
func New(index store.DocumentIndexStore, m *metrics.Metrics) *Scorer {
	return &Scorer{
		index:   index,
		logger:  slog.Default().With("component", "scorer"),
		metrics: m,
	}
}

// ScoreDocuments returns every document of docType matching at least one
// query meaning, best first. Ties are broken by ascending document
// reference, making the ordering deterministic. Offset and limit slice the
// sorted result; limit<=0 means no limit.
func (s *Scorer) ScoreDocuments(ctx context.Context, docType string, query *resolver.OrderedResult, offset, limit int) ([]ScoredDoc, error) {
	queryMeanings := query.Positions.Flat().Keys()
	if len(queryMeanings) == 0 {
		return nil, nil
	}

	rows, err := s.index.FindIndexEntries(ctx, queryMeanings, docType)
	if err != nil {
		return nil, err
	}

	matches := make(map[vocab.DocumentRef]*setlist.SetList[int64])
	for _, row := range rows {
		positions, ok := matches[row.Document]
		if !ok {
			positions = setlist.New[int64]()
			matches[row.Document] = positions
		}
		positions.Add(row.Position, row.MeaningID)
	}

	termCount := len(queryMeanings)
	scored := make([]ScoredDoc, 0, len(matches))
	for ref, positions := range matches {
		scored = append(scored, ScoredDoc{
			Document: ref,
			Score:    100 * positions.Flat().Len() / termCount,
		})
	}
	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].Document.Less(scored[j].Document)
	})

	s.logger.Debug("documents scored",
		"doc_type", docType,
		"query_meanings", termCount,
		"candidates", len(scored),
	)

	return page(scored, offset, limit), nil
}

func page(scored []ScoredDoc, offset, limit int) []ScoredDoc {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(scored) {
		return nil
	}
	scored = scored[offset:]
	if limit > 0 && len(scored) > limit {
		scored = scored[:limit]
	}
	return scored
}
