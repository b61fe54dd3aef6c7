// Package resolver maps token sequences to candidate meanings. Each token is
// segmented into known spellings, and every meaning of every chosen spelling
// is kept; ambiguity across languages and across homonymous meanings is
// preserved for the scorer to weigh.
package resolver

import (
	"context"
	"log/slog"

	"github.com/babelindex/babelindex/internal/engine/prefixcache"
	"github.com/babelindex/babelindex/internal/engine/segmenter"
	"github.com/babelindex/babelindex/internal/engine/setlist"
	"github.com/babelindex/babelindex/internal/engine/tokenizer"
	"github.com/babelindex/babelindex/internal/store"
	"github.com/babelindex/babelindex/internal/vocab"
	"github.com/babelindex/babelindex/pkg/metrics"
)

// Result is the unordered outcome of a lookup: all meanings across all
// tokens, plus the set of spellings that were actually matched (the original
// tokens or the parts they were divided into).
type Result struct {
	Meanings       map[int64]*vocab.Meaning
	FoundSpellings map[string]struct{}
}

// OrderedResult keeps one position per input token, in input order, each
// holding the ids of every candidate meaning for that token.
type OrderedResult struct {
	Positions      *setlist.SetList[int64]
	Meanings       map[int64]*vocab.Meaning
	FoundSpellings map[string]struct{}
}

// Resolver resolves tokens against the vocabulary store through the prefix
// cache and segmenter.
type Resolver struct {
	vocabStore store.VocabularyStore
	cache      *prefixcache.Cache
	seg        *segmenter.Segmenter
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

// New creates a Resolver. The metrics argument may be nil.
func New(vocabStore store.VocabularyStore, cache *prefixcache.Cache, seg *segmenter.Segmenter, m *metrics.Metrics) *Resolver {
	return &Resolver{
		vocabStore: vocabStore,
		cache:      cache,
		seg:        seg,
		logger:     slog.Default().With("component", "resolver"),
		metrics:    m,
	}
}

// Cache exposes the resolver's prefix cache so vocabulary mutation paths can
// keep it current.
func (r *Resolver) Cache() *prefixcache.Cache {
	return r.cache
}

// LookupExact returns every meaning with the given spelling in at least one
// language. The prefix cache is not consulted: it holds segmentation
// candidates only, and exact matches include non-indexable spellings.
func (r *Resolver) LookupExact(ctx context.Context, spelling string) ([]*vocab.Meaning, error) {
	return r.vocabStore.FindMeaningsBySpelling(ctx, spelling)
}

// Lookup resolves the tokens without regard to order, unioning all meanings
// into one flat result. With createMissing, every unmatched token is
// registered as a new word attached to a fresh single-word meaning, so the
// found set then contains all searched tokens.
func (r *Resolver) Lookup(ctx context.Context, tokens []string, createMissing bool) (*Result, error) {
	if err := r.cache.Seed(ctx, tokens); err != nil {
		return nil, err
	}
	result := &Result{
		Meanings:       make(map[int64]*vocab.Meaning),
		FoundSpellings: make(map[string]struct{}),
	}
	seen := make(map[string]struct{}, len(tokens))
	for _, token := range tokens {
		if _, done := seen[token]; done {
			continue
		}
		seen[token] = struct{}{}
		meanings, found, err := r.lookupToken(ctx, token, createMissing)
		if err != nil {
			return nil, err
		}
		for _, m := range meanings {
			result.Meanings[m.ID] = m
		}
		for _, spelling := range found {
			result.FoundSpellings[spelling] = struct{}{}
		}
	}
	return result, nil
}

// LookupOrdered resolves the tip of the indexing and query paths: one
// SetList position per input token, order and repetition preserved.
// Duplicate tokens reuse a memoized per-token result within the call.
func (r *Resolver) LookupOrdered(ctx context.Context, tokens []string, createMissing bool) (*OrderedResult, error) {
	if err := r.cache.Seed(ctx, tokens); err != nil {
		return nil, err
	}
	result := &OrderedResult{
		Positions:      setlist.New[int64](),
		Meanings:       make(map[int64]*vocab.Meaning),
		FoundSpellings: make(map[string]struct{}),
	}
	memo := make(map[string][]int64, len(tokens))
	for _, token := range tokens {
		ids, done := memo[token]
		if !done {
			meanings, found, err := r.lookupToken(ctx, token, createMissing)
			if err != nil {
				return nil, err
			}
			ids = make([]int64, 0, len(meanings))
			for _, m := range meanings {
				ids = append(ids, m.ID)
				result.Meanings[m.ID] = m
			}
			for _, spelling := range found {
				result.FoundSpellings[spelling] = struct{}{}
			}
			memo[token] = ids
		}
		result.Positions.Append(ids)
	}
	return result, nil
}

// LookupSentence tokenizes and normalizes free text and resolves it in
// order, never creating vocabulary.
func (r *Resolver) LookupSentence(ctx context.Context, text string) (*OrderedResult, error) {
	return r.LookupOrdered(ctx, tokenizer.GetWords(text), false)
}

// lookupToken segments one token and gathers the meanings of every part of
// its best division. A token that segmentation cannot match falls back to an
// exact lookup, so spellings stored as non-indexable still resolve on their
// own even though they never serve as compound parts. A token unmatched both
// ways yields no meanings and no found spellings unless createMissing is
// set, in which case the whole token becomes a new language-neutral word
// with a fresh meaning.
func (r *Resolver) lookupToken(ctx context.Context, token string, createMissing bool) ([]*vocab.Meaning, []string, error) {
	division, err := r.seg.Segment(ctx, token)
	if err != nil {
		return nil, nil, err
	}
	if len(division) == 0 {
		exact, err := r.LookupExact(ctx, token)
		if err != nil {
			return nil, nil, err
		}
		if len(exact) > 0 {
			return exact, []string{token}, nil
		}
		if !createMissing {
			return nil, nil, nil
		}
		meaning, err := r.vocabStore.CreateMeaning(ctx, []vocab.WordRef{{Spelling: token}})
		if err != nil {
			return nil, nil, err
		}
		r.cache.Add(token)
		if r.metrics != nil {
			r.metrics.SegmentationsTotal.WithLabelValues("created").Inc()
			r.metrics.WordsCreatedTotal.Inc()
			r.metrics.MeaningsCreatedTotal.Inc()
		}
		r.logger.Debug("vocabulary entry created for unmatched token", "token", token, "meaning_id", meaning.ID)
		return []*vocab.Meaning{meaning}, []string{token}, nil
	}

	var meanings []*vocab.Meaning
	for _, part := range division {
		partMeanings, err := r.vocabStore.FindMeaningsBySpelling(ctx, part)
		if err != nil {
			return nil, nil, err
		}
		meanings = append(meanings, partMeanings...)
	}
	return meanings, division, nil
}
