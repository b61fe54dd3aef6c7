// Package vocabadmin is the vocabulary mutation boundary: word create and
// delete, noise-word marking, meaning create, join, and split. Every
// mutation keeps the prefix cache current and queues a change record so the
// background reindexer can catch up affected documents.
package vocabadmin

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/babelindex/babelindex/internal/engine/prefixcache"
	"github.com/babelindex/babelindex/internal/engine/tokenizer"
	"github.com/babelindex/babelindex/internal/store"
	"github.com/babelindex/babelindex/internal/vocab"
	apperrors "github.com/babelindex/babelindex/pkg/errors"
	"github.com/babelindex/babelindex/pkg/metrics"
)

// ChangeQueue receives the (meaning ids, spellings) records emitted on
// vocabulary changes. Satisfied by the reindex publisher.
type ChangeQueue interface {
	QueueChanges(ctx context.Context, meaningIDs []int64, spellings []string) error
}

// Service wraps the vocabulary store's mutations.
type Service struct {
	vocabStore store.VocabularyStore
	cache      *prefixcache.Cache
	changes    ChangeQueue
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

// New creates a Service. changes and m may be nil; a nil change queue
// disables reindex triggering.
func New(vocabStore store.VocabularyStore, cache *prefixcache.Cache, changes ChangeQueue, m *metrics.Metrics) *Service {
	return &Service{
		vocabStore: vocabStore,
		cache:      cache,
		changes:    changes,
		logger:     slog.Default().With("component", "vocab-admin"),
		metrics:    m,
	}
}

// CreateWord creates a normalized word. Existing (spelling, language) pairs
// surface the store's duplicate error unchanged.
func (s *Service) CreateWord(ctx context.Context, spelling, language string) (*vocab.Word, error) {
	if err := vocab.ValidateLanguage(language); err != nil {
		return nil, err
	}
	normalized := normalizeSpelling(spelling)
	if normalized == "" {
		return nil, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "empty spelling")
	}
	if _, err := s.vocabStore.FindWord(ctx, normalized, language); err == nil {
		return nil, apperrors.Newf(apperrors.ErrDuplicateWord, http.StatusConflict, "%s (%s)", normalized, language)
	} else if !errors.Is(err, apperrors.ErrWordNotFound) {
		return nil, err
	}
	word, err := s.vocabStore.CreateWord(ctx, normalized, language)
	if err != nil {
		return nil, err
	}
	s.cache.Add(normalized)
	if s.metrics != nil {
		s.metrics.WordsCreatedTotal.Inc()
	}
	s.queue(ctx, nil, []string{normalized})
	return word, nil
}

// DeleteWord removes a word and discards it from the prefix cache.
func (s *Service) DeleteWord(ctx context.Context, spelling, language string) error {
	normalized := normalizeSpelling(spelling)
	word, err := s.vocabStore.FindWord(ctx, normalized, language)
	if err != nil {
		return err
	}
	if err := s.vocabStore.DeleteWord(ctx, word); err != nil {
		return err
	}
	if !s.spellingRemains(ctx, normalized) {
		s.cache.Discard(normalized)
	}
	s.queue(ctx, nil, []string{normalized})
	return nil
}

// SetIndexable marks or unmarks a word as a segmentation candidate. The
// prefix cache tracks indexable spellings only, so it follows the flag.
func (s *Service) SetIndexable(ctx context.Context, spelling, language string, indexable bool) error {
	normalized := normalizeSpelling(spelling)
	if err := s.vocabStore.SetWordIndexable(ctx, normalized, language, indexable); err != nil {
		return err
	}
	if indexable {
		s.cache.Add(normalized)
	} else if !s.spellingRemains(ctx, normalized) {
		s.cache.Discard(normalized)
	}
	s.queue(ctx, nil, []string{normalized})
	return nil
}

// CreateMeaning creates a meaning over normalized word refs, creating any
// missing words.
func (s *Service) CreateMeaning(ctx context.Context, words []vocab.WordRef) (*vocab.Meaning, error) {
	normalized := make([]vocab.WordRef, 0, len(words))
	for _, ref := range words {
		if err := vocab.ValidateLanguage(ref.Language); err != nil {
			return nil, err
		}
		spelling := normalizeSpelling(ref.Spelling)
		if spelling == "" {
			return nil, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "empty spelling")
		}
		normalized = append(normalized, vocab.WordRef{Language: ref.Language, Spelling: spelling})
	}
	meaning, err := s.vocabStore.CreateMeaning(ctx, normalized)
	if err != nil {
		return nil, err
	}
	spellings := make([]string, 0, len(normalized))
	for _, ref := range normalized {
		s.cache.Add(ref.Spelling)
		spellings = append(spellings, ref.Spelling)
	}
	if s.metrics != nil {
		s.metrics.MeaningsCreatedTotal.Inc()
	}
	s.queue(ctx, []int64{meaning.ID}, spellings)
	return meaning, nil
}

// JoinMeanings unions the words of all meanings into the survivor and
// retargets index rows, then queues the affected ids and spellings.
func (s *Service) JoinMeanings(ctx context.Context, survivorID int64, otherIDs []int64) (*vocab.Meaning, error) {
	if len(otherIDs) == 0 {
		return nil, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "join needs at least two meanings")
	}
	spellings := s.collectSpellings(ctx, append([]int64{survivorID}, otherIDs...))
	survivor, err := s.vocabStore.JoinMeanings(ctx, survivorID, otherIDs)
	if err != nil {
		return nil, err
	}
	s.logger.Info("meanings joined", "survivor", survivorID, "absorbed", len(otherIDs))
	s.queue(ctx, append([]int64{survivorID}, otherIDs...), spellings)
	return survivor, nil
}

// SplitMeaning redistributes a meaning's index rows among replacement
// meanings and deletes the source.
func (s *Service) SplitMeaning(ctx context.Context, sourceID int64, replacements [][]vocab.WordRef) ([]*vocab.Meaning, error) {
	if len(replacements) < 2 {
		return nil, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "split needs at least two replacements")
	}
	normalized := make([][]vocab.WordRef, 0, len(replacements))
	for _, group := range replacements {
		refs := make([]vocab.WordRef, 0, len(group))
		for _, ref := range group {
			if err := vocab.ValidateLanguage(ref.Language); err != nil {
				return nil, err
			}
			refs = append(refs, vocab.WordRef{Language: ref.Language, Spelling: normalizeSpelling(ref.Spelling)})
		}
		normalized = append(normalized, refs)
	}
	spellings := s.collectSpellings(ctx, []int64{sourceID})
	meanings, err := s.vocabStore.SplitMeaning(ctx, sourceID, normalized)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(meanings)+1)
	ids = append(ids, sourceID)
	for _, m := range meanings {
		ids = append(ids, m.ID)
		for _, w := range m.Words {
			s.cache.Add(w.NormalizedSpelling)
			spellings = append(spellings, w.NormalizedSpelling)
		}
	}
	s.logger.Info("meaning split", "source", sourceID, "replacements", len(meanings))
	s.queue(ctx, ids, spellings)
	return meanings, nil
}

// spellingRemains reports whether any word with the spelling still exists as
// a segmentation candidate after a mutation.
func (s *Service) spellingRemains(ctx context.Context, spelling string) bool {
	set, err := s.vocabStore.FindWordsWithPrefix(ctx, spelling)
	if err != nil {
		return true
	}
	_, ok := set[spelling]
	return ok
}

func (s *Service) collectSpellings(ctx context.Context, meaningIDs []int64) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, id := range meaningIDs {
		meaning, err := s.vocabStore.GetMeaning(ctx, id)
		if err != nil {
			continue
		}
		for _, spelling := range meaning.Spellings() {
			if _, dup := seen[spelling]; dup {
				continue
			}
			seen[spelling] = struct{}{}
			out = append(out, spelling)
		}
	}
	return out
}

func normalizeSpelling(s string) string {
	return tokenizer.Normalize(strings.TrimSpace(s))
}

func (s *Service) queue(ctx context.Context, meaningIDs []int64, spellings []string) {
	if s.changes == nil {
		return
	}
	if err := s.changes.QueueChanges(ctx, meaningIDs, spellings); err != nil {
		s.logger.Error("failed to queue reindex changes", "error", err)
	}
}
