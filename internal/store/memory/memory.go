// Package memory provides in-memory implementations of the store interfaces,
// used in tests and as a single-process deployment option.
package memory

import (
	"context"
	"net/http"
	"sort"
	"strings"
	"sync"

	"github.com/babelindex/babelindex/internal/vocab"
	apperrors "github.com/babelindex/babelindex/pkg/errors"
)

// Store implements VocabularyStore, DocumentIndexStore, and DocumentSource
// over process memory. All operations are safe for concurrent use.
type Store struct {
	mu            sync.RWMutex
	nextWordID    int64
	nextMeaningID int64
	words         map[wordKey]*vocab.Word
	meanings      map[int64]map[wordKey]struct{}
	entries       []vocab.IndexEntry
	documents     map[vocab.DocumentRef]string
}

type wordKey struct {
	spelling string
	language string
}

func New() *Store {
	return &Store{
		words:     make(map[wordKey]*vocab.Word),
		meanings:  make(map[int64]map[wordKey]struct{}),
		documents: make(map[vocab.DocumentRef]string),
	}
}

func (s *Store) FindWord(ctx context.Context, spelling, language string) (*vocab.Word, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.words[wordKey{spelling, language}]
	if !ok {
		return nil, apperrors.Newf(apperrors.ErrWordNotFound, http.StatusNotFound, "%s (%s)", spelling, language)
	}
	copied := *w
	return &copied, nil
}

func (s *Store) FindWordsWithPrefix(ctx context.Context, prefix string) (map[string]struct{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]struct{})
	for key, w := range s.words {
		if w.Indexable && strings.HasPrefix(key.spelling, prefix) {
			out[key.spelling] = struct{}{}
		}
	}
	return out, nil
}

func (s *Store) CreateWord(ctx context.Context, spelling, language string) (*vocab.Word, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createWordLocked(spelling, language)
}

func (s *Store) createWordLocked(spelling, language string) (*vocab.Word, error) {
	key := wordKey{spelling, language}
	if _, exists := s.words[key]; exists {
		return nil, apperrors.Newf(apperrors.ErrDuplicateWord, http.StatusConflict, "%s (%s)", spelling, language)
	}
	s.nextWordID++
	w := &vocab.Word{
		ID:                 s.nextWordID,
		NormalizedSpelling: spelling,
		Language:           language,
		Indexable:          true,
	}
	s.words[key] = w
	copied := *w
	return &copied, nil
}

func (s *Store) DeleteWord(ctx context.Context, word *vocab.Word) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := wordKey{word.NormalizedSpelling, word.Language}
	if _, ok := s.words[key]; !ok {
		return apperrors.Newf(apperrors.ErrWordNotFound, http.StatusNotFound, "%s (%s)", word.NormalizedSpelling, word.Language)
	}
	delete(s.words, key)
	for _, members := range s.meanings {
		delete(members, key)
	}
	return nil
}

func (s *Store) SetWordIndexable(ctx context.Context, spelling, language string, indexable bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.words[wordKey{spelling, language}]
	if !ok {
		return apperrors.Newf(apperrors.ErrWordNotFound, http.StatusNotFound, "%s (%s)", spelling, language)
	}
	w.Indexable = indexable
	return nil
}

func (s *Store) FindMeaningsBySpelling(ctx context.Context, spelling string) ([]*vocab.Meaning, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*vocab.Meaning
	for id, members := range s.meanings {
		for key := range members {
			if key.spelling == spelling {
				out = append(out, s.meaningLocked(id))
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) GetMeaning(ctx context.Context, id int64) (*vocab.Meaning, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.meanings[id]; !ok {
		return nil, apperrors.Newf(apperrors.ErrMeaningNotFound, http.StatusNotFound, "meaning %d", id)
	}
	return s.meaningLocked(id), nil
}

func (s *Store) CreateMeaning(ctx context.Context, words []vocab.WordRef) (*vocab.Meaning, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextMeaningID++
	id := s.nextMeaningID
	members := make(map[wordKey]struct{}, len(words))
	for _, ref := range words {
		key := wordKey{ref.Spelling, ref.Language}
		if _, exists := s.words[key]; !exists {
			if _, err := s.createWordLocked(ref.Spelling, ref.Language); err != nil {
				return nil, err
			}
		}
		members[key] = struct{}{}
	}
	s.meanings[id] = members
	return s.meaningLocked(id), nil
}

func (s *Store) JoinMeanings(ctx context.Context, survivorID int64, otherIDs []int64) (*vocab.Meaning, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	survivor, ok := s.meanings[survivorID]
	if !ok {
		return nil, apperrors.Newf(apperrors.ErrMeaningNotFound, http.StatusNotFound, "meaning %d", survivorID)
	}
	retargeted := make(map[int64]struct{}, len(otherIDs))
	for _, id := range otherIDs {
		members, ok := s.meanings[id]
		if !ok {
			return nil, apperrors.Newf(apperrors.ErrMeaningNotFound, http.StatusNotFound, "meaning %d", id)
		}
		for key := range members {
			survivor[key] = struct{}{}
		}
		delete(s.meanings, id)
		retargeted[id] = struct{}{}
	}
	for i := range s.entries {
		if _, ok := retargeted[s.entries[i].MeaningID]; ok {
			s.entries[i].MeaningID = survivorID
		}
	}
	s.entries = dedupe(s.entries)
	return s.meaningLocked(survivorID), nil
}

func (s *Store) SplitMeaning(ctx context.Context, sourceID int64, replacements [][]vocab.WordRef) ([]*vocab.Meaning, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.meanings[sourceID]; !ok {
		return nil, apperrors.Newf(apperrors.ErrMeaningNotFound, http.StatusNotFound, "meaning %d", sourceID)
	}
	out := make([]*vocab.Meaning, 0, len(replacements))
	ids := make([]int64, 0, len(replacements))
	for _, group := range replacements {
		s.nextMeaningID++
		id := s.nextMeaningID
		members := make(map[wordKey]struct{}, len(group))
		for _, ref := range group {
			key := wordKey{ref.Spelling, ref.Language}
			if _, exists := s.words[key]; !exists {
				if _, err := s.createWordLocked(ref.Spelling, ref.Language); err != nil {
					return nil, err
				}
			}
			members[key] = struct{}{}
		}
		s.meanings[id] = members
		ids = append(ids, id)
	}
	var moved []vocab.IndexEntry
	kept := s.entries[:0]
	for _, e := range s.entries {
		if e.MeaningID == sourceID {
			for _, id := range ids {
				moved = append(moved, vocab.IndexEntry{Document: e.Document, Position: e.Position, MeaningID: id})
			}
			continue
		}
		kept = append(kept, e)
	}
	s.entries = dedupe(append(kept, moved...))
	delete(s.meanings, sourceID)
	for _, id := range ids {
		out = append(out, s.meaningLocked(id))
	}
	return out, nil
}

func (s *Store) DeleteIndexEntries(ctx context.Context, doc vocab.DocumentRef) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.entries[:0]
	for _, e := range s.entries {
		if e.Document != doc {
			kept = append(kept, e)
		}
	}
	s.entries = kept
	return nil
}

func (s *Store) CreateIndexEntry(ctx context.Context, doc vocab.DocumentRef, position int, meaningID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, vocab.IndexEntry{Document: doc, Position: position, MeaningID: meaningID})
	s.entries = dedupe(s.entries)
	return nil
}

func (s *Store) FindIndexEntries(ctx context.Context, meaningIDs []int64, docType string) ([]vocab.IndexEntry, error) {
	wanted := make(map[int64]struct{}, len(meaningIDs))
	for _, id := range meaningIDs {
		wanted[id] = struct{}{}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []vocab.IndexEntry
	for _, e := range s.entries {
		if docType != "" && e.Document.Type != docType {
			continue
		}
		if _, ok := wanted[e.MeaningID]; ok {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Document != out[j].Document {
			return out[i].Document.Less(out[j].Document)
		}
		if out[i].Position != out[j].Position {
			return out[i].Position < out[j].Position
		}
		return out[i].MeaningID < out[j].MeaningID
	})
	return out, nil
}

func (s *Store) GetDocument(ctx context.Context, ref vocab.DocumentRef) (*vocab.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	text, ok := s.documents[ref]
	if !ok {
		return nil, apperrors.Newf(apperrors.ErrDocumentNotFound, http.StatusNotFound, "%s", ref)
	}
	return &vocab.Document{Ref: ref, Text: text}, nil
}

func (s *Store) PutDocument(ctx context.Context, doc vocab.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.documents[doc.Ref] = doc.Text
	return nil
}

func (s *Store) DeleteDocument(ctx context.Context, ref vocab.DocumentRef) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.documents, ref)
	return nil
}

func (s *Store) ListDocuments(ctx context.Context, after vocab.DocumentRef, limit int) ([]vocab.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	refs := make([]vocab.DocumentRef, 0, len(s.documents))
	for ref := range s.documents {
		if after == (vocab.DocumentRef{}) || after.Less(ref) {
			refs = append(refs, ref)
		}
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].Less(refs[j]) })
	if limit > 0 && len(refs) > limit {
		refs = refs[:limit]
	}
	out := make([]vocab.Document, 0, len(refs))
	for _, ref := range refs {
		out = append(out, vocab.Document{Ref: ref, Text: s.documents[ref]})
	}
	return out, nil
}

func (s *Store) meaningLocked(id int64) *vocab.Meaning {
	members := s.meanings[id]
	m := &vocab.Meaning{ID: id, Words: make([]vocab.Word, 0, len(members))}
	for key := range members {
		if w, ok := s.words[key]; ok {
			m.Words = append(m.Words, *w)
		} else {
			m.Words = append(m.Words, vocab.Word{NormalizedSpelling: key.spelling, Language: key.language, Indexable: true})
		}
	}
	sort.Slice(m.Words, func(i, j int) bool {
		if m.Words[i].Language != m.Words[j].Language {
			return m.Words[i].Language < m.Words[j].Language
		}
		return m.Words[i].NormalizedSpelling < m.Words[j].NormalizedSpelling
	})
	return m
}

func dedupe(entries []vocab.IndexEntry) []vocab.IndexEntry {
	seen := make(map[vocab.IndexEntry]struct{}, len(entries))
	out := entries[:0]
	for _, e := range entries {
		if _, ok := seen[e]; ok {
			continue
		}
		seen[e] = struct{}{}
		out = append(out, e)
	}
	return out
}
