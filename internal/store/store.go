// Package store defines the narrow interfaces through which the engine
// consumes its persistence collaborators. The engine never manages
// transactions or triggers itself; implementations own atomicity (for
// example, delete-then-create of a document's index rows must not be
// observed half-done by a concurrent scorer).
package store

import (
	"context"

	"github.com/babelindex/babelindex/internal/vocab"
)

// VocabularyStore holds Words and Meanings.
type VocabularyStore interface {
	// FindWord returns the word with the exact (spelling, language) pair,
	// or ErrWordNotFound. Non-indexable words are still found here.
	FindWord(ctx context.Context, spelling, language string) (*vocab.Word, error)

	// FindWordsWithPrefix returns the set of indexable spellings starting
	// with prefix. Non-indexable spellings are excluded so they never become
	// segmentation candidates.
	FindWordsWithPrefix(ctx context.Context, prefix string) (map[string]struct{}, error)

	// CreateWord creates a word, rejecting duplicates of (spelling, language)
	// with ErrDuplicateWord. New words are indexable.
	CreateWord(ctx context.Context, spelling, language string) (*vocab.Word, error)

	// DeleteWord removes the word; its meanings keep their other words.
	DeleteWord(ctx context.Context, word *vocab.Word) error

	// SetWordIndexable marks or unmarks a spelling/language pair as a
	// segmentation candidate.
	SetWordIndexable(ctx context.Context, spelling, language string, indexable bool) error

	// FindMeaningsBySpelling returns every meaning containing a word with the
	// given spelling, in any language. An empty result is not an error.
	FindMeaningsBySpelling(ctx context.Context, spelling string) ([]*vocab.Meaning, error)

	// GetMeaning returns the meaning by id, or ErrMeaningNotFound.
	GetMeaning(ctx context.Context, id int64) (*vocab.Meaning, error)

	// CreateMeaning creates a meaning over the given words, creating any
	// words that do not exist yet and reusing those that do.
	CreateMeaning(ctx context.Context, words []vocab.WordRef) (*vocab.Meaning, error)

	// JoinMeanings moves all words of the other meanings into the survivor,
	// retargets their index entries to the survivor, and deletes them.
	JoinMeanings(ctx context.Context, survivorID int64, otherIDs []int64) (*vocab.Meaning, error)

	// SplitMeaning replaces the source meaning with one meaning per word
	// group, duplicates every index entry of the source across all
	// replacements, and deletes the source.
	SplitMeaning(ctx context.Context, sourceID int64, replacements [][]vocab.WordRef) ([]*vocab.Meaning, error)
}

// DocumentIndexStore holds the (document, position, meaning) rows produced
// by indexing.
type DocumentIndexStore interface {
	// DeleteIndexEntries removes every entry of the document.
	DeleteIndexEntries(ctx context.Context, doc vocab.DocumentRef) error

	// CreateIndexEntry writes one row; position is 1-based and multiple
	// meanings may share a (document, position).
	CreateIndexEntry(ctx context.Context, doc vocab.DocumentRef, position int, meaningID int64) error

	// FindIndexEntries returns distinct rows whose meaning is among
	// meaningIDs, sorted by (document, position). An empty docType matches
	// every document type.
	FindIndexEntries(ctx context.Context, meaningIDs []int64, docType string) ([]vocab.IndexEntry, error)
}

// DocumentSource stores the indexed documents themselves, so search results
// can be resolved to documents and the reindexer can walk the corpus.
type DocumentSource interface {
	// GetDocument returns the document, or ErrDocumentNotFound.
	GetDocument(ctx context.Context, ref vocab.DocumentRef) (*vocab.Document, error)

	// PutDocument creates or replaces a document.
	PutDocument(ctx context.Context, doc vocab.Document) error

	// DeleteDocument removes a document; deleting an absent document is not
	// an error.
	DeleteDocument(ctx context.Context, ref vocab.DocumentRef) error

	// ListDocuments pages through all documents in (type, id) order,
	// returning up to limit documents strictly after the given reference.
	// A zero-valued after starts from the beginning.
	ListDocuments(ctx context.Context, after vocab.DocumentRef, limit int) ([]vocab.Document, error)
}
