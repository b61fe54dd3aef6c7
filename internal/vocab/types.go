// Package vocab defines the vocabulary data model shared by the engine and
// its stores: Words (normalized spellings in one language), Meanings
// (language-independent concepts linking synonymous words), documents, and
// the index entries connecting them.
package vocab

import (
	"fmt"
	"net/http"
	"regexp"
	"sort"
	"strings"

	apperrors "github.com/babelindex/babelindex/pkg/errors"
)

// Word is a normalized spelling in one language. Language may be empty for
// language-neutral entries such as names and figures. Words with
// Indexable=false are excluded from segmentation candidates but can still be
// found by exact lookup.
type Word struct {
	ID                 int64
	NormalizedSpelling string
	Language           string
	Indexable          bool
}

func (w Word) String() string {
	lang := w.Language
	if lang == "" {
		lang = "-"
	}
	return fmt.Sprintf("%s:%s", lang, w.NormalizedSpelling)
}

// WordRef identifies a word by (language, spelling) without requiring it to
// exist yet. Used when creating meanings.
type WordRef struct {
	Language string
	Spelling string
}

// Meaning is a language-independent concept: an identifier plus an unordered
// set of words across languages. A spelling may belong to several meanings;
// that ambiguity is preserved, never auto-resolved.
type Meaning struct {
	ID    int64
	Words []Word
}

// Spellings returns the sorted distinct spellings of the meaning's words.
func (m *Meaning) Spellings() []string {
	seen := make(map[string]struct{}, len(m.Words))
	for _, w := range m.Words {
		seen[w.NormalizedSpelling] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// DocumentRef is a tagged reference to an indexed document: a collection/type
// tag plus an opaque identifier. The index store resolves the tag to a
// concrete fetch, keeping the engine type-agnostic.
type DocumentRef struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

func (r DocumentRef) String() string {
	return r.Type + "/" + r.ID
}

// Less orders references by (type, id), the canonical index-store order.
func (r DocumentRef) Less(other DocumentRef) bool {
	if r.Type != other.Type {
		return r.Type < other.Type
	}
	return r.ID < other.ID
}

// Document is an indexable document: a reference plus its already-extracted
// text. Field extraction from richer document shapes happens at the adapter
// boundary, never in the engine.
type Document struct {
	Ref  DocumentRef `json:"ref"`
	Text string      `json:"text"`
}

// IndexEntry associates one candidate meaning with one 1-based token position
// of a document. Ambiguous tokens produce multiple entries for the same
// (document, position).
type IndexEntry struct {
	Document  DocumentRef
	Position  int
	MeaningID int64
}

var languagePattern = regexp.MustCompile(`^[a-z]{2,3}(-[a-z0-9]{1,8})?$`)

// ValidateLanguage rejects malformed language codes. The empty string is
// valid and means "no language".
func ValidateLanguage(code string) error {
	if code == "" {
		return nil
	}
	if len(code) > 5 || code != strings.ToLower(code) || !languagePattern.MatchString(code) {
		return apperrors.Newf(apperrors.ErrInvalidLanguage, http.StatusBadRequest, "language %q", code)
	}
	return nil
}
