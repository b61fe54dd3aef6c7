package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/babelindex/babelindex/internal/vocab"
	apperrors "github.com/babelindex/babelindex/pkg/errors"
)

func TestCreateAndFindWord(t *testing.T) {
	st := New()
	ctx := context.Background()

	created, err := st.CreateWord(ctx, "kissa", "fi")
	require.NoError(t, err)
	assert.True(t, created.Indexable)

	found, err := st.FindWord(ctx, "kissa", "fi")
	require.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)

	_, err = st.FindWord(ctx, "kissa", "sv")
	assert.ErrorIs(t, err, apperrors.ErrWordNotFound)

	_, err = st.CreateWord(ctx, "kissa", "fi")
	assert.ErrorIs(t, err, apperrors.ErrDuplicateWord)
}

func TestSameSpellingAcrossLanguages(t *testing.T) {
	st := New()
	ctx := context.Background()

	_, err := st.CreateWord(ctx, "piano", "fi")
	require.NoError(t, err)
	_, err = st.CreateWord(ctx, "piano", "en")
	require.NoError(t, err)
}

func TestFindWordsWithPrefixExcludesNonIndexable(t *testing.T) {
	st := New()
	ctx := context.Background()

	for _, spelling := range []string{"piano", "pieni", "konsertto"} {
		_, err := st.CreateWord(ctx, spelling, "fi")
		require.NoError(t, err)
	}
	require.NoError(t, st.SetWordIndexable(ctx, "pieni", "fi", false))

	spellings, err := st.FindWordsWithPrefix(ctx, "pi")
	require.NoError(t, err)
	assert.Equal(t, map[string]struct{}{"piano": {}}, spellings)

	// exact lookup still finds the non-indexable word
	_, err = st.FindWord(ctx, "pieni", "fi")
	require.NoError(t, err)
}

func TestCreateMeaningReusesWords(t *testing.T) {
	st := New()
	ctx := context.Background()

	existing, err := st.CreateWord(ctx, "piano", "fi")
	require.NoError(t, err)

	m, err := st.CreateMeaning(ctx, []vocab.WordRef{
		{Language: "fi", Spelling: "piano"},
		{Language: "en", Spelling: "piano"},
	})
	require.NoError(t, err)
	require.Len(t, m.Words, 2)

	reused, err := st.FindWord(ctx, "piano", "fi")
	require.NoError(t, err)
	assert.Equal(t, existing.ID, reused.ID)
}

func TestFindMeaningsBySpelling(t *testing.T) {
	st := New()
	ctx := context.Background()

	m1, err := st.CreateMeaning(ctx, []vocab.WordRef{{Language: "en", Spelling: "bank"}})
	require.NoError(t, err)
	m2, err := st.CreateMeaning(ctx, []vocab.WordRef{
		{Language: "en", Spelling: "bank"},
		{Language: "fi", Spelling: "pankki"},
	})
	require.NoError(t, err)

	meanings, err := st.FindMeaningsBySpelling(ctx, "bank")
	require.NoError(t, err)
	require.Len(t, meanings, 2)
	assert.Equal(t, m1.ID, meanings[0].ID)
	assert.Equal(t, m2.ID, meanings[1].ID)

	meanings, err = st.FindMeaningsBySpelling(ctx, "pankki")
	require.NoError(t, err)
	require.Len(t, meanings, 1)
	assert.Equal(t, m2.ID, meanings[0].ID)
}

func TestJoinMeaningsRetargetsEntries(t *testing.T) {
	st := New()
	ctx := context.Background()

	m1, err := st.CreateMeaning(ctx, []vocab.WordRef{{Language: "en", Spelling: "car"}})
	require.NoError(t, err)
	m2, err := st.CreateMeaning(ctx, []vocab.WordRef{{Language: "fi", Spelling: "auto"}})
	require.NoError(t, err)

	ref := vocab.DocumentRef{Type: "ad", ID: "1"}
	require.NoError(t, st.CreateIndexEntry(ctx, ref, 1, m2.ID))

	survivor, err := st.JoinMeanings(ctx, m1.ID, []int64{m2.ID})
	require.NoError(t, err)
	assert.Equal(t, []string{"auto", "car"}, survivor.Spellings())

	_, err = st.GetMeaning(ctx, m2.ID)
	assert.ErrorIs(t, err, apperrors.ErrMeaningNotFound)

	entries, err := st.FindIndexEntries(ctx, []int64{m1.ID, m2.ID}, "")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, m1.ID, entries[0].MeaningID)
}

func TestJoinMeaningsDeduplicatesEntries(t *testing.T) {
	st := New()
	ctx := context.Background()

	m1, err := st.CreateMeaning(ctx, []vocab.WordRef{{Language: "en", Spelling: "car"}})
	require.NoError(t, err)
	m2, err := st.CreateMeaning(ctx, []vocab.WordRef{{Language: "fi", Spelling: "auto"}})
	require.NoError(t, err)

	// both meanings indexed at the same position collapse to one row
	ref := vocab.DocumentRef{Type: "ad", ID: "1"}
	require.NoError(t, st.CreateIndexEntry(ctx, ref, 1, m1.ID))
	require.NoError(t, st.CreateIndexEntry(ctx, ref, 1, m2.ID))

	_, err = st.JoinMeanings(ctx, m1.ID, []int64{m2.ID})
	require.NoError(t, err)

	entries, err := st.FindIndexEntries(ctx, []int64{m1.ID}, "")
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestSplitMeaningDuplicatesEntries(t *testing.T) {
	st := New()
	ctx := context.Background()

	source, err := st.CreateMeaning(ctx, []vocab.WordRef{
		{Language: "en", Spelling: "bank"},
		{Language: "fi", Spelling: "pankki"},
	})
	require.NoError(t, err)
	ref := vocab.DocumentRef{Type: "doc", ID: "1"}
	require.NoError(t, st.CreateIndexEntry(ctx, ref, 3, source.ID))

	replacements, err := st.SplitMeaning(ctx, source.ID, [][]vocab.WordRef{
		{{Language: "en", Spelling: "bank"}},
		{{Language: "fi", Spelling: "pankki"}},
	})
	require.NoError(t, err)
	require.Len(t, replacements, 2)

	_, err = st.GetMeaning(ctx, source.ID)
	assert.ErrorIs(t, err, apperrors.ErrMeaningNotFound)

	for _, m := range replacements {
		entries, err := st.FindIndexEntries(ctx, []int64{m.ID}, "")
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, 3, entries[0].Position)
		assert.Equal(t, ref, entries[0].Document)
	}
}

func TestIndexEntryLifecycle(t *testing.T) {
	st := New()
	ctx := context.Background()
	ref := vocab.DocumentRef{Type: "doc", ID: "1"}
	other := vocab.DocumentRef{Type: "doc", ID: "2"}

	require.NoError(t, st.CreateIndexEntry(ctx, ref, 1, 10))
	require.NoError(t, st.CreateIndexEntry(ctx, ref, 1, 10)) // duplicate row
	require.NoError(t, st.CreateIndexEntry(ctx, ref, 2, 11))
	require.NoError(t, st.CreateIndexEntry(ctx, other, 1, 10))

	entries, err := st.FindIndexEntries(ctx, []int64{10, 11}, "doc")
	require.NoError(t, err)
	assert.Len(t, entries, 3)

	require.NoError(t, st.DeleteIndexEntries(ctx, ref))
	entries, err = st.FindIndexEntries(ctx, []int64{10, 11}, "")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, other, entries[0].Document)
}

func TestDocumentSource(t *testing.T) {
	st := New()
	ctx := context.Background()

	docs := []vocab.Document{
		{Ref: vocab.DocumentRef{Type: "album", ID: "2"}, Text: "b"},
		{Ref: vocab.DocumentRef{Type: "album", ID: "1"}, Text: "a"},
		{Ref: vocab.DocumentRef{Type: "book", ID: "1"}, Text: "c"},
	}
	for _, doc := range docs {
		require.NoError(t, st.PutDocument(ctx, doc))
	}

	got, err := st.GetDocument(ctx, docs[1].Ref)
	require.NoError(t, err)
	assert.Equal(t, "a", got.Text)

	_, err = st.GetDocument(ctx, vocab.DocumentRef{Type: "book", ID: "9"})
	assert.ErrorIs(t, err, apperrors.ErrDocumentNotFound)

	page, err := st.ListDocuments(ctx, vocab.DocumentRef{}, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "album/1", page[0].Ref.String())
	assert.Equal(t, "album/2", page[1].Ref.String())

	page, err = st.ListDocuments(ctx, page[1].Ref, 2)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "book/1", page[0].Ref.String())

	require.NoError(t, st.DeleteDocument(ctx, docs[2].Ref))
	require.NoError(t, st.DeleteDocument(ctx, docs[2].Ref)) // absent is fine
	_, err = st.GetDocument(ctx, docs[2].Ref)
	assert.ErrorIs(t, err, apperrors.ErrDocumentNotFound)
}
