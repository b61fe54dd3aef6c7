package resolver

import (
	"context"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/babelindex/babelindex/internal/engine/prefixcache"
	"github.com/babelindex/babelindex/internal/engine/segmenter"
	"github.com/babelindex/babelindex/internal/store/memory"
	"github.com/babelindex/babelindex/internal/vocab"
)

func newResolver(t *testing.T) (*Resolver, *memory.Store) {
	t.Helper()
	st := memory.New()
	cache := prefixcache.New(st, 2, nil)
	seg := segmenter.New(cache, segmenter.DefaultConfig(), nil)
	return New(st, cache, seg, nil), st
}

func mustCreateMeaning(t *testing.T, st *memory.Store, refs ...vocab.WordRef) *vocab.Meaning {
	t.Helper()
	m, err := st.CreateMeaning(context.Background(), refs)
	require.NoError(t, err)
	return m
}

func TestLookupExact(t *testing.T) {
	r, st := newResolver(t)
	ctx := context.Background()
	piano := mustCreateMeaning(t, st,
		vocab.WordRef{Language: "fi", Spelling: "piano"},
		vocab.WordRef{Language: "en", Spelling: "piano"},
	)

	meanings, err := r.LookupExact(ctx, "piano")
	require.NoError(t, err)
	require.Len(t, meanings, 1)
	assert.Equal(t, piano.ID, meanings[0].ID)

	meanings, err = r.LookupExact(ctx, "tuba")
	require.NoError(t, err)
	assert.Empty(t, meanings)
}

func TestLookupUnionsMeanings(t *testing.T) {
	r, st := newResolver(t)
	ctx := context.Background()
	musta := mustCreateMeaning(t, st, vocab.WordRef{Language: "fi", Spelling: "musta"})
	kissa := mustCreateMeaning(t, st, vocab.WordRef{Language: "fi", Spelling: "kissa"})

	result, err := r.Lookup(ctx, []string{"musta", "kissa", "musta"}, false)
	require.NoError(t, err)
	assert.Len(t, result.Meanings, 2)
	assert.Contains(t, result.Meanings, musta.ID)
	assert.Contains(t, result.Meanings, kissa.ID)
	assert.Equal(t, map[string]struct{}{"musta": {}, "kissa": {}}, result.FoundSpellings)
}

func TestLookupUnmatchedTokenSkipped(t *testing.T) {
	r, st := newResolver(t)
	ctx := context.Background()
	mustCreateMeaning(t, st, vocab.WordRef{Language: "fi", Spelling: "kissa"})

	result, err := r.Lookup(ctx, []string{"kissa", "zebra"}, false)
	require.NoError(t, err)
	assert.Len(t, result.Meanings, 1)
	assert.Equal(t, map[string]struct{}{"kissa": {}}, result.FoundSpellings)
}

func TestLookupCreateMissing(t *testing.T) {
	r, st := newResolver(t)
	ctx := context.Background()

	result, err := r.Lookup(ctx, []string{"tapiola"}, true)
	require.NoError(t, err)
	assert.Len(t, result.Meanings, 1)
	assert.Equal(t, map[string]struct{}{"tapiola": {}}, result.FoundSpellings)

	word, err := st.FindWord(ctx, "tapiola", "")
	require.NoError(t, err)
	assert.True(t, word.Indexable)
	assert.Empty(t, word.Language)

	// the new spelling is visible without reseeding the cache
	ok, err := r.Cache().Contains(ctx, "tapiola")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLookupOrderedKeepsPositions(t *testing.T) {
	r, st := newResolver(t)
	ctx := context.Background()
	musta := mustCreateMeaning(t, st, vocab.WordRef{Language: "fi", Spelling: "musta"})
	kissa := mustCreateMeaning(t, st, vocab.WordRef{Language: "fi", Spelling: "kissa"})

	result, err := r.LookupOrdered(ctx, []string{"musta", "zebra", "kissa", "musta"}, false)
	require.NoError(t, err)

	require.Equal(t, 4, result.Positions.Len())
	assert.Equal(t, []int64{musta.ID}, result.Positions.Get(0))
	assert.Empty(t, result.Positions.Get(1))
	assert.Equal(t, []int64{kissa.ID}, result.Positions.Get(2))
	assert.Equal(t, []int64{musta.ID}, result.Positions.Get(3))

	// repeated token counts its meaning in two positions
	assert.Equal(t, 2, result.Positions.Flat().Count(musta.ID))
}

func TestLookupOrderedHomonyms(t *testing.T) {
	r, st := newResolver(t)
	ctx := context.Background()
	bank1 := mustCreateMeaning(t, st, vocab.WordRef{Language: "en", Spelling: "bank"})
	bank2 := mustCreateMeaning(t, st,
		vocab.WordRef{Language: "en", Spelling: "bank"},
		vocab.WordRef{Language: "fi", Spelling: "pankki"},
	)

	result, err := r.LookupOrdered(ctx, []string{"bank"}, false)
	require.NoError(t, err)

	ids := result.Positions.Get(0)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	assert.Equal(t, []int64{bank1.ID, bank2.ID}, ids)
}

func TestLookupSegmentsCompounds(t *testing.T) {
	r, st := newResolver(t)
	ctx := context.Background()
	piano := mustCreateMeaning(t, st, vocab.WordRef{Language: "fi", Spelling: "piano"})
	konsertto := mustCreateMeaning(t, st, vocab.WordRef{Language: "fi", Spelling: "konsertto"})

	result, err := r.LookupOrdered(ctx, []string{"pianokonsertto"}, false)
	require.NoError(t, err)

	require.Equal(t, 1, result.Positions.Len())
	ids := result.Positions.Get(0)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	assert.Equal(t, []int64{piano.ID, konsertto.ID}, ids)
	assert.Equal(t, map[string]struct{}{"piano": {}, "konsertto": {}}, result.FoundSpellings)
}

func TestLookupExactNonIndexable(t *testing.T) {
	r, st := newResolver(t)
	ctx := context.Background()
	the := mustCreateMeaning(t, st, vocab.WordRef{Language: "en", Spelling: "the"})
	require.NoError(t, st.SetWordIndexable(ctx, "the", "en", false))

	meanings, err := r.LookupExact(ctx, "the")
	require.NoError(t, err)
	require.Len(t, meanings, 1)
	assert.Equal(t, the.ID, meanings[0].ID)
}

func TestLookupNonIndexableWholeTokenOnly(t *testing.T) {
	r, st := newResolver(t)
	ctx := context.Background()
	mustCreateMeaning(t, st, vocab.WordRef{Language: "fi", Spelling: "piano"})
	konsertto := mustCreateMeaning(t, st, vocab.WordRef{Language: "fi", Spelling: "konsertto"})
	require.NoError(t, st.SetWordIndexable(ctx, "konsertto", "fi", false))

	// the spelling still matches on its own
	result, err := r.LookupOrdered(ctx, []string{"konsertto"}, false)
	require.NoError(t, err)
	assert.Equal(t, []int64{konsertto.ID}, result.Positions.Get(0))
	assert.Equal(t, map[string]struct{}{"konsertto": {}}, result.FoundSpellings)

	// but never serves as a compound part
	result, err = r.LookupOrdered(ctx, []string{"pianokonsertto"}, false)
	require.NoError(t, err)
	assert.Empty(t, result.Positions.Get(0))
}

func TestLookupCreateMissingReusesExistingWord(t *testing.T) {
	r, st := newResolver(t)
	ctx := context.Background()
	the := mustCreateMeaning(t, st, vocab.WordRef{Language: "en", Spelling: "the"})
	require.NoError(t, st.SetWordIndexable(ctx, "the", "en", false))

	result, err := r.Lookup(ctx, []string{"the"}, true)
	require.NoError(t, err)
	require.Len(t, result.Meanings, 1)
	assert.Contains(t, result.Meanings, the.ID)

	// no second meaning was minted for the existing spelling
	meanings, err := st.FindMeaningsBySpelling(ctx, "the")
	require.NoError(t, err)
	assert.Len(t, meanings, 1)
}

func TestLookupSentence(t *testing.T) {
	r, st := newResolver(t)
	ctx := context.Background()
	saens := mustCreateMeaning(t, st, vocab.WordRef{Spelling: "saens"})

	result, err := r.LookupSentence(ctx, "Saint-Saëns!")
	require.NoError(t, err)
	require.Equal(t, 2, result.Positions.Len())
	assert.Empty(t, result.Positions.Get(0))
	assert.Equal(t, []int64{saens.ID}, result.Positions.Get(1))
}
