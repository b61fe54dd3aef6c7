package vocabadmin

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/babelindex/babelindex/internal/engine/prefixcache"
	"github.com/babelindex/babelindex/internal/store/memory"
	"github.com/babelindex/babelindex/internal/vocab"
	apperrors "github.com/babelindex/babelindex/pkg/errors"
)

type capturedChange struct {
	meaningIDs []int64
	spellings  []string
}

type fakeQueue struct {
	changes []capturedChange
}

func (q *fakeQueue) QueueChanges(_ context.Context, meaningIDs []int64, spellings []string) error {
	q.changes = append(q.changes, capturedChange{meaningIDs: meaningIDs, spellings: spellings})
	return nil
}

func newService(t *testing.T) (*Service, *memory.Store, *prefixcache.Cache, *fakeQueue) {
	t.Helper()
	st := memory.New()
	cache := prefixcache.New(st, 2, nil)
	queue := &fakeQueue{}
	return New(st, cache, queue, nil), st, cache, queue
}

func TestCreateWordNormalizes(t *testing.T) {
	svc, st, cache, queue := newService(t)
	ctx := context.Background()

	word, err := svc.CreateWord(ctx, "Martinů", "cs")
	require.NoError(t, err)
	assert.Equal(t, "martinu", word.NormalizedSpelling)

	_, err = st.FindWord(ctx, "martinu", "cs")
	require.NoError(t, err)

	ok, err := cache.Contains(ctx, "martinu")
	require.NoError(t, err)
	assert.True(t, ok)

	require.Len(t, queue.changes, 1)
	assert.Equal(t, []string{"martinu"}, queue.changes[0].spellings)
}

func TestCreateWordRejectsDuplicates(t *testing.T) {
	svc, _, _, _ := newService(t)
	ctx := context.Background()

	_, err := svc.CreateWord(ctx, "piano", "fi")
	require.NoError(t, err)

	// a case variant collides after normalization
	_, err = svc.CreateWord(ctx, "PIANO", "fi")
	assert.ErrorIs(t, err, apperrors.ErrDuplicateWord)

	// same spelling in another language is fine
	_, err = svc.CreateWord(ctx, "piano", "en")
	require.NoError(t, err)
}

func TestCreateWordValidation(t *testing.T) {
	svc, _, _, _ := newService(t)
	ctx := context.Background()

	_, err := svc.CreateWord(ctx, "piano", "Finnish")
	assert.ErrorIs(t, err, apperrors.ErrInvalidLanguage)

	_, err = svc.CreateWord(ctx, "", "fi")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestDeleteWord(t *testing.T) {
	svc, st, cache, _ := newService(t)
	ctx := context.Background()

	_, err := svc.CreateWord(ctx, "piano", "fi")
	require.NoError(t, err)
	require.NoError(t, svc.DeleteWord(ctx, "piano", "fi"))

	_, err = st.FindWord(ctx, "piano", "fi")
	assert.ErrorIs(t, err, apperrors.ErrWordNotFound)

	ok, err := cache.Contains(ctx, "piano")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDeleteWordKeepsSharedSpelling(t *testing.T) {
	svc, _, cache, _ := newService(t)
	ctx := context.Background()

	_, err := svc.CreateWord(ctx, "piano", "fi")
	require.NoError(t, err)
	_, err = svc.CreateWord(ctx, "piano", "en")
	require.NoError(t, err)

	require.NoError(t, svc.DeleteWord(ctx, "piano", "fi"))

	ok, err := cache.Contains(ctx, "piano")
	require.NoError(t, err)
	assert.True(t, ok, "spelling still exists in another language")
}

func TestSetIndexable(t *testing.T) {
	svc, st, cache, _ := newService(t)
	ctx := context.Background()

	_, err := svc.CreateWord(ctx, "piano", "fi")
	require.NoError(t, err)

	require.NoError(t, svc.SetIndexable(ctx, "piano", "fi", false))
	ok, err := cache.Contains(ctx, "piano")
	require.NoError(t, err)
	assert.False(t, ok)

	word, err := st.FindWord(ctx, "piano", "fi")
	require.NoError(t, err)
	assert.False(t, word.Indexable)

	require.NoError(t, svc.SetIndexable(ctx, "piano", "fi", true))
	ok, err = cache.Contains(ctx, "piano")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCreateMeaning(t *testing.T) {
	svc, _, _, queue := newService(t)
	ctx := context.Background()

	meaning, err := svc.CreateMeaning(ctx, []vocab.WordRef{
		{Language: "fi", Spelling: "Kissa"},
		{Language: "en", Spelling: "CAT"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"cat", "kissa"}, meaning.Spellings())

	require.Len(t, queue.changes, 1)
	assert.Equal(t, []int64{meaning.ID}, queue.changes[0].meaningIDs)
	assert.ElementsMatch(t, []string{"kissa", "cat"}, queue.changes[0].spellings)
}

func TestJoinMeanings(t *testing.T) {
	svc, st, _, queue := newService(t)
	ctx := context.Background()

	m1, err := svc.CreateMeaning(ctx, []vocab.WordRef{{Language: "en", Spelling: "car"}})
	require.NoError(t, err)
	m2, err := svc.CreateMeaning(ctx, []vocab.WordRef{{Language: "fi", Spelling: "auto"}})
	require.NoError(t, err)
	queue.changes = nil

	survivor, err := svc.JoinMeanings(ctx, m1.ID, []int64{m2.ID})
	require.NoError(t, err)
	assert.Equal(t, []string{"auto", "car"}, survivor.Spellings())

	_, err = st.GetMeaning(ctx, m2.ID)
	assert.ErrorIs(t, err, apperrors.ErrMeaningNotFound)

	require.Len(t, queue.changes, 1)
	assert.ElementsMatch(t, []int64{m1.ID, m2.ID}, queue.changes[0].meaningIDs)
	assert.ElementsMatch(t, []string{"car", "auto"}, queue.changes[0].spellings)
}

func TestJoinMeaningsNeedsOthers(t *testing.T) {
	svc, _, _, _ := newService(t)
	_, err := svc.JoinMeanings(context.Background(), 1, nil)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestSplitMeaning(t *testing.T) {
	svc, st, _, queue := newService(t)
	ctx := context.Background()

	source, err := svc.CreateMeaning(ctx, []vocab.WordRef{
		{Language: "en", Spelling: "bank"},
		{Language: "fi", Spelling: "pankki"},
	})
	require.NoError(t, err)
	queue.changes = nil

	replacements, err := svc.SplitMeaning(ctx, source.ID, [][]vocab.WordRef{
		{{Language: "en", Spelling: "bank"}},
		{{Language: "fi", Spelling: "pankki"}},
	})
	require.NoError(t, err)
	require.Len(t, replacements, 2)

	_, err = st.GetMeaning(ctx, source.ID)
	assert.ErrorIs(t, err, apperrors.ErrMeaningNotFound)

	require.Len(t, queue.changes, 1)
	assert.Contains(t, queue.changes[0].meaningIDs, source.ID)
	assert.Len(t, queue.changes[0].meaningIDs, 3)
}

func TestSplitMeaningNeedsTwoGroups(t *testing.T) {
	svc, _, _, _ := newService(t)
	_, err := svc.SplitMeaning(context.Background(), 1, [][]vocab.WordRef{{{Spelling: "x"}}})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}
