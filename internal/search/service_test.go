package search

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/babelindex/babelindex/internal/engine/prefixcache"
	"github.com/babelindex/babelindex/internal/engine/resolver"
	"github.com/babelindex/babelindex/internal/engine/scorer"
	"github.com/babelindex/babelindex/internal/engine/segmenter"
	"github.com/babelindex/babelindex/internal/indexer"
	"github.com/babelindex/babelindex/internal/store/memory"
	"github.com/babelindex/babelindex/internal/vocab"
	"github.com/babelindex/babelindex/pkg/config"
	apperrors "github.com/babelindex/babelindex/pkg/errors"
)

func newService(t *testing.T) (*Service, *indexer.Indexer) {
	t.Helper()
	st := memory.New()
	cache := prefixcache.New(st, 2, nil)
	seg := segmenter.New(cache, segmenter.DefaultConfig(), nil)
	res := resolver.New(st, cache, seg, nil)
	sc := scorer.New(st, nil)
	ix := indexer.New(res, st, st, nil, nil)
	cfg := config.SearchConfig{DefaultLimit: 50, MaxResults: 500}
	return New(res, sc, st, nil, cfg, nil), ix
}

func indexAll(t *testing.T, ix *indexer.Indexer, docs ...vocab.Document) {
	t.Helper()
	for _, doc := range docs {
		require.NoError(t, ix.IndexDocument(context.Background(), doc))
	}
}

func TestSearchRanksByOverlap(t *testing.T) {
	svc, ix := newService(t)
	ctx := context.Background()
	indexAll(t, ix,
		vocab.Document{Ref: vocab.DocumentRef{Type: "book", ID: "a"}, Text: "Bach Complete Works"},
		vocab.Document{Ref: vocab.DocumentRef{Type: "book", ID: "b"}, Text: "Beethoven Works Edition"},
	)

	// the four query terms all exist; a covers three, b two
	result, cached, err := svc.Search(ctx, "Bach Works Complete Edition", "book", 0, 0)
	require.NoError(t, err)
	assert.False(t, cached)
	require.Len(t, result.Hits, 2)

	assert.Equal(t, "book/a", result.Hits[0].Document.String())
	assert.Equal(t, 75, result.Hits[0].Score)
	assert.Equal(t, "Bach Complete Works", result.Hits[0].Text)

	assert.Equal(t, "book/b", result.Hits[1].Document.String())
	assert.Equal(t, 50, result.Hits[1].Score)
}

func TestSearchIsCaseAndDiacriticInsensitive(t *testing.T) {
	svc, ix := newService(t)
	ctx := context.Background()
	indexAll(t, ix,
		vocab.Document{Ref: vocab.DocumentRef{Type: "work", ID: "1"}, Text: "Saint-Saëns: Danse macabre"},
	)

	result, _, err := svc.Search(ctx, "saint saens danse", "work", 0, 0)
	require.NoError(t, err)
	require.Len(t, result.Hits, 1)
	assert.Equal(t, 100, result.Hits[0].Score)
}

func TestSearchNeverCreatesVocabulary(t *testing.T) {
	svc, ix := newService(t)
	ctx := context.Background()
	indexAll(t, ix,
		vocab.Document{Ref: vocab.DocumentRef{Type: "work", ID: "1"}, Text: "tapiola"},
	)

	// the unknown term is ignored, not added to the vocabulary
	result, _, err := svc.Search(ctx, "tapiola тундра", "work", 0, 0)
	require.NoError(t, err)
	require.Len(t, result.Hits, 1)
	assert.Equal(t, 100, result.Hits[0].Score)

	result, _, err = svc.Search(ctx, "тундра", "work", 0, 0)
	require.NoError(t, err)
	assert.Empty(t, result.Hits)
}

func TestSearchTypeFilter(t *testing.T) {
	svc, ix := newService(t)
	ctx := context.Background()
	indexAll(t, ix,
		vocab.Document{Ref: vocab.DocumentRef{Type: "book", ID: "1"}, Text: "tapiola"},
		vocab.Document{Ref: vocab.DocumentRef{Type: "album", ID: "1"}, Text: "tapiola"},
	)

	result, _, err := svc.Search(ctx, "tapiola", "album", 0, 0)
	require.NoError(t, err)
	require.Len(t, result.Hits, 1)
	assert.Equal(t, "album", result.Hits[0].Document.Type)

	result, _, err = svc.Search(ctx, "tapiola", "", 0, 0)
	require.NoError(t, err)
	assert.Len(t, result.Hits, 2)
}

func TestSearchPaging(t *testing.T) {
	svc, ix := newService(t)
	ctx := context.Background()
	for _, id := range []string{"1", "2", "3"} {
		indexAll(t, ix, vocab.Document{Ref: vocab.DocumentRef{Type: "work", ID: id}, Text: "tapiola"})
	}

	result, _, err := svc.Search(ctx, "tapiola", "work", 1, 1)
	require.NoError(t, err)
	require.Len(t, result.Hits, 1)
	assert.Equal(t, "2", result.Hits[0].Document.ID)
	assert.Equal(t, 1, result.Offset)
	assert.Equal(t, 1, result.Limit)
}

func TestSearchClampsLimit(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	result, _, err := svc.Search(ctx, "anything", "", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 50, result.Limit, "default limit applies")

	result, _, err = svc.Search(ctx, "anything", "", 0, 10000)
	require.NoError(t, err)
	assert.Equal(t, 500, result.Limit, "limit capped at maximum")
}

func TestSearchEmptyQuery(t *testing.T) {
	svc, _ := newService(t)
	_, _, err := svc.Search(context.Background(), "", "", 0, 0)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}
