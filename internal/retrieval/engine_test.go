package retrieval

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/spherical-ai/spherical/libs/retail-assistant/internal/cache"
	"github.com/spherical-ai/spherical/libs/retail-assistant/internal/catalog"
	"github.com/spherical-ai/spherical/libs/retail-assistant/internal/domain"
	"github.com/spherical-ai/spherical/libs/retail-assistant/internal/embedding"
	"github.com/spherical-ai/spherical/libs/retail-assistant/internal/index"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEmbedder struct {
	mu    sync.Mutex
	texts []string
	err   error
}

func (f *fakeEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := f.EmbedSingle(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (f *fakeEmbedder) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.texts = append(f.texts, text)
	return []float32{1}, nil
}

func (f *fakeEmbedder) Model() string  { return "fake" }
func (f *fakeEmbedder) Dimension() int { return 1 }

var _ embedding.Embedder = (*fakeEmbedder)(nil)

// scriptedIndex returns fixed rows per query text.
type scriptedIndex struct {
	rows    map[string][]index.Row
	queries []index.HybridQuery
	err     error
}

func (s *scriptedIndex) HybridSearch(ctx context.Context, q index.HybridQuery) ([]index.Row, error) {
	s.queries = append(s.queries, q)
	if s.err != nil {
		return nil, s.err
	}
	return s.rows[q.Text], nil
}

func (s *scriptedIndex) Upsert(ctx context.Context, products []catalog.Product) error { return nil }
func (s *scriptedIndex) Count(ctx context.Context) (int, error)                       { return 0, nil }
func (s *scriptedIndex) Reset(ctx context.Context) error                              { return nil }
func (s *scriptedIndex) Close() error                                                 { return nil }

func scored(ean string, score float64) index.Row {
	return row("", fmt.Sprintf(`{"ean":%q,"produto":"P%s"}`, ean, ean), score)
}

func TestEngine_HighScoreNoRetry(t *testing.T) {
	emb := &fakeEmbedder{}
	idx := &scriptedIndex{rows: map[string][]index.Row{
		"tomate hortifruti legumes verduras frutas": {scored("101", 0.9), scored("102", 0.4)},
	}}
	e := NewEngine(emb, idx, nil, nil, DefaultConfig())

	out, err := e.Search(context.Background(), "  tomate ", 0)
	require.NoError(t, err)
	assert.False(t, out.Retried)
	assert.Equal(t, []string{"tomate hortifruti legumes verduras frutas"}, emb.texts)
	assert.Len(t, out.Results, 2)
	assert.InDelta(t, 0.9, out.TopScore, 1e-9)

	q := idx.queries[0]
	assert.Equal(t, 20, q.Limit)
	assert.Equal(t, 0.5, q.SectorBoost)
	assert.Equal(t, 50, q.RRFConstant)
}

func TestEngine_RetryMonotonic(t *testing.T) {
	idx := &scriptedIndex{rows: map[string][]index.Row{
		"suco caju e maracuja": {scored("1", 0.40)},
		// Not enough improvement: 0.44 <= 0.40 + 0.05.
		"suco":     {scored("2", 0.44)},
		"caju":     {scored("3", 0.60)},
		"maracuja": {scored("4", 0.63)},
	}}
	e := NewEngine(&fakeEmbedder{}, idx, nil, nil, DefaultConfig())

	out, err := e.Search(context.Background(), "suco caju e maracuja", 10)
	require.NoError(t, err)
	assert.True(t, out.Retried)
	// maracuja (0.63) does not beat caju (0.60) by more than 0.05.
	assert.Equal(t, "caju", out.RetryWord)
	assert.Equal(t, "3", out.Results[0].EAN)

	var texts []string
	for _, q := range idx.queries {
		texts = append(texts, q.Text)
	}
	assert.Equal(t, []string{"suco caju e maracuja", "suco", "caju", "maracuja"}, texts)
}

func TestEngine_RetryKeepsOriginalWhenNoImprovement(t *testing.T) {
	idx := &scriptedIndex{rows: map[string][]index.Row{
		"xpto abc": {scored("1", 0.30)},
		"xpto":     {scored("2", 0.32)},
		"abc":      nil,
	}}
	e := NewEngine(&fakeEmbedder{}, idx, nil, nil, DefaultConfig())

	out, err := e.Search(context.Background(), "xpto abc", 5)
	require.NoError(t, err)
	assert.True(t, out.Retried)
	assert.Empty(t, out.RetryWord)
	assert.Equal(t, "1", out.Results[0].EAN)
}

func TestEngine_NoResults(t *testing.T) {
	e := NewEngine(&fakeEmbedder{}, &scriptedIndex{}, nil, nil, DefaultConfig())

	out, err := e.Search(context.Background(), "inexistente", 5)
	require.NoError(t, err)
	assert.False(t, out.Retried)
	assert.Equal(t, MsgNoResults, out.Text())
	assert.Equal(t, MsgNoResults, e.SearchText(context.Background(), "inexistente"))
}

func TestEngine_EmptyQuery(t *testing.T) {
	emb := &fakeEmbedder{}
	e := NewEngine(emb, &scriptedIndex{}, nil, nil, DefaultConfig())

	_, err := e.Search(context.Background(), "   ", 5)
	assert.ErrorIs(t, err, domain.ErrEmptyQuery)
	assert.Equal(t, MsgEmptyQuery, e.SearchText(context.Background(), ""))
	assert.Empty(t, emb.texts)
}

func TestEngine_TransportFailure(t *testing.T) {
	emb := &fakeEmbedder{err: domain.TransportError("embedding API error", errors.New("boom"))}
	e := NewEngine(emb, &scriptedIndex{}, nil, nil, DefaultConfig())

	_, err := e.Search(context.Background(), "arroz", 5)
	assert.True(t, domain.IsKind(err, domain.KindTransport))
	assert.Equal(t, MsgSearchFailed, e.SearchText(context.Background(), "arroz"))
}

func TestEngine_Cache(t *testing.T) {
	emb := &fakeEmbedder{}
	idx := &scriptedIndex{rows: map[string][]index.Row{"arroz": {scored("1", 0.9)}}}
	mem := cache.NewMemoryClient(10)
	defer mem.Close()
	rc := NewResultCache(mem, nil, DefaultResultCacheConfig())
	e := NewEngine(emb, idx, rc, nil, DefaultConfig())

	first, err := e.Search(context.Background(), "arroz", 5)
	require.NoError(t, err)
	assert.False(t, first.Cached)

	second, err := e.Search(context.Background(), " arroz ", 5)
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Results, second.Results)
	assert.Len(t, idx.queries, 1)

	upper, err := e.Search(context.Background(), "ARROZ", 5)
	require.NoError(t, err)
	assert.False(t, upper.Cached)
	assert.Empty(t, upper.Results)
	assert.Len(t, idx.queries, 2)

	require.NoError(t, rc.Invalidate(context.Background()))
	_, err = e.Search(context.Background(), "arroz", 5)
	require.NoError(t, err)
	assert.Len(t, idx.queries, 3)
}

func TestResultCache_KeyKeepsCasing(t *testing.T) {
	rc := NewResultCache(nil, nil, DefaultResultCacheConfig())

	assert.Equal(t, rc.CacheKey("Refrigerante 2L", 20), rc.CacheKey("  Refrigerante 2L ", 20))
	assert.NotEqual(t, rc.CacheKey("Refrigerante 2L", 20), rc.CacheKey("refrigerante 2L", 20))
	assert.NotEqual(t, rc.CacheKey("arroz", 20), rc.CacheKey("arroz", 10))
}

func TestRetryWords(t *testing.T) {
	assert.Equal(t, []string{"suco", "caju", "maracujá"}, RetryWords("Suco de caju e maracujá com 1 kg", 0))
	assert.Equal(t, []string{"arroz"}, RetryWords("arroz ARROZ", 0))
	assert.Equal(t, []string{"aaa", "bbb"}, RetryWords("aaa bbb ccc", 2))
}

func TestEngine_WithMemoryIndex(t *testing.T) {
	ctx := context.Background()
	emb := embedding.NewMockClient(64)
	idx := index.NewMemoryIndex()

	for _, line := range []string{
		"ean 101 TOMATE ITALIANO kg setor HORTI-FRUTI categoria LEGUMES subcategoria ",
		"ean 104 ARROZ TIO JOAO 5KG setor MERCEARIA categoria GRAOS subcategoria ARROZ",
	} {
		p, err := catalog.ParseLine(line)
		require.NoError(t, err)
		p.Embedding, err = emb.EmbedSingle(ctx, p.Text)
		require.NoError(t, err)
		require.NoError(t, idx.Upsert(ctx, []catalog.Product{p}))
	}

	e := NewEngine(emb, idx, nil, nil, DefaultConfig())
	text := e.SearchText(ctx, "tomate")
	assert.Contains(t, text, "EANS_ENCONTRADOS:\n1) 101 - TOMATE ITALIANO kg")
}
