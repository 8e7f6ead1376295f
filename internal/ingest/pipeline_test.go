package ingest

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spherical-ai/spherical/libs/retail-assistant/internal/cache"
	"github.com/spherical-ai/spherical/libs/retail-assistant/internal/catalog"
	"github.com/spherical-ai/spherical/libs/retail-assistant/internal/embedding"
	"github.com/spherical-ai/spherical/libs/retail-assistant/internal/index"
	"github.com/spherical-ai/spherical/libs/retail-assistant/internal/retrieval"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flakyEmbedder fails the first failures calls.
type flakyEmbedder struct {
	*embedding.MockClient
	failures int
	calls    int
}

func (f *flakyEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, errors.New("embedding service unavailable")
	}
	return f.MockClient.Embed(ctx, texts)
}

func catalogLines(n int) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "ean %d PRODUTO %d setor MERCEARIA categoria GERAL subcategoria\n", 1000+i, i)
	}
	return b.String()
}

func testConfig(t *testing.T) PipelineConfig {
	return PipelineConfig{
		BatchSize:      4,
		CheckpointPath: filepath.Join(t.TempDir(), "progress"),
		MaxErrors:      10,
		ResetOnFresh:   true,
	}
}

func TestPipeline_IndexesAllBatches(t *testing.T) {
	ctx := context.Background()
	idx := index.NewMemoryIndex()
	require.NoError(t, idx.Upsert(ctx, []catalog.Product{{Text: "stale", Metadata: catalog.Metadata{EAN: "1"}}}))

	cfg := testConfig(t)
	p := NewPipeline(nil, cfg, embedding.NewMockClient(16), idx, nil)

	var progress []Progress
	res, err := p.Run(ctx, strings.NewReader(catalogLines(10)), func(pr Progress) {
		progress = append(progress, pr)
	})
	require.NoError(t, err)

	assert.Equal(t, 10, res.Processed)
	assert.True(t, res.Reset)
	assert.False(t, res.Aborted)
	assert.Equal(t, []Progress{{4, 10}, {8, 10}, {10, 10}}, progress)

	n, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 10, n)

	// A completed run leaves no checkpoint.
	offset, err := NewCheckpoint(cfg.CheckpointPath).Load()
	require.NoError(t, err)
	assert.Zero(t, offset)
}

func TestPipeline_ResumesFromCheckpoint(t *testing.T) {
	ctx := context.Background()
	idx := index.NewMemoryIndex()
	cfg := testConfig(t)
	require.NoError(t, NewCheckpoint(cfg.CheckpointPath).Save(8))

	p := NewPipeline(nil, cfg, embedding.NewMockClient(16), idx, nil)
	res, err := p.Run(ctx, strings.NewReader(catalogLines(10)), nil)
	require.NoError(t, err)

	assert.Equal(t, 8, res.StartOffset)
	assert.False(t, res.Reset)
	n, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestPipeline_RetriesFailedBatch(t *testing.T) {
	ctx := context.Background()
	idx := index.NewMemoryIndex()
	emb := &flakyEmbedder{MockClient: embedding.NewMockClient(16), failures: 2}

	res, err := NewPipeline(nil, testConfig(t), emb, idx, nil).Run(ctx, strings.NewReader(catalogLines(6)), nil)
	require.NoError(t, err)

	assert.Len(t, res.Errors, 2)
	assert.Equal(t, 6, res.Processed)
	n, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 6, n)
}

func TestPipeline_AbortsAfterTooManyErrors(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	cfg.MaxErrors = 3
	emb := &flakyEmbedder{MockClient: embedding.NewMockClient(16), failures: 100}

	res, err := NewPipeline(nil, cfg, emb, index.NewMemoryIndex(), nil).Run(ctx, strings.NewReader(catalogLines(6)), nil)
	require.Error(t, err)
	assert.True(t, res.Aborted)
	assert.Equal(t, 4, emb.calls)
	assert.Zero(t, res.Processed)
}

func TestPipeline_InvalidatesSearchCache(t *testing.T) {
	ctx := context.Background()
	mem := cache.NewMemoryClient(100)
	defer mem.Close()
	rc := retrieval.NewResultCache(mem, nil, retrieval.DefaultResultCacheConfig())
	rc.Set(ctx, "abacate", 20, &retrieval.SearchOutcome{Query: "abacate"})
	require.Equal(t, 1, mem.Len())

	_, err := NewPipeline(nil, testConfig(t), embedding.NewMockClient(16), index.NewMemoryIndex(), rc).
		Run(ctx, strings.NewReader(catalogLines(3)), nil)
	require.NoError(t, err)

	assert.Zero(t, mem.Len())
}

func TestCheckpoint(t *testing.T) {
	cp := NewCheckpoint(filepath.Join(t.TempDir(), "cp"))

	offset, err := cp.Load()
	require.NoError(t, err)
	assert.Zero(t, offset)

	require.NoError(t, cp.Save(150))
	offset, err = cp.Load()
	require.NoError(t, err)
	assert.Equal(t, 150, offset)

	require.NoError(t, cp.Clear())
	require.NoError(t, cp.Clear())

	disabled := NewCheckpoint("")
	require.NoError(t, disabled.Save(10))
	offset, err = disabled.Load()
	require.NoError(t, err)
	assert.Zero(t, offset)
}
