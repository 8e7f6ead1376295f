package app

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spherical-ai/spherical/libs/retail-assistant/internal/assistant"
	"github.com/spherical-ai/spherical/libs/retail-assistant/internal/config"
	"github.com/spherical-ai/spherical/libs/retail-assistant/internal/ingest"
	"github.com/spherical-ai/spherical/libs/retail-assistant/internal/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const catalogExport = `ean 102 ABACATE kg setor HORTI-FRUTI categoria FRUTAS subcategoria
ean 103 FRANGO INTEIRO CONGELADO kg setor FRIGORIFICO categoria AVES subcategoria
ean 7891000100103 LEITE COND MOCOCA 395G setor MERCEARIA categoria LATICINIOS subcategoria
`

func newDevApp(t *testing.T) *App {
	cfg := config.DefaultConfig()
	cfg.Database.SQLite.Path = filepath.Join(t.TempDir(), "index.db")
	cfg.Embedding.Dimension = 32

	a, err := New(context.Background(), cfg, observability.NopLogger(), Options{Dev: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func TestApp_VectorizeThenSearch(t *testing.T) {
	ctx := context.Background()
	a := newDevApp(t)

	res, err := a.Pipeline(ingest.PipelineConfig{
		CheckpointPath: filepath.Join(t.TempDir(), "progress"),
		ResetOnFresh:   true,
	}).Run(ctx, strings.NewReader(catalogExport), nil)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Processed)

	n, err := a.Index.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	text := a.Service.Search(ctx, "abacate")
	assert.True(t, strings.HasPrefix(text, "EANS_ENCONTRADOS:"), text)
	assert.Contains(t, text, "102 - ABACATE kg")
}

func TestApp_CartWithoutOrderAPI(t *testing.T) {
	ctx := context.Background()
	a := newDevApp(t)
	phone := "5511900001111"

	a.Service.AddItem(ctx, phone, assistant.AddItemRequest{Product: "ARROZ", Quantity: 1, Price: 5})
	assert.Contains(t, a.Service.ViewCart(ctx, phone), "1. ARROZ (x1) - R$ 5.00")

	reply := a.Service.Finalize(ctx, assistant.FinalizeRequest{Customer: "Ana", Phone: phone, Payment: "PIX"})
	assert.Equal(t, assistant.MsgCheckoutFailed, reply)

	items, err := a.Service.Items(ctx, phone)
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestApp_CloseIsIdempotent(t *testing.T) {
	a := newDevApp(t)
	require.NoError(t, a.Close())
	require.NoError(t, a.Close())
}

func TestCartLockTTL(t *testing.T) {
	cfg := config.DefaultConfig()

	cfg.Orders.Timeout = 2 * time.Minute
	assert.Equal(t, 2*time.Minute+cartLockMargin, cartLockTTL(cfg))
	assert.Greater(t, cartLockTTL(cfg), cfg.Orders.Timeout)

	cfg.Orders.Timeout = 0
	assert.Equal(t, defaultOrderTimeout+cartLockMargin, cartLockTTL(cfg))
}
