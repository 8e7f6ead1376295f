package index

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/spherical-ai/spherical/libs/retail-assistant/internal/catalog"
	"github.com/spherical-ai/spherical/libs/retail-assistant/internal/embedding"
	"github.com/spherical-ai/spherical/libs/retail-assistant/internal/storage"
	"github.com/spherical-ai/spherical/libs/retail-assistant/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sampleLines = []string{
	"ean 101 TOMATE ITALIANO kg setor HORTI-FRUTI categoria LEGUMES subcategoria ",
	"ean 102 MOLHO DE TOMATE FUGINI 300G setor MERCEARIA categoria MOLHOS subcategoria ",
	"ean 103 FRANGO INTEIRO CONGELADO kg setor FRIGORIFICO categoria AVES subcategoria ",
	"ean 104 ARROZ TIO JOAO 5KG setor MERCEARIA categoria GRAOS subcategoria ARROZ",
	"ean 105 SUCO DE CAJU MAGUARY 500ML setor BEBIDAS categoria SUCOS subcategoria ",
}

func sampleProducts(t *testing.T, dim int) []catalog.Product {
	t.Helper()
	emb := embedding.NewMockClient(dim)
	var out []catalog.Product
	for _, line := range sampleLines {
		p, err := catalog.ParseLine(line)
		require.NoError(t, err)
		p.Embedding, err = emb.EmbedSingle(context.Background(), p.Text)
		require.NoError(t, err)
		out = append(out, p)
	}
	return out
}

func queryFor(t *testing.T, text string, dim int) HybridQuery {
	t.Helper()
	v, err := embedding.NewMockClient(dim).EmbedSingle(context.Background(), text)
	require.NoError(t, err)
	return HybridQuery{
		Text: text, Vector: v, Limit: 5,
		LexicalWeight: 1, SemanticWeight: 1, SectorBoost: 0.5, RRFConstant: 50,
	}
}

func eanOf(t *testing.T, r Row) string {
	t.Helper()
	var m catalog.Metadata
	require.NoError(t, json.Unmarshal(r.Metadata, &m))
	return m.EAN
}

func TestFuse_ScoresNormalized(t *testing.T) {
	var docs []Document
	for i, p := range sampleProducts(t, 64) {
		d, err := DocumentFromProduct(int64(i+1), p)
		require.NoError(t, err)
		docs = append(docs, d)
	}

	rows := Fuse(queryFor(t, "tomate", 64), docs)
	require.NotEmpty(t, rows)

	for i, r := range rows {
		assert.GreaterOrEqual(t, r.Score, 0.0)
		assert.LessOrEqual(t, r.Score, 1.0+1e-9)
		if i > 0 {
			assert.LessOrEqual(t, r.Score, rows[i-1].Score)
		}
	}
	// Produce item wins over the sauce thanks to the sector boost.
	assert.Equal(t, "101", eanOf(t, rows[0]))
	assert.GreaterOrEqual(t, rows[0].Score, 0.5)
}

func TestFuse_PerfectHitScoresOne(t *testing.T) {
	docs := []Document{{ID: 1, Text: "tomate", Sector: "HORTI-FRUTI", Embedding: []float32{1, 0}, Metadata: json.RawMessage(`{}`)}}
	rows := Fuse(HybridQuery{Text: "tomate", Vector: []float32{1, 0}, Limit: 1, LexicalWeight: 1, SemanticWeight: 1, SectorBoost: 0.5, RRFConstant: 50}, docs)
	require.Len(t, rows, 1)
	assert.InDelta(t, 1.0, rows[0].Score, 1e-9)
}

func TestFuse_LimitAndEmpty(t *testing.T) {
	assert.Empty(t, Fuse(HybridQuery{Text: "x"}, nil))

	var docs []Document
	for i := 0; i < 10; i++ {
		docs = append(docs, Document{ID: int64(i), Text: "arroz branco", Embedding: []float32{1, float32(i)}})
	}
	rows := Fuse(HybridQuery{Text: "arroz", Vector: []float32{1, 0}, Limit: 3}, docs)
	assert.Len(t, rows, 3)
}

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"maracuja", "acai"}, tokenize("Maracujá e AÇAÍ, maracujá"))
}

func TestVectorLiteral(t *testing.T) {
	assert.Equal(t, "[0.5,-1,0]", VectorLiteral([]float32{0.5, -1, 0}))
	assert.Equal(t, "[]", VectorLiteral(nil))
}

func TestEncodeDecodeVector(t *testing.T) {
	v := []float32{0.25, -3.5, 1e-3}
	assert.Equal(t, v, decodeVector(encodeVector(v)))
	assert.Nil(t, decodeVector(nil))
}

func exerciseIndex(t *testing.T, idx Index, dim int) {
	ctx := context.Background()
	require.NoError(t, idx.Reset(ctx))

	products := sampleProducts(t, dim)
	require.NoError(t, idx.Upsert(ctx, products))
	// Re-upserting the same EANs must not duplicate rows.
	require.NoError(t, idx.Upsert(ctx, products[:2]))

	n, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(products), n)

	rows, err := idx.HybridSearch(ctx, queryFor(t, "frango", dim))
	require.NoError(t, err)
	require.NotEmpty(t, rows)
	assert.Equal(t, "103", eanOf(t, rows[0]))

	require.NoError(t, idx.Reset(ctx))
	n, err = idx.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestMemoryIndex(t *testing.T) {
	exerciseIndex(t, NewMemoryIndex(), 64)
}

func TestSQLiteIndex(t *testing.T) {
	idx, err := Open(context.Background(), storage.DriverSQLite, ":memory:", storage.PoolConfig{})
	require.NoError(t, err)
	defer idx.Close()

	_, ok := idx.(*SQLiteIndex)
	require.True(t, ok)
	exerciseIndex(t, idx, 64)
}

func TestPostgresIndex(t *testing.T) {
	testutil.SkipIfShort(t)
	dsn := testutil.StartPostgres(t)

	idx, err := Open(context.Background(), storage.DriverPostgres, dsn, storage.PoolConfig{})
	require.NoError(t, err)
	defer idx.Close()

	_, ok := idx.(*PostgresIndex)
	require.True(t, ok)
	exerciseIndex(t, idx, 1536)
}
