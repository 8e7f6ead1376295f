// Package index stores vectorized catalog products and answers fused
// lexical + vector ranking queries over them.
package index

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/spherical-ai/spherical/libs/retail-assistant/internal/catalog"
)

// TableName is the product index table created by the storage migrations.
const TableName = "produtos_vectors_ean"

// HybridQuery parameterizes one fused ranking request.
type HybridQuery struct {
	Text           string
	Vector         []float32
	Limit          int
	LexicalWeight  float64
	SemanticWeight float64
	SectorBoost    float64
	RRFConstant    int
}

// Row is one ranked product. Metadata is the stored JSON object.
type Row struct {
	Text     string          `json:"text"`
	Metadata json.RawMessage `json:"metadata"`
	Score    float64         `json:"score"`
}

// Index is the product index collaborator used by retrieval and ingestion.
type Index interface {
	HybridSearch(ctx context.Context, q HybridQuery) ([]Row, error)
	Upsert(ctx context.Context, products []catalog.Product) error
	Count(ctx context.Context) (int, error)
	Reset(ctx context.Context) error
	Close() error
}

func (q HybridQuery) withDefaults() HybridQuery {
	if q.Limit <= 0 {
		q.Limit = 20
	}
	if q.RRFConstant <= 0 {
		q.RRFConstant = 50
	}
	if q.LexicalWeight == 0 && q.SemanticWeight == 0 {
		q.LexicalWeight, q.SemanticWeight = 1, 1
	}
	return q
}

// VectorLiteral renders a pgvector literal: [0.1,0.2,...].
func VectorLiteral(v []float32) string {
	var b strings.Builder
	b.Grow(len(v) * 10)
	b.WriteByte('[')
	for i, x := range v {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(x), 'f', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}
