package index

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/spherical-ai/spherical/libs/retail-assistant/internal/catalog"
	"github.com/spherical-ai/spherical/libs/retail-assistant/internal/domain"
)

// PostgresIndex delegates ranking to the hybrid_search_v2 SQL function over
// a pgvector table.
type PostgresIndex struct {
	db *sql.DB
}

// NewPostgresIndex wraps a migrated Postgres database. The index owns db.
func NewPostgresIndex(db *sql.DB) *PostgresIndex {
	return &PostgresIndex{db: db}
}

// HybridSearch runs the fused ranking query.
func (p *PostgresIndex) HybridSearch(ctx context.Context, q HybridQuery) ([]Row, error) {
	q = q.withDefaults()

	query := `
		SELECT h.text, h.metadata, h.score
		FROM hybrid_search_v2($1, $2::vector, $3, $4, $5, $6, $7) h
	`
	rows, err := p.db.QueryContext(ctx, query,
		q.Text, VectorLiteral(q.Vector), q.Limit,
		q.LexicalWeight, q.SemanticWeight, q.SectorBoost, q.RRFConstant,
	)
	if err != nil {
		return nil, domain.StorageError("hybrid search", err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var (
			r    Row
			meta []byte
		)
		if err := rows.Scan(&r.Text, &meta, &r.Score); err != nil {
			return nil, domain.StorageError("scan hybrid row", err)
		}
		r.Metadata = meta
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.StorageError("iterate hybrid rows", err)
	}
	return out, nil
}

// Upsert writes products in one transaction, replacing rows by EAN.
func (p *PostgresIndex) Upsert(ctx context.Context, products []catalog.Product) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.StorageError("begin upsert", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO `+TableName+` (ean, text, metadata, embedding)
		VALUES ($1, $2, $3::jsonb, $4::vector)
		ON CONFLICT (ean) DO UPDATE SET
			text = EXCLUDED.text,
			metadata = EXCLUDED.metadata,
			embedding = EXCLUDED.embedding
	`)
	if err != nil {
		return domain.StorageError("prepare upsert", err)
	}
	defer stmt.Close()

	for _, prod := range products {
		meta, err := prod.MetadataJSON()
		if err != nil {
			return domain.DataError("encode metadata", err)
		}
		var vec interface{}
		if len(prod.Embedding) > 0 {
			vec = VectorLiteral(prod.Embedding)
		}
		if _, err := stmt.ExecContext(ctx, prod.Metadata.EAN, prod.Text, string(meta), vec); err != nil {
			return domain.StorageError(fmt.Sprintf("upsert ean %s", prod.Metadata.EAN), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return domain.StorageError("commit upsert", err)
	}
	return nil
}

// Count returns the number of stored products.
func (p *PostgresIndex) Count(ctx context.Context) (int, error) {
	var n int
	if err := p.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+TableName).Scan(&n); err != nil {
		return 0, domain.StorageError("count products", err)
	}
	return n, nil
}

// Reset removes every product.
func (p *PostgresIndex) Reset(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, `DELETE FROM `+TableName); err != nil {
		return domain.StorageError("reset products", err)
	}
	return nil
}

// Close closes the database.
func (p *PostgresIndex) Close() error {
	return p.db.Close()
}

var _ Index = (*PostgresIndex)(nil)
