package index

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"

	"github.com/spherical-ai/spherical/libs/retail-assistant/internal/catalog"
	"github.com/spherical-ai/spherical/libs/retail-assistant/internal/domain"
)

// SQLiteIndex persists products in SQLite and ranks them in process with
// Fuse. It is meant for local development and catalogs of a few tens of
// thousands of products.
type SQLiteIndex struct {
	db *sql.DB
}

// NewSQLiteIndex wraps a migrated SQLite database. The index owns db.
func NewSQLiteIndex(db *sql.DB) *SQLiteIndex {
	return &SQLiteIndex{db: db}
}

// HybridSearch loads every product and ranks it against q.
func (s *SQLiteIndex) HybridSearch(ctx context.Context, q HybridQuery) ([]Row, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, text, metadata, embedding FROM `+TableName+` ORDER BY id`)
	if err != nil {
		return nil, domain.StorageError("query products", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var (
			d    Document
			meta string
			blob []byte
		)
		if err := rows.Scan(&d.ID, &d.Text, &meta, &blob); err != nil {
			return nil, domain.StorageError("scan product", err)
		}
		d.Metadata = json.RawMessage(meta)
		d.Embedding = decodeVector(blob)

		var m catalog.Metadata
		if err := json.Unmarshal(d.Metadata, &m); err == nil {
			d.Sector = m.Sector
		}
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.StorageError("iterate products", err)
	}

	return Fuse(q, docs), nil
}

// Upsert writes products in one transaction, replacing rows by EAN.
func (s *SQLiteIndex) Upsert(ctx context.Context, products []catalog.Product) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.StorageError("begin upsert", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO `+TableName+` (ean, text, metadata, embedding)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(ean) DO UPDATE SET
			text = excluded.text,
			metadata = excluded.metadata,
			embedding = excluded.embedding
	`)
	if err != nil {
		return domain.StorageError("prepare upsert", err)
	}
	defer stmt.Close()

	for _, p := range products {
		meta, err := p.MetadataJSON()
		if err != nil {
			return domain.DataError("encode metadata", err)
		}
		if _, err := stmt.ExecContext(ctx, p.Metadata.EAN, p.Text, string(meta), encodeVector(p.Embedding)); err != nil {
			return domain.StorageError(fmt.Sprintf("upsert ean %s", p.Metadata.EAN), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return domain.StorageError("commit upsert", err)
	}
	return nil
}

// Count returns the number of stored products.
func (s *SQLiteIndex) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+TableName).Scan(&n); err != nil {
		return 0, domain.StorageError("count products", err)
	}
	return n, nil
}

// Reset removes every product.
func (s *SQLiteIndex) Reset(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM `+TableName); err != nil {
		return domain.StorageError("reset products", err)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteIndex) Close() error {
	return s.db.Close()
}

func encodeVector(v []float32) []byte {
	if len(v) == 0 {
		return nil
	}
	buf := make([]byte, 4*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(x))
	}
	return buf
}

func decodeVector(b []byte) []float32 {
	if len(b) < 4 {
		return nil
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return v
}

var _ Index = (*SQLiteIndex)(nil)
