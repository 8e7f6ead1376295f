package ingest

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/spherical-ai/spherical/libs/retail-assistant/internal/catalog"
	"github.com/spherical-ai/spherical/libs/retail-assistant/internal/domain"
	"github.com/spherical-ai/spherical/libs/retail-assistant/internal/embedding"
	"github.com/spherical-ai/spherical/libs/retail-assistant/internal/index"
	"github.com/spherical-ai/spherical/libs/retail-assistant/internal/observability"
	"github.com/spherical-ai/spherical/libs/retail-assistant/internal/retrieval"
)

// Pipeline embeds catalog products in batches and upserts them into the
// index, resuming from a checkpoint after an interrupted run.
type Pipeline struct {
	logger     *observability.Logger
	config     PipelineConfig
	embedder   embedding.Embedder
	index      index.Index
	cache      *retrieval.ResultCache
	checkpoint *Checkpoint
}

// PipelineConfig holds pipeline configuration.
type PipelineConfig struct {
	BatchSize      int
	CheckpointPath string
	// MaxErrors is the number of failed batches tolerated; one more aborts.
	MaxErrors int
	// ErrorDelay is the pause before a failed batch is retried.
	ErrorDelay time.Duration
	// BatchDelay paces embedding requests.
	BatchDelay time.Duration
	// ResetOnFresh empties the index when the run starts at offset 0.
	ResetOnFresh bool
}

// DefaultPipelineConfig returns the production settings.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		BatchSize:      50,
		CheckpointPath: DefaultCheckpointPath,
		MaxErrors:      10,
		ErrorDelay:     2 * time.Second,
		BatchDelay:     300 * time.Millisecond,
		ResetOnFresh:   true,
	}
}

// Progress is reported after every indexed batch.
type Progress struct {
	Processed int
	Total     int
}

// IngestionResult summarizes a run.
type IngestionResult struct {
	JobID       uuid.UUID     `json:"job_id"`
	Lines       int           `json:"lines"`
	Parsed      int           `json:"parsed"`
	Skipped     []SkippedLine `json:"skipped,omitempty"`
	StartOffset int           `json:"start_offset"`
	Processed   int           `json:"processed"`
	Reset       bool          `json:"reset"`
	Errors      []string      `json:"errors,omitempty"`
	Aborted     bool          `json:"aborted"`
	StartedAt   time.Time     `json:"started_at"`
	CompletedAt time.Time     `json:"completed_at"`
	Duration    time.Duration `json:"duration"`
}

// NewPipeline creates a vectorization pipeline. cache may be nil; when set
// it is invalidated after a run indexes anything.
func NewPipeline(logger *observability.Logger, cfg PipelineConfig, embedder embedding.Embedder, idx index.Index, cache *retrieval.ResultCache) *Pipeline {
	defaults := DefaultPipelineConfig()
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaults.BatchSize
	}
	if cfg.MaxErrors <= 0 {
		cfg.MaxErrors = defaults.MaxErrors
	}
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Pipeline{
		logger:     logger,
		config:     cfg,
		embedder:   embedder,
		index:      idx,
		cache:      cache,
		checkpoint: NewCheckpoint(cfg.CheckpointPath),
	}
}

// Run vectorizes the catalog read from r. onProgress may be nil.
func (p *Pipeline) Run(ctx context.Context, r io.Reader, onProgress func(Progress)) (*IngestionResult, error) {
	result := &IngestionResult{JobID: uuid.New(), StartedAt: time.Now()}
	defer func() {
		result.CompletedAt = time.Now()
		result.Duration = result.CompletedAt.Sub(result.StartedAt)
	}()

	log := p.logger.WithOperation("vectorize")
	log.Info().Str("job_id", result.JobID.String()).Msg("Starting vectorization")

	parsed, err := ParseCatalog(r)
	if err != nil {
		return result, domain.DataError("parse catalog", err)
	}
	result.Lines = parsed.Lines
	result.Parsed = len(parsed.Products)
	result.Skipped = parsed.Skipped
	for _, s := range parsed.Skipped {
		log.Warn().Int("line", s.Line).Str("preview", s.Preview).Msg("Catalog line not parsed")
	}

	products := parsed.Products
	total := len(products)

	offset, err := p.checkpoint.Load()
	if err != nil {
		return result, domain.StorageError("load checkpoint", err)
	}
	if offset > total {
		log.Warn().Int("offset", offset).Int("total", total).Msg("Checkpoint beyond catalog, starting over")
		offset = 0
	}
	result.StartOffset = offset
	if offset > 0 {
		log.Info().Int("offset", offset).Msg("Resuming from checkpoint")
	}

	if offset == 0 && p.config.ResetOnFresh {
		if err := p.index.Reset(ctx); err != nil {
			return result, err
		}
		result.Reset = true
		log.Info().Msg("Index cleared")
	}

	processed := offset
	failures := 0
	for processed < total {
		end := processed + p.config.BatchSize
		if end > total {
			end = total
		}
		batch := products[processed:end]

		if err := p.indexBatch(ctx, batch); err != nil {
			if ctx.Err() != nil {
				result.Processed = processed
				return result, domain.TransportError("vectorization interrupted", ctx.Err())
			}

			failures++
			result.Errors = append(result.Errors, fmt.Sprintf("batch at %d: %v", processed, err))
			log.Error().Err(err).Int("offset", processed).Int("failures", failures).Msg("Batch failed")
			if failures > p.config.MaxErrors {
				result.Aborted = true
				result.Processed = processed
				log.Error().Int("processed", processed).Msg("Too many errors, aborting")
				return result, domain.TransportError(fmt.Sprintf("aborted after %d failed batches", failures), err)
			}
			if err := sleep(ctx, p.config.ErrorDelay); err != nil {
				result.Processed = processed
				return result, domain.TransportError("vectorization interrupted", err)
			}
			continue
		}

		processed = end
		if err := p.checkpoint.Save(processed); err != nil {
			log.Warn().Err(err).Msg("Checkpoint not saved")
		}
		if onProgress != nil {
			onProgress(Progress{Processed: processed, Total: total})
		}
		log.Debug().Int("processed", processed).Int("total", total).Msg("Batch indexed")

		if processed < total {
			if err := sleep(ctx, p.config.BatchDelay); err != nil {
				result.Processed = processed
				return result, domain.TransportError("vectorization interrupted", err)
			}
		}
	}
	result.Processed = processed

	if err := p.checkpoint.Clear(); err != nil {
		log.Warn().Err(err).Msg("Checkpoint not removed")
	}
	if processed > offset {
		if err := p.cache.Invalidate(ctx); err != nil {
			log.Warn().Err(err).Msg("Search cache not invalidated")
		}
	}

	log.Info().
		Int("processed", processed).
		Int("skipped", len(result.Skipped)).
		Int("errors", len(result.Errors)).
		Msg("Vectorization completed")
	return result, nil
}

func (p *Pipeline) indexBatch(ctx context.Context, batch []catalog.Product) error {
	texts := make([]string, len(batch))
	for i, prod := range batch {
		texts[i] = prod.Text
	}

	vectors, err := p.embedder.Embed(ctx, texts)
	if err != nil {
		return err
	}
	if len(vectors) != len(batch) {
		return domain.DataError(fmt.Sprintf("embedded %d of %d texts", len(vectors), len(batch)), nil)
	}

	withVectors := make([]catalog.Product, len(batch))
	for i, prod := range batch {
		prod.Embedding = vectors[i]
		withVectors[i] = prod
	}
	return p.index.Upsert(ctx, withVectors)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
