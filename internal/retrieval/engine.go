// Package retrieval implements catalog product search: query enhancement,
// fused lexical and vector ranking with a low-confidence retry, and the
// EAN list format consumed by the agent.
package retrieval

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/spherical-ai/spherical/libs/retail-assistant/internal/domain"
	"github.com/spherical-ai/spherical/libs/retail-assistant/internal/embedding"
	"github.com/spherical-ai/spherical/libs/retail-assistant/internal/index"
	"github.com/spherical-ai/spherical/libs/retail-assistant/internal/observability"
)

// Config tunes the hybrid search.
type Config struct {
	Limit          int
	LexicalWeight  float64
	SemanticWeight float64
	SectorBoost    float64
	RRFConstant    int
	// MinScore is the top score below which per-word retries run.
	MinScore float64
	// RetryImprovement is the margin a word's top score must beat the
	// current best by to replace it.
	RetryImprovement float64
	// MaxRetryWords caps the words retried. Zero means every eligible word.
	MaxRetryWords int
}

// DefaultConfig returns the production tuning.
func DefaultConfig() Config {
	return Config{
		Limit:            20,
		LexicalWeight:    1.0,
		SemanticWeight:   1.0,
		SectorBoost:      0.5,
		RRFConstant:      50,
		MinScore:         0.50,
		RetryImprovement: 0.05,
		MaxRetryWords:    8,
	}
}

// stopWords are skipped when splitting a query for retries.
var stopWords = map[string]struct{}{
	"de": {}, "da": {}, "do": {}, "para": {}, "com": {}, "sem": {},
	"um": {}, "uma": {}, "kg": {}, "und": {}, "pct": {},
}

const minRetryWordLen = 3

// SearchOutcome is the typed result of one search.
type SearchOutcome struct {
	Query       string         `json:"query"`
	Enhancement Enhancement    `json:"enhancement"`
	Rows        []index.Row    `json:"rows"`
	Results     []SearchResult `json:"results"`
	TopScore    float64        `json:"top_score"`
	Retried     bool           `json:"retried"`
	// RetryWord is the word whose results replaced the original ones.
	RetryWord string `json:"retry_word,omitempty"`
	Cached    bool   `json:"-"`
}

// Text renders the outcome for the agent.
func (o *SearchOutcome) Text() string {
	if len(o.Rows) == 0 {
		return MsgNoResults
	}
	return FormatResults(o.Results)
}

// Engine runs hybrid product searches.
type Engine struct {
	embedder embedding.Embedder
	index    index.Index
	cache    *ResultCache
	logger   *observability.Logger
	config   Config
}

// NewEngine creates a search engine. cache may be nil.
func NewEngine(embedder embedding.Embedder, idx index.Index, cache *ResultCache, logger *observability.Logger, config Config) *Engine {
	if logger == nil {
		logger = observability.NopLogger()
	}
	if config.Limit <= 0 {
		config.Limit = DefaultConfig().Limit
	}
	return &Engine{
		embedder: embedder,
		index:    idx,
		cache:    cache,
		logger:   logger,
		config:   config,
	}
}

// Search enhances, embeds and ranks query. Empty queries fail with
// domain.ErrEmptyQuery; embedding and index failures are transport or
// storage errors.
func (e *Engine) Search(ctx context.Context, query string, limit int) (*SearchOutcome, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, domain.InputError("search", domain.ErrEmptyQuery)
	}
	if limit <= 0 {
		limit = e.config.Limit
	}

	if cached, ok := e.cache.Get(ctx, query, limit); ok {
		e.logger.Debug().Str("query", query).Msg("Search cache hit")
		return cached, nil
	}

	start := time.Now()
	enh := Enhance(query)
	switch enh.Rule {
	case RuleTranslation:
		e.logger.Info().Str("term", enh.Term).Str("query", enh.Query).Msg("Query translated")
	case RuleBoost:
		e.logger.Info().Str("term", enh.Term).Str("query", enh.Query).Msg("Query boosted")
	case RuleBoostSuppressed:
		e.logger.Info().Str("term", enh.Term).Msg("Processed product detected, skipping boost")
	}

	rows, err := e.rank(ctx, enh.Query, limit)
	if err != nil {
		return nil, err
	}

	outcome := &SearchOutcome{Query: query, Enhancement: enh, Rows: rows}
	e.logTop(query, enh.Query, rows)

	if len(rows) > 0 && rows[0].Score < e.config.MinScore {
		if err := e.retryWords(ctx, outcome, limit); err != nil {
			return nil, err
		}
	}

	if len(outcome.Rows) > 0 {
		outcome.TopScore = outcome.Rows[0].Score
	}
	outcome.Results = Results(outcome.Rows)

	e.logger.Info().
		Str("query", query).
		Int("rows", len(outcome.Rows)).
		Int("results", len(outcome.Results)).
		Float64("top_score", outcome.TopScore).
		Bool("retried", outcome.Retried).
		Dur("latency", time.Since(start)).
		Msg("Search completed")

	e.cache.Set(ctx, query, limit, outcome)
	return outcome, nil
}

// SearchText is the agent-facing search: it never fails, reporting empty
// queries, empty result sets and backend errors as text.
func (e *Engine) SearchText(ctx context.Context, query string) string {
	outcome, err := e.Search(ctx, query, e.config.Limit)
	if err != nil {
		if domain.IsKind(err, domain.KindInput) {
			return MsgEmptyQuery
		}
		e.logger.Error().Err(err).Str("query", query).Msg("Search failed")
		return MsgSearchFailed
	}
	return outcome.Text()
}

// retryWords re-ranks each eligible word of the original query on its own
// and keeps a word's rows only when their top score beats the best so far
// by more than RetryImprovement.
func (e *Engine) retryWords(ctx context.Context, outcome *SearchOutcome, limit int) error {
	words := RetryWords(outcome.Query, e.config.MaxRetryWords)
	if len(words) == 0 {
		return nil
	}

	outcome.Retried = true
	best := outcome.Rows[0].Score
	e.logger.Info().Float64("top_score", best).Strs("words", words).Msg("Low score, retrying per word")

	for _, word := range words {
		if err := ctx.Err(); err != nil {
			return domain.TransportError("search retry cancelled", err)
		}

		rows, err := e.rank(ctx, word, limit)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			continue
		}
		if rows[0].Score > best+e.config.RetryImprovement {
			e.logger.Info().Str("word", word).Float64("score", rows[0].Score).Msg("Word retry improved results")
			outcome.Rows = rows
			outcome.RetryWord = word
			best = rows[0].Score
		}
	}
	return nil
}

// RetryWords splits query into lowercase words eligible for a retry,
// dropping stop words, words shorter than three characters and repeats.
func RetryWords(query string, max int) []string {
	seen := make(map[string]struct{})
	var words []string
	for _, w := range strings.Fields(strings.ToLower(query)) {
		if utf8.RuneCountInString(w) < minRetryWordLen {
			continue
		}
		if _, stop := stopWords[w]; stop {
			continue
		}
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		words = append(words, w)
		if max > 0 && len(words) == max {
			break
		}
	}
	return words
}

// rank embeds text and uses it for both halves of the fused query.
func (e *Engine) rank(ctx context.Context, text string, limit int) ([]index.Row, error) {
	vec, err := e.embedder.EmbedSingle(ctx, text)
	if err != nil {
		return nil, err
	}

	rows, err := e.index.HybridSearch(ctx, index.HybridQuery{
		Text:           text,
		Vector:         vec,
		Limit:          limit,
		LexicalWeight:  e.config.LexicalWeight,
		SemanticWeight: e.config.SemanticWeight,
		SectorBoost:    e.config.SectorBoost,
		RRFConstant:    e.config.RRFConstant,
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (e *Engine) logTop(query, enhanced string, rows []index.Row) {
	e.logger.Debug().Str("query", query).Str("enhanced", enhanced).Int("rows", len(rows)).Msg("Hybrid search")
	for i, row := range rows {
		if i == 5 {
			break
		}
		r := ExtractResult(row)
		e.logger.Debug().
			Int("rank", i+1).
			Float64("score", row.Score).
			Str("name", r.Name).
			Str("category", r.Category).
			Msg("Hybrid search row")
	}
}
