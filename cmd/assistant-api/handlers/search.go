package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/spherical-ai/spherical/libs/retail-assistant/internal/assistant"
	"github.com/spherical-ai/spherical/libs/retail-assistant/internal/domain"
	"github.com/spherical-ai/spherical/libs/retail-assistant/internal/fallback"
	"github.com/spherical-ai/spherical/libs/retail-assistant/internal/observability"
	"github.com/spherical-ai/spherical/libs/retail-assistant/internal/retrieval"
)

const maxSearchLimit = 100

// SearchHandler handles product search requests.
type SearchHandler struct {
	logger  *observability.Logger
	service *assistant.Service
}

// NewSearchHandler creates a search handler.
func NewSearchHandler(logger *observability.Logger, service *assistant.Service) *SearchHandler {
	return &SearchHandler{logger: logger, service: service}
}

// SearchRequestDTO is the search request body.
type SearchRequestDTO struct {
	Query string `json:"query"`
	Limit int    `json:"limit,omitempty"`
}

// SearchResponseDTO is the search response body. Text is what the agent
// receives as the tool output.
type SearchResponseDTO struct {
	Query       string                   `json:"query"`
	Text        string                   `json:"text"`
	Kind        fallback.Kind            `json:"kind"`
	Results     []retrieval.SearchResult `json:"results"`
	TopScore    float64                  `json:"topScore"`
	Retried     bool                     `json:"retried"`
	RetryWord   string                   `json:"retryWord,omitempty"`
	Enhancement retrieval.Enhancement    `json:"enhancement"`
	Cached      bool                     `json:"cached"`
}

// Search handles POST /search.
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req SearchRequestDTO
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, retrieval.MsgEmptyQuery, "")
		return
	}
	if req.Limit < 0 || req.Limit > maxSearchLimit {
		writeError(w, http.StatusBadRequest, "limit must be between 1 and 100", "")
		return
	}

	outcome, err := h.service.SearchOutcome(ctx, req.Query, req.Limit)
	if err != nil {
		if errors.Is(err, domain.ErrEmptyQuery) {
			writeError(w, http.StatusBadRequest, retrieval.MsgEmptyQuery, "")
			return
		}
		h.logger.WithContext(ctx).Error().Err(err).Str("query", req.Query).Msg("Search failed")
		writeError(w, http.StatusBadGateway, retrieval.MsgSearchFailed, "")
		return
	}

	writeJSON(w, http.StatusOK, SearchResponseDTO{
		Query:       outcome.Query,
		Text:        outcome.Text(),
		Kind:        fallback.FromSearch(outcome).Kind(),
		Results:     outcome.Results,
		TopScore:    outcome.TopScore,
		Retried:     outcome.Retried,
		RetryWord:   outcome.RetryWord,
		Enhancement: outcome.Enhancement,
		Cached:      outcome.Cached,
	})
}
