// Package orders submits finalized orders to the store's order-management API.
package orders

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/spherical-ai/spherical/libs/retail-assistant/internal/domain"
	"github.com/spherical-ai/spherical/libs/retail-assistant/internal/observability"
)

// Payload is the order body accepted by the order API.
type Payload struct {
	CustomerName string `json:"nome_cliente"`
	Phone        string `json:"telefone"`
	Address      string `json:"endereco"`
	Payment      string `json:"forma"`
	Note         string `json:"observacao"`
	Items        []Line `json:"itens"`
}

// Line is one order item. Quantity is always a whole number of units.
type Line struct {
	ProductName string  `json:"nome_produto"`
	Quantity    int     `json:"quantidade"`
	UnitPrice   float64 `json:"preco_unitario"`
	Note        string  `json:"observacao"`
}

// Response is the order API's answer. OK is true only when the API
// confirmed the order; Text is the customer-facing summary.
type Response struct {
	Text       string `json:"text"`
	OK         bool   `json:"ok"`
	StatusCode int    `json:"status_code,omitempty"`
}

// Submitter sends an order.
type Submitter interface {
	Submit(ctx context.Context, payload Payload) (Response, error)
}

// Config holds order API settings.
type Config struct {
	BaseURL string
	Path    string
	Token   string
	Timeout time.Duration
}

// Client posts orders over HTTP. Submissions are not retried: a timed-out
// POST may still have created the order.
type Client struct {
	httpClient *http.Client
	url        string
	token      string
	logger     *observability.Logger
}

// NewClient creates an order API client.
func NewClient(cfg Config, logger *observability.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, domain.ConfigError("order API base URL is required", nil)
	}
	if cfg.Path == "" {
		cfg.Path = "/api/pedidos"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		url:        strings.TrimRight(cfg.BaseURL, "/") + "/" + strings.TrimLeft(cfg.Path, "/"),
		token:      cfg.Token,
		logger:     logger,
	}, nil
}

// Submit posts the payload. Network failures are transport errors. An HTTP
// answer is confirmed only for a 2xx status whose body, when it is a JSON
// object, does not report failure.
func (c *Client) Submit(ctx context.Context, payload Payload) (Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return Response{}, domain.DataError("encode order", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return Response{}, domain.TransportError("create order request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	requestID := observability.TraceIDFromContext(ctx)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	req.Header.Set("X-Request-ID", requestID)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error().Err(err).Str("phone", observability.MaskPhone(payload.Phone)).Msg("Order submission failed")
		return Response{}, domain.TransportError("send order", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return Response{}, domain.TransportError("read order response", err)
	}
	text := strings.TrimSpace(string(respBody))

	ok := resp.StatusCode >= 200 && resp.StatusCode < 300 && confirmed(respBody)

	c.logger.Info().
		Int("status", resp.StatusCode).
		Bool("confirmed", ok).
		Int("items", len(payload.Items)).
		Str("phone", observability.MaskPhone(payload.Phone)).
		Dur("latency", time.Since(start)).
		Msg("Order submitted")

	out := Response{OK: ok, StatusCode: resp.StatusCode}
	switch {
	case ok && text == "":
		out.Text = "✅ Pedido enviado com sucesso!"
	case ok:
		out.Text = fmt.Sprintf("✅ Pedido enviado com sucesso! Resposta: %s", text)
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		out.Text = fmt.Sprintf("❌ Pedido não confirmado: %s", text)
	default:
		out.Text = fmt.Sprintf("❌ Erro ao enviar pedido (HTTP %d): %s", resp.StatusCode, text)
	}
	return out, nil
}

// confirmed reads the API's own verdict from a JSON object body: a boolean
// sucesso/success/ok field wins, then a non-empty erro/error field rejects.
// Bodies that are not JSON objects, or carry no verdict, confirm.
func confirmed(body []byte) bool {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return true
	}
	for _, key := range []string{"sucesso", "success", "ok"} {
		var flag bool
		if raw, present := fields[key]; present && json.Unmarshal(raw, &flag) == nil {
			return flag
		}
	}
	for _, key := range []string{"erro", "error"} {
		raw, present := fields[key]
		if !present {
			continue
		}
		switch strings.TrimSpace(string(raw)) {
		case "null", "false", `""`, "{}", "[]":
			continue
		}
		return false
	}
	return true
}

var _ Submitter = (*Client)(nil)

// Unconfigured is the submitter used when no order API is set. Every
// submission fails with a config error.
type Unconfigured struct{}

// Submit always fails.
func (Unconfigured) Submit(ctx context.Context, payload Payload) (Response, error) {
	return Response{}, domain.ConfigError("order API is not configured", nil)
}

var _ Submitter = Unconfigured{}
