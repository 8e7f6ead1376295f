package orders

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/spherical-ai/spherical/libs/retail-assistant/internal/domain"
	"github.com/spherical-ai/spherical/libs/retail-assistant/internal/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfirmed(t *testing.T) {
	tests := []struct {
		body string
		want bool
	}{
		{``, true},
		{`pedido 42 criado`, true},
		{`{"id": 42}`, true},
		{`{"sucesso": true, "id": 42}`, true},
		{`{"sucesso": false, "erro": "telefone invalido"}`, false},
		{`{"success": false}`, false},
		{`{"ok": false, "message": "sucesso parcial"}`, false},
		{`{"erro": "estoque indisponivel"}`, false},
		{`{"error": {"code": 3}}`, false},
		{`{"erro": null, "id": 1}`, true},
		{`{"erro": ""}`, true},
	}

	for _, tt := range tests {
		t.Run(tt.body, func(t *testing.T) {
			assert.Equal(t, tt.want, confirmed([]byte(tt.body)))
		})
	}
}

func TestClient_Submit(t *testing.T) {
	var got Payload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/pedidos", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"id": 42}`))
	}))
	defer srv.Close()

	c, err := NewClient(Config{BaseURL: srv.URL + "/", Token: "secret"}, nil)
	require.NoError(t, err)

	resp, err := c.Submit(context.Background(), Payload{
		CustomerName: "Ana", Phone: "5511999998888", Address: "A combinar", Payment: "PIX",
		Items: []Line{{ProductName: "TOMATE", Quantity: 3, UnitPrice: 4}},
	})
	require.NoError(t, err)
	assert.True(t, resp.OK)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Text, `{"id": 42}`)
	assert.Equal(t, "Ana", got.CustomerName)
	require.Len(t, got.Items, 1)
	assert.Equal(t, 3, got.Items[0].Quantity)
}

func TestClient_Submit_RequestID(t *testing.T) {
	var ids []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ids = append(ids, r.Header.Get("X-Request-ID"))
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	c, err := NewClient(Config{BaseURL: srv.URL}, nil)
	require.NoError(t, err)

	ctx := observability.ContextWithTraceID(context.Background(), "trace-123")
	_, err = c.Submit(ctx, Payload{})
	require.NoError(t, err)
	_, err = c.Submit(context.Background(), Payload{})
	require.NoError(t, err)

	require.Len(t, ids, 2)
	assert.Equal(t, "trace-123", ids[0])
	assert.Len(t, ids[1], 36)
}

func TestClient_Submit_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "estoque indisponivel", http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	c, err := NewClient(Config{BaseURL: srv.URL}, nil)
	require.NoError(t, err)

	resp, err := c.Submit(context.Background(), Payload{})
	require.NoError(t, err)
	assert.False(t, resp.OK)
	assert.Contains(t, resp.Text, "HTTP 422")
	assert.Contains(t, resp.Text, "estoque indisponivel")
}

func TestClient_Submit_Verdict(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantOK   bool
		wantText string
	}{
		{"rejected body mentioning sucesso", http.StatusBadRequest, `{"sucesso": false, "erro": "telefone invalido"}`, false, "HTTP 400"},
		{"non-2xx claiming sucesso", http.StatusInternalServerError, `{"sucesso": true}`, false, "HTTP 500"},
		{"2xx reporting failure", http.StatusOK, `{"sucesso": false, "erro": "sem estoque"}`, false, "não confirmado"},
		{"2xx confirmed", http.StatusCreated, `{"sucesso": true, "id": 9}`, true, "✅"},
		{"2xx empty body", http.StatusNoContent, ``, true, "✅ Pedido enviado com sucesso!"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c, err := NewClient(Config{BaseURL: srv.URL}, nil)
			require.NoError(t, err)

			resp, err := c.Submit(context.Background(), Payload{})
			require.NoError(t, err)
			assert.Equal(t, tt.wantOK, resp.OK)
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.Contains(t, resp.Text, tt.wantText)
		})
	}
}

func TestClient_Submit_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := NewClient(Config{BaseURL: url}, nil)
	require.NoError(t, err)

	_, err = c.Submit(context.Background(), Payload{})
	assert.True(t, domain.IsKind(err, domain.KindTransport))
}

func TestNewClient_RequiresURL(t *testing.T) {
	_, err := NewClient(Config{}, nil)
	assert.True(t, domain.IsKind(err, domain.KindConfig))
}
