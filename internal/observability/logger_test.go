package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMaskPhone(t *testing.T) {
	assert.Equal(t, "*******4321", MaskPhone("55119874321"))
	assert.Equal(t, "1234", MaskPhone("1234"))
	assert.Equal(t, "", MaskPhone(""))
}

func TestLogger_JSONFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogConfig{Level: "debug", Format: "json", Output: &buf, ServiceName: "test-svc"})

	ctx := ContextWithTraceID(context.Background(), "trace-1")
	logger.WithContext(ctx).WithCustomer("5511999998888").WithOperation("search").
		Info().Int("results", 3).Msg("done")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "test-svc", entry["service"])
	assert.Equal(t, "trace-1", entry["trace_id"])
	assert.Equal(t, "*********8888", entry["customer"])
	assert.Equal(t, "search", entry["operation"])
	assert.Equal(t, float64(3), entry["results"])
	assert.Equal(t, "done", entry["message"])
}

func TestTraceIDFromContext_Missing(t *testing.T) {
	assert.Empty(t, TraceIDFromContext(context.Background()))
}
