package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_Format(t *testing.T) {
	err := TransportError("embedding request failed", errors.New("timeout"))
	assert.Equal(t, "[transport] embedding request failed: timeout", err.Error())

	bare := InputError("empty query", nil)
	assert.Equal(t, "[input] empty query", bare.Error())
}

func TestIsKind_WrappedChain(t *testing.T) {
	inner := StorageError("redis rpush", errors.New("connection refused"))
	wrapped := fmt.Errorf("add item: %w", inner)

	assert.True(t, IsKind(wrapped, KindStorage))
	assert.False(t, IsKind(wrapped, KindTransport))
	assert.False(t, IsKind(errors.New("plain"), KindStorage))
}

func TestIsKind_NestedKinds(t *testing.T) {
	err := InputError("cannot remove", TransportError("inner", ErrInvalidItemIndex))
	assert.True(t, IsKind(err, KindInput))
	assert.True(t, IsKind(err, KindTransport))
	assert.ErrorIs(t, err, ErrInvalidItemIndex)
}
