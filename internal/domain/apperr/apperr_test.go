package apperr

import (
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAs_ThroughWrap(t *testing.T) {
	err := errors.Wrap(NotFound("Order not found"), "get order")

	e, ok := As(err)
	require.True(t, ok)
	assert.Equal(t, KindNotFound, e.Kind)
	assert.Equal(t, "Order not found", e.Message)
	assert.True(t, IsKind(err, KindNotFound))
	assert.False(t, IsKind(err, KindInvalid))
}

func TestAs_PlainError(t *testing.T) {
	_, ok := As(errors.New("connection reset"))
	assert.False(t, ok)
}

func TestInvalidf(t *testing.T) {
	err := Invalidf("Only %d items available in stock", 3)
	assert.Equal(t, "Only 3 items available in stock", err.Error())
	assert.Equal(t, "invalid", err.Kind.String())
}
