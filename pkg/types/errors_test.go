package types

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorMatchesSentinelAndKind(t *testing.T) {
	err := NewError(KindNotFound, "memory mem_abc")

	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(err, ErrValidation))

	kind, ok := AsKind(err)
	require.True(t, ok)
	assert.Equal(t, KindNotFound, kind)
}

func TestWrapErrorPreservesUnderlying(t *testing.T) {
	base := errors.New("disk full")
	err := WrapError(KindStorageFailure, "insert memory", base)

	assert.True(t, errors.Is(err, base))
	kind, ok := AsKind(err)
	require.True(t, ok)
	assert.Equal(t, KindStorageFailure, kind)
}
