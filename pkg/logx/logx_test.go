package logx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	logger := NewLogger("clone")
	assert.Equal(t, "clone", logger.Component())
}

func TestSetDebug(t *testing.T) {
	orig := IsDebugEnabled()
	t.Cleanup(func() { SetDebug(orig) })

	SetDebug(true)
	assert.True(t, IsDebugEnabled())

	SetDebug(false)
	assert.False(t, IsDebugEnabled())
}

func TestWrap(t *testing.T) {
	assert.NoError(t, Wrap(nil, "noop"))

	inner := Errorf("boom")
	wrapped := Wrap(inner, "clone repository")
	require.Error(t, wrapped)
	assert.Equal(t, "clone repository: boom", wrapped.Error())
	assert.ErrorIs(t, wrapped, inner)
}
