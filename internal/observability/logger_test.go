package observability

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	logger, err := New("debug", "text")
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(-1)) // debug level

	logger, err = New("error", "json")
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(0)) // info suppressed

	_, err = New("verbose", "json")
	assert.Error(t, err)
}

func TestOrNop(t *testing.T) {
	assert.NotNil(t, OrNop(nil))

	logger, err := New("info", "json")
	require.NoError(t, err)
	assert.Same(t, logger, OrNop(logger))
}
