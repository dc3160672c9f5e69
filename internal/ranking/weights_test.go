package ranking

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultWeights(t *testing.T) {
	w := DefaultWeights()
	assert.InDelta(t, 1.0, w.Sum(), 1e-12)
	assert.NoError(t, w.Validate())
}

func TestParseWeights(t *testing.T) {
	w, err := ParseWeights("0.4, 0.2, 0.15, 0.1, 0.1, 0.05")
	require.NoError(t, err)
	assert.Equal(t, DefaultWeights(), w)

	w, err = ParseWeights(DefaultWeights().String())
	require.NoError(t, err)
	assert.Equal(t, DefaultWeights(), w)

	for _, bad := range []string{"", "0.5,0.5", "0.4,0.2,0.15,0.1,0.1,x", "0.5,0.2,0.15,0.1,0.1,0.05", "1.2,-0.2,0,0,0,0"} {
		_, err := ParseWeights(bad)
		assert.Error(t, err, bad)
	}
}
