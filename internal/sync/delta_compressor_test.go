package sync

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPassthroughCompressorRoundTrip(t *testing.T) {
	c := NewPassthroughCompressor()
	changes := []Change{
		{Data: []byte("chunk-a")},
		{Data: []byte("chunk-bb")},
	}

	payload, err := c.Compress(changes)
	require.NoError(t, err)

	out, err := c.Decompress(payload)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, []byte("chunk-a"), out[0].Data)
	assert.Equal(t, []byte("chunk-bb"), out[1].Data)
}

func TestSmartCompressorRoundTrip(t *testing.T) {
	c := NewSmartCompressor()
	changes := []Change{{Data: []byte("settled chunk payload")}}

	payload, err := c.Compress(changes)
	require.NoError(t, err)

	out, err := c.Decompress(payload)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, []byte("settled chunk payload"), out[0].Data)
}

func TestSmartCompressorShrinksRepetitiveBatches(t *testing.T) {
	c := NewSmartCompressor()
	repeated := make([]Change, 20)
	for i := range repeated {
		repeated[i] = Change{Data: []byte("same delta bytes every time")}
	}

	compressed, err := c.Compress(repeated)
	require.NoError(t, err)

	plain := NewPassthroughCompressor()
	uncompressed, err := plain.Compress(repeated)
	require.NoError(t, err)

	assert.Less(t, len(compressed), len(uncompressed))
}
