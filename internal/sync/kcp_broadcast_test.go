package sync

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKCPBroadcasterBindsAndStops(t *testing.T) {
	kb, err := NewKCPBroadcaster("127.0.0.1:0")
	require.NoError(t, err)

	assert.NotPanics(t, func() { kb.Broadcast([]byte("no sessions yet")) })

	kb.Stop()
}

func TestKCPBroadcasterRejectsBadAddress(t *testing.T) {
	_, err := NewKCPBroadcaster("not-an-address")
	assert.Error(t, err)
}
