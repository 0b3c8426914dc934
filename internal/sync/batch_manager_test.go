package sync

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingBroadcaster struct {
	mu       sync.Mutex
	payloads [][]byte
}

func (r *recordingBroadcaster) Broadcast(payload []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.payloads = append(r.payloads, payload)
}

func (r *recordingBroadcaster) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.payloads)
}

func TestBatchManagerFlushBroadcastsAccumulatedChanges(t *testing.T) {
	rb := &recordingBroadcaster{}
	bm := NewBatchManager(rb, "region-a", 10, time.Hour, NewPassthroughCompressor())
	defer bm.Stop()

	bm.AddChange(Change{Data: []byte("delta-1"), Priority: 3})
	bm.AddChange(Change{Data: []byte("delta-2"), Priority: 3})

	bm.flush()

	require.Equal(t, 1, rb.count())
	decoded, err := NewPassthroughCompressor().Decompress(rb.payloads[0])
	require.NoError(t, err)
	require.Len(t, decoded, 2)
}

func TestBatchManagerFlushSkipsEmptyBuffer(t *testing.T) {
	rb := &recordingBroadcaster{}
	bm := NewBatchManager(rb, "region-a", 10, time.Hour, nil)
	defer bm.Stop()

	bm.flush()

	assert.Equal(t, 0, rb.count())
}

func TestBatchManagerDropsLowestPriorityWhenFull(t *testing.T) {
	rb := &recordingBroadcaster{}
	bm := NewBatchManager(rb, "region-a", 2, time.Hour, NewPassthroughCompressor())
	defer bm.Stop()

	bm.AddChange(Change{Data: []byte("low"), Priority: 1})
	bm.AddChange(Change{Data: []byte("high"), Priority: 9})
	// buffer full; a mid-priority change should evict "low", not "high"
	bm.AddChange(Change{Data: []byte("mid"), Priority: 5})

	bm.mu.Lock()
	buffered := make([]Change, len(bm.buf))
	copy(buffered, bm.buf)
	bm.mu.Unlock()

	require.Len(t, buffered, 2)
	var datas []string
	for _, c := range buffered {
		datas = append(datas, string(c.Data))
	}
	assert.Contains(t, datas, "high")
	assert.Contains(t, datas, "mid")
	assert.NotContains(t, datas, "low")
}

func TestBatchManagerDropsIncomingWhenAllBufferedOutrank(t *testing.T) {
	rb := &recordingBroadcaster{}
	bm := NewBatchManager(rb, "region-a", 1, time.Hour, NewPassthroughCompressor())
	defer bm.Stop()

	bm.AddChange(Change{Data: []byte("important"), Priority: 9})
	bm.AddChange(Change{Data: []byte("trivial"), Priority: 0})

	bm.mu.Lock()
	defer bm.mu.Unlock()
	require.Len(t, bm.buf, 1)
	assert.Equal(t, "important", string(bm.buf[0].Data))
}
