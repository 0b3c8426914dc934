package sync

import (
	"encoding/binary"
	"net"
	"sync"

	"github.com/xtaci/kcp-go/v5"

	"github.com/annel0/mmo-game/internal/logging"
)

// KCPBroadcaster fans a stream of compressed delta batches out to every
// render client connected over KCP: low-latency, ordered, retransmitting
// UDP, a better fit than raw TCP for a stream that clients only ever
// consume and never need reliably buffered while disconnected.
type KCPBroadcaster struct {
	listener net.Listener

	mu       sync.RWMutex
	sessions map[string]net.Conn

	quit chan struct{}
}

// NewKCPBroadcaster binds addr and starts accepting client sessions in
// the background. Each connected client receives every batch broadcast
// after it joins; nothing is replayed from before it connected.
func NewKCPBroadcaster(addr string) (*KCPBroadcaster, error) {
	listener, err := kcp.ListenWithOptions(addr, nil, 0, 0)
	if err != nil {
		return nil, err
	}
	kb := &KCPBroadcaster{
		listener: listener,
		sessions: make(map[string]net.Conn),
		quit:     make(chan struct{}),
	}
	go kb.acceptLoop()
	logging.Info("🔄 KCPBroadcaster: слушает %s", addr)
	return kb, nil
}

func (kb *KCPBroadcaster) acceptLoop() {
	for {
		conn, err := kb.listener.Accept()
		if err != nil {
			select {
			case <-kb.quit:
				return
			default:
				logging.Warn("KCPBroadcaster accept error: %v", err)
				continue
			}
		}
		id := conn.RemoteAddr().String()
		kb.mu.Lock()
		kb.sessions[id] = conn
		kb.mu.Unlock()
		logging.Info("🔗 KCPBroadcaster: клиент подключен %s", id)
		go kb.watchDisconnect(id, conn)
	}
}

// watchDisconnect drops a session once its peer stops reading: any read
// error (the client only ever pushes control bytes, if anything) means
// the connection is dead from our side too.
func (kb *KCPBroadcaster) watchDisconnect(id string, conn net.Conn) {
	buf := make([]byte, 64)
	for {
		if _, err := conn.Read(buf); err != nil {
			kb.mu.Lock()
			delete(kb.sessions, id)
			kb.mu.Unlock()
			conn.Close()
			logging.Info("🔌 KCPBroadcaster: клиент отключен %s", id)
			return
		}
	}
}

// Broadcast writes a length-prefixed payload to every connected client.
// A failed write is logged and that client is skipped for this batch;
// the session itself is removed only by watchDisconnect, once its read
// side fails. Writes are made without a deadline.
func (kb *KCPBroadcaster) Broadcast(payload []byte) {
	frame := make([]byte, 4+len(payload))
	binary.BigEndian.PutUint32(frame, uint32(len(payload)))
	copy(frame[4:], payload)

	kb.mu.RLock()
	defer kb.mu.RUnlock()
	for id, conn := range kb.sessions {
		if _, err := conn.Write(frame); err != nil {
			logging.Warn("KCPBroadcaster: write to %s failed: %v", id, err)
		}
	}
}

// Stop closes the listener and every open client session.
func (kb *KCPBroadcaster) Stop() {
	close(kb.quit)
	kb.listener.Close()
	kb.mu.Lock()
	defer kb.mu.Unlock()
	for _, conn := range kb.sessions {
		conn.Close()
	}
}
