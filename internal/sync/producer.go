package sync

import (
	"context"

	"github.com/annel0/mmo-game/internal/eventbus"
)

// SyncProducer subscribes to settled-chunk notifications published by the
// fluid engine and feeds them to the BatchManager as render deltas.

type SyncProducer struct {
	bus eventbus.EventBus
	bm  *BatchManager
	sub eventbus.Subscription
}

func NewSyncProducer(bus eventbus.EventBus, bm *BatchManager) (*SyncProducer, error) {
	sp := &SyncProducer{bus: bus, bm: bm}
	sub, err := bus.Subscribe(context.Background(), eventbus.Filter{Types: []string{"chunk.settled"}}, sp.handle)
	if err != nil {
		return nil, err
	}
	sp.sub = sub
	return sp, nil
}

func (sp *SyncProducer) handle(ctx context.Context, ev *eventbus.Envelope) {
	sp.bm.AddChange(Change{
		Data:         ev.Payload,
		Priority:     3,
		Timestamp:    ev.Timestamp,
		SourceRegion: ev.Source,
		ChangeType:   "ChunkSettled",
	})
}

func (sp *SyncProducer) Stop() { sp.sub.Unsubscribe() }
