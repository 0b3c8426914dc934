package sync

import (
	"time"

	"github.com/annel0/mmo-game/internal/eventbus"
	"github.com/annel0/mmo-game/internal/logging"
)

// DeltaBroadcastService координирует доставку settled-chunk дельт
// подключенным render-клиентам: KCPBroadcaster держит сессии, BatchManager
// накапливает и сжимает изменения, SyncProducer подписывается на шину
// событий движка.

type DeltaBroadcastService struct {
	bm          *BatchManager
	producer    *SyncProducer
	broadcaster *KCPBroadcaster
}

type SyncConfig struct {
	ListenAddr   string
	RegionID     string
	Bus          eventbus.EventBus
	BatchSize    int
	FlushEvery   time.Duration
	UseGzipCompr bool
}

func NewDeltaBroadcastService(cfg SyncConfig) (*DeltaBroadcastService, error) {
	var compressor DeltaCompressor
	if cfg.UseGzipCompr {
		compressor = NewSmartCompressor()
		logging.Info("🔄 DeltaBroadcastService: используется gzip-компрессия")
	} else {
		compressor = NewPassthroughCompressor()
		logging.Info("🔄 DeltaBroadcastService: компрессия отключена")
	}

	broadcaster, err := NewKCPBroadcaster(cfg.ListenAddr)
	if err != nil {
		return nil, err
	}

	bm := NewBatchManager(broadcaster, cfg.RegionID, cfg.BatchSize, cfg.FlushEvery, compressor)

	producer, err := NewSyncProducer(cfg.Bus, bm)
	if err != nil {
		broadcaster.Stop()
		bm.Stop()
		return nil, err
	}

	logging.Info("✅ DeltaBroadcastService инициализирован: region=%s, addr=%s, batch=%d, flush=%v",
		cfg.RegionID, cfg.ListenAddr, cfg.BatchSize, cfg.FlushEvery)

	return &DeltaBroadcastService{
		bm:          bm,
		producer:    producer,
		broadcaster: broadcaster,
	}, nil
}

func (s *DeltaBroadcastService) Stop() {
	s.producer.Stop()
	s.bm.Stop()
	s.broadcaster.Stop()
	logging.Info("🔄 DeltaBroadcastService остановлен")
}
