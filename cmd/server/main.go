package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/annel0/mmo-game/internal/cache"
	"github.com/annel0/mmo-game/internal/component"
	"github.com/annel0/mmo-game/internal/config"
	"github.com/annel0/mmo-game/internal/engine"
	"github.com/annel0/mmo-game/internal/eventbus"
	"github.com/annel0/mmo-game/internal/logging"
	"github.com/annel0/mmo-game/internal/middleware"
	"github.com/annel0/mmo-game/internal/observability"
	"github.com/annel0/mmo-game/internal/storage"
	"github.com/annel0/mmo-game/internal/sync"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		logging.LogError("failed to load config: %v", err)
		os.Exit(1)
	}
	if cfg == nil {
		cfg = &config.Config{}
	}

	shutdownTelemetry, err := observability.InitTelemetry(context.Background(), "fluidsim-engine")
	if err != nil {
		logging.LogWarn("telemetry disabled: %v", err)
		shutdownTelemetry = func(context.Context) error { return nil }
	}
	defer shutdownTelemetry(context.Background())

	var bus eventbus.EventBus
	if cfg.EventBus.URL != "" {
		jsBus, err := eventbus.NewJetStreamBus(cfg.EventBus.URL, cfg.EventBus.Stream, time.Duration(cfg.EventBus.Retention)*time.Hour)
		if err != nil {
			logging.LogWarn("jetstream unavailable, falling back to in-memory bus: %v", err)
			bus = eventbus.NewMemoryBus(1024)
		} else {
			bus = jsBus
		}
	} else {
		bus = eventbus.NewMemoryBus(1024)
	}
	eventbus.Init(bus)
	if err := eventbus.StartLoggingListener(bus); err != nil {
		logging.LogWarn("event bus logging listener not started: %v", err)
	}

	busMetrics := eventbus.NewMetricsExporter(bus)
	metricsAddr := ":" + strconv.Itoa(cfg.Server.GetMetricsPort())
	busMetrics.StartHTTP(metricsAddr)
	defer busMetrics.Stop()
	logging.LogInfo("event bus metrics listening on %s", metricsAddr)

	deltaAddr := ":" + strconv.Itoa(cfg.Server.GetUDPPort())
	flushEvery := time.Duration(cfg.Sync.FlushEvery) * time.Second
	if flushEvery <= 0 {
		flushEvery = 100 * time.Millisecond
	}
	batchSize := cfg.Sync.BatchSize
	if batchSize <= 0 {
		batchSize = 256
	}
	deltaSvc, err := sync.NewDeltaBroadcastService(sync.SyncConfig{
		ListenAddr:   deltaAddr,
		RegionID:     cfg.Sync.RegionID,
		Bus:          bus,
		BatchSize:    batchSize,
		FlushEvery:   flushEvery,
		UseGzipCompr: cfg.Sync.UseGzipCompr,
	})
	if err != nil {
		logging.LogWarn("delta broadcast disabled: %v", err)
	} else {
		defer deltaSvc.Stop()
	}

	eng, err := engine.New(engineConfig(cfg))
	if err != nil {
		logging.LogError("failed to init fluid engine: %v", err)
		os.Exit(1)
	}

	worldStore, err := storage.NewWorldStorage(cfg.Persistence.GetDataDir())
	if err != nil {
		logging.LogError("failed to open world storage: %v", err)
		os.Exit(1)
	}
	defer worldStore.Close()

	if err := eng.Restore(worldStore); err != nil {
		logging.LogWarn("world restore incomplete: %v", err)
	}

	if cfg.Persistence.MysqlDSN != "" {
		auditLog, err := component.NewAuditLog(cfg.Persistence.MysqlDSN)
		if err != nil {
			logging.LogWarn("component audit log disabled: %v", err)
		} else {
			defer auditLog.Close()
			if err := auditLog.Subscribe(bus); err != nil {
				logging.LogWarn("component audit log subscribe failed: %v", err)
			}
		}
	}

	var snapshotArchive *storage.SnapshotArchive
	if cfg.Persistence.MongoURI != "" {
		archive, err := storage.NewSnapshotArchive(cfg.Persistence.MongoURI, "")
		if err != nil {
			logging.LogWarn("mongo snapshot archive disabled: %v", err)
		} else {
			defer archive.Close()
			snapshotArchive = archive
		}
	}

	if cfg.Persistence.RedisURL != "" {
		var invalidator cache.CacheInvalidator
		if cfg.EventBus.URL != "" {
			nodeID := cfg.Sync.RegionID
			if nodeID == "" {
				nodeID = "engine"
			}
			natsInvalidator, err := cache.NewNATSInvalidator(&cache.InvalidatorConfig{NATSURL: cfg.EventBus.URL}, nodeID)
			if err != nil {
				logging.LogWarn("cross-replica cache invalidation disabled: %v", err)
			} else {
				defer natsInvalidator.Close()
				err := natsInvalidator.SubscribeInvalidations(context.Background(), func(key string) error {
					logging.LogDebug("component query cache: peer invalidated %s", key)
					return nil
				})
				if err != nil {
					logging.LogWarn("cache invalidation subscribe failed: %v", err)
				}
				invalidator = natsInvalidator
			}
		}

		redisCache, err := cache.NewRedisCache(&cache.CacheConfig{RedisURL: cfg.Persistence.RedisURL, DefaultTTL: 2 * time.Second}, invalidator)
		if err != nil {
			logging.LogWarn("component query cache disabled: %v", err)
		} else {
			eng.AttachComponentCache(component.NewQueryCache(redisCache, 2*time.Second))
		}
	}

	adminSecretStr := cfg.Server.GetAdminJWTSecret()
	if adminSecretStr == "" {
		generated, err := middleware.GenerateAdminSecret()
		if err != nil {
			logging.LogError("failed to generate admin token secret: %v", err)
			os.Exit(1)
		}
		adminSecretStr = generated
	}
	adminSecret := []byte(adminSecretStr)
	adminToken, err := middleware.NewAdminToken(adminSecret, 24*time.Hour)
	if err != nil {
		logging.LogWarn("failed to mint admin token: %v", err)
	} else if cfg.Server.GetAdminJWTSecret() == "" {
		logging.LogInfo("no admin_jwt_secret configured; minted a 24h admin token: %s", adminToken)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.NewRequestLogger().Handler())
	promMW := middleware.NewPrometheusMiddleware("fluidsim")
	router.Use(promMW.Handler())
	promMW.RegisterMetricsEndpoint(router)
	admin := router.Group("/", middleware.RequireAdminJWT(adminSecret))
	registerAdminRoutes(admin, eng)

	restAddr := ":" + strconv.Itoa(cfg.Server.GetRESTPort())
	srv := &http.Server{Addr: restAddr, Handler: router}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.LogError("admin REST server stopped: %v", err)
		}
	}()
	logging.LogInfo("admin REST surface listening on %s", restAddr)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	checkpoint := time.NewTicker(30 * time.Second)
	defer checkpoint.Stop()
	for {
		select {
		case <-ticker.C:
			eng.Tick(0.05)
		case <-checkpoint.C:
			eng.WaitUntilQuiescent()
			if err := eng.Checkpoint(worldStore); err != nil {
				logging.LogWarn("checkpoint failed: %v", err)
			}
			if snapshotArchive != nil {
				id := time.Now().UTC().Format(time.RFC3339)
				if err := eng.ArchiveSnapshot(snapshotArchive, id); err != nil {
					logging.LogWarn("snapshot archive write failed: %v", err)
				}
			}
		case <-stop:
			logging.LogInfo("shutting down")
			eng.WaitUntilQuiescent()
			if err := eng.Checkpoint(worldStore); err != nil {
				logging.LogWarn("final checkpoint failed: %v", err)
			}
			if snapshotArchive != nil {
				id := "final-" + time.Now().UTC().Format(time.RFC3339)
				if err := eng.ArchiveSnapshot(snapshotArchive, id); err != nil {
					logging.LogWarn("final snapshot archive write failed: %v", err)
				}
			}
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			_ = srv.Shutdown(ctx)
			cancel()
			return
		}
	}
}

func engineConfig(cfg *config.Config) engine.Config {
	fluidTypes := make([]engine.FluidType, 0, len(cfg.Engine.FluidTypes))
	for _, ft := range cfg.Engine.FluidTypes {
		fluidTypes = append(fluidTypes, engine.FluidType{Viscosity: ft.Viscosity, Label: ft.Label})
	}
	if len(fluidTypes) == 0 {
		fluidTypes = []engine.FluidType{
			{Label: "water", Viscosity: 255},
			{Label: "lava", Viscosity: 20},
		}
	}
	blocksX, blocksY, blocksZ := cfg.Engine.BlocksX, cfg.Engine.BlocksY, cfg.Engine.BlocksZ
	if blocksX == 0 {
		blocksX, blocksY, blocksZ = 4, 4, 4
	}
	chunkSide, blockSide := cfg.Engine.ChunkSide, cfg.Engine.BlockSide
	if chunkSide == 0 {
		chunkSide, blockSide = 8, 4
	}
	voxelSize := cfg.Engine.VoxelSizeMeters
	if voxelSize == 0 {
		voxelSize = 1.0
	}
	return engine.Config{
		BlocksX:         blocksX,
		BlocksY:         blocksY,
		BlocksZ:         blocksZ,
		ChunkSide:       chunkSide,
		BlockSide:       blockSide,
		VoxelSizeMeters: voxelSize,
		FluidTypes:      fluidTypes,
		Workers:         cfg.Engine.GetWorkers(),
	}
}

