package config

import (
	"io/ioutil"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config корневая структура конфигурации приложения.
// Содержит секции Engine, EventBus, Sync, Server и Persistence.

type Config struct {
	Engine      EngineConfig      `yaml:"engine"`
	EventBus    EventBusConfig    `yaml:"eventbus"`
	Sync        SyncConfig        `yaml:"sync"`
	Server      ServerConfig      `yaml:"server"`
	Persistence PersistenceConfig `yaml:"persistence"`
}

// EngineConfig configures the fluid simulation core's grid geometry and
// registered fluid types (the §6 init parameters).
type EngineConfig struct {
	BlocksX         int               `yaml:"blocks_x"`
	BlocksY         int               `yaml:"blocks_y"`
	BlocksZ         int               `yaml:"blocks_z"`
	ChunkSide       int               `yaml:"chunk_side"`
	BlockSide       int               `yaml:"block_side"`
	VoxelSizeMeters float32           `yaml:"voxel_size_meters"`
	Workers         int               `yaml:"workers"`
	FluidTypes      []FluidTypeConfig `yaml:"fluid_types"`
}

// FluidTypeConfig is one registered fluid label/viscosity pair.
type FluidTypeConfig struct {
	Label     string `yaml:"label"`
	Viscosity uint8  `yaml:"viscosity"`
}

// GetWorkers returns the configured worker pool size, falling back to
// ENGINE_WORKERS then 0 (NumCPU).
func (e *EngineConfig) GetWorkers() int {
	if e.Workers > 0 {
		return e.Workers
	}
	if envVal := os.Getenv("ENGINE_WORKERS"); envVal != "" {
		if n, err := strconv.Atoi(envVal); err == nil && n > 0 {
			return n
		}
	}
	return 0
}

// PersistenceConfig locates the badger snapshot directory and optional
// downstream stores.
type PersistenceConfig struct {
	DataDir  string `yaml:"data_dir"`
	RedisURL string `yaml:"redis_url"`
	MysqlDSN string `yaml:"mysql_dsn"`
	MongoURI string `yaml:"mongo_uri"`
}

// GetDataDir returns the configured snapshot directory with an env and
// default fallback, matching ServerConfig's Get* idiom.
func (p *PersistenceConfig) GetDataDir() string {
	if p.DataDir != "" {
		return p.DataDir
	}
	if envVal := os.Getenv("ENGINE_DATA_DIR"); envVal != "" {
		return envVal
	}
	return "data"
}

type EventBusConfig struct {
	URL       string `yaml:"url"`
	Stream    string `yaml:"stream"`
	Retention int    `yaml:"retention_hours"`
}

type SyncConfig struct {
	RegionID     string `yaml:"region_id"`
	BatchSize    int    `yaml:"batch_size"`
	FlushEvery   int    `yaml:"flush_every_seconds"`
	UseGzipCompr bool   `yaml:"use_gzip_compression"`
}

type ServerConfig struct {
	TCPPort        int    `yaml:"tcp_port"`
	UDPPort        int    `yaml:"udp_port"`
	RESTPort       int    `yaml:"rest_port"`
	MetricsPort    int    `yaml:"metrics_port"`
	AdminJWTSecret string `yaml:"admin_jwt_secret"`
}

// GetTCPPort возвращает TCP порт с поддержкой fallback значений
func (s *ServerConfig) GetTCPPort() int {
	return getPortWithEnvFallback(s.TCPPort, "GAME_TCP_PORT", 7777)
}

// GetUDPPort возвращает UDP порт с поддержкой fallback значений
func (s *ServerConfig) GetUDPPort() int {
	return getPortWithEnvFallback(s.UDPPort, "GAME_UDP_PORT", 7778)
}

// GetRESTPort возвращает REST API порт с поддержкой fallback значений
func (s *ServerConfig) GetRESTPort() int {
	return getPortWithEnvFallback(s.RESTPort, "GAME_REST_PORT", 8088)
}

// GetMetricsPort возвращает Prometheus метрики порт с поддержкой fallback значений
func (s *ServerConfig) GetMetricsPort() int {
	return getPortWithEnvFallback(s.MetricsPort, "GAME_METRICS_PORT", 2112)
}

// GetAdminJWTSecret returns the configured admin-token signing secret,
// falling back to GAME_ADMIN_JWT_SECRET, then "" (meaning: mint one at
// startup instead of accepting a fixed one).
func (s *ServerConfig) GetAdminJWTSecret() string {
	if s.AdminJWTSecret != "" {
		return s.AdminJWTSecret
	}
	return os.Getenv("GAME_ADMIN_JWT_SECRET")
}

// getPortWithEnvFallback возвращает порт с приоритетом: config -> env -> default
func getPortWithEnvFallback(configPort int, envVar string, defaultPort int) int {
	// Если порт задан в конфиге и больше 0, используем его
	if configPort > 0 {
		return configPort
	}

	// Пробуем прочитать из environment variable
	if envVal := os.Getenv(envVar); envVal != "" {
		if port, err := strconv.Atoi(envVal); err == nil && port > 0 {
			return port
		}
	}

	// Используем дефолтное значение
	return defaultPort
}

// Load читает YAML файл конфигурации.
// Если path == "", пытается прочитать из ENV GAME_CONFIG или возвращает nil, nil.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("GAME_CONFIG")
		if path == "" {
			return nil, nil // конфиг не задан — использовать дефолты
		}
	}

	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
