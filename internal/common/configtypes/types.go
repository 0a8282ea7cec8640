// Package configtypes holds the plain-data configuration shapes shared
// across the engine and its host daemons. Keeping them separate from
// internal/common/config avoids an import cycle between the loader and the
// packages (logger, redis) that need the shapes without the loading logic.
package configtypes

// Log level constants.
const (
	LogLevelDebug  = "debug"
	LogLevelInfo   = "info"
	LogLevelWarn   = "warn"
	LogLevelError  = "error"
	LogLevelDPanic = "dpanic"
	LogLevelPanic  = "panic"
	LogLevelFatal  = "fatal"
)

// Log format constants.
const (
	LogFormatJSON    = "json"
	LogFormatConsole = "console"
	LogFormatText    = "text"
)

// EngineConfig is the root configuration for a UBX engine daemon
// (cmd/ubx-matchd) or compiler invocation (cmd/ubx-compile).
type EngineConfig struct {
	Log            LogConfig            `yaml:"log"`
	Metrics        MetricsConfig        `yaml:"metrics"`
	Server         ServerConfig         `yaml:"server"`
	Redis          *RedisConfig         `yaml:"redis,omitempty"`
	Lists          ListsConfig          `yaml:"lists"`
	PSL            PSLConfig            `yaml:"psl"`
	RedirectEngine RedirectEngineConfig `yaml:"redirect_resources"`
	DecisionCache  DecisionCacheConfig  `yaml:"decision_cache"`
	RemoveparamTTL Duration             `yaml:"removeparam_guard_ttl"`
	TrustedSites   []string             `yaml:"trusted_sites,omitempty"`
	SnapshotPath   string               `yaml:"snapshot_path"`
	FallbackPath   string               `yaml:"fallback_snapshot_path,omitempty"`
	Telemetry      *TelemetryConfig     `yaml:"telemetry,omitempty"`
	StatsStore     *StatsStoreConfig    `yaml:"stats_store,omitempty"`
}

// ServerConfig configures the reference host daemon's HTTP listener.
type ServerConfig struct {
	Listen  string   `yaml:"listen"`
	Timeout Duration `yaml:"timeout"`
}

// RedisConfig configures the optional Redis-backed trusted-site store,
// removeparam guard, and snapshot-swap broadcast.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// ListsConfig describes where filter-list text is sourced from for
// compile_filter_lists. Size/timeout limits here are the "host's fetch
// layer" boundary mentioned in spec.md §4.2/§5 — the compiler itself only
// ever sees already-fetched text.
type ListsConfig struct {
	Sources         []ListSource `yaml:"sources"`
	MaxBytesPerList int64        `yaml:"max_bytes_per_list"`
	FetchTimeout    Duration     `yaml:"fetch_timeout"`
}

// ListSource is one filter-list origin: a local path or an HTTP URL.
type ListSource struct {
	ID  string `yaml:"id"`
	URL string `yaml:"url"`
}

// PSLConfig points at the public-suffix-list data file consumed by internal/ubx/psl.
type PSLConfig struct {
	Path string `yaml:"path"`
}

// RedirectEngineConfig points at the packaged redirect-resource directory
// (spec.md §6 "Redirect-URL convention").
type RedirectEngineConfig struct {
	ResourceDir string `yaml:"resource_dir"`
}

// DecisionCacheConfig configures the matcher's bounded decision LRU (spec.md §4.3.1).
type DecisionCacheConfig struct {
	Capacity int `yaml:"capacity"`
}

// TelemetryConfig configures the optional decision-telemetry sink.
type TelemetryConfig struct {
	ClickHouse *ClickHouseConfig `yaml:"clickhouse,omitempty"`
	SampleRate float64           `yaml:"sample_rate"`
}

// ClickHouseConfig configures the ClickHouse decision-telemetry sink.
type ClickHouseConfig struct {
	Addr     string `yaml:"addr"`
	Database string `yaml:"database"`
	Username string `yaml:"username"`
	Password string `yaml:"password,omitempty"`
	Table    string `yaml:"table"`
}

// StatsStoreConfig configures the optional MySQL compile-statistics audit store.
type StatsStoreConfig struct {
	DSN   string `yaml:"dsn"`
	Table string `yaml:"table"`
}

// LogConfig mirrors the teacher's dynamic console+file logger configuration.
type LogConfig struct {
	Level   string           `yaml:"level"`
	Console ConsoleLogConfig `yaml:"console"`
	File    FileLogConfig    `yaml:"file"`
}

type ConsoleLogConfig struct {
	Enabled bool   `yaml:"enabled"`
	Format  string `yaml:"format"`
	Level   string `yaml:"level,omitempty"`
}

type FileLogConfig struct {
	Enabled  bool           `yaml:"enabled"`
	Path     string         `yaml:"path"`
	Format   string         `yaml:"format"`
	Level    string         `yaml:"level,omitempty"`
	Rotation RotationConfig `yaml:"rotation"`
}

type RotationConfig struct {
	MaxSize    int  `yaml:"max_size"`
	MaxAge     int  `yaml:"max_age"`
	MaxBackups int  `yaml:"max_backups"`
	Compress   bool `yaml:"compress"`
}

// MetricsConfig configures the Prometheus metrics server.
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Listen    string `yaml:"listen"`
	Path      string `yaml:"path"`
	Namespace string `yaml:"namespace"`
}
