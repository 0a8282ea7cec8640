// Package config loads and validates the YAML configuration for the UBX
// engine daemon and compiler CLI, following the teacher's strict-unmarshal,
// zap-logged manager pattern.
package config

import (
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/edgecomet/ubx/internal/common/configtypes"
	"github.com/edgecomet/ubx/internal/common/yamlutil"
)

// Type aliases keep call sites short without re-exporting the whole configtypes package.
type (
	EngineConfig  = configtypes.EngineConfig
	ServerConfig  = configtypes.ServerConfig
	RedisConfig   = configtypes.RedisConfig
	ListsConfig   = configtypes.ListsConfig
	LogConfig     = configtypes.LogConfig
	MetricsConfig = configtypes.MetricsConfig
)

// Manager loads EngineConfig from a YAML file and validates it.
type Manager struct {
	config     *EngineConfig
	configPath string
	logger     *zap.Logger
}

// NewManager loads configuration from configPath and validates it.
func NewManager(configPath string, logger *zap.Logger) (*Manager, error) {
	cm := &Manager{configPath: configPath, logger: logger}
	if err := cm.Load(); err != nil {
		return nil, fmt.Errorf("failed to load initial config: %w", err)
	}
	return cm, nil
}

// Load (re)reads and validates the configuration file.
func (cm *Manager) Load() error {
	data, err := os.ReadFile(cm.configPath)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", cm.configPath, err)
	}

	cfg := defaultConfig()
	if err := yamlutil.UnmarshalStrict(data, &cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", cm.configPath, err)
	}

	if err := Validate(&cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	cm.config = &cfg
	if cm.logger != nil {
		cm.logger.Debug("configuration loaded", zap.String("path", cm.configPath))
	}
	return nil
}

// GetConfig returns the currently loaded configuration.
func (cm *Manager) GetConfig() *EngineConfig {
	return cm.config
}

// Validate checks structural invariants that yaml unmarshaling alone cannot
// enforce (cross-field constraints, required-when-enabled fields).
func Validate(cfg *EngineConfig) error {
	if cfg.SnapshotPath == "" {
		return fmt.Errorf("snapshot_path is required")
	}
	if cfg.DecisionCache.Capacity < 0 {
		return fmt.Errorf("decision_cache.capacity must be >= 0")
	}
	if cfg.Lists.MaxBytesPerList < 0 {
		return fmt.Errorf("lists.max_bytes_per_list must be >= 0")
	}
	if cfg.Telemetry != nil && cfg.Telemetry.SampleRate < 0 || cfg.Telemetry != nil && cfg.Telemetry.SampleRate > 1 {
		return fmt.Errorf("telemetry.sample_rate must be within [0,1]")
	}
	return nil
}

func defaultConfig() EngineConfig {
	return EngineConfig{
		Log: configtypes.LogConfig{
			Level: configtypes.LogLevelInfo,
			Console: configtypes.ConsoleLogConfig{
				Enabled: true,
				Format:  configtypes.LogFormatConsole,
			},
		},
		Metrics: configtypes.MetricsConfig{
			Namespace: "ubx",
		},
		Lists: configtypes.ListsConfig{
			MaxBytesPerList: 64 << 20, // 64 MiB safety limit, see spec.md §4.2 "Safety limits"
			FetchTimeout:    configtypes.Duration(10e9),
		},
		DecisionCache: configtypes.DecisionCacheConfig{
			Capacity: 4096,
		},
		RemoveparamTTL: configtypes.Duration(2e9), // 2s, see spec.md §4.3.1 A2
	}
}
