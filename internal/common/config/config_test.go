package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgecomet/ubx/internal/common/configtypes"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "engine.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestNewManager_LoadsDefaults(t *testing.T) {
	path := writeConfig(t, "snapshot_path: /var/lib/ubx/current.ubx\n")

	mgr, err := NewManager(path, nil)
	require.NoError(t, err)

	cfg := mgr.GetConfig()
	assert.Equal(t, "/var/lib/ubx/current.ubx", cfg.SnapshotPath)
	assert.Equal(t, 4096, cfg.DecisionCache.Capacity)
	assert.Equal(t, int64(64<<20), cfg.Lists.MaxBytesPerList)
}

func TestNewManager_MissingSnapshotPath(t *testing.T) {
	path := writeConfig(t, "log:\n  level: debug\n")

	_, err := NewManager(path, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "snapshot_path is required")
}

func TestNewManager_RejectsUnknownField(t *testing.T) {
	path := writeConfig(t, "snapshot_path: /tmp/x.ubx\nbogus_field: true\n")

	_, err := NewManager(path, nil)
	require.Error(t, err)
}

func TestValidate_NegativeDecisionCache(t *testing.T) {
	cfg := EngineConfig{SnapshotPath: "x", DecisionCache: configtypes.DecisionCacheConfig{Capacity: -1}}
	err := Validate(&cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decision_cache.capacity")
}
