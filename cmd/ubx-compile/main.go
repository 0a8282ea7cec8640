// Command ubx-compile is the one-shot CLI for compile_filter_lists: it
// reads filter-list text from the configured sources, compiles a UBX
// snapshot, writes the snapshot bytes to disk, and logs the resulting
// statistics. It never serves traffic — that is cmd/ubx-matchd's job.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/edgecomet/ubx/internal/common/config"
	"github.com/edgecomet/ubx/internal/common/logger"
	"github.com/edgecomet/ubx/internal/statsstore"
	"github.com/edgecomet/ubx/internal/ubx/compiler"
	"github.com/edgecomet/ubx/internal/ubx/psl"
)

func main() {
	configPath := flag.String("c", "configs/example/ubx-compile.yaml", "path to compiler configuration file")
	outPath := flag.String("o", "", "path to write the compiled snapshot to (overrides snapshot_path)")
	buildID := flag.Uint("build-id", 0, "build ID to stamp into the snapshot header and stats rows")
	flag.Parse()

	initialLogger, err := logger.NewDefaultLogger()
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}

	cm, err := config.NewManager(*configPath, initialLogger.Logger)
	if err != nil {
		initialLogger.Fatal("failed to load compiler config", zap.Error(err))
	}
	cfg := cm.GetConfig()

	dynamicLogger, err := logger.NewLoggerWithStartupOverride(cfg.Log)
	if err != nil {
		initialLogger.Fatal("failed to create configured logger", zap.Error(err))
	}
	defer dynamicLogger.Sync()
	zapLogger := dynamicLogger.Logger

	var pslTable *psl.Table
	if cfg.PSL.Path != "" {
		pslTable, err = psl.LoadFile(cfg.PSL.Path)
		if err != nil {
			zapLogger.Fatal("failed to load public suffix list", zap.Error(err))
		}
	}

	statsStore, err := statsstore.NewStore(cfg.StatsStore, zapLogger)
	if err != nil {
		zapLogger.Fatal("failed to open stats store", zap.Error(err))
	}
	defer statsStore.Close()

	listTexts := make([]string, 0, len(cfg.Lists.Sources))
	for _, src := range cfg.Lists.Sources {
		text, err := readListSource(src, cfg.Lists.MaxBytesPerList)
		if err != nil {
			zapLogger.Fatal("failed to read filter list source",
				zap.String("source_id", src.ID), zap.Error(err))
		}
		listTexts = append(listTexts, text)
	}

	opts := compiler.DefaultOptions()
	opts.PSL = pslTable
	opts.BuildID = uint32(*buildID)
	opts.MaxBytesPerList = int(cfg.Lists.MaxBytesPerList)

	dynamicLogger.SwitchToConfiguredLevel()

	start := time.Now()
	result, err := compiler.Compile(listTexts, opts)
	if err != nil {
		zapLogger.Fatal("compile failed", zap.Error(err))
	}
	elapsed := time.Since(start)

	target := *outPath
	if target == "" {
		target = cfg.SnapshotPath
	}
	if target == "" {
		zapLogger.Fatal("no output path: pass -o or set snapshot_path in the config")
	}
	if err := os.WriteFile(target, result.SnapshotBytes, 0o644); err != nil {
		zapLogger.Fatal("failed to write snapshot", zap.String("path", target), zap.Error(err))
	}

	if statsStore != nil {
		ctx, cancel := ctxWithTimeout(5 * time.Second)
		defer cancel()
		if err := statsStore.RecordCompile(ctx, opts.BuildID, result.Stats); err != nil {
			zapLogger.Warn("failed to record compile stats", zap.Error(err))
		}
	}

	zapLogger.Info("compile finished",
		zap.String("snapshot_path", target),
		zap.Int("snapshot_bytes", len(result.SnapshotBytes)),
		zap.Int("rules_before", result.Stats.RulesBefore),
		zap.Int("rules_after", result.Stats.RulesAfter),
		zap.Int("rules_deduped", result.Stats.RulesDeduped),
		zap.Int("badfilter_rules", result.Stats.BadfilterRules),
		zap.Int("badfiltered_rules", result.Stats.BadfilteredRules),
		zap.Any("skipped_by_reason", result.Stats.SkippedByReason),
		zap.Duration("elapsed", elapsed))

	fmt.Printf("wrote %s (%d bytes, %d rules)\n", target, len(result.SnapshotBytes), result.Stats.RulesAfter)
}
