// Package statsstore persists compile_filter_lists statistics to MySQL so
// a compile-history dashboard can chart rule counts, dedup rates, and
// skip reasons across builds without re-parsing snapshot bytes. Entirely
// optional: a nil *Store is a safe no-op.
package statsstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"go.uber.org/zap"

	"github.com/edgecomet/ubx/internal/common/configtypes"
	"github.com/edgecomet/ubx/internal/ubx/compiler"
)

// Store writes one row per compile_filter_lists invocation.
type Store struct {
	db     *sql.DB
	table  string
	logger *zap.Logger
}

// NewStore opens a MySQL connection pool per cfg. Returns (nil, nil) if
// cfg is nil.
func NewStore(cfg *configtypes.StatsStoreConfig, logger *zap.Logger) (*Store, error) {
	if cfg == nil {
		return nil, nil
	}
	db, err := sql.Open("mysql", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping mysql: %w", err)
	}

	return &Store{db: db, table: cfg.Table, logger: logger}, nil
}

// RecordCompile inserts one row summarizing a compile run: the build ID,
// overall rule counts, and the skip-reason breakdown as JSON (MySQL's
// native JSON column type, so downstream queries can still filter on
// individual reasons without a join table).
func (s *Store) RecordCompile(ctx context.Context, buildID uint32, stats compiler.Stats) error {
	if s == nil {
		return nil
	}
	skipped, err := json.Marshal(stats.SkippedByReason)
	if err != nil {
		return fmt.Errorf("marshal skip reasons: %w", err)
	}
	perList, err := json.Marshal(stats.PerList)
	if err != nil {
		return fmt.Errorf("marshal per-list stats: %w", err)
	}

	query := fmt.Sprintf(`INSERT INTO %s
		(build_id, rules_before, rules_after, rules_deduped, badfilter_rules, badfiltered_rules, skipped_by_reason, per_list, compiled_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`, s.table)

	_, err = s.db.ExecContext(ctx, query,
		buildID, stats.RulesBefore, stats.RulesAfter, stats.RulesDeduped,
		stats.BadfilterRules, stats.BadfilteredRules, skipped, perList, time.Now())
	if err != nil {
		s.logger.Warn("statsstore insert failed", zap.Error(err))
		return fmt.Errorf("insert compile stats: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	return s.db.Close()
}
