// Package telemetry streams sampled match decisions into ClickHouse for
// offline analysis (hit-rate by list, false-positive triage, rollout
// comparisons across snapshot builds). It is entirely optional: a nil
// *Sink or one built with no ClickHouse config behaves as a no-op, so the
// matching hot path never blocks on an analytics write.
package telemetry

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"go.uber.org/zap"

	"github.com/edgecomet/ubx/internal/common/configtypes"
)

// DecisionEvent is one sampled match_request outcome, denormalized for a
// ClickHouse wide-row insert.
type DecisionEvent struct {
	Time      time.Time
	RequestID string
	DocETLD1  string
	ReqETLD1  string
	Type      string
	Decision  string
	RuleID    uint32
	ListID    uint16
}

// Sink batches DecisionEvents and flushes them to ClickHouse on an
// interval, grounded on the engine's atomic-swap-then-batch-write idiom
// used elsewhere in the ambient stack for bursty, best-effort writes.
type Sink struct {
	conn       clickhouse.Conn
	table      string
	sampleRate float64
	logger     *zap.Logger

	mu      sync.Mutex
	buf     []DecisionEvent
	maxBuf  int
	closeCh chan struct{}
	wg      sync.WaitGroup
}

// NewSink connects to ClickHouse per cfg and starts a background flush
// loop. Returns (nil, nil) if cfg is nil, so callers can unconditionally
// call Record/Close without a nil check at every call site.
func NewSink(cfg *configtypes.TelemetryConfig, logger *zap.Logger) (*Sink, error) {
	if cfg == nil || cfg.ClickHouse == nil {
		return nil, nil
	}
	ch := cfg.ClickHouse

	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{ch.Addr},
		Auth: clickhouse.Auth{
			Database: ch.Database,
			Username: ch.Username,
			Password: ch.Password,
		},
		DialTimeout: 5 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("open clickhouse connection: %w", err)
	}
	if err := conn.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("ping clickhouse: %w", err)
	}

	rate := cfg.SampleRate
	if rate <= 0 {
		rate = 1.0
	}
	s := &Sink{
		conn:       conn,
		table:      ch.Table,
		sampleRate: rate,
		logger:     logger,
		maxBuf:     1000,
		closeCh:    make(chan struct{}),
	}
	s.wg.Add(1)
	go s.flushLoop()
	return s, nil
}

// Record enqueues ev for the next batch flush. Never blocks the caller on
// a full network round trip.
func (s *Sink) Record(ev DecisionEvent) {
	if s == nil {
		return
	}
	if s.sampleRate < 1.0 && rand.Float64() >= s.sampleRate {
		return
	}
	s.mu.Lock()
	s.buf = append(s.buf, ev)
	full := len(s.buf) >= s.maxBuf
	s.mu.Unlock()
	if full {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.flush()
		}()
	}
}

func (s *Sink) flushLoop() {
	defer s.wg.Done()
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.flush()
		case <-s.closeCh:
			s.flush()
			return
		}
	}
}

func (s *Sink) flush() {
	s.mu.Lock()
	if len(s.buf) == 0 {
		s.mu.Unlock()
		return
	}
	batch := s.buf
	s.buf = nil
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	chBatch, err := s.conn.PrepareBatch(ctx, fmt.Sprintf("INSERT INTO %s", s.table))
	if err != nil {
		s.logger.Warn("clickhouse prepare batch failed", zap.Error(err))
		return
	}
	for _, ev := range batch {
		if err := chBatch.Append(ev.Time, ev.RequestID, ev.DocETLD1, ev.ReqETLD1, ev.Type, ev.Decision, ev.RuleID, ev.ListID); err != nil {
			s.logger.Warn("clickhouse batch append failed", zap.Error(err))
			return
		}
	}
	if err := chBatch.Send(); err != nil {
		s.logger.Warn("clickhouse batch send failed", zap.Error(err), zap.Int("events", len(batch)))
	}
}

// Close flushes any buffered events and closes the ClickHouse connection.
func (s *Sink) Close() error {
	if s == nil {
		return nil
	}
	close(s.closeCh)
	s.wg.Wait()
	return s.conn.Close()
}
