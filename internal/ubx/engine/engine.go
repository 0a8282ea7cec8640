// Package engine is the composition root for the matching pipeline: it
// owns the live snapshot, the decision cache, and the trusted-site set as
// fields of one value (spec.md §9 "Global state... should be modeled as
// fields of a single Engine value. No hidden singletons; tests construct
// their own engines."). Grounded on the teacher's EGConfigManager
// atomic.Pointer swap idiom (internal/common/config/config.go).
package engine

import (
	"context"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/v4/process"
	"go.uber.org/zap"

	"github.com/edgecomet/ubx/internal/common/redis"
	"github.com/edgecomet/ubx/internal/statsstore"
	"github.com/edgecomet/ubx/internal/telemetry"
	"github.com/edgecomet/ubx/internal/ubx/compiler"
	"github.com/edgecomet/ubx/internal/ubx/format"
	"github.com/edgecomet/ubx/internal/ubx/matcher"
	matchermetrics "github.com/edgecomet/ubx/internal/ubx/matcher/metrics"
	"github.com/edgecomet/ubx/internal/ubx/psl"
)

// Engine holds one live snapshot plus the state that must stay coherent
// with it (the decision cache). Construct one per process (or per test);
// there is no package-level instance.
type Engine struct {
	snapshot  atomic.Pointer[format.Snapshot]
	cache     *decisionCache
	trusted   *trustedSet
	pslTable  *psl.Table
	dynamic   matcher.DynamicFilter
	redirects *surrogateCatalog
	loopGuard matcher.RemoveparamGuard
	redis     *redis.Client
	logger    *zap.Logger
	metrics   *matchermetrics.MetricsCollector
	telemetry *telemetry.Sink
	stats     *statsstore.Store
	swappedAt atomic.Int64 // unix nanos of the last successful swap
}

// Options configures a new Engine.
type Options struct {
	CacheSize int // decision-cache capacity; 0 uses a sane default
	PSL       *psl.Table
	Dynamic   matcher.DynamicFilter
	Logger    *zap.Logger

	// Redis, when set, backs the removeparam loop guard with a shared
	// instance so multiple Engine processes behind the same host share
	// guard entries (spec.md §9 open question on cross-instance state), and
	// receives a publish on the snapshot-swap channel after each install.
	// Nil means single-process, in-memory-only behavior.
	Redis *redis.Client

	// MetricsNamespace, when non-empty, turns on Prometheus instrumentation
	// for this engine under that namespace. Empty disables metrics entirely.
	MetricsNamespace string

	// Telemetry and StatsStore are optional sinks the engine records
	// sampled decisions and compile statistics into. Both are nil-safe: a
	// nil *Sink/*Store turns every Record/RecordCompile call into a no-op.
	Telemetry *telemetry.Sink
	StatsStore *statsstore.Store
}

// New builds an Engine with no snapshot loaded; callers must call Load
// before MatchRequest will return anything other than fail-open ALLOW.
func New(opts Options) *Engine {
	size := opts.CacheSize
	if size <= 0 {
		size = 8192
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Engine{
		cache:     newDecisionCache(size),
		trusted:   newTrustedSet(nil),
		pslTable:  opts.PSL,
		dynamic:   opts.Dynamic,
		redirects: newSurrogateCatalog(),
		redis:     opts.Redis,
		logger:    logger,
		telemetry: opts.Telemetry,
		stats:     opts.StatsStore,
	}
	if opts.Redis != nil {
		e.loopGuard = newRedisLoopGuard(opts.Redis)
	} else {
		e.loopGuard = newLocalLoopGuard()
	}
	if opts.MetricsNamespace != "" {
		e.metrics = matchermetrics.NewMetricsCollector(opts.MetricsNamespace, logger)
	}
	return e
}

// Metrics returns the engine's metrics collector, or nil if none was
// configured (Options.MetricsNamespace was empty).
func (e *Engine) Metrics() *matchermetrics.MetricsCollector {
	return e.metrics
}

// Load parses raw as a UBX snapshot and installs it atomically, clearing
// the decision cache so no stale decision survives the swap (spec.md §5
// "construct and validate off the hot path; install atomically; clear the
// decision cache").
func (e *Engine) Load(raw []byte) error {
	snap, err := format.Load(raw)
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}
	e.swap(snap)
	return nil
}

// LoadOrFallback tries raw first and, on failure, falls back to
// fallbackRaw (typically the last-known-good snapshot bytes kept on
// local disk) so a corrupt fetch never leaves the engine snapshot-less.
func (e *Engine) LoadOrFallback(raw, fallbackRaw []byte) error {
	if err := e.Load(raw); err != nil {
		e.logger.Warn("snapshot load failed, falling back to last-known-good", zap.Error(err))
		return e.Load(fallbackRaw)
	}
	return nil
}

func (e *Engine) swap(snap *format.Snapshot) {
	e.snapshot.Store(snap)
	e.cache.clear()
	e.swappedAt.Store(time.Now().UnixNano())
	if e.metrics != nil {
		e.metrics.RecordSnapshotSwap()
	}
	if e.redis != nil {
		e.notifySwap()
	}
}

// SnapshotAge returns how long the currently installed snapshot has been
// live, or zero if none has ever been loaded.
func (e *Engine) SnapshotAge() time.Duration {
	at := e.swappedAt.Load()
	if at == 0 {
		return 0
	}
	return time.Since(time.Unix(0, at))
}

// notifySwap publishes to the snapshot-swap channel after this process
// installs a new snapshot. Nothing in this module subscribes to the
// channel, so other engine processes' decision caches are not cleared by
// it. Best-effort: a publish failure is logged, not fatal — the local swap
// already happened.
func (e *Engine) notifySwap() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	channel := redis.NewKeyGenerator().SnapshotSwapChannel()
	if err := e.redis.GetClient().Publish(ctx, channel, "swap").Err(); err != nil {
		e.logger.Warn("snapshot-swap notify failed", zap.Error(err))
	}
}

// SetTrustedSites replaces the trusted eTLD+1 set wholesale.
func (e *Engine) SetTrustedSites(etld1s []string) {
	e.trusted.replace(etld1s)
}

// AddRedirectResource registers a surrogate resource the A4 redirect stage
// can resolve a $redirect token to, beyond the small built-in set.
func (e *Engine) AddRedirectResource(token, dataURL string) {
	e.redirects.AddResource(token, dataURL)
}

// MatchRequest resolves one request against the currently installed
// snapshot, consulting (and populating) the decision cache. Returns
// fail-open ALLOW if no snapshot has been loaded yet.
func (e *Engine) MatchRequest(req matcher.Request, isMainFrame bool) matcher.Decision {
	snap := e.snapshot.Load()
	if snap == nil {
		return matcher.Decision{Kind: matcher.DecisionAllow}
	}

	ctx := matcher.DeriveContext(req, req.Initiator, e.pslTable, isMainFrame)
	if d, ok := e.cache.get(ctx, req); ok {
		if e.metrics != nil {
			e.metrics.RecordCacheLookup(true)
			e.metrics.RecordDecision(decisionKindLabel(d.Kind))
		}
		return d
	}
	if e.metrics != nil {
		e.metrics.RecordCacheLookup(false)
	}

	collab := matcher.Collaborators{
		Trusted:          e.trusted,
		Dynamic:          e.dynamic,
		RedirectCatalog:  e.redirects,
		RemoveparamGuard: e.loopGuard,
	}
	d := matcher.MatchRequest(snap, e.pslTable, collab, req, isMainFrame)
	if e.metrics != nil {
		e.metrics.RecordDecision(decisionKindLabel(d.Kind))
	}
	if e.telemetry != nil {
		e.telemetry.Record(telemetry.DecisionEvent{
			Time:      time.Now(),
			RequestID: req.RequestID,
			DocETLD1:  ctx.DocETLD1,
			ReqETLD1:  ctx.ReqETLD1,
			Type:      fmt.Sprintf("%d", req.Type),
			Decision:  decisionKindLabel(d.Kind),
			RuleID:    d.RuleID,
			ListID:    d.ListID,
		})
	}
	// REMOVEPARAM decisions carry a sanitized URL the host must re-dispatch
	// as a brand-new request; caching it against this request's key would
	// make the cache answer stale the moment that re-dispatch lands.
	if d.Kind != matcher.DecisionRemoveparam {
		e.cache.put(ctx, req, d)
	}
	return d
}

func decisionKindLabel(k matcher.DecisionKind) string {
	switch k {
	case matcher.DecisionAllow:
		return "allow"
	case matcher.DecisionBlock:
		return "block"
	case matcher.DecisionRedirect:
		return "redirect"
	case matcher.DecisionRemoveparam:
		return "removeparam"
	default:
		return "unknown"
	}
}

// MatchResponseHeaders resolves the response-header pipeline (spec.md
// §4.3.2) for one document response: header-based block/allow, the
// response headers to strip, and the CSP directives to inject.
func (e *Engine) MatchResponseHeaders(req matcher.Request, headers []matcher.Header, isMainFrame bool) matcher.ResponseHeaderResult {
	snap := e.snapshot.Load()
	if snap == nil {
		return matcher.ResponseHeaderResult{Decision: matcher.Decision{Kind: matcher.DecisionAllow}}
	}
	return matcher.MatchResponseHeaders(snap, e.pslTable, req, headers, isMainFrame)
}

// MatchCosmetics resolves the cosmetic/scriptlet pipeline (spec.md §4.3.3)
// for host. Returns an empty result if no snapshot has been loaded yet.
func (e *Engine) MatchCosmetics(host string, enableGeneric bool) (matcher.CosmeticResult, error) {
	snap := e.snapshot.Load()
	if snap == nil {
		return matcher.CosmeticResult{}, nil
	}
	return matcher.MatchCosmetics(snap, host, enableGeneric)
}

// GetETLD1 computes the effective top-level-domain-plus-one of host using
// the engine's loaded PSL table (spec.md §6 get_etld1).
func (e *Engine) GetETLD1(host string) string {
	if e.pslTable == nil {
		return ""
	}
	return e.pslTable.ETLD1(host)
}

// CompileFilterLists runs the compiler over listTexts and returns the
// compiled snapshot bytes and statistics (spec.md §6 compile_filter_lists).
// It does not install the result; call Load with the returned bytes to do
// that, keeping "compile" and "install" independently testable.
func (e *Engine) CompileFilterLists(listTexts []string, opts compiler.Options) (compiler.Result, error) {
	if opts.PSL == nil {
		opts.PSL = e.pslTable
	}
	start := time.Now()
	result, err := compiler.Compile(listTexts, opts)
	if e.metrics != nil {
		e.metrics.ObserveCompileDuration(time.Since(start))
		for reason, n := range result.Stats.SkippedByReason {
			e.metrics.RecordRulesSkipped(string(reason), n)
		}
	}
	if err == nil && e.stats != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if serr := e.stats.RecordCompile(ctx, opts.BuildID, result.Stats); serr != nil {
			e.logger.Warn("statsstore record failed", zap.Error(serr))
		}
	}
	return result, err
}

// SnapshotInfo is the diagnostic payload get_snapshot_info returns
// (spec.md §6): section inventory, byte size, and this process's memory
// footprint, so a host can judge whether a swap is overdue or a snapshot
// grew unexpectedly large.
type SnapshotInfo struct {
	Loaded       bool
	BuildID      uint32
	SizeBytes    int
	SectionCount int
	AgeSeconds   float64
	ProcessRSSKB uint64
}

// GetSnapshotInfo reports the installed snapshot's identity and size
// alongside this process's resident memory, using gopsutil so the figure
// reflects actual RSS rather than Go's heap-only runtime.MemStats (spec.md
// §6 get_snapshot_info).
func (e *Engine) GetSnapshotInfo() SnapshotInfo {
	snap := e.snapshot.Load()
	if snap == nil {
		return SnapshotInfo{ProcessRSSKB: processRSSKB()}
	}
	age := e.SnapshotAge()
	if e.metrics != nil {
		e.metrics.SetSnapshotAge(age)
	}
	return SnapshotInfo{
		Loaded:       true,
		BuildID:      snap.Header.BuildID,
		SizeBytes:    snap.Size(),
		SectionCount: len(snap.SectionIDs()),
		AgeSeconds:   age.Seconds(),
		ProcessRSSKB: processRSSKB(),
	}
}

func processRSSKB() uint64 {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return 0
	}
	info, err := p.MemoryInfo()
	if err != nil || info == nil {
		return 0
	}
	return info.RSS / 1024
}

// Snapshot returns the currently installed snapshot, or nil if none has
// been loaded.
func (e *Engine) Snapshot() *format.Snapshot {
	return e.snapshot.Load()
}

// Close releases the optional sinks (telemetry, statsstore) and the Redis
// client this engine was constructed with. Safe to call even if none were
// configured.
func (e *Engine) Close() error {
	if err := e.telemetry.Close(); err != nil {
		return err
	}
	if err := e.stats.Close(); err != nil {
		return err
	}
	if e.redis != nil {
		return e.redis.Close()
	}
	return nil
}
