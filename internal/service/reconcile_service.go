package service

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/nickrsmith/og-platform-sub004/internal/lock"
	"github.com/nickrsmith/og-platform-sub004/internal/metrics"
	"github.com/nickrsmith/og-platform-sub004/internal/repository"
	"github.com/nickrsmith/og-platform-sub004/internal/scratch"
)

// ReconcileService repairs the two known drift modes of the system:
// aggregate counters diverging from the true count/sum over document rows
// (counter update and node mutation do not share one transaction), and
// orphaned scratch files whose document row was never created. Both repairs
// are idempotent; drift is logged and counted, never surfaced to clients.
type ReconcileService struct {
	roomRepo repository.DataRoomRepository
	docRepo  repository.DocumentRepository
	scratch  *scratch.Store
	locker   lock.Locker
	metrics  *metrics.Metrics
	logger   zerolog.Logger
	config   ReconcileConfig

	// Control
	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
	doneChan chan struct{}
}

// ReconcileConfig contains reconciliation configuration.
type ReconcileConfig struct {
	// Enabled determines if reconciliation runs automatically.
	Enabled bool

	// Interval is how often to run reconciliation.
	Interval time.Duration

	// OrphanAge is how old an unreferenced scratch file must be before the
	// sweeper removes it. The grace period protects uploads whose row insert
	// is still in flight.
	OrphanAge time.Duration
}

// DefaultReconcileConfig returns sensible defaults.
func DefaultReconcileConfig() ReconcileConfig {
	return ReconcileConfig{
		Enabled:   true,
		Interval:  1 * time.Hour,
		OrphanAge: 24 * time.Hour,
	}
}

// NewReconcileService creates a new reconciler.
func NewReconcileService(
	roomRepo repository.DataRoomRepository,
	docRepo repository.DocumentRepository,
	scratchStore *scratch.Store,
	locker lock.Locker,
	m *metrics.Metrics,
	logger zerolog.Logger,
	config ReconcileConfig,
) *ReconcileService {
	return &ReconcileService{
		roomRepo: roomRepo,
		docRepo:  docRepo,
		scratch:  scratchStore,
		locker:   locker,
		metrics:  m,
		logger:   logger.With().Str("service", "reconcile").Logger(),
		config:   config,
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}
}

// Start begins the reconciliation scheduler.
func (r *ReconcileService) Start() {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return
	}
	r.running = true
	r.mu.Unlock()

	r.logger.Info().
		Dur("interval", r.config.Interval).
		Dur("orphan_age", r.config.OrphanAge).
		Msg("Starting reconciler")

	go r.runLoop()
}

// Stop stops the reconciliation scheduler.
func (r *ReconcileService) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	r.mu.Unlock()

	close(r.stopChan)
	<-r.doneChan

	r.logger.Info().Msg("Reconciler stopped")
}

// runLoop is the main reconciliation loop.
func (r *ReconcileService) runLoop() {
	defer close(r.doneChan)

	// Run immediately on start
	r.RunOnce(context.Background())

	ticker := time.NewTicker(r.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.RunOnce(context.Background())
		case <-r.stopChan:
			return
		}
	}
}

// ReconcileResult contains the result of a reconciliation run.
type ReconcileResult struct {
	// RoomsFixed is the number of rooms whose counters were repaired.
	RoomsFixed int64

	// OrphansRemoved is the number of orphaned scratch files removed.
	OrphansRemoved int

	// Errors is the number of errors encountered.
	Errors int

	// Duration is how long the run took.
	Duration time.Duration
}

// RunOnce executes a single reconciliation run.
// This can be called manually (the admin command) or by the scheduler.
func (r *ReconcileService) RunOnce(ctx context.Context) ReconcileResult {
	start := time.Now()
	result := ReconcileResult{}

	lockKey := repository.LockKey{}.StatsReconcile()
	lockTTL := r.config.Interval / 2
	if lockTTL < 5*time.Minute {
		lockTTL = 5 * time.Minute
	}

	acquired, err := r.locker.Acquire(ctx, lockKey, lockTTL)
	if err != nil {
		r.logger.Error().Err(err).Msg("Failed to acquire reconcile lock")
		result.Errors++
		result.Duration = time.Since(start)
		return result
	}
	if !acquired {
		r.logger.Debug().Msg("Reconcile lock held by another process, skipping run")
		result.Duration = time.Since(start)
		return result
	}
	defer func() {
		if _, err := r.locker.Release(ctx, lockKey); err != nil {
			r.logger.Error().Err(err).Msg("Failed to release reconcile lock")
		}
	}()

	// Phase 1: recompute drifted counters from document rows.
	fixed, err := r.roomRepo.ReconcileStats(ctx)
	if err != nil {
		r.logger.Error().Err(err).Msg("Failed to reconcile room stats")
		result.Errors++
	} else {
		result.RoomsFixed = fixed
		if fixed > 0 {
			r.logger.Warn().Int64("rooms_fixed", fixed).Msg("Repaired drifted room counters")
		}
		if r.metrics != nil {
			r.metrics.ReconcileRoomsFixedTotal.Add(float64(fixed))
		}
	}

	// Phase 2: sweep orphaned scratch files past the grace period.
	removed, errs := r.sweepScratch(ctx)
	result.OrphansRemoved = removed
	result.Errors += errs

	if r.metrics != nil {
		r.metrics.ReconcileRunsTotal.Inc()
		r.metrics.ScratchOrphansRemoved.Add(float64(removed))
	}

	result.Duration = time.Since(start)

	r.logger.Info().
		Int64("rooms_fixed", result.RoomsFixed).
		Int("orphans_removed", result.OrphansRemoved).
		Int("errors", result.Errors).
		Dur("duration", result.Duration).
		Msg("Reconciliation run completed")

	return result
}

// sweepScratch removes scratch files older than the grace period that no
// document row references. These are leftovers of uploads whose row insert
// failed, or of deletes racing promotion.
func (r *ReconcileService) sweepScratch(ctx context.Context) (int, int) {
	referenced, err := r.docRepo.ListTempPaths(ctx)
	if err != nil {
		r.logger.Error().Err(err).Msg("Failed to list referenced scratch paths")
		return 0, 1
	}

	refSet := make(map[string]struct{}, len(referenced))
	for _, path := range referenced {
		refSet[path] = struct{}{}
	}

	candidates, err := r.scratch.ListOlderThan(time.Now().Add(-r.config.OrphanAge))
	if err != nil {
		r.logger.Error().Err(err).Msg("Failed to list scratch files")
		return 0, 1
	}

	removed, errs := 0, 0
	for _, path := range candidates {
		if _, ok := refSet[path]; ok {
			continue
		}
		if err := r.scratch.Remove(path); err != nil {
			r.logger.Error().Err(err).Str("path", path).Msg("Failed to remove orphaned scratch file")
			errs++
			continue
		}
		r.logger.Debug().Str("path", path).Msg("Removed orphaned scratch file")
		removed++
	}

	return removed, errs
}
