package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/nickrsmith/og-platform-sub004/internal/domain"
	"github.com/nickrsmith/og-platform-sub004/internal/lock"
	"github.com/nickrsmith/og-platform-sub004/internal/metrics"
	"github.com/nickrsmith/og-platform-sub004/internal/repository"
	"github.com/nickrsmith/og-platform-sub004/internal/scratch"
	"github.com/nickrsmith/og-platform-sub004/internal/storage"
)

// PromotionService moves received uploads from scratch storage into the
// permanent content-addressed store. It is a durable, retryable worker keyed
// by document rows: any document with a temp path and no content address is
// pending, so a crash mid-run simply leaves work for the next run.
type PromotionService struct {
	docRepo repository.DocumentRepository
	scratch *scratch.Store
	backend storage.Backend
	locker  lock.Locker
	metrics *metrics.Metrics
	logger  zerolog.Logger
	config  PromotionConfig

	// Control
	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
	doneChan chan struct{}
}

// PromotionConfig contains promotion worker configuration.
type PromotionConfig struct {
	// Enabled determines if the worker runs automatically.
	Enabled bool

	// Interval is how often to poll for pending documents.
	Interval time.Duration

	// BatchSize is the maximum number of documents to promote per run.
	BatchSize int
}

// DefaultPromotionConfig returns sensible defaults.
func DefaultPromotionConfig() PromotionConfig {
	return PromotionConfig{
		Enabled:   true,
		Interval:  30 * time.Second,
		BatchSize: 100,
	}
}

// NewPromotionService creates a new promotion worker.
func NewPromotionService(
	docRepo repository.DocumentRepository,
	scratchStore *scratch.Store,
	backend storage.Backend,
	locker lock.Locker,
	m *metrics.Metrics,
	logger zerolog.Logger,
	config PromotionConfig,
) *PromotionService {
	return &PromotionService{
		docRepo:  docRepo,
		scratch:  scratchStore,
		backend:  backend,
		locker:   locker,
		metrics:  m,
		logger:   logger.With().Str("service", "promotion").Logger(),
		config:   config,
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}
}

// Start begins the promotion scheduler.
func (p *PromotionService) Start() {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return
	}
	p.running = true
	p.mu.Unlock()

	p.logger.Info().
		Dur("interval", p.config.Interval).
		Int("batch_size", p.config.BatchSize).
		Msg("Starting promotion worker")

	go p.runLoop()
}

// Stop stops the promotion scheduler.
func (p *PromotionService) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	p.mu.Unlock()

	close(p.stopChan)
	<-p.doneChan

	p.logger.Info().Msg("Promotion worker stopped")
}

// runLoop is the main promotion loop.
func (p *PromotionService) runLoop() {
	defer close(p.doneChan)

	// Run immediately on start
	p.RunOnce(context.Background())

	ticker := time.NewTicker(p.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.RunOnce(context.Background())
		case <-p.stopChan:
			return
		}
	}
}

// PromotionResult contains the result of a promotion run.
type PromotionResult struct {
	// Promoted is the number of documents moved to the content store.
	Promoted int

	// Errors is the number of failed promotion attempts.
	Errors int

	// Pending is the number of documents found awaiting promotion.
	Pending int

	// Duration is how long the run took.
	Duration time.Duration
}

// RunOnce executes a single promotion run.
// This can be called manually or by the scheduler.
func (p *PromotionService) RunOnce(ctx context.Context) PromotionResult {
	start := time.Now()
	result := PromotionResult{}

	lockKey := repository.LockKey{}.Promotion()
	lockTTL := p.config.Interval * 2
	if lockTTL < time.Minute {
		lockTTL = time.Minute
	}

	acquired, err := p.locker.Acquire(ctx, lockKey, lockTTL)
	if err != nil {
		p.logger.Error().Err(err).Msg("Failed to acquire promotion lock")
		result.Errors++
		result.Duration = time.Since(start)
		return result
	}
	if !acquired {
		p.logger.Debug().Msg("Promotion lock held by another process, skipping run")
		result.Duration = time.Since(start)
		return result
	}
	defer func() {
		if _, err := p.locker.Release(ctx, lockKey); err != nil {
			p.logger.Error().Err(err).Msg("Failed to release promotion lock")
		}
	}()

	pending, err := p.docRepo.ListPendingPromotion(ctx, p.config.BatchSize)
	if err != nil {
		p.logger.Error().Err(err).Msg("Failed to list pending documents")
		result.Errors++
		result.Duration = time.Since(start)
		return result
	}

	result.Pending = len(pending)
	if p.metrics != nil {
		p.metrics.PromotionPendingDocs.Set(float64(len(pending)))
	}

	if len(pending) == 0 {
		result.Duration = time.Since(start)
		return result
	}

	p.logger.Info().Int("count", len(pending)).Msg("Found documents awaiting promotion")

	for _, doc := range pending {
		if err := p.promoteOne(ctx, doc); err != nil {
			p.logger.Error().Err(err).
				Str("document_id", doc.ID.String()).
				Msg("Failed to promote document")
			result.Errors++
			if p.metrics != nil {
				p.metrics.PromotionFailures.Inc()
			}
			continue
		}
		result.Promoted++
		if p.metrics != nil {
			p.metrics.PromotionsTotal.Inc()
		}
	}

	result.Duration = time.Since(start)

	p.logger.Info().
		Int("promoted", result.Promoted).
		Int("errors", result.Errors).
		Dur("duration", result.Duration).
		Msg("Promotion run completed")

	return result
}

// promoteOne streams one document's scratch bytes into the content store and
// records the resulting address. The Received -> Promoted transition is one
// way; a concurrent promotion of the same document loses the MarkPromoted
// guard and simply cleans up.
func (p *PromotionService) promoteOne(ctx context.Context, doc *domain.Document) error {
	start := time.Now()

	if doc.TempStoragePath == nil {
		return errors.New("document has no scratch path")
	}
	tempPath := *doc.TempStoragePath

	file, err := p.scratch.Open(tempPath)
	if err != nil {
		return err
	}

	address, err := p.backend.Store(ctx, file)
	if cerr := file.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}

	url := p.backend.URL(address)
	if err := p.docRepo.MarkPromoted(ctx, doc.ID, address, url); err != nil {
		if errors.Is(err, domain.ErrAlreadyPromoted) || errors.Is(err, domain.ErrDocumentNotFound) {
			// Lost a race or the document was deleted mid-run. The content
			// store is content-addressed, so the stored bytes are either
			// shared or swept later; only the scratch file needs removal.
			_ = p.scratch.Remove(tempPath)
			return nil
		}
		return err
	}

	if err := p.scratch.Remove(tempPath); err != nil {
		p.logger.Warn().Err(err).Str("temp_path", tempPath).Msg("Failed to remove promoted scratch file")
	}

	if p.metrics != nil {
		p.metrics.PromotionDuration.Observe(time.Since(start).Seconds())
	}

	p.logger.Debug().
		Str("document_id", doc.ID.String()).
		Str("content_address", address).
		Msg("Document promoted")

	return nil
}
