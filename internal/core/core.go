// Package core coordinates the learning subsystem: it receives validation
// events from the host, dispatches them to pattern memory, analytics, and
// the knowledge base, and guarantees that no learning failure ever reaches
// the caller.
package core

import (
	"fmt"
	"log"
	"math"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ShayCichocki/vigil/internal/analytics"
	"github.com/ShayCichocki/vigil/internal/config"
	"github.com/ShayCichocki/vigil/internal/knowledge"
	"github.com/ShayCichocki/vigil/internal/monitoring"
	"github.com/ShayCichocki/vigil/internal/patterns"
	"github.com/ShayCichocki/vigil/internal/safety"
	"github.com/ShayCichocki/vigil/pkg/models"
)

// Operation names used for circuit breaker isolation. Each learning
// operation fails independently of the others.
const (
	opPatternStorage    = "pattern_storage"
	opPatternQuery      = "pattern_query"
	opAnalyticsRecord   = "analytics_recording"
	opInsightGeneration = "insight_generation"
	opKnowledgeUpdate   = "knowledge_update"
	opKnowledgeQuery    = "knowledge_query"
)

const (
	patternsDBFile  = "patterns.db"
	analyticsDBFile = "analytics.db"
	knowledgeDBFile = "knowledge.db"

	// How long a resource/storage check result is reused before sampling
	// again. Keeps the per-event overhead of the advisory gate negligible.
	safetyCheckInterval = 2 * time.Second

	// How long Shutdown waits for queued writes to drain.
	shutdownGrace = 5 * time.Second

	similarPatternLimit = 5
)

// services holds everything that only exists while learning is enabled.
// Swapped atomically so a reload that enables learning cannot produce a
// torn view.
type services struct {
	patterns  *patterns.Memory
	analytics *analytics.Service
	knowledge *knowledge.Base

	patternStore   *patterns.Store
	analyticsStore *analytics.Store
	knowledgeStore *knowledge.Store

	queue *writeQueue
}

// Core is the learning coordinator. All methods are safe for concurrent
// use, never panic outward, and return quickly regardless of the state of
// the learning stores.
type Core struct {
	cfg       *config.Controller
	metrics   *monitoring.Metrics
	failures  *safety.FailureManager
	resources *safety.ResourceMonitor
	storage   *safety.StorageMonitor

	svc atomic.Pointer[services]

	safeMu      sync.Mutex
	safeResult  bool
	safeChecked time.Time

	closed   atomic.Bool
	shutdown sync.Once
}

// New builds a Core from the given configuration controller. In disabled
// mode no stores are opened and no goroutines are started; every method
// becomes a cheap no-op.
func New(ctrl *config.Controller) (*Core, error) {
	cfg := ctrl.Snapshot()

	c := &Core{
		cfg:       ctrl,
		metrics:   monitoring.NewMetrics(),
		failures:  safety.NewFailureManager(cfg.MaxErrorsPerOperation, cfg.CircuitBreakerTimeout),
		resources: safety.NewResourceMonitor(cfg.MaxMemoryMB, cfg.MaxCPUPercent),
		storage:   safety.NewStorageMonitor(cfg.StoragePath, cfg.MaxStorageMB),
	}

	if !cfg.Mode.Enabled() {
		return c, nil
	}
	if err := c.startServices(cfg); err != nil {
		return nil, err
	}
	return c, nil
}

// startServices opens the durable stores and starts the write workers.
func (c *Core) startServices(cfg *config.Config) error {
	patternStore, err := patterns.NewStore(filepath.Join(cfg.StoragePath, patternsDBFile))
	if err != nil {
		return fmt.Errorf("open pattern store: %w", err)
	}
	if err := patternStore.Migrate(); err != nil {
		patternStore.Close()
		return fmt.Errorf("migrate pattern store: %w", err)
	}
	analyticsStore, err := analytics.NewStore(filepath.Join(cfg.StoragePath, analyticsDBFile))
	if err != nil {
		patternStore.Close()
		return fmt.Errorf("open analytics store: %w", err)
	}
	if err := analyticsStore.Migrate(); err != nil {
		patternStore.Close()
		analyticsStore.Close()
		return fmt.Errorf("migrate analytics store: %w", err)
	}
	knowledgeStore, err := knowledge.NewStore(filepath.Join(cfg.StoragePath, knowledgeDBFile))
	if err != nil {
		patternStore.Close()
		analyticsStore.Close()
		return fmt.Errorf("open knowledge store: %w", err)
	}
	if err := knowledgeStore.Migrate(); err != nil {
		patternStore.Close()
		analyticsStore.Close()
		knowledgeStore.Close()
		return fmt.Errorf("migrate knowledge store: %w", err)
	}

	queue := newWriteQueue(cfg.WriteQueueSize, cfg.WriteWorkers,
		func(operation string, err error) {
			c.failures.RecordFailure(operation, err)
			c.metrics.ErrorEncountered()
		},
		c.metrics.EventDropped,
	)

	c.svc.Store(&services{
		patterns:       patterns.NewMemory(patternStore, cfg.PatternCacheCapacity),
		analytics:      analytics.NewService(analyticsStore, cfg.EventWindowSize, cfg.MinSampleSize),
		knowledge:      knowledge.NewBase(knowledgeStore),
		patternStore:   patternStore,
		analyticsStore: analyticsStore,
		knowledgeStore: knowledgeStore,
		queue:          queue,
	})

	log.Printf("[core] learning enabled (mode=%s, storage=%s)", cfg.Mode, cfg.StoragePath)
	return nil
}

// Learn observes one validation event. It never blocks on durable writes,
// never returns an error, and never panics: a failing learning service is
// isolated and counted, and the caller proceeds as if nothing happened.
func (c *Core) Learn(event *models.ValidationEvent) {
	defer func() {
		if r := recover(); r != nil {
			c.metrics.ErrorEncountered()
			log.Printf("[core] recovered panic in Learn: %v", r)
		}
	}()

	svc := c.svc.Load()
	if svc == nil || c.closed.Load() || !c.cfg.Mode().Enabled() {
		return
	}

	start := time.Now()

	if event == nil {
		return
	}
	if err := event.Validate(); err != nil {
		c.metrics.ErrorEncountered()
		log.Printf("[core] rejected event: %v", err)
		return
	}
	if !c.safeToLearn() {
		c.metrics.EventDropped()
		return
	}

	if c.cfg.PatternsActive() {
		c.guard(opPatternStorage, func() error {
			delta := svc.patterns.Record(event)
			if delta != nil {
				c.metrics.PatternStored()
				svc.queue.Enqueue(opPatternStorage, func() error {
					return svc.patterns.Persist(delta)
				})
			}
			return nil
		})
	}

	if c.cfg.AnalyticsActive() {
		c.guard(opAnalyticsRecord, func() error {
			rec := svc.analytics.Record(event, float64(time.Since(start).Microseconds())/1000.0)
			if rec != nil {
				svc.queue.Enqueue(opAnalyticsRecord, func() error {
					return svc.analytics.Persist(rec)
				})
			}
			return nil
		})
	}

	if c.cfg.KnowledgeActive() {
		c.guard(opKnowledgeUpdate, func() error {
			drafts := svc.knowledge.Extract(event)
			if len(drafts) > 0 {
				svc.queue.Enqueue(opKnowledgeUpdate, func() error {
					return svc.knowledge.Persist(drafts)
				})
			}
			return nil
		})
	}

	c.metrics.EventProcessed(time.Since(start))
}

// guard runs one learning operation behind its circuit breaker, converting
// panics into recorded failures.
func (c *Core) guard(operation string, fn func() error) {
	if !c.failures.OperationSafe(operation) {
		return
	}
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic in %s: %v", operation, r)
			}
		}()
		return fn()
	}()
	if err != nil {
		c.failures.RecordFailure(operation, err)
		c.metrics.ErrorEncountered()
	}
}

// safeToLearn evaluates the resource and storage ceilings, reusing a recent
// result so the gate stays cheap on the hot path.
func (c *Core) safeToLearn() bool {
	c.safeMu.Lock()
	defer c.safeMu.Unlock()

	if time.Since(c.safeChecked) < safetyCheckInterval {
		return c.safeResult
	}

	c.safeResult = c.resources.ResourceAvailable() && c.storage.StorageAvailable()
	c.safeChecked = time.Now()
	c.metrics.SetMemoryUsageMB(c.resources.MemoryUsageMB())
	c.metrics.SetStorageUsageMB(c.storage.UsageMB())
	return c.safeResult
}

// QueryInsights returns insights relevant to the given validation context.
// The second return is false when learning is disabled, unsafe, or no
// service produced anything with at least the minimum sample size.
func (c *Core) QueryInsights(ctx map[string]any) (insights *models.ValidationInsights, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			c.metrics.ErrorEncountered()
			log.Printf("[core] recovered panic in QueryInsights: %v", r)
			insights, ok = nil, false
		}
	}()

	svc := c.svc.Load()
	if svc == nil || c.closed.Load() || !c.cfg.Mode().Enabled() || !c.safeToLearn() {
		return nil, false
	}

	var out *models.ValidationInsights
	if c.cfg.AnalyticsActive() {
		c.guard(opInsightGeneration, func() error {
			ins, err := svc.analytics.GenerateInsights(ctx)
			if err != nil {
				return err
			}
			out = ins
			return nil
		})
	}

	var matched []string
	if c.cfg.PatternsActive() {
		c.guard(opPatternQuery, func() error {
			found, err := svc.patterns.FindSimilar(ctx, similarPatternLimit)
			if err != nil {
				return err
			}
			for _, p := range found {
				matched = append(matched, p.PatternID)
			}
			if out == nil {
				out = patternInsights(found, c.cfg.Snapshot().MinSampleSize)
			}
			return nil
		})
	}

	if out == nil {
		return nil, false
	}
	out.PatternsMatched = matched
	c.metrics.InsightGenerated()
	return out, true
}

// patternInsights builds a fallback insight from matched patterns when the
// analytics window is empty, provided the patterns carry enough evidence.
func patternInsights(found []*models.ValidationPattern, minSample int) *models.ValidationInsights {
	var usage int64
	var weighted float64
	for _, p := range found {
		usage += p.UsageCount
		weighted += p.SuccessRate * float64(p.UsageCount)
	}
	if usage < int64(minSample) {
		return nil
	}
	rate := weighted / float64(usage)

	return &models.ValidationInsights{
		InsightType: "pattern_history",
		Confidence:  math.Min(0.95, float64(usage)/20.0),
		Predictions: []models.Prediction{
			{Metric: "pattern_success_rate", Value: rate, SampleSize: int(usage)},
		},
		GeneratedAt: time.Now().UTC(),
	}
}

// PredictOutcome forecasts the outcome of a validation with the given
// context. Returns false when learning or analytics is inactive, or there
// is not enough history.
func (c *Core) PredictOutcome(ctx map[string]any) (pred *models.OutcomePrediction, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			c.metrics.ErrorEncountered()
			pred, ok = nil, false
		}
	}()

	svc := c.svc.Load()
	if svc == nil || c.closed.Load() || !c.cfg.AnalyticsActive() {
		return nil, false
	}

	c.guard(opInsightGeneration, func() error {
		p, err := svc.analytics.PredictOutcome(ctx)
		if err != nil {
			return err
		}
		pred = p
		return nil
	})
	if pred == nil {
		return nil, false
	}
	c.metrics.PredictionMade()
	return pred, true
}

// AnalyzeTrends summarizes stored outcomes over time windows.
func (c *Core) AnalyzeTrends() (map[string]any, bool) {
	svc := c.svc.Load()
	if svc == nil || c.closed.Load() || !c.cfg.AnalyticsActive() || !c.cfg.IsFeatureEnabled(config.FeatureTrends) {
		return nil, false
	}

	var trends map[string]any
	c.guard(opInsightGeneration, func() error {
		t, err := svc.analytics.AnalyzeTrends()
		if err != nil {
			return err
		}
		trends = t
		return nil
	})
	if trends == nil {
		return nil, false
	}
	return trends, true
}

// QueryKnowledge looks up accumulated knowledge about a subject. The
// knowledgeType filter may be empty.
func (c *Core) QueryKnowledge(subject, knowledgeType string) (*knowledge.QueryResult, bool) {
	svc := c.svc.Load()
	if svc == nil || c.closed.Load() || !c.cfg.KnowledgeActive() {
		return nil, false
	}

	var result *knowledge.QueryResult
	c.guard(opKnowledgeQuery, func() error {
		r, err := svc.knowledge.Query(subject, knowledgeType)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	if result == nil {
		return nil, false
	}
	return result, true
}

// KnowledgeSummary reports aggregate statistics about the knowledge base.
func (c *Core) KnowledgeSummary() (*knowledge.Summary, bool) {
	svc := c.svc.Load()
	if svc == nil || c.closed.Load() || !c.cfg.KnowledgeActive() {
		return nil, false
	}

	var summary *knowledge.Summary
	c.guard(opKnowledgeQuery, func() error {
		s, err := svc.knowledge.GetSummary()
		if err != nil {
			return err
		}
		summary = s
		return nil
	})
	if summary == nil {
		return nil, false
	}
	return summary, true
}

// HealthStatus reports the operating mode, safety state, and counters.
// It is available in every mode, including disabled.
func (c *Core) HealthStatus() map[string]any {
	cfg := c.cfg.Snapshot()

	status := c.metrics.Snapshot()
	status["status"] = c.metrics.Status()
	status["mode"] = cfg.Mode.String()
	status["enabled"] = cfg.Mode.Enabled() && c.svc.Load() != nil && !c.closed.Load()
	status["circuit_breakers"] = c.failures.Snapshot()

	if svc := c.svc.Load(); svc != nil {
		status["safe_to_learn"] = c.safeToLearn()

		hits, misses, evictions := svc.patterns.CacheStats()
		status["pattern_cache"] = map[string]any{
			"entries":   svc.patterns.CacheLen(),
			"hits":      hits,
			"misses":    misses,
			"evictions": evictions,
		}
	} else {
		status["safe_to_learn"] = false
	}
	return status
}

// Metrics exposes the counter set, e.g. for registering a prometheus
// collector.
func (c *Core) Metrics() *monitoring.Metrics {
	return c.metrics
}

// Config exposes the configuration controller, e.g. for file watching.
func (c *Core) Config() *config.Controller {
	return c.cfg
}

// Flush blocks until all queued durable writes have completed.
func (c *Core) Flush() {
	if svc := c.svc.Load(); svc != nil {
		svc.queue.Wait()
	}
}

// ReloadConfiguration re-reads configuration and applies it. If learning
// was disabled at construction and the new configuration enables it, the
// stores and workers are started now.
func (c *Core) ReloadConfiguration() error {
	if err := c.cfg.Reload(); err != nil {
		return fmt.Errorf("reload configuration: %w", err)
	}

	cfg := c.cfg.Snapshot()
	if cfg.Mode.Enabled() && c.svc.Load() == nil && !c.closed.Load() {
		if err := c.startServices(cfg); err != nil {
			return fmt.Errorf("start learning services: %w", err)
		}
	}
	return nil
}

// Shutdown drains queued writes within a bounded grace period and closes
// the stores. It is idempotent; calls after the first are no-ops.
func (c *Core) Shutdown() {
	c.shutdown.Do(func() {
		c.closed.Store(true)

		svc := c.svc.Load()
		if svc == nil {
			return
		}

		svc.queue.Close(shutdownGrace)

		if err := svc.patternStore.Close(); err != nil {
			log.Printf("[core] closing pattern store: %v", err)
		}
		if err := svc.analyticsStore.Close(); err != nil {
			log.Printf("[core] closing analytics store: %v", err)
		}
		if err := svc.knowledgeStore.Close(); err != nil {
			log.Printf("[core] closing knowledge store: %v", err)
		}
		log.Printf("[core] shutdown complete")
	})
}
