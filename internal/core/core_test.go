package core

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ShayCichocki/vigil/internal/config"
	"github.com/ShayCichocki/vigil/pkg/models"
)

// newTestCore builds a Core backed by a temp directory. extra is appended
// verbatim to the config file.
func newTestCore(t *testing.T, mode string, extra string) *Core {
	t.Helper()

	dir := t.TempDir()
	contents := "learning_mode: " + mode + "\n" +
		"storage_path: " + filepath.Join(dir, "data") + "\n" + extra
	cfgPath := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(cfgPath, []byte(contents), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	ctrl, err := config.Load(cfgPath)
	if err != nil {
		t.Fatalf("config.Load() error = %v", err)
	}
	c, err := New(ctrl)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(c.Shutdown)
	return c
}

func testEvent(success bool, confidence float64, ctx map[string]any) *models.ValidationEvent {
	e := models.NewValidationEvent("schema_check", "pipeline")
	e.Success = success
	e.Confidence = confidence
	if ctx != nil {
		e.Context = ctx
	}
	return e
}

func TestLearn_ProcessesValidEvents(t *testing.T) {
	c := newTestCore(t, "standard", "")

	for i := 0; i < 10; i++ {
		c.Learn(testEvent(true, 0.9, map[string]any{"validator": "schema", "field": "email"}))
	}
	c.Flush()

	if got := c.metrics.EventsProcessed(); got != 10 {
		t.Errorf("EventsProcessed() = %v, want 10", got)
	}
	if got := c.metrics.ErrorsEncountered(); got != 0 {
		t.Errorf("ErrorsEncountered() = %v, want 0", got)
	}

	svc := c.svc.Load()
	if svc == nil {
		t.Fatal("services not started in standard mode")
	}
	count, err := svc.patterns.StoredCount()
	if err != nil {
		t.Fatalf("StoredCount() error = %v", err)
	}
	if count != 1 {
		t.Errorf("stored pattern count = %v, want 1 (identical contexts share a pattern)", count)
	}
}

// A Core fresh from New must have its schemas in place: the first durable
// writes and reads against all three stores succeed without any errors.
func TestNew_MigratesStoresOnOpen(t *testing.T) {
	c := newTestCore(t, "standard", "")

	for i := 0; i < 5; i++ {
		c.Learn(testEvent(true, 0.9, map[string]any{"validator": "schema"}))
	}
	c.Flush()

	if got := c.metrics.ErrorsEncountered(); got != 0 {
		t.Fatalf("ErrorsEncountered() = %v, want 0", got)
	}

	svc := c.svc.Load()
	if n, err := svc.patterns.StoredCount(); err != nil {
		t.Errorf("StoredCount() error = %v", err)
	} else if n != 1 {
		t.Errorf("StoredCount() = %v, want 1", n)
	}
	if _, ok := c.AnalyzeTrends(); !ok {
		t.Error("AnalyzeTrends() ok = false, want true")
	}
	if summary, ok := c.KnowledgeSummary(); !ok || summary.TotalEntries == 0 {
		t.Errorf("KnowledgeSummary() = %+v, %v, want entries > 0", summary, ok)
	}
}

func TestLearn_NilAndInvalidEvents(t *testing.T) {
	c := newTestCore(t, "standard", "")

	c.Learn(nil)

	bad := testEvent(true, 0.9, nil)
	bad.EventType = ""
	c.Learn(bad)

	outOfRange := testEvent(true, 1.5, nil)
	c.Learn(outOfRange)

	c.Flush()

	if got := c.metrics.EventsProcessed(); got != 0 {
		t.Errorf("EventsProcessed() = %v, want 0", got)
	}
	if got := c.metrics.ErrorsEncountered(); got != 2 {
		t.Errorf("ErrorsEncountered() = %v, want 2 (nil events are ignored, not errors)", got)
	}
}

// Disabled mode must have no observable side effects: no stores opened, no
// counters advanced, every query answered with nothing.
func TestDisabledMode_NoSideEffects(t *testing.T) {
	c := newTestCore(t, "disabled", "")

	if c.svc.Load() != nil {
		t.Fatal("services started in disabled mode")
	}

	for i := 0; i < 1000; i++ {
		c.Learn(testEvent(i%2 == 0, 0.8, map[string]any{"i": i % 7}))
		if ins, ok := c.QueryInsights(map[string]any{"i": i % 7}); ok || ins != nil {
			t.Fatalf("QueryInsights() = %v, %v in disabled mode, want nil, false", ins, ok)
		}
	}

	if got := c.metrics.EventsProcessed(); got != 0 {
		t.Errorf("EventsProcessed() = %v, want 0", got)
	}
	if got := c.metrics.ErrorsEncountered(); got != 0 {
		t.Errorf("ErrorsEncountered() = %v, want 0", got)
	}

	status := c.HealthStatus()
	if status["enabled"] != false {
		t.Errorf("HealthStatus enabled = %v, want false", status["enabled"])
	}
	if status["mode"] != "disabled" {
		t.Errorf("HealthStatus mode = %v, want disabled", status["mode"])
	}
}

func TestQueryInsights_FromHistory(t *testing.T) {
	c := newTestCore(t, "standard", "")

	ctx := map[string]any{"validator": "schema", "field": "email"}
	for i := 0; i < 7; i++ {
		c.Learn(testEvent(true, 0.9, ctx))
	}
	for i := 0; i < 3; i++ {
		c.Learn(testEvent(false, 0.3, ctx))
	}
	c.Flush()

	insights, ok := c.QueryInsights(ctx)
	if !ok {
		t.Fatal("QueryInsights() ok = false, want true")
	}
	if insights.Confidence <= 0 {
		t.Errorf("Confidence = %v, want > 0", insights.Confidence)
	}
	if len(insights.PatternsMatched) == 0 {
		t.Error("PatternsMatched is empty, want at least one pattern id")
	}
	if len(insights.Recommendations) == 0 {
		t.Error("Recommendations is empty, want at least one")
	}
	if got := c.metrics.Snapshot()["insights_generated"]; got != int64(1) {
		t.Errorf("insights_generated = %v, want 1", got)
	}
}

func TestQueryInsights_BelowMinimumSample(t *testing.T) {
	c := newTestCore(t, "standard", "")

	ctx := map[string]any{"validator": "schema"}
	c.Learn(testEvent(true, 0.9, ctx))
	c.Learn(testEvent(true, 0.9, ctx))
	c.Flush()

	if ins, ok := c.QueryInsights(ctx); ok || ins != nil {
		t.Errorf("QueryInsights() = %v, %v with 2 samples, want nil, false", ins, ok)
	}
}

// Conservative mode runs pattern memory only; insights must still be
// answerable from pattern history once it carries enough evidence.
func TestQueryInsights_ConservativeModePatternFallback(t *testing.T) {
	c := newTestCore(t, "conservative", "")

	ctx := map[string]any{"validator": "range", "field": "age"}
	for i := 0; i < 6; i++ {
		c.Learn(testEvent(true, 0.8, ctx))
	}
	c.Flush()

	insights, ok := c.QueryInsights(ctx)
	if !ok {
		t.Fatal("QueryInsights() ok = false, want true")
	}
	if insights.InsightType != "pattern_history" {
		t.Errorf("InsightType = %q, want pattern_history", insights.InsightType)
	}
	if len(insights.Predictions) == 0 {
		t.Fatal("Predictions is empty")
	}
	if got := insights.Predictions[0].Value; got != 1.0 {
		t.Errorf("pattern_success_rate = %v, want 1.0", got)
	}
}

// A failing durable store must never surface to the caller: Learn returns
// normally and the failure is counted once.
func TestLearn_PersistFailureIsolated(t *testing.T) {
	c := newTestCore(t, "conservative", "")

	svc := c.svc.Load()
	if err := svc.patternStore.Close(); err != nil {
		t.Fatalf("closing pattern store: %v", err)
	}

	c.Learn(testEvent(true, 0.9, map[string]any{"validator": "schema"}))
	c.Flush()

	if got := c.metrics.EventsProcessed(); got != 1 {
		t.Errorf("EventsProcessed() = %v, want 1", got)
	}
	if got := c.metrics.ErrorsEncountered(); got != 1 {
		t.Errorf("ErrorsEncountered() = %v, want 1", got)
	}
}

// Repeated failures open the breaker; further writes for that operation are
// skipped without affecting the caller or the other services.
func TestLearn_BreakerOpensAfterRepeatedFailures(t *testing.T) {
	c := newTestCore(t, "conservative", "max_errors_per_operation: 2\n")

	svc := c.svc.Load()
	if err := svc.patternStore.Close(); err != nil {
		t.Fatalf("closing pattern store: %v", err)
	}

	for i := 0; i < 10; i++ {
		c.Learn(testEvent(true, 0.9, map[string]any{"n": i}))
		c.Flush()
	}

	if c.failures.OperationSafe(opPatternStorage) {
		t.Error("OperationSafe(pattern_storage) = true after repeated failures, want false")
	}
	if got := c.metrics.EventsProcessed(); got != 10 {
		t.Errorf("EventsProcessed() = %v, want 10 (caller is never affected)", got)
	}
}

func TestPredictOutcome(t *testing.T) {
	c := newTestCore(t, "standard", "")

	ctx := map[string]any{"validator": "schema", "field": "email"}
	for i := 0; i < 7; i++ {
		c.Learn(testEvent(true, 0.9, ctx))
	}
	for i := 0; i < 3; i++ {
		c.Learn(testEvent(false, 0.3, ctx))
	}

	pred, ok := c.PredictOutcome(ctx)
	if !ok {
		t.Fatal("PredictOutcome() ok = false, want true")
	}
	if got := pred.SuccessProbability; got < 0.69 || got > 0.71 {
		t.Errorf("SuccessProbability = %v, want 0.7", got)
	}
	if pred.SampleSize != 10 {
		t.Errorf("SampleSize = %v, want 10", pred.SampleSize)
	}
}

func TestAnalyzeTrends(t *testing.T) {
	c := newTestCore(t, "standard", "")

	for i := 0; i < 6; i++ {
		c.Learn(testEvent(i%2 == 0, 0.8, map[string]any{"n": i}))
	}
	c.Flush()

	trends, ok := c.AnalyzeTrends()
	if !ok {
		t.Fatal("AnalyzeTrends() ok = false, want true")
	}
	if _, found := trends["overall"]; !found {
		t.Error("trends missing overall window")
	}
}

func TestAnalyzeTrends_FeatureToggle(t *testing.T) {
	c := newTestCore(t, "standard", "features:\n  trends: false\n")

	for i := 0; i < 6; i++ {
		c.Learn(testEvent(true, 0.8, map[string]any{"n": i}))
	}
	c.Flush()

	if _, ok := c.AnalyzeTrends(); ok {
		t.Error("AnalyzeTrends() ok = true with trends disabled, want false")
	}
}

func TestQueryKnowledge(t *testing.T) {
	c := newTestCore(t, "standard", "")

	for i := 0; i < 5; i++ {
		c.Learn(testEvent(true, 0.9, map[string]any{"n": i}))
	}
	c.Flush()

	result, ok := c.QueryKnowledge("schema_check:pipeline", "")
	if !ok {
		t.Fatal("QueryKnowledge() ok = false, want true")
	}
	if len(result.Entries) == 0 {
		t.Error("QueryKnowledge() returned no entries")
	}

	summary, ok := c.KnowledgeSummary()
	if !ok {
		t.Fatal("KnowledgeSummary() ok = false, want true")
	}
	if summary.TotalEntries == 0 {
		t.Error("KnowledgeSummary() TotalEntries = 0, want > 0")
	}
}

func TestHealthStatus_Enabled(t *testing.T) {
	c := newTestCore(t, "standard", "")

	c.Learn(testEvent(true, 0.9, map[string]any{"validator": "schema"}))
	c.Flush()

	status := c.HealthStatus()
	if status["enabled"] != true {
		t.Errorf("enabled = %v, want true", status["enabled"])
	}
	if status["mode"] != "standard" {
		t.Errorf("mode = %v, want standard", status["mode"])
	}
	if status["safe_to_learn"] != true {
		t.Errorf("safe_to_learn = %v, want true", status["safe_to_learn"])
	}
	if _, found := status["pattern_cache"]; !found {
		t.Error("status missing pattern_cache")
	}
	if _, found := status["circuit_breakers"]; !found {
		t.Error("status missing circuit_breakers")
	}
}

func TestShutdown_Idempotent(t *testing.T) {
	c := newTestCore(t, "standard", "")

	c.Learn(testEvent(true, 0.9, map[string]any{"validator": "schema"}))
	c.Shutdown()
	c.Shutdown()

	// After shutdown every entry point is a no-op.
	c.Learn(testEvent(true, 0.9, map[string]any{"validator": "schema"}))
	if _, ok := c.QueryInsights(map[string]any{"validator": "schema"}); ok {
		t.Error("QueryInsights() ok = true after shutdown, want false")
	}
	if got := c.metrics.EventsProcessed(); got != 1 {
		t.Errorf("EventsProcessed() = %v, want 1 (no events accepted after shutdown)", got)
	}
}

func TestReloadConfiguration_EnablesLearning(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	storage := filepath.Join(dir, "data")
	write := func(mode string) {
		contents := "learning_mode: " + mode + "\nstorage_path: " + storage + "\n"
		if err := os.WriteFile(cfgPath, []byte(contents), 0644); err != nil {
			t.Fatalf("failed to write config: %v", err)
		}
	}

	write("disabled")
	ctrl, err := config.Load(cfgPath)
	if err != nil {
		t.Fatalf("config.Load() error = %v", err)
	}
	c, err := New(ctrl)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(c.Shutdown)

	if c.svc.Load() != nil {
		t.Fatal("services started while disabled")
	}

	write("standard")
	if err := c.ReloadConfiguration(); err != nil {
		t.Fatalf("ReloadConfiguration() error = %v", err)
	}
	if c.svc.Load() == nil {
		t.Fatal("services not started after enabling reload")
	}

	c.Learn(testEvent(true, 0.9, map[string]any{"validator": "schema"}))
	c.Flush()
	if got := c.metrics.EventsProcessed(); got != 1 {
		t.Errorf("EventsProcessed() = %v, want 1 after reload", got)
	}
}

func TestLearn_Concurrent(t *testing.T) {
	c := newTestCore(t, "standard", "")

	done := make(chan struct{})
	for g := 0; g < 8; g++ {
		go func(g int) {
			defer func() { done <- struct{}{} }()
			for i := 0; i < 50; i++ {
				c.Learn(testEvent(i%3 != 0, 0.8, map[string]any{"worker": g, "n": i}))
				c.QueryInsights(map[string]any{"worker": g, "n": i})
			}
		}(g)
	}
	for g := 0; g < 8; g++ {
		<-done
	}
	c.Flush()

	if got := c.metrics.EventsProcessed(); got != 400 {
		t.Errorf("EventsProcessed() = %v, want 400", got)
	}
}

func TestDefault_SharedInstance(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	contents := "learning_mode: disabled\nstorage_path: " + filepath.Join(dir, "data") + "\n"
	if err := os.WriteFile(cfgPath, []byte(contents), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	t.Cleanup(ResetDefault)
	ResetDefault()

	a, err := Default(cfgPath)
	if err != nil {
		t.Fatalf("Default() error = %v", err)
	}
	b, err := Default("some-other-path-ignored")
	if err != nil {
		t.Fatalf("Default() error = %v", err)
	}
	if a != b {
		t.Error("Default() returned different instances for the same process")
	}

	ResetDefault()
	c, err := Default(cfgPath)
	if err != nil {
		t.Fatalf("Default() after reset error = %v", err)
	}
	if c == nil {
		t.Fatal("Default() after reset returned nil")
	}
}

func TestWriteQueue_DropsWhenFull(t *testing.T) {
	var errors, drops int
	gate := make(chan struct{})

	q := newWriteQueue(1, 1,
		func(string, error) { errors++ },
		func() { drops++ },
	)

	started := make(chan struct{})
	q.Enqueue("op", func() error { close(started); <-gate; return nil })
	// Worker is now blocked; the next job fills the buffer, the one after
	// that must be dropped.
	<-started
	q.Enqueue("op", func() error { return nil })
	q.Enqueue("op", func() error { return nil })

	if drops != 1 {
		t.Errorf("drops = %v, want 1", drops)
	}

	close(gate)
	q.Wait()
	q.Close(time.Second)

	if errors != 0 {
		t.Errorf("errors = %v, want 0", errors)
	}
}

func TestWriteQueue_RecoversPanics(t *testing.T) {
	var failed []string

	q := newWriteQueue(4, 1,
		func(op string, err error) {
			failed = append(failed, fmt.Sprintf("%s: %v", op, err))
		},
		func() {},
	)

	q.Enqueue("boom", func() error { panic("kaboom") })
	q.Wait()
	q.Close(time.Second)

	if len(failed) != 1 {
		t.Fatalf("failures = %v, want exactly 1", failed)
	}
}
