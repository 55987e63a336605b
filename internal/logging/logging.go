// Package logging provides categorized loggers for the promptforge pipeline.
// Each subsystem logs through its own named zap logger so that a single run
// can be filtered per stage (classifier, selector, composer, ...).
package logging

import (
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category identifies a pipeline subsystem for logging purposes.
type Category string

const (
	CategoryPipeline   Category = "pipeline"   // Top-level construct orchestration
	CategoryClassifier Category = "classifier" // Task classification
	CategoryContext    Category = "context"    // Caller context extraction
	CategorySelector   Category = "selector"   // Template selection
	CategoryComposer   Category = "composer"   // Template composition
	CategoryOptimizer  Category = "optimizer"  // Optimization and scoring
	CategoryStore      Category = "store"      // Template store operations
	CategoryAnalytics  Category = "analytics"  // Usage/quality event sink
	CategoryTokens     Category = "tokens"     // Token counting
)

var (
	mu      sync.RWMutex
	root    = zap.NewNop()
	byCat   = make(map[Category]*zap.SugaredLogger)
	verbose bool
)

// Initialize builds the root logger. Call once at startup; before Initialize
// all loggers are no-ops, which keeps library use of this package silent.
func Initialize(debug bool) error {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if debug {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}

	logger, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return err
	}

	SetLogger(logger, debug)
	return nil
}

// SetLogger replaces the root logger. Tests use this with zaptest loggers.
func SetLogger(logger *zap.Logger, debug bool) {
	mu.Lock()
	defer mu.Unlock()
	root = logger
	verbose = debug
	byCat = make(map[Category]*zap.SugaredLogger)
}

// Get returns the sugared logger for a category.
func Get(cat Category) *zap.SugaredLogger {
	mu.RLock()
	if l, ok := byCat[cat]; ok {
		mu.RUnlock()
		return l
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()
	if l, ok := byCat[cat]; ok {
		return l
	}
	l := root.Named(string(cat)).Sugar()
	byCat[cat] = l
	return l
}

// IsDebug reports whether debug logging was requested.
func IsDebug() bool {
	mu.RLock()
	defer mu.RUnlock()
	return verbose
}

// Sync flushes the root logger. Safe to call on a nop logger.
func Sync() {
	mu.RLock()
	defer mu.RUnlock()
	_ = root.Sync()
}

// Timer measures the duration of an operation and logs it on Stop.
type Timer struct {
	cat   Category
	op    string
	start time.Time
}

// StartTimer begins timing an operation in a category.
func StartTimer(cat Category, op string) *Timer {
	return &Timer{cat: cat, op: op, start: time.Now()}
}

// Stop logs the elapsed time at debug level and returns the duration.
func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	Get(t.cat).Debugf("%s took %s", t.op, elapsed)
	return elapsed
}
