package gomam

import (
	"log/slog"

	"github.com/hupe1980/gomam/index/mm"
	"github.com/hupe1980/gomam/index/vp"
)

type options struct {
	logger           *Logger
	metricsCollector MetricsCollector
	insertMode       mm.InsertMode
	searchMode       mm.SearchMode
	seed             uint64
	bufferIncrement  int
}

// Option configures Open.
type Option func(*options)

// WithMetricsCollector configures a metrics collector for monitoring operations.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &gomam.BasicMetricsCollector{}
//	idx, _ := gomam.Open(mgr, gomam.KindGH, fn, c, gomam.WithMetricsCollector(metrics))
//	// ... use idx ...
//	stats := metrics.GetStats()
//	fmt.Printf("Queries: %d, distances: %d\n", stats.QueryCount, stats.Distances)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging. Pass nil to disable logging.
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel is shorthand for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithInsertMode sets the insertion policy of a new MM index.
func WithInsertMode(m mm.InsertMode) Option {
	return func(o *options) {
		o.insertMode = m
	}
}

// WithSearchMode sets the traversal of a new MM index.
func WithSearchMode(m mm.SearchMode) Option {
	return func(o *options) {
		o.searchMode = m
	}
}

// WithSeed seeds vantage point sampling of a new VP index.
func WithSeed(seed uint64) Option {
	return func(o *options) {
		o.seed = seed
	}
}

// WithBufferIncrement sets the growth step of the VP insertion buffer.
func WithBufferIncrement(n int) Option {
	return func(o *options) {
		o.bufferIncrement = n
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
		insertMode:       mm.NoBalance,
		searchMode:       mm.SearchBestFirst,
		seed:             vp.DefaultSeed,
		bufferIncrement:  vp.DefaultBufferIncrement,
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}
