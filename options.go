package rangestream

import (
	"log/slog"

	"github.com/hupe1980/rangestream/stream"
)

type options struct {
	metricsCollector MetricsCollector
	logger           *Logger
	uidIntersector   stream.UIDIntersector
}

// Option configures a RangeStream.
type Option func(*options)

// WithMetricsCollector configures a metrics collector for monitoring planning.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &rangestream.BasicMetricsCollector{}
//	rs, _ := rangestream.New(cfg, scanners, helper, rangestream.WithMetricsCollector(metrics))
//	// ... plan ...
//	stats := metrics.GetStats()
//	fmt.Printf("Scans: %d, Plans: %d\n", stats.ScansOpened, stats.Plans)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for planning.
// Pass nil to disable logging. Without WithLogger or WithLogLevel a text
// logger at the configured log_level writes to stderr.
//
// Example with JSON logging:
//
//	logger := rangestream.NewJSONLogger(slog.LevelDebug)
//	rs, _ := rangestream.New(cfg, scanners, helper, rangestream.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithUIDIntersector replaces the strategy conjunctions use to combine
// record-id sets.
func WithUIDIntersector(ui stream.UIDIntersector) Option {
	return func(o *options) {
		o.uidIntersector = ui
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		metricsCollector: NoopMetricsCollector{},
		uidIntersector:   stream.DefaultIntersector,
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}
