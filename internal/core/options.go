package core

import (
	"context"
	"fmt"
	"time"
)

// Clock supplies the current time to the service.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function into a Clock.
type ClockFunc func() time.Time

// Now returns the function's time, falling back to the local wall clock when nil.
func (f ClockFunc) Now() time.Time {
	if f == nil {
		return time.Now()
	}
	return f()
}

// Logger is the structured logging surface used by the service and adapters.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// NoopLogger returns a Logger that discards everything.
func NoopLogger() Logger { return noopLogger{} }

// AuditStatus marks the outcome of an audited operation.
type AuditStatus string

// Audit statuses.
const (
	AuditStatusSuccess AuditStatus = "success"
	AuditStatusError   AuditStatus = "error"
)

// AuditEntry describes one service operation for audit sinks.
type AuditEntry struct {
	Operation string
	Entity    EntityType
	Action    Action
	EntityID  string
	Status    AuditStatus
	Error     string
	Duration  time.Duration
	Timestamp time.Time
}

// AuditRecorder receives an entry for every mutating service operation.
type AuditRecorder interface {
	Record(ctx context.Context, entry AuditEntry)
}

type noopAuditRecorder struct{}

func (noopAuditRecorder) Record(context.Context, AuditEntry) {}

// MetricsRecorder observes operation outcomes and latency.
type MetricsRecorder interface {
	Observe(ctx context.Context, operation string, success bool, duration time.Duration)
}

type noopMetricsRecorder struct{}

func (noopMetricsRecorder) Observe(context.Context, string, bool, time.Duration) {}

// TraceSpan is ended once per traced operation.
type TraceSpan interface {
	End(err error)
}

// Tracer starts spans around service operations.
type Tracer interface {
	Start(ctx context.Context, operation string) (context.Context, TraceSpan)
}

type noopTracer struct{}

type noopSpan struct{}

func (noopTracer) Start(ctx context.Context, _ string) (context.Context, TraceSpan) {
	return ctx, noopSpan{}
}

func (noopSpan) End(error) {}

// CascadeHistory selects which history entries a category deletion emits for
// the items it removes.
type CascadeHistory string

const (
	// CascadeHistorySilent emits no history for cascaded item removals.
	CascadeHistorySilent CascadeHistory = "silent"
	// CascadeHistoryPerItem emits one Deleted Variant entry per removed item.
	CascadeHistoryPerItem CascadeHistory = "per_item"
	// CascadeHistoryAggregate emits a single Deleted Category entry.
	CascadeHistoryAggregate CascadeHistory = "aggregate"
)

// ParseCascadeHistory maps a configuration value onto a CascadeHistory. Empty selects silent.
func ParseCascadeHistory(raw string) (CascadeHistory, error) {
	switch CascadeHistory(raw) {
	case "", CascadeHistorySilent:
		return CascadeHistorySilent, nil
	case CascadeHistoryPerItem, CascadeHistoryAggregate:
		return CascadeHistory(raw), nil
	default:
		return "", fmt.Errorf("unknown cascade history mode %q", raw)
	}
}

type serviceOptions struct {
	clock          Clock
	logger         Logger
	audit          AuditRecorder
	metrics        MetricsRecorder
	tracer         Tracer
	history        bool
	cascadeHistory CascadeHistory
}

func defaultServiceOptions() serviceOptions {
	return serviceOptions{
		clock:          ClockFunc(time.Now),
		logger:         noopLogger{},
		audit:          noopAuditRecorder{},
		metrics:        noopMetricsRecorder{},
		tracer:         noopTracer{},
		history:        true,
		cascadeHistory: CascadeHistorySilent,
	}
}

// ServiceOption customises a Service.
type ServiceOption func(*serviceOptions)

// WithClock overrides the clock used for timestamps and dates.
func WithClock(clock Clock) ServiceOption {
	return func(o *serviceOptions) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithLogger installs a structured logger.
func WithLogger(logger Logger) ServiceOption {
	return func(o *serviceOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithAuditRecorder installs an audit sink.
func WithAuditRecorder(recorder AuditRecorder) ServiceOption {
	return func(o *serviceOptions) {
		if recorder != nil {
			o.audit = recorder
		}
	}
}

// WithMetricsRecorder installs a metrics sink.
func WithMetricsRecorder(recorder MetricsRecorder) ServiceOption {
	return func(o *serviceOptions) {
		if recorder != nil {
			o.metrics = recorder
		}
	}
}

// WithTracer installs a tracer.
func WithTracer(tracer Tracer) ServiceOption {
	return func(o *serviceOptions) {
		if tracer != nil {
			o.tracer = tracer
		}
	}
}

// WithHistory toggles the history log. Disabled services never append entries.
func WithHistory(enabled bool) ServiceOption {
	return func(o *serviceOptions) {
		o.history = enabled
	}
}

// WithCascadeHistory selects the history emitted by category deletion.
func WithCascadeHistory(mode CascadeHistory) ServiceOption {
	return func(o *serviceOptions) {
		if mode != "" {
			o.cascadeHistory = mode
		}
	}
}
