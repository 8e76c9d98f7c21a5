// Package metrics exposes Prometheus instruments for the billing engine.
package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"
)

const (
	OutcomeOK = "ok"

	ReasonDeadlineExceeded     = "deadline_exceeded"
	ReasonSerializationFailure = "serialization_failure"
	ReasonUniqueViolation      = "unique_violation"
	ReasonForeignKeyViolation  = "foreign_key_violation"
	ReasonUnknown              = "unknown"
)

// Engine counts engine operations by outcome and times them.
// A nil *Engine records nothing.
type Engine struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	faults     *prometheus.CounterVec
}

// NewEngine registers the engine instruments on reg
// (prometheus.DefaultRegisterer when nil).
func NewEngine(reg prometheus.Registerer) *Engine {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Engine{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "restaurant_engine_operations_total",
			Help: "Session and invoice operations by outcome code.",
		}, []string{"operation", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "restaurant_engine_operation_duration_seconds",
			Help:    "Time spent in one engine transaction.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"operation"}),
		faults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "restaurant_engine_faults_total",
			Help: "Unexpected engine failures by low-cardinality reason.",
		}, []string{"operation", "reason"}),
	}
	reg.MustRegister(m.operations, m.duration, m.faults)
	return m
}

// Observe records one finished operation. outcome is OutcomeOK or an error code.
func (m *Engine) Observe(op, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(op, outcome).Inc()
	m.duration.WithLabelValues(op).Observe(elapsed.Seconds())
}

// Fault counts an unexpected failure of op.
func (m *Engine) Fault(op string, err error) {
	if m == nil {
		return
	}
	m.faults.WithLabelValues(op, Reason(err)).Inc()
}

// Reason maps a database or context error to a low-cardinality label.
func Reason(err error) string {
	if err == nil {
		return ReasonUnknown
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ReasonDeadlineExceeded
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ReasonUniqueViolation
	}
	if errors.Is(err, gorm.ErrForeignKeyViolated) {
		return ReasonForeignKeyViolation
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01":
			return ReasonSerializationFailure
		case "23505":
			return ReasonUniqueViolation
		case "23503":
			return ReasonForeignKeyViolation
		}
	}
	return ReasonUnknown
}
