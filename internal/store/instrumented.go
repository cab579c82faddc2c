package store

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"portalapi/internal/model"
)

// Instrumented wraps a Store and records operation counts and latencies.
type Instrumented struct {
	next     Store
	ops      *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewInstrumented registers the store metrics on reg and wraps next.
func NewInstrumented(next Store, reg prometheus.Registerer) (*Instrumented, error) {
	s := &Instrumented{
		next: next,
		ops: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "document_store_operations_total",
				Help: "Document store operations by kind and result.",
			},
			[]string{"op", "result"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "document_store_operation_duration_seconds",
				Help:    "Latency of document store operations.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"op"},
		),
	}
	for _, c := range []prometheus.Collector{s.ops, s.duration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return s, nil
}

var _ Store = (*Instrumented)(nil)

func (s *Instrumented) Load(ctx context.Context) (model.Document, error) {
	start := time.Now()
	doc, err := s.next.Load(ctx)
	s.observe("load", start, err)
	return doc, err
}

func (s *Instrumented) Save(ctx context.Context, doc model.Document) error {
	start := time.Now()
	err := s.next.Save(ctx, doc)
	s.observe("save", start, err)
	return err
}

func (s *Instrumented) Ping(ctx context.Context) error {
	return s.next.Ping(ctx)
}

func (s *Instrumented) observe(op string, start time.Time, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	s.ops.WithLabelValues(op, result).Inc()
	s.duration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}
