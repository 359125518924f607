package sinks

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jmwhit/docdriver/internal/progress"
)

// PrometheusSink exports batch progress metrics. It owns all collectors
// for item outcomes, session windows, and item latency.
type PrometheusSink struct {
	itemsTotal     *prometheus.CounterVec
	strategyWins   *prometheus.CounterVec
	sessionsOpened prometheus.Counter
	itemDuration   prometheus.Histogram
	runsTotal      *prometheus.CounterVec
}

// NewPrometheusSink registers the collectors against the provided registry.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		itemsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "docdriver_items_total",
			Help: "Items processed, partitioned by outcome.",
		}, []string{"outcome"}),
		strategyWins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "docdriver_strategy_wins_total",
			Help: "Successful extractions partitioned by winning strategy.",
		}, []string{"strategy"}),
		sessionsOpened: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "docdriver_sessions_opened_total",
			Help: "Session windows opened, including rotations.",
		}),
		itemDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "docdriver_item_duration_seconds",
			Help:    "Wall time per processed item.",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
		}),
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "docdriver_runs_total",
			Help: "Driver runs, partitioned by result.",
		}, []string{"result"}),
	}
	collectors := []prometheus.Collector{
		s.itemsTotal, s.strategyWins, s.sessionsOpened, s.itemDuration, s.runsTotal,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates collectors from one event.
func (s *PrometheusSink) Consume(_ context.Context, evt progress.Event) error {
	switch evt.Stage {
	case progress.StageItemDone:
		s.itemsTotal.WithLabelValues(evt.Outcome).Inc()
		if evt.Outcome != "skipped" {
			s.itemDuration.Observe(evt.Dur.Seconds())
		}
		if evt.Strategy != "" {
			s.strategyWins.WithLabelValues(evt.Strategy).Inc()
		}
	case progress.StageSessionOpen:
		s.sessionsOpened.Inc()
	case progress.StageRunDone:
		s.runsTotal.WithLabelValues("completed").Inc()
	case progress.StageRunError:
		s.runsTotal.WithLabelValues("aborted").Inc()
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}
