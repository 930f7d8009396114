package observability

import (
	"context"
	"time"

	"github.com/kitewire/consentflow/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors for the orchestrator.
type Metrics struct {
	JourneysStarted   prometheus.Counter
	JourneysCompleted *prometheus.CounterVec
	StageEntries      *prometheus.CounterVec
	Errors            *prometheus.CounterVec
	ClientLatency     *prometheus.HistogramVec
}

// NewMetrics creates and registers the collectors on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		JourneysStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "consentflow_journeys_started_total",
			Help: "Total number of journeys started",
		}),
		JourneysCompleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "consentflow_journeys_completed_total",
				Help: "Total number of journeys reaching the terminal stage",
			},
			[]string{"decision"},
		),
		StageEntries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "consentflow_stage_entries_total",
				Help: "Total number of stage entries",
			},
			[]string{"stage"},
		),
		Errors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "consentflow_errors_total",
				Help: "Total number of classified journey errors",
			},
			[]string{"kind"},
		),
		ClientLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "consentflow_client_call_duration_seconds",
				Help: "Duration of AA gateway client calls",
			},
			[]string{"operation"},
		),
	}
	reg.MustRegister(m.JourneysStarted, m.JourneysCompleted, m.StageEntries, m.Errors, m.ClientLatency)
	return m
}

// Hooks builds LifecycleHooks that record journey events on the collectors.
// Chain is called after recording, if non-nil, so callers can stack their
// own hooks (e.g. structured logging) behind the metrics.
func (m *Metrics) Hooks(chain *domain.LifecycleHooks) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnStageEnter: func(ctx context.Context, e *domain.StageEvent) {
			if e.To == domain.StageLoggingIn && e.From == domain.StageInitializing {
				m.JourneysStarted.Inc()
			}
			m.StageEntries.WithLabelValues(string(e.To)).Inc()
			if chain != nil && chain.OnStageEnter != nil {
				chain.OnStageEnter(ctx, e)
			}
		},
		OnError: func(ctx context.Context, e *domain.ErrorEvent) {
			m.Errors.WithLabelValues(string(e.Info.Kind)).Inc()
			if chain != nil && chain.OnError != nil {
				chain.OnError(ctx, e)
			}
		},
		OnDecision: func(ctx context.Context, e *domain.DecisionEvent) {
			m.JourneysCompleted.WithLabelValues(string(e.Decision)).Inc()
			if chain != nil && chain.OnDecision != nil {
				chain.OnDecision(ctx, e)
			}
		},
	}
}

// ObserveClientCall records the latency of one AA gateway operation.
func (m *Metrics) ObserveClientCall(operation string, start time.Time) {
	m.ClientLatency.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}
