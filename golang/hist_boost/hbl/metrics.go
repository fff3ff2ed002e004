package hbl

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//Metrics holds the prometheus collectors of a training session. A nil *Metrics records nothing.
type Metrics struct {
	rounds        prometheus.Counter
	trees         prometheus.Counter
	roundDuration prometheus.Histogram
	evalValue     *prometheus.GaugeVec
}

//NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		rounds: factory.NewCounter(prometheus.CounterOpts{
			Name: "hist_boost_rounds_total",
			Help: "Number of completed boosting rounds.",
		}),
		trees: factory.NewCounter(prometheus.CounterOpts{
			Name: "hist_boost_trees_total",
			Help: "Number of trees appended to the ensemble.",
		}),
		roundDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "hist_boost_round_duration_seconds",
			Help:    "Wall time of one boosting round.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 16),
		}),
		evalValue: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "hist_boost_eval_value",
			Help: "Last evaluated metric value per eval set.",
		}, []string{"set", "metric"}),
	}
}

func (m *Metrics) observeRound(trees int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.rounds.Inc()
	m.trees.Add(float64(trees))
	m.roundDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) observeEval(set, metric string, value float64) {
	if m == nil {
		return
	}
	m.evalValue.WithLabelValues(set, metric).Set(value)
}
