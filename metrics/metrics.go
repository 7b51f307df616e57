package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	examplesCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "starspace_examples_processed_total",
			Help: "training examples processed across all workers",
		},
	)
	trainLossGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "starspace_train_loss",
			Help: "mean training loss of the last finished epoch",
		},
	)
	validLossGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "starspace_validation_loss",
			Help: "mean validation loss of the last finished epoch",
		},
	)
	rateGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "starspace_learning_rate",
			Help: "current learning rate",
		},
	)
	hitsGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "starspace_eval_hits",
			Help: "hit@k of the last evaluation",
		},
		[]string{"k"},
	)
)

func init() {
	prometheus.MustRegister(examplesCounter, trainLossGauge, validLossGauge, rateGauge, hitsGauge)
}

func AddExamples(n int) { examplesCounter.Add(float64(n)) }

func SetTrainLoss(v float64) { trainLossGauge.Set(v) }

func SetValidLoss(v float64) { validLossGauge.Set(v) }

func SetRate(v float64) { rateGauge.Set(v) }

// SetHits records hit@k for k in "1", "10", "20", "50".
func SetHits(k string, v float64) { hitsGauge.WithLabelValues(k).Set(v) }

// Serve exposes /metrics on addr until the listener fails.
func Serve(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return http.ListenAndServe(addr, mux)
}
