package observability

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
)

var (
	// Global logger instance
	Logger *zap.Logger

	messagesArchivedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "messages_archived_total",
			Help: "Total number of messages stored in the archive",
		},
	)

	messagesDeletedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messages_deleted_total",
			Help: "Total number of messages deleted, by suppression kind",
		},
		[]string{"reason"},
	)

	repliesGeneratedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "replies_generated_total",
			Help: "Total number of impersonated replies sent",
		},
	)

	generatorFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "generator_failures_total",
			Help: "Total number of failed text generation calls",
		},
	)

	answerDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "answer_duration_seconds",
			Help:    "Time spent producing an impersonated reply",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func Init(ctx context.Context, metricsAddr string) error {
	var err error
	Logger, err = zap.NewProduction()
	if err != nil {
		return err
	}

	prometheus.MustRegister(
		messagesArchivedTotal,
		messagesDeletedTotal,
		repliesGeneratedTotal,
		generatorFailuresTotal,
		answerDuration,
	)

	tp := trace.NewTracerProvider()
	otel.SetTracerProvider(tp)

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		if err := http.ListenAndServe(metricsAddr, mux); err != nil {
			log.WithError(err).Error("metrics server failed")
		}
	}()

	return nil
}

func RecordArchivedMessage() {
	messagesArchivedTotal.Inc()
}

func RecordDeletedMessage(reason string) {
	messagesDeletedTotal.WithLabelValues(reason).Inc()
}

func RecordGeneratedReply() {
	repliesGeneratedTotal.Inc()
}

func RecordGeneratorFailure() {
	generatorFailuresTotal.Inc()
}

// StartAnswer returns a function that records the elapsed time when called.
func StartAnswer() func() {
	timer := prometheus.NewTimer(answerDuration)
	return func() { timer.ObserveDuration() }
}
