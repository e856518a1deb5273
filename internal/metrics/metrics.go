// Package metrics holds the Prometheus instruments of the trading loop.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

const namespace = "goldscalper"

var (
	once sync.Once

	Ticks = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ticks_total",
		Help:      "Control loop ticks executed",
	})

	TickFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "tick_failures_total",
		Help:      "Ticks that ended in an error or a recovered panic",
	})

	TickDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "tick_duration_seconds",
		Help:      "Duration of one control loop tick",
		Buckets:   []float64{.005, .01, .05, .1, .25, .5, 1, 2.5, 5},
	})

	Orders = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "orders_total",
		Help:      "Order submissions by result",
	}, []string{"result"})

	LifecycleActions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "lifecycle_actions_total",
		Help:      "Position management actions by kind",
	}, []string{"action"})

	RegimeConfidence = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "regime_confidence",
		Help:      "Confidence of the current market regime",
	}, []string{"regime"})
)

// Register adds the instruments to the default registry once.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(Ticks, TickFailures, TickDuration, Orders, LifecycleActions, RegimeConfidence)
	})
}

// SetRegime records confidence for regime and clears the other labels.
func SetRegime(regime string, confidence float64) {
	RegimeConfidence.Reset()
	RegimeConfidence.WithLabelValues(regime).Set(confidence)
}

// Serve exposes /metrics on addr until ctx is done.
func Serve(ctx context.Context, addr string) error {
	Register()
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info().Str("addr", addr).Msg("metrics endpoint listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
