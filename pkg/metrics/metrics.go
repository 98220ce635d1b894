// Package metrics defines the prometheus collectors of the engine.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	WritesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dflow_writes_total",
		Help: "Total number of accepted base table writes.",
	}, []string{"table", "kind"})

	WriteErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dflow_write_errors_total",
		Help: "Total number of rejected base table writes.",
	}, []string{"table"})

	DeltasTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dflow_deltas_total",
		Help: "Total number of unit deltas emitted by a node.",
	}, []string{"node"})

	PropagationErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dflow_propagation_errors_total",
		Help: "Total number of operator failures during propagation.",
	})

	BatchLatencySeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "dflow_batch_seconds",
		Help:    "Latency of propagating one write batch through the graph.",
		Buckets: prometheus.DefBuckets,
	})

	LookupWaitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "dflow_lookup_wait_seconds",
		Help:    "Time blocking lookups spent waiting for pending writes.",
		Buckets: prometheus.DefBuckets,
	})

	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dflow_queue_depth",
		Help: "Current number of write batches waiting for propagation.",
	})

	GraphNodes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dflow_graph_nodes",
		Help: "Number of live nodes in the dataflow graph.",
	})

	AppliedSequence = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dflow_applied_sequence",
		Help: "Sequence number of the last write applied to every view.",
	})
)

// Serve exposes the default registry on addr until ctx is canceled.
func Serve(ctx context.Context, addr string, logger logr.Logger) error {
	log := logger.WithName("metrics")
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		log.Info("serving metrics", "address", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
