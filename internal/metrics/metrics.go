// Package metrics exposes live replay statistics to Prometheus. Values are
// read from the aggregator and scheduler at scrape time.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/studiowebux/mongobar/internal/replay"
	"github.com/studiowebux/mongobar/internal/stats"
)

const namespace = "mongobar"

// Snapshotter provides the statistics view
type Snapshotter interface {
	Snapshot() stats.View
}

// Collector implements prometheus.Collector over a running replay
type Collector struct {
	view func() stats.View
	run  func() replay.RunSnapshot

	opsDesc      *prometheus.Desc
	errorsDesc   *prometheus.Desc
	latencyDesc  *prometheus.Desc
	limitDesc    *prometheus.Desc
	inFlightDesc *prometheus.Desc
}

var _ prometheus.Collector = (*Collector)(nil)

// NewCollector reads statistics from agg and run state from run. run may be
// nil, in which case the scheduler gauges are not exported.
func NewCollector(agg Snapshotter, run func() replay.RunSnapshot) *Collector {
	labels := []string{"fingerprint", "shape_class"}
	return &Collector{
		view: agg.Snapshot,
		run:  run,
		opsDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "ops_total"),
			"Completed operations per fingerprint.",
			labels, nil,
		),
		errorsDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "op_errors_total"),
			"Failed operations per fingerprint.",
			labels, nil,
		),
		latencyDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "op_latency_seconds"),
			"Operation latency across all fingerprints.",
			nil, nil,
		),
		limitDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "concurrency_limit"),
			"Current concurrency limit.",
			nil, nil,
		),
		inFlightDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "in_flight"),
			"Operations currently executing.",
			nil, nil,
		),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.opsDesc
	ch <- c.errorsDesc
	ch <- c.latencyDesc
	ch <- c.limitDesc
	ch <- c.inFlightDesc
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	view := c.view()
	for _, b := range view.Buckets {
		ch <- prometheus.MustNewConstMetric(c.opsDesc, prometheus.CounterValue,
			float64(b.Count), b.Fingerprint.ID, b.Fingerprint.Class)
		ch <- prometheus.MustNewConstMetric(c.errorsDesc, prometheus.CounterValue,
			float64(b.Errors), b.Fingerprint.ID, b.Fingerprint.Class)
	}

	g := view.Global
	ch <- prometheus.MustNewConstSummary(c.latencyDesc,
		uint64(g.Count),
		g.Mean.Seconds()*float64(g.Count),
		map[float64]float64{
			0.5:  g.P50.Seconds(),
			0.9:  g.P90.Seconds(),
			0.99: g.P99.Seconds(),
		},
	)

	if c.run == nil {
		return
	}
	run := c.run()
	ch <- prometheus.MustNewConstMetric(c.limitDesc, prometheus.GaugeValue, float64(run.Limit))
	ch <- prometheus.MustNewConstMetric(c.inFlightDesc, prometheus.GaugeValue, float64(run.InFlight))
}

// Serve exposes the collector on addr at /metrics until ctx is done
func Serve(ctx context.Context, addr string, c *Collector, log *logrus.Entry) error {
	reg := prometheus.NewRegistry()
	if err := reg.Register(c); err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", addr).Info("Serving metrics")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	}
}
