package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/armon/go-metrics"
	metricsprom "github.com/armon/go-metrics/prometheus"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsServiceName = "polygon"

func setupTelemetry() (*metrics.InmemSink, error) {
	inm := metrics.NewInmemSink(10*time.Second, time.Minute)
	metrics.DefaultInmemSignal(inm)

	promSink, err := metricsprom.NewPrometheusSinkFrom(metricsprom.PrometheusOpts{
		Name:       "gateway_prometheus_sink",
		Expiration: 0,
	})
	if err != nil {
		return nil, err
	}

	metricsConf := metrics.DefaultConfig(metricsServiceName)
	metricsConf.EnableHostname = false

	if _, err = metrics.NewGlobal(metricsConf, metrics.FanoutSink{inm, promSink}); err != nil {
		return nil, err
	}

	return inm, nil
}

func (s *Server) newPrometheusServer(listenAddr string) *http.Server {
	return &http.Server{
		Addr: listenAddr,
		Handler: promhttp.InstrumentMetricHandler(
			prometheus.DefaultRegisterer, promhttp.HandlerFor(
				prometheus.DefaultGatherer,
				promhttp.HandlerOpts{},
			),
		),
		ReadHeaderTimeout: 60 * time.Second,
	}
}

// runPrometheusServer serves the metrics endpoint until ctx is done
func (s *Server) runPrometheusServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("Prometheus server started", "addr", srv.Addr)

		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}

		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			s.logger.Error("Prometheus HTTP server ListenAndServe", "err", err)

			return err
		}

		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}

// runMetricsUpdater refreshes the queue gauges every interval until ctx is done
func (s *Server) runMetricsUpdater(ctx context.Context) error {
	if s.config.MetricsInterval <= 0 {
		return nil
	}

	ticker := time.NewTicker(s.config.MetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.gateway.ReportMetrics()
		}
	}
}
