package monitoring

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type HealthServer struct {
	monitor *Monitor
	port    string
	logger  *zap.Logger
	server  *http.Server
}

func NewHealthServer(monitor *Monitor, port string, logger *zap.Logger) *HealthServer {
	if port == "" {
		port = "8080"
	}
	return &HealthServer{
		monitor: monitor,
		port:    port,
		logger:  logger,
	}
}

// Handler serves /health, /status and /metrics
func (h *HealthServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", h.healthHandler)
	mux.HandleFunc("/status", h.statusHandler)
	mux.Handle("/metrics", promhttp.HandlerFor(h.monitor.metrics.gatherer, promhttp.HandlerOpts{}))
	return mux
}

func (h *HealthServer) Start() {
	h.server = &http.Server{
		Addr:              ":" + h.port,
		Handler:           h.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	h.logger.Info("Health check server starting", zap.String("port", h.port))
	go func() {
		if err := h.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			h.logger.Error("Health server error", zap.Error(err))
		}
	}()
}

// Shutdown stops a started server
func (h *HealthServer) Shutdown(ctx context.Context) error {
	if h.server == nil {
		return nil
	}
	return h.server.Shutdown(ctx)
}

func (h *HealthServer) healthHandler(w http.ResponseWriter, r *http.Request) {
	if h.monitor.IsHealthy() {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "OK - %s", h.monitor.GetStatusSummary())
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprintf(w, "Service unhealthy - %s", h.monitor.GetStatusSummary())
	}
}

func (h *HealthServer) statusHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "%s", h.monitor.GetStatusSummary())
}
