package dispatch

import (
	"net/http"

	"github.com/Financial-Times/http-handlers-go/httphandlers"
	status "github.com/Financial-Times/service-status-go/httphandlers"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	metrics "github.com/rcrowley/go-metrics"
	"github.com/sirupsen/logrus"
)

// AdminHandler serves the health, status and metrics endpoints of the worker.
func AdminHandler(health *HealthService, registry metrics.Registry, requestLogger *logrus.Logger) http.Handler {
	router := mux.NewRouter()
	router.HandleFunc("/__health", health.HealthHandler()).Methods(http.MethodGet)
	router.HandleFunc("/__gtg", health.GTGHandler).Methods(http.MethodGet)
	router.HandleFunc(status.PingPath, status.PingHandler)
	router.HandleFunc(status.BuildInfoPath, status.BuildInfoHandler)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	var h http.Handler = router
	h = httphandlers.TransactionAwareRequestLoggingHandler(requestLogger, h)
	h = httphandlers.HTTPMetricsHandler(registry, h)
	return handlers.RecoveryHandler()(h)
}
