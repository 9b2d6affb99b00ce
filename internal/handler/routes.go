package handler

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"cors-proxy-go/internal/metrics"
)

// RegisterRoutes wires the proxy endpoint onto the public Echo instance.
// Every other path is rejected with an empty 400.
func RegisterRoutes(e *echo.Echo, proxy *ProxyHandler) {
	e.HTTPErrorHandler = proxy.HandleError

	e.Any(ProxyPath, proxy.Handle)
	e.RouteNotFound("/*", proxy.RejectRoute)
}

// RegisterAdminRoutes wires health and metrics endpoints onto the admin Echo instance.
func RegisterAdminRoutes(e *echo.Echo, health *HealthHandler, m *metrics.Metrics, metricsPath string) {
	e.GET("/healthz", health.Healthz)
	e.GET("/status", health.Status)
	e.GET(metricsPath, echo.WrapHandler(promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})))
}
