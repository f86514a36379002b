package observability

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsHandler adapts the Prometheus scrape handler for Fiber and makes
// sure the collectors are registered before first scrape.
func MetricsHandler() fiber.Handler {
	RegisterMetrics()
	handler := promhttp.Handler()
	return adaptor.HTTPHandler(handler)
}
