package monitoring

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HealthCheck reports a dependency failure by returning an error.
type HealthCheck func(ctx context.Context) error

// NewOpsServer serves /metrics and /health on addr. Extra middleware, such
// as rate limiting, is applied to every route.
func NewOpsServer(addr string, checks map[string]HealthCheck, middleware ...echo.MiddlewareFunc) *http.Server {
	e := echo.New()
	e.Use(middleware...)

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	e.GET("/health", healthHandler(checks))

	return &http.Server{
		Addr:              addr,
		Handler:           e,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func healthHandler(checks map[string]HealthCheck) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 3*time.Second)
		defer cancel()

		results := make(map[string]string, len(checks))
		healthy := true
		for name, check := range checks {
			if err := check(ctx); err != nil {
				results[name] = err.Error()
				healthy = false
				continue
			}
			results[name] = "ok"
		}

		code := http.StatusOK
		if !healthy {
			code = http.StatusServiceUnavailable
		}
		return c.JSON(code, map[string]any{
			"healthy": healthy,
			"checks":  results,
		})
	}
}
