package db

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
)

// Health is the payload served on /health/db.
type Health struct {
	Status    string    `json:"status"`
	LatencyMS int64     `json:"latency_ms"`
	Error     string    `json:"error,omitempty"`
	Pool      PoolUsage `json:"pool"`
}

// PoolUsage summarizes connection pool occupancy.
type PoolUsage struct {
	Total    int32 `json:"total_conns"`
	Idle     int32 `json:"idle_conns"`
	Acquired int32 `json:"acquired_conns"`
	Max      int32 `json:"max_conns"`
}

func poolUsage(pool *pgxpool.Pool) PoolUsage {
	stat := pool.Stat()
	return PoolUsage{
		Total:    stat.TotalConns(),
		Idle:     stat.IdleConns(),
		Acquired: stat.AcquiredConns(),
		Max:      stat.MaxConns(),
	}
}

func buildHealth(pingErr error, usage PoolUsage, latency time.Duration) Health {
	h := Health{
		Status:    "ok",
		LatencyMS: latency.Milliseconds(),
		Pool:      usage,
	}
	if pingErr != nil {
		h.Status = "unavailable"
		h.Error = pingErr.Error()
	}
	return h
}

// HealthHandler pings the database with a short deadline and reports pool
// occupancy alongside the result.
func HealthHandler(pool *pgxpool.Pool) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
		defer cancel()

		start := time.Now()
		pingErr := pool.Ping(ctx)
		h := buildHealth(pingErr, poolUsage(pool), time.Since(start))

		if h.Status != "ok" {
			return c.JSON(http.StatusServiceUnavailable, h)
		}
		return c.JSON(http.StatusOK, h)
	}
}
