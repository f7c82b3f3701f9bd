package metrics

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

// RegisterPgxPoolMetrics exposes the API server's pgx pool statistics as
// Prometheus gauges. Call once after the pool is created.
func RegisterPgxPoolMetrics(pool *pgxpool.Pool) {
	gauge := func(name, help string, value func(pgxpool.Stat) int32) prometheus.GaugeFunc {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "sitehelper",
			Subsystem: "pgxpool",
			Name:      name,
			Help:      help,
		}, func() float64 {
			return float64(value(*pool.Stat()))
		})
	}

	prometheus.MustRegister(
		gauge("acquired_conns", "Connections currently checked out of the pool",
			func(s pgxpool.Stat) int32 { return s.AcquiredConns() }),
		gauge("idle_conns", "Connections sitting idle in the pool",
			func(s pgxpool.Stat) int32 { return s.IdleConns() }),
		gauge("total_conns", "Total connections held by the pool",
			func(s pgxpool.Stat) int32 { return s.TotalConns() }),
		gauge("max_conns", "Configured pool size ceiling",
			func(s pgxpool.Stat) int32 { return s.MaxConns() }),
	)
}
