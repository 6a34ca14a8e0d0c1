package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(dbConns) }

// state: total | idle | acquired
var dbConns = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "db_pool_connections",
		Help: "Postgres pool connections by state, sampled on each health probe.",
	},
	[]string{"state"},
)

func SetDBPoolStats(total, idle, acquired int32) {
	for state, n := range map[string]int32{"total": total, "idle": idle, "acquired": acquired} {
		dbConns.WithLabelValues(state).Set(float64(n))
	}
}
