package service

import "github.com/prometheus/client_golang/prometheus"

var authOps = prometheus.NewCounterVec(
	prometheus.CounterOpts{Name: "auth_operations_total", Help: "Auth operations by outcome"},
	[]string{"op", "outcome"},
)

func init() { prometheus.MustRegister(authOps) }

// observe 配合命名返回值：defer observe("login", &err)
func observe(op string, err *error) {
	outcome := "ok"
	if *err != nil {
		outcome = KindOf(*err).String()
	}
	authOps.WithLabelValues(op, outcome).Inc()
}
