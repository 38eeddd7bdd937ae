package handlers

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	methodPassword = "password"
	methodGoogle   = "google"
)

var loginTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "bloggr_logins_total",
	Help: "Login attempts by method and result.",
}, []string{"method", "result"})

func countLogin(method string, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	loginTotal.WithLabelValues(method, result).Inc()
}
