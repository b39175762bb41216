package services

import "github.com/prometheus/client_golang/prometheus"

var friendRequestEvents = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "friend_request_events_total",
		Help: "Friend request workflow outcomes",
	},
	[]string{"event"},
)

// Collectors returns the service-level metrics for registration.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{friendRequestEvents}
}
