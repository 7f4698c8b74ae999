package hub

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type metrics struct {
	clients   prometheus.Gauge
	framesOut *prometheus.CounterVec
	framesIn  *prometheus.CounterVec
	jobs      *prometheus.CounterVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	factory := promauto.With(reg)
	return &metrics{
		clients: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "graphmind",
			Subsystem: "hub",
			Name:      "clients",
			Help:      "Number of connected websocket clients.",
		}),
		framesOut: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "graphmind",
			Subsystem: "hub",
			Name:      "frames_sent_total",
			Help:      "Frames queued for clients, by event.",
		}, []string{"event"}),
		framesIn: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "graphmind",
			Subsystem: "hub",
			Name:      "frames_received_total",
			Help:      "Frames received from clients, by event. Undecodable frames count as \"malformed\".",
		}, []string{"event"}),
		jobs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "graphmind",
			Subsystem: "hub",
			Name:      "jobs_total",
			Help:      "Finished exploration jobs, by outcome.",
		}, []string{"outcome"}),
	}
}
