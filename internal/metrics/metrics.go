package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	CheckinsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "classtrack_checkins_total",
			Help: "Total check-in attempts by outcome",
		},
		[]string{"outcome"},
	)

	CheckinDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "classtrack_checkin_duration_seconds",
			Help:    "Check-in pipeline duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	AbsenteesMarked = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "classtrack_absentees_marked_total",
			Help: "Absent rows inserted by the session completion worker",
		},
	)
)

func init() {
	prometheus.MustRegister(CheckinsTotal, CheckinDuration, AbsenteesMarked)
}
