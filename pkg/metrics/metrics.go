package metrics

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	SosTriggered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "safecircle_sos_triggered_total",
		Help: "SOS countdowns started.",
	})
	SosFired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "safecircle_sos_fired_total",
		Help: "SOS sessions created after an uncancelled countdown.",
	})
	SosCancelled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "safecircle_sos_cancelled_total",
		Help: "SOS cancellations, before or after firing.",
	})
	SosAborted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "safecircle_sos_aborted_total",
		Help: "SOS firings aborted, by reason.",
	}, []string{"reason"})

	NotificationsDispatched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "safecircle_notifications_dispatched_total",
		Help: "Notifications handed to a sink, by tag.",
	}, []string{"tag"})

	PresenceUpdates = promauto.NewCounter(prometheus.CounterOpts{
		Name: "safecircle_presence_updates_total",
		Help: "Accepted presence updates.",
	})
	PresenceSubscribers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "safecircle_presence_subscribers",
		Help: "Live presence subscriptions.",
	})

	ReminderFires = promauto.NewCounter(prometheus.CounterOpts{
		Name: "safecircle_reminder_fires_total",
		Help: "Reminder jobs fired.",
	})
	JobsPending = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "safecircle_scheduler_jobs_pending",
		Help: "Scheduler jobs currently armed.",
	})
)

// Handler exposes the prometheus registry on a gin route.
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) { h.ServeHTTP(c.Writer, c.Request) }
}
