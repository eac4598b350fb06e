package metrics

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	PostsCreated     *prometheus.CounterVec
	Bumps            prometheus.Counter
	DanglingReplies  prometheus.Counter
	SkippedRecords   prometheus.Gauge
	StoreWriteErrors prometheus.Counter

	gatherer prometheus.Gatherer
}

// New registers the board counters on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Metrics{
		PostsCreated: f.NewCounterVec(prometheus.CounterOpts{
			Name: "board_posts_created_total",
			Help: "Posts written, by kind (thread or reply).",
		}, []string{"kind"}),
		Bumps: f.NewCounter(prometheus.CounterOpts{
			Name: "board_thread_bumps_total",
			Help: "Thread timestamps moved forward by a reply.",
		}),
		DanglingReplies: f.NewCounter(prometheus.CounterOpts{
			Name: "board_dangling_replies_total",
			Help: "Replies stored whose parent is missing or is not a thread.",
		}),
		SkippedRecords: f.NewGauge(prometheus.GaugeOpts{
			Name: "board_store_skipped_records",
			Help: "Distinct stored records left out of results because they could not be read.",
		}),
		StoreWriteErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "board_store_write_errors_total",
			Help: "Failed writes to the post store.",
		}),
		gatherer: reg,
	}
}

func (m *Metrics) Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{}))
}

func RegisterRoutes(rg gin.IRoutes, m *Metrics) {
	rg.GET("/metrics", m.Handler())
}
