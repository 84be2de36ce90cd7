package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector holds the domain counters. A nil *Collector is valid and records nothing.
type Collector struct {
	podcastUploads    prometheus.Counter
	podcastViews      prometheus.Counter
	podcastPlays      prometheus.Counter
	streamJoins       prometheus.Counter
	streamLeaves      prometheus.Counter
	streamTransitions *prometheus.CounterVec
	assetCleanupFails prometheus.Counter
}

func NewCollector(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		podcastUploads: factory.NewCounter(prometheus.CounterOpts{
			Name: "crawford_podcast_uploads_total",
			Help: "Total number of podcasts uploaded",
		}),
		podcastViews: factory.NewCounter(prometheus.CounterOpts{
			Name: "crawford_podcast_views_total",
			Help: "Total number of podcast detail views",
		}),
		podcastPlays: factory.NewCounter(prometheus.CounterOpts{
			Name: "crawford_podcast_plays_total",
			Help: "Total number of podcast plays",
		}),
		streamJoins: factory.NewCounter(prometheus.CounterOpts{
			Name: "crawford_live_stream_joins_total",
			Help: "Total number of viewers joining live streams",
		}),
		streamLeaves: factory.NewCounter(prometheus.CounterOpts{
			Name: "crawford_live_stream_leaves_total",
			Help: "Total number of viewers leaving live streams",
		}),
		streamTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "crawford_live_stream_status_transitions_total",
			Help: "Live stream status changes by source and target status",
		}, []string{"from", "to"}),
		assetCleanupFails: factory.NewCounter(prometheus.CounterOpts{
			Name: "crawford_asset_cleanup_failures_total",
			Help: "Asset files that could not be removed from storage",
		}),
	}
}

func (c *Collector) PodcastUploaded() {
	if c != nil {
		c.podcastUploads.Inc()
	}
}

func (c *Collector) PodcastViewed() {
	if c != nil {
		c.podcastViews.Inc()
	}
}

func (c *Collector) PodcastPlayed() {
	if c != nil {
		c.podcastPlays.Inc()
	}
}

func (c *Collector) StreamJoined() {
	if c != nil {
		c.streamJoins.Inc()
	}
}

func (c *Collector) StreamLeft() {
	if c != nil {
		c.streamLeaves.Inc()
	}
}

func (c *Collector) StreamTransitioned(from, to string) {
	if c != nil && from != to {
		c.streamTransitions.WithLabelValues(from, to).Inc()
	}
}

func (c *Collector) AssetCleanupFailed() {
	if c != nil {
		c.assetCleanupFails.Inc()
	}
}
