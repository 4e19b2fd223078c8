package playback

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	tasksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "speechio_playback_tasks_total",
		Help: "Total number of resolved playback tasks",
	}, []string{"status"})

	cacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "speechio_playback_cache_lookups_total",
		Help: "Speech cache lookups by result",
	}, []string{"result"}) // result: "hit", "miss" or "error"

	cacheCommits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "speechio_playback_cache_commits_total",
		Help: "Speech cache commits by result",
	}, []string{"result"})

	firstChunkLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "speechio_playback_first_chunk_seconds",
		Help:    "Time from dispatch to the first audio chunk reaching the sink",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.0, 5.0},
	})

	queueWait = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "speechio_playback_queue_wait_seconds",
		Help:    "Time a task spent queued before dispatch",
		Buckets: []float64{0.01, 0.1, 0.5, 1, 5, 10, 30, 60},
	})

	audioBytes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "speechio_playback_audio_bytes_total",
		Help: "Audio bytes written to the sink",
	}, []string{"source"}) // source: "stream" or "cache"

	queueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "speechio_playback_queue_depth",
		Help: "Tasks waiting in each queue",
	}, []string{"priority"})
)

func recordResult(r Result) {
	tasksTotal.WithLabelValues(r.Status.String()).Inc()
}

func recordQueueDepth(priority, normal int) {
	queueDepth.WithLabelValues(PriorityHigh.String()).Set(float64(priority))
	queueDepth.WithLabelValues(PriorityNormal.String()).Set(float64(normal))
}

func recordQueueWait(enqueued time.Time) {
	queueWait.Observe(time.Since(enqueued).Seconds())
}
