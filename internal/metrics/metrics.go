package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TasksStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "yt_fetcher_tasks_started_total",
		Help: "Total number of download tasks started",
	})

	TasksRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "yt_fetcher_tasks_rejected_total",
		Help: "Total number of Start calls rejected before a task was launched",
	}, []string{"reason"})

	TasksCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "yt_fetcher_tasks_completed_total",
		Help: "Total number of download tasks completed",
	})

	TasksCancelled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "yt_fetcher_tasks_cancelled_total",
		Help: "Total number of download tasks cancelled by the user",
	})

	TasksFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "yt_fetcher_tasks_failed_total",
		Help: "Total number of download tasks failed, by error kind",
	}, []string{"kind"})

	TaskDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "yt_fetcher_task_duration_seconds",
		Help:    "Task duration in seconds, by outcome",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800, 3600},
	}, []string{"outcome"})

	SamplesDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "yt_fetcher_samples_dropped_total",
		Help: "Raw progress samples dropped because their percent could not be parsed",
	})

	EventsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "yt_fetcher_events_dropped_total",
		Help: "Progress events evicted from a full event queue",
	})

	BytesDownloaded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "yt_fetcher_download_bytes_total",
		Help: "Total bytes reported downloaded by completed tasks",
	})
)
