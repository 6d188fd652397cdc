package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "emotion_requests_total",
		Help: "Total number of analyze-video requests, by outcome",
	}, []string{"outcome"})

	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "emotion_stage_duration_seconds",
		Help:    "Duration of each stage of the analysis pipeline",
		Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300},
	}, []string{"stage"})

	FramesExtractedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "emotion_frames_extracted_total",
		Help: "Total number of frames extracted across all videos",
	})

	FramesClassifiedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "emotion_frames_classified_total",
		Help: "Total number of frames sent to the classifier, by result",
	}, []string{"result"})

	ActiveWorkers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "emotion_active_workers",
		Help: "Number of frame workers currently classifying",
	})
)
