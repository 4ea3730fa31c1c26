package media

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	skippedSamples = promauto.NewCounter(prometheus.CounterOpts{
		Name: "retrohost_audio_skipped_samples_total",
		Help: "Stale audio samples dropped by delay compensation.",
	})
	underruns = promauto.NewCounter(prometheus.CounterOpts{
		Name: "retrohost_audio_underruns_total",
		Help: "Audio callbacks which had to be padded with silence.",
	})
)
