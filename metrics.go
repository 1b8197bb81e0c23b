package lndboard

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	callbackRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "lndboard",
		Name:      "callback_rejections_total",
		Help:      "Callbacks that didn't result in an invoice, by reason.",
	}, []string{"reason"})

	liveSubscribers = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "lndboard",
		Name:      "live_subscribers",
		Help:      "Connected live feed subscribers.",
	})
)
