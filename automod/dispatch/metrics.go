package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var dispatchCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "ahgroupbot_dispatch_completed",
	Help: "Number of enforcement actions that completed (including no-ops)",
}, []string{"op"})

var dispatchFailed = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "ahgroupbot_dispatch_failed",
	Help: "Number of enforcement actions that exhausted retries",
}, []string{"op"})
