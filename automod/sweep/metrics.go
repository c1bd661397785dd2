package sweep

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var sweepRuns = promauto.NewCounter(prometheus.CounterOpts{
	Name: "ahgroupbot_sweep_runs",
	Help: "Number of background sweep passes",
})

var sweepBans = promauto.NewCounter(prometheus.CounterOpts{
	Name: "ahgroupbot_sweep_bans",
	Help: "Number of users confirmed as spam by the background sweep",
})
