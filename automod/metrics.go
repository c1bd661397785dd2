package automod

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var updatesProcessed = promauto.NewCounter(prometheus.CounterOpts{
	Name: "ahgroupbot_updates_processed",
	Help: "Number of updates run through the policy engine",
})

var actionsDecided = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "ahgroupbot_actions_decided",
	Help: "Number of moderation decisions, by action kind",
}, []string{"kind"})
