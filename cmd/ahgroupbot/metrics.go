package main

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var updatesReceived = promauto.NewCounter(prometheus.CounterOpts{
	Name: "ahgroupbot_updates_received",
	Help: "Number of updates received from the platform",
})

var pollErrors = promauto.NewCounter(prometheus.CounterOpts{
	Name: "ahgroupbot_poll_errors",
	Help: "Number of failed getUpdates polls",
})
