package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	workflowTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "grant",
		Subsystem: "workflow",
		Name:      "transitions_total",
		Help:      "Total number of committed status transitions broken down by entity and states.",
	}, []string{"entity", "from", "to"})

	workflowOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "grant",
		Subsystem: "workflow",
		Name:      "operations_total",
		Help:      "Total number of workflow and auth operations broken down by operation and result.",
	}, []string{"operation", "result"})
)

func recordTransition(entity, from, to string) {
	if from == "" {
		from = "none"
	}
	workflowTransitions.With(prometheus.Labels{
		"entity": entity,
		"from":   from,
		"to":     to,
	}).Inc()
}

func recordOperation(operation string, err error) {
	workflowOperations.With(prometheus.Labels{
		"operation": operation,
		"result":    resultLabel(err),
	}).Inc()
}
