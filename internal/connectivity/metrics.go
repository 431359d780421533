package connectivity

import "expvar"

var (
	metricProbeFailures = expvar.NewInt("connectivity_probe_failures_total")
	metricTransitions   = expvar.NewInt("connectivity_transitions_total")
)
