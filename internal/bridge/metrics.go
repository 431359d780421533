package bridge

import "expvar"

var (
	metricLaunchTotal    = expvar.NewInt("bridge_launch_total")
	metricLaunchFailures = expvar.NewInt("bridge_launch_failures_total")
	metricLoadAttempts   = expvar.NewInt("bridge_load_attempts_total")
	metricInbound        = expvar.NewInt("bridge_inbound_total")
	metricOutbound       = expvar.NewInt("bridge_outbound_total")
	metricQuitTimeouts   = expvar.NewInt("bridge_quit_timeouts_total")
)
