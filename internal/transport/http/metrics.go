package httptransport

import "expvar"

var (
	metricLoginTotal  = expvar.NewInt("host_login_total")
	metricLoginErrors = expvar.NewInt("host_login_errors_total")

	metricLaunchTotal  = expvar.NewInt("host_launch_total")
	metricLaunchErrors = expvar.NewInt("host_launch_errors_total")

	metricSSEConnectionsTotal  = expvar.NewInt("host_sse_connections_total")
	metricSSEConnectionsActive = expvar.NewInt("host_sse_connections_active")

	metricRuntimeEventsTotal   = expvar.NewInt("host_runtime_events_total")
	metricRuntimeEventsInvalid = expvar.NewInt("host_runtime_events_invalid_total")
)
