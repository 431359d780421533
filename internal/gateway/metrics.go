package gateway

import "expvar"

var (
	metricRequestTotal     = expvar.NewInt("gateway_request_total")
	metricRequestErrors    = expvar.NewInt("gateway_request_errors_total")
	metricRetryTotal       = expvar.NewInt("gateway_retry_total")
	metricTokenFetchTotal  = expvar.NewInt("csrf_token_fetch_total")
	metricTokenFetchErrors = expvar.NewInt("csrf_token_fetch_errors_total")
)
