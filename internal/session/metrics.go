package session

import "expvar"

var (
	metricSetStateTotal   = expvar.NewInt("session_set_total")
	metricClearStateTotal = expvar.NewInt("session_clear_total")
	metricExpiryTotal     = expvar.NewInt("session_expiry_total")
)
