package realtime

import "expvar"

var (
	metricConnectTotal        = expvar.NewInt("ws_connect_total")
	metricConnectErrors       = expvar.NewInt("ws_connect_errors_total")
	metricReconnectScheduled  = expvar.NewInt("ws_reconnect_scheduled_total")
	metricMessagesIn          = expvar.NewInt("ws_messages_in_total")
	metricMessagesOut         = expvar.NewInt("ws_messages_out_total")
	metricMessagesQueued      = expvar.NewInt("ws_messages_queued_total")
	metricSessionExpiredTotal = expvar.NewInt("ws_session_expired_total")
)
