package httptransport

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"slot-lobby/internal/ids"
)

var ssePingInterval = 15 * time.Second

type StreamEvent struct {
	EventID  string `json:"event_id"`
	Event    string `json:"event"`
	ServerTS int64  `json:"server_ts"`
	Data     any    `json:"data"`
}

func newStreamEvent(event string, data any) StreamEvent {
	return StreamEvent{EventID: ids.New(), Event: event, ServerTS: time.Now().UnixMilli(), Data: data}
}

func pingEvent() StreamEvent {
	now := time.Now().UnixMilli()
	return StreamEvent{Event: "ping", ServerTS: now, Data: map[string]any{"ts": now}}
}

func SetSSEHeaders(w http.ResponseWriter) {
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache, no-transform")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	h.Set("X-Content-Type-Options", "nosniff")
}

func WriteSSE(w http.ResponseWriter, ev StreamEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if ev.EventID != "" {
		if _, err := fmt.Fprintf(w, "id: %s\n", ev.EventID); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(w, "event: %s\n", ev.Event); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return err
	}
	return nil
}
