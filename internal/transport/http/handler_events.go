package httptransport

import (
	"net/http"
	"time"

	"slot-lobby/internal/lobby"
	"slot-lobby/internal/session"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
)

// EventsSSEHandler streams page events: a state snapshot on connect and on
// every session change, plus every frame message the page posts.
func EventsSSEHandler(app *lobby.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			WriteHTTPError(w, http.StatusInternalServerError, "stream_not_supported")
			return
		}

		metricSSEConnectionsTotal.Add(1)
		metricSSEConnectionsActive.Add(1)
		defer metricSSEConnectionsActive.Add(-1)

		frames, cancelFrames := app.Frames.Subscribe(16)
		defer cancelFrames()
		changes := make(chan session.State, 8)
		unsubscribe := app.Auth.Subscribe(func(s session.State) {
			select {
			case changes <- s:
			default:
			}
		})
		defer unsubscribe()

		SetSSEHeaders(w)
		reqID := chimw.GetReqID(r.Context())
		log.Info().Str("request_id", reqID).Msg("sse stream opened")

		if err := WriteSSE(w, newStreamEvent("state", app.Snapshot())); err != nil {
			return
		}
		flusher.Flush()

		ticker := time.NewTicker(ssePingInterval)
		defer ticker.Stop()
		for {
			var ev StreamEvent
			select {
			case <-r.Context().Done():
				log.Info().Str("request_id", reqID).Err(r.Context().Err()).Msg("sse stream closed")
				return
			case msg, ok := <-frames:
				if !ok {
					log.Info().Str("request_id", reqID).Msg("sse stream channel closed")
					return
				}
				ev = newStreamEvent("frame", msg)
			case <-changes:
				ev = newStreamEvent("state", app.Snapshot())
			case <-ticker.C:
				ev = pingEvent()
			}
			if err := WriteSSE(w, ev); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
