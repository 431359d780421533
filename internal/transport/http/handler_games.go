package httptransport

import (
	"encoding/json"
	"net/http"
	"time"

	"slot-lobby/internal/bridge"
	"slot-lobby/internal/lobby"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
)

type GameHandlers struct {
	app *lobby.App
}

func NewGameHandlers(app *lobby.App) *GameHandlers {
	return &GameHandlers{app: app}
}

func (h *GameHandlers) Launch() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slug := chi.URLParam(r, "slug")
		if slug == "" {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_request")
			return
		}
		metricLaunchTotal.Add(1)
		cfg, err := h.app.Launch(r.Context(), slug)
		if err != nil {
			metricLaunchErrors.Add(1)
			writeLobbyError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, cfg)
	}
}

func (h *GameHandlers) Leave() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := h.app.LeaveGame(r.Context()); err != nil {
			log.Warn().Err(err).Msg("leave_game_teardown_failed")
		}
		writeJSON(w, http.StatusOK, h.app.Snapshot())
	}
}

func (h *GameHandlers) Current() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		cfg, ok := h.app.Bridge.Current()
		if !ok {
			WriteHTTPError(w, http.StatusNotFound, "no_game")
			return
		}
		writeJSON(w, http.StatusOK, cfg)
	}
}

// InboundSSE streams the messages the host pushes into the running game to
// the page that embeds it. The stream ends when the game is released.
func (h *GameHandlers) InboundSSE() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		relay, err := h.app.Bridge.Relay()
		if err != nil {
			writeLobbyError(w, err)
			return
		}
		flusher, ok := w.(http.Flusher)
		if !ok {
			WriteHTTPError(w, http.StatusInternalServerError, "stream_not_supported")
			return
		}
		sub, cancel, err := relay.Subscribe(32)
		if err != nil {
			writeLobbyError(w, err)
			return
		}
		defer cancel()

		metricSSEConnectionsTotal.Add(1)
		metricSSEConnectionsActive.Add(1)
		defer metricSSEConnectionsActive.Add(-1)

		SetSSEHeaders(w)
		cfg := relay.Config()
		reqID := chimw.GetReqID(r.Context())
		log.Info().Str("request_id", reqID).Str("instance_id", cfg.InstanceID).Msg("runtime stream opened")

		if err := WriteSSE(w, newStreamEvent("config", cfg)); err != nil {
			return
		}
		flusher.Flush()

		ticker := time.NewTicker(ssePingInterval)
		defer ticker.Stop()
		for {
			var ev StreamEvent
			select {
			case <-r.Context().Done():
				return
			case msg, ok := <-sub:
				if !ok {
					_ = WriteSSE(w, newStreamEvent("quit", map[string]any{"instance_id": cfg.InstanceID}))
					flusher.Flush()
					log.Info().Str("request_id", reqID).Str("instance_id", cfg.InstanceID).Msg("runtime stream closed")
					return
				}
				raw, err := bridge.EncodeInbound(msg)
				if err != nil {
					log.Warn().Err(err).Msg("runtime_inbound_encode_failed")
					continue
				}
				ev = newStreamEvent("inbound", json.RawMessage(raw))
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

// Outbound accepts one message raised by the embedded game.
func (h *GameHandlers) Outbound() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var ev bridge.RuntimeEvent
		if err := decodeJSON(r, &ev); err != nil {
			metricRuntimeEventsInvalid.Add(1)
			WriteHTTPError(w, http.StatusBadRequest, "invalid_json")
			return
		}
		msg, ok := ev.Decode()
		if !ok {
			metricRuntimeEventsInvalid.Add(1)
			WriteHTTPError(w, http.StatusBadRequest, "unknown_event")
			return
		}
		relay, err := h.app.Bridge.Relay()
		if err != nil {
			writeLobbyError(w, err)
			return
		}
		if err := relay.Emit(r.Context(), msg); err != nil {
			writeLobbyError(w, err)
			return
		}
		metricRuntimeEventsTotal.Add(1)
		w.WriteHeader(http.StatusAccepted)
	}
}
