package httptransport

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"slot-lobby/internal/api"
	"slot-lobby/internal/bridge"
	"slot-lobby/internal/directory"
	"slot-lobby/internal/history"
	"slot-lobby/internal/lobby"
	"slot-lobby/internal/logging"
	"slot-lobby/internal/session"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httplog/v3"
	"github.com/rs/zerolog/log"
)

func APILogMiddleware() func(http.Handler) http.Handler {
	return httplog.RequestLogger(
		slog.New(slog.NewJSONHandler(logging.Writer(), &slog.HandlerOptions{})),
		&httplog.Options{
			Level:              slog.LevelInfo,
			Schema:             httplog.Schema{ResponseStatus: "status", ResponseDuration: "duration_ms"},
			LogRequestBody:     func(*http.Request) bool { return false },
			LogResponseBody:    func(*http.Request) bool { return false },
			LogRequestHeaders:  []string{},
			LogResponseHeaders: []string{},
			LogExtraAttrs: func(req *http.Request, _ string, _ int) []slog.Attr {
				rc := chi.RouteContext(req.Context())
				route := req.URL.Path
				if rc != nil && rc.RoutePattern() != "" {
					route = rc.RoutePattern()
				}
				return []slog.Attr{
					slog.String("request_id", chimw.GetReqID(req.Context())),
					slog.String("method", req.Method),
					slog.String("route", route),
					slog.String("path", req.URL.Path),
				}
			},
		},
	)
}

func BodyCaptureMiddleware(maxCaptureBytes int) func(http.Handler) http.Handler {
	if maxCaptureBytes <= 0 {
		maxCaptureBytes = 4096
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isSSERequest(r) {
				next.ServeHTTP(w, r)
				return
			}
			reqBody, err := io.ReadAll(r.Body)
			if err != nil {
				reqBody = nil
			}
			r.Body = io.NopCloser(bytes.NewReader(reqBody))

			cw := &captureWriter{ResponseWriter: w, maxBytes: maxCaptureBytes}
			next.ServeHTTP(cw, r)

			reqLog := reqBody
			if len(reqLog) > maxCaptureBytes {
				reqLog = reqLog[:maxCaptureBytes]
			}
			httplog.SetAttrs(r.Context(), slog.Any("request_body", parseMaybeJSON(reqLog)))
			httplog.SetAttrs(r.Context(), slog.Any("response_body", parseMaybeJSON(cw.body.Bytes())))
			httplog.SetAttrs(r.Context(), slog.Bool("request_body_truncated", len(reqBody) > maxCaptureBytes))
			httplog.SetAttrs(r.Context(), slog.Bool("response_body_truncated", cw.truncated))
		})
	}
}

type captureWriter struct {
	http.ResponseWriter
	body      bytes.Buffer
	maxBytes  int
	truncated bool
}

func (c *captureWriter) Write(p []byte) (int, error) {
	if !c.truncated {
		remain := c.maxBytes - c.body.Len()
		switch {
		case remain <= 0:
			c.truncated = true
		case len(p) <= remain:
			_, _ = c.body.Write(p)
		default:
			_, _ = c.body.Write(p[:remain])
			c.truncated = true
		}
	}
	return c.ResponseWriter.Write(p)
}

func (c *captureWriter) Flush() {
	if f, ok := c.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func parseMaybeJSON(b []byte) any {
	if len(b) == 0 {
		return ""
	}
	var out any
	if err := json.Unmarshal(b, &out); err == nil {
		return out
	}
	return string(b)
}

// HostKeyMiddleware requires the host key as a bearer token or X-Host-Key
// header. An empty key disables the check.
func HostKeyMiddleware(key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if key != "" && !checkHostKey(r, key) {
				WriteHTTPError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func checkHostKey(r *http.Request, key string) bool {
	if v := r.Header.Get("X-Host-Key"); v == key {
		return true
	}
	auth := r.Header.Get("Authorization")
	prefix := "Bearer "
	if len(auth) > len(prefix) && auth[:len(prefix)] == prefix {
		return auth[len(prefix):] == key
	}
	return false
}

func WriteHTTPError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]any{"error": code})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	return dec.Decode(v)
}

// writeLobbyError maps a lobby failure to a status and error code. Business
// and validation failures carry their user-facing text.
func writeLobbyError(w http.ResponseWriter, err error) {
	var verr *lobby.ValidationError
	var berr *api.BusinessError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "validation_failed", "fields": verr.Fields})
	case errors.As(err, &berr):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"error": "business_error", "message": berr.Message})
	case errors.Is(err, api.ErrUnauthorized), errors.Is(err, lobby.ErrNotAuthenticated):
		WriteHTTPError(w, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, session.ErrLaunchTokenMissing):
		WriteHTTPError(w, http.StatusBadRequest, "launch_token_missing")
	case errors.Is(err, session.ErrLaunchTokenInvalid):
		WriteHTTPError(w, http.StatusUnauthorized, "launch_token_invalid")
	case errors.Is(err, directory.ErrInvalidLaunchTable):
		WriteHTTPError(w, http.StatusBadRequest, "invalid_table")
	case errors.Is(err, lobby.ErrUnknownTable):
		WriteHTTPError(w, http.StatusNotFound, "table_not_found")
	case errors.Is(err, bridge.ErrNothingRunning):
		WriteHTTPError(w, http.StatusNotFound, "no_game")
	case errors.Is(err, bridge.ErrNotRelayed):
		WriteHTTPError(w, http.StatusConflict, "game_not_relayed")
	case errors.Is(err, bridge.ErrRuntimeQuit), errors.Is(err, bridge.ErrChannelClosed):
		WriteHTTPError(w, http.StatusGone, "game_closed")
	case errors.Is(err, bridge.ErrLoadExhausted):
		WriteHTTPError(w, http.StatusBadGateway, "game_load_failed")
	case errors.Is(err, history.ErrInvalidResponse), errors.Is(err, api.ErrNoCasinoURL):
		WriteHTTPError(w, http.StatusBadGateway, "upstream_invalid")
	default:
		log.Error().Err(err).Msg("lobby_request_failed")
		WriteHTTPError(w, http.StatusInternalServerError, "internal_error")
	}
}

func isSSERequest(r *http.Request) bool {
	if strings.Contains(r.Header.Get("Accept"), "text/event-stream") {
		return true
	}
	switch r.URL.Path {
	case "/api/events", "/api/games/current/inbound":
		return true
	}
	return false
}
