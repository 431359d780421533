package httptransport

import (
	"expvar"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"slot-lobby/internal/config"
	"slot-lobby/internal/lobby"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
)

func NewRouter(app *lobby.App, cfg config.HostConfig) *chi.Mux {
	sessionHandlers := NewSessionHandlers(app)
	tableHandlers := NewTableHandlers(app)
	gameHandlers := NewGameHandlers(app)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)

	r.With(APILogMiddleware()).Get("/healthz", Health())

	r.Route("/api", func(r chi.Router) {
		r.Use(APILogMiddleware())
		r.Get("/state", sessionHandlers.State())
		r.Get("/events", EventsSSEHandler(app))
		r.Get("/balance", sessionHandlers.Balance())
		r.Post("/popup/dismiss", sessionHandlers.DismissPopup())
		r.Post("/visibility", sessionHandlers.Visible())
		r.Post("/network/online", sessionHandlers.NetworkOnline())

		r.Post("/login", sessionHandlers.Login())
		r.Post("/signup", sessionHandlers.Signup())
		r.Post("/password", sessionHandlers.ChangePassword())
		r.Post("/logout", sessionHandlers.Logout())
		r.Post("/launch", sessionHandlers.AdoptLaunch())
		r.Get("/history", sessionHandlers.History())

		r.Get("/tables", tableHandlers.List())
		r.Post("/tables/refresh", tableHandlers.Refresh())
		r.Post("/favorites", tableHandlers.ToggleFavorite())

		r.Post("/games/{slug}/launch", gameHandlers.Launch())
		r.Post("/games/leave", gameHandlers.Leave())
		r.Get("/games/current", gameHandlers.Current())
		r.Get("/games/current/inbound", gameHandlers.InboundSSE())
		r.Post("/games/current/outbound", gameHandlers.Outbound())
	})

	r.Group(func(r chi.Router) {
		r.Use(APILogMiddleware())
		r.Use(HostKeyMiddleware(cfg.APIKey))
		r.Use(BodyCaptureMiddleware(4096))
		r.Get("/debug/vars", expvar.Handler().ServeHTTP)
	})
	return r
}

func Health() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	}
}

func LogRoutes(r chi.Router) {
	type routeDef struct {
		Method string
		Path   string
	}
	routes := make([]routeDef, 0, 32)
	err := chi.Walk(r, func(method string, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		routes = append(routes, routeDef{Method: method, Path: route})
		return nil
	})
	if err != nil {
		log.Error().Err(err).Msg("walk routes failed")
		return
	}
	sort.Slice(routes, func(i, j int) bool {
		if routes[i].Path == routes[j].Path {
			return routes[i].Method < routes[j].Method
		}
		return routes[i].Path < routes[j].Path
	})
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Registered routes (%d):\n", len(routes)))
	for _, rt := range routes {
		b.WriteString(fmt.Sprintf("  %-6s %s\n", rt.Method, rt.Path))
	}
	fmt.Print(b.String())
}
