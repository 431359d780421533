package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sort"
	"strings"
	"testing"
	"time"

	"slot-lobby/internal/config"
	"slot-lobby/internal/lobby"
	httptransport "slot-lobby/internal/transport/http"

	"github.com/go-chi/chi/v5"
)

func newTestRouter(t *testing.T, host config.HostConfig) *chi.Mux {
	t.Helper()
	app, err := lobby.New(lobby.Options{
		Config: config.ClientConfig{
			APIURL:               "http://127.0.0.1:1",
			SocketURL:            "wss://ws.example.com",
			HTTPTimeout:          time.Second,
			ReconnectDelay:       time.Hour,
			MaxReconnectAttempts: 1,
			BalancePollInterval:  time.Hour,
			AssetBaseURL:         "https://cdn.example.com",
		},
	})
	if err != nil {
		t.Fatalf("lobby.New() error = %v", err)
	}
	t.Cleanup(func() { app.Close(context.Background()) })
	return httptransport.NewRouter(app, host)
}

func TestRouteSnapshot(t *testing.T) {
	router := newTestRouter(t, config.HostConfig{APIKey: "host-key"})

	var routes []string
	err := chi.Walk(router, func(method string, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		routes = append(routes, method+" "+route)
		return nil
	})
	if err != nil {
		t.Fatalf("walk routes: %v", err)
	}
	sort.Strings(routes)

	expected := []string{
		"GET /api/balance",
		"GET /api/events",
		"GET /api/games/current",
		"GET /api/games/current/inbound",
		"GET /api/history",
		"GET /api/state",
		"GET /api/tables",
		"GET /debug/vars",
		"GET /healthz",
		"POST /api/favorites",
		"POST /api/games/current/outbound",
		"POST /api/games/leave",
		"POST /api/games/{slug}/launch",
		"POST /api/launch",
		"POST /api/login",
		"POST /api/logout",
		"POST /api/network/online",
		"POST /api/password",
		"POST /api/popup/dismiss",
		"POST /api/signup",
		"POST /api/tables/refresh",
		"POST /api/visibility",
	}
	sort.Strings(expected)

	if !reflect.DeepEqual(routes, expected) {
		t.Fatalf("route snapshot mismatch\nexpected=%v\nactual=%v", expected, routes)
	}
}

func TestRoutesMounted(t *testing.T) {
	router := newTestRouter(t, config.HostConfig{APIKey: "host-key"})
	httptransport.LogRoutes(router)

	cases := []struct {
		name   string
		method string
		path   string
		body   string
		key    string
		want   int
	}{
		{name: "health", method: http.MethodGet, path: "/healthz", want: http.StatusOK},
		{name: "state", method: http.MethodGet, path: "/api/state", want: http.StatusOK},
		{name: "login bad json", method: http.MethodPost, path: "/api/login", body: "{", want: http.StatusBadRequest},
		{name: "login wrong method", method: http.MethodGet, path: "/api/login", want: http.StatusMethodNotAllowed},
		{name: "debug without key", method: http.MethodGet, path: "/debug/vars", want: http.StatusUnauthorized},
		{name: "debug with key", method: http.MethodGet, path: "/debug/vars", key: "host-key", want: http.StatusOK},
		{name: "unknown", method: http.MethodGet, path: "/api/nope", want: http.StatusNotFound},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(tc.method, tc.path, strings.NewReader(tc.body))
		if tc.key != "" {
			req.Header.Set("X-Host-Key", tc.key)
		}
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code != tc.want {
			t.Fatalf("%s: expected %d, got %d body=%s", tc.name, tc.want, rec.Code, rec.Body.String())
		}
	}
}
