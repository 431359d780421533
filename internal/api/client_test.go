package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"slot-lobby/internal/config"
	"slot-lobby/internal/gateway"
	"slot-lobby/internal/storage"
)

type capture struct {
	mu      sync.Mutex
	headers map[string]http.Header
	bodies  map[string]map[string]any
}

func newTestAPI(t *testing.T, routes map[string]http.HandlerFunc) (*Client, *capture) {
	t.Helper()
	cp := &capture{headers: map[string]http.Header{}, bodies: map[string]map[string]any{}}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/" {
			_, _ = w.Write([]byte(`{"csrfToken":"csrf-1"}`))
			return
		}
		cp.mu.Lock()
		cp.headers[r.URL.Path] = r.Header.Clone()
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		cp.bodies[r.URL.Path] = body
		cp.mu.Unlock()
		h, ok := routes[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		h(w, r)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	gw, err := gateway.New(gateway.Options{BaseURL: srv.URL, Timeout: 2 * time.Second, Store: storage.NewSessionStore()})
	if err != nil {
		t.Fatalf("gateway: %v", err)
	}
	cfg := config.ClientConfig{OperatorID: "BOUGEE", PartnerID: "INR", PlatformID: "desktop", LobbyType: "LIVE:VIRTUAL"}
	return New(gw, cfg), cp
}

func reply(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(body))
	}
}

func replyStatus(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}
}

func TestLoginThenTablesCarryBearer(t *testing.T) {
	c, cp := newTestAPI(t, map[string]http.HandlerFunc{
		"/api/login": reply(`{"token":"abc123","description":"Successful login"}`),
		"/api/gettables": reply(`{"status":"RS_OK","tables":[
			{"tableId":"1","tableName":"Keno","category":"fun","slug":"keno","iframe":"unity","orientation":"landscape-primary"},
			{"tableId":"2","tableName":"Unknown","category":"slot","slug":"not-shipped","iframe":"unity"}
		],"favTables":["1"]}`),
	})
	ctx := context.Background()

	res, err := c.Login(ctx, "alice", "secret123")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if res.Token != "abc123" {
		t.Fatalf("unexpected token %q", res.Token)
	}
	if cp.bodies["/api/login"]["username"] != "alice" {
		t.Fatalf("unexpected login body %v", cp.bodies["/api/login"])
	}

	tables, err := c.GetTables(ctx, res.Token)
	if err != nil {
		t.Fatalf("gettables: %v", err)
	}
	if got := cp.headers["/api/gettables"].Get("Authorization"); got != "Bearer abc123" {
		t.Fatalf("unexpected authorization %q", got)
	}
	if got := cp.headers["/api/gettables"].Get(gateway.HeaderCSRF); got != "csrf-1" {
		t.Fatalf("unexpected csrf header %q", got)
	}
	if len(tables.Tables) != 1 || tables.Tables[0].Slug != "keno" {
		t.Fatalf("expected unsupported table dropped, got %+v", tables.Tables)
	}
	if len(tables.FavTables) != 1 || tables.FavTables[0] != "1" {
		t.Fatalf("unexpected favourites %v", tables.FavTables)
	}
}

func TestLoginFailures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		want    string
	}{
		{name: "other description", handler: reply(`{"description":"User is blocked"}`), want: "User is blocked"},
		{name: "error status with description", handler: replyStatus(http.StatusBadRequest, `{"description":"Invalid username or password"}`), want: "Invalid username or password"},
		{name: "error status without body", handler: replyStatus(http.StatusInternalServerError, ``), want: "Failed to login"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestAPI(t, map[string]http.HandlerFunc{"/api/login": tt.handler})
			_, err := c.Login(context.Background(), "alice", "secret123")
			var be *BusinessError
			if !errors.As(err, &be) || be.Message != tt.want {
				t.Fatalf("expected business error %q, got %v", tt.want, err)
			}
		})
	}
}

func TestGetTablesStatuses(t *testing.T) {
	c, _ := newTestAPI(t, map[string]http.HandlerFunc{
		"/api/gettables": reply(`{"status":"TOKEN_EXPIRED"}`),
	})
	if _, err := c.GetTables(context.Background(), "abc"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}

	c, _ = newTestAPI(t, map[string]http.HandlerFunc{
		"/api/gettables": reply(`{"status":"RS_ERROR","message":"maintenance"}`),
	})
	_, err := c.GetTables(context.Background(), "abc")
	var be *BusinessError
	if !errors.As(err, &be) || be.Message != "maintenance" || be.Status != "RS_ERROR" {
		t.Fatalf("expected business error, got %v", err)
	}

	if _, err := c.GetTables(context.Background(), ""); !errors.Is(err, ErrNoToken) {
		t.Fatalf("expected ErrNoToken, got %v", err)
	}
}

func TestForbiddenAfterRefreshIsUnauthorized(t *testing.T) {
	forbidden := replyStatus(http.StatusForbidden, `{"message":"forbidden"}`)
	c, _ := newTestAPI(t, map[string]http.HandlerFunc{
		"/api/gettables":      forbidden,
		"/api/favorites":      forbidden,
		"/api/getcasino":      forbidden,
		"/api/updatepassword": forbidden,
		"/api/login":          forbidden,
	})
	ctx := context.Background()

	if _, err := c.GetTables(ctx, "abc"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("GetTables: expected ErrUnauthorized, got %v", err)
	}
	if _, err := c.SetFavorite(ctx, "abc", "7", true); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("SetFavorite: expected ErrUnauthorized, got %v", err)
	}
	if _, err := c.GetCasinoURL(ctx, "abc", "alice", "9"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("GetCasinoURL: expected ErrUnauthorized, got %v", err)
	}
	err := c.UpdatePassword(ctx, "abc", PasswordChange{CurrentPassword: "oldpass12", NewPassword: "newpass12", ConfirmPassword: "newpass12"})
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("UpdatePassword: expected ErrUnauthorized, got %v", err)
	}

	_, err = c.Login(ctx, "alice", "secret123")
	var be *BusinessError
	if !errors.As(err, &be) || be.Message != "forbidden" {
		t.Fatalf("Login: expected business error, got %v", err)
	}
}

func TestSetFavorite(t *testing.T) {
	c, cp := newTestAPI(t, map[string]http.HandlerFunc{
		"/api/favorites": reply(`{"status":"RS_OK","favTables":[3,"7"]}`),
	})
	favs, err := c.SetFavorite(context.Background(), "abc", "7", true)
	if err != nil {
		t.Fatalf("set favorite: %v", err)
	}
	if len(favs) != 2 || favs[0] != "3" || favs[1] != "7" {
		t.Fatalf("unexpected favourites %v", favs)
	}
	body := cp.bodies["/api/favorites"]
	if body["tableId"] != "7" || body["isFav"] != true {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestValidateToken(t *testing.T) {
	c, cp := newTestAPI(t, map[string]http.HandlerFunc{
		"/api/v1/validate-token": reply(`{"description":"Token valid"}`),
	})
	ok, err := c.ValidateToken(context.Background(), "abc")
	if err != nil || !ok {
		t.Fatalf("expected valid, got %v %v", ok, err)
	}
	if cp.headers["/api/v1/validate-token"].Get("Authorization") != "Bearer abc" {
		t.Fatal("expected bearer header")
	}

	c, _ = newTestAPI(t, map[string]http.HandlerFunc{
		"/api/v1/validate-token": replyStatus(http.StatusBadRequest, `{"description":"Token invalid"}`),
	})
	ok, err = c.ValidateToken(context.Background(), "abc")
	if err != nil || ok {
		t.Fatalf("expected rejection without error, got %v %v", ok, err)
	}
}

func TestLogoutRequiresToken(t *testing.T) {
	c, cp := newTestAPI(t, map[string]http.HandlerFunc{"/api/logout": reply(`{"status":"RS_OK"}`)})
	if err := c.Logout(context.Background(), ""); !errors.Is(err, ErrNoToken) {
		t.Fatalf("expected ErrNoToken, got %v", err)
	}
	if err := c.Logout(context.Background(), "abc"); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if cp.headers["/api/logout"].Get("Authorization") != "Bearer abc" {
		t.Fatal("expected bearer header")
	}
}

func TestUpdatePasswordSurfacesError(t *testing.T) {
	c, cp := newTestAPI(t, map[string]http.HandlerFunc{
		"/api/updatepassword": replyStatus(http.StatusBadRequest, `{"error":"Current password is incorrect"}`),
	})
	err := c.UpdatePassword(context.Background(), "abc", PasswordChange{CurrentPassword: "oldpass12", NewPassword: "newpass12", ConfirmPassword: "newpass12"})
	var be *BusinessError
	if !errors.As(err, &be) || be.Message != "Current password is incorrect" {
		t.Fatalf("expected business error, got %v", err)
	}
	if cp.bodies["/api/updatepassword"]["confirmPassword"] != "newpass12" {
		t.Fatalf("unexpected body %v", cp.bodies["/api/updatepassword"])
	}
}

func TestSignupBody(t *testing.T) {
	c, cp := newTestAPI(t, map[string]http.HandlerFunc{"/api/signup": reply(`{}`)})
	err := c.Signup(context.Background(), SignupRequest{Username: "frank", Password: "password1", ConfirmPassword: "password1", Mobile: "9876543210", Email: "f@example.com"})
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	if cp.bodies["/api/signup"]["confirm_password"] != "password1" {
		t.Fatalf("unexpected body %v", cp.bodies["/api/signup"])
	}
}

func TestGetCasinoURL(t *testing.T) {
	c, cp := newTestAPI(t, map[string]http.HandlerFunc{
		"/api/getcasino": reply(`{"url":"https://games.example.com/play?id=9\\u0026token=xyz\\u0026lang=en"}`),
	})
	url, err := c.GetCasinoURL(context.Background(), "abc", "alice", "9")
	if err != nil {
		t.Fatalf("getcasino: %v", err)
	}
	if url != "https://games.example.com/play?id=9&token=xyz&lang=en" {
		t.Fatalf("unexpected url %s", url)
	}
	body := cp.bodies["/api/getcasino"]
	want := map[string]any{
		"tableId": "9", "operatorId": "BOUGEE", "userId": "alice", "username": "alice",
		"partnerId": "INR", "platformId": "desktop", "lobby": false, "lobbyType": "LIVE:VIRTUAL",
	}
	for k, v := range want {
		if body[k] != v {
			t.Fatalf("field %s: expected %v, got %v", k, v, body[k])
		}
	}

	c, _ = newTestAPI(t, map[string]http.HandlerFunc{"/api/getcasino": reply(`{}`)})
	if _, err := c.GetCasinoURL(context.Background(), "abc", "alice", "9"); !errors.Is(err, ErrNoCasinoURL) {
		t.Fatalf("expected ErrNoCasinoURL, got %v", err)
	}
}
