// Package lobby is the composition root of one lobby page: it builds the
// core services once, wires them together and exposes the user flows.
package lobby

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/rs/zerolog/log"

	"slot-lobby/internal/api"
	"slot-lobby/internal/bridge"
	"slot-lobby/internal/config"
	"slot-lobby/internal/connectivity"
	"slot-lobby/internal/directory"
	"slot-lobby/internal/gateway"
	"slot-lobby/internal/history"
	"slot-lobby/internal/navigation"
	"slot-lobby/internal/realtime"
	"slot-lobby/internal/session"
	"slot-lobby/internal/storage"
)

const userTypeRegular = "REGULAR"

var (
	ErrNotAuthenticated = errors.New("not_authenticated")
	ErrUnknownTable     = errors.New("unknown_table")
)

type Options struct {
	Config  config.ClientConfig
	Durable storage.Durable
	// Transport overrides the HTTP transport of the REST gateway.
	Transport http.RoundTripper
	Dialer    realtime.Dialer
	Runtimes  bridge.RuntimeFactory
	// Prober enables the connectivity monitor. When nil and a probe URL is
	// configured an HTTP probe is used.
	Prober      connectivity.Prober
	InitialPath string
}

type App struct {
	cfg     config.ClientConfig
	durable storage.Durable

	Session      *storage.SessionStore
	Gateway      *gateway.Client
	API          *api.Client
	Socket       *realtime.Manager
	Poller       *realtime.BalancePoller
	Auth         *session.Authority
	Directory    *directory.Directory
	Bridge       *bridge.Bridge
	Bets         *history.Service
	Connectivity *connectivity.Monitor
	Frames       *navigation.FrameBus
	Location     *navigation.Location

	mu         sync.Mutex
	balance    float64
	hasBalance bool
	popup      bridge.Popup
	closed     bool
}

func New(opts Options) (*App, error) {
	cfg := opts.Config
	if opts.Durable == nil {
		opts.Durable = storage.NewMemoryDurable()
	}
	if opts.Dialer == nil {
		opts.Dialer = realtime.NewWebsocketDialer(cfg.HTTPTimeout)
	}
	if opts.Runtimes == nil {
		opts.Runtimes = bridge.RelayFactory
	}
	if opts.Prober == nil && cfg.ConnectivityProbeURL != "" {
		opts.Prober = connectivity.HTTPProber{URL: cfg.ConnectivityProbeURL}
	}

	a := &App{
		cfg:      cfg,
		durable:  opts.Durable,
		Session:  storage.NewSessionStore(),
		Frames:   navigation.NewFrameBus(cfg.AppURL),
		Location: navigation.NewLocation(opts.InitialPath),
	}

	gw, err := gateway.New(gateway.Options{
		BaseURL:   cfg.APIURL,
		Timeout:   cfg.HTTPTimeout,
		Store:     a.Session,
		Transport: opts.Transport,
	})
	if err != nil {
		return nil, fmt.Errorf("gateway: %w", err)
	}
	a.Gateway = gw
	a.API = api.New(gw, cfg)

	a.Socket = realtime.NewManager(realtime.Options{
		SocketURL:      cfg.SocketURL,
		ReconnectDelay: cfg.ReconnectDelay,
		MaxAttempts:    cfg.MaxReconnectAttempts,
		Dialer:         opts.Dialer,
		Session:        a.Session,
	})
	a.Auth = session.New(session.Deps{
		Store:      a.Session,
		Connection: a.Socket,
		Validator:  a.API,
		Navigators: []session.Navigator{a.Frames, a.Location},
	})
	a.Socket.SetExpiryHandler(a.Auth)

	a.Poller = realtime.NewBalancePoller(a.Socket, cfg.BalancePollInterval, a.setBalance)
	a.Poller.Attach()

	a.Directory = directory.New()
	a.Bets = history.NewService(gw, a.Session, a.Auth)
	a.Bridge = bridge.New(bridge.Options{
		Config:    cfg,
		Factory:   opts.Runtimes,
		Socket:    a.Socket,
		Session:   a.Session,
		Durable:   a.durable,
		Expiry:    a.Auth,
		Frames:    a.Frames,
		Location:  a.Location,
		Casino:    a.API,
		OnBalance: a.setBalance,
		OnPopup:   a.setPopup,
	})
	if opts.Prober != nil {
		a.Connectivity = connectivity.NewMonitor(connectivity.Options{
			Prober:   opts.Prober,
			Interval: cfg.ConnectivityInterval,
			Restorer: a.Socket,
			OnChange: a.onConnectivity,
		})
	}
	return a, nil
}

// Start restores the cached tables, records the device type and, when a
// session already exists, opens the socket.
func (a *App) Start(ctx context.Context) {
	if err := a.Directory.Restore(ctx, a.durable); err != nil {
		log.Warn().Err(err).Msg("lobby_restore_failed")
	}
	if err := a.durable.Set(ctx, storage.KeyDeviceType, a.cfg.PlatformID); err != nil {
		log.Warn().Err(err).Msg("lobby_device_type_write_failed")
	}
	if a.Auth.HasValidToken() {
		a.connect()
	}
	if a.Connectivity != nil {
		a.Connectivity.Start(ctx)
	}
}

func (a *App) connect() {
	a.Socket.Connect(a.Poller.Hooks())
}

func (a *App) token() string {
	token, _ := a.Session.Get(storage.KeyToken)
	return token
}

func (a *App) regularUser() bool {
	userType, _ := a.Session.Get(storage.KeyUserType)
	return userType == userTypeRegular
}

func (a *App) navigateLogin() {
	if err := a.Location.NavigateLogin(); err != nil {
		log.Warn().Err(err).Msg("lobby_navigate_login_failed")
	}
}

// escalate hands authentication failures to the session authority.
func (a *App) escalate(err error, reason string) error {
	if errors.Is(err, api.ErrUnauthorized) {
		a.Auth.HandleExpiry(reason)
	}
	return err
}

func (a *App) Login(ctx context.Context, username, password string) error {
	if err := validateLogin(username, password); err != nil {
		return err
	}
	res, err := a.API.Login(ctx, username, password)
	if err != nil {
		return err
	}
	a.Auth.SetState(res.Token, username, "")
	a.Location.Navigate(navigation.PathLobby)
	a.connect()
	if err := a.RefreshTables(ctx); err != nil {
		log.Warn().Err(err).Msg("lobby_tables_after_login_failed")
	}
	return nil
}

func (a *App) Signup(ctx context.Context, f SignupForm) error {
	if err := validateSignup(f); err != nil {
		return err
	}
	return a.API.Signup(ctx, api.SignupRequest{
		Username:        f.Username,
		Password:        f.Password,
		ConfirmPassword: f.ConfirmPassword,
		Mobile:          f.Mobile,
		Email:           f.Email,
	})
}

// ChangePassword updates the password and ends the session on success.
func (a *App) ChangePassword(ctx context.Context, f PasswordForm) error {
	if err := validatePasswordChange(f); err != nil {
		return err
	}
	token := a.token()
	if token == "" {
		return ErrNotAuthenticated
	}
	err := a.API.UpdatePassword(ctx, token, api.PasswordChange{
		CurrentPassword: f.CurrentPassword,
		NewPassword:     f.NewPassword,
		ConfirmPassword: f.ConfirmPassword,
	})
	if err != nil {
		return a.escalate(err, "password change unauthorized")
	}
	a.Auth.ClearState("password changed")
	a.navigateLogin()
	return nil
}

// Logout ends the session. Local state is cleared even when the server
// call fails; the cached tables are only purged after a confirmed logout.
func (a *App) Logout(ctx context.Context) error {
	if err := a.Bridge.Teardown(ctx); err != nil {
		log.Warn().Err(err).Msg("lobby_runtime_teardown_failed")
	}
	token := a.token()
	if token == "" {
		a.Auth.ClearState("no token found during logout")
		a.navigateLogin()
		return nil
	}

	err := a.API.Logout(ctx, token)
	if err != nil {
		a.Auth.ClearState("logout api failed")
		a.navigateLogin()
		return err
	}

	a.Auth.ClearState("manual logout")
	a.Directory.Replace(nil, nil)
	a.clearBalance()
	if err := directory.Purge(ctx, a.durable); err != nil {
		log.Warn().Err(err).Msg("lobby_purge_failed")
	}
	a.navigateLogin()
	return nil
}

func (a *App) RefreshTables(ctx context.Context) error {
	token := a.token()
	if token == "" {
		return ErrNotAuthenticated
	}
	res, err := a.API.GetTables(ctx, token)
	if err != nil {
		return a.escalate(err, "tables unauthorized")
	}
	a.Directory.Replace(res.Tables, res.FavTables)
	if err := a.Directory.Persist(ctx, a.durable); err != nil {
		log.Warn().Err(err).Msg("lobby_persist_failed")
	}
	return nil
}

// ToggleFavorite flips tableID in the favourites set and reports whether
// it is now a favourite.
func (a *App) ToggleFavorite(ctx context.Context, tableID directory.TableID) (bool, error) {
	token := a.token()
	if token == "" {
		return false, ErrNotAuthenticated
	}
	want := !a.Directory.IsFavorite(tableID)
	favs, err := a.API.SetFavorite(ctx, token, tableID, want)
	if err != nil {
		return false, a.escalate(err, "favourites unauthorized")
	}
	a.Directory.SetFavorites(favs)
	return a.Directory.IsFavorite(tableID), nil
}

func (a *App) VisibleTables(f directory.Filters, excludeID string) []directory.Table {
	return a.Directory.Filtered(f, excludeID)
}

func (a *App) Launch(ctx context.Context, slug string) (bridge.RuntimeConfig, error) {
	table, ok := a.Directory.FindBySlug(slug)
	if !ok {
		return bridge.RuntimeConfig{}, ErrUnknownTable
	}
	return a.LaunchTable(ctx, table)
}

func (a *App) LaunchTable(ctx context.Context, table directory.Table) (bridge.RuntimeConfig, error) {
	if a.token() == "" {
		return bridge.RuntimeConfig{}, ErrNotAuthenticated
	}
	if !directory.Supported(table.Slug) {
		return bridge.RuntimeConfig{}, ErrUnknownTable
	}
	a.setPopup("")
	a.Location.Navigate(navigation.GamePath(table.Slug))
	cfg, err := a.Bridge.Launch(ctx, table)
	if err != nil {
		return bridge.RuntimeConfig{}, a.escalate(err, "casino url unauthorized")
	}
	return cfg, nil
}

// LeaveGame releases the running game and returns to the lobby.
func (a *App) LeaveGame(ctx context.Context) error {
	err := a.Bridge.Teardown(ctx)
	if a.regularUser() {
		if perr := a.Frames.NavigateLobby(); perr != nil {
			log.Warn().Err(perr).Msg("lobby_frame_post_failed")
		}
	}
	a.Location.Navigate(navigation.PathLobby)
	return err
}

// LaunchParams is what an external launcher passes on the game URL.
type LaunchParams struct {
	Token    string          `json:"token"`
	Username string          `json:"userName"`
	UserType string          `json:"userType"`
	Table    json.RawMessage `json:"table,omitempty"`
}

// AdoptLaunchToken takes over a launcher session. When the launcher also
// named a table it is validated and returned.
func (a *App) AdoptLaunchToken(ctx context.Context, p LaunchParams) (*directory.Table, error) {
	if err := a.Auth.AdoptLaunchToken(ctx, p.Token, p.Username, p.UserType); err != nil {
		return nil, err
	}
	a.connect()
	if err := a.RefreshTables(ctx); err != nil {
		log.Warn().Err(err).Msg("lobby_tables_after_adopt_failed")
	}
	if len(p.Table) == 0 {
		return nil, nil
	}
	table, err := directory.ParseLaunchTable(p.Table)
	if err != nil {
		return nil, err
	}
	return &table, nil
}

func (a *App) History(ctx context.Context, f history.Filters) (*history.Page, error) {
	return a.Bets.Fetch(ctx, f)
}

func (a *App) setBalance(v float64) {
	a.mu.Lock()
	a.balance = v
	a.hasBalance = true
	a.mu.Unlock()
}

func (a *App) clearBalance() {
	a.mu.Lock()
	a.balance = 0
	a.hasBalance = false
	a.mu.Unlock()
}

// Balance is the latest wallet balance seen from the socket or a game.
func (a *App) Balance() (float64, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.balance, a.hasBalance
}

func (a *App) setPopup(p bridge.Popup) {
	a.mu.Lock()
	a.popup = p
	a.mu.Unlock()
}

func (a *App) DismissPopup() { a.setPopup("") }

const popupNoInternet bridge.Popup = "NoInternet"

func (a *App) onConnectivity(s connectivity.Status) {
	a.mu.Lock()
	defer a.mu.Unlock()
	switch {
	case s == connectivity.Offline:
		a.popup = popupNoInternet
	case a.popup == popupNoInternet:
		a.popup = ""
	}
}

// Snapshot is the page state the host surface renders.
type Snapshot struct {
	Session      session.State         `json:"session"`
	Connected    bool                  `json:"connected"`
	Path         string                `json:"path"`
	Balance      *float64              `json:"balance,omitempty"`
	Popup        bridge.Popup          `json:"popup,omitempty"`
	Connectivity connectivity.Status   `json:"connectivity"`
	Game         *bridge.RuntimeConfig `json:"game,omitempty"`
	Favorites    []string              `json:"favorites"`
}

func (a *App) Snapshot() Snapshot {
	s := Snapshot{
		Session:      a.Auth.GetState(),
		Connected:    a.Socket.IsConnected(),
		Path:         a.Location.Path(),
		Connectivity: connectivity.Online,
		Favorites:    a.Directory.Favorites(),
	}
	if a.Connectivity != nil {
		s.Connectivity = a.Connectivity.Status()
	}
	if v, ok := a.Balance(); ok {
		s.Balance = &v
	}
	a.mu.Lock()
	s.Popup = a.popup
	a.mu.Unlock()
	if cfg, ok := a.Bridge.Current(); ok {
		s.Game = &cfg
	}
	return s
}

// Close tears down timers, the running game and the socket. The durable
// store belongs to the caller.
func (a *App) Close(ctx context.Context) {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	a.mu.Unlock()

	if a.Connectivity != nil {
		a.Connectivity.Stop()
	}
	if err := a.Bridge.Teardown(ctx); err != nil {
		log.Warn().Err(err).Msg("lobby_runtime_teardown_failed")
	}
	a.Poller.Stop()
	a.Poller.Detach()
	a.Socket.Shutdown()
	a.Frames.Close()
	log.Info().Msg("lobby_closed")
}
