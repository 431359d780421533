// Package session is the single source of truth for whether the user is
// logged in. It owns clearing every session artifact and sending the user
// back to the login page.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"slot-lobby/internal/storage"

	"github.com/rs/zerolog/log"
)

var (
	ErrLaunchTokenMissing = errors.New("launch_token_missing")
	ErrLaunchTokenInvalid = errors.New("launch_token_invalid")
)

type State struct {
	IsAuthenticated bool   `json:"isAuthenticated"`
	Token           string `json:"token,omitempty"`
	Username        string `json:"username,omitempty"`
	UserType        string `json:"userType,omitempty"`
}

// ConnectionCloser is the live socket the authority tears down on logout.
type ConnectionCloser interface {
	Close()
}

// Validator confirms a bearer token with the server.
type Validator interface {
	ValidateToken(ctx context.Context, token string) (bool, error)
}

type Navigator interface {
	NavigateLogin() error
}

type Deps struct {
	Store      storage.Scope
	Connection ConnectionCloser
	Validator  Validator
	// Navigators are tried in order on expiry; each failure is independent.
	Navigators []Navigator
	Now        func() time.Time
}

type subscriber struct {
	fn func(State)
}

type Authority struct {
	store      storage.Scope
	conn       ConnectionCloser
	validator  Validator
	navigators []Navigator
	now        func() time.Time

	mu   sync.Mutex
	subs []*subscriber
}

func New(deps Deps) *Authority {
	if deps.Store == nil {
		deps.Store = storage.NewSessionStore()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Authority{
		store:      deps.Store,
		conn:       deps.Connection,
		validator:  deps.Validator,
		navigators: deps.Navigators,
		now:        deps.Now,
	}
}

// GetState reads storage on every call.
func (a *Authority) GetState() State {
	token, _ := a.store.Get(storage.KeyToken)
	username, _ := a.store.Get(storage.KeyUsername)
	userType, _ := a.store.Get(storage.KeyUserType)
	return State{
		IsAuthenticated: token != "",
		Token:           token,
		Username:        username,
		UserType:        userType,
	}
}

func (a *Authority) HasValidToken() bool {
	token, _ := a.store.Get(storage.KeyToken)
	return token != ""
}

// SetState persists the session and notifies subscribers. An empty userType
// removes the stored one so a new login never inherits the previous user's.
func (a *Authority) SetState(token, username, userType string) {
	a.store.Set(storage.KeyToken, token)
	a.store.Set(storage.KeyUsername, username)
	if userType != "" {
		a.store.Set(storage.KeyUserType, userType)
	} else {
		a.store.Remove(storage.KeyUserType)
	}
	metricSetStateTotal.Add(1)
	log.Info().Str("username", username).Str("user_type", userType).Msg("session_set")
	a.notify()
}

// ClearState wipes the session scope, closes the socket and notifies
// subscribers. Safe to call without an active session.
func (a *Authority) ClearState(reason string) {
	a.store.Clear()
	if a.conn != nil {
		a.conn.Close()
	}
	metricClearStateTotal.Add(1)
	log.Info().Str("reason", reason).Msg("session_cleared")
	a.notify()
}

// HandleExpiry clears the session and sends the user to the login page
// through every navigator.
func (a *Authority) HandleExpiry(reason string) {
	metricExpiryTotal.Add(1)
	log.Warn().Str("reason", reason).Msg("session_expired")
	a.ClearState(reason)
	for _, nav := range a.navigators {
		a.tryNavigate(nav)
	}
}

func (a *Authority) tryNavigate(nav Navigator) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("navigate_login_panic")
		}
	}()
	if err := nav.NavigateLogin(); err != nil {
		log.Error().Err(err).Msg("navigate_login_failed")
	}
}

// Subscribe registers fn for state changes and returns its unsubscribe func.
func (a *Authority) Subscribe(fn func(State)) func() {
	sub := &subscriber{fn: fn}
	a.mu.Lock()
	a.subs = append(a.subs, sub)
	a.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			a.mu.Lock()
			defer a.mu.Unlock()
			for i, s := range a.subs {
				if s == sub {
					a.subs = append(a.subs[:i:i], a.subs[i+1:]...)
					return
				}
			}
		})
	}
}

func (a *Authority) notify() {
	state := a.GetState()
	a.mu.Lock()
	subs := append([]*subscriber(nil), a.subs...)
	a.mu.Unlock()
	for _, s := range subs {
		deliver(s, state)
	}
}

func deliver(s *subscriber, state State) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("session_subscriber_panic")
		}
	}()
	s.fn(state)
}

// ValidateToken confirms the stored token with the server. A missing token
// returns false; a rejected, expired or unverifiable token also runs
// HandleExpiry before returning false.
func (a *Authority) ValidateToken(ctx context.Context) bool {
	token, _ := a.store.Get(storage.KeyToken)
	if token == "" {
		return false
	}
	if exp, ok := TokenExpiry(token); ok && !exp.After(a.now()) {
		a.HandleExpiry("token expired")
		return false
	}
	if a.validator == nil {
		return true
	}
	ok, err := a.validator.ValidateToken(ctx, token)
	if err != nil {
		log.Error().Err(err).Msg("token_validation_error")
		a.HandleExpiry("token validation error")
		return false
	}
	if !ok {
		a.HandleExpiry("token validation failed")
		return false
	}
	return true
}

// AdoptLaunchToken accepts credentials handed over by an external launcher.
// With no launcher token and an existing session nothing changes.
func (a *Authority) AdoptLaunchToken(ctx context.Context, token, username, userType string) error {
	if token == "" && a.HasValidToken() {
		return nil
	}
	if token == "" || username == "" {
		return ErrLaunchTokenMissing
	}
	if a.validator != nil {
		ok, err := a.validator.ValidateToken(ctx, token)
		if err != nil {
			log.Error().Err(err).Msg("launch_token_validation_error")
			return ErrLaunchTokenInvalid
		}
		if !ok {
			return ErrLaunchTokenInvalid
		}
	}
	a.SetState(token, username, userType)
	return nil
}
