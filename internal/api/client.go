// Package api is the typed REST client for the platform endpoints, layered
// on the anti-forgery gateway.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"slot-lobby/internal/config"
	"slot-lobby/internal/directory"
	"slot-lobby/internal/gateway"

	"github.com/rs/zerolog/log"
)

const (
	DescriptionLoginOK = "Successful login"
	DescriptionTokenOK = "Token valid"

	StatusOK           = "RS_OK"
	StatusUnauthorized = "RS_UNAUTHORIZED"
	StatusTokenExpired = "TOKEN_EXPIRED"
)

var (
	// ErrUnauthorized means the bearer token is no longer accepted. Callers
	// escalate it to the session authority.
	ErrUnauthorized = errors.New("unauthorized")
	ErrNoToken      = errors.New("no_session_token")
	ErrNoCasinoURL  = errors.New("no_casino_url")
)

// BusinessError carries a non-OK outcome the user should see verbatim.
type BusinessError struct {
	Status  string
	Message string
}

func (e *BusinessError) Error() string {
	if e.Status == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Status, e.Message)
}

// Requester is the part of the gateway the client needs.
type Requester interface {
	Do(ctx context.Context, req gateway.Request) (*gateway.Response, error)
}

type Client struct {
	gw  Requester
	cfg config.ClientConfig
}

func New(gw Requester, cfg config.ClientConfig) *Client {
	return &Client{gw: gw, cfg: cfg}
}

type envelope struct {
	Status      string `json:"status"`
	Description string `json:"description"`
	Message     string `json:"message"`
	Error       string `json:"error"`
}

func (e envelope) text() string {
	for _, s := range []string{e.Description, e.Error, e.Message} {
		if s != "" {
			return s
		}
	}
	return ""
}

// businessFrom turns a failed call into a user-facing error, falling back to
// fallback when the body has no message.
func businessFrom(err error, fallback string) error {
	var se *gateway.StatusError
	if !errors.As(err, &se) {
		return err
	}
	if se.Status == http.StatusUnauthorized {
		return ErrUnauthorized
	}
	var env envelope
	_ = json.Unmarshal(se.Body, &env)
	msg := env.text()
	if msg == "" {
		msg = fallback
	}
	return &BusinessError{Status: env.Status, Message: msg}
}

// bearerError is businessFrom for bearer-authenticated calls. A 401 or 403
// still standing after the gateway's token refresh means the session is gone.
func bearerError(err error, fallback string) error {
	var se *gateway.StatusError
	if errors.As(err, &se) && (se.Status == http.StatusUnauthorized || se.Status == http.StatusForbidden) {
		return ErrUnauthorized
	}
	return businessFrom(err, fallback)
}

type LoginResult struct {
	Token       string `json:"token"`
	Description string `json:"description"`
}

func (c *Client) Login(ctx context.Context, username, password string) (LoginResult, error) {
	resp, err := c.gw.Do(ctx, gateway.Request{
		Method: http.MethodPost,
		Path:   "/api/login",
		Body:   map[string]string{"username": username, "password": password},
	})
	if err != nil {
		err = businessFrom(err, "Failed to login")
		if errors.Is(err, ErrUnauthorized) {
			return LoginResult{}, &BusinessError{Message: "Failed to login"}
		}
		return LoginResult{}, err
	}
	var out LoginResult
	if err := resp.Decode(&out); err != nil {
		return LoginResult{}, fmt.Errorf("decode login: %w", err)
	}
	if out.Description != DescriptionLoginOK {
		msg := out.Description
		if msg == "" {
			msg = "Failed to login"
		}
		return LoginResult{}, &BusinessError{Message: msg}
	}
	if out.Token == "" {
		return LoginResult{}, &BusinessError{Message: "Failed to login"}
	}
	return out, nil
}

type SignupRequest struct {
	Username        string `json:"username"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
	Mobile          string `json:"mobile"`
	Email           string `json:"email"`
}

func (c *Client) Signup(ctx context.Context, req SignupRequest) error {
	_, err := c.gw.Do(ctx, gateway.Request{Method: http.MethodPost, Path: "/api/signup", Body: req})
	if err != nil {
		err = businessFrom(err, "Failed to sign up")
		if errors.Is(err, ErrUnauthorized) {
			return &BusinessError{Message: "Failed to sign up"}
		}
		return err
	}
	return nil
}

type PasswordChange struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
	ConfirmPassword string `json:"confirmPassword"`
}

func (c *Client) UpdatePassword(ctx context.Context, token string, req PasswordChange) error {
	if token == "" {
		return ErrNoToken
	}
	_, err := c.gw.Do(ctx, gateway.Request{Method: http.MethodPost, Path: "/api/updatepassword", Body: req, Bearer: token})
	if err != nil {
		return bearerError(err, "Failed to Change Password")
	}
	return nil
}

func (c *Client) Logout(ctx context.Context, token string) error {
	if token == "" {
		return ErrNoToken
	}
	_, err := c.gw.Do(ctx, gateway.Request{Method: http.MethodPost, Path: "/api/logout", Body: map[string]any{}, Bearer: token})
	if err != nil {
		return bearerError(err, "Logout failed")
	}
	return nil
}

// ValidateToken reports whether the server confirms token. Transport
// failures are returned as errors.
func (c *Client) ValidateToken(ctx context.Context, token string) (bool, error) {
	resp, err := c.gw.Do(ctx, gateway.Request{Method: http.MethodGet, Path: "/api/v1/validate-token", Bearer: token})
	if err != nil {
		var se *gateway.StatusError
		if errors.As(err, &se) {
			return false, nil
		}
		return false, err
	}
	var env envelope
	if err := resp.Decode(&env); err != nil {
		return false, nil
	}
	return env.Description == DescriptionTokenOK, nil
}

type TablesResult struct {
	Tables    []directory.Table
	FavTables []string
}

type tablesResponse struct {
	envelope
	Tables    []directory.Table   `json:"tables"`
	FavTables []directory.TableID `json:"favTables"`
}

func favIDs(ids []directory.TableID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, string(id))
	}
	return out
}

// GetTables loads the table list, keeping only tables this client can
// render.
func (c *Client) GetTables(ctx context.Context, token string) (TablesResult, error) {
	if token == "" {
		return TablesResult{}, ErrNoToken
	}
	resp, err := c.gw.Do(ctx, gateway.Request{Method: http.MethodGet, Path: "/api/gettables", Bearer: token})
	if err != nil {
		return TablesResult{}, bearerError(err, "Failed to load tables")
	}
	var body tablesResponse
	if err := resp.Decode(&body); err != nil {
		return TablesResult{}, fmt.Errorf("decode tables: %w", err)
	}
	switch body.Status {
	case StatusOK:
	case StatusUnauthorized, StatusTokenExpired:
		return TablesResult{}, ErrUnauthorized
	default:
		msg := body.text()
		if msg == "" {
			msg = "Failed to load tables"
		}
		return TablesResult{}, &BusinessError{Status: body.Status, Message: msg}
	}
	tables := directory.KeepSupported(body.Tables)
	if dropped := len(body.Tables) - len(tables); dropped > 0 {
		log.Debug().Int("dropped", dropped).Msg("tables_without_assets_dropped")
	}
	return TablesResult{Tables: tables, FavTables: favIDs(body.FavTables)}, nil
}

// SetFavorite flips a table in the favourites set and returns the new set.
func (c *Client) SetFavorite(ctx context.Context, token string, tableID directory.TableID, isFav bool) ([]string, error) {
	if token == "" {
		return nil, ErrNoToken
	}
	resp, err := c.gw.Do(ctx, gateway.Request{
		Method: http.MethodPost,
		Path:   "/api/favorites",
		Body:   map[string]any{"tableId": tableID, "isFav": isFav},
		Bearer: token,
	})
	if err != nil {
		return nil, bearerError(err, "Failed to update favourites")
	}
	var body tablesResponse
	if err := resp.Decode(&body); err != nil {
		return nil, fmt.Errorf("decode favorites: %w", err)
	}
	switch body.Status {
	case StatusOK:
		return favIDs(body.FavTables), nil
	case StatusUnauthorized, StatusTokenExpired:
		return nil, ErrUnauthorized
	default:
		return nil, &BusinessError{Status: body.Status, Message: body.text()}
	}
}

type casinoRequest struct {
	TableID    directory.TableID `json:"tableId"`
	OperatorID string            `json:"operatorId"`
	UserID     string            `json:"userId"`
	Username   string            `json:"username"`
	PartnerID  string            `json:"partnerId"`
	PlatformID string            `json:"platformId"`
	Lobby      bool              `json:"lobby"`
	LobbyType  string            `json:"lobbyType"`
}

// GetCasinoURL resolves the launch URL of an externally hosted table.
func (c *Client) GetCasinoURL(ctx context.Context, token, username string, tableID directory.TableID) (string, error) {
	if token == "" || username == "" {
		return "", ErrNoToken
	}
	resp, err := c.gw.Do(ctx, gateway.Request{
		Method: http.MethodPost,
		Path:   "/api/getcasino",
		Body: casinoRequest{
			TableID:    tableID,
			OperatorID: c.cfg.OperatorID,
			UserID:     username,
			Username:   username,
			PartnerID:  c.cfg.PartnerID,
			PlatformID: c.cfg.PlatformID,
			Lobby:      false,
			LobbyType:  c.cfg.LobbyType,
		},
		Bearer: token,
	})
	if err != nil {
		return "", bearerError(err, "Failed to load casino game")
	}
	var body struct {
		URL string `json:"url"`
	}
	if err := resp.Decode(&body); err != nil {
		return "", fmt.Errorf("decode casino url: %w", err)
	}
	if body.URL == "" {
		return "", ErrNoCasinoURL
	}
	return strings.ReplaceAll(body.URL, `\u0026`, "&"), nil
}
