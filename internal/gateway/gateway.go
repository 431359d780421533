// Package gateway wraps REST calls to the platform API with anti-forgery
// token acquisition and a bounded refresh-and-retry on 401/403.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"slot-lobby/internal/ids"
	"slot-lobby/internal/storage"

	"github.com/rs/zerolog/log"
	"golang.org/x/net/publicsuffix"
	"golang.org/x/sync/singleflight"
)

const (
	HeaderCSRF      = "X-CSRF-Token"
	HeaderRequestID = "X-Request-ID"

	tokenPath = "/api/"
)

var ErrNoBaseURL = errors.New("gateway_base_url_required")

// StatusError is returned for any non-2xx response that survived the retry
// plan. Body holds the raw response so callers can surface business messages.
type StatusError struct {
	Status int
	Body   []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("request failed with status %d", e.Status)
}

// IsAuthFailure reports whether err is a 401 or 403 StatusError.
func IsAuthFailure(err error) bool {
	var se *StatusError
	if !errors.As(err, &se) {
		return false
	}
	return se.Status == http.StatusUnauthorized || se.Status == http.StatusForbidden
}

type TokenState int

const (
	NoToken TokenState = iota
	Fetching
	Ready
)

func (s TokenState) String() string {
	switch s {
	case Fetching:
		return "fetching"
	case Ready:
		return "ready"
	default:
		return "no_token"
	}
}

type Options struct {
	BaseURL   string
	Timeout   time.Duration
	Store     storage.Scope
	Transport http.RoundTripper
}

type Client struct {
	baseURL string
	http    *http.Client
	store   storage.Scope

	flight singleflight.Group

	mu       sync.Mutex
	fetching bool
}

func New(opts Options) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if base == "" {
		return nil, ErrNoBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.Store == nil {
		opts.Store = storage.NewSessionStore()
	}
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, err
	}
	return &Client{
		baseURL: base,
		http:    &http.Client{Timeout: opts.Timeout, Jar: jar, Transport: opts.Transport},
		store:   opts.Store,
	}, nil
}

func (c *Client) BaseURL() string { return c.baseURL }

func (c *Client) State() TokenState {
	c.mu.Lock()
	fetching := c.fetching
	c.mu.Unlock()
	if fetching {
		return Fetching
	}
	if c.cachedToken() != "" {
		return Ready
	}
	return NoToken
}

func (c *Client) cachedToken() string {
	token, _ := c.store.Get(storage.KeyCSRFToken)
	return token
}

// Invalidate drops the cached anti-forgery token.
func (c *Client) Invalidate() {
	c.store.Remove(storage.KeyCSRFToken)
}

// EnsureToken returns the cached token or acquires one. Concurrent callers
// share a single in-flight fetch. An empty result means acquisition failed.
func (c *Client) EnsureToken(ctx context.Context) string {
	if token := c.cachedToken(); token != "" {
		return token
	}
	if token := c.fetchToken(ctx); token != "" {
		return token
	}
	log.Warn().Msg("csrf_token_retry")
	return c.fetchToken(ctx)
}

func (c *Client) fetchToken(ctx context.Context) string {
	ch := c.flight.DoChan("csrf", func() (any, error) {
		c.mu.Lock()
		c.fetching = true
		c.mu.Unlock()
		defer func() {
			c.mu.Lock()
			c.fetching = false
			c.mu.Unlock()
		}()
		metricTokenFetchTotal.Add(1)
		// The fetch is shared, so one caller's cancellation must not fail the others.
		token, err := c.requestToken(context.WithoutCancel(ctx))
		if err != nil {
			metricTokenFetchErrors.Add(1)
			return "", err
		}
		c.store.Set(storage.KeyCSRFToken, token)
		log.Debug().Msg("csrf_token_refresh")
		return token, nil
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			log.Error().Err(res.Err).Msg("csrf_token_fetch_failed")
			return ""
		}
		return res.Val.(string)
	case <-ctx.Done():
		return ""
	}
}

type tokenResponse struct {
	CSRFToken string `json:"csrfToken"`
	Message   string `json:"message"`
	Status    string `json:"status"`
}

func (c *Client) requestToken(ctx context.Context) (string, error) {
	resp, err := c.send(ctx, Request{Method: http.MethodGet, Path: tokenPath}, "")
	if err != nil {
		return "", err
	}
	var body tokenResponse
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}
	if body.CSRFToken == "" {
		return "", errors.New("token response without csrfToken")
	}
	return body.CSRFToken, nil
}

type Request struct {
	Method string
	Path   string
	// Body is sent as JSON, or as query parameters for GET.
	Body    any
	Query   url.Values
	Headers map[string]string
	// SkipTokenCheck sends whatever token is cached without acquiring one.
	SkipTokenCheck bool
	Bearer         string
}

type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

func (r *Response) Decode(v any) error {
	if len(r.Body) == 0 {
		return errors.New("empty response body")
	}
	return json.Unmarshal(r.Body, v)
}

type attempt struct {
	// refresh clears the cached token and acquires a fresh one first.
	refresh   bool
	loginOnly bool
	// retryIf decides whether a failure of this attempt moves to the next one.
	retryIf func(error) bool
}

var retryPlan = []attempt{
	{retryIf: IsAuthFailure},
	{refresh: true, retryIf: func(err error) bool { return err != nil }},
	{refresh: true, loginOnly: true},
}

func isLoginPath(path string) bool {
	return strings.Contains(path, "/login")
}

// Do dispatches req against the base URL following the retry plan.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	metricRequestTotal.Add(1)
	var token string
	if req.SkipTokenCheck {
		token = c.cachedToken()
	} else {
		token = c.EnsureToken(ctx)
	}

	var lastErr error
	for i, step := range retryPlan {
		if step.loginOnly && !isLoginPath(req.Path) {
			break
		}
		if step.refresh {
			c.Invalidate()
			fresh := c.fetchToken(ctx)
			if fresh == "" {
				break
			}
			token = fresh
			metricRetryTotal.Add(1)
			log.Info().Str("path", req.Path).Int("attempt", i).Msg("request_retry_with_fresh_token")
		}
		resp, err := c.send(ctx, req, token)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if step.retryIf == nil || !step.retryIf(err) {
			break
		}
	}
	metricRequestErrors.Add(1)
	return nil, lastErr
}

func (c *Client) Get(ctx context.Context, path string, params any, bearer string) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodGet, Path: path, Body: params, Bearer: bearer})
}

func (c *Client) Post(ctx context.Context, path string, body any, bearer string) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodPost, Path: path, Body: body, Bearer: bearer})
}

func (c *Client) Put(ctx context.Context, path string, body any, bearer string) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodPut, Path: path, Body: body, Bearer: bearer})
}

func (c *Client) Patch(ctx context.Context, path string, body any, bearer string) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodPatch, Path: path, Body: body, Bearer: bearer})
}

func (c *Client) Delete(ctx context.Context, path string, body any, bearer string) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodDelete, Path: path, Body: body, Bearer: bearer})
}

func (c *Client) send(ctx context.Context, req Request, token string) (*Response, error) {
	method := strings.ToUpper(req.Method)
	if method == "" {
		method = http.MethodGet
	}
	query := url.Values{}
	for k, vs := range req.Query {
		for _, v := range vs {
			query.Add(k, v)
		}
	}
	var body io.Reader
	if req.Body != nil {
		if method == http.MethodGet {
			params, err := toQuery(req.Body)
			if err != nil {
				return nil, err
			}
			for k, vs := range params {
				for _, v := range vs {
					query.Add(k, v)
				}
			}
		} else {
			raw, err := json.Marshal(req.Body)
			if err != nil {
				return nil, err
			}
			body = bytes.NewReader(raw)
		}
	}
	target := c.baseURL + req.Path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set(HeaderRequestID, ids.New())
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}
	if token != "" {
		httpReq.Header.Set(HeaderCSRF, token)
	}
	if req.Bearer != "" {
		httpReq.Header.Set("Authorization", "Bearer "+req.Bearer)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, req.Path, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{Status: resp.StatusCode, Body: raw}
	}
	return &Response{Status: resp.StatusCode, Header: resp.Header, Body: raw}, nil
}

func toQuery(v any) (url.Values, error) {
	switch p := v.(type) {
	case url.Values:
		return p, nil
	case map[string]string:
		out := url.Values{}
		for k, val := range p {
			out.Set(k, val)
		}
		return out, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("query params must be an object: %w", err)
	}
	out := url.Values{}
	for k, val := range fields {
		if val == nil {
			continue
		}
		out.Set(k, fmt.Sprint(val))
	}
	return out, nil
}
