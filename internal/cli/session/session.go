// Package session holds the client-side authentication state of one platform
// server: who is logged in, and the operations that check, refresh and clear
// that knowledge. A Manager is safe for concurrent use.
package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/assessly/assessly/internal/metrics"
)

const (
	PathIsAuthenticated = "/api/users/is-authenticated"
	PathRefresh         = "/api/auth/refresh"
	PathLogout          = "/api/auth/logout"
	PathLogin           = "/api/auth/login"

	refreshKey   = "refresh"
	maxBodyBytes = 1 << 20
)

// Manager owns the session state of one server
type Manager struct {
	baseURL    string
	httpClient *http.Client
	logger     zerolog.Logger
	redirector Redirector
	metrics    *metrics.Metrics

	mu         sync.RWMutex
	state      State
	lastStatus int
	loading    int // CheckAuth and Login calls in flight

	listenersMu  sync.Mutex
	listeners    map[int]func(State)
	nextListener int

	refreshGroup singleflight.Group
}

// Option configures a Manager
type Option func(*Manager)

// WithLogger sets the logger
func WithLogger(logger zerolog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithRedirector sets what happens when the user must log in again
func WithRedirector(r Redirector) Option {
	return func(m *Manager) {
		m.redirector = r
	}
}

// WithMetrics sets the metrics sink
func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Manager) {
		m.metrics = mt
	}
}

// New creates an empty (unknown) session for the server at baseURL.
// httpClient must carry the cookie jar shared with the request gateway.
func New(baseURL string, httpClient *http.Client, opts ...Option) *Manager {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	m := &Manager{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		logger:     zerolog.Nop(),
		redirector: nopRedirector{},
		listeners:  make(map[int]func(State)),
	}
	for _, opt := range opts {
		opt(m)
	}

	m.logger = m.logger.With().Str("component", "session").Logger()
	return m
}

// State returns the current snapshot
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// IsAuthenticated reports whether a user is currently authenticated
func (m *Manager) IsAuthenticated() bool {
	return m.State().IsAuthenticated
}

// User returns the current user, or nil
func (m *Manager) User() *User {
	return m.State().User
}

// Subscribe registers fn to receive every new snapshot. The returned
// function removes the subscription.
func (m *Manager) Subscribe(fn func(State)) func() {
	m.listenersMu.Lock()
	defer m.listenersMu.Unlock()

	id := m.nextListener
	m.nextListener++
	m.listeners[id] = fn

	return func() {
		m.listenersMu.Lock()
		defer m.listenersMu.Unlock()
		delete(m.listeners, id)
	}
}

// RedirectToLogin sends the user to the login entry point without touching
// the session state
func (m *Manager) RedirectToLogin(ctx context.Context) {
	m.redirector.RedirectToLogin(ctx)
}

// CheckAuth asks the server who the current user is.
//
// 200 authenticates. 401 triggers exactly one refresh. 429 leaves the state
// untouched. Anything else, including transport failures, clears the session,
// except a transport failure right after a 429, which is also left alone.
func (m *Manager) CheckAuth(ctx context.Context) {
	m.beginLoading()
	defer m.endLoading()

	status, user, err := m.fetchIdentity(ctx, http.MethodGet, PathIsAuthenticated, nil)
	m.metrics.ObserveCheck(status)
	previous := m.recordStatus(status)

	switch {
	case status == 0:
		if previous == http.StatusTooManyRequests {
			m.logger.Warn().Err(err).Msg("Identity check failed after rate limiting, keeping session state")
			return
		}
		m.logger.Warn().Err(err).Msg("Identity check failed")
		m.clear()

	case status == http.StatusTooManyRequests:
		m.logger.Warn().Msg("Identity check rate limited, keeping session state")

	case status == http.StatusUnauthorized:
		if err := m.Refresh(ctx); err != nil {
			m.logger.Info().Err(err).Msg("Session could not be refreshed")
		}

	case isSuccess(status) && err == nil:
		m.authenticate(user)

	default:
		m.logger.Warn().Err(err).Int("status", status).Msg("Identity check rejected")
		m.clear()
	}
}

// RefreshToken exchanges the current credentials for new ones and reports
// whether that succeeded
func (m *Manager) RefreshToken(ctx context.Context) bool {
	return m.Refresh(ctx) == nil
}

// Refresh is RefreshToken with the failure cause. Concurrent callers share a
// single refresh request and its result. ErrRateLimited leaves the state
// untouched; every other failure clears it.
func (m *Manager) Refresh(ctx context.Context) error {
	// The shared request must not die with the first caller's context.
	ch := m.refreshGroup.DoChan(refreshKey, func() (any, error) {
		return nil, m.refresh(context.WithoutCancel(ctx))
	})

	select {
	case res := <-ch:
		if res.Shared {
			m.metrics.ObserveRefreshShared()
		}
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) refresh(ctx context.Context) error {
	status, user, err := m.fetchIdentity(ctx, http.MethodPost, PathRefresh, nil)

	switch {
	case status == http.StatusTooManyRequests:
		m.metrics.ObserveRefresh(metrics.RefreshRateLimited)
		m.logger.Warn().Msg("Token refresh rate limited, keeping session state")
		return fmt.Errorf("token refresh: %w", ErrRateLimited)

	case isSuccess(status) && err == nil:
		m.metrics.ObserveRefresh(metrics.RefreshSuccess)
		m.authenticate(user)
		m.logger.Debug().Str("user_id", user.ID).Msg("Token refreshed")
		return nil

	case status == 0:
		m.metrics.ObserveRefresh(metrics.RefreshError)
		m.clear()
		return fmt.Errorf("token refresh: %w", err)

	case err != nil:
		m.metrics.ObserveRefresh(metrics.RefreshError)
		m.clear()
		return fmt.Errorf("%w: %w", ErrRefreshRejected, err)

	default:
		m.metrics.ObserveRefresh(metrics.RefreshRejected)
		m.clear()
		return fmt.Errorf("%w (status %d)", ErrRefreshRejected, status)
	}
}

// Login authenticates with email and password. The server answers with the
// identity and sets the session cookies on the shared jar.
func (m *Manager) Login(ctx context.Context, email, password string) (*User, error) {
	m.beginLoading()
	defer m.endLoading()

	body, err := json.Marshal(map[string]string{
		"email":    email,
		"password": password,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	status, user, err := m.fetchIdentity(ctx, http.MethodPost, PathLogin, body)
	switch {
	case status == 0:
		return nil, err
	case status == http.StatusUnauthorized:
		m.clear()
		return nil, ErrInvalidCredentials
	case status == http.StatusTooManyRequests:
		return nil, ErrRateLimited
	case isSuccess(status) && err == nil:
		m.authenticate(user)
		m.logger.Info().Str("user_id", user.ID).Str("role", string(user.Role)).Msg("User logged in")
		return user, nil
	case err != nil:
		return nil, err
	default:
		return nil, fmt.Errorf("login failed (status %d)", status)
	}
}

// Logout tells the server to drop the session (best effort), clears the
// local state and redirects to login. It never fails.
func (m *Manager) Logout(ctx context.Context) {
	status, err := m.post(ctx, PathLogout)
	if err != nil {
		m.logger.Warn().Err(err).Msg("Logout request failed")
	} else if !isSuccess(status) {
		m.logger.Warn().Int("status", status).Msg("Logout request rejected")
	}

	m.clear()
	m.metrics.ObserveLogout()
	m.redirector.RedirectToLogin(ctx)
}

// fetchIdentity issues a request to an endpoint answering with an identity.
// The returned error is set for transport failures (status 0) and for
// malformed 2xx bodies.
func (m *Manager) fetchIdentity(ctx context.Context, method, path string, body []byte) (int, *User, error) {
	req, err := m.newRequest(ctx, method, path, body)
	if err != nil {
		return 0, nil, err
	}

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return resp.StatusCode, nil, nil
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("failed to read response: %w", err)
	}

	user, err := decodeUser(data)
	if err != nil {
		return resp.StatusCode, nil, err
	}

	return resp.StatusCode, user, nil
}

func (m *Manager) post(ctx context.Context, path string) (int, error) {
	req, err := m.newRequest(ctx, http.MethodPost, path, nil)
	if err != nil {
		return 0, err
	}

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))

	return resp.StatusCode, nil
}

func (m *Manager) newRequest(ctx context.Context, method, path string, body []byte) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, m.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func (m *Manager) authenticate(user *User) {
	m.update(func(s *State) {
		s.User = user
		s.IsAuthenticated = true
	})
}

func (m *Manager) clear() {
	m.update(func(s *State) {
		s.User = nil
		s.IsAuthenticated = false
	})
}

// recordStatus stores an observed status and returns the previous one.
// Transport failures (0) are not an observation.
func (m *Manager) recordStatus(status int) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	previous := m.lastStatus
	if status != 0 {
		m.lastStatus = status
	}
	return previous
}

// IsLoading stays set until the last overlapping operation finishes
func (m *Manager) beginLoading() {
	m.update(func(s *State) {
		m.loading++
		s.IsLoading = true
	})
}

func (m *Manager) endLoading() {
	m.update(func(s *State) {
		m.loading--
		s.IsLoading = m.loading > 0
	})
}

func (m *Manager) update(fn func(*State)) {
	m.mu.Lock()
	fn(&m.state)
	snapshot := m.state
	m.mu.Unlock()

	m.listenersMu.Lock()
	listeners := make([]func(State), 0, len(m.listeners))
	for _, l := range m.listeners {
		listeners = append(listeners, l)
	}
	m.listenersMu.Unlock()

	for _, l := range listeners {
		l(snapshot)
	}
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}
