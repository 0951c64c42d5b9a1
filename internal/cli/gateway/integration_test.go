package gateway_test

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/assessly/assessly/internal/apitest"
	"github.com/assessly/assessly/internal/cli/gateway"
	"github.com/assessly/assessly/internal/cli/session"
)

type assessment struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type stack struct {
	server    *apitest.Server
	session   *session.Manager
	gateway   *gateway.Gateway
	redirects *atomic.Int32
}

func newStack(t *testing.T) *stack {
	t.Helper()

	srv := apitest.New(t)
	srv.AddUser(t, "Grace", "grace@example.com", "password123", apitest.RoleEmployer)

	httpClient, err := gateway.NewHTTPClient(5*time.Second, false)
	require.NoError(t, err)

	redirects := &atomic.Int32{}
	sess := session.New(srv.URL, httpClient, session.WithRedirector(session.RedirectFunc(func(context.Context) {
		redirects.Add(1)
	})))

	_, err = sess.Login(context.Background(), "grace@example.com", "password123")
	require.NoError(t, err)

	return &stack{
		server:    srv,
		session:   sess,
		gateway:   gateway.New(srv.URL, httpClient, sess),
		redirects: redirects,
	}
}

func (s *stack) seed(t *testing.T, title string) {
	t.Helper()
	_, err := s.gateway.Call(context.Background(), "/api/assessments", gateway.Options{
		Method: http.MethodPost,
		Body:   map[string]any{"title": title, "language": "go"},
	})
	require.NoError(t, err)
}

func TestScenario_AuthenticatedCallWithoutRefresh(t *testing.T) {
	s := newStack(t)
	s.seed(t, "Go basics")

	s.session.CheckAuth(context.Background())
	require.True(t, s.session.IsAuthenticated())
	require.Equal(t, session.RoleEmployer, s.session.User().Role)

	got, err := gateway.CallInto[[]assessment](context.Background(), s.gateway, "/api/assessments", gateway.Options{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Go basics", got[0].Title)
	assert.Zero(t, s.server.Hits(http.MethodPost, session.PathRefresh))
}

func TestScenario_ExpiredCredentialsAreRefreshedAndRetried(t *testing.T) {
	s := newStack(t)
	s.seed(t, "Go basics")

	s.server.ExpireAccessTokens()
	s.session.CheckAuth(context.Background())
	require.True(t, s.session.IsAuthenticated())
	require.Equal(t, 1, s.server.Hits(http.MethodPost, session.PathRefresh))

	s.server.ExpireAccessTokens()
	got, err := gateway.CallInto[[]assessment](context.Background(), s.gateway, "/api/assessments", gateway.Options{})
	require.NoError(t, err)
	assert.Len(t, got, 1)

	assert.True(t, s.session.IsAuthenticated())
	assert.Equal(t, 2, s.server.Hits(http.MethodPost, session.PathRefresh))
	assert.Equal(t, 2, s.server.Hits(http.MethodGet, "/api/assessments"))
	assert.Zero(t, s.redirects.Load())
}

func TestScenario_RefreshRejectedRedirectsOnce(t *testing.T) {
	s := newStack(t)

	s.server.ExpireAccessTokens()
	s.server.RevokeRefreshTokens()

	_, err := s.gateway.Call(context.Background(), "/api/assessments", gateway.Options{})

	require.ErrorIs(t, err, gateway.ErrTokenRefreshFailed)
	assert.EqualValues(t, 1, s.redirects.Load())
	assert.False(t, s.session.IsAuthenticated())
	assert.Nil(t, s.session.User())
	assert.Equal(t, 1, s.server.Hits(http.MethodGet, "/api/assessments"))
	assert.Equal(t, 1, s.server.Hits(http.MethodPost, session.PathLogout))

	_, err = s.gateway.Call(context.Background(), "/api/assessments", gateway.Options{})
	require.ErrorIs(t, err, gateway.ErrAuthRequired)
	assert.Equal(t, 1, s.server.Hits(http.MethodGet, "/api/assessments"))
}

func TestScenario_StillUnauthorizedAfterRefresh(t *testing.T) {
	s := newStack(t)

	s.server.Script(http.MethodGet, "/api/assessments", http.StatusUnauthorized, http.StatusUnauthorized)

	_, err := s.gateway.Call(context.Background(), "/api/assessments", gateway.Options{})

	require.ErrorIs(t, err, gateway.ErrAuthenticationFailed)
	assert.Equal(t, 2, s.server.Hits(http.MethodGet, "/api/assessments"))
	assert.Equal(t, 1, s.server.Hits(http.MethodPost, session.PathRefresh))
	assert.EqualValues(t, 1, s.redirects.Load())
	assert.False(t, s.session.IsAuthenticated())
}

func TestScenario_ForbiddenIsSurfaced(t *testing.T) {
	srv := apitest.New(t)
	srv.AddUser(t, "Ada", "ada@example.com", "password123", apitest.RoleCandidate)

	httpClient, err := gateway.NewHTTPClient(5*time.Second, false)
	require.NoError(t, err)
	sess := session.New(srv.URL, httpClient)
	_, err = sess.Login(context.Background(), "ada@example.com", "password123")
	require.NoError(t, err)
	g := gateway.New(srv.URL, httpClient, sess)

	_, err = g.Call(context.Background(), "/api/assessments", gateway.Options{})

	assert.Equal(t, http.StatusForbidden, gateway.StatusCode(err))
	assert.True(t, sess.IsAuthenticated())
	assert.Zero(t, srv.Hits(http.MethodPost, session.PathRefresh))
}

func TestConcurrentUnauthorizedCallsShareOneRefresh(t *testing.T) {
	s := newStack(t)

	const callers = 10
	s.server.BeforeRefresh = func() {
		deadline := time.Now().Add(2 * time.Second)
		for s.server.Hits(http.MethodGet, "/api/assessments") < callers && time.Now().Before(deadline) {
			time.Sleep(5 * time.Millisecond)
		}
		time.Sleep(50 * time.Millisecond)
	}
	s.server.ExpireAccessTokens()

	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.gateway.Call(context.Background(), "/api/assessments", gateway.Options{})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, 1, s.server.Hits(http.MethodPost, session.PathRefresh))
	assert.Equal(t, 2*callers, s.server.Hits(http.MethodGet, "/api/assessments"))
	assert.True(t, s.session.IsAuthenticated())
}
