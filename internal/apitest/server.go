// Package apitest runs an in-memory fake of the assessment platform API for
// tests. Access and refresh credentials are JWT cookies; access tokens can be
// expired on demand and any endpoint can be scripted to fail.
package apitest

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/oklog/ulid/v2"
	"golang.org/x/crypto/bcrypt"
)

const (
	AccessCookie  = "access_token"
	RefreshCookie = "refresh_token"

	// RefreshCookiePath scopes the refresh token to the auth endpoints
	RefreshCookiePath = "/api/auth"

	RoleEmployer  = "employer"
	RoleCandidate = "candidate"
)

type user struct {
	ID           string
	Name         string
	Email        string
	Role         string
	PasswordHash []byte
}

// Server is the fake platform
type Server struct {
	*httptest.Server

	router *gin.Engine
	tokens *tokenIssuer

	accessTTL         time.Duration
	accessGeneration  atomic.Int64
	refreshGeneration atomic.Int64

	// BeforeRefresh, when set, runs at the start of every refresh request
	BeforeRefresh func()

	mu          sync.Mutex
	users       map[string]*user // by email
	assessments map[string]*Assessment
	invitations map[string][]*Invitation // by assessment ID
	hits        map[string]int
	scripts     map[string][]int
}

// Option configures the fake server
type Option func(*Server)

// WithAccessTTL sets how long access tokens stay valid
func WithAccessTTL(ttl time.Duration) Option {
	return func(s *Server) {
		s.accessTTL = ttl
	}
}

// New starts a fake server that is closed when the test ends
func New(t testing.TB, opts ...Option) *Server {
	t.Helper()

	gin.SetMode(gin.TestMode)

	s := &Server{
		tokens:      &tokenIssuer{secret: []byte(ulid.Make().String())},
		accessTTL:   time.Hour,
		users:       make(map[string]*user),
		assessments: make(map[string]*Assessment),
		invitations: make(map[string][]*Invitation),
		hits:        make(map[string]int),
		scripts:     make(map[string][]int),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.setupRouter()
	s.Server = httptest.NewServer(s.router)
	t.Cleanup(s.Close)

	return s
}

func (s *Server) setupRouter() {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(s.instrument())

	api := r.Group("/api")
	{
		api.POST("/auth/login", s.login)
		api.POST("/auth/refresh", s.refresh)
		api.POST("/auth/logout", s.logout)
	}

	authed := api.Group("")
	authed.Use(s.requireAuth())
	{
		authed.GET("/users/is-authenticated", s.isAuthenticated)
		authed.GET("/candidate/assessments", s.listAssigned)
		authed.GET("/assessments/:id", s.getAssessment)
	}

	employer := authed.Group("")
	employer.Use(requireEmployer())
	{
		employer.GET("/assessments", s.listAssessments)
		employer.POST("/assessments", s.createAssessment)
		employer.DELETE("/assessments/:id", s.deleteAssessment)
		employer.GET("/assessments/:id/invitations", s.listInvitations)
		employer.POST("/assessments/:id/invitations", s.createInvitation)
	}

	s.router = r
}

// AddUser registers an account
func (s *Server) AddUser(t testing.TB, name, email, password, role string) string {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	u := &user{
		ID:           ulid.Make().String(),
		Name:         name,
		Email:        email,
		Role:         role,
		PasswordHash: hash,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[email] = u
	return u.ID
}

// ExpireAccessTokens invalidates every access token issued so far
func (s *Server) ExpireAccessTokens() {
	s.accessGeneration.Add(1)
}

// RevokeRefreshTokens invalidates every refresh token issued so far
func (s *Server) RevokeRefreshTokens() {
	s.refreshGeneration.Add(1)
}

// Script makes the next requests to method+path answer with the given
// statuses, in order, before reaching the real handler
func (s *Server) Script(method, path string, statuses ...int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := method + " " + path
	s.scripts[key] = append(s.scripts[key], statuses...)
}

// Hits returns how many requests reached method+path
func (s *Server) Hits(method, path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[method+" "+path]
}

func (s *Server) setCredentialCookies(c *gin.Context, u *user) error {
	access, err := s.tokens.issue(u, tokenTypeAccess, s.accessGeneration.Load(), s.accessTTL)
	if err != nil {
		return err
	}

	refresh, err := s.tokens.issue(u, tokenTypeRefresh, s.refreshGeneration.Load(), 30*24*time.Hour)
	if err != nil {
		return err
	}

	http.SetCookie(c.Writer, &http.Cookie{Name: AccessCookie, Value: access, Path: "/", HttpOnly: true})
	http.SetCookie(c.Writer, &http.Cookie{Name: RefreshCookie, Value: refresh, Path: RefreshCookiePath, HttpOnly: true, MaxAge: 30 * 24 * 60 * 60})
	return nil
}

func clearCredentialCookies(c *gin.Context) {
	http.SetCookie(c.Writer, &http.Cookie{Name: AccessCookie, Value: "", Path: "/", MaxAge: -1})
	http.SetCookie(c.Writer, &http.Cookie{Name: RefreshCookie, Value: "", Path: RefreshCookiePath, MaxAge: -1})
}
