package apitest

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	bearerPrefix = "Bearer "
	sessionKey   = "session"
)

var (
	ErrMissingCredentials = errors.New("missing credentials")
	ErrStaleToken         = errors.New("stale token")
)

func setSession(c *gin.Context, claims *Claims) {
	c.Set(sessionKey, claims)
}

// GetSession returns the claims of the authenticated request
func GetSession(c *gin.Context) (*Claims, bool) {
	session, exists := c.Get(sessionKey)
	if !exists {
		return nil, false
	}

	claims, ok := session.(*Claims)
	return claims, ok
}

// accessToken reads the access token from the cookie, falling back to a
// bearer header
func accessToken(c *gin.Context) (string, error) {
	if cookie, err := c.Cookie(AccessCookie); err == nil && cookie != "" {
		return cookie, nil
	}

	authHeader := c.GetHeader("Authorization")
	if token, ok := strings.CutPrefix(authHeader, bearerPrefix); ok && token != "" {
		return token, nil
	}

	return "", ErrMissingCredentials
}

// requireAuth validates the access token of the request
func (s *Server) requireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := accessToken(c)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Missing credentials"})
			return
		}

		claims, err := s.tokens.validate(token, tokenTypeAccess)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}

		if claims.Generation != s.accessGeneration.Load() {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": ErrStaleToken.Error()})
			return
		}

		setSession(c, claims)
		c.Next()
	}
}

// requireEmployer ensures the authenticated user is an employer
func requireEmployer() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, exists := GetSession(c)
		if !exists {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}

		if claims.Role != RoleEmployer {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Employer access required"})
			return
		}

		c.Next()
	}
}

// instrument counts hits and answers scripted statuses before any handler
func (s *Server) instrument() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.Request.Method + " " + c.Request.URL.Path

		s.mu.Lock()
		s.hits[key]++
		var scripted int
		if queue := s.scripts[key]; len(queue) > 0 {
			scripted = queue[0]
			s.scripts[key] = queue[1:]
		}
		s.mu.Unlock()

		if scripted != 0 {
			c.AbortWithStatusJSON(scripted, gin.H{"error": http.StatusText(scripted)})
			return
		}

		c.Next()
	}
}
