package apitest

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
)

// LoginRequest represents a login request
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// UserDetail represents user information returned in responses
type UserDetail struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

func detail(u *user) UserDetail {
	return UserDetail{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role}
}

func (s *Server) login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s.mu.Lock()
	u, ok := s.users[req.Email]
	s.mu.Unlock()

	if !ok || bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(req.Password)) != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
		return
	}

	if err := s.setCredentialCookies(c, u); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return
	}

	c.JSON(http.StatusOK, detail(u))
}

func (s *Server) refresh(c *gin.Context) {
	if s.BeforeRefresh != nil {
		s.BeforeRefresh()
	}

	token, err := c.Cookie(RefreshCookie)
	if err != nil || token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Missing refresh token"})
		return
	}

	claims, err := s.tokens.validate(token, tokenTypeRefresh)
	if err != nil || claims.Generation != s.refreshGeneration.Load() {
		clearCredentialCookies(c)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid refresh token"})
		return
	}

	s.mu.Lock()
	u, ok := s.users[claims.Email]
	s.mu.Unlock()
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not found"})
		return
	}

	if err := s.setCredentialCookies(c, u); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": detail(u)})
}

func (s *Server) logout(c *gin.Context) {
	clearCredentialCookies(c)
	c.Status(http.StatusNoContent)
}

func (s *Server) isAuthenticated(c *gin.Context) {
	claims, _ := GetSession(c)

	s.mu.Lock()
	u, ok := s.users[claims.Email]
	s.mu.Unlock()
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not found"})
		return
	}

	c.JSON(http.StatusOK, detail(u))
}
