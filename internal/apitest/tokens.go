package apitest

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

// Claims represents the JWT claims of both cookies
type Claims struct {
	UserID     string `json:"user_id"`
	Email      string `json:"email"`
	Role       string `json:"role"`
	Type       string `json:"typ"`
	Generation int64  `json:"gen"`
	jwt.RegisteredClaims
}

type tokenIssuer struct {
	secret []byte
}

// issue creates a signed token of the given type for a user
func (i *tokenIssuer) issue(u *user, tokenType string, generation int64, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID:     u.ID,
		Email:      u.Email,
		Role:       u.Role,
		Type:       tokenType,
		Generation: generation,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now.Add(-time.Second)),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(i.secret)
}

// validate parses a token and checks its type
func (i *tokenIssuer) validate(tokenString, tokenType string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		// Validate signing method
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return i.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	if claims.Type != tokenType {
		return nil, fmt.Errorf("unexpected token type %q", claims.Type)
	}

	return claims, nil
}
