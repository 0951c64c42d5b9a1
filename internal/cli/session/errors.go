package session

import "errors"

var (
	ErrRefreshRejected    = errors.New("token refresh rejected")
	ErrRateLimited        = errors.New("rate limited")
	ErrInvalidCredentials = errors.New("invalid email or password")
)
