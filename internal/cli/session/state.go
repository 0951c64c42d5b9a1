package session

import "context"

// State is an immutable snapshot of the session.
// IsAuthenticated is true iff User is set and the last check or refresh
// succeeded.
type State struct {
	User            *User
	IsAuthenticated bool
	IsLoading       bool
}

// Redirector sends the user to the login entry point
type Redirector interface {
	RedirectToLogin(ctx context.Context)
}

// RedirectFunc adapts a function to Redirector
type RedirectFunc func(ctx context.Context)

func (f RedirectFunc) RedirectToLogin(ctx context.Context) {
	f(ctx)
}

type nopRedirector struct{}

func (nopRedirector) RedirectToLogin(context.Context) {}
