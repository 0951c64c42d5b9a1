package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

// CookieStore defines the interface for credential storage operations
// This allows us to mock the keyring in tests
type CookieStore interface {
	SaveCookies(serverURL string, cookies []*http.Cookie) error
	LoadCookies(serverURL string) ([]*http.Cookie, error)
	DeleteCookies(serverURL string) error
}

// keyringStore implements CookieStore using the OS keyring
type keyringStore struct{}

var Default CookieStore = &keyringStore{}

func (k *keyringStore) SaveCookies(serverURL string, cookies []*http.Cookie) error {
	return SaveCookies(serverURL, cookies)
}

func (k *keyringStore) LoadCookies(serverURL string) ([]*http.Cookie, error) {
	return LoadCookies(serverURL)
}

func (k *keyringStore) DeleteCookies(serverURL string) error {
	return DeleteCookies(serverURL)
}

// Restore loads the stored cookies of serverURL into jar. Having nothing
// stored is not an error.
func Restore(store CookieStore, jar http.CookieJar, serverURL string) error {
	u, err := url.Parse(serverURL)
	if err != nil {
		return fmt.Errorf("invalid server URL: %w", err)
	}

	cookies, err := store.LoadCookies(serverURL)
	if err != nil {
		if errors.Is(err, ErrNotLoggedIn) {
			return nil
		}
		return err
	}

	for _, c := range cookies {
		scoped := *u
		scoped.Path = c.Path
		jar.SetCookies(&scoped, []*http.Cookie{c})
	}
	return nil
}

// Persist saves every cookie jar accepted, or deletes the stored entry when
// there are none
func Persist(store CookieStore, jar *Jar, serverURL string) error {
	cookies := jar.All()
	if len(cookies) == 0 {
		return store.DeleteCookies(serverURL)
	}
	return store.SaveCookies(serverURL, cookies)
}

// LoginRedirector is where a CLI user lands when the session is gone:
// stored credentials are dropped and the user is told to log in again
type LoginRedirector struct {
	Store     CookieStore
	ServerURL string
	Out       io.Writer
}

func (r *LoginRedirector) RedirectToLogin(ctx context.Context) {
	if err := r.Store.DeleteCookies(r.ServerURL); err != nil {
		fmt.Fprintf(r.Out, "Warning: failed to remove stored credentials: %v\n", err)
	}
	fmt.Fprintf(r.Out, "Your session has ended. Run 'assessly login' to sign in to %s.\n", r.ServerURL)
}
