package commands

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/assessly/assessly/internal/cli/auth"
	"github.com/assessly/assessly/internal/cli/client"
	"github.com/assessly/assessly/internal/cli/config"
	"github.com/assessly/assessly/internal/cli/gateway"
	"github.com/assessly/assessly/internal/cli/serverselect"
	"github.com/assessly/assessly/internal/cli/session"
	appconfig "github.com/assessly/assessly/internal/config"
	"github.com/assessly/assessly/internal/metrics"
)

// Runtime carries what every command needs. Settings is filled in before
// any command runs.
type Runtime struct {
	Settings    *appconfig.Config
	Logger      zerolog.Logger
	Metrics     *metrics.Metrics
	Store       auth.CookieStore
	ServerAlias string
}

// getSelectedServer loads the project config and returns the selected server.
// If you need the config object itself, call config.LoadFromCurrentDir() separately.
func (rt *Runtime) getSelectedServer() (*config.Server, error) {
	cfg, err := config.LoadFromCurrentDir()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w\nRun 'assessly init <url>' to create a configuration file", err)
	}

	server, err := serverselect.ResolveServer(cfg, rt.ServerAlias)
	if err != nil {
		return nil, err
	}

	if server.URL == "" {
		return nil, fmt.Errorf("server URL is empty. Please edit %s and add a valid URL", config.ConfigFileName)
	}

	return server, nil
}

// connection is one server's HTTP client, session and gateway, sharing a
// cookie jar restored from the keyring
type connection struct {
	server     *config.Server
	httpClient *http.Client
	jar        *auth.Jar
	store      auth.CookieStore
	session    *session.Manager
	gateway    *gateway.Gateway
	client     *client.Client

	// set once the user was sent back to login; stored credentials are gone
	redirected bool
}

// connect builds a connection to the selected server. Login prompts go to errOut.
func (rt *Runtime) connect(errOut io.Writer) (*connection, error) {
	server, err := rt.getSelectedServer()
	if err != nil {
		return nil, err
	}

	httpClient, err := gateway.NewHTTPClient(rt.Settings.HTTP.Timeout, rt.Settings.HTTP.InsecureTLS)
	if err != nil {
		return nil, err
	}

	jar, err := auth.NewJar()
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}
	httpClient.Jar = jar

	if err := auth.Restore(rt.Store, jar, server.URL); err != nil {
		return nil, fmt.Errorf("failed to load stored credentials: %w", err)
	}

	c := &connection{
		server:     server,
		httpClient: httpClient,
		jar:        jar,
		store:      rt.Store,
	}

	login := &auth.LoginRedirector{Store: rt.Store, ServerURL: server.URL, Out: errOut}
	redirector := session.RedirectFunc(func(ctx context.Context) {
		c.redirected = true
		login.RedirectToLogin(ctx)
	})

	logger := rt.Logger.With().Str("server", server.URL).Logger()

	c.session = session.New(server.URL, httpClient,
		session.WithLogger(logger),
		session.WithRedirector(redirector),
		session.WithMetrics(rt.Metrics),
	)
	c.gateway = gateway.New(server.URL, httpClient, c.session,
		gateway.WithLogger(logger),
		gateway.WithMetrics(rt.Metrics),
	)
	c.client = client.New(c.gateway)

	return c, nil
}

// resume re-establishes the stored session, if there is one
func (c *connection) resume(ctx context.Context) {
	if c.hasCookies() {
		c.session.CheckAuth(ctx)
	}
}

func (c *connection) hasCookies() bool {
	return len(c.jar.All()) > 0
}

// close saves the credentials the server handed out during the command
func (c *connection) close() error {
	if c.redirected {
		return nil
	}
	return auth.Persist(c.store, c.jar, c.server.URL)
}

// withSession resumes the stored session, runs fn and saves the credentials
// afterwards, even when fn fails
func (rt *Runtime) withSession(ctx context.Context, errOut io.Writer, fn func(*connection) error) error {
	conn, err := rt.connect(errOut)
	if err != nil {
		return err
	}

	conn.resume(ctx)

	runErr := fn(conn)
	if err := conn.close(); err != nil {
		rt.Logger.Warn().Err(err).Msg("Failed to save credentials")
		if runErr == nil {
			return fmt.Errorf("failed to save credentials: %w", err)
		}
	}

	return runErr
}
