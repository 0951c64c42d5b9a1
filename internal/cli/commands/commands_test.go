package commands

import (
	"bytes"
	"context"
	"net/http"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/sethvargo/go-envconfig"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"

	"github.com/assessly/assessly/internal/apitest"
	"github.com/assessly/assessly/internal/cli/auth"
	"github.com/assessly/assessly/internal/cli/config"
	"github.com/assessly/assessly/internal/cli/gateway"
	"github.com/assessly/assessly/internal/cli/session"
	appconfig "github.com/assessly/assessly/internal/config"
	"github.com/assessly/assessly/internal/metrics"
)

const password = "password123"

// setupTestEnvironment starts a fake platform, writes assessly.yaml pointing
// at it into a temp working directory and isolates the keyring and HOME
func setupTestEnvironment(t *testing.T) (*Runtime, *apitest.Server) {
	t.Helper()

	keyring.MockInit()
	t.Setenv("HOME", t.TempDir())

	srv := apitest.New(t)

	dir := t.TempDir()
	require.NoError(t, config.Save(filepath.Join(dir, config.ConfigFileName), config.DefaultConfig(srv.URL, "test")))
	t.Chdir(dir)

	settings, err := appconfig.LoadWith(context.Background(), envconfig.MapLookuper(map[string]string{}))
	require.NoError(t, err)

	return &Runtime{
		Settings: settings,
		Logger:   zerolog.Nop(),
		Metrics:  metrics.New(),
		Store:    auth.Default,
	}, srv
}

type result struct {
	out    string
	errOut string
	err    error
}

func execute(cmd *cobra.Command, args ...string) result {
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true

	err := cmd.ExecuteContext(context.Background())
	return result{out: out.String(), errOut: errOut.String(), err: err}
}

func login(t *testing.T, rt *Runtime, email string) {
	t.Helper()
	res := execute(NewLoginCmd(rt), "--email", email, "--password", password)
	require.NoError(t, res.err)
	require.Contains(t, res.out, "Login successful")
}

func storedCookies(t *testing.T, srv *apitest.Server) int {
	t.Helper()
	cookies, err := auth.LoadCookies(srv.URL)
	if err != nil {
		return 0
	}
	return len(cookies)
}

func TestLoginStoresCredentials(t *testing.T) {
	rt, srv := setupTestEnvironment(t)
	srv.AddUser(t, "Grace", "grace@example.com", password, apitest.RoleEmployer)

	login(t, rt, "grace@example.com")
	assert.Equal(t, 2, storedCookies(t, srv))

	stored, err := auth.LoadCookies(srv.URL)
	require.NoError(t, err)
	paths := map[string]string{}
	for _, c := range stored {
		paths[c.Name] = c.Path
	}
	assert.Equal(t, "/", paths[apitest.AccessCookie])
	assert.Equal(t, apitest.RefreshCookiePath, paths[apitest.RefreshCookie])

	res := execute(NewWhoamiCmd(rt))
	require.NoError(t, res.err)
	assert.Contains(t, res.out, "Grace (grace@example.com)")
	assert.Contains(t, res.out, "employer")
}

func TestLoginWithCredentialsFromEnvironment(t *testing.T) {
	rt, srv := setupTestEnvironment(t)
	srv.AddUser(t, "Grace", "grace@example.com", password, apitest.RoleEmployer)

	rt.Settings.Credentials.Email = "grace@example.com"
	rt.Settings.Credentials.Password = password

	res := execute(NewLoginCmd(rt))
	require.NoError(t, res.err)
	assert.Contains(t, res.out, "Login successful")
}

func TestLoginInvalidCredentials(t *testing.T) {
	rt, srv := setupTestEnvironment(t)
	srv.AddUser(t, "Grace", "grace@example.com", password, apitest.RoleEmployer)

	res := execute(NewLoginCmd(rt), "--email", "grace@example.com", "--password", "wrong")
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "invalid email or password")
	assert.Zero(t, storedCookies(t, srv))
}

func TestLoginRequiresEmail(t *testing.T) {
	rt, _ := setupTestEnvironment(t)

	res := execute(NewLoginCmd(rt))
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "email is required")
}

func TestWhoamiWithoutLogin(t *testing.T) {
	rt, _ := setupTestEnvironment(t)

	res := execute(NewWhoamiCmd(rt))
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "not logged in")
}

func TestAssessmentCommands(t *testing.T) {
	rt, srv := setupTestEnvironment(t)
	srv.AddUser(t, "Grace", "grace@example.com", password, apitest.RoleEmployer)
	login(t, rt, "grace@example.com")

	res := execute(NewAssessmentsCmd(rt), "ls")
	require.NoError(t, res.err)
	assert.Contains(t, res.out, "No assessments found")

	res = execute(NewAssessmentsCmd(rt), "create", "--title", "Backend fundamentals", "--language", "go", "--time-limit", "90")
	require.NoError(t, res.err)
	assert.Contains(t, res.out, "Assessment 'Backend fundamentals' created")

	res = execute(NewAssessmentsCmd(rt), "ls")
	require.NoError(t, res.err)
	assert.Contains(t, res.out, "Backend fundamentals")
	assert.Contains(t, res.out, "1h30m0s")

	res = execute(NewAPICmd(rt), "get", "/api/assessments")
	require.NoError(t, res.err)
	assert.Contains(t, res.out, `"title": "Backend fundamentals"`)

	res = execute(NewAssessmentsCmd(rt), "create", "--language", "go")
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "invalid assessment")
}

func TestInvitationAndAssignedCommands(t *testing.T) {
	rt, srv := setupTestEnvironment(t)
	srv.AddUser(t, "Grace", "grace@example.com", password, apitest.RoleEmployer)
	srv.AddUser(t, "Ada", "ada@example.com", password, apitest.RoleCandidate)

	login(t, rt, "grace@example.com")
	res := execute(NewAPICmd(rt), "POST", "api/assessments", "--data", `{"title":"SQL","language":"sql"}`)
	require.NoError(t, res.err)

	res = execute(NewAPICmd(rt), "GET", "/api/assessments")
	require.NoError(t, res.err)

	var id string
	for _, line := range bytes.Split([]byte(res.out), []byte("\n")) {
		if field := bytes.TrimSpace(line); bytes.HasPrefix(field, []byte(`"id": "`)) {
			id = string(bytes.Trim(bytes.TrimPrefix(field, []byte(`"id": `)), `",`))
		}
	}
	require.NotEmpty(t, id)

	res = execute(NewInvitationsCmd(rt), "send", id, "ada@example.com", "-m", "Good luck")
	require.NoError(t, res.err)
	assert.Contains(t, res.out, "Invitation sent to ada@example.com")

	res = execute(NewInvitationsCmd(rt), "ls", id)
	require.NoError(t, res.err)
	assert.Contains(t, res.out, "ada@example.com")
	assert.Contains(t, res.out, "pending")

	login(t, rt, "ada@example.com")
	res = execute(NewAssignedCmd(rt))
	require.NoError(t, res.err)
	assert.Contains(t, res.out, "SQL")

	res = execute(NewAssessmentsCmd(rt), "ls")
	require.Error(t, res.err)
	assert.Equal(t, http.StatusForbidden, gateway.StatusCode(res.err))
}

func TestExpiredSessionIsRefreshedAndSaved(t *testing.T) {
	rt, srv := setupTestEnvironment(t)
	srv.AddUser(t, "Grace", "grace@example.com", password, apitest.RoleEmployer)
	login(t, rt, "grace@example.com")

	before, err := auth.LoadCookies(srv.URL)
	require.NoError(t, err)

	// The refresh cookie is scoped to the auth endpoints and has to survive
	// between invocations for this to work
	srv.ExpireAccessTokens()

	res := execute(NewAssessmentsCmd(rt), "ls")
	require.NoError(t, res.err)
	assert.Equal(t, 1, srv.Hits(http.MethodPost, session.PathRefresh))

	after, err := auth.LoadCookies(srv.URL)
	require.NoError(t, err)
	assert.NotEqual(t, before, after)

	// The refreshed credentials are used by the next invocation
	res = execute(NewAssessmentsCmd(rt), "ls")
	require.NoError(t, res.err)
	assert.Equal(t, 1, srv.Hits(http.MethodPost, session.PathRefresh))
}

func TestRevokedSessionSendsUserToLogin(t *testing.T) {
	rt, srv := setupTestEnvironment(t)
	srv.AddUser(t, "Grace", "grace@example.com", password, apitest.RoleEmployer)
	login(t, rt, "grace@example.com")

	srv.ExpireAccessTokens()
	srv.RevokeRefreshTokens()

	res := execute(NewAssessmentsCmd(rt), "ls")
	require.ErrorIs(t, res.err, gateway.ErrAuthRequired)
	assert.Contains(t, res.errOut, "assessly login")
	assert.Zero(t, storedCookies(t, srv))
	assert.Zero(t, srv.Hits(http.MethodGet, "/api/assessments"))
}

func TestRefreshCommand(t *testing.T) {
	rt, srv := setupTestEnvironment(t)
	srv.AddUser(t, "Grace", "grace@example.com", password, apitest.RoleEmployer)

	res := execute(NewRefreshCmd(rt))
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "not logged in")

	login(t, rt, "grace@example.com")

	res = execute(NewRefreshCmd(rt))
	require.NoError(t, res.err)
	assert.Contains(t, res.out, "Session refreshed for grace@example.com")

	srv.RevokeRefreshTokens()

	res = execute(NewRefreshCmd(rt))
	require.ErrorIs(t, res.err, session.ErrRefreshRejected)
	assert.Zero(t, storedCookies(t, srv))
}

func TestLogoutCommand(t *testing.T) {
	rt, srv := setupTestEnvironment(t)
	srv.AddUser(t, "Grace", "grace@example.com", password, apitest.RoleEmployer)
	login(t, rt, "grace@example.com")

	res := execute(NewLogoutCmd(rt))
	require.NoError(t, res.err)
	assert.Contains(t, res.out, "Logged out of test")
	assert.Zero(t, storedCookies(t, srv))
	assert.Equal(t, 1, srv.Hits(http.MethodPost, session.PathLogout))

	res = execute(NewWhoamiCmd(rt))
	require.Error(t, res.err)
}

func TestInitAndSelectServer(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	dir := t.TempDir()
	t.Chdir(dir)

	res := execute(NewInitCmd(), "assess.example.com")
	require.NoError(t, res.err)
	assert.Contains(t, res.out, "Created ./assessly.yaml")

	res = execute(NewInitCmd(), "https://staging.example.com", "--alias", "staging")
	require.NoError(t, res.err)
	assert.Contains(t, res.out, "Added server https://staging.example.com (staging)")

	res = execute(NewInitCmd(), "https://assess.example.com/")
	require.NoError(t, res.err)
	assert.Contains(t, res.out, "already exists")

	cfg, err := config.Load(filepath.Join(dir, config.ConfigFileName))
	require.NoError(t, err)
	require.Len(t, cfg.Servers, 2)
	assert.Equal(t, "production", cfg.Servers[0].Alias)
	assert.Equal(t, "https://assess.example.com", cfg.Servers[0].URL)

	res = execute(NewSelectServerCmd(), "staging")
	require.NoError(t, res.err)
	assert.Contains(t, res.out, "Selected server: staging (https://staging.example.com)")

	res = execute(NewSelectServerCmd(), "unknown")
	require.Error(t, res.err)
}

func TestAPICommandRejectsBadInput(t *testing.T) {
	rt, _ := setupTestEnvironment(t)

	res := execute(NewAPICmd(rt), "POST", "/api/assessments", "--data", "{not json")
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "not valid JSON")

	res = execute(NewAPICmd(rt), "GET", "/api/assessments", "-H", "no-colon")
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "invalid header")
}
