package cli

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/assessly/assessly/internal/cli/commands"
	"github.com/assessly/assessly/internal/metrics"
)

func TestRootCommandTree(t *testing.T) {
	var dump bool
	root := newRootCmd(&commands.Runtime{Metrics: metrics.New()}, &dump)

	for _, path := range [][]string{
		{"init"},
		{"select-server"},
		{"login"},
		{"logout"},
		{"whoami"},
		{"refresh"},
		{"assessments", "ls"},
		{"assessments", "show"},
		{"assessments", "create"},
		{"assessments", "delete"},
		{"invitations", "ls"},
		{"invitations", "send"},
		{"assigned"},
		{"api"},
		{"version"},
	} {
		cmd, _, err := root.Find(path)
		require.NoError(t, err, path)
		assert.Equal(t, path[len(path)-1], cmd.Name())
	}
}

func TestVersionAndFlags(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("LOG_LEVEL", "error")

	rt := &commands.Runtime{Metrics: metrics.New()}
	var dump bool
	root := newRootCmd(rt, &dump)

	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version", "--server", "staging", "--metrics"})

	require.NoError(t, root.ExecuteContext(context.Background()))
	assert.Contains(t, out.String(), "assessly version dev")
	assert.Equal(t, "staging", rt.ServerAlias)
	assert.True(t, dump)
	require.NotNil(t, rt.Settings)
	assert.Equal(t, "error", rt.Settings.Logging.Level)
}
