package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/assessly/assessly/internal/cli/auth"
	"github.com/assessly/assessly/internal/cli/commands"
	appconfig "github.com/assessly/assessly/internal/config"
	"github.com/assessly/assessly/internal/logger"
	"github.com/assessly/assessly/internal/metrics"
)

var version = "dev" // Will be set during build

// newRootCmd builds the command tree around rt
func newRootCmd(rt *commands.Runtime, dumpMetrics *bool) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "assessly",
		Short: "Assessly - command line client for the assessment platform",
		Long: `Assessly CLI - Manage assessments and candidate invitations from your terminal.

Sessions are kept in your OS keychain and refreshed automatically when they
expire.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			settings, err := appconfig.Load(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}

			logger.Init(settings.Logging.Level, settings.Logging.Format)

			rt.Settings = settings
			rt.Logger = logger.GetLogger()
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&rt.ServerAlias, "server", "", "Server alias or URL (overrides the selected server)")
	rootCmd.PersistentFlags().BoolVar(dumpMetrics, "metrics", false, "Print request metrics to stderr when the command finishes")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "assessly version %s\n", version)
		},
	})

	rootCmd.AddCommand(commands.NewInitCmd())
	rootCmd.AddCommand(commands.NewSelectServerCmd())
	rootCmd.AddCommand(commands.NewLoginCmd(rt))
	rootCmd.AddCommand(commands.NewLogoutCmd(rt))
	rootCmd.AddCommand(commands.NewWhoamiCmd(rt))
	rootCmd.AddCommand(commands.NewRefreshCmd(rt))
	rootCmd.AddCommand(commands.NewAssessmentsCmd(rt))
	rootCmd.AddCommand(commands.NewInvitationsCmd(rt))
	rootCmd.AddCommand(commands.NewAssignedCmd(rt))
	rootCmd.AddCommand(commands.NewAPICmd(rt))

	return rootCmd
}

// Execute runs the root command
func Execute(ctx context.Context) error {
	rt := &commands.Runtime{
		Logger:  logger.GetLogger(),
		Metrics: metrics.New(),
		Store:   auth.Default,
	}

	var dumpMetrics bool
	rootCmd := newRootCmd(rt, &dumpMetrics)

	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}

	if dumpMetrics {
		if werr := rt.Metrics.WriteText(os.Stderr); werr != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to write metrics: %v\n", werr)
		}
	}

	return err
}
