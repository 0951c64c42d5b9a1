package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/assessly/assessly/internal/cli/session"
)

// NewRefreshCmd creates the refresh command
func NewRefreshCmd(rt *Runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Exchange the stored credentials for fresh ones",
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := rt.connect(cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			if !conn.hasCookies() {
				return fmt.Errorf("not logged in to %s\nRun 'assessly login' to authenticate", conn.server.Name())
			}

			refreshErr := conn.session.Refresh(cmd.Context())
			if errors.Is(refreshErr, session.ErrRefreshRejected) {
				if err := rt.Store.DeleteCookies(conn.server.URL); err != nil {
					return err
				}
			} else if err := conn.close(); err != nil {
				return fmt.Errorf("failed to save credentials: %w", err)
			}
			if refreshErr != nil {
				return fmt.Errorf("failed to refresh session: %w\nRun 'assessly login' to authenticate", refreshErr)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "✓ Session refreshed for %s\n", conn.session.User().Email)
			return nil
		},
	}
}
