package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewLogoutCmd creates the logout command
func NewLogoutCmd(rt *Runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the session and remove stored credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogout(cmd, rt)
		},
	}
}

func runLogout(cmd *cobra.Command, rt *Runtime) error {
	conn, err := rt.connect(cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	conn.session.Logout(cmd.Context())

	// Logout redirects to login, which removes the stored credentials
	if err := rt.Store.DeleteCookies(conn.server.URL); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "✓ Logged out of %s\n", conn.server.Name())
	return nil
}
