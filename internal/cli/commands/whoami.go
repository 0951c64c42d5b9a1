package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewWhoamiCmd creates the whoami command
func NewWhoamiCmd(rt *Runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		RunE: func(cmd *cobra.Command, args []string) error {
			return rt.withSession(cmd.Context(), cmd.ErrOrStderr(), func(conn *connection) error {
				user := conn.session.User()
				if !conn.session.IsAuthenticated() || user == nil {
					return fmt.Errorf("not logged in to %s\nRun 'assessly login' to authenticate", conn.server.Name())
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "%s (%s)\n", user.Name, user.Email)
				fmt.Fprintf(out, "  ID:     %s\n", user.ID)
				fmt.Fprintf(out, "  Role:   %s\n", user.Role)
				fmt.Fprintf(out, "  Server: %s\n", conn.server.URL)
				return nil
			})
		},
	}
}
