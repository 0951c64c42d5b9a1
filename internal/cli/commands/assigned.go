package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewAssignedCmd creates the assigned command
func NewAssignedCmd(rt *Runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "assigned",
		Short: "List the assessments you were invited to",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rt.withSession(cmd.Context(), cmd.ErrOrStderr(), func(conn *connection) error {
				assessments, err := conn.client.ListAssigned(cmd.Context())
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				if len(assessments) == 0 {
					fmt.Fprintln(out, "No assessments assigned to you.")
					return nil
				}

				printAssessments(out, assessments)
				return nil
			})
		},
	}
}
