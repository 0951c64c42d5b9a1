package commands

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/assessly/assessly/internal/cli/client"
)

// NewInvitationsCmd creates the invitations command and its subcommands
func NewInvitationsCmd(rt *Runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "invitations",
		Aliases: []string{"invitation", "inv"},
		Short:   "Invite candidates to assessments",
	}

	cmd.AddCommand(newInvitationsListCmd(rt))
	cmd.AddCommand(newInvitationsSendCmd(rt))

	return cmd
}

func newInvitationsListCmd(rt *Runtime) *cobra.Command {
	return &cobra.Command{
		Use:     "ls <assessment-id>",
		Aliases: []string{"list"},
		Short:   "List the invitations of an assessment",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rt.withSession(cmd.Context(), cmd.ErrOrStderr(), func(conn *connection) error {
				invitations, err := conn.client.ListInvitations(cmd.Context(), args[0])
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				if len(invitations) == 0 {
					fmt.Fprintln(out, "No invitations found.")
					fmt.Fprintf(out, "\nInvite a candidate with: assessly invitations send %s <email>\n", args[0])
					return nil
				}

				w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "CANDIDATE\tSTATUS\tSENT AT")
				fmt.Fprintln(w, "─────────\t──────\t───────")
				for _, inv := range invitations {
					fmt.Fprintf(w, "%s\t%s\t%s\n", inv.CandidateEmail, inv.Status, inv.CreatedAt.Format(time.RFC3339))
				}
				w.Flush()

				return nil
			})
		},
	}
}

func newInvitationsSendCmd(rt *Runtime) *cobra.Command {
	var message string

	cmd := &cobra.Command{
		Use:   "send <assessment-id> <candidate-email>",
		Short: "Invite a candidate to take an assessment",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rt.withSession(cmd.Context(), cmd.ErrOrStderr(), func(conn *connection) error {
				inv, err := conn.client.SendInvitation(cmd.Context(), args[0], client.SendInvitationRequest{
					CandidateEmail: args[1],
					Message:        message,
				})
				if err != nil {
					return err
				}

				fmt.Fprintf(cmd.OutOrStdout(), "✓ Invitation sent to %s (%s)\n", inv.CandidateEmail, inv.Status)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&message, "message", "m", "", "Personal message for the candidate")

	return cmd
}
