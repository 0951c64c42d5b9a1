package commands

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/assessly/assessly/internal/cli/client"
)

// NewAssessmentsCmd creates the assessments command and its subcommands
func NewAssessmentsCmd(rt *Runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "assessments",
		Aliases: []string{"assessment", "a"},
		Short:   "Manage your assessments",
	}

	cmd.AddCommand(newAssessmentsListCmd(rt))
	cmd.AddCommand(newAssessmentsShowCmd(rt))
	cmd.AddCommand(newAssessmentsCreateCmd(rt))
	cmd.AddCommand(newAssessmentsDeleteCmd(rt))

	return cmd
}

func newAssessmentsListCmd(rt *Runtime) *cobra.Command {
	return &cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List all assessments",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rt.withSession(cmd.Context(), cmd.ErrOrStderr(), func(conn *connection) error {
				assessments, err := conn.client.ListAssessments(cmd.Context())
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				if len(assessments) == 0 {
					fmt.Fprintln(out, "No assessments found.")
					fmt.Fprintln(out, "\nCreate one with: assessly assessments create --title <title> --language <language>")
					return nil
				}

				fmt.Fprintf(out, "Assessments on %s:\n\n", conn.server.Name())
				printAssessments(out, assessments)
				return nil
			})
		},
	}
}

func newAssessmentsShowCmd(rt *Runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "show <assessment-id>",
		Short: "Show an assessment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rt.withSession(cmd.Context(), cmd.ErrOrStderr(), func(conn *connection) error {
				a, err := conn.client.GetAssessment(cmd.Context(), args[0])
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "%s\n", a.Title)
				fmt.Fprintf(out, "  ID:         %s\n", a.ID)
				fmt.Fprintf(out, "  Language:   %s\n", a.Language)
				fmt.Fprintf(out, "  Time limit: %s\n", formatTimeLimit(a.TimeLimitMinutes))
				fmt.Fprintf(out, "  Created:    %s\n", a.CreatedAt.Format(time.RFC3339))
				if a.Description != "" {
					fmt.Fprintf(out, "\n%s\n", a.Description)
				}
				return nil
			})
		},
	}
}

func newAssessmentsCreateCmd(rt *Runtime) *cobra.Command {
	var req client.CreateAssessmentRequest

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new assessment",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rt.withSession(cmd.Context(), cmd.ErrOrStderr(), func(conn *connection) error {
				a, err := conn.client.CreateAssessment(cmd.Context(), req)
				if err != nil {
					return err
				}

				fmt.Fprintf(cmd.OutOrStdout(), "✓ Assessment '%s' created (%s)\n", a.Title, a.ID)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&req.Title, "title", "", "Assessment title")
	cmd.Flags().StringVar(&req.Description, "description", "", "Assessment description")
	cmd.Flags().StringVar(&req.Language, "language", "", "Programming language of the assessment")
	cmd.Flags().IntVar(&req.TimeLimitMinutes, "time-limit", 0, "Time limit in minutes (0 for none)")

	return cmd
}

func newAssessmentsDeleteCmd(rt *Runtime) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <assessment-id>",
		Aliases: []string{"rm"},
		Short:   "Delete an assessment and its invitations",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return rt.withSession(cmd.Context(), cmd.ErrOrStderr(), func(conn *connection) error {
				if err := conn.client.DeleteAssessment(cmd.Context(), args[0]); err != nil {
					return err
				}

				fmt.Fprintf(cmd.OutOrStdout(), "✓ Assessment %s deleted\n", args[0])
				return nil
			})
		},
	}
}

func printAssessments(out io.Writer, assessments []client.Assessment) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tLANGUAGE\tTIME LIMIT\tCREATED AT")
	fmt.Fprintln(w, "──\t─────\t────────\t──────────\t──────────")

	for _, a := range assessments {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			a.ID,
			a.Title,
			a.Language,
			formatTimeLimit(a.TimeLimitMinutes),
			a.CreatedAt.Format(time.RFC3339),
		)
	}

	w.Flush()
}

func formatTimeLimit(minutes int) string {
	if minutes <= 0 {
		return "none"
	}
	return (time.Duration(minutes) * time.Minute).String()
}
