package commands

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/assessly/assessly/internal/cli/session"
)

// NewLoginCmd creates the login command
func NewLoginCmd(rt *Runtime) *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Authenticate with an assessment platform server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogin(cmd, rt, email, password)
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Email address (or set ASSESSLY_EMAIL)")
	cmd.Flags().StringVar(&password, "password", "", "Password (or set ASSESSLY_PASSWORD, will prompt if not provided)")

	return cmd
}

func runLogin(cmd *cobra.Command, rt *Runtime, email, password string) error {
	out := cmd.OutOrStdout()

	// Environment variables are useful for CI/CD
	if email == "" {
		email = rt.Settings.Credentials.Email
	}
	if password == "" {
		password = rt.Settings.Credentials.Password
	}

	if email == "" {
		return fmt.Errorf("email is required (use --email flag or ASSESSLY_EMAIL env var)")
	}

	conn, err := rt.connect(cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	if password == "" {
		password, err = promptPassword(cmd)
		if err != nil {
			return err
		}
	}

	fmt.Fprintf(out, "Logging in to %s (%s)...\n", conn.server.Name(), conn.server.URL)

	user, err := conn.session.Login(cmd.Context(), email, password)
	if err != nil {
		if errors.Is(err, session.ErrInvalidCredentials) {
			return fmt.Errorf("login failed: invalid email or password")
		}
		return fmt.Errorf("login failed: %w", err)
	}

	if err := conn.close(); err != nil {
		return fmt.Errorf("failed to save credentials: %w", err)
	}

	fmt.Fprintln(out, "✓ Login successful!")
	fmt.Fprintf(out, "  User: %s (%s)\n", user.Name, user.Email)
	fmt.Fprintf(out, "  Role: %s\n", user.Role)

	return nil
}

func promptPassword(cmd *cobra.Command) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("password is required in non-interactive mode (use --password flag or ASSESSLY_PASSWORD env var)")
	}

	fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
	bytePassword, err := term.ReadPassword(fd)
	fmt.Fprintln(cmd.ErrOrStderr())
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}

	return string(bytePassword), nil
}
