package commands

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/spf13/cobra"

	"github.com/assessly/assessly/internal/cli/gateway"
)

// NewAPICmd creates the api command
func NewAPICmd(rt *Runtime) *cobra.Command {
	var data string
	var headers []string

	cmd := &cobra.Command{
		Use:   "api <method> <path>",
		Short: "Make an authenticated request to the platform API",
		Long: `Make an authenticated request to the platform API and print the JSON response.

Examples:
  $ assessly api GET /api/assessments
  $ assessly api POST /api/assessments --data '{"title":"Go","language":"go"}'`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			method := strings.ToUpper(args[0])
			path := args[1]
			if !strings.HasPrefix(path, "/") {
				path = "/" + path
			}

			opts := gateway.Options{
				Method: method,
				Header: http.Header{},
			}

			if data != "" {
				if !json.Valid([]byte(data)) {
					return fmt.Errorf("--data is not valid JSON")
				}
				opts.Body = json.RawMessage(data)
			}

			for _, h := range headers {
				key, value, ok := strings.Cut(h, ":")
				if !ok {
					return fmt.Errorf("invalid header '%s', expected 'Key: value'", h)
				}
				opts.Header.Add(strings.TrimSpace(key), strings.TrimSpace(value))
			}

			return rt.withSession(cmd.Context(), cmd.ErrOrStderr(), func(conn *connection) error {
				raw, err := conn.gateway.Call(cmd.Context(), path, opts)
				if err != nil {
					return err
				}

				if raw == nil {
					return nil
				}

				var pretty bytes.Buffer
				if err := json.Indent(&pretty, raw, "", "  "); err != nil {
					return fmt.Errorf("failed to format response: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), pretty.String())
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&data, "data", "d", "", "JSON request body")
	cmd.Flags().StringArrayVarP(&headers, "header", "H", nil, "Additional header 'Key: value' (repeatable)")

	return cmd
}
