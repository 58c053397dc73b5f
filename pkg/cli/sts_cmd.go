package cli

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

func newWhoamiCmd(client *Client) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the identity behind the current credentials",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWhoami(cmd, client)
		},
	}
}

func runWhoami(cmd *cobra.Command, client *Client) error {
	var identity map[string]any
	if err := client.doJSON(http.MethodGet, "/sts/caller-identity", nil, nil, &identity); err != nil {
		return err
	}
	if getOutputFormat(cmd) == "json" {
		return PrintJSON(cmd.OutOrStdout(), identity)
	}
	PrintDetail(cmd.OutOrStdout(), identity)
	return nil
}

func newAssumeRoleCmd(client *Client) *cobra.Command {
	var (
		accountID     string
		duration      int
		sessionPolicy string
		export        bool
	)
	cmd := &cobra.Command{
		Use:   "assume-role <role-name> <session-name>",
		Short: "Exchange the current credentials for a role session",
		Long: `Requests temporary credentials for a role. The role's trust policy
decides whether the caller may assume it. A session policy, when given,
further restricts what the session can do.

Use --export to emit shell export lines for the temporary credentials:

  eval "$(iamctl assume-role deployer ci-run --export)"`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAssumeRole(cmd, client, args[0], args[1], accountID, duration, sessionPolicy, export)
		},
	}
	cmd.Flags().StringVar(&accountID, "role-account", "", "account owning the role (defaults to the caller's account)")
	cmd.Flags().IntVar(&duration, "duration", 0, "session duration in seconds")
	cmd.Flags().StringVar(&sessionPolicy, "session-policy", "", "session policy document (inline JSON, @file, or - for stdin)")
	cmd.Flags().BoolVar(&export, "export", false, "print shell export lines instead of the normal output")
	return cmd
}

func runAssumeRole(cmd *cobra.Command, client *Client, roleName, sessionName, accountID string, duration int, sessionPolicy string, export bool) error {
	policy, err := readDocument(cmd, sessionPolicy)
	if err != nil {
		return err
	}
	body := map[string]any{
		"roleName":    roleName,
		"sessionName": sessionName,
	}
	if accountID != "" {
		body["accountId"] = accountID
	}
	if duration > 0 {
		body["durationSeconds"] = duration
	}
	if policy != "" {
		body["sessionPolicy"] = policy
	}

	var creds map[string]any
	if err := client.doJSON(http.MethodPost, "/sts/assume-role", nil, body, &creds); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if export {
		fmt.Fprintf(out, "export IAMCORE_ACCESS_KEY_ID=%s\n", ExtractField(creds, "accessKeyId"))
		fmt.Fprintf(out, "export IAMCORE_SECRET_ACCESS_KEY=%s\n", ExtractField(creds, "secretAccessKey"))
		fmt.Fprintf(out, "export IAMCORE_SESSION_TOKEN=%s\n", ExtractField(creds, "sessionToken"))
		return nil
	}
	if getOutputFormat(cmd) == "json" {
		return PrintJSON(out, creds)
	}
	PrintDetail(out, creds)
	return nil
}

// readDocument resolves a policy-document argument. "-" reads stdin,
// "@path" reads a file, anything else passes through verbatim.
func readDocument(cmd *cobra.Command, value string) (string, error) {
	switch {
	case value == "":
		return "", nil
	case value == "-":
		raw, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("read document from stdin: %w", err)
		}
		return strings.TrimSpace(string(raw)), nil
	case strings.HasPrefix(value, "@"):
		raw, err := os.ReadFile(strings.TrimPrefix(value, "@"))
		if err != nil {
			return "", fmt.Errorf("read document file: %w", err)
		}
		return strings.TrimSpace(string(raw)), nil
	default:
		return value, nil
	}
}
