package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

// Build metadata, set through -ldflags at release time.
var (
	version = "dev"
	commit  = "none"
)

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		output, _ := rootCmd.PersistentFlags().GetString("output")
		if output == "json" {
			envelope := map[string]any{"error": err.Error()}
			var apiErr *APIError
			if errors.As(err, &apiErr) {
				envelope["http_status"] = apiErr.HTTPStatus
				if apiErr.Code != "" {
					envelope["code"] = apiErr.Code
				}
			}
			_ = PrintJSON(os.Stdout, envelope)
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		return 1
	}
	return 0
}

func newRootCmd() *cobra.Command {
	var (
		host         string
		account      string
		accessKeyID  string
		secretKey    string
		sessionToken string
		output       string
		profileName  string
	)

	client := NewClient("http://localhost:8080")

	rootCmd := &cobra.Command{
		Use:           "iamctl",
		Short:         "Manage accounts, identities, policies, and credentials",
		Long: `iamctl talks to an IAM service over its HTTP API.

Credentials and the endpoint resolve in order: command-line flag,
environment variable (IAMCORE_HOST, IAMCORE_ACCOUNT_ID,
IAMCORE_ACCESS_KEY_ID, IAMCORE_SECRET_ACCESS_KEY,
IAMCORE_SESSION_TOKEN, IAMCORE_OUTPUT), the active config profile,
then the built-in default. Run "iamctl configure" to set up a profile.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := LoadUserConfig()
			if err != nil {
				return err
			}
			p := cfg.ActiveProfile(profileName)

			resolve := func(flag string, target *string, envVar, profileVal string) {
				if cmd.Flags().Changed(flag) {
					return
				}
				if v := os.Getenv(envVar); v != "" {
					*target = v
					return
				}
				if profileVal != "" {
					*target = profileVal
				}
			}
			resolve("host", &host, "IAMCORE_HOST", p.Host)
			resolve("account", &account, "IAMCORE_ACCOUNT_ID", p.AccountID)
			resolve("access-key-id", &accessKeyID, "IAMCORE_ACCESS_KEY_ID", p.AccessKeyID)
			resolve("secret-access-key", &secretKey, "IAMCORE_SECRET_ACCESS_KEY", p.SecretAccessKey)
			resolve("session-token", &sessionToken, "IAMCORE_SESSION_TOKEN", p.SessionToken)
			resolve("output", &output, "IAMCORE_OUTPUT", p.Output)

			if output != "table" && output != "json" {
				return fmt.Errorf("invalid output format %q (expected table or json)", output)
			}

			client.BaseURL = strings.TrimRight(host, "/")
			client.AccountID = account
			client.AccessKeyID = accessKeyID
			client.SecretAccessKey = secretKey
			client.SessionToken = sessionToken
			return nil
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&host, "host", "http://localhost:8080", "API base URL")
	flags.StringVar(&account, "account", "", "account id for account-scoped commands")
	flags.StringVar(&accessKeyID, "access-key-id", "", "access key id")
	flags.StringVar(&secretKey, "secret-access-key", "", "secret access key")
	flags.StringVar(&sessionToken, "session-token", "", "session token for temporary credentials")
	flags.StringVarP(&output, "output", "o", "table", "output format: table or json")
	flags.StringVarP(&profileName, "profile", "p", "", "config profile to use")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigureCmd())
	rootCmd.AddCommand(newWhoamiCmd(client))
	rootCmd.AddCommand(newAssumeRoleCmd(client))
	rootCmd.AddCommand(newAccountCmd(client))
	rootCmd.AddCommand(newLimitsCmd(client))
	rootCmd.AddCommand(newUserCmd(client))
	rootCmd.AddCommand(newAccessKeyCmd(client))
	rootCmd.AddCommand(newLoginProfileCmd(client))
	rootCmd.AddCommand(newServiceCredentialCmd(client))
	rootCmd.AddCommand(newSSHKeyCmd(client))
	rootCmd.AddCommand(newGroupCmd(client))
	rootCmd.AddCommand(newRoleCmd(client))
	rootCmd.AddCommand(newPolicyCmd(client))
	rootCmd.AddCommand(newCommandsCmd())
	rootCmd.AddCommand(newCompletionCmd(rootCmd))

	return rootCmd
}

// getOutputFormat reads the resolved output format from the root flags.
func getOutputFormat(cmd *cobra.Command) string {
	output, err := cmd.Root().PersistentFlags().GetString("output")
	if err != nil {
		return "table"
	}
	return output
}

// requireAccount returns the account id in scope, erroring when none was
// supplied through any channel.
func requireAccount(c *Client) (string, error) {
	if c.AccountID == "" {
		return "", errors.New("an account id is required: pass --account, set IAMCORE_ACCOUNT_ID, or configure a profile")
	}
	return c.AccountID, nil
}

func newCompletionCmd(rootCmd *cobra.Command) *cobra.Command {
	return &cobra.Command{
		Use:       "completion [bash|zsh|fish|powershell]",
		Short:     "Generate shell completion scripts",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"bash", "zsh", "fish", "powershell"},
		RunE: func(cmd *cobra.Command, args []string) error {
			switch args[0] {
			case "bash":
				return rootCmd.GenBashCompletion(os.Stdout)
			case "zsh":
				return rootCmd.GenZshCompletion(os.Stdout)
			case "fish":
				return rootCmd.GenFishCompletion(os.Stdout, true)
			case "powershell":
				return rootCmd.GenPowerShellCompletionWithDesc(os.Stdout)
			}
			return nil
		},
	}
}
