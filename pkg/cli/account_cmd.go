package cli

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/spf13/cobra"
)

func newAccountCmd(client *Client) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Manage accounts, aliases, and account limits",
	}
	cmd.AddCommand(newAccountCreateCmd(client))
	cmd.AddCommand(newAccountListCmd(client))
	cmd.AddCommand(newAccountGetCmd(client))
	cmd.AddCommand(newAccountSetAliasCmd(client))
	cmd.AddCommand(newAccountDeleteAliasCmd(client))
	cmd.AddCommand(newAccountGetLimitCmd(client))
	cmd.AddCommand(newAccountSetLimitCmd(client))
	return cmd
}

func newAccountCreateCmd(client *Client) *cobra.Command {
	var alias string
	cmd := &cobra.Command{
		Use:   "create <email>",
		Short: "Create an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body := map[string]any{"email": args[0]}
			if alias != "" {
				body["alias"] = alias
			}
			var acct map[string]any
			if err := client.doJSON(http.MethodPost, "/accounts", nil, body, &acct); err != nil {
				return err
			}
			return printObject(cmd, acct)
		},
	}
	cmd.Flags().StringVar(&alias, "alias", "", "account alias")
	return cmd
}

func newAccountListCmd(client *Client) *cobra.Command {
	var page pageFlags
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var list listPayload
			if err := client.doJSON(http.MethodGet, "/accounts", page.query(), nil, &list); err != nil {
				return err
			}
			return printList(cmd, list, []string{"accountId", "alias", "email", "active", "createdAt"})
		},
	}
	page.register(cmd)
	return cmd
}

func newAccountGetCmd(client *Client) *cobra.Command {
	return &cobra.Command{
		Use:   "get [account-id]",
		Short: "Show one account",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			accountID, err := accountArg(client, args)
			if err != nil {
				return err
			}
			var acct map[string]any
			if err := client.doJSON(http.MethodGet, "/accounts/"+accountID, nil, nil, &acct); err != nil {
				return err
			}
			return printObject(cmd, acct)
		},
	}
}

func newAccountSetAliasCmd(client *Client) *cobra.Command {
	return &cobra.Command{
		Use:   "set-alias <alias>",
		Short: "Set the account alias",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			accountID, err := requireAccount(client)
			if err != nil {
				return err
			}
			var acct map[string]any
			err = client.doJSON(http.MethodPut, "/accounts/"+accountID+"/alias", nil, map[string]any{"alias": args[0]}, &acct)
			if err != nil {
				return err
			}
			return printObject(cmd, acct)
		},
	}
}

func newAccountDeleteAliasCmd(client *Client) *cobra.Command {
	return &cobra.Command{
		Use:   "delete-alias",
		Short: "Remove the account alias",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			accountID, err := requireAccount(client)
			if err != nil {
				return err
			}
			if err := client.doJSON(http.MethodDelete, "/accounts/"+accountID+"/alias", nil, nil, nil); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Alias removed.")
			return nil
		},
	}
}

func newAccountGetLimitCmd(client *Client) *cobra.Command {
	var region string
	cmd := &cobra.Command{
		Use:   "get-limit <limit-name>",
		Short: "Show the effective value of one account limit",
		Long: `Limits are named service/name, for example iam/max_access_keys_per_user.
The bare name works when it is unambiguous.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			accountID, err := requireAccount(client)
			if err != nil {
				return err
			}
			q := url.Values{}
			if region != "" {
				q.Set("region", region)
			}
			var limit map[string]any
			err = client.doJSON(http.MethodGet, "/accounts/"+accountID+"/limits/"+args[0], q, nil, &limit)
			if err != nil {
				return err
			}
			return printObject(cmd, limit)
		},
	}
	cmd.Flags().StringVar(&region, "region", "", "region the limit applies to")
	return cmd
}

func newAccountSetLimitCmd(client *Client) *cobra.Command {
	var region string
	cmd := &cobra.Command{
		Use:   "set-limit <limit-name> <value>",
		Short: "Override an account limit",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			accountID, err := requireAccount(client)
			if err != nil {
				return err
			}
			value, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("limit value must be an integer, got %q", args[1])
			}
			body := map[string]any{"value": value}
			if region != "" {
				body["region"] = region
			}
			var limit map[string]any
			err = client.doJSON(http.MethodPut, "/accounts/"+accountID+"/limits/"+args[0], nil, body, &limit)
			if err != nil {
				return err
			}
			return printObject(cmd, limit)
		},
	}
	cmd.Flags().StringVar(&region, "region", "", "region the override applies to")
	return cmd
}

// accountArg resolves the positional account id, falling back to the
// account in scope.
func accountArg(client *Client, args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	return requireAccount(client)
}

func newLimitsCmd(client *Client) *cobra.Command {
	var page pageFlags
	cmd := &cobra.Command{
		Use:   "limits",
		Short: "List the limit definitions the service enforces",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var list listPayload
			if err := client.doJSON(http.MethodGet, "/limits", page.query(), nil, &list); err != nil {
				return err
			}
			return printList(cmd, list, []string{"serviceName", "limitName", "valueType", "defaultValue", "minValue", "maxValue"})
		},
	}
	page.register(cmd)
	return cmd
}
