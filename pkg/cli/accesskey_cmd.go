package cli

import (
	"bufio"
	"fmt"
	"net/http"
	"net/url"

	"github.com/spf13/cobra"
)

func newAccessKeyCmd(client *Client) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "access-key",
		Short: "Manage a user's long-term access keys",
	}
	cmd.AddCommand(newAccessKeyCreateCmd(client))
	cmd.AddCommand(newAccessKeyListCmd(client))
	cmd.AddCommand(newAccessKeySetStatusCmd(client))
	cmd.AddCommand(newAccessKeyDeleteCmd(client))
	return cmd
}

func newAccessKeyCreateCmd(client *Client) *cobra.Command {
	return &cobra.Command{
		Use:   "create <user-name>",
		Short: "Create an access key for a user",
		Long:  "The secret access key is only returned once, at creation.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			base, err := principalPath(client, userKind, args[0])
			if err != nil {
				return err
			}
			var key map[string]any
			if err := client.doJSON(http.MethodPost, base+"/access-keys", nil, nil, &key); err != nil {
				return err
			}
			return printObject(cmd, key)
		},
	}
}

func newAccessKeyListCmd(client *Client) *cobra.Command {
	var page pageFlags
	cmd := &cobra.Command{
		Use:   "list <user-name>",
		Short: "List a user's access keys",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			base, err := principalPath(client, userKind, args[0])
			if err != nil {
				return err
			}
			var list listPayload
			if err := client.doJSON(http.MethodGet, base+"/access-keys", page.query(), nil, &list); err != nil {
				return err
			}
			return printList(cmd, list, []string{"accessKeyId", "status", "createdAt"})
		},
	}
	page.register(cmd)
	return cmd
}

func newAccessKeySetStatusCmd(client *Client) *cobra.Command {
	return &cobra.Command{
		Use:   "set-status <user-name> <access-key-id> <Active|Inactive>",
		Short: "Activate or deactivate an access key",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			base, err := principalPath(client, userKind, args[0])
			if err != nil {
				return err
			}
			var key map[string]any
			err = client.doJSON(http.MethodPatch, base+"/access-keys/"+url.PathEscape(args[1]), nil, map[string]any{"status": args[2]}, &key)
			if err != nil {
				return err
			}
			return printObject(cmd, key)
		},
	}
}

func newAccessKeyDeleteCmd(client *Client) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <user-name> <access-key-id>",
		Short: "Delete an access key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			base, err := principalPath(client, userKind, args[0])
			if err != nil {
				return err
			}
			if err := client.doJSON(http.MethodDelete, base+"/access-keys/"+url.PathEscape(args[1]), nil, nil, nil); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted access key %s.\n", args[1])
			return nil
		},
	}
}

func newLoginProfileCmd(client *Client) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login-profile",
		Short: "Manage a user's console password",
	}
	cmd.AddCommand(newLoginProfileCreateCmd(client))
	cmd.AddCommand(newLoginProfileGetCmd(client))
	cmd.AddCommand(newLoginProfileUpdateCmd(client))
	cmd.AddCommand(newLoginProfileDeleteCmd(client))
	return cmd
}

func newLoginProfileCreateCmd(client *Client) *cobra.Command {
	var (
		password      string
		resetRequired bool
	)
	cmd := &cobra.Command{
		Use:   "create <user-name>",
		Short: "Create a login profile with a password",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			base, err := principalPath(client, userKind, args[0])
			if err != nil {
				return err
			}
			if password == "" {
				in := bufio.NewReader(cmd.InOrStdin())
				password, err = promptSecret(in, cmd.OutOrStdout(), "Password")
				if err != nil {
					return err
				}
			}
			body := map[string]any{"password": password}
			if resetRequired {
				body["passwordResetRequired"] = true
			}
			var profile map[string]any
			if err := client.doJSON(http.MethodPut, base+"/login-profile", nil, body, &profile); err != nil {
				return err
			}
			return printObject(cmd, profile)
		},
	}
	cmd.Flags().StringVar(&password, "password", "", "initial password (prompted when omitted)")
	cmd.Flags().BoolVar(&resetRequired, "reset-required", false, "require a password change at first login")
	return cmd
}

func newLoginProfileGetCmd(client *Client) *cobra.Command {
	return &cobra.Command{
		Use:   "get <user-name>",
		Short: "Show a user's login profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			base, err := principalPath(client, userKind, args[0])
			if err != nil {
				return err
			}
			var profile map[string]any
			if err := client.doJSON(http.MethodGet, base+"/login-profile", nil, nil, &profile); err != nil {
				return err
			}
			return printObject(cmd, profile)
		},
	}
}

func newLoginProfileUpdateCmd(client *Client) *cobra.Command {
	var (
		password      string
		resetRequired bool
	)
	cmd := &cobra.Command{
		Use:   "update <user-name>",
		Short: "Change the password or the reset flag",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			base, err := principalPath(client, userKind, args[0])
			if err != nil {
				return err
			}
			body := map[string]any{}
			if cmd.Flags().Changed("password") {
				body["password"] = password
			}
			if cmd.Flags().Changed("reset-required") {
				body["passwordResetRequired"] = resetRequired
			}
			if len(body) == 0 {
				return fmt.Errorf("nothing to change: pass --password or --reset-required")
			}
			var profile map[string]any
			if err := client.doJSON(http.MethodPatch, base+"/login-profile", nil, body, &profile); err != nil {
				return err
			}
			return printObject(cmd, profile)
		},
	}
	cmd.Flags().StringVar(&password, "password", "", "new password")
	cmd.Flags().BoolVar(&resetRequired, "reset-required", false, "require a password change at next login")
	return cmd
}

func newLoginProfileDeleteCmd(client *Client) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <user-name>",
		Short: "Remove a user's login profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			base, err := principalPath(client, userKind, args[0])
			if err != nil {
				return err
			}
			if err := client.doJSON(http.MethodDelete, base+"/login-profile", nil, nil, nil); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted login profile of %s.\n", args[0])
			return nil
		},
	}
}
