package cli

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
)

func newUserCmd(client *Client) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage users and their policies",
	}
	cmd.AddCommand(newUserCreateCmd(client))
	cmd.AddCommand(newUserListCmd(client))
	cmd.AddCommand(newUserGetCmd(client))
	cmd.AddCommand(newUserRenameCmd(client))
	cmd.AddCommand(newUserDeleteCmd(client))
	cmd.AddCommand(newUserSetBoundaryCmd(client))
	cmd.AddCommand(newUserDeleteBoundaryCmd(client))
	cmd.AddCommand(newUserGroupsCmd(client))
	cmd.AddCommand(principalPolicyCommands(client, userKind)...)
	return cmd
}

func newUserCreateCmd(client *Client) *cobra.Command {
	var (
		path     string
		boundary string
	)
	cmd := &cobra.Command{
		Use:   "create <user-name>",
		Short: "Create a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			accountID, err := requireAccount(client)
			if err != nil {
				return err
			}
			body := map[string]any{"userName": args[0]}
			if path != "" {
				body["path"] = path
			}
			if boundary != "" {
				body["permissionsBoundary"] = boundary
			}
			var user map[string]any
			if err := client.doJSON(http.MethodPost, "/accounts/"+accountID+"/users", nil, body, &user); err != nil {
				return err
			}
			return printObject(cmd, user)
		},
	}
	cmd.Flags().StringVar(&path, "path", "", "user path, e.g. /engineering/")
	cmd.Flags().StringVar(&boundary, "permissions-boundary", "", "ARN of the permissions boundary policy")
	return cmd
}

func newUserListCmd(client *Client) *cobra.Command {
	var (
		page       pageFlags
		pathPrefix string
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List users in the account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			accountID, err := requireAccount(client)
			if err != nil {
				return err
			}
			q := page.query()
			if pathPrefix != "" {
				q.Set("pathPrefix", pathPrefix)
			}
			var list listPayload
			if err := client.doJSON(http.MethodGet, "/accounts/"+accountID+"/users", q, nil, &list); err != nil {
				return err
			}
			return printList(cmd, list, []string{"userName", "path", "arn", "createdAt"})
		},
	}
	page.register(cmd)
	cmd.Flags().StringVar(&pathPrefix, "path-prefix", "", "only users whose path starts with this prefix")
	return cmd
}

func newUserGetCmd(client *Client) *cobra.Command {
	return &cobra.Command{
		Use:   "get <user-name>",
		Short: "Show one user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			base, err := principalPath(client, userKind, args[0])
			if err != nil {
				return err
			}
			var user map[string]any
			if err := client.doJSON(http.MethodGet, base, nil, nil, &user); err != nil {
				return err
			}
			return printObject(cmd, user)
		},
	}
}

func newUserRenameCmd(client *Client) *cobra.Command {
	var (
		newName string
		newPath string
	)
	cmd := &cobra.Command{
		Use:   "rename <user-name>",
		Short: "Rename a user or move it to a new path",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if newName == "" && newPath == "" {
				return fmt.Errorf("nothing to change: pass --new-name or --new-path")
			}
			base, err := principalPath(client, userKind, args[0])
			if err != nil {
				return err
			}
			body := map[string]any{}
			if newName != "" {
				body["newUserName"] = newName
			}
			if newPath != "" {
				body["newPath"] = newPath
			}
			var user map[string]any
			if err := client.doJSON(http.MethodPatch, base, nil, body, &user); err != nil {
				return err
			}
			return printObject(cmd, user)
		},
	}
	cmd.Flags().StringVar(&newName, "new-name", "", "new user name")
	cmd.Flags().StringVar(&newPath, "new-path", "", "new user path")
	return cmd
}

func newUserDeleteCmd(client *Client) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <user-name>",
		Short: "Delete a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			base, err := principalPath(client, userKind, args[0])
			if err != nil {
				return err
			}
			if err := client.doJSON(http.MethodDelete, base, nil, nil, nil); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted user %s.\n", args[0])
			return nil
		},
	}
}

func newUserSetBoundaryCmd(client *Client) *cobra.Command {
	return &cobra.Command{
		Use:   "set-boundary <user-name> <policy-arn>",
		Short: "Set the user's permissions boundary",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			base, err := principalPath(client, userKind, args[0])
			if err != nil {
				return err
			}
			var user map[string]any
			err = client.doJSON(http.MethodPut, base+"/permissions-boundary", nil, map[string]any{"permissionsBoundary": args[1]}, &user)
			if err != nil {
				return err
			}
			return printObject(cmd, user)
		},
	}
}

func newUserDeleteBoundaryCmd(client *Client) *cobra.Command {
	return &cobra.Command{
		Use:   "delete-boundary <user-name>",
		Short: "Remove the user's permissions boundary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			base, err := principalPath(client, userKind, args[0])
			if err != nil {
				return err
			}
			if err := client.doJSON(http.MethodDelete, base+"/permissions-boundary", nil, nil, nil); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed permissions boundary from %s.\n", args[0])
			return nil
		},
	}
}

func newUserGroupsCmd(client *Client) *cobra.Command {
	return &cobra.Command{
		Use:   "groups <user-name>",
		Short: "List the groups a user belongs to",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			base, err := principalPath(client, userKind, args[0])
			if err != nil {
				return err
			}
			var list listPayload
			if err := client.doJSON(http.MethodGet, base+"/groups", nil, nil, &list); err != nil {
				return err
			}
			return printList(cmd, list, []string{"groupName", "path", "arn"})
		},
	}
}
