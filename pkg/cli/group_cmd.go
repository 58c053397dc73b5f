package cli

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/spf13/cobra"
)

func newGroupCmd(client *Client) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "group",
		Short: "Manage groups, their members, and their policies",
	}
	cmd.AddCommand(newGroupCreateCmd(client))
	cmd.AddCommand(newGroupListCmd(client))
	cmd.AddCommand(newGroupGetCmd(client))
	cmd.AddCommand(newGroupRenameCmd(client))
	cmd.AddCommand(newGroupDeleteCmd(client))
	cmd.AddCommand(newGroupMembersCmd(client))
	cmd.AddCommand(newGroupAddMemberCmd(client))
	cmd.AddCommand(newGroupRemoveMemberCmd(client))
	cmd.AddCommand(principalPolicyCommands(client, groupKind)...)
	return cmd
}

func newGroupCreateCmd(client *Client) *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "create <group-name>",
		Short: "Create a group",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			accountID, err := requireAccount(client)
			if err != nil {
				return err
			}
			body := map[string]any{"groupName": args[0]}
			if path != "" {
				body["path"] = path
			}
			var group map[string]any
			if err := client.doJSON(http.MethodPost, "/accounts/"+accountID+"/groups", nil, body, &group); err != nil {
				return err
			}
			return printObject(cmd, group)
		},
	}
	cmd.Flags().StringVar(&path, "path", "", "group path, e.g. /engineering/")
	return cmd
}

func newGroupListCmd(client *Client) *cobra.Command {
	var (
		page       pageFlags
		pathPrefix string
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List groups in the account",
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
			if err := client.doJSON(http.MethodGet, "/accounts/"+accountID+"/groups", q, nil, &list); err != nil {
				return err
			}
			return printList(cmd, list, []string{"groupName", "path", "arn", "createdAt"})
		},
	}
	page.register(cmd)
	cmd.Flags().StringVar(&pathPrefix, "path-prefix", "", "only groups whose path starts with this prefix")
	return cmd
}

func newGroupGetCmd(client *Client) *cobra.Command {
	return &cobra.Command{
		Use:   "get <group-name>",
		Short: "Show one group",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			base, err := principalPath(client, groupKind, args[0])
			if err != nil {
				return err
			}
			var group map[string]any
			if err := client.doJSON(http.MethodGet, base, nil, nil, &group); err != nil {
				return err
			}
			return printObject(cmd, group)
		},
	}
}

func newGroupRenameCmd(client *Client) *cobra.Command {
	var (
		newName string
		newPath string
	)
	cmd := &cobra.Command{
		Use:   "rename <group-name>",
		Short: "Rename a group or move it to a new path",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if newName == "" && newPath == "" {
				return fmt.Errorf("nothing to change: pass --new-name or --new-path")
			}
			base, err := principalPath(client, groupKind, args[0])
			if err != nil {
				return err
			}
			body := map[string]any{}
			if newName != "" {
				body["newGroupName"] = newName
			}
			if newPath != "" {
				body["newPath"] = newPath
			}
			var group map[string]any
			if err := client.doJSON(http.MethodPatch, base, nil, body, &group); err != nil {
				return err
			}
			return printObject(cmd, group)
		},
	}
	cmd.Flags().StringVar(&newName, "new-name", "", "new group name")
	cmd.Flags().StringVar(&newPath, "new-path", "", "new group path")
	return cmd
}

func newGroupDeleteCmd(client *Client) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <group-name>",
		Short: "Delete a group",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			base, err := principalPath(client, groupKind, args[0])
			if err != nil {
				return err
			}
			if err := client.doJSON(http.MethodDelete, base, nil, nil, nil); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted group %s.\n", args[0])
			return nil
		},
	}
}

func newGroupMembersCmd(client *Client) *cobra.Command {
	var page pageFlags
	cmd := &cobra.Command{
		Use:   "members <group-name>",
		Short: "List the users in a group",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			base, err := principalPath(client, groupKind, args[0])
			if err != nil {
				return err
			}
			var list listPayload
			if err := client.doJSON(http.MethodGet, base+"/members", page.query(), nil, &list); err != nil {
				return err
			}
			return printList(cmd, list, []string{"userName", "path", "arn"})
		},
	}
	page.register(cmd)
	return cmd
}

func newGroupAddMemberCmd(client *Client) *cobra.Command {
	return &cobra.Command{
		Use:   "add-member <group-name> <user-name>",
		Short: "Add a user to a group",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			base, err := principalPath(client, groupKind, args[0])
			if err != nil {
				return err
			}
			if err := client.doJSON(http.MethodPut, base+"/members/"+url.PathEscape(args[1]), nil, nil, nil); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %s to group %s.\n", args[1], args[0])
			return nil
		},
	}
}

func newGroupRemoveMemberCmd(client *Client) *cobra.Command {
	return &cobra.Command{
		Use:   "remove-member <group-name> <user-name>",
		Short: "Remove a user from a group",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			base, err := principalPath(client, groupKind, args[0])
			if err != nil {
				return err
			}
			if err := client.doJSON(http.MethodDelete, base+"/members/"+url.PathEscape(args[1]), nil, nil, nil); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %s from group %s.\n", args[1], args[0])
			return nil
		},
	}
}
