package cli

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
)

func newRoleCmd(client *Client) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "role",
		Short: "Manage roles, trust policies, and role policies",
	}
	cmd.AddCommand(newRoleCreateCmd(client))
	cmd.AddCommand(newRoleListCmd(client))
	cmd.AddCommand(newRoleGetCmd(client))
	cmd.AddCommand(newRoleUpdateCmd(client))
	cmd.AddCommand(newRoleDeleteCmd(client))
	cmd.AddCommand(newRoleSetTrustPolicyCmd(client))
	cmd.AddCommand(newRoleSetBoundaryCmd(client))
	cmd.AddCommand(newRoleDeleteBoundaryCmd(client))
	cmd.AddCommand(principalPolicyCommands(client, roleKind)...)
	return cmd
}

func newRoleCreateCmd(client *Client) *cobra.Command {
	var (
		path        string
		description string
		maxDuration int
		boundary    string
	)
	cmd := &cobra.Command{
		Use:   "create <role-name> <trust-document>",
		Short: "Create a role",
		Long: `The trust document decides who may assume the role. It may be given
inline, as @file, or as - to read stdin.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			accountID, err := requireAccount(client)
			if err != nil {
				return err
			}
			doc, err := readDocument(cmd, args[1])
			if err != nil {
				return err
			}
			body := map[string]any{
				"roleName":                 args[0],
				"assumeRolePolicyDocument": doc,
			}
			if path != "" {
				body["path"] = path
			}
			if description != "" {
				body["description"] = description
			}
			if maxDuration > 0 {
				body["maxSessionDuration"] = maxDuration
			}
			if boundary != "" {
				body["permissionsBoundary"] = boundary
			}
			var role map[string]any
			if err := client.doJSON(http.MethodPost, "/accounts/"+accountID+"/roles", nil, body, &role); err != nil {
				return err
			}
			return printObject(cmd, role)
		},
	}
	cmd.Flags().StringVar(&path, "path", "", "role path, e.g. /service/")
	cmd.Flags().StringVar(&description, "description", "", "role description")
	cmd.Flags().IntVar(&maxDuration, "max-session-duration", 0, "maximum session duration in seconds")
	cmd.Flags().StringVar(&boundary, "permissions-boundary", "", "ARN of the permissions boundary policy")
	return cmd
}

func newRoleListCmd(client *Client) *cobra.Command {
	var (
		page       pageFlags
		pathPrefix string
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List roles in the account",
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
			if err := client.doJSON(http.MethodGet, "/accounts/"+accountID+"/roles", q, nil, &list); err != nil {
				return err
			}
			return printList(cmd, list, []string{"roleName", "path", "arn", "maxSessionDuration", "createdAt"})
		},
	}
	page.register(cmd)
	cmd.Flags().StringVar(&pathPrefix, "path-prefix", "", "only roles whose path starts with this prefix")
	return cmd
}

func newRoleGetCmd(client *Client) *cobra.Command {
	return &cobra.Command{
		Use:   "get <role-name>",
		Short: "Show one role, including its trust policy",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			base, err := principalPath(client, roleKind, args[0])
			if err != nil {
				return err
			}
			var role map[string]any
			if err := client.doJSON(http.MethodGet, base, nil, nil, &role); err != nil {
				return err
			}
			return printObject(cmd, role)
		},
	}
}

func newRoleUpdateCmd(client *Client) *cobra.Command {
	var (
		description string
		maxDuration int
	)
	cmd := &cobra.Command{
		Use:   "update <role-name>",
		Short: "Change a role's description or session duration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			base, err := principalPath(client, roleKind, args[0])
			if err != nil {
				return err
			}
			body := map[string]any{}
			if cmd.Flags().Changed("description") {
				body["description"] = description
			}
			if cmd.Flags().Changed("max-session-duration") {
				body["maxSessionDuration"] = maxDuration
			}
			if len(body) == 0 {
				return fmt.Errorf("nothing to change: pass --description or --max-session-duration")
			}
			var role map[string]any
			if err := client.doJSON(http.MethodPatch, base, nil, body, &role); err != nil {
				return err
			}
			return printObject(cmd, role)
		},
	}
	cmd.Flags().StringVar(&description, "description", "", "new description")
	cmd.Flags().IntVar(&maxDuration, "max-session-duration", 0, "new maximum session duration in seconds")
	return cmd
}

func newRoleDeleteCmd(client *Client) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <role-name>",
		Short: "Delete a role",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			base, err := principalPath(client, roleKind, args[0])
			if err != nil {
				return err
			}
			if err := client.doJSON(http.MethodDelete, base, nil, nil, nil); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted role %s.\n", args[0])
			return nil
		},
	}
}

func newRoleSetTrustPolicyCmd(client *Client) *cobra.Command {
	return &cobra.Command{
		Use:   "set-trust-policy <role-name> <document>",
		Short: "Replace the role's trust policy",
		Long:  "The document may be given inline, as @file, or as - to read stdin.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			base, err := principalPath(client, roleKind, args[0])
			if err != nil {
				return err
			}
			doc, err := readDocument(cmd, args[1])
			if err != nil {
				return err
			}
			var role map[string]any
			err = client.doJSON(http.MethodPut, base+"/assume-role-policy", nil, map[string]any{"policyDocument": doc}, &role)
			if err != nil {
				return err
			}
			return printObject(cmd, role)
		},
	}
}

func newRoleSetBoundaryCmd(client *Client) *cobra.Command {
	return &cobra.Command{
		Use:   "set-boundary <role-name> <policy-arn>",
		Short: "Set the role's permissions boundary",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			base, err := principalPath(client, roleKind, args[0])
			if err != nil {
				return err
			}
			var role map[string]any
			err = client.doJSON(http.MethodPut, base+"/permissions-boundary", nil, map[string]any{"permissionsBoundary": args[1]}, &role)
			if err != nil {
				return err
			}
			return printObject(cmd, role)
		},
	}
}

func newRoleDeleteBoundaryCmd(client *Client) *cobra.Command {
	return &cobra.Command{
		Use:   "delete-boundary <role-name>",
		Short: "Remove the role's permissions boundary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			base, err := principalPath(client, roleKind, args[0])
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
