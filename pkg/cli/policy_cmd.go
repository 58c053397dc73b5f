package cli

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/spf13/cobra"
)

func newPolicyCmd(client *Client) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "policy",
		Short: "Manage managed policies and their versions",
	}
	cmd.AddCommand(newPolicyCreateCmd(client))
	cmd.AddCommand(newPolicyListCmd(client))
	cmd.AddCommand(newPolicyGetCmd(client))
	cmd.AddCommand(newPolicySetDeprecatedCmd(client))
	cmd.AddCommand(newPolicyDeleteCmd(client))
	cmd.AddCommand(newPolicyCreateVersionCmd(client))
	cmd.AddCommand(newPolicyListVersionsCmd(client))
	cmd.AddCommand(newPolicyGetVersionCmd(client))
	cmd.AddCommand(newPolicyDeleteVersionCmd(client))
	cmd.AddCommand(newPolicySetDefaultVersionCmd(client))
	return cmd
}

// policyPath builds the API path for one managed policy in the account
// in scope.
func policyPath(client *Client, name string) (string, error) {
	accountID, err := requireAccount(client)
	if err != nil {
		return "", err
	}
	return "/accounts/" + accountID + "/policies/" + url.PathEscape(name), nil
}

func newPolicyCreateCmd(client *Client) *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "create <policy-name> <document>",
		Short: "Create a managed policy",
		Long: `Creates a managed policy whose first version holds the given document.
The document may be given inline, as @file, or as - to read stdin.`,
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
			body := map[string]any{"policyName": args[0], "document": doc}
			if path != "" {
				body["path"] = path
			}
			var policy map[string]any
			if err := client.doJSON(http.MethodPost, "/accounts/"+accountID+"/policies", nil, body, &policy); err != nil {
				return err
			}
			return printObject(cmd, policy)
		},
	}
	cmd.Flags().StringVar(&path, "path", "", "policy path, e.g. /service/")
	return cmd
}

func newPolicyListCmd(client *Client) *cobra.Command {
	var (
		page              pageFlags
		pathPrefix        string
		includeDeprecated bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List managed policies in the account",
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
			if includeDeprecated {
				q.Set("includeDeprecated", "true")
			}
			var list listPayload
			if err := client.doJSON(http.MethodGet, "/accounts/"+accountID+"/policies", q, nil, &list); err != nil {
				return err
			}
			return printList(cmd, list, []string{"policyName", "path", "arn", "defaultVersionId", "deprecated", "createdAt"})
		},
	}
	page.register(cmd)
	cmd.Flags().StringVar(&pathPrefix, "path-prefix", "", "only policies whose path starts with this prefix")
	cmd.Flags().BoolVar(&includeDeprecated, "include-deprecated", false, "include deprecated policies")
	return cmd
}

func newPolicyGetCmd(client *Client) *cobra.Command {
	return &cobra.Command{
		Use:   "get <policy-name>",
		Short: "Show one managed policy",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			base, err := policyPath(client, args[0])
			if err != nil {
				return err
			}
			var policy map[string]any
			if err := client.doJSON(http.MethodGet, base, nil, nil, &policy); err != nil {
				return err
			}
			return printObject(cmd, policy)
		},
	}
}

func newPolicySetDeprecatedCmd(client *Client) *cobra.Command {
	return &cobra.Command{
		Use:   "set-deprecated <policy-name> <true|false>",
		Short: "Mark a policy deprecated, or restore it",
		Long: `Deprecated policies keep working for principals they are already
attached to but cannot be newly attached.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			base, err := policyPath(client, args[0])
			if err != nil {
				return err
			}
			var deprecated bool
			switch args[1] {
			case "true":
				deprecated = true
			case "false":
				deprecated = false
			default:
				return fmt.Errorf("expected true or false, got %q", args[1])
			}
			var policy map[string]any
			err = client.doJSON(http.MethodPatch, base, nil, map[string]any{"deprecated": deprecated}, &policy)
			if err != nil {
				return err
			}
			return printObject(cmd, policy)
		},
	}
}

func newPolicyDeleteCmd(client *Client) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <policy-name>",
		Short: "Delete a managed policy and all its versions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			base, err := policyPath(client, args[0])
			if err != nil {
				return err
			}
			if err := client.doJSON(http.MethodDelete, base, nil, nil, nil); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted policy %s.\n", args[0])
			return nil
		},
	}
}

func newPolicyCreateVersionCmd(client *Client) *cobra.Command {
	var setDefault bool
	cmd := &cobra.Command{
		Use:   "create-version <policy-name> <document>",
		Short: "Add a new version to a managed policy",
		Long:  "The document may be given inline, as @file, or as - to read stdin.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			base, err := policyPath(client, args[0])
			if err != nil {
				return err
			}
			doc, err := readDocument(cmd, args[1])
			if err != nil {
				return err
			}
			body := map[string]any{"document": doc}
			if setDefault {
				body["setAsDefault"] = true
			}
			var version map[string]any
			if err := client.doJSON(http.MethodPost, base+"/versions", nil, body, &version); err != nil {
				return err
			}
			return printObject(cmd, version)
		},
	}
	cmd.Flags().BoolVar(&setDefault, "set-default", false, "make the new version the default")
	return cmd
}

func newPolicyListVersionsCmd(client *Client) *cobra.Command {
	var page pageFlags
	cmd := &cobra.Command{
		Use:   "list-versions <policy-name>",
		Short: "List the versions of a managed policy",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			base, err := policyPath(client, args[0])
			if err != nil {
				return err
			}
			var list listPayload
			if err := client.doJSON(http.MethodGet, base+"/versions", page.query(), nil, &list); err != nil {
				return err
			}
			return printList(cmd, list, []string{"versionId", "isDefaultVersion", "createdAt"})
		},
	}
	page.register(cmd)
	return cmd
}

func newPolicyGetVersionCmd(client *Client) *cobra.Command {
	return &cobra.Command{
		Use:   "get-version <policy-name> <version-id>",
		Short: "Show one policy version, including its document",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			base, err := policyPath(client, args[0])
			if err != nil {
				return err
			}
			var version map[string]any
			if err := client.doJSON(http.MethodGet, base+"/versions/"+url.PathEscape(args[1]), nil, nil, &version); err != nil {
				return err
			}
			return printObject(cmd, version)
		},
	}
}

func newPolicyDeleteVersionCmd(client *Client) *cobra.Command {
	return &cobra.Command{
		Use:   "delete-version <policy-name> <version-id>",
		Short: "Delete a non-default policy version",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			base, err := policyPath(client, args[0])
			if err != nil {
				return err
			}
			if err := client.doJSON(http.MethodDelete, base+"/versions/"+url.PathEscape(args[1]), nil, nil, nil); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted version %s of policy %s.\n", args[1], args[0])
			return nil
		},
	}
}

func newPolicySetDefaultVersionCmd(client *Client) *cobra.Command {
	return &cobra.Command{
		Use:   "set-default-version <policy-name> <version-id>",
		Short: "Make an existing version the policy default",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			base, err := policyPath(client, args[0])
			if err != nil {
				return err
			}
			var policy map[string]any
			err = client.doJSON(http.MethodPost, base+"/versions/"+url.PathEscape(args[1])+"/set-default", nil, nil, &policy)
			if err != nil {
				return err
			}
			return printObject(cmd, policy)
		},
	}
}
