package cli

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/spf13/cobra"
)

// principalKind parameterizes the policy subcommands shared by users,
// groups, and roles.
type principalKind struct {
	noun    string
	segment string
}

var (
	userKind  = principalKind{noun: "user", segment: "users"}
	groupKind = principalKind{noun: "group", segment: "groups"}
	roleKind  = principalKind{noun: "role", segment: "roles"}
)

// principalPath builds the API path for one principal in the account in
// scope.
func principalPath(client *Client, kind principalKind, name string) (string, error) {
	accountID, err := requireAccount(client)
	if err != nil {
		return "", err
	}
	return "/accounts/" + accountID + "/" + kind.segment + "/" + url.PathEscape(name), nil
}

// principalPolicyCommands returns the managed- and inline-policy
// subcommands for one principal kind.
func principalPolicyCommands(client *Client, kind principalKind) []*cobra.Command {
	attach := &cobra.Command{
		Use:   fmt.Sprintf("attach-policy <%s-name> <policy-name>", kind.noun),
		Short: fmt.Sprintf("Attach a managed policy to a %s", kind.noun),
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			base, err := principalPath(client, kind, args[0])
			if err != nil {
				return err
			}
			if err := client.doJSON(http.MethodPut, base+"/attached-policies/"+url.PathEscape(args[1]), nil, nil, nil); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Attached %s to %s %s.\n", args[1], kind.noun, args[0])
			return nil
		},
	}

	detach := &cobra.Command{
		Use:   fmt.Sprintf("detach-policy <%s-name> <policy-name>", kind.noun),
		Short: fmt.Sprintf("Detach a managed policy from a %s", kind.noun),
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			base, err := principalPath(client, kind, args[0])
			if err != nil {
				return err
			}
			if err := client.doJSON(http.MethodDelete, base+"/attached-policies/"+url.PathEscape(args[1]), nil, nil, nil); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Detached %s from %s %s.\n", args[1], kind.noun, args[0])
			return nil
		},
	}

	var listPage pageFlags
	listAttached := &cobra.Command{
		Use:   fmt.Sprintf("list-attached <%s-name>", kind.noun),
		Short: fmt.Sprintf("List managed policies attached to a %s", kind.noun),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			base, err := principalPath(client, kind, args[0])
			if err != nil {
				return err
			}
			var list listPayload
			if err := client.doJSON(http.MethodGet, base+"/attached-policies", listPage.query(), nil, &list); err != nil {
				return err
			}
			return printList(cmd, list, []string{"policyName", "policyArn", "deprecated", "attachedAt"})
		},
	}
	listPage.register(listAttached)

	putPolicy := &cobra.Command{
		Use:   fmt.Sprintf("put-policy <%s-name> <policy-name> <document>", kind.noun),
		Short: fmt.Sprintf("Create or replace an inline policy on a %s", kind.noun),
		Long:  "The document may be inline JSON, @file, or - to read stdin.",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			base, err := principalPath(client, kind, args[0])
			if err != nil {
				return err
			}
			doc, err := readDocument(cmd, args[2])
			if err != nil {
				return err
			}
			var policy map[string]any
			err = client.doJSON(http.MethodPut, base+"/policies/"+url.PathEscape(args[1]), nil, map[string]any{"document": doc}, &policy)
			if err != nil {
				return err
			}
			return printObject(cmd, policy)
		},
	}

	getPolicy := &cobra.Command{
		Use:   fmt.Sprintf("get-policy <%s-name> <policy-name>", kind.noun),
		Short: fmt.Sprintf("Show an inline policy of a %s", kind.noun),
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			base, err := principalPath(client, kind, args[0])
			if err != nil {
				return err
			}
			var policy map[string]any
			err = client.doJSON(http.MethodGet, base+"/policies/"+url.PathEscape(args[1]), nil, nil, &policy)
			if err != nil {
				return err
			}
			return printObject(cmd, policy)
		},
	}

	deletePolicy := &cobra.Command{
		Use:   fmt.Sprintf("delete-policy <%s-name> <policy-name>", kind.noun),
		Short: fmt.Sprintf("Delete an inline policy from a %s", kind.noun),
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			base, err := principalPath(client, kind, args[0])
			if err != nil {
				return err
			}
			if err := client.doJSON(http.MethodDelete, base+"/policies/"+url.PathEscape(args[1]), nil, nil, nil); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted inline policy %s.\n", args[1])
			return nil
		},
	}

	var inlinePage pageFlags
	listPolicies := &cobra.Command{
		Use:   fmt.Sprintf("list-policies <%s-name>", kind.noun),
		Short: fmt.Sprintf("List inline policies of a %s", kind.noun),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			base, err := principalPath(client, kind, args[0])
			if err != nil {
				return err
			}
			var list listPayload
			if err := client.doJSON(http.MethodGet, base+"/policies", inlinePage.query(), nil, &list); err != nil {
				return err
			}
			return printList(cmd, list, []string{"policyName"})
		},
	}
	inlinePage.register(listPolicies)

	return []*cobra.Command{attach, detach, listAttached, putPolicy, getPolicy, deletePolicy, listPolicies}
}
