package cli

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/spf13/cobra"
)

func newServiceCredentialCmd(client *Client) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "service-credential",
		Short: "Manage a user's service-specific credentials",
	}
	cmd.AddCommand(newServiceCredentialCreateCmd(client))
	cmd.AddCommand(newServiceCredentialListCmd(client))
	cmd.AddCommand(newServiceCredentialResetCmd(client))
	cmd.AddCommand(newServiceCredentialSetStatusCmd(client))
	cmd.AddCommand(newServiceCredentialDeleteCmd(client))
	return cmd
}

func newServiceCredentialCreateCmd(client *Client) *cobra.Command {
	return &cobra.Command{
		Use:   "create <user-name> <service-name>",
		Short: "Create a service-specific credential",
		Long:  "The generated password is only returned once, at creation.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			base, err := principalPath(client, userKind, args[0])
			if err != nil {
				return err
			}
			var cred map[string]any
			err = client.doJSON(http.MethodPost, base+"/service-credentials", nil, map[string]any{"serviceName": args[1]}, &cred)
			if err != nil {
				return err
			}
			return printObject(cmd, cred)
		},
	}
}

func newServiceCredentialListCmd(client *Client) *cobra.Command {
	var page pageFlags
	cmd := &cobra.Command{
		Use:   "list <user-name>",
		Short: "List a user's service-specific credentials",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			base, err := principalPath(client, userKind, args[0])
			if err != nil {
				return err
			}
			var list listPayload
			if err := client.doJSON(http.MethodGet, base+"/service-credentials", page.query(), nil, &list); err != nil {
				return err
			}
			return printList(cmd, list, []string{"serviceSpecificCredentialId", "serviceName", "serviceUserName", "status", "createdAt"})
		},
	}
	page.register(cmd)
	return cmd
}

func newServiceCredentialResetCmd(client *Client) *cobra.Command {
	return &cobra.Command{
		Use:   "reset <user-name> <credential-id>",
		Short: "Rotate the password of a service-specific credential",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			base, err := principalPath(client, userKind, args[0])
			if err != nil {
				return err
			}
			var cred map[string]any
			err = client.doJSON(http.MethodPost, base+"/service-credentials/"+url.PathEscape(args[1])+"/reset", nil, nil, &cred)
			if err != nil {
				return err
			}
			return printObject(cmd, cred)
		},
	}
}

func newServiceCredentialSetStatusCmd(client *Client) *cobra.Command {
	return &cobra.Command{
		Use:   "set-status <user-name> <credential-id> <Active|Inactive>",
		Short: "Activate or deactivate a service-specific credential",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			base, err := principalPath(client, userKind, args[0])
			if err != nil {
				return err
			}
			var cred map[string]any
			err = client.doJSON(http.MethodPatch, base+"/service-credentials/"+url.PathEscape(args[1]), nil, map[string]any{"status": args[2]}, &cred)
			if err != nil {
				return err
			}
			return printObject(cmd, cred)
		},
	}
}

func newServiceCredentialDeleteCmd(client *Client) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <user-name> <credential-id>",
		Short: "Delete a service-specific credential",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			base, err := principalPath(client, userKind, args[0])
			if err != nil {
				return err
			}
			if err := client.doJSON(http.MethodDelete, base+"/service-credentials/"+url.PathEscape(args[1]), nil, nil, nil); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted service credential %s.\n", args[1])
			return nil
		},
	}
}

func newSSHKeyCmd(client *Client) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ssh-key",
		Short: "Manage a user's SSH public keys",
	}
	cmd.AddCommand(newSSHKeyUploadCmd(client))
	cmd.AddCommand(newSSHKeyListCmd(client))
	cmd.AddCommand(newSSHKeyGetCmd(client))
	cmd.AddCommand(newSSHKeySetStatusCmd(client))
	cmd.AddCommand(newSSHKeyDeleteCmd(client))
	return cmd
}

func newSSHKeyUploadCmd(client *Client) *cobra.Command {
	return &cobra.Command{
		Use:   "upload <user-name> <public-key>",
		Short: "Upload an SSH public key for a user",
		Long:  "The key may be given inline, as @file, or as - to read stdin.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			base, err := principalPath(client, userKind, args[0])
			if err != nil {
				return err
			}
			keyBody, err := readDocument(cmd, args[1])
			if err != nil {
				return err
			}
			var key map[string]any
			err = client.doJSON(http.MethodPost, base+"/ssh-keys", nil, map[string]any{"sshPublicKeyBody": keyBody}, &key)
			if err != nil {
				return err
			}
			return printObject(cmd, key)
		},
	}
}

func newSSHKeyListCmd(client *Client) *cobra.Command {
	var page pageFlags
	cmd := &cobra.Command{
		Use:   "list <user-name>",
		Short: "List a user's SSH public keys",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			base, err := principalPath(client, userKind, args[0])
			if err != nil {
				return err
			}
			var list listPayload
			if err := client.doJSON(http.MethodGet, base+"/ssh-keys", page.query(), nil, &list); err != nil {
				return err
			}
			return printList(cmd, list, []string{"sshPublicKeyId", "fingerprint", "status", "uploadedAt"})
		},
	}
	page.register(cmd)
	return cmd
}

func newSSHKeyGetCmd(client *Client) *cobra.Command {
	return &cobra.Command{
		Use:   "get <user-name> <key-id>",
		Short: "Show one SSH public key, including its body",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			base, err := principalPath(client, userKind, args[0])
			if err != nil {
				return err
			}
			var key map[string]any
			if err := client.doJSON(http.MethodGet, base+"/ssh-keys/"+url.PathEscape(args[1]), nil, nil, &key); err != nil {
				return err
			}
			return printObject(cmd, key)
		},
	}
}

func newSSHKeySetStatusCmd(client *Client) *cobra.Command {
	return &cobra.Command{
		Use:   "set-status <user-name> <key-id> <Active|Inactive>",
		Short: "Activate or deactivate an SSH public key",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			base, err := principalPath(client, userKind, args[0])
			if err != nil {
				return err
			}
			var key map[string]any
			err = client.doJSON(http.MethodPatch, base+"/ssh-keys/"+url.PathEscape(args[1]), nil, map[string]any{"status": args[2]}, &key)
			if err != nil {
				return err
			}
			return printObject(cmd, key)
		},
	}
}

func newSSHKeyDeleteCmd(client *Client) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <user-name> <key-id>",
		Short: "Delete an SSH public key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			base, err := principalPath(client, userKind, args[0])
			if err != nil {
				return err
			}
			if err := client.doJSON(http.MethodDelete, base+"/ssh-keys/"+url.PathEscape(args[1]), nil, nil, nil); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted SSH key %s.\n", args[1])
			return nil
		},
	}
}
