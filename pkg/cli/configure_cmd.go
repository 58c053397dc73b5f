package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func newConfigureCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "configure",
		Short: "Interactively set up a config profile",
		Long: `Prompts for the endpoint and credentials and stores them in
~/.iamctl/config.yaml under the selected profile. Existing values are
shown as defaults; press enter to keep them.`,
		RunE: runConfigure,
	}
	return cmd
}

func runConfigure(cmd *cobra.Command, _ []string) error {
	profileName, _ := cmd.Root().PersistentFlags().GetString("profile")
	if profileName == "" {
		profileName = "default"
	}

	cfg, err := LoadUserConfig()
	if err != nil {
		return err
	}
	p := cfg.Profiles[profileName]

	in := bufio.NewReader(cmd.InOrStdin())
	out := cmd.OutOrStdout()

	p.Host, err = prompt(in, out, "Host", p.Host)
	if err != nil {
		return err
	}
	p.AccountID, err = prompt(in, out, "Account id", p.AccountID)
	if err != nil {
		return err
	}
	p.AccessKeyID, err = prompt(in, out, "Access key id", p.AccessKeyID)
	if err != nil {
		return err
	}
	secret, err := promptSecret(in, out, "Secret access key")
	if err != nil {
		return err
	}
	if secret != "" {
		p.SecretAccessKey = secret
	}
	p.Output, err = prompt(in, out, "Output format (table, json)", p.Output)
	if err != nil {
		return err
	}
	if p.Output != "" && p.Output != "table" && p.Output != "json" {
		return fmt.Errorf("invalid output format %q (expected table or json)", p.Output)
	}

	cfg.Profiles[profileName] = p
	if cfg.CurrentProfile == "" {
		cfg.CurrentProfile = profileName
	}
	if err := SaveUserConfig(cfg); err != nil {
		return err
	}
	fmt.Fprintf(out, "Profile %q saved.\n", profileName)
	return nil
}

// prompt asks for one value, keeping the current one on empty input.
func prompt(in *bufio.Reader, out io.Writer, label, current string) (string, error) {
	if current != "" {
		fmt.Fprintf(out, "%s [%s]: ", label, current)
	} else {
		fmt.Fprintf(out, "%s: ", label)
	}
	line, err := in.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("read input: %w", err)
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return current, nil
	}
	return line, nil
}

// promptSecret reads without echo when stdin is a terminal. Empty input
// keeps the stored secret.
func promptSecret(in *bufio.Reader, out io.Writer, label string) (string, error) {
	fmt.Fprintf(out, "%s (empty keeps current): ", label)
	if term.IsTerminal(int(os.Stdin.Fd())) {
		raw, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(out)
		if err != nil {
			return "", fmt.Errorf("read secret: %w", err)
		}
		return strings.TrimSpace(string(raw)), nil
	}
	line, err := in.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("read secret: %w", err)
	}
	return strings.TrimSpace(line), nil
}
