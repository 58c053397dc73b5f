package cli

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// commandEntry describes one leaf command for introspection output.
type commandEntry struct {
	Path    string      `json:"path"`
	Group   string      `json:"group"`
	Short   string      `json:"short"`
	Args    string      `json:"args,omitempty"`
	Example string      `json:"example,omitempty"`
	Flags   []flagEntry `json:"flags,omitempty"`
}

// flagEntry describes one flag for introspection output.
type flagEntry struct {
	Name    string `json:"name"`
	Short   string `json:"shorthand,omitempty"`
	Type    string `json:"type"`
	Default string `json:"default,omitempty"`
	Usage   string `json:"usage,omitempty"`
}

func newCommandsCmd() *cobra.Command {
	var filter string

	cmd := &cobra.Command{
		Use:   "commands",
		Short: "List every command with its flags",
		Long: `Walks the command tree and prints each leaf command with its
positional arguments and flags. Works offline; useful for scripting
against the CLI surface.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			entries := walkCommands(cmd.Root(), "")

			if filter != "" {
				needle := strings.ToLower(filter)
				kept := entries[:0]
				for _, e := range entries {
					if strings.Contains(strings.ToLower(e.Path+" "+e.Short), needle) {
						kept = append(kept, e)
					}
				}
				entries = kept
			}

			if getOutputFormat(cmd) == "json" {
				return PrintJSON(cmd.OutOrStdout(), entries)
			}
			rows := make([][]string, 0, len(entries))
			for _, e := range entries {
				rows = append(rows, []string{e.Path, e.Short})
			}
			PrintTable(cmd.OutOrStdout(), []string{"command", "description"}, rows)
			return nil
		},
	}

	cmd.Flags().StringVar(&filter, "filter", "", "substring match on command path and description")

	return cmd
}

// walkCommands collects leaf commands depth-first, skipping the scaffolding
// commands cobra injects.
func walkCommands(cmd *cobra.Command, parentPath string) []commandEntry {
	entries := make([]commandEntry, 0)
	for _, child := range cmd.Commands() {
		if child.Hidden || child.Name() == "help" || child.Name() == "completion" {
			continue
		}

		path := child.Name()
		if parentPath != "" {
			path = parentPath + " " + child.Name()
		}

		if child.HasSubCommands() {
			entries = append(entries, walkCommands(child, path)...)
			continue
		}

		args := ""
		if fields := strings.Fields(child.Use); len(fields) > 1 {
			args = strings.Join(fields[1:], " ")
		}

		entries = append(entries, commandEntry{
			Path:    path,
			Group:   strings.SplitN(path, " ", 2)[0],
			Short:   child.Short,
			Args:    args,
			Example: child.Example,
			Flags:   commandFlags(child),
		})
	}
	return entries
}

func commandFlags(cmd *cobra.Command) []flagEntry {
	flags := make([]flagEntry, 0)
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if f.Hidden || f.Name == "help" {
			return
		}
		flags = append(flags, flagEntry{
			Name:    f.Name,
			Short:   f.Shorthand,
			Type:    f.Value.Type(),
			Default: f.DefValue,
			Usage:   f.Usage,
		})
	})
	return flags
}
