package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sarchlab/axifabric/decl"
)

var presetsCmd = &cobra.Command{
	Use:   "presets",
	Short: "List the built-in fabric declarations.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		out := cmd.OutOrStdout()

		for _, name := range decl.Presets() {
			f, err := decl.Preset(name)
			if err != nil {
				return err
			}

			fmt.Fprintf(out, "%-16s %s\n", name,
				strings.TrimSpace(firstLine(f.Description)))
		}

		return nil
	},
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}

func init() {
	rootCmd.AddCommand(presetsCmd)
}
