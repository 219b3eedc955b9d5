package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check a fabric and report every problem.",
	Long: "`check` finalizes the fabric and resolves every connection. " +
		"All the overlaps, invalid endpoints and unsupported conversions " +
		"are reported together. The exit status is 1 if there is any.",
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		d, err := buildFabric(cmd)
		if err != nil {
			return err
		}

		b, err := makeDriver(cmd, d).Run(d)
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "%s, %d links: ok\n",
			d, len(b.Plan.Plans))

		return nil
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
}
