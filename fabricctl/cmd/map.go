package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var mapCmd = &cobra.Command{
	Use:   "map",
	Short: "Print the memory map ordered by base address.",
	Long: "`map` prints every region ordered by base address. The windows " +
		"of the ports of a crossbar or interconnect follow their slave, " +
		"indented.",
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		d, err := buildFabric(cmd)
		if d == nil {
			return err
		}

		out := cmd.OutOrStdout()
		for _, r := range d.Regions().Sorted() {
			fmt.Fprintf(out, "%-20s 0x%08x 0x%08x\n", r.Name, r.Base, r.Size)

			h, _ := d.Lookup(r.Name)
			for _, sub := range d.SubRegions(h) {
				fmt.Fprintf(out, "  %-18s 0x%08x 0x%08x\n",
					sub.Name, sub.Base, sub.Size)
			}
		}

		return err
	},
}

func init() {
	rootCmd.AddCommand(mapCmd)
}
