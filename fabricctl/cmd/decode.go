package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

var decodeCmd = &cobra.Command{
	Use:   "decode ADDR",
	Short: "Print the region that serves an address.",
	Long: "`decode` prints the region that serves an address. Behind a " +
		"crossbar or interconnect it also prints the port window.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, err := strconv.ParseUint(args[0], 0, 64)
		if err != nil {
			return fmt.Errorf("invalid address %q", args[0])
		}

		d, err := buildFabric(cmd)
		if err != nil {
			return err
		}

		path, complete := d.Decoder().FindPath(addr)
		switch {
		case len(path) == 0:
			return fmt.Errorf("address 0x%x is not mapped", addr)
		case !complete:
			return fmt.Errorf("address 0x%x falls in no port of %s",
				addr, path[len(path)-1].Name)
		}

		hops := make([]string, len(path))
		for i, r := range path {
			hops[i] = fmt.Sprintf("%s +0x%x", r, addr-r.Base)
		}

		fmt.Fprintln(cmd.OutOrStdout(), strings.Join(hops, " > "))

		return nil
	},
}

func init() {
	rootCmd.AddCommand(decodeCmd)
}
