// Package cmd provides the command-line interface of fabricctl.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"

	"github.com/sarchlab/axifabric/config"
)

var cfg config.Config

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use: "fabricctl",
	Short: "fabricctl plans the address map and the bus adapters of an " +
		"AXI, AXI-Lite and Wishbone fabric.",
	Long: `fabricctl reads a fabric declaration, places every slave in the ` +
		`address map, checks every endpoint and works out the adapters ` +
		`between each master and the slaves it reaches. Declarations come ` +
		`from a YAML file (--file) or a built-in preset (--preset).`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadConfig,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringP("file", "f", "", "fabric declaration to read")
	flags.StringP("preset", "p", "", "built-in fabric declaration to use")
	flags.String("env-file", ".env", "dotenv file with FABRIC_* settings")
	flags.Uint32("address-width", 0,
		"address width for declarations that do not set one")
	flags.BoolP("verbose", "v", false, "log every step of the planning")
}

func loadConfig(cmd *cobra.Command, _ []string) error {
	envFile, _ := cmd.Flags().GetString("env-file")

	var err error

	cfg, err = config.Load(envFile)
	if err != nil {
		return err
	}

	if cmd.Flags().Changed("address-width") {
		cfg.AddressWidth, _ = cmd.Flags().GetUint32("address-width")
	}

	if cmd.Flags().Changed("verbose") {
		cfg.Verbose, _ = cmd.Flags().GetBool("verbose")
	}

	return nil
}

// Execute adds all child commands to the root command and sets flags
// appropriately.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		atexit.Exit(1)
	}

	atexit.Exit(0)
}
