package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sarchlab/axifabric/driver"
	"github.com/sarchlab/axifabric/record"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Print the adapters between every master and slave.",
	Long: "`plan` prints the chain of adapters of every connection. " +
		"`--manifest PATH` also writes a YAML manifest for netlist " +
		"generators and `--record` stores the plan in an SQLite database.",
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		d, err := buildFabric(cmd)
		if err != nil {
			return err
		}

		drv := makeDriver(cmd, d)

		manifestPath, _ := cmd.Flags().GetString("manifest")
		if manifestPath != "" {
			drv = drv.WithConsumer(driver.ManifestFile{Path: manifestPath})
		}

		b, runErr := drv.Run(d)
		if b == nil {
			return runErr
		}

		out := cmd.OutOrStdout()
		for _, p := range b.Plan.Plans {
			fmt.Fprintln(out, p)
		}

		for _, f := range b.Plan.Failed {
			fmt.Fprintf(out, "%s -> %s: unsupported\n", f.Master, f.Slave)
		}

		recordOn, _ := cmd.Flags().GetBool("record")
		if recordOn || cmd.Flags().Changed("record-path") {
			recErr := recordBuild(cmd, b)
			if recErr != nil {
				return errors.Join(runErr, recErr)
			}
		}

		return runErr
	},
}

func recordBuild(cmd *cobra.Command, b *driver.Build) error {
	path := cfg.RecordPath
	if cmd.Flags().Changed("record-path") {
		path, _ = cmd.Flags().GetString("record-path")
	}

	r, err := record.New(path)
	if err != nil {
		return err
	}
	defer r.Close()

	return record.RecordFabric(r, b.Descriptor, b.Plan)
}

func init() {
	rootCmd.AddCommand(planCmd)
	planCmd.Flags().String("manifest", "", "write a YAML manifest to the path")
	planCmd.Flags().Bool("record", false, "record the plan into SQLite")
	planCmd.Flags().String("record-path", "",
		"database path without the .sqlite3 suffix")
}
