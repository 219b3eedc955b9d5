package cmd

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/sarchlab/axifabric/monitoring"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the resolved fabric over HTTP until interrupted.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		d, err := buildFabric(cmd)
		if err != nil {
			return err
		}

		port := cfg.MonitorPort
		if cmd.Flags().Changed("port") {
			port, _ = cmd.Flags().GetInt("port")
		}

		open := cfg.OpenBrowser
		if cmd.Flags().Changed("open") {
			open, _ = cmd.Flags().GetBool("open")
		}

		monitor := monitoring.NewMonitor().
			WithPortNumber(port).
			WithBrowser(open)

		b, err := makeDriver(cmd, d).WithConsumer(monitor).Run(d)
		if b == nil {
			return err
		}

		if err != nil {
			// Blocked slaves are still served so that the rest of the
			// fabric can be inspected.
			fmt.Fprintln(cmd.ErrOrStderr(), err)
		}

		_, err = monitor.StartServer()
		if err != nil {
			return err
		}

		stop := make(chan os.Signal, 1)
		signal.Notify(stop, os.Interrupt)
		<-stop

		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().Int("port", 0, "port of the server, random if not set")
	serveCmd.Flags().Bool("open", false, "open the server in a browser")
}
