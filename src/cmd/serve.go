package cmd

import (
	"github.com/evmarchive/archiver/src/fetch"

	"github.com/spf13/cobra"
)

func init() {
	RootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Keep the archive fresh with periodic sweeps and serve the monitoring API",
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		controller, err := fetch.NewDaemon(conf)
		if err != nil {
			return
		}

		err = controller.Start()
		if err != nil {
			return
		}

		<-ctx.Done()

		controller.StopWait()

		return
	},
}
