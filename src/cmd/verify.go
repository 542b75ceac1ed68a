package cmd

import (
	"github.com/evmarchive/archiver/src/audit"

	"github.com/spf13/cobra"
)

var verifyBytecode bool

func init() {
	verifyCmd.Flags().BoolVar(&verifyBytecode, "bytecode", false, "also re-verify bytecode against configured RPC endpoints")
	RootCmd.AddCommand(verifyCmd)
}

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Audit the whole archive against its checksum manifests",
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		if verifyBytecode {
			conf.Auditor.VerifyBytecode = true
		}

		controller, err := audit.NewController(conf)
		if err != nil {
			return
		}

		err = controller.Start()
		if err != nil {
			return
		}

		finished := make(chan struct{})
		go func() {
			controller.WaitFinished()
			close(finished)
		}()

		select {
		case <-finished:
		case <-ctx.Done():
		}

		controller.StopWait()

		return controller.Auditor.RunError()
	},
}
