package main

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:           "vtoken-ledger",
		Short:         "Virtual token ledger simulator",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String(configKey, "config.yaml", "path to the yaml configuration")
	root.AddCommand(simulateCommand(), inspectCommand())

	if err := root.Execute(); err != nil {
		logrus.Error(err)
		os.Exit(1)
	}
}
