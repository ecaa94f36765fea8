package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "portalctl",
	Short: "Run and administer the employee portal",
	Long: `portalctl runs the employee portal server and provides the
administrative commands around it: schema migrations, configuration,
user roles and entity history.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func main() {
	Execute()
}
