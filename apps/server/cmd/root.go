package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "reqpad",
	Short: "Import, edit and replay captured HTTP requests.",
	Long: `reqpad is a local HTTP workbench. Paste a curl command captured from
browser devtools, edit the resulting request, dispatch it through an
egress guard and inspect or download the response.`,
}

func Execute(v, bt string) {
	version = v
	buildTime = bt
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}
