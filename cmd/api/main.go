package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

var cfgPath string

var rootCmd = &cobra.Command{
	Use:   "leafcheck",
	Short: "Plant leaf disease analysis service",
	Long: `leafcheck classifies plant leaf photos through an external model process,
stores the results and serves history and folder views per owner.

Running without a subcommand starts the HTTP server.`,
	SilenceErrors: true,
	SilenceUsage:  true,
	RunE:          runServe,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("leafcheck " + version)
	},
}

func init() {
	// path config.yaml
	def := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		def = v
	}
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", def, "config file (env CONFIG_PATH)")

	rootCmd.AddCommand(serveCmd, migrateCmd, schemaCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
