// Vdbgate is a gateway daemon exposing an embedded vector-search engine
// over JSON/HTTP, with bearer-token authentication, per-client rate
// limiting, and Prometheus telemetry.
//
// Configuration is loaded from environment variables (VDBGATE_*) over an
// optional YAML config file. See internal/config for the full surface.
//
// Usage:
//
//	# Start the gateway with defaults
//	VDBGATE_AUTH_SECRET=change-me vdbgate serve
//
//	# Configure via environment
//	VDBGATE_SERVER_PORT=8080 VDBGATE_ENGINE_PATH=/var/lib/vdbgate vdbgate serve
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

var configPath string

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "vdbgate",
	Short: "Vector database gateway",
	Long: `vdbgate fronts an embedded vector-search engine with an authenticated,
rate-limited JSON/HTTP API and Prometheus metrics.`,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the gateway",
	RunE:  runServe,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("vdbgate\n")
		fmt.Printf("Version:    %s\n", version)
		fmt.Printf("Commit:     %s\n", gitCommit)
		fmt.Printf("Build Date: %s\n", buildDate)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to YAML config file")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}
