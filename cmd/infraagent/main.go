// Package main is the entry point for the infraagent CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information set at build time.
var (
	version = "0.1.0"
	commit  = "dev"
)

// Global flags.
var (
	configPath    string
	verbose       bool
	logFormat     string
	maxIterations int
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "infraagent",
		Short: "Conversational agent that provisions Alibaba Cloud resources",
		Long: `infraagent turns natural-language requests into Alibaba Cloud
provisioning calls (ECS instances, OSS buckets) by letting a language
model choose tools in a bounded reason/act/observe loop.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (default: search ./infraagent.yaml, ~/.config/infraagent/config.yaml, /etc/infraagent/config.yaml)")
	root.PersistentFlags().BoolVar(&verbose, "verbose", false, "Enable debug logging")
	root.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format: json or text")
	root.PersistentFlags().IntVar(&maxIterations, "max-iterations", 0, "Model calls allowed per request (default from config)")

	root.AddCommand(newVersionCmd())
	root.AddCommand(newChatCmd())
	root.AddCommand(newAskCmd())
	root.AddCommand(newServeCmd())

	return root
}

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
