// Command dispatchctl drives a dispatch.Dispatcher from the command
// line (SPEC_FULL §4.6, §6): `run` issues one Request against configured
// endpoints and prints the outcome; `serve-health` exposes each
// endpoint's circuit-breaker state over HTTP.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:   "dispatchctl",
		Short: "Drive a resilient request dispatcher from the command line",
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to dispatchctl.yaml (default: ./dispatchctl.yaml)")

	root.AddCommand(
		newRunCmd(&configPath),
		newServeHealthCmd(&configPath),
	)
	return root
}
