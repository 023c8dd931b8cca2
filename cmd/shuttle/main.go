//go:build linux

package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "shuttle",
	Short: "A byte-stream-to-message bridging engine",
	Long: `Shuttle bridges non-blocking byte-stream connections and
message-oriented sessions: readiness events are multiplexed into bounded
reads and writes, a framing codec turns bytes into discrete messages, and
flow-control backpressure propagates between the wire and the application.

The serve command runs a demonstration echo server built on the engine.`,
	Version: "0.1.0",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to a yaml configuration file")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
