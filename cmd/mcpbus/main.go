// Package main provides the mcpbus CLI: the tool server and a test client.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/effective-security/xlog"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/mcpbus/cmd", "mcpbus")

// version is set at build time
var version = "0.1.0"

type globalFlags struct {
	configFile string
	logLevel   string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("error: %s", err.Error()))
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := new(globalFlags)

	root := &cobra.Command{
		Use:   "mcpbus",
		Short: "Tool invocation server over a message bus",
		Long: `mcpbus serves tools to requesters on a NATS or Redis bus.

Requests are JSON-RPC envelopes published to a subject with a reply address.
Supported methods: initialize, listTools, callTool.

Examples:
  mcpbus serve --config mcpbus.yaml
  mcpbus call listTools
  mcpbus call callTool --tool tavily-search --args '{"query":"golang news"}'`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			xlog.SetFormatter(xlog.NewStringFormatter(os.Stderr))
		},
	}

	root.PersistentFlags().StringVarP(&flags.configFile, "config", "c", "", "Path to the configuration file: .yaml, .json or .toml")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "Log level, overrides the configuration")

	root.AddCommand(
		serveCmd(flags),
		callCmd(flags),
		versionCmd(),
	)
	return root
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "mcpbus %s\n", version)
		},
	}
}

// setLogLevel applies the level, falling back to INFO for unknown values
func setLogLevel(level string) {
	xlog.SetGlobalLogLevel(parseLevel(level))
}

func parseLevel(level string) xlog.LogLevel {
	switch strings.ToUpper(level) {
	case "CRITICAL":
		return xlog.CRITICAL
	case "ERROR":
		return xlog.ERROR
	case "WARNING":
		return xlog.WARNING
	case "NOTICE":
		return xlog.NOTICE
	case "DEBUG":
		return xlog.DEBUG
	case "TRACE":
		return xlog.TRACE
	default:
		return xlog.INFO
	}
}
