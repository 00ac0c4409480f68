package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/mcpbus/config"
	"github.com/effective-security/mcpbus/mcp"
	"github.com/effective-security/mcpbus/mcp/client"
	"github.com/effective-security/x/values"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

type callFlags struct {
	tool    string
	args    string
	yaml    bool
	timeout time.Duration
}

func callCmd(flags *globalFlags) *cobra.Command {
	f := new(callFlags)

	cmd := &cobra.Command{
		Use:   "call <initialize|listTools|callTool>",
		Short: "Send a request to the server and print the response",
		Long: `Call sends a single request to the configured subject and waits for the reply.

Examples:
  mcpbus call initialize
  mcpbus call listTools --yaml
  mcpbus call callTool --tool tavily-extract --args '{"urls":["https://go.dev"]}'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadFile(flags.configFile)
			if err != nil {
				return err
			}
			if cfg.Transport == config.TransportLocal {
				return errors.New("local transport is only reachable in process, use nats or redis")
			}
			setLogLevel(values.StringsCoalesce(flags.logLevel, "WARNING"))

			ctx := cmd.Context()
			tr, err := connect(ctx, cfg)
			if err != nil {
				return err
			}
			defer tr.Close()

			c := client.New(tr, cfg.Subject,
				client.WithClientInfo("mcpbus-cli", version),
				client.WithTimeout(f.timeout),
			)
			return runCall(ctx, cmd.OutOrStdout(), c, mcp.Method(args[0]), f)
		},
	}

	cmd.Flags().StringVar(&f.tool, "tool", "", "Tool name, for callTool")
	cmd.Flags().StringVar(&f.args, "args", "{}", "Tool arguments as JSON, for callTool")
	cmd.Flags().BoolVar(&f.yaml, "yaml", false, "Print the result as YAML")
	cmd.Flags().DurationVar(&f.timeout, "timeout", client.DefaultTimeout, "Time to wait for the reply")
	return cmd
}

func runCall(ctx context.Context, w io.Writer, c *client.Client, method mcp.Method, f *callFlags) error {
	var params any
	switch method {
	case mcp.MethodInitialize:
		params = &mcp.InitializeParams{
			ProtocolVersion: mcp.ProtocolVersion,
			ClientInfo:      &mcp.Implementation{Name: "mcpbus-cli", Version: version},
		}
	case mcp.MethodListTools:
		params = map[string]any{}
	case mcp.MethodCallTool:
		if f.tool == "" {
			return errors.New("--tool is required for callTool")
		}
		if !json.Valid([]byte(f.args)) {
			return errors.Newf("--args must be valid JSON: %s", f.args)
		}
		params = &mcp.CallToolParams{Name: f.tool, Arguments: json.RawMessage(f.args)}
	default:
		// sent as is, the server reports unsupported methods
	}

	resp, err := c.Call(ctx, method, params)
	if err != nil {
		return err
	}
	if resp.Error != nil {
		fmt.Fprintf(w, "%s %s\n",
			color.RedString("error %d (%s):", resp.Error.Code, resp.Error.Kind()),
			resp.Error.Message)
		return errors.Newf("%s failed", method)
	}

	if f.yaml {
		return printYAML(w, resp.Result)
	}

	if method == mcp.MethodCallTool {
		var content []*mcp.Content
		if err = resp.Decode(&content); err != nil {
			return err
		}
		for _, item := range content {
			fmt.Fprintf(w, "%s\n%s\n", color.CyanString("[%s]", item.Type), item.Text())
		}
		return nil
	}

	return printJSON(w, resp.Result)
}

func printJSON(w io.Writer, raw json.RawMessage) error {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return errors.Wrap(err, "failed to decode result")
	}
	js, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.WithStack(err)
	}
	fmt.Fprintln(w, string(js))
	return nil
}

func printYAML(w io.Writer, raw json.RawMessage) error {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return errors.Wrap(err, "failed to decode result")
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return errors.Wrap(err, "failed to encode result")
	}
	return enc.Close()
}
