package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/effective-security/mcpbus/config"
	"github.com/effective-security/mcpbus/mcp"
	"github.com/effective-security/mcpbus/mcp/transport"
	"github.com/effective-security/mcpbus/tools/echo"
	"github.com/effective-security/mcpbus/tools/tavily"
	"github.com/effective-security/x/values"
	"github.com/effective-security/xlog"
	"github.com/spf13/cobra"
)

func serveCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the tools on the configured subject",
		Long: `Serve subscribes to the configured subject and answers initialize,
listTools and callTool requests until SIGINT or SIGTERM.

On shutdown, in-flight requests are given drain_timeout to complete.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(flags.configFile)
			if err != nil {
				return err
			}
			setLogLevel(values.StringsCoalesce(flags.logLevel, cfg.LogLevel))

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return serve(ctx, cfg)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	tr, err := connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := tr.Close(); err != nil {
			logger.KV(xlog.ERROR, "reason", "close_transport", "err", err.Error())
		}
	}()

	srv, err := newServer(cfg, tr)
	if err != nil {
		return err
	}

	logger.KV(xlog.INFO,
		"status", "starting",
		"version", version,
		"api_key", tavily.KeyPrefix(cfg.Tavily.APIKey),
	)
	err = srv.Run(ctx)
	logger.KV(xlog.INFO, "status", "stopped")
	return err
}

// newServer returns the server with the configured tools
func newServer(cfg *config.Config, tr transport.Transport) (*mcp.Server, error) {
	list, err := tavily.New(cfg.Tavily)
	if err != nil {
		return nil, err
	}
	if cfg.EnableEcho {
		e, err := echo.New()
		if err != nil {
			return nil, err
		}
		list = append(list, e)
	}

	drain, err := cfg.GetDrainTimeout()
	if err != nil {
		return nil, err
	}

	return mcp.NewServer(tr, cfg.Subject,
		mcp.WithName(cfg.Server.Name),
		mcp.WithVersion(cfg.Server.Version),
		mcp.WithCapabilities(mcp.DefaultCapabilities()),
		mcp.WithTools(list...),
		mcp.WithQueueGroup(cfg.QueueGroup),
		mcp.WithDrainTimeout(drain),
	)
}
