package main

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/mcpbus/config"
	"github.com/effective-security/mcpbus/mcp/transport"
	"github.com/effective-security/mcpbus/mcp/transport/localtransport"
	"github.com/effective-security/mcpbus/mcp/transport/natstransport"
	"github.com/effective-security/mcpbus/mcp/transport/redistransport"
	"github.com/effective-security/x/values"
	"github.com/effective-security/xlog"
)

// connect returns the transport selected by the configuration
func connect(ctx context.Context, cfg *config.Config) (transport.Transport, error) {
	logger.KV(xlog.INFO, "transport", cfg.Transport)

	switch cfg.Transport {
	case config.TransportNATS:
		return natstransport.Connect(natstransport.Config{
			URL:  cfg.NATS.URL,
			Name: values.StringsCoalesce(cfg.NATS.Name, cfg.Server.Name),
		})
	case config.TransportRedis:
		var opts []redistransport.Option
		if cfg.Redis.Prefix != "" {
			opts = append(opts, redistransport.WithPrefix(cfg.Redis.Prefix))
		}
		return redistransport.Connect(ctx, cfg.Redis.URL, opts...)
	case config.TransportLocal:
		return localtransport.New(), nil
	default:
		return nil, errors.Newf("unsupported transport: %q", cfg.Transport)
	}
}
