// Package mcp implements a tool-invocation server that speaks a JSON-RPC
// shaped protocol over a publish/subscribe bus.
//
// Requests arrive on a single subject, each carrying a requester-scoped reply
// address. The server parses and validates the envelope, routes it by method
// (initialize, listTools, callTool), executes the tool when asked, and
// publishes exactly one response envelope to the reply address.
//
// Components:
//
//   - Tool: the capability interface implemented by every registered tool
//   - Registry: insertion-ordered, name-unique set of tools, immutable once running
//   - Dispatcher: parse -> route -> execute, converting every failure into an error envelope
//   - replier: binds a request to its reply address and sends at most one response
//   - Server: subscription loop, per-message goroutines, bounded drain on stop
//
// Usage:
//
//	tr, err := natstransport.Connect(natstransport.Config{URL: "nats://localhost:4222"})
//	if err != nil {
//	    return err
//	}
//	defer tr.Close()
//
//	srv, err := mcp.NewServer(tr, "mcp.requests",
//	    mcp.WithName("tavily-mcp"),
//	    mcp.WithVersion("0.1.0"),
//	    mcp.WithCapabilities(mcp.DefaultCapabilities()),
//	    mcp.WithTools(searchTool, extractTool),
//	)
//	if err != nil {
//	    return err
//	}
//	return srv.Run(ctx)
package mcp
