package mcp

import "time"

const (
	// DefaultServerName is the name reported by initialize when not configured
	DefaultServerName = "tavily-mcp"
	// DefaultServerVersion is the version reported by initialize when not configured
	DefaultServerVersion = "0.1.0"
	// DefaultDrainTimeout bounds how long Run waits for in-flight requests on shutdown
	DefaultDrainTimeout = 30 * time.Second
)

// Option configures the server at build time
type Option interface {
	apply(*options)
}

type options struct {
	name         string
	version      string
	caps         Capabilities
	tools        []Tool
	queue        string
	drainTimeout time.Duration
}

type optionFunc func(*options)

func (f optionFunc) apply(o *options) {
	f(o)
}

// WithName sets the server name reported by initialize
func WithName(name string) Option {
	return optionFunc(func(o *options) {
		o.name = name
	})
}

// WithVersion sets the server version reported by initialize
func WithVersion(version string) Option {
	return optionFunc(func(o *options) {
		o.version = version
	})
}

// WithCapabilities sets the Capability Descriptor
func WithCapabilities(caps Capabilities) Option {
	return optionFunc(func(o *options) {
		o.caps = caps
	})
}

// WithTools registers the tools, in order
func WithTools(tools ...Tool) Option {
	return optionFunc(func(o *options) {
		o.tools = append(o.tools, tools...)
	})
}

// WithQueueGroup joins the subscription to a queue group,
// so several server instances can share the subject.
func WithQueueGroup(queue string) Option {
	return optionFunc(func(o *options) {
		o.queue = queue
	})
}

// WithDrainTimeout sets how long in-flight requests are awaited on shutdown.
// Zero or negative value does not wait.
func WithDrainTimeout(timeout time.Duration) Option {
	return optionFunc(func(o *options) {
		o.drainTimeout = timeout
	})
}
