package metricskey

import "github.com/effective-security/metrics"

// Stats
var (
	// StatsRequestsReceived is base for counter metric for total requests received
	StatsRequestsReceived = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_requests_received",
		Help:         "stats_requests_received provides total requests received",
		RequiredTags: []string{"method"},
	}

	StatsRequestsFailed = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_requests_failed",
		Help:         "stats_requests_failed provides total requests answered with error",
		RequiredTags: []string{"method", "kind"},
	}

	StatsRepliesPublished = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_replies_published",
		Help:         "stats_replies_published provides total responses published to reply address",
		RequiredTags: []string{"status"},
	}

	StatsRepliesFailed = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_replies_failed",
		Help:         "stats_replies_failed provides total responses failed to publish",
		RequiredTags: []string{"status"},
	}

	StatsRepliesDropped = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_replies_dropped",
		Help:         "stats_replies_dropped provides total responses dropped without reply address",
		RequiredTags: []string{"status"},
	}

	StatsToolCallsSucceeded = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_tool_calls_succeeded",
		Help:         "stats_tool_calls_succeeded provides total tool calls succeeded",
		RequiredTags: []string{"tool"},
	}

	StatsToolCallsFailed = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_tool_calls_failed",
		Help:         "stats_tool_calls_failed provides total tool calls failed",
		RequiredTags: []string{"tool"},
	}

	StatsToolCallsNotFound = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_tool_calls_not_found",
		Help:         "stats_tool_calls_not_found provides total tool calls not found",
		RequiredTags: []string{"tool"},
	}
)

// Perf
var (
	PerfRequest = metrics.Describe{
		Type:         metrics.TypeSample,
		Name:         "perf_request",
		Help:         "perf_request provides duration of request dispatch",
		RequiredTags: []string{"method"},
	}

	PerfToolCall = metrics.Describe{
		Type:         metrics.TypeSample,
		Name:         "perf_tool_call",
		Help:         "perf_tool_call provides duration of tool call",
		RequiredTags: []string{"tool"},
	}
)

// Metrics returns slice of metrics from this repo
// keep sorted by name
var Metrics = []*metrics.Describe{
	&PerfRequest,
	&PerfToolCall,
	&StatsRepliesDropped,
	&StatsRepliesFailed,
	&StatsRepliesPublished,
	&StatsRequestsFailed,
	&StatsRequestsReceived,
	&StatsToolCallsFailed,
	&StatsToolCallsNotFound,
	&StatsToolCallsSucceeded,
}
