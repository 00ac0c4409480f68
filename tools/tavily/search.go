package tavily

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/cockroachdb/errors"
	tavilyModels "github.com/diverged/tavily-go/models"
	"github.com/effective-security/mcpbus/mcp"
	"github.com/effective-security/mcpbus/tools"
	"github.com/effective-security/xlog"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// SearchToolName is the name of the search tool
const SearchToolName = "tavily-search"

const searchDescription = "A powerful web search tool that provides comprehensive, real-time results using Tavily's AI search engine. " +
	"Returns relevant web content with customizable parameters for result count, content type, and domain filtering. " +
	"Ideal for gathering current information, news, and detailed web content analysis."

// SearchRequest is the input of the search tool
type SearchRequest struct {
	Query                    string   `json:"query" validate:"required" jsonschema:"description=Search query"`
	SearchDepth              string   `json:"search_depth,omitempty" validate:"omitempty,oneof=basic advanced" jsonschema:"enum=basic,enum=advanced,default=basic,description=The depth of the search. It can be 'basic' or 'advanced'"`
	Topic                    string   `json:"topic,omitempty" validate:"omitempty,oneof=general news" jsonschema:"enum=general,enum=news,default=general,description=The category of the search. This will determine which of the agents will be used for the search"`
	Days                     int      `json:"days,omitempty" validate:"omitempty,min=1" jsonschema:"default=3,description=The number of days back from the current date to include in the search results. Only available for the 'news' topic"`
	TimeRange                string   `json:"time_range,omitempty" validate:"omitempty,oneof=day week month year d w m y" jsonschema:"enum=day,enum=week,enum=month,enum=year,enum=d,enum=w,enum=m,enum=y,description=The time range back from the current date to include in the search results"`
	MaxResults               int      `json:"max_results,omitempty" validate:"omitempty,min=5,max=20" jsonschema:"default=10,minimum=5,maximum=20,description=The maximum number of search results to return"`
	IncludeAnswer            bool     `json:"include_answer,omitempty" jsonschema:"description=Include a short answer to the query generated from the results"`
	IncludeImages            bool     `json:"include_images,omitempty" jsonschema:"description=Include a list of query-related images in the response"`
	IncludeImageDescriptions bool     `json:"include_image_descriptions,omitempty" jsonschema:"description=Include a list of query-related images and their descriptions in the response"`
	IncludeRawContent        bool     `json:"include_raw_content,omitempty" jsonschema:"description=Include the cleaned and parsed HTML content of each search result"`
	IncludeDomains           []string `json:"include_domains,omitempty" jsonschema:"description=A list of domains to specifically include in the search results"`
	ExcludeDomains           []string `json:"exclude_domains,omitempty" jsonschema:"description=A list of domains to specifically exclude from the search results"`
}

// SearchResponse is the response of the search API
type SearchResponse struct {
	Query        string         `json:"query,omitempty"`
	Answer       string         `json:"answer,omitempty"`
	Results      []SearchResult `json:"results"`
	ResponseTime float64        `json:"response_time,omitempty"`
}

// SearchResult is a single search hit
type SearchResult struct {
	tavilyModels.SearchResult
	RawContent string `json:"raw_content,omitempty"`
}

// NewSearch returns the search tool
func NewSearch(client *Client) (*tools.Tool[SearchRequest], error) {
	if client == nil {
		return nil, errors.New("tavily client is required")
	}
	return tools.NewRaw(SearchToolName, searchDescription,
		func(ctx context.Context, req *SearchRequest, arguments json.RawMessage) ([]*mcp.Content, error) {
			return client.search(ctx, req, arguments)
		})
}

func (c *Client) search(ctx context.Context, req *SearchRequest, arguments json.RawMessage) ([]*mcp.Content, error) {
	body, err := searchBody(arguments)
	if err != nil {
		return nil, err
	}

	logger.ContextKV(ctx, xlog.DEBUG,
		"tool", SearchToolName,
		"query", req.Query,
		"topic", gjson.GetBytes(body, "topic").String(),
	)

	raw, err := c.Post(ctx, "/search", body)
	if err != nil {
		return nil, err
	}

	var res SearchResponse
	if err = json.Unmarshal(raw, &res); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal search response")
	}
	return []*mcp.Content{mcp.NewTextContent(FormatSearch(&res))}, nil
}

// searchBody returns the request body with the defaults applied
func searchBody(arguments json.RawMessage) ([]byte, error) {
	body := []byte(arguments)
	if isEmpty(body) {
		body = []byte("{}")
	}
	if !gjson.GetBytes(body, "topic").Exists() &&
		strings.Contains(strings.ToLower(gjson.GetBytes(body, "query").String()), "news") {
		var err error
		if body, err = sjson.SetBytes(body, "topic", "news"); err != nil {
			return nil, errors.Wrap(err, "failed to set topic")
		}
	}
	return body, nil
}

// FormatSearch returns the text rendition of the search response
func FormatSearch(res *SearchResponse) string {
	var lines []string

	if res.Answer != "" {
		lines = append(lines, "Answer: "+res.Answer, "\nSources:")
		for _, r := range res.Results {
			lines = append(lines, "- "+r.Title+": "+r.URL)
		}
		lines = append(lines, "")
	}

	lines = append(lines, "Detailed Results:")
	for _, r := range res.Results {
		lines = append(lines,
			"\nTitle: "+r.Title,
			"URL: "+r.URL,
			"Content: "+r.Content,
		)
		if r.RawContent != "" {
			lines = append(lines, "Raw Content: "+r.RawContent)
		}
	}

	return strings.Join(lines, "\n")
}

func isEmpty(body []byte) bool {
	s := strings.TrimSpace(string(body))
	return s == "" || s == "null"
}
