package tavily

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/mcpbus/mcp"
	"github.com/effective-security/mcpbus/tools"
	"github.com/effective-security/xlog"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// ExtractToolName is the name of the extract tool
const ExtractToolName = "tavily-extract"

const extractDescription = "A powerful web content extraction tool that retrieves and processes raw content from specified URLs, " +
	"ideal for data collection, content analysis, and research tasks."

// ExtractRequest is the input of the extract tool
type ExtractRequest struct {
	URLs          []string `json:"urls" validate:"required,min=1" jsonschema:"description=List of URLs to extract content from"`
	ExtractDepth  string   `json:"extract_depth,omitempty" validate:"omitempty,oneof=basic advanced" jsonschema:"enum=basic,enum=advanced,default=basic,description=Depth of extraction. Use 'advanced' for LinkedIn urls or if explicitly told to"`
	IncludeImages bool     `json:"include_images,omitempty" jsonschema:"description=Include a list of images extracted from the urls in the response"`
}

// ExtractResponse is the response of the extract API
type ExtractResponse struct {
	Results       []ExtractResult `json:"results"`
	FailedResults []FailedResult  `json:"failed_results,omitempty"`
	ResponseTime  float64         `json:"response_time"`
}

// ExtractResult is the content of a single URL
type ExtractResult struct {
	URL        string   `json:"url"`
	RawContent string   `json:"raw_content"`
	Images     []string `json:"images,omitempty"`
}

// FailedResult is a URL that could not be extracted
type FailedResult struct {
	URL   string `json:"url"`
	Error string `json:"error"`
}

// NewExtract returns the extract tool
func NewExtract(client *Client) (*tools.Tool[ExtractRequest], error) {
	if client == nil {
		return nil, errors.New("tavily client is required")
	}
	return tools.NewRaw(ExtractToolName, extractDescription,
		func(ctx context.Context, req *ExtractRequest, arguments json.RawMessage) ([]*mcp.Content, error) {
			return client.extract(ctx, req, arguments)
		})
}

func (c *Client) extract(ctx context.Context, req *ExtractRequest, arguments json.RawMessage) ([]*mcp.Content, error) {
	body := []byte(arguments)
	if !gjson.GetBytes(body, "extract_depth").Exists() {
		var err error
		if body, err = sjson.SetBytes(body, "extract_depth", "basic"); err != nil {
			return nil, errors.Wrap(err, "failed to set extract_depth")
		}
	}

	logger.ContextKV(ctx, xlog.DEBUG,
		"tool", ExtractToolName,
		"urls", len(req.URLs),
	)

	raw, err := c.Post(ctx, "/extract", body)
	if err != nil {
		return nil, err
	}

	var res ExtractResponse
	if err = json.Unmarshal(raw, &res); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal extract response")
	}
	return []*mcp.Content{mcp.NewTextContent(FormatExtract(&res))}, nil
}

// FormatExtract returns the text rendition of the extract response
func FormatExtract(res *ExtractResponse) string {
	lines := []string{"Extracted Results:"}

	for _, r := range res.Results {
		lines = append(lines,
			"\nURL: "+r.URL,
			"Raw Content: "+r.RawContent,
		)
		if len(r.Images) > 0 {
			lines = append(lines, "Images: "+strings.Join(r.Images, ", "))
		}
	}

	if len(res.FailedResults) > 0 {
		lines = append(lines, "\nFailed Results:")
		for _, f := range res.FailedResults {
			lines = append(lines,
				"\nURL: "+f.URL,
				"Error: "+f.Error,
			)
		}
	}

	lines = append(lines, "\nResponse Time: "+strconv.FormatFloat(res.ResponseTime, 'f', -1, 64)+" seconds")
	return strings.Join(lines, "\n")
}
