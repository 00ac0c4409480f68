package mcp

import (
	"encoding/json"

	"github.com/cockroachdb/errors"
)

// ContentType is the discriminator of the Content union
type ContentType string

const (
	// ContentTypeText is plain text content
	ContentTypeText ContentType = "text"
)

// TextContent is the text variant of Content
type TextContent struct {
	Text string `json:"text"`
}

// Content is a single item returned by a tool call.
// Exactly one variant is set, according to Type.
type Content struct {
	Type ContentType

	TextContent *TextContent
}

// NewTextContent returns text content
func NewTextContent(text string) *Content {
	return &Content{
		Type:        ContentTypeText,
		TextContent: &TextContent{Text: text},
	}
}

// Text returns the text of a text content, or empty string
func (c *Content) Text() string {
	if c == nil || c.TextContent == nil {
		return ""
	}
	return c.TextContent.Text
}

type contentWire struct {
	Type ContentType `json:"type"`
	Text *string     `json:"text,omitempty"`
}

// MarshalJSON implements json.Marshaler
func (c Content) MarshalJSON() ([]byte, error) {
	switch c.Type {
	case ContentTypeText:
		if c.TextContent == nil {
			return nil, errors.New("text content is missing")
		}
		return json.Marshal(contentWire{Type: c.Type, Text: &c.TextContent.Text})
	default:
		return nil, errors.Errorf("unsupported content type: %q", c.Type)
	}
}

// UnmarshalJSON implements json.Unmarshaler
func (c *Content) UnmarshalJSON(b []byte) error {
	var w contentWire
	if err := json.Unmarshal(b, &w); err != nil {
		return errors.Wrap(err, "failed to unmarshal content")
	}
	switch w.Type {
	case ContentTypeText:
		if w.Text == nil {
			return errors.New("text content is missing")
		}
		c.Type = w.Type
		c.TextContent = &TextContent{Text: *w.Text}
		return nil
	default:
		return errors.Errorf("unsupported content type: %q", w.Type)
	}
}
