package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"reflect"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/mcpbus/mcp"
	"github.com/effective-security/mcpbus/schema"
	"github.com/go-playground/validator/v10"
)

// ErrFailedUnmarshalInput is returned when the arguments do not match the input type
var ErrFailedUnmarshalInput = errors.New("failed to unmarshal input: check the schema and try again")

// ErrInvalidInput is returned when the arguments fail validation
var ErrInvalidInput = errors.New("invalid input")

// Func runs the tool with the decoded input
type Func[I any] func(ctx context.Context, input *I) ([]*mcp.Content, error)

// RawFunc runs the tool with the decoded input and the original arguments
type RawFunc[I any] func(ctx context.Context, input *I, arguments json.RawMessage) ([]*mcp.Content, error)

// Tool is a mcp.Tool with typed input
type Tool[I any] struct {
	name        string
	description string
	schema      *schema.Schema
	run         RawFunc[I]
	validate    *validator.Validate
}

// ensure Tool implements mcp.Tool
var _ mcp.Tool = (*Tool[struct{}])(nil)

// New returns a tool with input of type I, which must be a struct
func New[I any](name, description string, run Func[I]) (*Tool[I], error) {
	if run == nil {
		return nil, errors.Newf("tool %s: run function is required", name)
	}
	return NewRaw(name, description, func(ctx context.Context, input *I, _ json.RawMessage) ([]*mcp.Content, error) {
		return run(ctx, input)
	})
}

// NewRaw returns a tool that also receives the arguments as sent by the client
func NewRaw[I any](name, description string, run RawFunc[I]) (*Tool[I], error) {
	if name == "" {
		return nil, errors.New("tool name is required")
	}
	if run == nil {
		return nil, errors.Newf("tool %s: run function is required", name)
	}

	sc, err := schema.For[I]()
	if err != nil {
		return nil, errors.WithMessagef(err, "tool %s", name)
	}

	return &Tool[I]{
		name:        name,
		description: description,
		schema:      sc,
		run:         run,
		validate:    newValidator(),
	}, nil
}

// Name returns the name of the tool
func (t *Tool[I]) Name() string {
	return t.name
}

// Description returns the description of the tool
func (t *Tool[I]) Description() string {
	return t.description
}

// InputSchema returns the JSON schema of I
func (t *Tool[I]) InputSchema() any {
	return t.schema.Parameters
}

// Call decodes and validates the arguments, then runs the tool
func (t *Tool[I]) Call(ctx context.Context, arguments json.RawMessage) ([]*mcp.Content, error) {
	input, err := t.Decode(arguments)
	if err != nil {
		return nil, err
	}
	return t.run(ctx, input, arguments)
}

// Decode returns the validated input from the raw arguments
func (t *Tool[I]) Decode(arguments json.RawMessage) (*I, error) {
	input := new(I)
	if len(bytes.TrimSpace(arguments)) > 0 {
		if err := json.Unmarshal(arguments, input); err != nil {
			return nil, errors.WithDetail(ErrFailedUnmarshalInput, err.Error())
		}
	}
	if err := t.validate.Struct(input); err != nil {
		return nil, validationError(err)
	}
	return input, nil
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// report the argument names as the client sees them
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return errors.Mark(errors.Wrap(err, "invalid input"), ErrInvalidInput)
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fe.Field()+" is required")
		case "oneof":
			msgs = append(msgs, fe.Field()+" must be one of: "+fe.Param())
		case "min", "max", "gte", "lte", "gt", "lt":
			msgs = append(msgs, fe.Field()+" must be "+fe.Tag()+" "+fe.Param())
		default:
			msgs = append(msgs, fe.Field()+" failed on "+fe.Tag())
		}
	}
	return errors.Mark(errors.Newf("invalid input: %s", strings.Join(msgs, ", ")), ErrInvalidInput)
}
