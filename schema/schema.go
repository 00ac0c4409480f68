package schema

import (
	"encoding/json"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/cockroachdb/errors"
	"github.com/invopop/jsonschema"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

const defsPrefix = "#/$defs/"

var (
	cache   = make(map[reflect.Type]*Schema)
	cacheMu sync.RWMutex
)

// Schema describes the input of a tool
type Schema struct {
	// Schema is the reflected schema, with the type definitions
	*jsonschema.Schema
	// Parameters is the self-contained object schema,
	// advertised as the tool input schema
	Parameters *jsonschema.Schema
}

// New creates a new schema from the given type
func New(t reflect.Type) (*Schema, error) {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	cacheMu.RLock()
	s, ok := cache[t]
	cacheMu.RUnlock()
	if ok {
		return s, nil
	}

	s, err := buildSchema(t)
	if err != nil {
		return nil, err
	}

	cacheMu.Lock()
	cache[t] = s
	cacheMu.Unlock()

	return s, nil
}

// For returns the schema of T
func For[T any]() (*Schema, error) {
	return New(reflect.TypeOf((*T)(nil)).Elem())
}

func (s *Schema) String() string {
	js, _ := json.MarshalIndent(s.Parameters, "", "  ")
	return string(js)
}

func buildSchema(t reflect.Type) (*Schema, error) {
	if t.Kind() != reflect.Struct {
		return nil, errors.Newf("input must be a struct: %s", t.String())
	}

	schema := JSONSchema(t)
	params, err := ToInputSchema(schema)
	if err != nil {
		return nil, errors.WithMessagef(err, "invalid schema for %s", t.String())
	}

	return &Schema{
		Schema:     schema,
		Parameters: params,
	}, nil
}

// ToInputSchema returns the root object schema with all references resolved
func ToInputSchema(tSchema *jsonschema.Schema) (*jsonschema.Schema, error) {
	// find top level properties
	refID := strings.TrimPrefix(tSchema.Ref, defsPrefix)

	var defs = make(map[string]*jsonschema.Schema)
	var root *jsonschema.Schema

	for name, def := range tSchema.Definitions {
		if name == refID {
			root = def
		} else {
			defs[name] = def
		}
	}
	if root == nil {
		return nil, errors.Newf("definition not found: %s", tSchema.Ref)
	}

	res := &jsonschema.Schema{
		Type:                 root.Type,
		Description:          root.Description,
		Properties:           root.Properties,
		Required:             root.Required,
		AdditionalProperties: root.AdditionalProperties,
	}

	if err := resolveRefs(res.Properties, defs, 0); err != nil {
		return nil, err
	}
	return res, nil
}

// maxDepth bounds the resolution of recursive types
const maxDepth = 16

func resolveRefs(props *orderedmap.OrderedMap[string, *jsonschema.Schema], defs map[string]*jsonschema.Schema, depth int) error {
	if props == nil {
		return nil
	}
	if depth > maxDepth {
		return errors.New("recursive types are not supported")
	}

	for pair := props.Oldest(); pair != nil; pair = pair.Next() {
		child, err := resolve(pair.Value, defs)
		if err != nil {
			return err
		}
		if child.Items != nil {
			if child.Items, err = resolve(child.Items, defs); err != nil {
				return err
			}
			if err = resolveRefs(child.Items.Properties, defs, depth+1); err != nil {
				return err
			}
		}
		if err = resolveRefs(child.Properties, defs, depth+1); err != nil {
			return err
		}
		pair.Value = child
	}
	return nil
}

func resolve(s *jsonschema.Schema, defs map[string]*jsonschema.Schema) (*jsonschema.Schema, error) {
	if s.Ref == "" {
		return s, nil
	}
	name := strings.TrimPrefix(s.Ref, defsPrefix)
	def, ok := defs[name]
	if !ok {
		return nil, errors.Newf("definition not found: %s", s.Ref)
	}
	if s.Description != "" && def.Description == "" {
		cp := *def
		cp.Description = s.Description
		def = &cp
	}
	return def, nil
}

// NameFromRef returns the definition name of the root type
func (s *Schema) NameFromRef() string {
	return strings.TrimPrefix(s.Ref, defsPrefix)
}

// JSONSchema returns the json schema of the type
func JSONSchema(t reflect.Type) *jsonschema.Schema {
	r := new(jsonschema.Reflector)

	// The struct name could be same in different packages,
	// which would produce the same `$ref` for different types.
	// See: https://github.com/invopop/jsonschema/issues/42
	r.Namer = func(t reflect.Type) string {
		name := t.Name()
		if t.Kind() == reflect.Struct {
			fullname := t.PkgPath() + "/" + t.Name()
			name = t.Name() + "@" + strconv.FormatUint(xxhash.Sum64String(fullname), 10)
		}
		return name
	}

	return r.ReflectFromType(t)
}
