// Package toolreg builds the tool registry: typed tool constructors with
// reflected input schemas, brand-prefixed public names, and toolset group
// filtering. The registry is assembled once at startup and read-only after.
package toolreg

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"

	"github.com/invopop/jsonschema"

	"github.com/sassoftware/sas-viya-mcp-server/internal/mcp"
	"github.com/sassoftware/sas-viya-mcp-server/internal/sessionctx"
)

// Handler executes one tool call against one session. Protocol-level
// failures are returned as errors; tool-level failures belong in the result
// with IsError set.
type Handler func(ctx context.Context, sess *sessionctx.Session, req *mcp.CallToolRequest) (*mcp.CallToolResult, error)

// Descriptor pairs a tool's wire description with its handler. Name is the
// bare tool name; the registry applies the brand prefix.
type Descriptor struct {
	Name        string
	Description string
	// Group is the toolset the tool belongs to, used by TOOLSETS filtering.
	Group       string
	InputSchema mcp.ToolInputSchema
	Handler     Handler
}

// ToolOption configures NewTool.
type ToolOption func(*toolConfig)

type toolConfig struct {
	group           string
	allowAdditional bool
}

// WithGroup assigns the tool to a toolset group.
func WithGroup(group string) ToolOption {
	return func(c *toolConfig) { c.group = group }
}

// WithAllowAdditionalProperties accepts unknown argument fields. The default
// rejects them so misspelled arguments fail loudly.
func WithAllowAdditionalProperties() ToolOption {
	return func(c *toolConfig) { c.allowAdditional = true }
}

// NewTool builds a Descriptor from a typed argument struct. The input schema
// is reflected from A's json and jsonschema struct tags; arguments are
// decoded strictly unless additional properties are allowed.
func NewTool[A any](name, description string, fn func(ctx context.Context, sess *sessionctx.Session, args A) (*mcp.CallToolResult, error), opts ...ToolOption) Descriptor {
	cfg := toolConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	return Descriptor{
		Name:        name,
		Description: description,
		Group:       cfg.group,
		InputSchema: reflectInputSchema[A](cfg.allowAdditional),
		Handler: func(ctx context.Context, sess *sessionctx.Session, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			var a A
			if len(req.Arguments) > 0 {
				if cfg.allowAdditional {
					if err := json.Unmarshal(req.Arguments, &a); err != nil {
						return Errorf("invalid arguments: %v", err), nil
					}
				} else {
					dec := json.NewDecoder(bytes.NewReader(req.Arguments))
					dec.DisallowUnknownFields()
					if err := dec.Decode(&a); err != nil {
						return Errorf("invalid arguments: %v", err), nil
					}
				}
			}
			return fn(ctx, sess, a)
		},
	}
}

// reflectInputSchema reflects a Go type A into the simplified wire schema.
// Anonymous argument types cannot be reflected with ExpandedStruct (the
// reflector keys expanded definitions by type name) and yield the empty
// object schema instead.
func reflectInputSchema[A any](allowAdditional bool) mcp.ToolInputSchema {
	empty := mcp.ToolInputSchema{
		Type:                 "object",
		Properties:           map[string]mcp.SchemaProperty{},
		AdditionalProperties: allowAdditional,
	}

	t := reflect.TypeFor[A]()
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct || t.Name() == "" {
		return empty
	}

	r := &jsonschema.Reflector{
		DoNotReference:            true,
		ExpandedStruct:            true,
		AllowAdditionalProperties: allowAdditional,
	}
	s := r.Reflect(new(A))

	if s == nil || s.Type != "object" {
		return empty
	}

	props := make(map[string]mcp.SchemaProperty)
	if s.Properties != nil {
		for el := s.Properties.Oldest(); el != nil; el = el.Next() {
			props[el.Key] = toProperty(el.Value)
		}
	}
	var required []string
	if len(s.Required) > 0 {
		required = append(required, s.Required...)
	}
	return mcp.ToolInputSchema{
		Type:                 "object",
		Properties:           props,
		Required:             required,
		AdditionalProperties: allowAdditional,
	}
}

func toProperty(s *jsonschema.Schema) mcp.SchemaProperty {
	if s == nil {
		return mcp.SchemaProperty{}
	}
	p := mcp.SchemaProperty{
		Type:        s.Type,
		Description: s.Description,
		Default:     s.Default,
	}
	if len(s.Enum) > 0 {
		p.Enum = s.Enum
	}
	if s.Type == "array" && s.Items != nil {
		item := toProperty(s.Items)
		p.Items = &item
	}
	if s.Type == "object" && s.Properties != nil {
		m := make(map[string]mcp.SchemaProperty, s.Properties.Len())
		for el := s.Properties.Oldest(); el != nil; el = el.Next() {
			m[el.Key] = toProperty(el.Value)
		}
		p.Properties = m
	}
	return p
}

// Registry is the assembled tool table keyed by public (brand-prefixed)
// name.
type Registry struct {
	brand string
	tools []mcp.Tool
	byName map[string]Descriptor
}

// NewRegistry applies the brand prefix and toolset filter to the descriptor
// table. A toolsets list containing "default" (or an empty list) enables
// every group; otherwise a tool registers only when its group is listed.
// Duplicate public names are construction errors.
func NewRegistry(brand string, toolsets []string, descriptors []Descriptor) (*Registry, error) {
	enabled := make(map[string]bool, len(toolsets))
	all := len(toolsets) == 0
	for _, ts := range toolsets {
		if ts == "default" {
			all = true
		}
		enabled[ts] = true
	}

	r := &Registry{
		brand:  brand,
		byName: make(map[string]Descriptor, len(descriptors)),
	}
	for _, d := range descriptors {
		if d.Name == "" || d.Handler == nil {
			return nil, fmt.Errorf("toolreg: descriptor %q missing name or handler", d.Name)
		}
		if !all && !enabled[d.Group] {
			continue
		}
		public := brand + "-" + d.Name
		if _, dup := r.byName[public]; dup {
			return nil, fmt.Errorf("toolreg: duplicate tool name %q", public)
		}
		r.byName[public] = d
		r.tools = append(r.tools, mcp.Tool{
			Name:        public,
			Description: d.Description,
			InputSchema: d.InputSchema,
		})
	}
	sort.Slice(r.tools, func(i, j int) bool { return r.tools[i].Name < r.tools[j].Name })
	return r, nil
}

// Tools returns the advertised tool list.
func (r *Registry) Tools() []mcp.Tool {
	out := make([]mcp.Tool, len(r.tools))
	copy(out, r.tools)
	return out
}

// Lookup resolves a public tool name to its descriptor.
func (r *Registry) Lookup(public string) (Descriptor, bool) {
	d, ok := r.byName[public]
	return d, ok
}

// Len reports the number of registered tools.
func (r *Registry) Len() int { return len(r.byName) }
