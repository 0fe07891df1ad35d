package toolreg

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/sassoftware/sas-viya-mcp-server/internal/mcp"
	"github.com/sassoftware/sas-viya-mcp-server/internal/sessionctx"
)

type echoArgs struct {
	Name  string `json:"name" jsonschema:"minLength=1,description=Name to echo"`
	Count int    `json:"count,omitempty" jsonschema:"description=Repeat count"`
}

func echoTool() Descriptor {
	return NewTool("echo", "Echoes its input.", func(ctx context.Context, sess *sessionctx.Session, args echoArgs) (*mcp.CallToolResult, error) {
		return TextResult(args.Name), nil
	})
}

func TestNewToolSchema(t *testing.T) {
	d := echoTool()
	s := d.InputSchema
	if s.Type != "object" {
		t.Errorf("Type = %q", s.Type)
	}
	if _, ok := s.Properties["name"]; !ok {
		t.Fatalf("properties = %v, missing name", s.Properties)
	}
	if got := s.Properties["name"].Description; got != "Name to echo" {
		t.Errorf("name description = %q", got)
	}
	if len(s.Required) != 1 || s.Required[0] != "name" {
		t.Errorf("required = %v", s.Required)
	}
	if s.AdditionalProperties {
		t.Error("additionalProperties should default to false")
	}
}

type emptyArgs struct{}

func TestNewToolEmptyArgsSchema(t *testing.T) {
	d := NewTool("ping", "", func(ctx context.Context, sess *sessionctx.Session, args emptyArgs) (*mcp.CallToolResult, error) {
		return TextResult("pong"), nil
	})
	s := d.InputSchema
	if s.Type != "object" || len(s.Properties) != 0 || len(s.Required) != 0 {
		t.Errorf("schema = %+v, want empty object", s)
	}
}

func TestNewToolAnonymousArgsSchema(t *testing.T) {
	d := NewTool("anon", "", func(ctx context.Context, sess *sessionctx.Session, args struct {
		Name string `json:"name"`
	}) (*mcp.CallToolResult, error) {
		return TextResult(args.Name), nil
	})
	s := d.InputSchema
	if s.Type != "object" || len(s.Properties) != 0 {
		t.Errorf("schema = %+v, want empty object for unnamed argument type", s)
	}

	res, err := d.Handler(context.Background(), nil, &mcp.CallToolRequest{
		Name:      "anon",
		Arguments: json.RawMessage(`{"name":"x"}`),
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.IsError || res.Content[0].Text != "x" {
		t.Errorf("result = %+v", res)
	}
}

func TestNewToolStrictDecoding(t *testing.T) {
	d := echoTool()
	res, err := d.Handler(context.Background(), nil, &mcp.CallToolRequest{
		Name:      "echo",
		Arguments: json.RawMessage(`{"name":"x","bogus":true}`),
	})
	if err != nil {
		t.Fatal(err)
	}
	if !res.IsError {
		t.Error("unknown argument field accepted")
	}

	res, err = d.Handler(context.Background(), nil, &mcp.CallToolRequest{
		Name:      "echo",
		Arguments: json.RawMessage(`{"name":"hello"}`),
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.IsError || res.Content[0].Text != "hello" {
		t.Errorf("result = %+v", res)
	}
}

func TestRegistryBrandPrefix(t *testing.T) {
	reg, err := NewRegistry("sas-viya", []string{"default"}, []Descriptor{echoTool()})
	if err != nil {
		t.Fatal(err)
	}
	tools := reg.Tools()
	if len(tools) != 1 || tools[0].Name != "sas-viya-echo" {
		t.Fatalf("tools = %+v", tools)
	}
	if _, ok := reg.Lookup("sas-viya-echo"); !ok {
		t.Error("prefixed lookup failed")
	}
	if _, ok := reg.Lookup("echo"); ok {
		t.Error("bare name resolved; only prefixed names are public")
	}
}

func TestRegistryDuplicateName(t *testing.T) {
	if _, err := NewRegistry("b", nil, []Descriptor{echoTool(), echoTool()}); err == nil {
		t.Fatal("duplicate tool name accepted")
	}
}

func TestRegistryToolsetFilter(t *testing.T) {
	core := echoTool()
	core.Group = "core"
	extra := NewTool("extra", "", func(ctx context.Context, sess *sessionctx.Session, args emptyArgs) (*mcp.CallToolResult, error) {
		return TextResult("ok"), nil
	}, WithGroup("admin"))

	reg, err := NewRegistry("b", []string{"core"}, []Descriptor{core, extra})
	if err != nil {
		t.Fatal(err)
	}
	if reg.Len() != 1 {
		t.Fatalf("Len = %d, want core only", reg.Len())
	}
	if _, ok := reg.Lookup("b-extra"); ok {
		t.Error("filtered-out toolset still registered")
	}

	all, err := NewRegistry("b", []string{"default"}, []Descriptor{core, extra})
	if err != nil {
		t.Fatal(err)
	}
	if all.Len() != 2 {
		t.Fatalf("Len = %d, want 2 with default toolset", all.Len())
	}
}

func TestJSONResult(t *testing.T) {
	res := JSONResult(map[string]int{"n": 1})
	if res.IsError {
		t.Fatal("unexpected error result")
	}
	if res.StructuredContent == nil {
		t.Error("structured content missing")
	}
	var decoded map[string]int
	if err := json.Unmarshal([]byte(res.Content[0].Text), &decoded); err != nil {
		t.Fatalf("text content is not JSON: %v", err)
	}
	if decoded["n"] != 1 {
		t.Errorf("decoded = %v", decoded)
	}
}
