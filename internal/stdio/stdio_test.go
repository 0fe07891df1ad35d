package stdio

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"strings"
	"testing"

	"github.com/sassoftware/sas-viya-mcp-server/internal/authflow"
	"github.com/sassoftware/sas-viya-mcp-server/internal/invoke"
	"github.com/sassoftware/sas-viya-mcp-server/internal/mcp"
	"github.com/sassoftware/sas-viya-mcp-server/internal/server"
	"github.com/sassoftware/sas-viya-mcp-server/internal/sessionctx"
	"github.com/sassoftware/sas-viya-mcp-server/internal/toolreg"
)

type echoArgs struct {
	Text string `json:"text"`
}

// runScript feeds newline-delimited input through a Runner and returns the
// emitted output lines.
func runScript(t *testing.T, input string) []string {
	t.Helper()
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	echo := toolreg.NewTool("echo", "", func(ctx context.Context, sess *sessionctx.Session, args echoArgs) (*mcp.CallToolResult, error) {
		return toolreg.TextResult(args.Text), nil
	})
	reg, err := toolreg.NewRegistry("sas-viya", nil, []toolreg.Descriptor{echo})
	if err != nil {
		t.Fatal(err)
	}
	inv := invoke.New(log, reg, authflow.NewResolver(log))
	rpc := server.New(log, inv, mcp.ImplementationInfo{Name: "sas-viya-mcp", Version: "test"})

	tmpl := &sessionctx.Template{Credential: authflow.None(), Target: sessionctx.TargetServer{Host: "https://viya.example.com"}}
	sess := tmpl.NewSession("stdio")

	var out bytes.Buffer
	r := New(log, rpc, sess, strings.NewReader(input), &out)
	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run error: %v", err)
	}

	var lines []string
	sc := bufio.NewScanner(&out)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	return lines
}

func TestRunSession(t *testing.T) {
	input := strings.Join([]string{
		`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2025-06-18","clientInfo":{"name":"t","version":"0"},"capabilities":{}}}`,
		`{"jsonrpc":"2.0","method":"notifications/initialized"}`,
		`{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"sas-viya-echo","arguments":{"text":"hi"}}}`,
	}, "\n") + "\n"

	lines := runScript(t, input)
	if len(lines) != 2 {
		t.Fatalf("output lines = %d (%v), notifications must not produce responses", len(lines), lines)
	}

	var init struct {
		Result mcp.InitializeResult `json:"result"`
	}
	if err := json.Unmarshal([]byte(lines[0]), &init); err != nil {
		t.Fatal(err)
	}
	if init.Result.ServerInfo.Name != "sas-viya-mcp" {
		t.Errorf("serverInfo = %+v", init.Result.ServerInfo)
	}

	var call struct {
		Result mcp.CallToolResult `json:"result"`
	}
	if err := json.Unmarshal([]byte(lines[1]), &call); err != nil {
		t.Fatal(err)
	}
	if call.Result.IsError || call.Result.Content[0].Text != "hi" {
		t.Errorf("call result = %+v", call.Result)
	}
}

func TestRunMalformedLine(t *testing.T) {
	lines := runScript(t, "this is not json\n{\"jsonrpc\":\"2.0\",\"id\":9,\"method\":\"ping\"}\n")
	if len(lines) != 2 {
		t.Fatalf("output lines = %d (%v)", len(lines), lines)
	}

	var errResp struct {
		Error *struct {
			Code int `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal([]byte(lines[0]), &errResp); err != nil {
		t.Fatal(err)
	}
	if errResp.Error == nil || errResp.Error.Code != int(jsonrpcParseError) {
		t.Errorf("first line = %s", lines[0])
	}
	// Parse errors have no request to take an id from; the member is still
	// required, as null.
	if !strings.Contains(lines[0], `"id":null`) {
		t.Errorf("first line = %s, missing null id", lines[0])
	}

	// The stream keeps going after a bad line.
	if !strings.Contains(lines[1], `"id":9`) {
		t.Errorf("second line = %s", lines[1])
	}
}

const jsonrpcParseError = -32700

func TestRunSkipsBlankLinesAndResponses(t *testing.T) {
	input := "\n" +
		`{"jsonrpc":"2.0","id":1,"result":{}}` + "\n" +
		`{"jsonrpc":"2.0","id":2,"method":"ping"}` + "\n"
	lines := runScript(t, input)
	if len(lines) != 1 {
		t.Fatalf("output lines = %d (%v)", len(lines), lines)
	}
	if !strings.Contains(lines[0], `"id":2`) {
		t.Errorf("line = %s", lines[0])
	}
}
