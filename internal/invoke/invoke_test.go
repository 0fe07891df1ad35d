package invoke

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"testing"

	"github.com/sassoftware/sas-viya-mcp-server/internal/authflow"
	"github.com/sassoftware/sas-viya-mcp-server/internal/mcp"
	"github.com/sassoftware/sas-viya-mcp-server/internal/sessionctx"
	"github.com/sassoftware/sas-viya-mcp-server/internal/toolreg"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newSession(cred authflow.Credential) *sessionctx.Session {
	tmpl := &sessionctx.Template{
		Credential: cred,
		Target:     sessionctx.TargetServer{Host: "https://viya.example.com"},
	}
	return tmpl.NewSession("s1")
}

// buildInvoker wires an invoker around the given tool handlers, counting
// invocations per tool.
func buildInvoker(t *testing.T, descs ...toolreg.Descriptor) *Invoker {
	t.Helper()
	reg, err := toolreg.NewRegistry("sas-viya", nil, descs)
	if err != nil {
		t.Fatal(err)
	}
	return New(testLogger(), reg, authflow.NewResolver(testLogger()))
}

type noArgs struct{}

func countingTool(name string, calls *int) toolreg.Descriptor {
	return toolreg.NewTool(name, "", func(ctx context.Context, sess *sessionctx.Session, args noArgs) (*mcp.CallToolResult, error) {
		*calls++
		return toolreg.TextResult("ok"), nil
	})
}

func TestCallUnknownTool(t *testing.T) {
	inv := buildInvoker(t)
	_, err := inv.Call(context.Background(), newSession(authflow.None()), &mcp.CallToolRequest{Name: "sas-viya-nope"})
	if !errors.Is(err, ErrUnknownTool) {
		t.Fatalf("err = %v, want ErrUnknownTool", err)
	}
}

func TestCallFatalSessionShortCircuits(t *testing.T) {
	calls := 0
	inv := buildInvoker(t, countingTool("list-models", &calls))
	sess := newSession(authflow.None())
	sess.SetFatal(errors.New("token file unreadable"))

	res, err := inv.Call(context.Background(), sess, &mcp.CallToolRequest{Name: "sas-viya-list-models"})
	if err != nil {
		t.Fatal(err)
	}
	if !res.IsError {
		t.Error("fatal session produced a success result")
	}
	if calls != 0 {
		t.Errorf("handler invoked %d times on a fatal session", calls)
	}
}

func TestCallCodeFlowPending(t *testing.T) {
	calls := 0
	inv := buildInvoker(t, countingTool("list-models", &calls))
	sess := newSession(authflow.Code())

	res, err := inv.Call(context.Background(), sess, &mcp.CallToolRequest{Name: "sas-viya-list-models"})
	if err != nil {
		t.Fatal(err)
	}
	if !res.IsError {
		t.Error("pending authentication should be an error result")
	}
	if !strings.Contains(res.Content[0].Text, "Authentication is required") {
		t.Errorf("text = %q", res.Content[0].Text)
	}
	if calls != 0 {
		t.Errorf("handler invoked %d times before authentication", calls)
	}
}

func TestCallResolvesAndCachesLogon(t *testing.T) {
	calls := 0
	inv := buildInvoker(t, countingTool("list-models", &calls))
	cred, err := authflow.Bearer("abc123")
	if err != nil {
		t.Fatal(err)
	}
	sess := newSession(cred)

	res, err := inv.Call(context.Background(), sess, &mcp.CallToolRequest{Name: "sas-viya-list-models"})
	if err != nil {
		t.Fatal(err)
	}
	if res.IsError {
		t.Fatalf("result = %+v", res)
	}
	if calls != 1 {
		t.Errorf("handler calls = %d", calls)
	}

	logon := sess.Logon()
	if logon == nil {
		t.Fatal("logon not cached on the session")
	}
	if logon.AuthType != authflow.AuthTypeServer || logon.Token != "abc123" || logon.TokenType != "Bearer" {
		t.Errorf("logon = %+v", logon)
	}
}

func TestCallAuthFailureIsErrorResult(t *testing.T) {
	calls := 0
	inv := buildInvoker(t, countingTool("list-models", &calls))
	sess := newSession(authflow.Credential{Flow: authflow.FlowBearer})

	res, err := inv.Call(context.Background(), sess, &mcp.CallToolRequest{Name: "sas-viya-list-models"})
	if err != nil {
		t.Fatal(err)
	}
	if !res.IsError {
		t.Error("missing credentials should produce an error result")
	}
	if calls != 0 {
		t.Errorf("handler invoked %d times without credentials", calls)
	}
}

func TestCallHandlerErrorWrapped(t *testing.T) {
	failing := toolreg.NewTool("model-info", "", func(ctx context.Context, sess *sessionctx.Session, args noArgs) (*mcp.CallToolResult, error) {
		return nil, errors.New("backend unavailable")
	})
	inv := buildInvoker(t, failing)

	res, err := inv.Call(context.Background(), newSession(authflow.None()), &mcp.CallToolRequest{Name: "sas-viya-model-info"})
	if err != nil {
		t.Fatal(err)
	}
	if !res.IsError || !strings.Contains(res.Content[0].Text, "backend unavailable") {
		t.Errorf("result = %+v", res)
	}
}

func TestCallHandlerPanicRecovered(t *testing.T) {
	panicking := toolreg.NewTool("model-info", "", func(ctx context.Context, sess *sessionctx.Session, args noArgs) (*mcp.CallToolResult, error) {
		panic("boom")
	})
	inv := buildInvoker(t, panicking)

	res, err := inv.Call(context.Background(), newSession(authflow.None()), &mcp.CallToolRequest{Name: "sas-viya-model-info"})
	if err != nil {
		t.Fatal(err)
	}
	if !res.IsError {
		t.Error("panic should surface as an error result")
	}
}
