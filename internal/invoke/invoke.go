// Package invoke wraps every tool call in the shared execution pipeline:
// sessions poisoned by a startup failure short-circuit, authentication is
// resolved before the handler runs, and handler panics become tool-level
// error results instead of taking the transport down.
package invoke

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sassoftware/sas-viya-mcp-server/internal/authflow"
	"github.com/sassoftware/sas-viya-mcp-server/internal/logctx"
	"github.com/sassoftware/sas-viya-mcp-server/internal/mcp"
	"github.com/sassoftware/sas-viya-mcp-server/internal/sessionctx"
	"github.com/sassoftware/sas-viya-mcp-server/internal/toolreg"
)

// ErrUnknownTool reports a call to a name the registry does not hold. The
// transport maps it to a protocol error rather than a tool result.
var ErrUnknownTool = errors.New("invoke: unknown tool")

// authGuidance is returned for code-flow sessions that have not completed
// authentication yet.
const authGuidance = "Authentication is required before tools can run. " +
	"Sign in to the SAS Viya deployment and supply the resulting access token, then retry."

// Invoker executes tool calls against sessions.
type Invoker struct {
	log      *slog.Logger
	registry *toolreg.Registry
	resolver *authflow.Resolver
}

// New builds an Invoker.
func New(log *slog.Logger, registry *toolreg.Registry, resolver *authflow.Resolver) *Invoker {
	return &Invoker{log: log, registry: registry, resolver: resolver}
}

// Tools returns the advertised tool list.
func (inv *Invoker) Tools() []mcp.Tool {
	return inv.registry.Tools()
}

// Call runs one tool call. Tool and authentication failures come back as
// error results; only unknown names and context cancellation surface as
// errors.
func (inv *Invoker) Call(ctx context.Context, sess *sessionctx.Session, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	desc, ok := inv.registry.Lookup(req.Name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTool, req.Name)
	}
	ctx = logctx.WithToolCallData(ctx, &logctx.ToolCallData{ToolName: req.Name})

	if err := sess.Fatal(); err != nil {
		return toolreg.Errorf("server is not usable: %v", err), nil
	}

	logon, err := inv.resolveLogon(ctx, sess)
	if err != nil {
		if errors.Is(err, authflow.ErrAuthenticationPending) {
			return toolreg.Errorf("%s", authGuidance), nil
		}
		inv.log.WarnContext(ctx, "tool.auth.fail", slog.String("err", err.Error()))
		return toolreg.Errorf("authentication failed: %v", err), nil
	}
	sess.SetLogon(logon)

	inv.log.InfoContext(ctx, "tool.call")
	res, err := inv.safeInvoke(ctx, desc, sess, req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		inv.log.WarnContext(ctx, "tool.call.fail", slog.String("err", err.Error()))
		return toolreg.Errorf("%s failed: %v", req.Name, err), nil
	}
	return res, nil
}

func (inv *Invoker) resolveLogon(ctx context.Context, sess *sessionctx.Session) (*authflow.LogonPayload, error) {
	cred := sess.Credential()
	return inv.resolver.Resolve(ctx, sess.Target().Host, &cred, sess.Logon())
}

// safeInvoke confines handler panics to the call that caused them.
func (inv *Invoker) safeInvoke(ctx context.Context, desc toolreg.Descriptor, sess *sessionctx.Session, req *mcp.CallToolRequest) (res *mcp.CallToolResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			inv.log.ErrorContext(ctx, "tool.call.panic", slog.Any("panic", r))
			res = toolreg.Errorf("%s failed unexpectedly", req.Name)
			err = nil
		}
	}()
	return desc.Handler(ctx, sess, req)
}
