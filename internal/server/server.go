// Package server dispatches decoded JSON-RPC requests to the MCP method
// handlers. It is transport-neutral: both the streaming HTTP binding and the
// stdio loop feed messages through the same Handler with an explicit
// session.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sassoftware/sas-viya-mcp-server/internal/invoke"
	"github.com/sassoftware/sas-viya-mcp-server/internal/jsonrpc"
	"github.com/sassoftware/sas-viya-mcp-server/internal/logctx"
	"github.com/sassoftware/sas-viya-mcp-server/internal/mcp"
	"github.com/sassoftware/sas-viya-mcp-server/internal/sessionctx"
)

// supportedProtocolVersions are the revisions this server can speak, newest
// first.
var supportedProtocolVersions = []string{
	"2025-06-18",
	"2025-03-26",
	"2024-11-05",
}

// Handler answers MCP requests for a session.
type Handler struct {
	log          *slog.Logger
	invoker      *invoke.Invoker
	serverInfo   mcp.ImplementationInfo
	instructions string
}

// Option customizes a Handler.
type Option func(*Handler)

// WithInstructions sets the initialize instructions text surfaced to
// clients.
func WithInstructions(text string) Option {
	return func(h *Handler) { h.instructions = text }
}

// New builds a Handler.
func New(log *slog.Logger, invoker *invoke.Invoker, serverInfo mcp.ImplementationInfo, opts ...Option) *Handler {
	h := &Handler{log: log, invoker: invoker, serverInfo: serverInfo}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Handle dispatches one request. Notifications return a nil response.
func (h *Handler) Handle(ctx context.Context, sess *sessionctx.Session, req *jsonrpc.Request) *jsonrpc.Response {
	ctx = logctx.WithRequestData(ctx, &logctx.RequestData{RequestID: req.ID.String(), Method: req.Method})
	if sess != nil {
		ctx = logctx.WithSessionData(ctx, &logctx.SessionData{SessionID: sess.ID(), AuthFlow: string(sess.Flow())})
	}

	switch mcp.Method(req.Method) {
	case mcp.InitializeMethod:
		return h.handleInitialize(ctx, req)
	case mcp.InitializedNotificationMethod, mcp.CancelledNotificationMethod:
		// Nothing to do; notifications carry no response.
		return nil
	case mcp.PingMethod:
		return h.result(ctx, req, struct{}{})
	case mcp.ToolsListMethod:
		return h.result(ctx, req, mcp.ListToolsResult{Tools: h.invoker.Tools()})
	case mcp.ToolsCallMethod:
		return h.handleToolCall(ctx, sess, req)
	}

	if req.IsNotification() {
		h.log.DebugContext(ctx, "rpc.notification.ignored")
		return nil
	}
	return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeMethodNotFound, fmt.Sprintf("method %q not found", req.Method))
}

func (h *Handler) handleInitialize(ctx context.Context, req *jsonrpc.Request) *jsonrpc.Response {
	var init mcp.InitializeRequest
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &init); err != nil {
			return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInvalidParams, "invalid initialize params")
		}
	}

	version := mcp.LatestProtocolVersion
	for _, v := range supportedProtocolVersions {
		if init.ProtocolVersion == v {
			version = v
			break
		}
	}

	h.log.InfoContext(ctx, "mcp.initialize",
		slog.String("client", init.ClientInfo.Name),
		slog.String("protocol_version", version),
	)
	return h.result(ctx, req, mcp.InitializeResult{
		ProtocolVersion: version,
		Capabilities: mcp.ServerCapabilities{
			Tools: &mcp.ToolsCapability{ListChanged: false},
		},
		ServerInfo:   h.serverInfo,
		Instructions: h.instructions,
	})
}

func (h *Handler) handleToolCall(ctx context.Context, sess *sessionctx.Session, req *jsonrpc.Request) *jsonrpc.Response {
	var call mcp.CallToolRequest
	if err := json.Unmarshal(req.Params, &call); err != nil {
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInvalidParams, "invalid tools/call params")
	}
	if call.Name == "" {
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInvalidParams, "tool name is required")
	}

	res, err := h.invoker.Call(ctx, sess, &call)
	if err != nil {
		if errors.Is(err, invoke.ErrUnknownTool) {
			return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInvalidParams, err.Error())
		}
		h.log.ErrorContext(ctx, "rpc.call.fail", slog.String("err", err.Error()))
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInternalError, "internal error")
	}
	return h.result(ctx, req, res)
}

func (h *Handler) result(ctx context.Context, req *jsonrpc.Request, v any) *jsonrpc.Response {
	resp, err := jsonrpc.NewResultResponse(req.ID, v)
	if err != nil {
		h.log.ErrorContext(ctx, "rpc.encode.fail", slog.String("err", err.Error()))
		return jsonrpc.NewErrorResponse(req.ID, jsonrpc.ErrorCodeInternalError, "internal error")
	}
	return resp
}
