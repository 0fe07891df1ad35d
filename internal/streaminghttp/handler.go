// Package streaminghttp binds the MCP dispatcher to the streamable HTTP
// transport: POST /mcp for requests, GET /mcp for the SSE stream, DELETE
// /mcp for session teardown, plus health and info endpoints. Each HTTP
// session maps to one isolated session context created at initialize time.
package streaminghttp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/elnormous/contenttype"
	"github.com/google/uuid"

	"github.com/sassoftware/sas-viya-mcp-server/internal/authflow"
	"github.com/sassoftware/sas-viya-mcp-server/internal/jsonrpc"
	"github.com/sassoftware/sas-viya-mcp-server/internal/logctx"
	"github.com/sassoftware/sas-viya-mcp-server/internal/mcp"
	"github.com/sassoftware/sas-viya-mcp-server/internal/server"
	"github.com/sassoftware/sas-viya-mcp-server/internal/sessionctx"
)

var (
	jsonMediaType         = contenttype.NewMediaType("application/json")
	eventStreamMediaType  = contenttype.NewMediaType("text/event-stream")
	eventStreamMediaTypes = []contenttype.MediaType{eventStreamMediaType}
)

const (
	mcpSessionIDHeader  = "Mcp-Session-Id"
	authorizationHeader = "Authorization"
	viyaServerHeader    = "X-Viya-Server"
	refreshTokenHeader  = "X-Refresh-Token"

	maxBodyBytes = 8 << 20

	// keepaliveInterval paces SSE comment frames so intermediaries do not
	// reap the idle stream.
	keepaliveInterval = 15 * time.Second
)

// writeJSONError emits a transport-level rejection before JSON-RPC framing
// is possible. Shape: {"error":{"code":<httpStatus>,"message":"<reason>"}}.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	if ct := w.Header().Get("Content-Type"); ct == "" || ct == jsonMediaType.String() {
		w.Header().Set("Content-Type", jsonMediaType.String())
	}
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{"code": status, "message": msg}})
}

// Handler serves the MCP streamable HTTP transport.
type Handler struct {
	mux      *http.ServeMux
	log      *slog.Logger
	sessions *sessionctx.Manager
	rpc      *server.Handler

	serverName    string
	serverVersion string

	mu      sync.Mutex
	streams map[string]context.CancelFunc
}

// Option configures the Handler.
type Option func(*Handler)

// WithServerIdentity sets the name and version reported by the info
// endpoint.
func WithServerIdentity(name, version string) Option {
	return func(h *Handler) {
		h.serverName = name
		h.serverVersion = version
	}
}

// New builds the transport handler.
func New(log *slog.Logger, sessions *sessionctx.Manager, rpc *server.Handler, opts ...Option) *Handler {
	h := &Handler{
		log:           log,
		sessions:      sessions,
		rpc:           rpc,
		serverName:    "sas-viya-mcp-server",
		serverVersion: "dev",
		streams:       make(map[string]context.CancelFunc),
	}
	for _, opt := range opts {
		opt(h)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", h.handleHealth)
	mux.HandleFunc("GET /{$}", h.handleInfo)
	mux.HandleFunc("POST /mcp", h.handlePost)
	mux.HandleFunc("GET /mcp", h.handleSSE)
	mux.HandleFunc("DELETE /mcp", h.handleDelete)
	mux.HandleFunc("OPTIONS /mcp", h.handleOptions)
	h.mux = mux
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.setCORSHeaders(w)
	ctx := logctx.WithRequestData(r.Context(), &logctx.RequestData{
		Method:     r.Method,
		Path:       r.URL.Path,
		RemoteAddr: r.RemoteAddr,
	})
	h.mux.ServeHTTP(w, r.WithContext(ctx))
}

func (h *Handler) setCORSHeaders(w http.ResponseWriter) {
	hdr := w.Header()
	hdr.Set("Access-Control-Allow-Origin", "*")
	hdr.Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
	hdr.Set("Access-Control-Allow-Headers", strings.Join([]string{
		"Content-Type", "Accept", authorizationHeader, mcpSessionIDHeader,
		"Mcp-Protocol-Version", "Last-Event-ID", viyaServerHeader, refreshTokenHeader,
	}, ", "))
	hdr.Set("Access-Control-Expose-Headers", mcpSessionIDHeader)
}

func (h *Handler) handleOptions(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", jsonMediaType.String())
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":   "ok",
		"sessions": h.sessions.Len(),
	})
}

func (h *Handler) handleInfo(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", jsonMediaType.String())
	_ = json.NewEncoder(w).Encode(map[string]any{
		"name":      h.serverName,
		"version":   h.serverVersion,
		"protocol":  mcp.LatestProtocolVersion,
		"transport": "streamable-http",
		"endpoints": map[string]string{"mcp": "/mcp", "health": "/health"},
	})
}

func (h *Handler) handlePost(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	ctype, err := contenttype.GetMediaType(r)
	if err != nil || !ctype.Matches(jsonMediaType) {
		writeJSONError(w, http.StatusUnsupportedMediaType, "content-type must be application/json")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "failed to read request body")
		return
	}
	trimmed := strings.TrimSpace(string(body))
	if strings.HasPrefix(trimmed, "[") {
		writeJSONError(w, http.StatusBadRequest, "JSON-RPC batch arrays are not supported")
		return
	}

	var msg jsonrpc.AnyMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON-RPC message: "+err.Error())
		return
	}

	// Client-to-server responses have no recipient here; acknowledge them.
	if msg.Type() == "response" {
		w.WriteHeader(http.StatusAccepted)
		return
	}

	req := msg.AsRequest()
	if req.Method == string(mcp.InitializeMethod) {
		h.handleInitializePost(ctx, w, r, req)
		return
	}

	sessID := r.Header.Get(mcpSessionIDHeader)
	if sessID == "" {
		writeJSONError(w, http.StatusBadRequest, "missing "+mcpSessionIDHeader+" header")
		return
	}
	sess, err := h.sessions.Get(sessID)
	if err != nil {
		if errors.Is(err, sessionctx.ErrSessionNotFound) {
			writeJSONError(w, http.StatusNotFound, "session not found")
			return
		}
		h.log.ErrorContext(ctx, "session.load.fail", slog.String("err", err.Error()))
		writeJSONError(w, http.StatusInternalServerError, "failed to load session")
		return
	}

	resp := h.rpc.Handle(ctx, sess, req)
	if resp == nil {
		w.WriteHeader(http.StatusAccepted)
		return
	}
	h.writeResponse(ctx, w, resp)
}

// handleInitializePost creates the session context and binds it to a fresh
// session id returned in the Mcp-Session-Id header. Header overrides are
// captured here, once, so later requests cannot re-point an existing
// session at different credentials.
func (h *Handler) handleInitializePost(ctx context.Context, w http.ResponseWriter, r *http.Request, req *jsonrpc.Request) {
	if req.IsNotification() {
		writeJSONError(w, http.StatusBadRequest, "initialize must be a request")
		return
	}

	sessID := uuid.NewString()
	sess, err := h.sessions.Create(sessID)
	if err != nil {
		h.log.ErrorContext(ctx, "session.create.fail", slog.String("err", err.Error()))
		writeJSONError(w, http.StatusInternalServerError, "failed to create session")
		return
	}

	if err := h.applyHeaderOverrides(sess, r); err != nil {
		_ = h.sessions.Destroy(sessID)
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.log.InfoContext(ctx, "session.create",
		slog.String("session_id", sessID),
		slog.String("auth_flow", string(sess.Flow())),
	)

	resp := h.rpc.Handle(ctx, sess, req)
	w.Header().Set(mcpSessionIDHeader, sessID)
	h.writeResponse(ctx, w, resp)
}

// applyHeaderOverrides lets one client re-target its own session at
// initialize time: a different Viya server, a caller-supplied bearer token,
// or a caller-supplied refresh token.
func (h *Handler) applyHeaderOverrides(sess *sessionctx.Session, r *http.Request) error {
	if host := strings.TrimSpace(r.Header.Get(viyaServerHeader)); host != "" {
		if !strings.HasPrefix(host, "http://") && !strings.HasPrefix(host, "https://") {
			return fmt.Errorf("%s must be an absolute URL", viyaServerHeader)
		}
		sess.SetTarget(sessionctx.TargetServer{Host: host})
	}

	if auth := strings.TrimSpace(r.Header.Get(authorizationHeader)); auth != "" {
		token, ok := strings.CutPrefix(auth, "Bearer ")
		if !ok {
			return fmt.Errorf("%s must use the Bearer scheme", authorizationHeader)
		}
		cred, err := authflow.Bearer(strings.TrimSpace(token))
		if err != nil {
			return err
		}
		sess.SetCredential(cred)
		return nil
	}

	if rt := strings.TrimSpace(r.Header.Get(refreshTokenHeader)); rt != "" {
		cred, err := authflow.Refresh(rt, "", "")
		if err != nil {
			return err
		}
		sess.SetCredential(cred)
	}
	return nil
}

func (h *Handler) writeResponse(ctx context.Context, w http.ResponseWriter, resp *jsonrpc.Response) {
	w.Header().Set("Content-Type", jsonMediaType.String())
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.log.ErrorContext(ctx, "rpc.write.fail", slog.String("err", err.Error()))
	}
}

// handleSSE holds open the server-to-client stream. This server initiates
// no messages of its own, so the stream only carries keepalive comments,
// but clients per the streamable HTTP protocol may open it regardless.
func (h *Handler) handleSSE(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if _, _, err := contenttype.GetAcceptableMediaType(r, eventStreamMediaTypes); err != nil {
		writeJSONError(w, http.StatusNotAcceptable, "accept header must include text/event-stream")
		return
	}

	sessID := r.Header.Get(mcpSessionIDHeader)
	if sessID == "" {
		writeJSONError(w, http.StatusBadRequest, "missing "+mcpSessionIDHeader+" header")
		return
	}
	if _, err := h.sessions.Get(sessID); err != nil {
		writeJSONError(w, http.StatusBadRequest, "unknown session")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		h.log.ErrorContext(ctx, "sse.flusher.missing")
		writeJSONError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	h.registerStream(sessID, cancel)
	defer h.unregisterStream(sessID)

	w.Header().Set("Content-Type", eventStreamMediaType.String())
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	ticker := time.NewTicker(keepaliveInterval)
	defer ticker.Stop()
	for {
		select {
		case <-streamCtx.Done():
			return
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": keepalive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	sessID := r.Header.Get(mcpSessionIDHeader)
	if sessID == "" {
		writeJSONError(w, http.StatusBadRequest, "missing "+mcpSessionIDHeader+" header")
		return
	}
	if err := h.sessions.Destroy(sessID); err != nil {
		writeJSONError(w, http.StatusBadRequest, "unknown session")
		return
	}
	// Close any open stream for the session synchronously.
	h.closeStream(sessID)

	h.log.InfoContext(ctx, "session.delete", slog.String("session_id", sessID))
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) registerStream(sessID string, cancel context.CancelFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if prev, ok := h.streams[sessID]; ok {
		prev()
	}
	h.streams[sessID] = cancel
}

func (h *Handler) unregisterStream(sessID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.streams, sessID)
}

func (h *Handler) closeStream(sessID string) {
	h.mu.Lock()
	cancel, ok := h.streams[sessID]
	h.mu.Unlock()
	if ok {
		cancel()
	}
}
