// Package stdio runs the MCP server over newline-delimited JSON-RPC on a
// byte stream, the transport local clients spawn the binary with. One
// implicit session spans the life of the process; logs must go to stderr
// because stdout carries the wire protocol.
package stdio

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/sassoftware/sas-viya-mcp-server/internal/jsonrpc"
	"github.com/sassoftware/sas-viya-mcp-server/internal/server"
	"github.com/sassoftware/sas-viya-mcp-server/internal/sessionctx"
)

// maxLineBytes bounds a single JSON-RPC message on the wire.
const maxLineBytes = 8 << 20

// Runner pumps messages between a byte stream and the dispatcher.
type Runner struct {
	log  *slog.Logger
	rpc  *server.Handler
	sess *sessionctx.Session
	in   io.Reader
	out  io.Writer
}

// New builds a Runner for one process-wide session.
func New(log *slog.Logger, rpc *server.Handler, sess *sessionctx.Session, in io.Reader, out io.Writer) *Runner {
	return &Runner{log: log, rpc: rpc, sess: sess, in: in, out: out}
}

// Run reads newline-delimited messages until EOF or ctx cancellation.
// Malformed lines produce JSON-RPC error responses rather than ending the
// stream.
func (r *Runner) Run(ctx context.Context) error {
	sc := bufio.NewScanner(r.in)
	sc.Buffer(make([]byte, 64*1024), maxLineBytes)

	lines := make(chan []byte)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		for sc.Scan() {
			line := make([]byte, len(sc.Bytes()))
			copy(line, sc.Bytes())
			select {
			case lines <- line:
			case <-ctx.Done():
				return
			}
		}
		scanErr <- sc.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-scanErr:
					if err != nil {
						return fmt.Errorf("stdio: read: %w", err)
					}
				default:
				}
				return nil
			}
			if len(line) == 0 {
				continue
			}
			r.handleLine(ctx, line)
		}
	}
}

func (r *Runner) handleLine(ctx context.Context, line []byte) {
	var msg jsonrpc.AnyMessage
	if err := json.Unmarshal(line, &msg); err != nil {
		r.log.WarnContext(ctx, "stdio.parse.fail", slog.String("err", err.Error()))
		r.write(ctx, jsonrpc.NewErrorResponse(nil, jsonrpc.ErrorCodeParseError, "parse error"))
		return
	}
	// Responses from the client have no pending server request to match.
	if msg.Type() == "response" {
		return
	}

	resp := r.rpc.Handle(ctx, r.sess, msg.AsRequest())
	if resp != nil {
		r.write(ctx, resp)
	}
}

func (r *Runner) write(ctx context.Context, resp *jsonrpc.Response) {
	b, err := json.Marshal(resp)
	if err != nil {
		r.log.ErrorContext(ctx, "stdio.encode.fail", slog.String("err", err.Error()))
		return
	}
	b = append(b, '\n')
	if _, err := r.out.Write(b); err != nil {
		r.log.ErrorContext(ctx, "stdio.write.fail", slog.String("err", err.Error()))
	}
}
