package tools

import (
	"context"

	"github.com/sassoftware/sas-viya-mcp-server/internal/mcp"
	"github.com/sassoftware/sas-viya-mcp-server/internal/sessionctx"
	"github.com/sassoftware/sas-viya-mcp-server/internal/toolreg"
)

type getEnvArgs struct{}

type setContextArgs struct {
	Server         string `json:"server,omitempty" jsonschema:"description=Viya server base URL to target\\, e.g. https://viya.example.com"`
	CASServer      string `json:"casServer,omitempty" jsonschema:"description=CAS server name for data tools"`
	ComputeContext string `json:"computeContext,omitempty" jsonschema:"description=Compute context name for code execution tools"`
}

func coreTools(deps Deps) []toolreg.Descriptor {
	return []toolreg.Descriptor{
		toolreg.NewTool("set-context",
			"Change where this session's tools execute: the Viya server, the CAS server, "+
				"or the compute context. Only the fields you pass change; other sessions are "+
				"unaffected. Changing the server drops the session's cached credentials.",
			func(ctx context.Context, sess *sessionctx.Session, args setContextArgs) (*mcp.CallToolResult, error) {
				if args.Server == "" && args.CASServer == "" && args.ComputeContext == "" {
					return toolreg.Errorf("nothing to change: pass server, casServer, or computeContext"), nil
				}
				sess.SetTarget(sessionctx.TargetServer{
					Host:           args.Server,
					CASServer:      args.CASServer,
					ComputeContext: args.ComputeContext,
				})
				return toolreg.JSONResult(sess.Target()), nil
			}, toolreg.WithGroup(GroupCore)),

		toolreg.NewTool("get-env",
			"Report this session's execution environment: server version, the targeted "+
				"Viya server, CAS server, compute context, authentication flow, and any "+
				"values set by earlier tool calls. Tokens are never included.",
			func(ctx context.Context, sess *sessionctx.Session, args getEnvArgs) (*mcp.CallToolResult, error) {
				target := sess.Target()
				return toolreg.JSONResult(map[string]any{
					"serverVersion":  deps.Version,
					"viyaServer":     target.Host,
					"casServer":      target.CASServer,
					"computeContext": target.ComputeContext,
					"authFlow":       sess.Flow(),
					"values":         sess.Values(),
				}), nil
			}, toolreg.WithGroup(GroupCore)),
	}
}
