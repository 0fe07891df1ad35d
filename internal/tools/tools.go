// Package tools declares every tool this server exposes. Each tool is a
// typed descriptor built with toolreg.NewTool; All assembles the complete
// table the registry is constructed from. Grouping follows the TOOLSETS
// configuration: models, data, compute, jobs, catalog, core.
package tools

import (
	"strings"

	"github.com/sassoftware/sas-viya-mcp-server/internal/authflow"
	"github.com/sassoftware/sas-viya-mcp-server/internal/sessionctx"
	"github.com/sassoftware/sas-viya-mcp-server/internal/toolreg"
	"github.com/sassoftware/sas-viya-mcp-server/internal/viya"
)

// Toolset group names.
const (
	GroupModels  = "models"
	GroupData    = "data"
	GroupCompute = "compute"
	GroupJobs    = "jobs"
	GroupCatalog = "catalog"
	GroupCore    = "core"
)

// Deps carries what tool handlers need beyond the session.
type Deps struct {
	Client *viya.Client
	// Version is reported by the environment tool.
	Version string
}

// All returns the complete tool table.
func All(deps Deps) []toolreg.Descriptor {
	var out []toolreg.Descriptor
	out = append(out, modelTools(deps)...)
	out = append(out, dataTools(deps)...)
	out = append(out, computeTools(deps)...)
	out = append(out, jobTools(deps)...)
	out = append(out, catalogTools(deps)...)
	out = append(out, coreTools(deps)...)
	return out
}

// logon adapts the session's resolved logon payload for the Viya client.
// The invoker resolves authentication before any handler runs, so a nil
// payload indicates a wiring bug, not a user error.
func logon(sess *sessionctx.Session) *viya.Logon {
	p := sess.Logon()
	if p == nil {
		p = &authflow.LogonPayload{AuthType: authflow.AuthTypeNone, Host: sess.Target().Host}
	}
	return &viya.Logon{
		Host:      p.Host,
		AuthType:  p.AuthType,
		Token:     p.Token,
		TokenType: p.TokenType,
	}
}

// orDefault clamps paging limits to something reasonable for a chat client.
func limitOrDefault(limit int) int {
	if limit <= 0 {
		return 50
	}
	if limit > 500 {
		return 500
	}
	return limit
}

// casServer picks the explicit argument or the session default.
func casServer(sess *sessionctx.Session, arg string) string {
	if arg != "" {
		return arg
	}
	return sess.Target().CASServer
}

// joinLines renders log or listing output for the text content block.
func joinLines(lines []string) string {
	if len(lines) == 0 {
		return "(no output)"
	}
	return strings.Join(lines, "\n")
}
