package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/sassoftware/sas-viya-mcp-server/internal/mcp"
	"github.com/sassoftware/sas-viya-mcp-server/internal/sessionctx"
	"github.com/sassoftware/sas-viya-mcp-server/internal/toolreg"
)

type sasQueryArgs struct {
	Query   string `json:"query" jsonschema:"minLength=1,description=A single SQL SELECT statement in PROC SQL (FedSQL) dialect\\, without a trailing semicolon"`
	Context string `json:"context,omitempty" jsonschema:"description=Compute context name; defaults to the session's compute context"`
	Limit   int    `json:"limit,omitempty" jsonschema:"description=Maximum number of result rows to print (default 50)"`
}

type runProgramArgs struct {
	Code    string `json:"code" jsonschema:"minLength=1,description=Complete SAS program source to execute"`
	Context string `json:"context,omitempty" jsonschema:"description=Compute context name; defaults to the session's compute context"`
}

type runMacroArgs struct {
	Name      string            `json:"name" jsonschema:"minLength=1,description=Macro name to invoke (without the leading percent sign)"`
	Arguments map[string]string `json:"arguments,omitempty" jsonschema:"description=Keyword arguments passed to the macro"`
	Code      string            `json:"code,omitempty" jsonschema:"description=Optional SAS source defining the macro\\, compiled before the invocation"`
	Context   string            `json:"context,omitempty" jsonschema:"description=Compute context name; defaults to the session's compute context"`
}

func computeContext(sess *sessionctx.Session, arg string) string {
	if arg != "" {
		return arg
	}
	return sess.Target().ComputeContext
}

func computeTools(deps Deps) []toolreg.Descriptor {
	c := deps.Client
	return []toolreg.Descriptor{
		toolreg.NewTool("sas-query",
			"Run a SQL query against SAS data through PROC SQL on a compute session "+
				"and return the listing output. Reference tables as library.table.",
			func(ctx context.Context, sess *sessionctx.Session, args sasQueryArgs) (*mcp.CallToolResult, error) {
				query := strings.TrimSuffix(strings.TrimSpace(args.Query), ";")
				code := fmt.Sprintf("proc sql outobs=%d;\n%s;\nquit;", limitOrDefault(args.Limit), query)
				out, err := c.RunCode(ctx, logon(sess), computeContext(sess, args.Context), code)
				if err != nil {
					return nil, err
				}
				if out.State != "completed" && out.State != "warning" {
					return toolreg.Errorf("query ended in state %q\n\n%s", out.State, joinLines(out.Log)), nil
				}
				return toolreg.TextResult(joinLines(out.Listing)), nil
			}, toolreg.WithGroup(GroupCompute)),

		toolreg.NewTool("run-sas-program",
			"Execute an arbitrary SAS program on a compute session and return its log "+
				"and listing output. Use this for DATA steps, procs, and anything sas-query "+
				"cannot express.",
			func(ctx context.Context, sess *sessionctx.Session, args runProgramArgs) (*mcp.CallToolResult, error) {
				out, err := c.RunCode(ctx, logon(sess), computeContext(sess, args.Context), args.Code)
				if err != nil {
					return nil, err
				}
				text := fmt.Sprintf("State: %s\n\n--- LOG ---\n%s\n\n--- LISTING ---\n%s",
					out.State, joinLines(out.Log), joinLines(out.Listing))
				if out.State != "completed" && out.State != "warning" {
					return toolreg.Errorf("%s", text), nil
				}
				return toolreg.TextResult(text), nil
			}, toolreg.WithGroup(GroupCompute)),

		toolreg.NewTool("run-sas-macro",
			"Invoke a SAS macro on a compute session. Optionally supply source that "+
				"defines the macro; it is compiled before the call.",
			func(ctx context.Context, sess *sessionctx.Session, args runMacroArgs) (*mcp.CallToolResult, error) {
				var sb strings.Builder
				if args.Code != "" {
					sb.WriteString(args.Code)
					sb.WriteString("\n")
				}
				sb.WriteString("%" + args.Name)
				if len(args.Arguments) > 0 {
					var kv []string
					for k, v := range args.Arguments {
						kv = append(kv, fmt.Sprintf("%s=%s", k, v))
					}
					sb.WriteString("(" + strings.Join(kv, ", ") + ")")
				}
				sb.WriteString(";")

				out, err := c.RunCode(ctx, logon(sess), computeContext(sess, args.Context), sb.String())
				if err != nil {
					return nil, err
				}
				if out.State != "completed" && out.State != "warning" {
					return toolreg.Errorf("macro ended in state %q\n\n%s", out.State, joinLines(out.Log)), nil
				}
				text := fmt.Sprintf("--- LOG ---\n%s\n\n--- LISTING ---\n%s", joinLines(out.Log), joinLines(out.Listing))
				return toolreg.TextResult(text), nil
			}, toolreg.WithGroup(GroupCompute)),
	}
}
