package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/sassoftware/sas-viya-mcp-server/internal/mcp"
	"github.com/sassoftware/sas-viya-mcp-server/internal/sessionctx"
	"github.com/sassoftware/sas-viya-mcp-server/internal/toolreg"
	"github.com/sassoftware/sas-viya-mcp-server/internal/viya"
)

type listLibrariesArgs struct {
	Server string `json:"server,omitempty" jsonschema:"description=CAS server name; defaults to the session's CAS server"`
	Start  int    `json:"start,omitempty" jsonschema:"description=Zero-based index of the first library to return"`
	Limit  int    `json:"limit,omitempty" jsonschema:"description=Maximum number of libraries to return (default 50)"`
}

type findLibraryArgs struct {
	Name   string `json:"name" jsonschema:"minLength=1,description=Full or partial library name to search for"`
	Server string `json:"server,omitempty" jsonschema:"description=CAS server name; defaults to the session's CAS server"`
}

type listTablesArgs struct {
	Library string `json:"library" jsonschema:"minLength=1,description=CAS library (caslib) name"`
	Server  string `json:"server,omitempty" jsonschema:"description=CAS server name; defaults to the session's CAS server"`
	Start   int    `json:"start,omitempty" jsonschema:"description=Zero-based index of the first table to return"`
	Limit   int    `json:"limit,omitempty" jsonschema:"description=Maximum number of tables to return (default 50)"`
}

type findTableArgs struct {
	Name    string `json:"name" jsonschema:"minLength=1,description=Full or partial table name to search for"`
	Library string `json:"library" jsonschema:"minLength=1,description=CAS library (caslib) to search in"`
	Server  string `json:"server,omitempty" jsonschema:"description=CAS server name; defaults to the session's CAS server"`
}

type tableArgs struct {
	Library string `json:"library" jsonschema:"minLength=1,description=CAS library (caslib) name"`
	Table   string `json:"table" jsonschema:"minLength=1,description=Table name"`
	Server  string `json:"server,omitempty" jsonschema:"description=CAS server name; defaults to the session's CAS server"`
}

type readTableArgs struct {
	Library string `json:"library" jsonschema:"minLength=1,description=CAS library (caslib) name"`
	Table   string `json:"table" jsonschema:"minLength=1,description=Table name"`
	Server  string `json:"server,omitempty" jsonschema:"description=CAS server name; defaults to the session's CAS server"`
	Start   int    `json:"start,omitempty" jsonschema:"description=Zero-based index of the first row to return"`
	Limit   int    `json:"limit,omitempty" jsonschema:"description=Maximum number of rows to return (default 50\\, capped at 500)"`
}

func dataTools(deps Deps) []toolreg.Descriptor {
	c := deps.Client
	return []toolreg.Descriptor{
		toolreg.NewTool("list-libraries",
			"List the CAS libraries (caslibs) on a CAS server. Libraries hold the tables "+
				"available for reading and analysis.",
			func(ctx context.Context, sess *sessionctx.Session, args listLibrariesArgs) (*mcp.CallToolResult, error) {
				col, err := c.ListCaslibs(ctx, logon(sess), casServer(sess, args.Server), args.Start, limitOrDefault(args.Limit), "")
				if err != nil {
					return nil, err
				}
				return toolreg.JSONResult(col), nil
			}, toolreg.WithGroup(GroupData)),

		toolreg.NewTool("find-library",
			"Find CAS libraries whose name contains the given text.",
			func(ctx context.Context, sess *sessionctx.Session, args findLibraryArgs) (*mcp.CallToolResult, error) {
				col, err := c.ListCaslibs(ctx, logon(sess), casServer(sess, args.Server), 0, 500, "")
				if err != nil {
					return nil, err
				}
				needle := strings.ToLower(args.Name)
				var hits []viya.Caslib
				for _, lib := range col.Items {
					if strings.Contains(strings.ToLower(lib.Name), needle) {
						hits = append(hits, lib)
					}
				}
				if len(hits) == 0 {
					return toolreg.TextResult(fmt.Sprintf("No libraries match %q.", args.Name)), nil
				}
				return toolreg.JSONResult(hits), nil
			}, toolreg.WithGroup(GroupData)),

		toolreg.NewTool("list-tables",
			"List the tables in a CAS library.",
			func(ctx context.Context, sess *sessionctx.Session, args listTablesArgs) (*mcp.CallToolResult, error) {
				col, err := c.ListTables(ctx, logon(sess), casServer(sess, args.Server), args.Library, args.Start, limitOrDefault(args.Limit), "")
				if err != nil {
					return nil, err
				}
				return toolreg.JSONResult(col), nil
			}, toolreg.WithGroup(GroupData)),

		toolreg.NewTool("find-table",
			"Find tables in a CAS library whose name contains the given text.",
			func(ctx context.Context, sess *sessionctx.Session, args findTableArgs) (*mcp.CallToolResult, error) {
				col, err := c.ListTables(ctx, logon(sess), casServer(sess, args.Server), args.Library, 0, 500, "")
				if err != nil {
					return nil, err
				}
				needle := strings.ToLower(args.Name)
				var hits []viya.CASTable
				for _, tbl := range col.Items {
					if strings.Contains(strings.ToLower(tbl.Name), needle) {
						hits = append(hits, tbl)
					}
				}
				if len(hits) == 0 {
					return toolreg.TextResult(fmt.Sprintf("No tables in %s match %q.", args.Library, args.Name)), nil
				}
				return toolreg.JSONResult(hits), nil
			}, toolreg.WithGroup(GroupData)),

		toolreg.NewTool("table-info",
			"Describe a CAS table: row and column counts plus the full column metadata "+
				"(names, types, formats). Call this before reading or querying a table.",
			func(ctx context.Context, sess *sessionctx.Session, args tableArgs) (*mcp.CallToolResult, error) {
				l := logon(sess)
				srv := casServer(sess, args.Server)
				tbl, err := c.GetTable(ctx, l, srv, args.Library, args.Table)
				if err != nil {
					return nil, err
				}
				cols, err := c.ListColumns(ctx, l, srv, args.Library, args.Table, 0, 500)
				if err != nil {
					return nil, err
				}
				return toolreg.JSONResult(map[string]any{"table": tbl, "columns": cols.Items}), nil
			}, toolreg.WithGroup(GroupData)),

		toolreg.NewTool("read-table",
			"Read rows from a CAS table. Returns cell values in column order; use "+
				"table-info for the column names. Page with start and limit for large tables.",
			func(ctx context.Context, sess *sessionctx.Session, args readTableArgs) (*mcp.CallToolResult, error) {
				rows, err := c.ReadRows(ctx, logon(sess), casServer(sess, args.Server), args.Library, args.Table, args.Start, limitOrDefault(args.Limit))
				if err != nil {
					return nil, err
				}
				return toolreg.JSONResult(rows), nil
			}, toolreg.WithGroup(GroupData)),
	}
}
