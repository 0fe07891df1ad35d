package tools

import (
	"context"

	"github.com/sassoftware/sas-viya-mcp-server/internal/mcp"
	"github.com/sassoftware/sas-viya-mcp-server/internal/sessionctx"
	"github.com/sassoftware/sas-viya-mcp-server/internal/toolreg"
)

type searchAssetsArgs struct {
	Query string `json:"query" jsonschema:"minLength=1,description=Free-text search terms"`
	Start int    `json:"start,omitempty" jsonschema:"description=Zero-based index of the first hit to return"`
	Limit int    `json:"limit,omitempty" jsonschema:"description=Maximum number of hits to return (default 50)"`
}

func catalogTools(deps Deps) []toolreg.Descriptor {
	c := deps.Client
	return []toolreg.Descriptor{
		toolreg.NewTool("search-assets",
			"Search the information catalog for assets (tables, reports, models, and "+
				"other governed objects) matching free text. Useful when you do not know "+
				"which library or service holds something.",
			func(ctx context.Context, sess *sessionctx.Session, args searchAssetsArgs) (*mcp.CallToolResult, error) {
				col, err := c.SearchCatalog(ctx, logon(sess), args.Query, args.Start, limitOrDefault(args.Limit))
				if err != nil {
					return nil, err
				}
				return toolreg.JSONResult(col), nil
			}, toolreg.WithGroup(GroupCatalog)),
	}
}
