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

type listModelsArgs struct {
	Start  int    `json:"start,omitempty" jsonschema:"description=Zero-based index of the first module to return"`
	Limit  int    `json:"limit,omitempty" jsonschema:"description=Maximum number of modules to return (default 50)"`
	Filter string `json:"filter,omitempty" jsonschema:"description=Optional Viya filter expression such as contains(name\\,'credit')"`
}

type moduleNameArgs struct {
	Module string `json:"module" jsonschema:"minLength=1,description=Module id or name as published to the micro analytic score service"`
}

type findModelArgs struct {
	Name string `json:"name" jsonschema:"minLength=1,description=Full or partial module name to search for"`
}

type modelScoreArgs struct {
	Module string         `json:"module" jsonschema:"minLength=1,description=Module id or name to score with"`
	Step   string         `json:"step,omitempty" jsonschema:"description=Step to execute (default score)"`
	Inputs map[string]any `json:"inputs" jsonschema:"description=Input values keyed by the step's input names"`
}

type scrInfoArgs struct {
	Endpoint string `json:"endpoint" jsonschema:"minLength=1,description=Base URL of the SAS Container Runtime endpoint"`
}

type scrScoreArgs struct {
	Endpoint string         `json:"endpoint" jsonschema:"minLength=1,description=Base URL of the SAS Container Runtime endpoint"`
	Module   string         `json:"module" jsonschema:"minLength=1,description=Module name published in the container"`
	Inputs   map[string]any `json:"inputs" jsonschema:"description=Input values keyed by variable name"`
}

type devaScoreArgs struct {
	Module   string         `json:"module" jsonschema:"minLength=1,description=Module name to score with"`
	Endpoint string         `json:"endpoint,omitempty" jsonschema:"description=Optional container endpoint URL; when omitted the module is scored on the Viya server"`
	Inputs   map[string]any `json:"inputs" jsonschema:"description=Input values keyed by variable name"`
}

func modelTools(deps Deps) []toolreg.Descriptor {
	c := deps.Client
	return []toolreg.Descriptor{
		toolreg.NewTool("list-models",
			"List the decision and scoring modules published to the micro analytic score service. "+
				"Use this first to discover what can be scored.",
			func(ctx context.Context, sess *sessionctx.Session, args listModelsArgs) (*mcp.CallToolResult, error) {
				col, err := c.ListModules(ctx, logon(sess), args.Start, limitOrDefault(args.Limit), args.Filter)
				if err != nil {
					return nil, err
				}
				return toolreg.JSONResult(col), nil
			}, toolreg.WithGroup(GroupModels)),

		toolreg.NewTool("find-model",
			"Find published score modules whose name contains the given text. "+
				"Returns matching modules with their ids.",
			func(ctx context.Context, sess *sessionctx.Session, args findModelArgs) (*mcp.CallToolResult, error) {
				col, err := c.ListModules(ctx, logon(sess), 0, 500, "")
				if err != nil {
					return nil, err
				}
				needle := strings.ToLower(args.Name)
				var hits []viya.Module
				for _, m := range col.Items {
					if strings.Contains(strings.ToLower(m.Name), needle) || strings.Contains(strings.ToLower(m.ID), needle) {
						hits = append(hits, m)
					}
				}
				if len(hits) == 0 {
					return toolreg.TextResult(fmt.Sprintf("No published modules match %q.", args.Name)), nil
				}
				return toolreg.JSONResult(hits), nil
			}, toolreg.WithGroup(GroupModels)),

		toolreg.NewTool("model-info",
			"Describe a published score module: its metadata plus the input and output "+
				"signature of its score step. Call this before scoring to learn the required inputs.",
			func(ctx context.Context, sess *sessionctx.Session, args moduleNameArgs) (*mcp.CallToolResult, error) {
				l := logon(sess)
				mod, err := c.GetModule(ctx, l, args.Module)
				if err != nil {
					return nil, err
				}
				step, err := c.GetModuleStep(ctx, l, args.Module, "score")
				if err != nil {
					// Some modules publish execute instead of score.
					step, err = c.GetModuleStep(ctx, l, args.Module, "execute")
					if err != nil {
						return toolreg.JSONResult(mod), nil
					}
				}
				return toolreg.JSONResult(map[string]any{"module": mod, "step": step}), nil
			}, toolreg.WithGroup(GroupModels)),

		toolreg.NewTool("model-score",
			"Execute a published score module with the given inputs and return its outputs. "+
				"Input names must match the step signature from model-info exactly.",
			func(ctx context.Context, sess *sessionctx.Session, args modelScoreArgs) (*mcp.CallToolResult, error) {
				step := args.Step
				if step == "" {
					step = "score"
				}
				out, err := c.ExecuteStep(ctx, logon(sess), args.Module, step, args.Inputs)
				if err != nil {
					return nil, err
				}
				sess.SetValue("models.last", args.Module)
				return toolreg.JSONResult(out), nil
			}, toolreg.WithGroup(GroupModels)),

		toolreg.NewTool("scr-info",
			"Describe a standalone SAS Container Runtime scoring endpoint: the modules it "+
				"serves and their metadata. The endpoint is a full URL, separate from the Viya server.",
			func(ctx context.Context, sess *sessionctx.Session, args scrInfoArgs) (*mcp.CallToolResult, error) {
				info, err := c.GetSCRInfo(ctx, logon(sess), args.Endpoint)
				if err != nil {
					return nil, err
				}
				return toolreg.JSONResult(info), nil
			}, toolreg.WithGroup(GroupModels)),

		toolreg.NewTool("scr-score",
			"Score against a SAS Container Runtime endpoint. Use scr-info first to learn "+
				"the module names and expected inputs.",
			func(ctx context.Context, sess *sessionctx.Session, args scrScoreArgs) (*mcp.CallToolResult, error) {
				out, err := c.ScoreSCR(ctx, logon(sess), args.Endpoint, args.Module, args.Inputs)
				if err != nil {
					return nil, err
				}
				return toolreg.JSONResult(out), nil
			}, toolreg.WithGroup(GroupModels)),

		toolreg.NewTool("deva-score",
			"Score a decision or analytic model, choosing the best route automatically: a "+
				"direct container endpoint when one is given, otherwise the module published on "+
				"the Viya server.",
			func(ctx context.Context, sess *sessionctx.Session, args devaScoreArgs) (*mcp.CallToolResult, error) {
				if args.Endpoint != "" {
					out, err := c.ScoreSCR(ctx, logon(sess), args.Endpoint, args.Module, args.Inputs)
					if err != nil {
						return nil, err
					}
					return toolreg.JSONResult(out), nil
				}
				out, err := c.ExecuteStep(ctx, logon(sess), args.Module, "score", args.Inputs)
				if err != nil {
					return nil, err
				}
				return toolreg.JSONResult(out), nil
			}, toolreg.WithGroup(GroupModels)),
	}
}
