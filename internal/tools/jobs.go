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

type listJobsArgs struct {
	Start  int    `json:"start,omitempty" jsonschema:"description=Zero-based index of the first job to return"`
	Limit  int    `json:"limit,omitempty" jsonschema:"description=Maximum number of jobs to return (default 50)"`
	Filter string `json:"filter,omitempty" jsonschema:"description=Optional Viya filter expression such as eq(state\\,'failed')"`
}

type jobIDArgs struct {
	ID string `json:"id" jsonschema:"minLength=1,description=Job instance id"`
}

type findJobDefArgs struct {
	Name string `json:"name" jsonschema:"minLength=1,description=Full or partial job definition name to search for"`
}

type runJobDefArgs struct {
	ID        string         `json:"id" jsonschema:"minLength=1,description=Job definition id to execute"`
	Arguments map[string]any `json:"arguments,omitempty" jsonschema:"description=Argument values keyed by the definition's parameter names"`
}

func jobTools(deps Deps) []toolreg.Descriptor {
	c := deps.Client
	return []toolreg.Descriptor{
		toolreg.NewTool("list-jobs",
			"List recently executed job instances with their states.",
			func(ctx context.Context, sess *sessionctx.Session, args listJobsArgs) (*mcp.CallToolResult, error) {
				col, err := c.ListJobs(ctx, logon(sess), args.Start, limitOrDefault(args.Limit), args.Filter)
				if err != nil {
					return nil, err
				}
				return toolreg.JSONResult(col), nil
			}, toolreg.WithGroup(GroupJobs)),

		toolreg.NewTool("find-job",
			"Fetch one executed job instance by id, including its state, results, and "+
				"log location.",
			func(ctx context.Context, sess *sessionctx.Session, args jobIDArgs) (*mcp.CallToolResult, error) {
				job, err := c.GetJob(ctx, logon(sess), args.ID)
				if err != nil {
					return nil, err
				}
				return toolreg.JSONResult(job), nil
			}, toolreg.WithGroup(GroupJobs)),

		toolreg.NewTool("run-job",
			"Re-run the job definition behind an executed job instance. Prefer "+
				"run-jobdef when you already know the definition id.",
			func(ctx context.Context, sess *sessionctx.Session, args jobIDArgs) (*mcp.CallToolResult, error) {
				l := logon(sess)
				prev, err := c.GetJob(ctx, l, args.ID)
				if err != nil {
					return nil, err
				}
				if prev.JobDefinition == nil || prev.JobDefinition.ID == "" {
					return toolreg.Errorf("job %s does not reference a stored definition", args.ID), nil
				}
				job, err := c.SubmitJob(ctx, l, prev.JobDefinition.ID, nil)
				if err != nil {
					return nil, err
				}
				return toolreg.JSONResult(job), nil
			}, toolreg.WithGroup(GroupJobs)),

		toolreg.NewTool("list-jobdefs",
			"List the stored job definitions that can be executed with run-jobdef.",
			func(ctx context.Context, sess *sessionctx.Session, args listJobsArgs) (*mcp.CallToolResult, error) {
				col, err := c.ListJobDefinitions(ctx, logon(sess), args.Start, limitOrDefault(args.Limit), args.Filter)
				if err != nil {
					return nil, err
				}
				return toolreg.JSONResult(col), nil
			}, toolreg.WithGroup(GroupJobs)),

		toolreg.NewTool("find-jobdef",
			"Find stored job definitions whose name contains the given text, including "+
				"their declared parameters.",
			func(ctx context.Context, sess *sessionctx.Session, args findJobDefArgs) (*mcp.CallToolResult, error) {
				col, err := c.ListJobDefinitions(ctx, logon(sess), 0, 500, "")
				if err != nil {
					return nil, err
				}
				needle := strings.ToLower(args.Name)
				var hits []viya.JobDefinition
				for _, def := range col.Items {
					if strings.Contains(strings.ToLower(def.Name), needle) {
						hits = append(hits, def)
					}
				}
				if len(hits) == 0 {
					return toolreg.TextResult(fmt.Sprintf("No job definitions match %q.", args.Name)), nil
				}
				return toolreg.JSONResult(hits), nil
			}, toolreg.WithGroup(GroupJobs)),

		toolreg.NewTool("run-jobdef",
			"Execute a stored job definition and wait for it to finish. Use find-jobdef "+
				"first to learn the definition id and its parameters.",
			func(ctx context.Context, sess *sessionctx.Session, args runJobDefArgs) (*mcp.CallToolResult, error) {
				l := logon(sess)
				def, err := c.GetJobDefinition(ctx, l, args.ID)
				if err != nil {
					return nil, err
				}
				for _, p := range def.Parameters {
					if p.Required && p.DefaultValue == "" {
						if _, ok := args.Arguments[p.Name]; !ok {
							return toolreg.Errorf("job definition %q requires argument %q", def.Name, p.Name), nil
						}
					}
				}
				job, err := c.SubmitJob(ctx, l, args.ID, args.Arguments)
				if err != nil {
					return nil, err
				}
				sess.SetValue("jobs.last", job.ID)
				if job.State != "completed" {
					res := toolreg.JSONResult(job)
					res.IsError = true
					return res, nil
				}
				return toolreg.JSONResult(job), nil
			}, toolreg.WithGroup(GroupJobs)),
	}
}
