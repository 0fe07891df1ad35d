package viya

import (
	"context"
	"net/url"
	"time"
)

// JobDefinition is a stored jobDefinitions definition.
type JobDefinition struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Type        string         `json:"type,omitempty"`
	Parameters  []JobParameter `json:"parameters,omitempty"`
}

// JobParameter is one declared parameter of a job definition.
type JobParameter struct {
	Name         string `json:"name"`
	Type         string `json:"type,omitempty"`
	Required     bool   `json:"required,omitempty"`
	DefaultValue string `json:"defaultValue,omitempty"`
}

// ExecutedJob is a jobExecution job instance.
type ExecutedJob struct {
	ID            string            `json:"id"`
	State         string            `json:"state,omitempty"`
	SubmittedBy   string            `json:"submittedByApplication,omitempty"`
	CreationTime  string            `json:"creationTimeStamp,omitempty"`
	ElapsedTime   float64           `json:"elapsedTime,omitempty"`
	Results       map[string]string `json:"results,omitempty"`
	LogLocation   string            `json:"logLocation,omitempty"`
	JobDefinition *JobDefinition    `json:"jobRequest,omitempty"`
	Error         map[string]any    `json:"error,omitempty"`
}

// ListJobDefinitions pages through stored job definitions.
func (c *Client) ListJobDefinitions(ctx context.Context, logon *Logon, start, limit int, filter string) (*Collection[JobDefinition], error) {
	var out Collection[JobDefinition]
	if err := c.get(ctx, logon, "/jobDefinitions/definitions", pageQuery(start, limit, filter), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetJobDefinition fetches one definition by id.
func (c *Client) GetJobDefinition(ctx context.Context, logon *Logon, id string) (*JobDefinition, error) {
	var out JobDefinition
	if err := c.get(ctx, logon, "/jobDefinitions/definitions/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListJobs pages through jobExecution job instances.
func (c *Client) ListJobs(ctx context.Context, logon *Logon, start, limit int, filter string) (*Collection[ExecutedJob], error) {
	var out Collection[ExecutedJob]
	if err := c.get(ctx, logon, "/jobExecution/jobs", pageQuery(start, limit, filter), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetJob fetches one job instance by id.
func (c *Client) GetJob(ctx context.Context, logon *Logon, id string) (*ExecutedJob, error) {
	var out ExecutedJob
	if err := c.get(ctx, logon, "/jobExecution/jobs/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SubmitJob runs a stored job definition with the given arguments and polls
// it to completion. The caller bounds the wait through ctx.
func (c *Client) SubmitJob(ctx context.Context, logon *Logon, definitionID string, arguments map[string]any) (*ExecutedJob, error) {
	body := map[string]any{
		"jobDefinitionUri": "/jobDefinitions/definitions/" + definitionID,
	}
	if len(arguments) > 0 {
		body["arguments"] = arguments
	}

	var job ExecutedJob
	if err := c.post(ctx, logon, "/jobExecution/jobs", "application/vnd.sas.job.execution.job.request+json", body, &job); err != nil {
		return nil, err
	}

	for !jobDone(job.State) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Second):
		}
		next, err := c.GetJob(ctx, logon, job.ID)
		if err != nil {
			return nil, err
		}
		job = *next
	}
	return &job, nil
}
