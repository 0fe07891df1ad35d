package viya

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// ComputeContext is a server-side execution context definition.
type ComputeContext struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// ComputeSession is a live SAS compute session.
type ComputeSession struct {
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	State string `json:"state,omitempty"`
}

// ComputeJob is one code submission within a session.
type ComputeJob struct {
	ID    string `json:"id"`
	State string `json:"state,omitempty"`
}

// logLine is one line of job log or listing output.
type logLine struct {
	Type string `json:"type"`
	Line string `json:"line"`
}

// JobOutput collects the results of a completed code submission.
type JobOutput struct {
	State   string
	Log     []string
	Listing []string
}

// Job completion states.
const (
	jobCompleted = "completed"
	jobError     = "error"
	jobFailed    = "failed"
	jobCanceled  = "canceled"
	jobWarning   = "warning"
	jobTimedOut  = "timedOut"
)

// ListComputeContexts pages through available compute contexts.
func (c *Client) ListComputeContexts(ctx context.Context, logon *Logon, start, limit int, filter string) (*Collection[ComputeContext], error) {
	var out Collection[ComputeContext]
	if err := c.get(ctx, logon, "/compute/contexts", pageQuery(start, limit, filter), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// FindComputeContext resolves a context name to its definition.
func (c *Client) FindComputeContext(ctx context.Context, logon *Logon, name string) (*ComputeContext, error) {
	filter := fmt.Sprintf("eq(name,%q)", name)
	col, err := c.ListComputeContexts(ctx, logon, 0, 1, filter)
	if err != nil {
		return nil, err
	}
	if len(col.Items) == 0 {
		return nil, fmt.Errorf("viya: compute context %q not found", name)
	}
	return &col.Items[0], nil
}

// CreateComputeSession starts a session under the named context.
func (c *Client) CreateComputeSession(ctx context.Context, logon *Logon, contextName string) (*ComputeSession, error) {
	cc, err := c.FindComputeContext(ctx, logon, contextName)
	if err != nil {
		return nil, err
	}
	var out ComputeSession
	p := "/compute/contexts/" + url.PathEscape(cc.ID) + "/sessions"
	if err := c.post(ctx, logon, p, "application/json", map[string]any{}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteComputeSession ends a session.
func (c *Client) DeleteComputeSession(ctx context.Context, logon *Logon, sessionID string) error {
	return c.delete(ctx, logon, "/compute/sessions/"+url.PathEscape(sessionID))
}

// SubmitCode submits SAS source to a session as a job.
func (c *Client) SubmitCode(ctx context.Context, logon *Logon, sessionID, code string) (*ComputeJob, error) {
	body := map[string]any{"code": strings.Split(code, "\n")}
	var out ComputeJob
	p := "/compute/sessions/" + url.PathEscape(sessionID) + "/jobs"
	if err := c.post(ctx, logon, p, "application/json", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// JobState fetches a job's current state string.
func (c *Client) JobState(ctx context.Context, logon *Logon, sessionID, jobID string) (string, error) {
	var state string
	p := fmt.Sprintf("/compute/sessions/%s/jobs/%s/state", url.PathEscape(sessionID), url.PathEscape(jobID))
	if err := c.get(ctx, logon, p, nil, &state); err != nil {
		return "", err
	}
	return strings.TrimSpace(state), nil
}

func jobDone(state string) bool {
	switch state {
	case jobCompleted, jobError, jobFailed, jobCanceled, jobWarning, jobTimedOut:
		return true
	}
	return false
}

// jobLines pages through a job's log or listing resource.
func (c *Client) jobLines(ctx context.Context, logon *Logon, sessionID, jobID, resource string) ([]string, error) {
	var lines []string
	start := 0
	for {
		var page Collection[logLine]
		p := fmt.Sprintf("/compute/sessions/%s/jobs/%s/%s", url.PathEscape(sessionID), url.PathEscape(jobID), resource)
		if err := c.get(ctx, logon, p, pageQuery(start, 1000, ""), &page); err != nil {
			return nil, err
		}
		for _, l := range page.Items {
			lines = append(lines, l.Line)
		}
		if len(page.Items) < 1000 {
			return lines, nil
		}
		start += len(page.Items)
	}
}

// RunCode executes SAS source synchronously: create a session under the
// named context, submit, poll to completion, collect log and listing, and
// tear the session down. The caller bounds the wait through ctx.
func (c *Client) RunCode(ctx context.Context, logon *Logon, contextName, code string) (*JobOutput, error) {
	sess, err := c.CreateComputeSession(ctx, logon, contextName)
	if err != nil {
		return nil, err
	}
	defer func() {
		// Session teardown must not inherit a canceled ctx.
		cleanup, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
		defer cancel()
		if err := c.DeleteComputeSession(cleanup, logon, sess.ID); err != nil {
			c.log.WarnContext(ctx, "viya.compute.session.delete.fail", "session_id", sess.ID, "err", err.Error())
		}
	}()

	job, err := c.SubmitCode(ctx, logon, sess.ID, code)
	if err != nil {
		return nil, err
	}

	state := job.State
	for !jobDone(state) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Second):
		}
		state, err = c.JobState(ctx, logon, sess.ID, job.ID)
		if err != nil {
			return nil, err
		}
	}

	out := &JobOutput{State: state}
	if out.Log, err = c.jobLines(ctx, logon, sess.ID, job.ID, "log"); err != nil {
		return nil, err
	}
	if out.Listing, err = c.jobLines(ctx, logon, sess.ID, job.ID, "listing"); err != nil {
		return nil, err
	}
	return out, nil
}
