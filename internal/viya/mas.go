package viya

import (
	"context"
	"fmt"
	"net/url"
)

// Module is a published microanalytic score module.
type Module struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Description  string   `json:"description,omitempty"`
	Scope        string   `json:"scope,omitempty"`
	Revision     int      `json:"revision,omitempty"`
	CreatedBy    string   `json:"createdBy,omitempty"`
	CreationTime string   `json:"creationTimeStamp,omitempty"`
	StepIDs      []string `json:"stepIds,omitempty"`
}

// StepParameter describes one input or output of a module step.
type StepParameter struct {
	Name string `json:"name"`
	Type string `json:"type"`
	Dim  int    `json:"dim,omitempty"`
	Size int    `json:"size,omitempty"`
}

// ModuleStep is one callable step of a module, usually "score".
type ModuleStep struct {
	ID      string          `json:"id"`
	Inputs  []StepParameter `json:"inputs"`
	Outputs []StepParameter `json:"outputs"`
}

// stepIO is the wire shape for step execution values.
type stepIO struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
}

type stepExecution struct {
	Inputs []stepIO `json:"inputs"`
}

type stepResult struct {
	ModuleID string   `json:"moduleId"`
	StepID   string   `json:"stepId"`
	Outputs  []stepIO `json:"outputs"`
}

// ListModules pages through published score modules.
func (c *Client) ListModules(ctx context.Context, logon *Logon, start, limit int, filter string) (*Collection[Module], error) {
	var out Collection[Module]
	if err := c.get(ctx, logon, "/microanalyticScore/modules", pageQuery(start, limit, filter), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetModule fetches one module by id or name.
func (c *Client) GetModule(ctx context.Context, logon *Logon, module string) (*Module, error) {
	var out Module
	if err := c.get(ctx, logon, "/microanalyticScore/modules/"+url.PathEscape(module), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetModuleStep fetches a step's input and output signature.
func (c *Client) GetModuleStep(ctx context.Context, logon *Logon, module, step string) (*ModuleStep, error) {
	var out ModuleStep
	p := fmt.Sprintf("/microanalyticScore/modules/%s/steps/%s", url.PathEscape(module), url.PathEscape(step))
	if err := c.get(ctx, logon, p, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ExecuteStep runs a module step with named inputs and returns its named
// outputs.
func (c *Client) ExecuteStep(ctx context.Context, logon *Logon, module, step string, inputs map[string]any) (map[string]any, error) {
	exec := stepExecution{Inputs: make([]stepIO, 0, len(inputs))}
	for name, value := range inputs {
		exec.Inputs = append(exec.Inputs, stepIO{Name: name, Value: value})
	}

	var res stepResult
	p := fmt.Sprintf("/microanalyticScore/modules/%s/steps/%s", url.PathEscape(module), url.PathEscape(step))
	if err := c.post(ctx, logon, p, "application/json", exec, &res); err != nil {
		return nil, err
	}

	outputs := make(map[string]any, len(res.Outputs))
	for _, o := range res.Outputs {
		outputs[o.Name] = o.Value
	}
	return outputs, nil
}
