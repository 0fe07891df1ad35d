package viya

import (
	"context"
	"net/url"
	"strings"
)

// SCRInfo describes a SAS Container Runtime scoring endpoint.
type SCRInfo struct {
	Links []struct {
		Rel  string `json:"rel"`
		Href string `json:"href"`
		URI  string `json:"uri,omitempty"`
	} `json:"links,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

type scrScoreRequest struct {
	Inputs []stepIO `json:"inputs"`
}

type scrScoreResponse struct {
	Outputs []stepIO `json:"outputs"`
	Data    []stepIO `json:"data"`
}

// GetSCRInfo fetches the root document of a standalone SCR container. The
// endpoint is a full URL; the logon token is forwarded when present.
func (c *Client) GetSCRInfo(ctx context.Context, logon *Logon, endpoint string) (map[string]any, error) {
	var out map[string]any
	if err := c.get(ctx, logon, strings.TrimRight(endpoint, "/"), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ScoreSCR executes a deployed module inside an SCR container. endpoint is
// the container base URL; module names the published module to score.
func (c *Client) ScoreSCR(ctx context.Context, logon *Logon, endpoint, module string, inputs map[string]any) (map[string]any, error) {
	req := scrScoreRequest{Inputs: make([]stepIO, 0, len(inputs))}
	for name, value := range inputs {
		req.Inputs = append(req.Inputs, stepIO{Name: name, Value: value})
	}

	u := strings.TrimRight(endpoint, "/") + "/" + url.PathEscape(module)
	var res scrScoreResponse
	if err := c.post(ctx, logon, u, "application/json", req, &res); err != nil {
		return nil, err
	}

	items := res.Outputs
	if len(items) == 0 {
		items = res.Data
	}
	outputs := make(map[string]any, len(items))
	for _, o := range items {
		outputs[o.Name] = o.Value
	}
	return outputs, nil
}
