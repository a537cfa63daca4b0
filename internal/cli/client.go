package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// agentClient talks to a running agent's local API.
type agentClient struct {
	base  string
	token string
	// No client timeout: a drain answers only when its pass ends.
	http *http.Client
}

func newAgentClient(opts *RootOptions) *agentClient {
	return &agentClient{
		base:  strings.TrimRight(opts.Addr, "/"),
		token: opts.Token,
		http:  &http.Client{},
	}
}

func (c *agentClient) do(ctx context.Context, method, path string, header map[string]string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("agent unreachable at %s: %w", c.base, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var body struct {
			Error string `json:"error"`
		}
		data, _ := io.ReadAll(resp.Body)
		if json.Unmarshal(data, &body) == nil && body.Error != "" {
			return fmt.Errorf("agent returned %d: %s", resp.StatusCode, body.Error)
		}
		return fmt.Errorf("agent returned %d", resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode agent response: %w", err)
	}
	return nil
}
