// Package web provides the web_fetch built-in tool.
//
// The URL is validated (length, scheme, hostname, SSRF screening) before
// any network I/O, and redirects are never followed so an open redirect
// cannot route the request to an unvalidated destination.
package web

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/aegis-agent/aegis/internal/agent"
	"github.com/aegis-agent/aegis/internal/validate"
)

// Timeout bounds for the fetch.
const (
	DefaultTimeoutSeconds = 30
	MaxTimeoutSeconds     = 60
)

const userAgent = "aegis-agent/1.0"

// FetchTool implements the web_fetch built-in.
type FetchTool struct {
	client *http.Client
}

// NewFetchTool creates a web_fetch tool. A nil client gets a non-redirecting
// default; tests inject their own.
func NewFetchTool(client *http.Client) *FetchTool {
	if client == nil {
		client = &http.Client{}
	}
	client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		return http.ErrUseLastResponse
	}
	return &FetchTool{client: client}
}

// Name returns the tool name for registration with the agent runtime.
func (t *FetchTool) Name() string {
	return "web_fetch"
}

// Description returns the tool description.
func (t *FetchTool) Description() string {
	return "Fetch the content of a web URL and return the response body. " +
		"Only http/https allowed. Private/internal addresses are blocked."
}

// Schema returns the JSON schema for tool parameters.
func (t *FetchTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"url": {"type": "string", "description": "URL to fetch (http/https only)"},
			"timeout": {
				"type": "integer",
				"description": "Timeout in seconds (max 60, default 30)",
				"default": 30
			}
		},
		"required": ["url"]
	}`)
}

// Execute fetches the URL after validation. HTTP failures come back as
// result text; a validation failure is returned as an error so the registry
// records a TOOL_BLOCKED event.
func (t *FetchTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	var input struct {
		URL     string `json:"url"`
		Timeout int    `json:"timeout"`
	}
	if err := json.Unmarshal(params, &input); err != nil {
		return nil, err
	}

	if err := validate.ValidateURL(input.URL); err != nil {
		return nil, err
	}

	timeout := input.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeoutSeconds
	}
	if timeout > MaxTimeoutSeconds {
		timeout = MaxTimeoutSeconds
	}

	reqCtx, cancel := context.WithTimeout(ctx, time.Duration(timeout)*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, input.URL, nil)
	if err != nil {
		return toolError(fmt.Sprintf("Request error: %v", err)), nil
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := t.client.Do(req)
	if err != nil {
		return toolError(fmt.Sprintf("Request error: %v", err)), nil
	}
	defer resp.Body.Close()

	// Read one byte past the cap so oversized bodies are detected without
	// buffering more than the limit.
	body, err := io.ReadAll(io.LimitReader(resp.Body, validate.MaxContentBytes+1))
	if err != nil {
		return toolError(fmt.Sprintf("Error fetching URL: %v", err)), nil
	}

	if resp.StatusCode >= 400 {
		return toolError(fmt.Sprintf("HTTP error %d: %s", resp.StatusCode, resp.Status)), nil
	}

	text := string(body)
	if err := validate.CheckContentSize(text, "response_body"); err != nil {
		return nil, err
	}

	return &agent.ToolResult{
		Content: fmt.Sprintf("[Status: %d] [Content-Type: %s]\n\n%s",
			resp.StatusCode, resp.Header.Get("Content-Type"), text),
	}, nil
}

func toolError(msg string) *agent.ToolResult {
	return &agent.ToolResult{Content: msg, IsError: true}
}
