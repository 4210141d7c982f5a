// SPDX-License-Identifier: Apache-2.0

package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/verdantlabs/verdant/pkg/errors"
	"github.com/verdantlabs/verdant/pkg/resilience"
)

// HostedAdapter talks directly to a hosted model endpoint (messages API)
// and returns its reply essentially verbatim. Retry with backoff lives
// here, not in the orchestrator.
type HostedAdapter struct {
	baseURL   string
	apiKey    string
	model     string
	maxTokens int
	client    *http.Client
	retry     resilience.RetryConfig
}

// HostedOption configures the HostedAdapter.
type HostedOption func(*HostedAdapter)

// WithModel sets the model identifier.
func WithModel(model string) HostedOption {
	return func(a *HostedAdapter) { a.model = model }
}

// WithAPIKey sets the API key.
func WithAPIKey(key string) HostedOption {
	return func(a *HostedAdapter) { a.apiKey = key }
}

// WithMaxTokens sets the response token cap.
func WithMaxTokens(n int) HostedOption {
	return func(a *HostedAdapter) { a.maxTokens = n }
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) HostedOption {
	return func(a *HostedAdapter) { a.client = c }
}

// WithRetry replaces the default retry policy.
func WithRetry(rc resilience.RetryConfig) HostedOption {
	return func(a *HostedAdapter) { a.retry = rc }
}

// NewHosted creates a hosted-model adapter.
func NewHosted(baseURL string, opts ...HostedOption) *HostedAdapter {
	if baseURL == "" {
		baseURL = "https://api.anthropic.com"
	}
	a := &HostedAdapter{
		baseURL:   baseURL,
		model:     "claude-sonnet-4-20250514",
		maxTokens: 1024,
		client:    &http.Client{Timeout: 120 * time.Second},
		retry:     resilience.DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Name implements Adapter.
func (a *HostedAdapter) Name() string { return "hosted" }

type hostedMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type hostedTool struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	InputSchema any    `json:"input_schema"`
}

type hostedRequest struct {
	Model     string          `json:"model"`
	MaxTokens int             `json:"max_tokens"`
	System    string          `json:"system,omitempty"`
	Messages  []hostedMessage `json:"messages"`
	Tools     []hostedTool    `json:"tools,omitempty"`
}

// Call implements Adapter. Transport failures and non-2xx statuses surface
// as a single CodeLLMError; there is never partial state.
func (a *HostedAdapter) Call(ctx context.Context, req CallRequest) (json.RawMessage, error) {
	hReq := hostedRequest{
		Model:     a.model,
		MaxTokens: a.maxTokens,
		System:    req.System,
		Messages:  make([]hostedMessage, 0, len(req.Messages)),
	}
	for _, msg := range req.Messages {
		role := msg.WireRole()
		// The messages API accepts only user and assistant roles inline; the
		// system prompt travels in the top-level field. Conversation-level
		// system notes (tool results) are sent as user content.
		if role == RoleSystem {
			role = RoleUser
		}
		hReq.Messages = append(hReq.Messages, hostedMessage{
			Role:    string(role),
			Content: msg.Content,
		})
	}
	for _, tool := range req.Tools {
		hReq.Tools = append(hReq.Tools, hostedTool{
			Name:        tool.Name,
			Description: tool.Description,
			InputSchema: tool.Parameters,
		})
	}

	body, err := json.Marshal(hReq)
	if err != nil {
		return nil, errors.New(errors.CodeInternal, "failed to marshal backend request", err)
	}

	var raw json.RawMessage
	callErr := a.retry.Do(ctx, func() error {
		payload, err := a.roundTrip(ctx, body)
		if err != nil {
			return err
		}
		raw = payload
		return nil
	})
	if callErr != nil {
		return nil, callErr
	}
	return raw, nil
}

func (a *HostedAdapter) roundTrip(ctx context.Context, body []byte) (json.RawMessage, error) {
	httpReq, err := http.NewRequestWithContext(ctx, "POST", a.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return nil, errors.New(errors.CodeInternal, "failed to create http request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if a.apiKey != "" {
		httpReq.Header.Set("x-api-key", a.apiKey)
	}
	httpReq.Header.Set("anthropic-version", "2023-06-01")

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, errors.New(errors.CodeLLMError, "backend call failed", err).
			WithRecoverable(true)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.New(errors.CodeLLMError, "failed to read backend response", err).
			WithRecoverable(true)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		recoverable := resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests
		return nil, errors.New(errors.CodeLLMError,
			fmt.Sprintf("backend returned status %d", resp.StatusCode), nil).
			WithContext("body", string(payload)).
			WithRecoverable(recoverable)
	}
	return payload, nil
}

// Parse implements Adapter.
func (a *HostedAdapter) Parse(raw json.RawMessage) Reply {
	return Finalize(ParseRaw(raw))
}

var _ Adapter = (*HostedAdapter)(nil)
