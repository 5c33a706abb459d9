// Package review requests an AI-generated summary of a bounded diff. The
// review is best-effort: a missing credential or a failed call degrades to
// a placeholder result and never aborts the caller's flow.
package review

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"repowatch/internal/diff"
	"repowatch/internal/httpx"
)

const (
	defaultMaxTokens = 150
	defaultTimeout   = 30 * time.Second
)

// Client submits chat-completion requests through the shared executor.
type Client struct {
	exec      *httpx.Executor
	apiKey    string
	baseURL   string
	model     string
	maxTokens int
	timeout   time.Duration
	rubric    Rubric
	logger    *zap.Logger
}

// NewClient builds a review client. An empty apiKey puts the client in
// unavailable mode: Review returns immediately without a network call.
func NewClient(exec *httpx.Executor, apiKey, baseURL, model string, maxTokens int, rubric Rubric, logger *zap.Logger) *Client {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	if maxTokens <= 0 {
		maxTokens = rubric.Style.MaxTokens
	}
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		exec:      exec,
		apiKey:    apiKey,
		baseURL:   strings.TrimRight(baseURL, "/"),
		model:     model,
		maxTokens: maxTokens,
		timeout:   defaultTimeout,
		rubric:    rubric,
		logger:    logger,
	}
}

// Available reports whether a credential is configured.
func (c *Client) Available() bool { return c.apiKey != "" }

// Review asks the model for a structured review of the change. It returns
// Unavailable without touching the network when no credential is
// configured, and Failed with a textual reason on any transport, status or
// parse problem.
func (c *Client) Review(ctx context.Context, change diff.Change) Result {
	if !c.Available() {
		return Unavailable()
	}
	if change.Empty() {
		return OK("No reviewable lines in this change.")
	}

	body, err := json.Marshal(openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: c.rubric.Style.Temperature,
		MaxTokens:   c.maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: c.rubric.System},
			{Role: openai.ChatMessageRoleUser, Content: c.buildPrompt(change)},
		},
	})
	if err != nil {
		return Failed(err.Error())
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	header := http.Header{}
	header.Set("Authorization", "Bearer "+c.apiKey)
	header.Set("Content-Type", "application/json")
	resp, err := c.exec.Do(ctx, httpx.Request{
		Method: http.MethodPost,
		URL:    c.baseURL + "/chat/completions",
		Header: header,
		Body:   body,
	})
	if err != nil {
		c.logger.Warn("review call failed", zap.Error(err))
		return Failed(err.Error())
	}
	if !resp.OK() {
		c.logger.Warn("review call rejected", zap.Int("status", resp.StatusCode))
		return Failed(fmt.Sprintf("analysis endpoint returned status %d", resp.StatusCode))
	}

	var out openai.ChatCompletionResponse
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return Failed("unparsable completion response: " + err.Error())
	}
	if len(out.Choices) == 0 {
		return Failed("completion response had no choices")
	}
	return OK(strings.TrimSpace(out.Choices[0].Message.Content))
}

// buildPrompt embeds the bounded line lists and the rubric. The section
// list spells out the exact markdown convention the callers render.
func (c *Client) buildPrompt(change diff.Change) string {
	var b strings.Builder
	b.WriteString("Review the following pull request changes.\n\nAdded lines:\n")
	if len(change.Added) == 0 {
		b.WriteString("(none)\n")
	}
	for _, l := range change.Added {
		b.WriteString("+ ")
		b.WriteString(l)
		b.WriteString("\n")
	}
	b.WriteString("\nRemoved lines:\n")
	if len(change.Removed) == 0 {
		b.WriteString("(none)\n")
	}
	for _, l := range change.Removed {
		b.WriteString("- ")
		b.WriteString(l)
		b.WriteString("\n")
	}
	b.WriteString("\nRespond with these sections, using '-' bullets under each '**Header**':\n")
	for _, s := range c.rubric.Sections {
		b.WriteString(s)
		b.WriteString("\n")
	}
	return b.String()
}
