// Package github is a small REST client for the PR source provider. It
// keeps a surface tailored to the monitor's needs and routes every call
// through the shared request executor.
package github

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	"repowatch/internal/httpx"
)

const acceptJSON = "application/vnd.github+json"
const acceptDiff = "application/vnd.github.v3.diff"

// UpstreamError reports a non-success status from the provider. The
// operation that hit it aborts without mutating state.
type UpstreamError struct {
	Path   string
	Status int
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("github %s returned status %d", e.Path, e.Status)
}

// NewHTTPClient builds the underlying transport for GitHub calls. A
// non-empty token is injected per request via a static oauth2 source; the
// token is passed through, never stored elsewhere.
func NewHTTPClient(token string) *http.Client {
	if token == "" {
		return &http.Client{Timeout: 20 * time.Second}
	}
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	c := oauth2.NewClient(context.Background(), src)
	c.Timeout = 20 * time.Second
	return c
}

// Client fetches PR metadata and diff text.
type Client struct {
	exec    *httpx.Executor
	baseAPI string
}

func NewClient(exec *httpx.Executor, baseAPI string) *Client {
	if baseAPI == "" {
		baseAPI = "https://api.github.com"
	}
	return &Client{exec: exec, baseAPI: baseAPI}
}

func (c *Client) get(ctx context.Context, path, accept string) (*httpx.Response, error) {
	header := http.Header{}
	header.Set("Accept", accept)
	return c.exec.Do(ctx, httpx.Request{
		Method: http.MethodGet,
		URL:    c.baseAPI + path,
		Header: header,
	})
}

// GetPR fetches pull request metadata for repo ("org/repo") and number.
func (c *Client) GetPR(ctx context.Context, repo string, number int) (*PRMetadata, error) {
	owner, name, err := splitRepo(repo)
	if err != nil {
		return nil, err
	}
	path := fmt.Sprintf("/repos/%s/%s/pulls/%d", owner, name, number)
	resp, err := c.get(ctx, path, acceptJSON)
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, &UpstreamError{Path: path, Status: resp.StatusCode}
	}
	var meta PRMetadata
	if err := json.Unmarshal(resp.Body, &meta); err != nil {
		return nil, fmt.Errorf("unparsable pull request metadata: %w", err)
	}
	return &meta, nil
}

// GetPRDiff fetches the unified diff text for a pull request.
func (c *Client) GetPRDiff(ctx context.Context, repo string, number int) (string, error) {
	owner, name, err := splitRepo(repo)
	if err != nil {
		return "", err
	}
	path := fmt.Sprintf("/repos/%s/%s/pulls/%d", owner, name, number)
	resp, err := c.get(ctx, path, acceptDiff)
	if err != nil {
		return "", err
	}
	if !resp.OK() {
		return "", &UpstreamError{Path: path, Status: resp.StatusCode}
	}
	return string(resp.Body), nil
}

// GetCommitDiff fetches the unified diff text for a single commit.
func (c *Client) GetCommitDiff(ctx context.Context, repo, sha string) (string, error) {
	owner, name, err := splitRepo(repo)
	if err != nil {
		return "", err
	}
	path := fmt.Sprintf("/repos/%s/%s/commits/%s", owner, name, sha)
	resp, err := c.get(ctx, path, acceptDiff)
	if err != nil {
		return "", err
	}
	if !resp.OK() {
		return "", &UpstreamError{Path: path, Status: resp.StatusCode}
	}
	return string(resp.Body), nil
}
