// Package forge talks to a hosted pull-request forge (GitHub) over its
// plain REST API. There is no vendored SDK: every call is a hand-built
// net/http request, mirroring the way internal/matrix.HTTPSender in the
// teacher repo talks to the Matrix client API directly instead of pulling
// in a client library for a handful of endpoints.
//
// Callers never depend on this package's concrete type. internal/loader
// declares its own narrow ForgeQuerier and internal/autopilot declares its
// own narrow ForgeClient; Client merely happens to satisfy both.
package forge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/antigravity-dev/lex-pr-runner/internal/loader"
)

const defaultBaseURL = "https://api.github.com"

// Client is a minimal GitHub REST client scoped to exactly the operations
// autopilot and the scope.yml loader path need: list open PRs matching a
// search query, comment, set a commit status, and close a PR.
type Client struct {
	http    *http.Client
	baseURL string
	token   string
	owner   string
	repo    string
}

// Option customizes a Client constructed by NewClient.
type Option func(*Client)

// WithBaseURL overrides the API root, for GitHub Enterprise hosts or tests
// pointed at an httptest.Server.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient overrides the underlying *http.Client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// NewClient constructs a Client for owner/repo, authenticating with token.
// An empty token is valid for QueryOpenPRs against public repositories but
// every mutating call will fail with an authorization error from GitHub.
func NewClient(owner, repo, token string, opts ...Option) *Client {
	c := &Client{
		http:    &http.Client{Timeout: 15 * time.Second},
		baseURL: defaultBaseURL,
		token:   strings.TrimSpace(token),
		owner:   strings.TrimSpace(owner),
		repo:    strings.TrimSpace(repo),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// QueryOpenPRs implements internal/loader.ForgeQuerier. query is passed
// through to GitHub's issue search qualifiers as-is (e.g. "is:open
// is:pr"); includeLabels and excludeLabels are ANDed/negated into the
// search string. Results are mapped to loader.ForgePR keyed by
// PR-<number> per spec.md's "names are strings ... numeric IDs ... mapped
// to PR-<n> names at load time" rule.
func (c *Client) QueryOpenPRs(ctx context.Context, query string, includeLabels, excludeLabels []string) ([]loader.ForgePR, error) {
	q := strings.TrimSpace(query)
	if q == "" {
		q = "is:open is:pr"
	}
	q += fmt.Sprintf(" repo:%s/%s", c.owner, c.repo)
	for _, label := range includeLabels {
		if label = strings.TrimSpace(label); label != "" {
			q += fmt.Sprintf(" label:%q", label)
		}
	}
	for _, label := range excludeLabels {
		if label = strings.TrimSpace(label); label != "" {
			q += fmt.Sprintf(" -label:%q", label)
		}
	}

	endpoint := fmt.Sprintf("%s/search/issues?q=%s", c.baseURL, url.QueryEscape(q))
	var searchResp struct {
		Items []struct {
			Number int    `json:"number"`
			Title  string `json:"title"`
			Body   string `json:"body"`
		} `json:"items"`
	}
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &searchResp); err != nil {
		return nil, fmt.Errorf("forge: query open PRs: %w", err)
	}

	prs := make([]loader.ForgePR, 0, len(searchResp.Items))
	for _, item := range searchResp.Items {
		name := fmt.Sprintf("PR-%d", item.Number)
		pr, err := c.fetchPR(ctx, item.Number)
		if err != nil {
			return nil, fmt.Errorf("forge: fetch PR %d: %w", item.Number, err)
		}
		prs = append(prs, loader.ForgePR{
			Name:   name,
			Branch: pr.Head.Ref,
			SHA:    pr.Head.SHA,
			Body:   item.Body,
		})
	}
	return prs, nil
}

func (c *Client) fetchPR(ctx context.Context, number int) (*pullRequest, error) {
	endpoint := fmt.Sprintf("%s/repos/%s/%s/pulls/%d", c.baseURL, c.owner, c.repo, number)
	var pr pullRequest
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &pr); err != nil {
		return nil, err
	}
	return &pr, nil
}

type pullRequest struct {
	Number int `json:"number"`
	Head   struct {
		Ref string `json:"ref"`
		SHA string `json:"sha"`
	} `json:"head"`
}

// PostComment implements internal/autopilot.ForgeClient. item must be of
// the form PR-<n>.
func (c *Client) PostComment(ctx context.Context, item, comment string) error {
	number, err := parseItemNumber(item)
	if err != nil {
		return fmt.Errorf("forge: post comment: %w", err)
	}
	endpoint := fmt.Sprintf("%s/repos/%s/%s/issues/%d/comments", c.baseURL, c.owner, c.repo, number)
	body, err := json.Marshal(map[string]string{"body": comment})
	if err != nil {
		return fmt.Errorf("forge: marshal comment payload: %w", err)
	}
	if err := c.do(ctx, http.MethodPost, endpoint, body, nil); err != nil {
		return fmt.Errorf("forge: post comment on %s: %w", item, err)
	}
	return nil
}

// PostStatus implements internal/autopilot.ForgeClient, setting a commit
// status on the PR's head SHA. Since the head SHA isn't known at this
// call's narrow signature, PostStatus resolves it via one extra PR fetch.
func (c *Client) PostStatus(ctx context.Context, item, status string) error {
	number, err := parseItemNumber(item)
	if err != nil {
		return fmt.Errorf("forge: post status: %w", err)
	}
	pr, err := c.fetchPR(ctx, number)
	if err != nil {
		return fmt.Errorf("forge: post status on %s: %w", item, err)
	}
	endpoint := fmt.Sprintf("%s/repos/%s/%s/statuses/%s", c.baseURL, c.owner, c.repo, pr.Head.SHA)
	body, err := json.Marshal(map[string]string{
		"state":   mapStatusState(status),
		"context": "lex-pr-runner/autopilot",
	})
	if err != nil {
		return fmt.Errorf("forge: marshal status payload: %w", err)
	}
	if err := c.do(ctx, http.MethodPost, endpoint, body, nil); err != nil {
		return fmt.Errorf("forge: post status on %s: %w", item, err)
	}
	return nil
}

// ClosePR implements internal/autopilot.ForgeClient. comment, if
// non-empty, is posted before the PR is closed.
func (c *Client) ClosePR(ctx context.Context, item, comment string) error {
	number, err := parseItemNumber(item)
	if err != nil {
		return fmt.Errorf("forge: close PR: %w", err)
	}
	if strings.TrimSpace(comment) != "" {
		if err := c.PostComment(ctx, item, comment); err != nil {
			return err
		}
	}
	endpoint := fmt.Sprintf("%s/repos/%s/%s/pulls/%d", c.baseURL, c.owner, c.repo, number)
	body, err := json.Marshal(map[string]string{"state": "closed"})
	if err != nil {
		return fmt.Errorf("forge: marshal close payload: %w", err)
	}
	if err := c.do(ctx, http.MethodPatch, endpoint, body, nil); err != nil {
		return fmt.Errorf("forge: close %s: %w", item, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return &StatusError{StatusCode: resp.StatusCode, Body: string(raw)}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// StatusError is returned when the forge responds with a non-2xx status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("forge: status %d: %s", e.StatusCode, e.Body)
}

func parseItemNumber(item string) (int, error) {
	_, numStr, found := strings.Cut(item, "-")
	if !found {
		return 0, fmt.Errorf("item %q is not of the form PR-<n>", item)
	}
	n, err := strconv.Atoi(numStr)
	if err != nil {
		return 0, fmt.Errorf("item %q has a non-numeric PR id: %w", item, err)
	}
	return n, nil
}

func mapStatusState(status string) string {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "pass", "success", "passed":
		return "success"
	case "fail", "failure", "failed":
		return "failure"
	case "pending", "running":
		return "pending"
	default:
		return "error"
	}
}
