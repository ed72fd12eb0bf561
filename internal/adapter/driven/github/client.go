// Package github implements the CommitStatusPublisher port using the go-github library.
package github

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	gh "github.com/google/go-github/v82/github"
	"github.com/gregjones/httpcache"

	"github.com/gofri/go-github-ratelimit/v2/github_ratelimit"

	"github.com/ericfisherdev/mirror/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.CommitStatusPublisher = (*Client)(nil)

// maxDescriptionLen is the longest commit status description GitHub accepts.
const maxDescriptionLen = 140

// Client publishes run verdicts as GitHub commit statuses.
type Client struct {
	gh     *gh.Client
	logger *slog.Logger
}

// NewClient creates a new GitHub API client with the following transport stack:
//  1. httpcache (ETag-based conditional request caching)
//  2. go-github-ratelimit (secondary rate limit middleware, sleeps on 429)
//  3. go-github (GitHub REST API client with PAT auth)
func NewClient(token string, logger *slog.Logger) *Client {
	cacheTransport := httpcache.NewMemoryCacheTransport()
	rateLimitClient := github_ratelimit.NewClient(cacheTransport)
	client := gh.NewClient(rateLimitClient).WithAuthToken(token)

	if logger == nil {
		logger = slog.Default()
	}
	return &Client{gh: client, logger: logger}
}

// NewClientWithHTTPClient creates a Client with a custom http.Client and base URL.
// This constructor is intended for testing, allowing injection of an httptest server.
func NewClientWithHTTPClient(httpClient *http.Client, baseURL, token string, logger *slog.Logger) (*Client, error) {
	client := gh.NewClient(httpClient)
	if token != "" {
		client = client.WithAuthToken(token)
	}

	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	client.BaseURL = u

	if logger == nil {
		logger = slog.Default()
	}
	return &Client{gh: client, logger: logger}, nil
}

// PublishCommitStatus creates a commit status on the given commit. GitHub keeps
// only the latest status per context, so republishing overwrites.
func (c *Client) PublishCommitStatus(ctx context.Context, repoFullName, commitSHA string, status driven.CommitStatus) error {
	owner, repo, err := splitRepo(repoFullName)
	if err != nil {
		return err
	}
	if commitSHA == "" {
		return fmt.Errorf("publish status %q for %s: empty commit sha", status.Context, repoFullName)
	}

	body := &gh.RepoStatus{
		State:       gh.Ptr(string(status.State)),
		Context:     gh.Ptr(status.Context),
		Description: gh.Ptr(truncate(status.Description, maxDescriptionLen)),
	}
	if status.TargetURL != "" {
		body.TargetURL = gh.Ptr(status.TargetURL)
	}

	path := fmt.Sprintf("repos/%s/%s/statuses/%s", url.PathEscape(owner), url.PathEscape(repo), url.PathEscape(commitSHA))
	req, err := c.gh.NewRequest(http.MethodPost, path, body)
	if err != nil {
		return fmt.Errorf("building status request for %s@%s: %w", repoFullName, commitSHA, err)
	}

	created := new(gh.RepoStatus)
	resp, err := c.gh.Do(ctx, req, created)
	if err != nil {
		return fmt.Errorf("creating status %q for %s@%s: %w", status.Context, repoFullName, commitSHA, err)
	}

	c.logRateLimit(resp, repoFullName)
	c.logger.Debug("commit status published",
		"repo", repoFullName,
		"sha", commitSHA,
		"context", created.GetContext(),
		"state", created.GetState(),
	)
	return nil
}

// logRateLimit logs the GitHub API rate limit status after each call.
func (c *Client) logRateLimit(resp *gh.Response, endpoint string) {
	if resp == nil {
		return
	}

	if resp.Rate.Remaining < 100 {
		c.logger.Warn("github rate limit low",
			"endpoint", endpoint,
			"remaining", resp.Rate.Remaining,
			"reset_in", time.Until(resp.Rate.Reset.Time).Round(time.Second),
		)
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

// splitRepo splits a "owner/repo" string into its two components.
func splitRepo(fullName string) (string, string, error) {
	parts := strings.SplitN(fullName, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" || strings.Contains(parts[1], "/") {
		return "", "", fmt.Errorf("invalid repo name %q: expected owner/repo", fullName)
	}
	return parts[0], parts[1], nil
}
