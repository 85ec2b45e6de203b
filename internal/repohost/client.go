// Package repohost is the typed adapter for the repository host's REST API.
// Every operation is idempotent with respect to final repository state.
package repohost

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

const defaultBaseURL = "https://api.github.com"

type Config struct {
	Owner   string
	Token   string
	BaseURL string
	Timeout time.Duration
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Owner) == "" {
		return errors.New("owner is required")
	}
	if strings.TrimSpace(c.Token) == "" {
		return errors.New("token is required")
	}
	return nil
}

type Client struct {
	owner string
	base  string
	http  *http.Client
}

// Repo is a handle to a hosted repository.
type Repo struct {
	Name          string `json:"name"`
	FullName      string `json:"full_name"`
	HTMLURL       string `json:"html_url"`
	DefaultBranch string `json:"default_branch"`
}

func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: strings.TrimSpace(cfg.Token)})
	httpClient := oauth2.NewClient(ctx, src)
	httpClient.Timeout = timeout
	return &Client{
		owner: strings.TrimSpace(cfg.Owner),
		base:  base,
		http:  httpClient,
	}, nil
}

func (c *Client) Owner() string { return c.owner }

// EnsureRepo fetches the named repository or creates it when absent. It
// never fails because the repository already exists.
func (c *Client) EnsureRepo(ctx context.Context, name, description string) (Repo, error) {
	var repo Repo
	status, err := c.do(ctx, http.MethodGet, fmt.Sprintf("/repos/%s/%s", c.owner, name), nil, &repo)
	if err == nil && status == http.StatusOK {
		return repo, nil
	}
	if err != nil && status != http.StatusNotFound {
		return Repo{}, fmt.Errorf("fetch repo %s: %w", name, err)
	}

	body := map[string]any{
		"name":        name,
		"description": description,
		"private":     false,
		"auto_init":   false,
	}
	status, err = c.do(ctx, http.MethodPost, "/user/repos", body, &repo)
	if err != nil {
		return Repo{}, fmt.Errorf("create repo %s: %w", name, err)
	}
	if status != http.StatusCreated {
		return Repo{}, fmt.Errorf("create repo %s: status %d", name, status)
	}
	return repo, nil
}

// LatestCommitSHA returns the sha of the most recent commit on the default
// branch.
func (c *Client) LatestCommitSHA(ctx context.Context, repo Repo) (string, error) {
	var commits []struct {
		SHA string `json:"sha"`
	}
	status, err := c.do(ctx, http.MethodGet, fmt.Sprintf("/repos/%s/commits?per_page=1", repo.FullName), nil, &commits)
	if err != nil {
		return "", fmt.Errorf("list commits: %w", err)
	}
	if status != http.StatusOK || len(commits) == 0 {
		return "", fmt.Errorf("list commits: status %d, %d commits", status, len(commits))
	}
	return commits[0].SHA, nil
}

// do issues one API call. It returns the response status alongside any
// error so callers can branch on 404 without string matching. A non-2xx
// status yields both the status and an error carrying the body text.
func (c *Client) do(ctx context.Context, method, path string, body any, out any) (int, error) {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("marshal body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reqBody)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return resp.StatusCode, fmt.Errorf("repo host error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(text)))
	}

	if out != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode response: %w", err)
		}
	}
	return resp.StatusCode, nil
}
