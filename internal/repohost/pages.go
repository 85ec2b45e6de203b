package repohost

import (
	"context"
	"fmt"
	"net/http"
)

// EnablePages requests static publishing for the repository from the given
// branch root. It reports acceptance and never returns an error: any
// transport failure or rejecting status is a soft false.
func (c *Client) EnablePages(ctx context.Context, repo Repo, branch string) bool {
	if branch == "" {
		branch = "main"
	}
	body := map[string]any{
		"source": map[string]any{"branch": branch, "path": "/"},
	}
	status, err := c.do(ctx, http.MethodPost, fmt.Sprintf("/repos/%s/pages", repo.FullName), body, nil)
	if err != nil && status == 0 {
		return false
	}
	switch status {
	case http.StatusCreated, http.StatusAccepted, http.StatusNoContent:
		return true
	default:
		return false
	}
}

// PagesURL is the public URL the host serves the repository from once
// publishing is active.
func (c *Client) PagesURL(repoName string) string {
	return fmt.Sprintf("https://%s.github.io/%s/", c.owner, repoName)
}
