package repohost

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strings"
)

type contentsResponse struct {
	SHA      string `json:"sha"`
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
}

// PutText creates the file at filePath or updates it in place. The existing
// blob sha is sent back with the update so a concurrent change surfaces as a
// conflict instead of a lost update.
func (c *Client) PutText(ctx context.Context, repo Repo, filePath, content, message string) error {
	return c.putFile(ctx, repo, filePath, []byte(content), message)
}

// PutBinary commits binary bytes at filePath and additionally writes an
// attachments/<name>.b64 sidecar holding the base64 encoding, for host
// environments with restricted binary handling.
func (c *Client) PutBinary(ctx context.Context, repo Repo, filePath string, content []byte, message string) error {
	if err := c.putFile(ctx, repo, filePath, content, message); err != nil {
		return err
	}
	sidecar := "attachments/" + path.Base(filePath) + ".b64"
	encoded := base64.StdEncoding.EncodeToString(content)
	if err := c.putFile(ctx, repo, sidecar, []byte(encoded), fmt.Sprintf("Backup %s", path.Base(filePath)+".b64")); err != nil {
		return fmt.Errorf("sidecar: %w", err)
	}
	return nil
}

// GetFileText fetches and decodes a text file via the contents API.
func (c *Client) GetFileText(ctx context.Context, repo Repo, filePath string) (string, error) {
	var contents contentsResponse
	status, err := c.do(ctx, http.MethodGet, c.contentsPath(repo, filePath), nil, &contents)
	if err != nil {
		return "", fmt.Errorf("get %s: %w", filePath, err)
	}
	if status != http.StatusOK {
		return "", fmt.Errorf("get %s: status %d", filePath, status)
	}
	if contents.Encoding != "" && contents.Encoding != "base64" {
		return "", fmt.Errorf("get %s: unsupported encoding %q", filePath, contents.Encoding)
	}
	raw, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(contents.Content, "\n", ""))
	if err != nil {
		return "", fmt.Errorf("get %s: decode content: %w", filePath, err)
	}
	return string(raw), nil
}

func (c *Client) putFile(ctx context.Context, repo Repo, filePath string, content []byte, message string) error {
	var existing contentsResponse
	status, err := c.do(ctx, http.MethodGet, c.contentsPath(repo, filePath), nil, &existing)
	if err != nil && status != http.StatusNotFound {
		return fmt.Errorf("stat %s: %w", filePath, err)
	}

	body := map[string]any{
		"message": message,
		"content": base64.StdEncoding.EncodeToString(content),
	}
	if status == http.StatusOK && existing.SHA != "" {
		body["sha"] = existing.SHA
	}
	status, err = c.do(ctx, http.MethodPut, c.contentsPath(repo, filePath), body, nil)
	if err != nil {
		return fmt.Errorf("put %s: %w", filePath, err)
	}
	if status != http.StatusOK && status != http.StatusCreated {
		return fmt.Errorf("put %s: status %d", filePath, status)
	}
	return nil
}

func (c *Client) contentsPath(repo Repo, filePath string) string {
	escaped := url.PathEscape(strings.TrimPrefix(filePath, "/"))
	// PathEscape encodes the slashes between path segments too; restore them.
	escaped = strings.ReplaceAll(escaped, "%2F", "/")
	return fmt.Sprintf("/repos/%s/contents/%s", repo.FullName, escaped)
}
