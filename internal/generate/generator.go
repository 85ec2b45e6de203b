// Package generate invokes the external content generator and normalizes
// its response into an artifact set. Generate never fails outward: every
// error path degrades to a deterministic local artifact set.
package generate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/roundpilot/roundpilot-go/internal/domain"
)

// Sentinel separates the primary document from the summary document in the
// generator's response. This is a fixed wire contract with the generator.
const Sentinel = "---README.md---"

type Config struct {
	Endpoint string
	APIKey   string
	Model    string
	Timeout  time.Duration
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Endpoint) == "" {
		return errors.New("endpoint is required")
	}
	if strings.TrimSpace(c.Model) == "" {
		return errors.New("model is required")
	}
	return nil
}

// Request carries everything the prompt embeds for one round.
type Request struct {
	Brief       string
	Attachments []domain.Attachment
	Checks      []string
	Round       int
	PriorReadme string
}

type Generator struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger
}

func New(cfg Config, logger *slog.Logger) (*Generator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Generator{
		cfg:    cfg,
		http:   &http.Client{Timeout: timeout},
		logger: logger,
	}, nil
}

// Generate returns the artifact set for one round. The set always contains
// a non-empty index.html and README.md.
func (g *Generator) Generate(ctx context.Context, req Request) domain.ArtifactSet {
	prompt := buildPrompt(req)

	text, err := g.complete(ctx, prompt)
	if err != nil {
		g.logger.Warn("generator unavailable, using fallback artifacts", "error", err, "round", req.Round)
		return fallbackArtifacts(req)
	}

	primary, summary, err := splitResponse(text)
	if err != nil {
		g.logger.Warn("generator response unusable, using fallback artifacts", "error", err, "round", req.Round)
		return fallbackArtifacts(req)
	}
	if summary == "" {
		summary = fallbackReadme(req)
	}
	return domain.ArtifactSet{
		"index.html": primary,
		"README.md":  summary,
	}
}

type completionRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type completionResponse struct {
	Output []struct {
		Content []struct {
			Text string `json:"text"`
		} `json:"content"`
	} `json:"output"`
}

func (g *Generator) complete(ctx context.Context, prompt string) (string, error) {
	data, err := json.Marshal(completionRequest{Model: g.cfg.Model, Input: prompt})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.Endpoint, bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if g.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.cfg.APIKey)
	}

	resp, err := g.http.Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("generator error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var res completionResponse
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return "", fmt.Errorf("decode generator response: %w", err)
	}
	for _, block := range res.Output {
		for _, content := range block.Content {
			if strings.TrimSpace(content.Text) != "" {
				return content.Text, nil
			}
		}
	}
	return "", errors.New("generator returned empty output")
}

// splitResponse applies the sentinel contract strictly: more than one
// sentinel, or a sentinel with an empty part on either side, discards the
// whole response. A response with no sentinel at all keeps the text as the
// primary document and leaves the summary for local synthesis.
func splitResponse(text string) (primary, summary string, err error) {
	switch strings.Count(text, Sentinel) {
	case 0:
		primary = stripCodeFence(text)
		if primary == "" {
			return "", "", errors.New("empty primary document")
		}
		return primary, "", nil
	case 1:
		before, after, _ := strings.Cut(text, Sentinel)
		primary = stripCodeFence(before)
		summary = stripCodeFence(after)
		if primary == "" || summary == "" {
			return "", "", errors.New("sentinel present but a part is empty")
		}
		return primary, summary, nil
	default:
		return "", "", errors.New("multiple sentinel markers")
	}
}

// stripCodeFence unwraps a ``` fenced block when the text carries one.
func stripCodeFence(text string) string {
	text = strings.TrimSpace(text)
	if !strings.Contains(text, "```") {
		return text
	}
	parts := strings.Split(text, "```")
	if len(parts) < 2 {
		return text
	}
	inner := parts[1]
	// Drop a language tag on the fence line.
	if idx := strings.IndexByte(inner, '\n'); idx >= 0 {
		first := strings.TrimSpace(inner[:idx])
		if first != "" && !strings.ContainsAny(first, " \t<") {
			inner = inner[idx+1:]
		}
	}
	return strings.TrimSpace(inner)
}
