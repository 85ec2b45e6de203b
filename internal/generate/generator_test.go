package generate

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/roundpilot/roundpilot-go/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func testRequest() Request {
	return Request{
		Brief:  "a todo app",
		Checks: []string{"has add button"},
		Round:  1,
	}
}

func newGenerator(t *testing.T, handler http.HandlerFunc) *Generator {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	gen, err := New(Config{Endpoint: srv.URL, APIKey: "key", Model: "gpt-5", Timeout: 2 * time.Second}, testLogger())
	if err != nil {
		t.Fatalf("New() err=%v", err)
	}
	return gen
}

func respondWithText(t *testing.T, w http.ResponseWriter, text string) {
	t.Helper()
	body := map[string]any{
		"output": []map[string]any{
			{"content": []map[string]any{{"text": text}}},
		},
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		t.Fatalf("encode response: %v", err)
	}
}

func TestGenerate_TwoPartResponse(t *testing.T) {
	gen := newGenerator(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer key" {
			t.Errorf("Authorization=%q", got)
		}
		var req completionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if !strings.Contains(req.Input, "a todo app") {
			t.Errorf("prompt missing brief: %q", req.Input)
		}
		respondWithText(t, w, "<html>app</html>\n"+Sentinel+"\n# My App\nOverview here.")
	})

	set := gen.Generate(context.Background(), testRequest())
	if set["index.html"] != "<html>app</html>" {
		t.Fatalf("index.html=%q", set["index.html"])
	}
	if !strings.HasPrefix(set["README.md"], "# My App") {
		t.Fatalf("README.md=%q", set["README.md"])
	}
}

func TestGenerate_NoSentinel_SynthesizesReadme(t *testing.T) {
	gen := newGenerator(t, func(w http.ResponseWriter, r *http.Request) {
		respondWithText(t, w, "<html>only code</html>")
	})

	set := gen.Generate(context.Background(), testRequest())
	if set["index.html"] != "<html>only code</html>" {
		t.Fatalf("index.html=%q", set["index.html"])
	}
	if !strings.Contains(set["README.md"], "Auto-generated README (Round 1)") {
		t.Fatalf("README.md=%q, want synthesized readme", set["README.md"])
	}
}

func TestGenerate_ServerError_Fallback(t *testing.T) {
	gen := newGenerator(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	assertFallback(t, gen.Generate(context.Background(), testRequest()))
}

func TestGenerate_MalformedJSON_Fallback(t *testing.T) {
	gen := newGenerator(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("{not json"))
	})
	assertFallback(t, gen.Generate(context.Background(), testRequest()))
}

func TestGenerate_EmptyOutput_Fallback(t *testing.T) {
	gen := newGenerator(t, func(w http.ResponseWriter, r *http.Request) {
		respondWithText(t, w, "   ")
	})
	assertFallback(t, gen.Generate(context.Background(), testRequest()))
}

func TestGenerate_Unreachable_Fallback(t *testing.T) {
	gen, err := New(Config{Endpoint: "http://127.0.0.1:1", Model: "gpt-5", Timeout: 500 * time.Millisecond}, testLogger())
	if err != nil {
		t.Fatalf("New() err=%v", err)
	}
	assertFallback(t, gen.Generate(context.Background(), testRequest()))
}

func TestGenerate_MultipleSentinels_FailsClosed(t *testing.T) {
	gen := newGenerator(t, func(w http.ResponseWriter, r *http.Request) {
		respondWithText(t, w, "a\n"+Sentinel+"\nb\n"+Sentinel+"\nc")
	})
	assertFallback(t, gen.Generate(context.Background(), testRequest()))
}

func TestGenerate_EmptySummaryPart_FailsClosed(t *testing.T) {
	gen := newGenerator(t, func(w http.ResponseWriter, r *http.Request) {
		respondWithText(t, w, "<html>x</html>\n"+Sentinel+"\n   ")
	})
	assertFallback(t, gen.Generate(context.Background(), testRequest()))
}

// assertFallback checks the totality guarantee: a non-empty set carrying
// both documents, with the fallback markers.
func assertFallback(t *testing.T, set domain.ArtifactSet) {
	t.Helper()
	if len(set) == 0 {
		t.Fatalf("empty artifact set")
	}
	if !strings.Contains(set["index.html"], "fallback") {
		t.Fatalf("index.html=%q, want fallback document", set["index.html"])
	}
	if !strings.Contains(set["README.md"], "Auto-generated README") {
		t.Fatalf("README.md=%q, want fallback readme", set["README.md"])
	}
}

func TestGenerate_RoundTwoPromptIncludesPriorReadme(t *testing.T) {
	var prompt string
	gen := newGenerator(t, func(w http.ResponseWriter, r *http.Request) {
		var req completionRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		prompt = req.Input
		respondWithText(t, w, "<html>v2</html>\n"+Sentinel+"\n# v2 readme")
	})

	req := testRequest()
	req.Round = 2
	req.PriorReadme = "# round one readme"
	gen.Generate(context.Background(), req)

	if !strings.Contains(prompt, "# round one readme") {
		t.Fatalf("prompt missing prior readme context: %q", prompt)
	}
	if !strings.Contains(prompt, "Revise and enhance") {
		t.Fatalf("prompt missing revision instruction")
	}
}

func TestSummarizeAttachments_TextPreviewTruncated(t *testing.T) {
	long := strings.Repeat("x", 2*previewLimit)
	got := summarizeAttachments([]domain.Attachment{
		{Name: "notes.txt", MIME: "text/plain", Content: []byte(long)},
	})
	preview := got[strings.Index(got, "preview: "):]
	if strings.Count(preview, "x") != previewLimit {
		t.Fatalf("preview length=%d, want %d", strings.Count(preview, "x"), previewLimit)
	}
}

func TestSummarizeAttachments_BinaryByteCount(t *testing.T) {
	got := summarizeAttachments([]domain.Attachment{
		{Name: "logo.png", MIME: "image/png", Content: make([]byte, 42)},
	})
	if !strings.Contains(got, "42 bytes") {
		t.Fatalf("summary=%q, want byte count", got)
	}
}

func TestStripCodeFence(t *testing.T) {
	fenced := "```html\n<html></html>\n```"
	if got := stripCodeFence(fenced); got != "<html></html>" {
		t.Fatalf("stripCodeFence()=%q", got)
	}
	plain := "<html></html>"
	if got := stripCodeFence(plain); got != plain {
		t.Fatalf("stripCodeFence()=%q, want unchanged", got)
	}
}
