package generate

import (
	"fmt"
	"html"
	"strings"

	"github.com/roundpilot/roundpilot-go/internal/domain"
)

// fallbackArtifacts synthesizes the deterministic artifact set used when the
// generator is unreachable or its response is unusable.
func fallbackArtifacts(req Request) domain.ArtifactSet {
	return domain.ArtifactSet{
		"index.html": fallbackIndex(req),
		"README.md":  fallbackReadme(req),
	}
}

func fallbackIndex(req Request) string {
	return fmt.Sprintf(`<html>
  <head><title>Fallback App</title></head>
  <body>
    <h1>Hello (fallback)</h1>
    <p>This app was generated as a fallback because the generator was unavailable. Brief: %s</p>
  </body>
</html>
`, html.EscapeString(req.Brief))
}

func fallbackReadme(req Request) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Auto-generated README (Round %d)\n\n", req.Round)
	fmt.Fprintf(&b, "**Project brief:** %s\n\n", req.Brief)

	b.WriteString("**Attachments:**\n")
	b.WriteString(summarizeAttachments(req.Attachments))
	b.WriteString("\n\n")

	b.WriteString("**Checks to meet:**\n")
	for _, check := range req.Checks {
		fmt.Fprintf(&b, "- %s\n", check)
	}
	b.WriteString("\n")

	b.WriteString("## Setup\n")
	b.WriteString("1. Open `index.html` in a browser.\n")
	b.WriteString("2. No build steps required.\n\n")

	b.WriteString("## Notes\n")
	b.WriteString("This README was generated locally because the generator did not return an explicit README.\n")
	return b.String()
}
