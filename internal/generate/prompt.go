package generate

import (
	"fmt"
	"strings"

	"github.com/roundpilot/roundpilot-go/internal/domain"
)

// previewLimit caps how much of a text attachment the prompt embeds.
const previewLimit = 1000

func buildPrompt(req Request) string {
	var b strings.Builder

	b.WriteString("You are a professional web developer assistant.\n\n")
	fmt.Fprintf(&b, "### Round\n%d\n\n", req.Round)
	fmt.Fprintf(&b, "### Task\n%s\n\n", req.Brief)

	if req.Round >= 2 && req.PriorReadme != "" {
		fmt.Fprintf(&b, "### Previous README.md:\n%s\n\nRevise and enhance this project according to the new brief above.\n\n", req.PriorReadme)
	}

	b.WriteString("### Attachments (if any)\n")
	b.WriteString(summarizeAttachments(req.Attachments))
	b.WriteString("\n\n")

	b.WriteString("### Evaluation checks\n")
	for _, check := range req.Checks {
		fmt.Fprintf(&b, "- %s\n", check)
	}
	b.WriteString("\n")

	b.WriteString("### Output format rules:\n")
	b.WriteString("1. Produce a complete web app (HTML/JS/CSS inline if needed) satisfying the brief.\n")
	b.WriteString("2. Output must contain two parts only:\n")
	b.WriteString("   - index.html (main code)\n")
	fmt.Fprintf(&b, "   - README.md (starts after a line containing exactly: %s)\n", Sentinel)
	b.WriteString("3. README.md must include Overview, Setup, and Usage sections.")
	if req.Round >= 2 {
		b.WriteString(" Describe the improvements made from the previous version.")
	}
	b.WriteString("\n4. Do not include any commentary outside code or README.\n")

	return b.String()
}

// summarizeAttachments renders one line per attachment: a truncated preview
// for text-like content, a byte count otherwise.
func summarizeAttachments(attachments []domain.Attachment) string {
	if len(attachments) == 0 {
		return "(none)"
	}
	lines := make([]string, 0, len(attachments))
	for _, att := range attachments {
		if att.IsText() {
			preview := string(att.Content)
			if len(preview) > previewLimit {
				preview = preview[:previewLimit]
			}
			preview = strings.ReplaceAll(preview, "\n", "\\n")
			lines = append(lines, fmt.Sprintf("- %s (%s): preview: %s", att.Name, att.MIME, preview))
			continue
		}
		lines = append(lines, fmt.Sprintf("- %s (%s): %d bytes", att.Name, att.MIME, att.Size()))
	}
	return strings.Join(lines, "\n")
}
