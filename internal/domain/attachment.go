package domain

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// Attachment is a decoded inline attachment. It lives only for the duration
// of one pipeline run and is owned by the goroutine processing that run.
type Attachment struct {
	Name    string
	MIME    string
	Content []byte
}

func (a Attachment) Size() int { return len(a.Content) }

// IsText reports whether the attachment should be committed as text. MIME
// wins; a handful of well-known suffixes cover attachments delivered with a
// generic MIME type.
func (a Attachment) IsText() bool {
	if strings.HasPrefix(a.MIME, "text") {
		return true
	}
	for _, suffix := range []string{".md", ".csv", ".json", ".txt"} {
		if strings.HasSuffix(a.Name, suffix) {
			return true
		}
	}
	return false
}

// DecodeAttachment parses a data:<mime>;base64,<payload> URI into an
// Attachment. Anything else is an error; callers skip the entry.
func DecodeAttachment(ref AttachmentRef) (Attachment, error) {
	name := strings.TrimSpace(ref.Name)
	if name == "" {
		name = "attachment"
	}
	if !strings.HasPrefix(ref.URL, "data:") {
		return Attachment{}, fmt.Errorf("attachment %s: not a data URI", name)
	}
	header, payload, ok := strings.Cut(ref.URL, ",")
	if !ok {
		return Attachment{}, fmt.Errorf("attachment %s: malformed data URI", name)
	}
	mime, _, _ := strings.Cut(strings.TrimPrefix(header, "data:"), ";")
	content, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return Attachment{}, fmt.Errorf("attachment %s: decode base64: %w", name, err)
	}
	return Attachment{Name: name, MIME: mime, Content: content}, nil
}
