package domain

import (
	"encoding/base64"
	"testing"
)

func validJob() Job {
	return Job{
		Email: "dev@example.com",
		Task:  "demo1",
		Round: 1,
		Nonce: "abc",
		Brief: "a todo app",
	}
}

func TestJobValidate_OK(t *testing.T) {
	if err := validJob().Validate(); err != nil {
		t.Fatalf("Validate() err=%v", err)
	}
}

func TestJobValidate_MissingFields(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Job)
	}{
		{"email", func(j *Job) { j.Email = "" }},
		{"task", func(j *Job) { j.Task = " " }},
		{"round", func(j *Job) { j.Round = 0 }},
		{"nonce", func(j *Job) { j.Nonce = "" }},
		{"brief", func(j *Job) { j.Brief = "" }},
	}
	for _, tc := range cases {
		j := validJob()
		tc.mutate(&j)
		if err := j.Validate(); err == nil {
			t.Fatalf("Validate() expected error for missing %s", tc.name)
		}
	}
}

func TestJobValidate_RejectsSeparatorByte(t *testing.T) {
	j := validJob()
	j.Nonce = "abc\x1fdef"
	if err := j.Validate(); err == nil {
		t.Fatalf("Validate() expected error for separator in nonce")
	}
}

func TestRoundKey_DistinctTuplesDistinctStrings(t *testing.T) {
	a := RoundKey{Email: "a", Task: "b", Round: 1, Nonce: "c"}
	b := RoundKey{Email: "a", Task: "b", Round: 2, Nonce: "c"}
	if a.String() == b.String() {
		t.Fatalf("distinct keys rendered identically: %q", a.String())
	}
	if a != (RoundKey{Email: "a", Task: "b", Round: 1, Nonce: "c"}) {
		t.Fatalf("equal keys compared unequal")
	}
}

func TestJobKey_TrimsFields(t *testing.T) {
	j := validJob()
	j.Email = " dev@example.com "
	if j.Key().Email != "dev@example.com" {
		t.Fatalf("Key().Email=%q, want trimmed", j.Key().Email)
	}
}

func TestDecodeAttachment_Text(t *testing.T) {
	payload := base64.StdEncoding.EncodeToString([]byte("hello"))
	att, err := DecodeAttachment(AttachmentRef{Name: "notes.txt", URL: "data:text/plain;base64," + payload})
	if err != nil {
		t.Fatalf("DecodeAttachment() err=%v", err)
	}
	if att.MIME != "text/plain" {
		t.Fatalf("MIME=%q, want text/plain", att.MIME)
	}
	if string(att.Content) != "hello" {
		t.Fatalf("Content=%q, want hello", att.Content)
	}
	if !att.IsText() {
		t.Fatalf("IsText()=false, want true")
	}
	if att.Size() != 5 {
		t.Fatalf("Size()=%d, want 5", att.Size())
	}
}

func TestDecodeAttachment_NotDataURI(t *testing.T) {
	if _, err := DecodeAttachment(AttachmentRef{Name: "x", URL: "https://example.com/x"}); err == nil {
		t.Fatalf("expected error for non-data URI")
	}
}

func TestDecodeAttachment_BadBase64(t *testing.T) {
	if _, err := DecodeAttachment(AttachmentRef{Name: "x", URL: "data:image/png;base64,%%%"}); err == nil {
		t.Fatalf("expected error for invalid base64")
	}
}

func TestDecodeAttachment_DefaultsName(t *testing.T) {
	payload := base64.StdEncoding.EncodeToString([]byte{0x1})
	att, err := DecodeAttachment(AttachmentRef{URL: "data:application/octet-stream;base64," + payload})
	if err != nil {
		t.Fatalf("DecodeAttachment() err=%v", err)
	}
	if att.Name != "attachment" {
		t.Fatalf("Name=%q, want attachment", att.Name)
	}
	if att.IsText() {
		t.Fatalf("IsText()=true for octet-stream, want false")
	}
}

func TestAttachmentIsText_BySuffix(t *testing.T) {
	att := Attachment{Name: "data.json", MIME: "application/octet-stream"}
	if !att.IsText() {
		t.Fatalf("IsText()=false for .json, want true")
	}
}

func TestRoundOutcomeValidate(t *testing.T) {
	o := RoundOutcome{Email: "dev@example.com", Task: "demo1", Round: 1, Nonce: "abc", RepoURL: "https://github.com/o/demo1"}
	if err := o.Validate(); err != nil {
		t.Fatalf("Validate() err=%v", err)
	}
	o.RepoURL = ""
	if err := o.Validate(); err == nil {
		t.Fatalf("expected error for missing repo url")
	}
}
