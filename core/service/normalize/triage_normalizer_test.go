package normalize

import (
	"encoding/base64"
	"testing"
	"time"

	"triage_server/core/port/out"
)

func b64(s string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(s))
}

func TestNormalizeHeaders(t *testing.T) {
	n := NewNormalizer()

	raw := &out.RawMessage{
		ID:      "msg-1",
		Snippet: "snippet text",
		Payload: &out.RawPart{
			MimeType: "text/plain",
			Headers: []out.RawHeader{
				{Name: "from", Value: "Alice <alice@example.com>"},
				{Name: "SUBJECT", Value: "Quarterly report"},
				{Name: "Date", Value: "Mon, 02 Jan 2006 15:04:05 -0700"},
			},
			Data: b64("hello body"),
		},
	}

	msg, ok := n.Normalize(raw)
	if !ok {
		t.Fatal("Normalize() ok = false, want true")
	}
	if msg.Sender != "Alice <alice@example.com>" {
		t.Errorf("Sender = %q", msg.Sender)
	}
	if msg.Subject != "Quarterly report" {
		t.Errorf("Subject = %q", msg.Subject)
	}
	want := time.Date(2006, 1, 2, 22, 4, 5, 0, time.UTC)
	if !msg.SentAt.Equal(want) {
		t.Errorf("SentAt = %v, want %v", msg.SentAt, want)
	}
	if msg.Body != "hello body" {
		t.Errorf("Body = %q", msg.Body)
	}
}

func TestNormalizeDefaults(t *testing.T) {
	n := NewNormalizer()

	msg, ok := n.Normalize(&out.RawMessage{
		ID:      "msg-2",
		Snippet: "only a snippet",
		Payload: &out.RawPart{MimeType: "text/plain"},
	})
	if !ok {
		t.Fatal("Normalize() ok = false, want true")
	}
	if msg.Sender != "Unknown Sender" {
		t.Errorf("Sender = %q, want default", msg.Sender)
	}
	if msg.Subject != "(No Subject)" {
		t.Errorf("Subject = %q, want default", msg.Subject)
	}
	if msg.Body != "only a snippet" {
		t.Errorf("Body = %q, want snippet fallback", msg.Body)
	}
	if time.Since(msg.SentAt) > time.Minute {
		t.Errorf("SentAt = %v, want near now", msg.SentAt)
	}
}

func TestNormalizeSkipsMissingID(t *testing.T) {
	n := NewNormalizer()

	if _, ok := n.Normalize(&out.RawMessage{Snippet: "no id"}); ok {
		t.Error("Normalize() ok = true for message without id")
	}
	if _, ok := n.Normalize(nil); ok {
		t.Error("Normalize(nil) ok = true")
	}
}

func TestExtractBodyPriority(t *testing.T) {
	tests := []struct {
		name    string
		payload *out.RawPart
		want    string
	}{
		{
			name:    "inline body wins",
			payload: &out.RawPart{MimeType: "text/plain", Data: b64("inline")},
			want:    "inline",
		},
		{
			name: "plain part preferred over html",
			payload: &out.RawPart{
				MimeType: "multipart/alternative",
				Parts: []*out.RawPart{
					{MimeType: "text/html", Data: b64("<p>html</p>")},
					{MimeType: "text/plain", Data: b64("plain")},
				},
			},
			want: "plain",
		},
		{
			name: "nested plain part found",
			payload: &out.RawPart{
				MimeType: "multipart/mixed",
				Parts: []*out.RawPart{
					{
						MimeType: "multipart/alternative",
						Parts: []*out.RawPart{
							{MimeType: "text/plain", Data: b64("nested")},
						},
					},
				},
			},
			want: "nested",
		},
		{
			name: "html stripped when no plain part",
			payload: &out.RawPart{
				MimeType: "multipart/alternative",
				Parts: []*out.RawPart{
					{MimeType: "text/html", Data: b64("<div>Hello   <b>world</b></div><style>.x{}</style>")},
				},
			},
			want: "Hello world",
		},
		{
			name:    "no usable part",
			payload: &out.RawPart{MimeType: "multipart/mixed"},
			want:    "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extractBody(tt.payload); got != tt.want {
				t.Errorf("extractBody() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDecodePartData(t *testing.T) {
	if got := decodePartData(b64("abc")); got != "abc" {
		t.Errorf("decodePartData(url) = %q", got)
	}
	if got := decodePartData(base64.StdEncoding.EncodeToString([]byte("s+t/d"))); got != "s+t/d" {
		t.Errorf("decodePartData(std) = %q", got)
	}
	if got := decodePartData("%%not base64%%"); got != "%%not base64%%" {
		t.Errorf("decodePartData(bad) = %q, want passthrough", got)
	}
}

func TestNormalizeAllPreservesOrder(t *testing.T) {
	n := NewNormalizer()

	raws := []out.RawMessage{
		{ID: "a", Snippet: "first"},
		{Snippet: "dropped"},
		{ID: "c", Snippet: "third"},
	}
	msgs := n.NormalizeAll(raws)
	if len(msgs) != 2 {
		t.Fatalf("NormalizeAll() len = %d, want 2", len(msgs))
	}
	if msgs[0].ID != "a" || msgs[1].ID != "c" {
		t.Errorf("NormalizeAll() order = %q, %q", msgs[0].ID, msgs[1].ID)
	}
}
