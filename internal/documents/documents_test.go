package documents_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"deckforge/internal/documents"
	"deckforge/internal/services"
	"deckforge/internal/testsupport"
)

func TestReadDocumentResolvesRelativeRefs(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := documents.NewStore(cfg)

	testsupport.WriteDocument(t, filepath.Join(cfg.Paths.DocumentsDir, "notes.txt"), "hello")

	data, err := store.ReadDocument("notes.txt")
	if err != nil {
		t.Fatalf("ReadDocument failed: %v", err)
	}
	if string(data) != "hello" {
		t.Fatalf("unexpected content: %q", data)
	}
}

func TestReadDocumentMissingIsMalformedInput(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := documents.NewStore(cfg)

	_, err := store.ReadDocument("missing.txt")
	if !errors.Is(err, services.ErrMalformedInput) {
		t.Fatalf("expected malformed-input marker, got %v", err)
	}
}

func TestWriteArtifactCreatesUniqueRefs(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := documents.NewStore(cfg)

	first, err := store.WriteArtifact([]byte("<html>a</html>"), "html")
	if err != nil {
		t.Fatalf("WriteArtifact failed: %v", err)
	}
	second, err := store.WriteArtifact([]byte("<html>b</html>"), ".html")
	if err != nil {
		t.Fatalf("WriteArtifact failed: %v", err)
	}
	if first == second {
		t.Fatal("expected unique artifact refs")
	}
	if !strings.HasSuffix(first, ".html") {
		t.Fatalf("expected html extension, got %q", first)
	}
	if _, err := os.Stat(first); err != nil {
		t.Fatalf("artifact not written: %v", err)
	}
}

func TestDetectFormat(t *testing.T) {
	cases := []struct {
		ref      string
		declared string
		want     string
	}{
		{"report.md", "", "md"},
		{"report.md", "TXT", "txt"},
		{"no-extension", "", "txt"},
		{"slides.PDF", "", "pdf"},
	}
	for _, tc := range cases {
		if got := documents.DetectFormat(tc.ref, tc.declared); got != tc.want {
			t.Fatalf("DetectFormat(%q, %q) = %q, want %q", tc.ref, tc.declared, got, tc.want)
		}
	}
}

func TestInferTitle(t *testing.T) {
	cases := []struct {
		name    string
		ref     string
		content string
		want    string
	}{
		{"first line", "a.txt", "Quarterly Report\nbody", "Quarterly Report"},
		{"skips blanks", "a.txt", "\n\n  \nThe Title", "The Title"},
		{"strips heading markup", "a.md", "## The Plan\nbody", "The Plan"},
		{"falls back to ref", "plans/roadmap.txt", "", "roadmap"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := documents.InferTitle(tc.ref, []byte(tc.content)); got != tc.want {
				t.Fatalf("InferTitle = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestInferTitleTruncatesOnRuneBoundary(t *testing.T) {
	// 100 two-byte runes; a naive byte cut at 120 would land mid-rune.
	line := strings.Repeat("é", 100)
	title := documents.InferTitle("a.txt", []byte(line+"\nbody"))
	if len(title) >= len(line) {
		t.Fatalf("expected truncation, got %d bytes", len(title))
	}
	if !utf8.ValidString(title) {
		t.Fatalf("truncated title is not valid UTF-8: %q", title)
	}
}
