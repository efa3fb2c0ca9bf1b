package testsupport

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// WriteDocument writes a text document to the target path and returns it.
func WriteDocument(t testing.TB, path, content string) string {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

// LargeDocument builds a document body of at least size bytes from repeated
// paragraphs, each carrying its index so sampling behavior is observable.
func LargeDocument(size int) string {
	var sb strings.Builder
	for i := 0; sb.Len() < size; i++ {
		fmt.Fprintf(&sb, "Paragraph %04d. %s\n\n", i, strings.Repeat("word ", 40))
	}
	return sb.String()
}
