package documents

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"deckforge/internal/config"
	"deckforge/internal/services"
)

// Store resolves document references and writes finished artifacts. The
// pipeline never inspects paths beyond what this package exposes.
type Store struct {
	documentsDir string
	artifactsDir string
}

// NewStore builds a document store from configuration.
func NewStore(cfg *config.Config) *Store {
	return &Store{
		documentsDir: cfg.Paths.DocumentsDir,
		artifactsDir: cfg.Paths.ArtifactsDir,
	}
}

// Resolve turns a submitted document reference into an absolute path.
// Relative references resolve against the configured documents directory.
func (s *Store) Resolve(ref string) string {
	ref = strings.TrimSpace(ref)
	if filepath.IsAbs(ref) {
		return ref
	}
	return filepath.Join(s.documentsDir, ref)
}

// ReadDocument loads the referenced document bytes. A missing or unreadable
// document is a submission problem, not an infrastructure one, so the error
// carries the malformed-input marker.
func (s *Store) ReadDocument(ref string) ([]byte, error) {
	path := s.Resolve(ref)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, services.Wrap(services.ErrMalformedInput, "documents", "read document",
			fmt.Sprintf("document %q unavailable", ref), err)
	}
	return data, nil
}

// WriteArtifact persists finished deck bytes under a unique name and returns
// the reference callers hand back to the job owner.
func (s *Store) WriteArtifact(data []byte, extension string) (string, error) {
	if err := os.MkdirAll(s.artifactsDir, 0o755); err != nil {
		return "", fmt.Errorf("ensure artifacts dir: %w", err)
	}
	extension = strings.TrimPrefix(strings.TrimSpace(extension), ".")
	if extension == "" {
		extension = "html"
	}
	name := uuid.NewString() + "." + extension
	path := filepath.Join(s.artifactsDir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write artifact: %w", err)
	}
	return path, nil
}

// DetectFormat picks the document format from the declared value, falling
// back to the reference's file extension.
func DetectFormat(ref, declared string) string {
	if declared = strings.ToLower(strings.TrimSpace(declared)); declared != "" {
		return declared
	}
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(ref)), ".")
	if ext == "" {
		return "txt"
	}
	return ext
}

// InferTitle derives a display title from document content: the first
// non-empty line with any heading markup stripped. Falls back to the
// reference's base name.
func InferTitle(ref string, content []byte) string {
	for _, line := range strings.Split(string(content), "\n") {
		line = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "#"))
		if line != "" {
			const limit = 120
			if len(line) > limit {
				cut := limit
				for cut > 0 && !utf8.RuneStart(line[cut]) {
					cut--
				}
				line = line[:cut]
			}
			return line
		}
	}
	base := filepath.Base(ref)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
