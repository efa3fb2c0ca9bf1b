package stage

import (
	"encoding/json"

	"deckforge/internal/services"
)

// StructuredContent is what extraction distills from a document and what
// generation consumes. Section roles record whether a section came from
// authoritative or sampled chunks.
type StructuredContent struct {
	Title    string    `json:"title"`
	Summary  string    `json:"summary"`
	Keywords []string  `json:"keywords,omitempty"`
	Sections []Section `json:"sections"`
}

// Section is one thematic unit of extracted content.
type Section struct {
	Heading string  `json:"heading"`
	Content string  `json:"content"`
	Role    string  `json:"role,omitempty"`
	Points  []Point `json:"points,omitempty"`
}

// Point is a key takeaway with an importance weight from 1 to 5.
type Point struct {
	Text       string `json:"text"`
	Importance int    `json:"importance"`
}

// Slide kinds used by the generation stage.
const (
	SlideKindTitle   = "title"
	SlideKindContent = "content"
	SlideKindSummary = "summary"
)

// DeckDraft is the unstyled slide structure generation produces and
// optimization styles into the final artifact.
type DeckDraft struct {
	Title  string  `json:"title"`
	Slides []Slide `json:"slides"`
}

// Slide is one slide of a draft deck.
type Slide struct {
	Kind    string   `json:"kind"`
	Title   string   `json:"title"`
	Bullets []string `json:"bullets,omitempty"`
}

// StyleDecision records the styling optimization chose and the rendered
// artifact it produced.
type StyleDecision struct {
	Style       string `json:"style"`
	Domain      string `json:"domain,omitempty"`
	Tone        string `json:"tone,omitempty"`
	FontTheme   string `json:"font_theme,omitempty"`
	ColorTheme  string `json:"color_theme,omitempty"`
	ArtifactRef string `json:"artifact_ref"`
}

// ParseStructuredContent decodes a recorded extraction payload. On failure
// it returns a services.ErrMalformedInput suitable for stage Execute methods.
func ParseStructuredContent(raw string) (StructuredContent, error) {
	var content StructuredContent
	if err := json.Unmarshal([]byte(raw), &content); err != nil {
		return StructuredContent{}, services.Wrap(
			services.ErrMalformedInput, "stage", "parse structured content",
			"Extraction output missing or invalid; rerun extraction", err)
	}
	if len(content.Sections) == 0 {
		return StructuredContent{}, services.Wrap(
			services.ErrMalformedInput, "stage", "parse structured content",
			"Extraction output has no sections", nil)
	}
	return content, nil
}

// ParseDeckDraft decodes a recorded generation payload.
func ParseDeckDraft(raw string) (DeckDraft, error) {
	var draft DeckDraft
	if err := json.Unmarshal([]byte(raw), &draft); err != nil {
		return DeckDraft{}, services.Wrap(
			services.ErrMalformedInput, "stage", "parse deck draft",
			"Generation output missing or invalid; rerun generation", err)
	}
	if len(draft.Slides) == 0 {
		return DeckDraft{}, services.Wrap(
			services.ErrMalformedInput, "stage", "parse deck draft",
			"Generation output has no slides", nil)
	}
	return draft, nil
}
