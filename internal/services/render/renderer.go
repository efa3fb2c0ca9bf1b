package render

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"time"

	"deckforge/internal/config"
	"deckforge/internal/documents"
	"deckforge/internal/services"
	"deckforge/internal/stage"
)

const defaultTimeout = 30 * time.Second

// Renderer turns a styled deck into the final artifact. Rendering is local
// but still treated as an injected capability with a declared timeout so the
// optimization stage stays decoupled from how decks are produced.
type Renderer struct {
	docs    *documents.Store
	timeout time.Duration
}

// New builds a Renderer from configuration.
func New(cfg *config.Config, docs *documents.Store) *Renderer {
	timeout := defaultTimeout
	if cfg.Render.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.Render.TimeoutSeconds) * time.Second
	}
	return &Renderer{docs: docs, timeout: timeout}
}

// Render produces the deck artifact and returns its reference.
func (r *Renderer) Render(ctx context.Context, draft stage.DeckDraft, decision stage.StyleDecision) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	theme, ok := themes[decision.Style]
	if !ok {
		return "", services.Wrap(services.ErrMalformedInput, "render", "select theme",
			fmt.Sprintf("unknown style %q", decision.Style), nil)
	}
	if decision.FontTheme != "" {
		theme.Font = template.CSS(decision.FontTheme)
	}
	if decision.ColorTheme != "" {
		theme.Accent = template.CSS(decision.ColorTheme)
	}

	var buf bytes.Buffer
	err := deckTemplate.Execute(&buf, deckView{
		Title:  draft.Title,
		Slides: draft.Slides,
		Theme:  theme,
	})
	if err != nil {
		return "", fmt.Errorf("render deck: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return "", services.Wrap(services.ErrTransient, "render", "render deck", "render timed out", err)
	}

	ref, err := r.docs.WriteArtifact(buf.Bytes(), "html")
	if err != nil {
		return "", fmt.Errorf("store artifact: %w", err)
	}
	return ref, nil
}

// Theme holds the visual parameters a style resolves to. Fields are typed
// template.CSS because font stacks and colors land inside a style block.
type Theme struct {
	Font       template.CSS
	Background template.CSS
	Text       template.CSS
	Accent     template.CSS
}

// themes maps style names to their default visual theme.
var themes = map[string]Theme{
	"professional": {Font: "Helvetica, Arial, sans-serif", Background: "#ffffff", Text: "#1a1a2e", Accent: "#0f4c81"},
	"creative":     {Font: "Georgia, serif", Background: "#fdf6ec", Text: "#3d2c29", Accent: "#d1495b"},
	"academic":     {Font: "'Times New Roman', serif", Background: "#fafafa", Text: "#222222", Accent: "#5f0f40"},
	"minimal":      {Font: "'Courier New', monospace", Background: "#ffffff", Text: "#333333", Accent: "#666666"},
}

// Styles lists the renderable style names.
func Styles() []string {
	names := make([]string, 0, len(themes))
	for name := range themes {
		names = append(names, name)
	}
	return names
}

// IsStyle reports whether a style name is renderable.
func IsStyle(name string) bool {
	_, ok := themes[name]
	return ok
}

type deckView struct {
	Title  string
	Slides []stage.Slide
	Theme  Theme
}

var deckTemplate = template.Must(template.New("deck").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: {{.Theme.Font}}; background: {{.Theme.Background}}; color: {{.Theme.Text}}; margin: 0; }
section.slide { min-height: 90vh; padding: 5vh 10vw; border-bottom: 2px solid {{.Theme.Accent}}; }
section.slide h1, section.slide h2 { color: {{.Theme.Accent}}; }
section.slide-title h1 { font-size: 3em; margin-top: 30vh; }
ul.bullets li { margin: 0.5em 0; font-size: 1.3em; }
</style>
</head>
<body>
{{range .Slides}}<section class="slide slide-{{.Kind}}">
{{if eq .Kind "title"}}<h1>{{.Title}}</h1>{{else}}<h2>{{.Title}}</h2>{{end}}
{{if .Bullets}}<ul class="bullets">{{range .Bullets}}<li>{{.}}</li>
{{end}}</ul>{{end}}
</section>
{{end}}</body>
</html>
`))
