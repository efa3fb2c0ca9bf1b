package generation

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"deckforge/internal/config"
	"deckforge/internal/logging"
	"deckforge/internal/queue"
	"deckforge/internal/services"
	"deckforge/internal/services/llm"
	"deckforge/internal/stage"
)

// Capability is the model call generation depends on.
type Capability interface {
	CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error)
	HealthCheck(ctx context.Context) error
}

// Generator drafts an unstyled slide deck from extracted structured content.
type Generator struct {
	store  *queue.Store
	cfg    *config.Config
	client Capability
	logger *slog.Logger
}

// New constructs the generation stage processor using default dependencies.
func New(cfg *config.Config, store *queue.Store, logger *slog.Logger) *Generator {
	client := llm.NewClient(llm.Config{
		APIKey:         cfg.LLM.APIKey,
		BaseURL:        cfg.LLM.BaseURL,
		Model:          cfg.LLM.Model,
		TimeoutSeconds: cfg.LLM.TimeoutSeconds,
	})
	return NewWithDependencies(cfg, store, logger, client)
}

// NewWithDependencies allows injecting collaborators (used in tests).
func NewWithDependencies(cfg *config.Config, store *queue.Store, logger *slog.Logger, client Capability) *Generator {
	return &Generator{
		store:  store,
		cfg:    cfg,
		client: client,
		logger: logging.NewComponentLogger(logger, "generation"),
	}
}

// Prepare validates that extraction output is present and parseable.
func (g *Generator) Prepare(ctx context.Context, job *queue.Job) error {
	_, err := g.loadContent(ctx, job)
	return err
}

// Execute drafts the deck and records it as the stage output.
func (g *Generator) Execute(ctx context.Context, job *queue.Job) error {
	logger := logging.WithContext(ctx, g.logger)

	content, err := g.loadContent(ctx, job)
	if err != nil {
		return err
	}

	contentJSON, err := json.Marshal(content)
	if err != nil {
		return fmt.Errorf("encode structured content: %w", err)
	}
	raw, err := g.client.CompleteJSON(ctx, generationPrompt, string(contentJSON))
	if err != nil {
		return services.Wrap(llm.Marker(err), "generating", "draft deck", "", err)
	}

	var draft stage.DeckDraft
	if err := llm.DecodeJSON(raw, &draft); err != nil {
		return services.Wrap(services.ErrTransient, "generating", "draft deck",
			"model returned unparseable deck", err)
	}
	draft = normalizeDraft(draft, content)
	if len(draft.Slides) == 0 {
		return services.Wrap(services.ErrTransient, "generating", "draft deck",
			"model returned no slides", nil)
	}

	payload, err := json.Marshal(draft)
	if err != nil {
		return fmt.Errorf("encode deck draft: %w", err)
	}
	if err := g.store.PutStageOutput(ctx, &queue.StageOutput{
		JobID:       job.ID,
		Stage:       queue.StageGenerating,
		PayloadJSON: string(payload),
	}); err != nil {
		return err
	}

	logger.Info("deck draft recorded", logging.Int("slides", len(draft.Slides)))
	return nil
}

// HealthCheck verifies the capability is reachable.
func (g *Generator) HealthCheck(ctx context.Context) stage.Health {
	if err := g.client.HealthCheck(ctx); err != nil {
		return stage.Unhealthy("generation", err.Error())
	}
	return stage.Healthy("generation")
}

func (g *Generator) loadContent(ctx context.Context, job *queue.Job) (stage.StructuredContent, error) {
	output, err := g.store.GetStageOutput(ctx, job.ID, queue.StageExtracting)
	if err != nil {
		return stage.StructuredContent{}, err
	}
	if output == nil {
		return stage.StructuredContent{}, services.Wrap(services.ErrMalformedInput, "generating", "load content",
			"No extraction output recorded for job", nil)
	}
	return stage.ParseStructuredContent(output.PayloadJSON)
}

// normalizeDraft enforces the deck envelope: a title slide opens the deck
// and a summary slide closes it, with sensible fallbacks when the model
// omits either.
func normalizeDraft(draft stage.DeckDraft, content stage.StructuredContent) stage.DeckDraft {
	if strings.TrimSpace(draft.Title) == "" {
		draft.Title = content.Title
	}

	slides := make([]stage.Slide, 0, len(draft.Slides)+2)
	for _, slide := range draft.Slides {
		slide.Title = strings.TrimSpace(slide.Title)
		switch slide.Kind {
		case stage.SlideKindTitle, stage.SlideKindContent, stage.SlideKindSummary:
		default:
			slide.Kind = stage.SlideKindContent
		}
		if slide.Title == "" && len(slide.Bullets) == 0 {
			continue
		}
		slides = append(slides, slide)
	}
	if len(slides) == 0 {
		return stage.DeckDraft{Title: draft.Title}
	}

	if slides[0].Kind != stage.SlideKindTitle {
		slides = append([]stage.Slide{{Kind: stage.SlideKindTitle, Title: draft.Title}}, slides...)
	}
	if slides[len(slides)-1].Kind != stage.SlideKindSummary {
		summary := stage.Slide{Kind: stage.SlideKindSummary, Title: "Summary"}
		if s := strings.TrimSpace(content.Summary); s != "" {
			summary.Bullets = []string{s}
		}
		slides = append(slides, summary)
	}

	draft.Slides = slides
	return draft
}
