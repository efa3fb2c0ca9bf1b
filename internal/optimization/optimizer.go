package optimization

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"deckforge/internal/config"
	"deckforge/internal/documents"
	"deckforge/internal/logging"
	"deckforge/internal/queue"
	"deckforge/internal/services"
	"deckforge/internal/services/llm"
	"deckforge/internal/services/render"
	"deckforge/internal/stage"
)

// Capability is the model call optimization depends on.
type Capability interface {
	CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error)
	HealthCheck(ctx context.Context) error
}

// Renderer produces the final artifact from a styled draft.
type Renderer interface {
	Render(ctx context.Context, draft stage.DeckDraft, decision stage.StyleDecision) (string, error)
}

// Optimizer styles a drafted deck and produces the final artifact. The
// style comes from the submission settings when present, otherwise from the
// model's read of the deck's domain and tone.
type Optimizer struct {
	store    *queue.Store
	cfg      *config.Config
	client   Capability
	renderer Renderer
	logger   *slog.Logger
}

// New constructs the optimization stage processor using default dependencies.
func New(cfg *config.Config, store *queue.Store, logger *slog.Logger) *Optimizer {
	client := llm.NewClient(llm.Config{
		APIKey:         cfg.LLM.APIKey,
		BaseURL:        cfg.LLM.BaseURL,
		Model:          cfg.LLM.Model,
		TimeoutSeconds: cfg.LLM.TimeoutSeconds,
	})
	renderer := render.New(cfg, documents.NewStore(cfg))
	return NewWithDependencies(cfg, store, logger, client, renderer)
}

// NewWithDependencies allows injecting collaborators (used in tests).
func NewWithDependencies(cfg *config.Config, store *queue.Store, logger *slog.Logger, client Capability, renderer Renderer) *Optimizer {
	return &Optimizer{
		store:    store,
		cfg:      cfg,
		client:   client,
		renderer: renderer,
		logger:   logging.NewComponentLogger(logger, "optimization"),
	}
}

// Prepare validates that generation output is present and parseable.
func (o *Optimizer) Prepare(ctx context.Context, job *queue.Job) error {
	_, err := o.loadDraft(ctx, job)
	return err
}

// Execute picks a style, renders the artifact, and records the decision as
// the stage output. The artifact reference lands on the job record.
func (o *Optimizer) Execute(ctx context.Context, job *queue.Job) error {
	logger := logging.WithContext(ctx, o.logger)

	draft, err := o.loadDraft(ctx, job)
	if err != nil {
		return err
	}

	decision, err := o.decideStyle(ctx, job, draft)
	if err != nil {
		return err
	}

	ref, err := o.renderer.Render(ctx, draft, decision)
	if err != nil {
		return err
	}
	decision.ArtifactRef = ref

	payload, err := json.Marshal(decision)
	if err != nil {
		return fmt.Errorf("encode style decision: %w", err)
	}
	if err := o.store.PutStageOutput(ctx, &queue.StageOutput{
		JobID:       job.ID,
		Stage:       queue.StageOptimizing,
		PayloadJSON: string(payload),
	}); err != nil {
		return err
	}

	job.ArtifactRef = ref
	logger.Info("deck styled",
		logging.String("style", decision.Style),
		logging.String("artifact", ref),
	)
	return nil
}

// HealthCheck verifies the capability is reachable.
func (o *Optimizer) HealthCheck(ctx context.Context) stage.Health {
	if err := o.client.HealthCheck(ctx); err != nil {
		return stage.Unhealthy("optimization", err.Error())
	}
	return stage.Healthy("optimization")
}

func (o *Optimizer) loadDraft(ctx context.Context, job *queue.Job) (stage.DeckDraft, error) {
	output, err := o.store.GetStageOutput(ctx, job.ID, queue.StageGenerating)
	if err != nil {
		return stage.DeckDraft{}, err
	}
	if output == nil {
		return stage.DeckDraft{}, services.Wrap(services.ErrMalformedInput, "optimizing", "load draft",
			"No generation output recorded for job", nil)
	}
	return stage.ParseDeckDraft(output.PayloadJSON)
}

func (o *Optimizer) decideStyle(ctx context.Context, job *queue.Job, draft stage.DeckDraft) (stage.StyleDecision, error) {
	settings, err := job.ParseSettings()
	if err == nil && settings.Style != "" && render.IsStyle(settings.Style) {
		return stage.StyleDecision{Style: settings.Style}, nil
	}

	draftJSON, err := json.Marshal(draft)
	if err != nil {
		return stage.StyleDecision{}, fmt.Errorf("encode draft: %w", err)
	}
	raw, err := o.client.CompleteJSON(ctx, stylePrompt, string(draftJSON))
	if err != nil {
		return stage.StyleDecision{}, services.Wrap(llm.Marker(err), "optimizing", "select style", "", err)
	}

	var decision stage.StyleDecision
	if err := llm.DecodeJSON(raw, &decision); err != nil {
		return stage.StyleDecision{}, services.Wrap(services.ErrTransient, "optimizing", "select style",
			"model returned unparseable style decision", err)
	}
	decision.Style = strings.ToLower(strings.TrimSpace(decision.Style))
	if !render.IsStyle(decision.Style) {
		decision.Style = "professional"
	}
	return decision, nil
}
