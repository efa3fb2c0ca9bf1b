package extraction

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"deckforge/internal/chunking"
	"deckforge/internal/config"
	"deckforge/internal/documents"
	"deckforge/internal/logging"
	"deckforge/internal/queue"
	"deckforge/internal/services"
	"deckforge/internal/services/llm"
	"deckforge/internal/stage"
)

// Capability is the model call extraction depends on.
type Capability interface {
	CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error)
	HealthCheck(ctx context.Context) error
}

// Extractor distills a submitted document into structured content. It owns
// the chunk plan: Prepare builds (or replays) the plan, Execute synthesizes
// each chunk through the capability and merges the results.
type Extractor struct {
	store   *queue.Store
	cfg     *config.Config
	docs    *documents.Store
	chunker *chunking.Extractor
	client  Capability
	logger  *slog.Logger
}

// New constructs the extraction stage processor using default dependencies.
func New(cfg *config.Config, store *queue.Store, logger *slog.Logger) *Extractor {
	client := llm.NewClient(llm.Config{
		APIKey:         cfg.LLM.APIKey,
		BaseURL:        cfg.LLM.BaseURL,
		Model:          cfg.LLM.Model,
		TimeoutSeconds: cfg.LLM.TimeoutSeconds,
	})
	return NewWithDependencies(cfg, store, logger, documents.NewStore(cfg), chunking.New(cfg, logger), client)
}

// NewWithDependencies allows injecting collaborators (used in tests).
func NewWithDependencies(cfg *config.Config, store *queue.Store, logger *slog.Logger, docs *documents.Store, chunker *chunking.Extractor, client Capability) *Extractor {
	return &Extractor{
		store:   store,
		cfg:     cfg,
		docs:    docs,
		chunker: chunker,
		client:  client,
		logger:  logging.NewComponentLogger(logger, "extraction"),
	}
}

// Prepare loads the document and records the chunk plan. A retried attempt
// replays the previously recorded parameters so it sees identical chunks.
func (e *Extractor) Prepare(ctx context.Context, job *queue.Job) error {
	logger := logging.WithContext(ctx, e.logger)

	raw, err := e.docs.ReadDocument(job.DocumentRef)
	if err != nil {
		return err
	}

	existing, err := e.store.GetChunkSet(ctx, job.ID)
	if err != nil {
		return err
	}

	var set *queue.ChunkSet
	if existing != nil {
		set, err = e.chunker.Replay(job.ID, job.DocumentFormat, raw, existing.ParamsJSON)
	} else {
		chunker := e.chunker
		if settings, serr := job.ParseSettings(); serr == nil && settings.TokenBudget > 0 {
			chunker = chunker.WithTokenBudget(settings.TokenBudget)
		}
		set, err = chunker.Extract(job.ID, job.DocumentFormat, raw)
	}
	if err != nil {
		return services.Wrap(services.ErrMalformedInput, "extracting", "build chunk plan", "", err)
	}

	if err := e.store.PutChunkSet(ctx, set); err != nil {
		return err
	}

	if job.Title == "" {
		job.Title = documents.InferTitle(job.DocumentRef, raw)
	}

	logger.Info("chunk plan ready",
		logging.String("strategy", set.Strategy),
		logging.Int("chunks", len(set.Chunks)),
		logging.Int("total_bytes", set.TotalBytes),
	)
	return nil
}

// Execute synthesizes structured content from the chunk plan and records it
// as the stage output.
func (e *Extractor) Execute(ctx context.Context, job *queue.Job) error {
	logger := logging.WithContext(ctx, e.logger)

	set, err := e.store.GetChunkSet(ctx, job.ID)
	if err != nil {
		return err
	}
	if set == nil || len(set.Chunks) == 0 {
		return services.Wrap(services.ErrMalformedInput, "extracting", "load chunk plan",
			"No chunk plan recorded; extraction preparation did not run", nil)
	}

	partials := make([]chunkContent, 0, len(set.Chunks))
	for _, chunk := range set.Chunks {
		if err := ctx.Err(); err != nil {
			return err
		}
		partial, err := e.synthesizeChunk(ctx, chunk)
		if err != nil {
			return err
		}
		partials = append(partials, partial)
	}

	content := mergePartials(job.Title, set.Chunks, partials)
	payload, err := json.Marshal(content)
	if err != nil {
		return fmt.Errorf("encode structured content: %w", err)
	}
	if err := e.store.PutStageOutput(ctx, &queue.StageOutput{
		JobID:       job.ID,
		Stage:       queue.StageExtracting,
		PayloadJSON: string(payload),
	}); err != nil {
		return err
	}

	if content.Title != "" {
		job.Title = content.Title
	}
	logger.Info("structured content recorded",
		logging.Int("sections", len(content.Sections)),
		logging.Int("keywords", len(content.Keywords)),
	)
	return nil
}

// HealthCheck verifies the capability is reachable.
func (e *Extractor) HealthCheck(ctx context.Context) stage.Health {
	if err := e.client.HealthCheck(ctx); err != nil {
		return stage.Unhealthy("extraction", err.Error())
	}
	return stage.Healthy("extraction")
}

// chunkContent is the per-chunk synthesis result before merging.
type chunkContent struct {
	Title    string          `json:"title"`
	Summary  string          `json:"summary"`
	Keywords []string        `json:"keywords"`
	Sections []stage.Section `json:"sections"`
}

func (e *Extractor) synthesizeChunk(ctx context.Context, chunk queue.Chunk) (chunkContent, error) {
	var empty chunkContent
	userPrompt := fmt.Sprintf("Document excerpt (part %d, sampled as %s):\n\n%s", chunk.Seq+1, chunk.Role, chunk.Text)
	raw, err := e.client.CompleteJSON(ctx, extractionPrompt, userPrompt)
	if err != nil {
		return empty, services.Wrap(llm.Marker(err), "extracting", "synthesize chunk",
			fmt.Sprintf("chunk %d failed", chunk.Seq), err)
	}
	var partial chunkContent
	if err := llm.DecodeJSON(raw, &partial); err != nil {
		return empty, services.Wrap(services.ErrTransient, "extracting", "synthesize chunk",
			fmt.Sprintf("chunk %d returned unparseable content", chunk.Seq), err)
	}
	return partial, nil
}

// mergePartials folds per-chunk results into one document-level content
// structure. Sections keep their source chunk's role so later stages can
// tell authoritative content from sampled content.
func mergePartials(fallbackTitle string, chunks []queue.Chunk, partials []chunkContent) stage.StructuredContent {
	content := stage.StructuredContent{Title: fallbackTitle}

	seenKeyword := map[string]struct{}{}
	var summaries []string
	for i, partial := range partials {
		role := string(chunks[i].Role)
		if content.Title == "" && strings.TrimSpace(partial.Title) != "" {
			content.Title = strings.TrimSpace(partial.Title)
		}
		if s := strings.TrimSpace(partial.Summary); s != "" {
			summaries = append(summaries, s)
		}
		for _, keyword := range partial.Keywords {
			keyword = strings.ToLower(strings.TrimSpace(keyword))
			if keyword == "" {
				continue
			}
			if _, dup := seenKeyword[keyword]; dup {
				continue
			}
			seenKeyword[keyword] = struct{}{}
			content.Keywords = append(content.Keywords, keyword)
		}
		for _, section := range partial.Sections {
			if section.Role == "" {
				section.Role = role
			}
			clampImportance(section.Points)
			content.Sections = append(content.Sections, section)
		}
	}
	content.Summary = strings.Join(summaries, " ")
	return content
}

func clampImportance(points []stage.Point) {
	for i := range points {
		if points[i].Importance < 1 {
			points[i].Importance = 1
		}
		if points[i].Importance > 5 {
			points[i].Importance = 5
		}
	}
}
