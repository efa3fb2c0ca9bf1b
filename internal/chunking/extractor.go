package chunking

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"deckforge/internal/config"
	"deckforge/internal/logging"
	"deckforge/internal/queue"
)

// Extractor builds chunk plans for submitted documents. A plan is a pure
// function of the document bytes and the recorded parameters, so the same
// inputs always yield byte-identical chunks.
type Extractor struct {
	params Params
	tokens tokenizer
	logger *slog.Logger
}

// New builds an Extractor from configuration.
func New(cfg *config.Config, logger *slog.Logger) *Extractor {
	tokens, err := newTokenizer()
	log := logging.NewComponentLogger(logger, "chunking")
	if err != nil {
		log.Warn("token vocabulary unavailable, using byte estimate", logging.Error(err))
	}
	return &Extractor{
		params: Params{
			ThresholdBytes: cfg.Chunking.ThresholdBytes,
			TokenBudget:    cfg.Chunking.TokenBudget,
			HeadUnits:      cfg.Chunking.HeadUnits,
			TailUnits:      cfg.Chunking.TailUnits,
			BodySamples:    cfg.Chunking.BodySamples,
			WindowBytes:    cfg.Chunking.WindowBytes,
			FlatWindows:    cfg.Chunking.FlatWindows,
		},
		tokens: tokens,
		logger: log,
	}
}

// WithTokenBudget returns an extractor whose plans cap chunk text at the
// given per-chunk token budget instead of the configured one. Zero or
// negative budgets keep the configured value. The override is recorded in
// the plan parameters, so retries replay it.
func (e *Extractor) WithTokenBudget(budget int) *Extractor {
	if budget <= 0 {
		return e
	}
	clone := *e
	clone.params.TokenBudget = budget
	return &clone
}

// Extract produces the chunk plan for a document. Unknown formats fail with
// ErrUnsupportedFormat and documents that normalize to nothing fail with
// ErrEmptyDocument; both are terminal for the job.
func (e *Extractor) Extract(jobID int64, format string, raw []byte) (*queue.ChunkSet, error) {
	strat, ok := strategies[strings.ToLower(strings.TrimSpace(format))]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}

	text := normalizeText(raw)
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyDocument
	}

	var chunks []queue.Chunk
	if len(text) <= e.params.ThresholdBytes {
		chunks = []queue.Chunk{chunkAt(text, queue.RoleFull, 0, len(text))}
	} else {
		chunks = strat.Plan(text, e.params)
	}

	for i := range chunks {
		chunks[i].Seq = i
		trimmed := e.tokens.Truncate(chunks[i].Text, e.params.TokenBudget)
		if len(trimmed) < len(chunks[i].Text) {
			chunks[i].Text = trimmed
			chunks[i].End = chunks[i].Start + len(trimmed)
		}
	}

	paramsJSON, err := json.Marshal(e.params)
	if err != nil {
		return nil, fmt.Errorf("marshal chunk params: %w", err)
	}

	e.logger.Debug("chunk plan built",
		logging.Int64(logging.FieldJobID, jobID),
		logging.String("strategy", strat.Name()),
		logging.Int("chunks", len(chunks)),
		logging.Int("total_bytes", len(text)),
	)

	return &queue.ChunkSet{
		JobID:      jobID,
		Strategy:   strat.Name(),
		ParamsJSON: string(paramsJSON),
		TotalBytes: len(text),
		Chunks:     chunks,
	}, nil
}

// Replay rebuilds the chunk plan with previously recorded parameters instead
// of the live configuration.
func (e *Extractor) Replay(jobID int64, format string, raw []byte, paramsJSON string) (*queue.ChunkSet, error) {
	var recorded Params
	if err := json.Unmarshal([]byte(paramsJSON), &recorded); err != nil {
		return nil, fmt.Errorf("decode recorded chunk params: %w", err)
	}
	replay := &Extractor{params: recorded, tokens: e.tokens, logger: e.logger}
	return replay.Extract(jobID, format, raw)
}
