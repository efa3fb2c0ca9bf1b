package extraction_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"deckforge/internal/chunking"
	"deckforge/internal/documents"
	"deckforge/internal/extraction"
	"deckforge/internal/logging"
	"deckforge/internal/queue"
	"deckforge/internal/services"
	"deckforge/internal/stage"
	"deckforge/internal/testsupport"
)

type fakeCapability struct {
	response string
	err      error
	calls    int
}

func (f *fakeCapability) CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func (f *fakeCapability) HealthCheck(ctx context.Context) error { return f.err }

func newExtractor(t *testing.T, store *queue.Store, client extraction.Capability) (*extraction.Extractor, *documents.Store) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	docs := documents.NewStore(cfg)
	chunker := chunking.New(cfg, logging.NewNop())
	return extraction.NewWithDependencies(cfg, store, logging.NewNop(), docs, chunker, client), docs
}

const chunkResponse = `{
  "title": "Quarterly Report",
  "summary": "Revenue grew.",
  "keywords": ["Revenue", "growth", "revenue"],
  "sections": [{"heading": "Numbers", "content": "Revenue up 10%.", "points": [{"text": "Revenue +10%", "importance": 9}]}]
}`

func submitDocument(t *testing.T, store *queue.Store, cfgDocs *documents.Store, content string) *queue.Job {
	t.Helper()
	ref := testsupport.WriteDocument(t, cfgDocs.Resolve("report.txt"), content)
	job, err := store.NewJob(context.Background(), ref, "txt", "", "")
	if err != nil {
		t.Fatalf("NewJob failed: %v", err)
	}
	return job
}

func TestPrepareRecordsChunkPlanAndTitle(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	client := &fakeCapability{response: chunkResponse}
	extractor, docs := newExtractor(t, store, client)

	job := submitDocument(t, store, docs, "Quarterly Report\n\nRevenue went up this quarter.\n")

	if err := extractor.Prepare(context.Background(), job); err != nil {
		t.Fatalf("Prepare failed: %v", err)
	}
	set, err := store.GetChunkSet(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("GetChunkSet failed: %v", err)
	}
	if set == nil || len(set.Chunks) == 0 {
		t.Fatal("expected chunk plan recorded")
	}
	if job.Title != "Quarterly Report" {
		t.Fatalf("expected inferred title, got %q", job.Title)
	}
}

func TestPrepareReplaysRecordedPlanOnRetry(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	extractor, docs := newExtractor(t, store, &fakeCapability{response: chunkResponse})

	job := submitDocument(t, store, docs, testsupport.LargeDocument(64*1024))

	if err := extractor.Prepare(context.Background(), job); err != nil {
		t.Fatalf("Prepare failed: %v", err)
	}
	first, err := store.GetChunkSet(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("GetChunkSet failed: %v", err)
	}

	if err := extractor.Prepare(context.Background(), job); err != nil {
		t.Fatalf("retried Prepare failed: %v", err)
	}
	second, err := store.GetChunkSet(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("GetChunkSet failed: %v", err)
	}

	if len(first.Chunks) != len(second.Chunks) {
		t.Fatalf("retry changed chunk count: %d vs %d", len(first.Chunks), len(second.Chunks))
	}
	for i := range first.Chunks {
		if first.Chunks[i] != second.Chunks[i] {
			t.Fatalf("retry changed chunk %d", i)
		}
	}
}

func TestPrepareAppliesTokenBudgetSetting(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	extractor, docs := newExtractor(t, store, &fakeCapability{response: chunkResponse})

	ref := testsupport.WriteDocument(t, docs.Resolve("big.txt"), testsupport.LargeDocument(64*1024))
	job, err := store.NewJob(context.Background(), ref, "txt", "", `{"token_budget":8}`)
	if err != nil {
		t.Fatalf("NewJob failed: %v", err)
	}

	if err := extractor.Prepare(context.Background(), job); err != nil {
		t.Fatalf("Prepare failed: %v", err)
	}
	set, err := store.GetChunkSet(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("GetChunkSet failed: %v", err)
	}

	var recorded struct {
		TokenBudget int `json:"token_budget"`
	}
	if err := json.Unmarshal([]byte(set.ParamsJSON), &recorded); err != nil {
		t.Fatalf("decode recorded params: %v", err)
	}
	if recorded.TokenBudget != 8 {
		t.Fatalf("expected submission budget in the chunk plan, got %d", recorded.TokenBudget)
	}
}

func TestPrepareUnsupportedFormatIsTerminal(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	extractor, docs := newExtractor(t, store, &fakeCapability{response: chunkResponse})

	ref := testsupport.WriteDocument(t, docs.Resolve("slides.pdf"), "%PDF-1.7 binary")
	job, err := store.NewJob(context.Background(), ref, "pdf", "", "")
	if err != nil {
		t.Fatalf("NewJob failed: %v", err)
	}

	err = extractor.Prepare(context.Background(), job)
	if !errors.Is(err, services.ErrMalformedInput) {
		t.Fatalf("expected malformed-input marker, got %v", err)
	}
	if services.Retryable(err) {
		t.Fatal("unsupported format must not be retryable")
	}
}

func TestExecuteMergesChunksAndPreservesRoles(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	client := &fakeCapability{response: chunkResponse}
	extractor, docs := newExtractor(t, store, client)

	job := submitDocument(t, store, docs, testsupport.LargeDocument(64*1024))
	ctx := context.Background()
	if err := extractor.Prepare(ctx, job); err != nil {
		t.Fatalf("Prepare failed: %v", err)
	}
	set, _ := store.GetChunkSet(ctx, job.ID)
	if len(set.Chunks) < 2 {
		t.Fatalf("test needs a multi-chunk plan, got %d", len(set.Chunks))
	}

	if err := extractor.Execute(ctx, job); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if client.calls != len(set.Chunks) {
		t.Fatalf("expected one capability call per chunk, got %d for %d chunks", client.calls, len(set.Chunks))
	}

	output, err := store.GetStageOutput(ctx, job.ID, queue.StageExtracting)
	if err != nil {
		t.Fatalf("GetStageOutput failed: %v", err)
	}
	if output == nil {
		t.Fatal("expected stage output recorded")
	}
	content, err := stage.ParseStructuredContent(output.PayloadJSON)
	if err != nil {
		t.Fatalf("output unparseable: %v", err)
	}
	if len(content.Sections) != len(set.Chunks) {
		t.Fatalf("expected one merged section per chunk, got %d", len(content.Sections))
	}
	if content.Sections[0].Role != string(queue.RoleIntroduction) {
		t.Fatalf("expected chunk role preserved, got %q", content.Sections[0].Role)
	}
	for _, section := range content.Sections {
		for _, point := range section.Points {
			if point.Importance < 1 || point.Importance > 5 {
				t.Fatalf("importance out of range: %d", point.Importance)
			}
		}
	}
	if len(content.Keywords) != 2 {
		t.Fatalf("expected deduplicated keywords, got %v", content.Keywords)
	}
}

func TestExecuteCapabilityErrorCarriesMarker(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	client := &fakeCapability{err: fmt.Errorf("connect: connection refused")}
	extractor, docs := newExtractor(t, store, client)

	job := submitDocument(t, store, docs, "A short document.\n")
	ctx := context.Background()
	if err := extractor.Prepare(ctx, job); err != nil {
		t.Fatalf("Prepare failed: %v", err)
	}

	err := extractor.Execute(ctx, job)
	if err == nil {
		t.Fatal("expected capability error")
	}
	if !services.Retryable(err) {
		t.Fatalf("expected retryable transport error, got %v", err)
	}
}
