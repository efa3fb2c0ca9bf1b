package optimization_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"deckforge/internal/optimization"
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

type fakeRenderer struct {
	ref      string
	err      error
	decision stage.StyleDecision
}

func (f *fakeRenderer) Render(ctx context.Context, draft stage.DeckDraft, decision stage.StyleDecision) (string, error) {
	f.decision = decision
	if f.err != nil {
		return "", f.err
	}
	return f.ref, nil
}

const draftPayload = `{
  "title": "Quarterly Report",
  "slides": [
    {"kind": "title", "title": "Quarterly Report"},
    {"kind": "summary", "title": "Summary", "bullets": ["done"]}
  ]
}`

func seedDraftedJob(t *testing.T, store *queue.Store, settingsJSON string) *queue.Job {
	t.Helper()
	job, err := store.NewJob(context.Background(), "/docs/report.txt", "txt", "Quarterly Report", settingsJSON)
	if err != nil {
		t.Fatalf("NewJob failed: %v", err)
	}
	err = store.PutStageOutput(context.Background(), &queue.StageOutput{
		JobID:       job.ID,
		Stage:       queue.StageGenerating,
		PayloadJSON: draftPayload,
	})
	if err != nil {
		t.Fatalf("PutStageOutput failed: %v", err)
	}
	return job
}

func TestExecuteStylesAndRecordsArtifact(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	client := &fakeCapability{response: `{"style":"academic","domain":"finance","tone":"formal"}`}
	renderer := &fakeRenderer{ref: "/artifacts/deck.html"}
	optimizer := optimization.NewWithDependencies(cfg, store, nil, client, renderer)

	job := seedDraftedJob(t, store, "")
	ctx := context.Background()
	if err := optimizer.Prepare(ctx, job); err != nil {
		t.Fatalf("Prepare failed: %v", err)
	}
	if err := optimizer.Execute(ctx, job); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if job.ArtifactRef != "/artifacts/deck.html" {
		t.Fatalf("expected artifact ref on job, got %q", job.ArtifactRef)
	}
	if renderer.decision.Style != "academic" {
		t.Fatalf("expected model style used, got %q", renderer.decision.Style)
	}

	output, err := store.GetStageOutput(ctx, job.ID, queue.StageOptimizing)
	if err != nil || output == nil {
		t.Fatalf("expected optimization output, got %v %v", output, err)
	}
	var decision stage.StyleDecision
	if err := json.Unmarshal([]byte(output.PayloadJSON), &decision); err != nil {
		t.Fatalf("decision unparseable: %v", err)
	}
	if decision.ArtifactRef != "/artifacts/deck.html" || decision.Domain != "finance" {
		t.Fatalf("unexpected decision: %#v", decision)
	}
}

func TestExecuteHonorsStyleHint(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	client := &fakeCapability{response: `{"style":"academic"}`}
	renderer := &fakeRenderer{ref: "/artifacts/deck.html"}
	optimizer := optimization.NewWithDependencies(cfg, store, nil, client, renderer)

	job := seedDraftedJob(t, store, `{"style":"minimal"}`)
	if err := optimizer.Execute(context.Background(), job); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if client.calls != 0 {
		t.Fatalf("style hint must skip the capability call, got %d calls", client.calls)
	}
	if renderer.decision.Style != "minimal" {
		t.Fatalf("expected hinted style, got %q", renderer.decision.Style)
	}
}

func TestExecuteFallsBackToProfessionalOnUnknownStyle(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	client := &fakeCapability{response: `{"style":"vaporwave"}`}
	renderer := &fakeRenderer{ref: "/artifacts/deck.html"}
	optimizer := optimization.NewWithDependencies(cfg, store, nil, client, renderer)

	job := seedDraftedJob(t, store, "")
	if err := optimizer.Execute(context.Background(), job); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if renderer.decision.Style != "professional" {
		t.Fatalf("expected fallback style, got %q", renderer.decision.Style)
	}
}

func TestPrepareWithoutDraftIsTerminal(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	optimizer := optimization.NewWithDependencies(cfg, store, nil, &fakeCapability{}, &fakeRenderer{})

	job := testsupport.NewJob(t, store, "/docs/report.txt", "")
	err := optimizer.Prepare(context.Background(), job)
	if !errors.Is(err, services.ErrMalformedInput) {
		t.Fatalf("expected malformed-input marker, got %v", err)
	}
}
