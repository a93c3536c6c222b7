package chain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pablasso/storyrunner/internal/backlog"
	"github.com/pablasso/storyrunner/internal/config"
	"github.com/pablasso/storyrunner/internal/executor"
	"github.com/pablasso/storyrunner/internal/gate"
	"github.com/pablasso/storyrunner/internal/shell"
	"github.com/pablasso/storyrunner/internal/supervise"
)

func storyDoc(title string) string {
	return "# " + title + "\n\n## Tasks\n\n```json\n[\n  {\"id\": 1, \"title\": \"Do the thing\", \"acceptanceCriteria\": [], \"steps\": [], \"checkCommands\": [], \"passes\": false}\n]\n```\n"
}

type fakeExec struct {
	calls   int
	stories []string
	respond func(ctx context.Context, call int, story *backlog.Story) (*executor.Outcome, error)
}

func (f *fakeExec) Run(ctx context.Context, story *backlog.Story) (*executor.Outcome, error) {
	f.calls++
	f.stories = append(f.stories, story.Key.String())
	if f.respond != nil {
		return f.respond(ctx, f.calls, story)
	}
	return &executor.Outcome{Completed: true, Attempts: 1}, nil
}

type fakeValidator struct {
	storyCalls  int
	epicCalls   int
	respond     func() (*gate.ValidationResult, error)
	respondEpic func(epic int) (*gate.ValidationResult, error)
}

func (f *fakeValidator) Run(ctx context.Context, story *backlog.Story) (*gate.ValidationResult, error) {
	f.storyCalls++
	if f.respond != nil {
		return f.respond()
	}
	return &gate.ValidationResult{Passed: true}, nil
}

func (f *fakeValidator) RunEpic(ctx context.Context, ws *backlog.Workspace, epic int) (*gate.ValidationResult, error) {
	f.epicCalls++
	if f.respondEpic != nil {
		return f.respondEpic(epic)
	}
	return &gate.ValidationResult{Passed: true}, nil
}

type fakeReviewer struct {
	calls   int
	respond func() (*gate.ReviewResult, error)
}

func (f *fakeReviewer) Run(ctx context.Context, story *backlog.Story) (*gate.ReviewResult, error) {
	f.calls++
	if f.respond != nil {
		return f.respond()
	}
	return &gate.ReviewResult{Verdict: gate.VerdictPass, Iterations: 1}, nil
}

type fakeGenerator struct {
	calls int
	fail  bool
}

func (f *fakeGenerator) Generate(ctx context.Context, ws *backlog.Workspace, key backlog.Key) (*backlog.Story, error) {
	f.calls++
	if f.fail {
		return nil, fmt.Errorf("story generation failed for %s: worker unavailable", key)
	}
	return backlog.WriteStory(ws, key, storyDoc("Generated "+key.String()))
}

// chainRecorder records pipeline events as compact strings; NopEvents
// absorbs the task-level callbacks the chain tests do not assert on.
type chainRecorder struct {
	NopEvents
	events []string
}

func (r *chainRecorder) add(format string, args ...interface{}) {
	r.events = append(r.events, fmt.Sprintf(format, args...))
}

func (r *chainRecorder) has(event string) bool {
	for _, e := range r.events {
		if e == event {
			return true
		}
	}
	return false
}

func (r *chainRecorder) OnRunStart(runID string, chainMode bool) {
	r.add("run-start chain=%v", chainMode)
}

func (r *chainRecorder) OnStorySelected(key backlog.Key, title string, resumed bool) {
	r.add("selected %s resumed=%v", key, resumed)
}

func (r *chainRecorder) OnGenerationStart(key backlog.Key) {
	r.add("generate-start %s", key)
}

func (r *chainRecorder) OnGenerationEnd(key backlog.Key, err error) {
	r.add("generate-end %s failed=%v", key, err != nil)
}

func (r *chainRecorder) OnValidationStart() {
	r.add("validate-start")
}

func (r *chainRecorder) OnValidationEnd(result *gate.ValidationResult) {
	r.add("validate-end passed=%v", result.Passed)
}

func (r *chainRecorder) OnStoryDone(key backlog.Key, elapsed time.Duration) {
	r.add("done %s", key)
}

func (r *chainRecorder) OnStoryEscalated(key backlog.Key, category, reason string) {
	r.add("escalated %s %s", key, category)
}

func (r *chainRecorder) OnEpicDone(epic int) {
	r.add("epic-done %d", epic)
}

func (r *chainRecorder) OnEpicFailed(epic int, reason string) {
	r.add("epic-failed %d", epic)
}

func (r *chainRecorder) OnRunEnd(summary *Summary) {
	r.add("run-end done=%d escalated=%d", summary.StoriesDone, summary.StoriesEscalated)
}

type fixture struct {
	ws     *backlog.Workspace
	ledger *backlog.Ledger
	exec   *fakeExec
	val    *fakeValidator
	rev    *fakeReviewer
	gen    *fakeGenerator
	events *chainRecorder
	runDir string
}

func newFixture(t *testing.T, ledgerContent string, artifacts ...string) *fixture {
	t.Helper()
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, ".storyrunner", "stories"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, ".storyrunner", "status.yaml"), []byte(ledgerContent), 0644); err != nil {
		t.Fatal(err)
	}
	ws, err := backlog.OpenWorkspace(root)
	if err != nil {
		t.Fatal(err)
	}
	ledger, err := ws.Ledger()
	if err != nil {
		t.Fatal(err)
	}
	runDir, err := ws.RunDir("testrun")
	if err != nil {
		t.Fatal(err)
	}
	for _, raw := range artifacts {
		key, err := backlog.ParseKey(raw)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := backlog.WriteStory(ws, key, storyDoc("Story "+raw)); err != nil {
			t.Fatal(err)
		}
	}
	return &fixture{
		ws:     ws,
		ledger: ledger,
		exec:   &fakeExec{},
		val:    &fakeValidator{},
		rev:    &fakeReviewer{},
		gen:    &fakeGenerator{},
		events: &chainRecorder{},
		runDir: runDir,
	}
}

func (f *fixture) controller(cfg *config.Config) *Controller {
	return New(f.ws, f.ledger, cfg, Pipeline{
		RunID:      "testrun",
		RunDir:     f.runDir,
		Executor:   f.exec,
		Validation: f.val,
		Review:     f.rev,
		Generator:  f.gen,
	}).WithEvents(f.events)
}

func chainConfig() *config.Config {
	return &config.Config{
		Chain:        true,
		StoryTimeout: time.Minute,
	}
}

func statusOf(t *testing.T, l *backlog.Ledger, key string) backlog.Status {
	t.Helper()
	st, ok := l.Status(key)
	if !ok {
		t.Fatalf("no ledger entry for %s", key)
	}
	return st
}

func timelineEvents(t *testing.T, runDir string) []string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(runDir, "timeline.jsonl"))
	if err != nil {
		t.Fatal(err)
	}
	var out []string
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		var ev TimelineEvent
		if err := json.Unmarshal([]byte(line), &ev); err != nil {
			t.Fatalf("bad timeline line %q: %v", line, err)
		}
		out = append(out, ev.Event)
	}
	return out
}

func failedValidation(command string, exit int) *gate.ValidationResult {
	failed := &shell.CmdResult{Command: command, ExitCode: exit}
	return &gate.ValidationResult{Passed: false, Results: []*shell.CmdResult{failed}, Failed: failed}
}

func TestController_SingleStoryToDone(t *testing.T) {
	fx := newFixture(t, "1-1-first: ready-for-dev\n", "1-1-first")
	cfg := chainConfig()
	cfg.Chain = false

	summary, err := fx.controller(cfg).Run(context.Background(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.StoriesDone != 1 || summary.StoriesEscalated != 0 {
		t.Errorf("got %+v, want one clean story", summary)
	}
	if !summary.Clean() {
		t.Error("summary must be clean")
	}
	if summary.Exhausted {
		t.Error("single pass must not report exhaustion")
	}
	if got := statusOf(t, fx.ledger, "1-1-first"); got != backlog.StatusDone {
		t.Errorf("got ledger status %q, want done", got)
	}
	if got := fx.ledger.EpicStatus(1); got != backlog.StatusDone {
		t.Errorf("got epic status %q, want done after last story", got)
	}

	want := []string{
		EventRunStarted,
		EventStorySelected,
		EventStoryStarted,
		EventValidationPassed,
		EventReviewVerdict,
		EventStoryDone,
		EventEpicDone,
		EventRunFinished,
	}
	got := timelineEvents(t, fx.runDir)
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("timeline:\ngot  %v\nwant %v", got, want)
	}

	for _, e := range []string{
		"run-start chain=false",
		"selected 1-1-first resumed=false",
		"validate-start",
		"validate-end passed=true",
		"done 1-1-first",
		"epic-done 1",
		"run-end done=1 escalated=0",
	} {
		if !fx.events.has(e) {
			t.Errorf("missing event %q in %v", e, fx.events.events)
		}
	}

	report, err := os.ReadFile(fx.ws.ReportPath())
	if err != nil {
		t.Fatalf("no progress report: %v", err)
	}
	if !strings.Contains(string(report), "1 of 1 stories done.") {
		t.Errorf("report content:\n%s", report)
	}
	if !strings.Contains(string(report), "| 1-1-first | done | 0/1 |") {
		t.Errorf("report missing task counts:\n%s", report)
	}
}

func TestController_ChainRunsUntilExhausted(t *testing.T) {
	fx := newFixture(t, "1-1-first: ready-for-dev\n1-2-second: ready-for-dev\n", "1-1-first", "1-2-second")

	summary, err := fx.controller(chainConfig()).Run(context.Background(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.StoriesDone != 2 {
		t.Errorf("got %d stories done, want 2", summary.StoriesDone)
	}
	if !summary.Exhausted {
		t.Error("chain mode must report backlog exhaustion")
	}
	if got := fx.exec.stories; strings.Join(got, ",") != "1-1-first,1-2-second" {
		t.Errorf("got execution order %v", got)
	}
	if got := statusOf(t, fx.ledger, "1-2-second"); got != backlog.StatusDone {
		t.Errorf("got %q, want done", got)
	}
	if got := fx.ledger.EpicStatus(1); got != backlog.StatusDone {
		t.Errorf("got epic status %q, want done", got)
	}
}

func TestController_ChainStopsOnEscalatedStory(t *testing.T) {
	fx := newFixture(t, "1-1-first: ready-for-dev\n1-2-second: ready-for-dev\n", "1-1-first", "1-2-second")
	fx.exec.respond = func(ctx context.Context, call int, story *backlog.Story) (*executor.Outcome, error) {
		return &executor.Outcome{
			Escalated: true,
			Category:  executor.CategoryRetriesExhausted,
			Reason:    "task 1 failed after 3 attempts",
			Attempts:  3,
		}, nil
	}

	summary, err := fx.controller(chainConfig()).Run(context.Background(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.StoriesDone != 0 || summary.StoriesEscalated != 1 {
		t.Errorf("got %+v, want one escalation and a stopped chain", summary)
	}
	if summary.Exhausted {
		t.Error("a stopped chain is not an exhausted backlog")
	}
	if len(summary.Escalations) != 1 {
		t.Fatalf("got %d escalations, want 1", len(summary.Escalations))
	}
	esc := summary.Escalations[0]
	if esc.Key.String() != "1-1-first" || esc.Category != executor.CategoryRetriesExhausted {
		t.Errorf("got escalation %+v", esc)
	}
	if got := statusOf(t, fx.ledger, "1-1-first"); got != backlog.StatusReview {
		t.Errorf("got %q, want review", got)
	}
	// Sequential work: the next story must not start behind a failure.
	if got := statusOf(t, fx.ledger, "1-2-second"); got != backlog.StatusReadyForDev {
		t.Errorf("got %q, want ready-for-dev untouched", got)
	}
	if fx.exec.calls != 1 {
		t.Errorf("got %d executor calls, want 1", fx.exec.calls)
	}
}

func TestController_SingleModeRunsRequestedStory(t *testing.T) {
	fx := newFixture(t, "1-1-first: ready-for-dev\n1-2-second: ready-for-dev\n", "1-1-first", "1-2-second")

	// The numeric prefix resolves against the ledger; chain stays off even
	// though the config enables it.
	summary, err := fx.controller(chainConfig()).Run(context.Background(), "1-2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.StoriesDone != 1 {
		t.Errorf("got %d stories done, want 1", summary.StoriesDone)
	}
	if strings.Join(fx.exec.stories, ",") != "1-2-second" {
		t.Errorf("got %v, want only the requested story", fx.exec.stories)
	}
	if got := statusOf(t, fx.ledger, "1-1-first"); got != backlog.StatusReadyForDev {
		t.Errorf("got %q, want 1-1-first untouched", got)
	}
	if !fx.events.has("run-start chain=false") {
		t.Error("explicit story selection must force single-unit mode")
	}
}

func TestController_SingleModeAlreadyDone(t *testing.T) {
	fx := newFixture(t, "1-1-first: done\n", "1-1-first")

	summary, err := fx.controller(chainConfig()).Run(context.Background(), "1-1-first")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.StoriesDone != 0 || summary.StoriesEscalated != 0 {
		t.Errorf("got %+v, want nothing to do", summary)
	}
	if fx.exec.calls != 0 {
		t.Errorf("got %d executor calls, want 0", fx.exec.calls)
	}
}

func TestController_SingleModeReviewNeedsHuman(t *testing.T) {
	fx := newFixture(t, "1-1-first: review\n", "1-1-first")

	_, err := fx.controller(chainConfig()).Run(context.Background(), "1-1-first")
	if err == nil {
		t.Fatal("expected error for a story stuck in review")
	}
	if !strings.Contains(err.Error(), "already escalated to review") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestController_SingleModeUnknownStory(t *testing.T) {
	fx := newFixture(t, "1-1-first: backlog\n", "1-1-first")

	_, err := fx.controller(chainConfig()).Run(context.Background(), "9-9")
	if err == nil || !strings.Contains(err.Error(), "not found in ledger") {
		t.Errorf("got %v, want unknown story error", err)
	}
}

func TestController_DiscoveryPrefersInProgress(t *testing.T) {
	ledger := "1-1-first: ready-for-dev\n1-2-second: in-progress\n1-3-third: backlog\n"
	fx := newFixture(t, ledger, "1-1-first", "1-2-second", "1-3-third")
	cfg := chainConfig()
	cfg.Chain = false

	if _, err := fx.controller(cfg).Run(context.Background(), ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Join(fx.exec.stories, ",") != "1-2-second" {
		t.Errorf("got %v, want the in-progress story resumed first", fx.exec.stories)
	}
	if !fx.events.has("selected 1-2-second resumed=true") {
		t.Errorf("missing resumed selection in %v", fx.events.events)
	}
}

func TestController_BacklogPromotionWithExistingArtifact(t *testing.T) {
	fx := newFixture(t, "1-1-first: backlog\n", "1-1-first")
	cfg := chainConfig()
	cfg.Chain = false

	summary, err := fx.controller(cfg).Run(context.Background(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.StoriesDone != 1 {
		t.Errorf("got %+v, want the backlog story done", summary)
	}
	if fx.gen.calls != 0 {
		t.Errorf("got %d generator calls, want 0 (artifact already authored)", fx.gen.calls)
	}
}

func TestController_GeneratesMissingArtifact(t *testing.T) {
	fx := newFixture(t, "1-1-first: backlog\n")
	cfg := chainConfig()
	cfg.Chain = false

	summary, err := fx.controller(cfg).Run(context.Background(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.StoriesDone != 1 {
		t.Errorf("got %+v, want the generated story done", summary)
	}
	if fx.gen.calls != 1 {
		t.Errorf("got %d generator calls, want 1", fx.gen.calls)
	}
	if !fx.events.has("generate-start 1-1-first") || !fx.events.has("generate-end 1-1-first failed=false") {
		t.Errorf("missing generation events in %v", fx.events.events)
	}

	found := false
	for _, e := range timelineEvents(t, fx.runDir) {
		if e == EventStoryGenerated {
			found = true
		}
	}
	if !found {
		t.Error("timeline missing story_generated")
	}
}

func TestController_GenerationFailureEscalatesAndContinues(t *testing.T) {
	fx := newFixture(t, "1-1-alpha: backlog\n1-2-beta: backlog\n", "1-2-beta")
	fx.gen.fail = true

	summary, err := fx.controller(chainConfig()).Run(context.Background(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Discovery-time escalations do not stop the chain; the next candidate
	// still runs.
	if summary.StoriesDone != 1 || summary.StoriesEscalated != 1 {
		t.Errorf("got %+v, want one escalated and one done", summary)
	}
	if !summary.Exhausted {
		t.Error("chain must drain the rest of the backlog")
	}
	if summary.Escalations[0].Category != CategoryGenerationFailed {
		t.Errorf("got category %q, want generation-failed", summary.Escalations[0].Category)
	}
	if got := statusOf(t, fx.ledger, "1-1-alpha"); got != backlog.StatusReview {
		t.Errorf("got %q, want review", got)
	}
	if got := statusOf(t, fx.ledger, "1-2-beta"); got != backlog.StatusDone {
		t.Errorf("got %q, want done", got)
	}
}

func TestController_SkipGenerationFailsWithoutArtifact(t *testing.T) {
	fx := newFixture(t, "1-1-first: backlog\n")
	cfg := chainConfig()
	cfg.SkipGeneration = true

	summary, err := fx.controller(cfg).Run(context.Background(), "1-1-first")
	var missing *MissingArtifactError
	if !errors.As(err, &missing) {
		t.Fatalf("got %v, want MissingArtifactError", err)
	}
	if missing.Key.String() != "1-1-first" {
		t.Errorf("got key %s, want 1-1-first", missing.Key)
	}
	// No worker attempt ran; this is a setup failure, not an escalation.
	if summary.StoriesEscalated != 0 {
		t.Errorf("got %+v, want no escalation", summary)
	}
	if got := statusOf(t, fx.ledger, "1-1-first"); got != backlog.StatusBacklog {
		t.Errorf("got %q, want backlog untouched", got)
	}
	if fx.gen.calls != 0 {
		t.Errorf("got %d generator calls, want 0", fx.gen.calls)
	}
}

func TestController_SkipGenerationStopsChainAtMissingArtifact(t *testing.T) {
	fx := newFixture(t, "1-1-alpha: backlog\n1-2-beta: ready-for-dev\n", "1-2-beta")
	cfg := chainConfig()
	cfg.SkipGeneration = true

	summary, err := fx.controller(cfg).Run(context.Background(), "")
	var missing *MissingArtifactError
	if !errors.As(err, &missing) {
		t.Fatalf("got %v, want MissingArtifactError", err)
	}
	// Beta was runnable and finished before discovery hit alpha.
	if summary.StoriesDone != 1 || summary.StoriesEscalated != 0 {
		t.Errorf("got %+v, want beta done before the stop", summary)
	}
	if summary.Exhausted {
		t.Error("a missing artifact is not exhaustion")
	}
	if got := statusOf(t, fx.ledger, "1-1-alpha"); got != backlog.StatusBacklog {
		t.Errorf("got %q, want backlog untouched", got)
	}
	if fx.gen.calls != 0 {
		t.Errorf("got %d generator calls, want 0", fx.gen.calls)
	}
}

func TestController_TaskEventsLandOnTimeline(t *testing.T) {
	fx := newFixture(t, "1-1-first: ready-for-dev\n", "1-1-first")
	cfg := chainConfig()
	cfg.Chain = false

	ctrl := fx.controller(cfg)
	sink := ctrl.TaskEvents()
	task := backlog.Task{ID: 1, Title: "Do the thing"}
	fx.exec.respond = func(ctx context.Context, call int, story *backlog.Story) (*executor.Outcome, error) {
		sink.OnAttemptStart(task, 1, 3)
		sink.OnAttemptEnd(task, 1, supervise.OutcomePassed, time.Second)
		sink.OnTaskPassed(task, false)
		return &executor.Outcome{Completed: true, Attempts: 1}, nil
	}

	if _, err := ctrl.Run(context.Background(), ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{
		EventRunStarted,
		EventStorySelected,
		EventStoryStarted,
		EventAttemptFinished,
		EventTaskPassed,
		EventValidationPassed,
		EventReviewVerdict,
		EventStoryDone,
		EventEpicDone,
		EventRunFinished,
	}
	got := timelineEvents(t, fx.runDir)
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("timeline:\ngot  %v\nwant %v", got, want)
	}

	// Task entries are keyed by the story the controller was driving.
	data, err := os.ReadFile(filepath.Join(fx.runDir, "timeline.jsonl"))
	if err != nil {
		t.Fatal(err)
	}
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		var ev TimelineEvent
		if err := json.Unmarshal([]byte(line), &ev); err != nil {
			t.Fatalf("bad timeline line %q: %v", line, err)
		}
		if ev.Event != EventAttemptFinished && ev.Event != EventTaskPassed {
			continue
		}
		if ev.Data["story"] != "1-1-first" {
			t.Errorf("%s keyed by %v, want 1-1-first", ev.Event, ev.Data["story"])
		}
	}
}

func TestController_ValidationFailureEscalates(t *testing.T) {
	fx := newFixture(t, "1-1-first: ready-for-dev\n", "1-1-first")
	fx.val.respond = func() (*gate.ValidationResult, error) {
		return failedValidation("go test ./...", 1), nil
	}

	summary, err := fx.controller(chainConfig()).Run(context.Background(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.StoriesEscalated != 1 {
		t.Fatalf("got %+v, want escalation", summary)
	}
	esc := summary.Escalations[0]
	if esc.Category != CategoryValidationFailed {
		t.Errorf("got category %q, want validation-failed", esc.Category)
	}
	if esc.Reason != "go test ./... exited 1" {
		t.Errorf("got reason %q", esc.Reason)
	}
	if fx.rev.calls != 0 {
		t.Errorf("got %d reviewer calls, want 0 (review runs only after validation)", fx.rev.calls)
	}
}

func TestController_ValidationErrorIsStructuralEscalation(t *testing.T) {
	fx := newFixture(t, "1-1-first: ready-for-dev\n", "1-1-first")
	fx.val.respond = func() (*gate.ValidationResult, error) {
		return nil, fmt.Errorf("invalid validation commands: yaml: unmarshal error")
	}

	summary, err := fx.controller(chainConfig()).Run(context.Background(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.StoriesEscalated != 1 {
		t.Fatalf("got %+v, want escalation", summary)
	}
	if !strings.Contains(summary.Escalations[0].Reason, "invalid validation commands") {
		t.Errorf("got reason %q", summary.Escalations[0].Reason)
	}
}

func TestController_SkipValidation(t *testing.T) {
	fx := newFixture(t, "1-1-first: ready-for-dev\n", "1-1-first")
	cfg := chainConfig()
	cfg.SkipValidation = true

	summary, err := fx.controller(cfg).Run(context.Background(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.StoriesDone != 1 {
		t.Errorf("got %+v, want story done", summary)
	}
	if fx.val.storyCalls != 0 || fx.val.epicCalls != 0 {
		t.Errorf("got %d story and %d epic validation calls, want none", fx.val.storyCalls, fx.val.epicCalls)
	}
	// The epic still promotes, just without its validation gate.
	if got := fx.ledger.EpicStatus(1); got != backlog.StatusDone {
		t.Errorf("got epic status %q, want done", got)
	}
}

func TestController_ReviewOutcomes(t *testing.T) {
	cases := []struct {
		name         string
		verdict      gate.Verdict
		wantCategory string
	}{
		{"blocked", gate.VerdictBlocked, CategoryReviewBlocked},
		{"exhausted", gate.VerdictExhausted, CategoryReviewExhausted},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fx := newFixture(t, "1-1-first: ready-for-dev\n", "1-1-first")
			fx.rev.respond = func() (*gate.ReviewResult, error) {
				return &gate.ReviewResult{Verdict: tc.verdict, Iterations: 2, Reason: "findings remain"}, nil
			}

			summary, err := fx.controller(chainConfig()).Run(context.Background(), "")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if summary.StoriesEscalated != 1 {
				t.Fatalf("got %+v, want escalation", summary)
			}
			if summary.Escalations[0].Category != tc.wantCategory {
				t.Errorf("got category %q, want %q", summary.Escalations[0].Category, tc.wantCategory)
			}
			if got := statusOf(t, fx.ledger, "1-1-first"); got != backlog.StatusReview {
				t.Errorf("got %q, want review", got)
			}
		})
	}
}

func TestController_WallClockBudgetEscalates(t *testing.T) {
	fx := newFixture(t, "1-1-first: ready-for-dev\n", "1-1-first")
	fx.exec.respond = func(ctx context.Context, call int, story *backlog.Story) (*executor.Outcome, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	cfg := chainConfig()
	cfg.StoryTimeout = 20 * time.Millisecond

	summary, err := fx.controller(cfg).Run(context.Background(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.StoriesEscalated != 1 {
		t.Fatalf("got %+v, want wall-clock escalation", summary)
	}
	esc := summary.Escalations[0]
	if esc.Category != CategoryWallClock {
		t.Errorf("got category %q, want wall-clock-exceeded", esc.Category)
	}
	if !strings.Contains(esc.Reason, "wall-clock budget") {
		t.Errorf("got reason %q", esc.Reason)
	}
}

func TestController_EpicValidationFailureDemotesEpic(t *testing.T) {
	fx := newFixture(t, "1-1-first: ready-for-dev\n", "1-1-first")
	fx.val.respondEpic = func(epic int) (*gate.ValidationResult, error) {
		return failedValidation("go test ./...", 2), nil
	}

	summary, err := fx.controller(chainConfig()).Run(context.Background(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// The story itself is done; only the epic aggregate failed.
	if summary.StoriesDone != 1 || summary.StoriesEscalated != 0 {
		t.Errorf("got %+v, want clean story with failed epic", summary)
	}
	if got := fx.ledger.EpicStatus(1); got != backlog.StatusReview {
		t.Errorf("got epic status %q, want review", got)
	}
	if !fx.events.has("epic-failed 1") {
		t.Errorf("missing epic-failed event in %v", fx.events.events)
	}
}

func TestController_EpicWaitsForSiblings(t *testing.T) {
	fx := newFixture(t, "1-1-first: ready-for-dev\n1-2-second: ready-for-dev\n", "1-1-first", "1-2-second")
	cfg := chainConfig()
	cfg.Chain = false

	if _, err := fx.controller(cfg).Run(context.Background(), ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fx.val.epicCalls != 0 {
		t.Errorf("got %d epic validations, want 0 while a sibling is not done", fx.val.epicCalls)
	}
	if got := fx.ledger.EpicStatus(1); got != backlog.StatusInProgress {
		t.Errorf("got epic status %q, want in-progress", got)
	}
}

func TestController_ParentCancellation(t *testing.T) {
	fx := newFixture(t, "1-1-first: ready-for-dev\n", "1-1-first")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary, err := fx.controller(chainConfig()).Run(ctx, "")
	if err != context.Canceled {
		t.Errorf("got %v, want context.Canceled", err)
	}
	if summary == nil {
		t.Fatal("summary must be valid even on cancellation")
	}
	if !fx.events.has("run-end done=0 escalated=0") {
		t.Errorf("missing run-end event in %v", fx.events.events)
	}
}
