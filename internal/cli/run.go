package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/pablasso/storyrunner/internal/agent"
	"github.com/pablasso/storyrunner/internal/backlog"
	"github.com/pablasso/storyrunner/internal/chain"
	"github.com/pablasso/storyrunner/internal/config"
	"github.com/pablasso/storyrunner/internal/executor"
	"github.com/pablasso/storyrunner/internal/gate"
	"github.com/pablasso/storyrunner/internal/git"
	"github.com/pablasso/storyrunner/internal/logging"
	"github.com/pablasso/storyrunner/internal/runlock"
	"github.com/pablasso/storyrunner/internal/shell"
	"github.com/pablasso/storyrunner/internal/supervise"
	"github.com/pablasso/storyrunner/internal/tui"
	"github.com/pablasso/storyrunner/internal/util"
)

var (
	runMaxRetries     int
	runMaxReviewIters int
	runSkipValidation bool
	runSkipGeneration bool
	runTUI            bool
)

func init() {
	runCmd.Flags().IntVar(&runMaxRetries, "max-retries", config.DefaultMaxRetries, "Worker attempts per task before escalating")
	runCmd.Flags().IntVar(&runMaxReviewIters, "max-review-iters", config.DefaultMaxReviewIters, "Review gate iterations before escalating")
	runCmd.Flags().BoolVar(&runSkipValidation, "skip-validation", false, "Skip the build/test validation gates")
	runCmd.Flags().BoolVar(&runSkipGeneration, "skip-generation", false, "Never synthesize missing story artifacts")
	runCmd.Flags().BoolVar(&runTUI, "tui", false, "Show the live dashboard instead of plain output")
}

var runCmd = &cobra.Command{
	Use:   "run [story]",
	Short: "Run the pipeline (chains stories unless one is named)",
	Long: `Drive stories through the task loop, validation, and review.

Without arguments the next runnable story is discovered from the ledger
and, in chain mode, the pipeline continues until the backlog is exhausted
or a story escalates. Naming a story (full key or "3-2") runs exactly
that story and stops.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPipeline,
}

func runPipeline(cmd *cobra.Command, args []string) error {
	storyIdent := ""
	if len(args) == 1 {
		storyIdent = args[0]
	}

	// 1. Open the workspace and ledger
	ws, err := openWorkspace()
	if err != nil {
		return err
	}
	ledger, err := ws.Ledger()
	if err != nil {
		return err
	}

	// 2. Load config, then let explicit flags win over file and env
	cfg, err := config.Load(ws.ConfigPath())
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("max-retries") {
		cfg.MaxRetries = runMaxRetries
	}
	if cmd.Flags().Changed("max-review-iters") {
		cfg.MaxReviewIters = runMaxReviewIters
	}
	if cmd.Flags().Changed("skip-validation") {
		cfg.SkipValidation = runSkipValidation
	}
	if cmd.Flags().Changed("skip-generation") {
		cfg.SkipGeneration = runSkipGeneration
	}

	// 3. Check prerequisites
	if err := checkPrerequisites(ws.Root, cfg.Worker); err != nil {
		return err
	}
	if st, serr := git.GetStatus(ws.Root); serr == nil && !st.Clean {
		fmt.Printf("Note: %d uncommitted change(s) in the workspace; the worker builds on top of them.\n", len(st.Files))
	}

	// 4. Take the run lock
	lock := runlock.New(ws.LockPath())
	if err := lock.Acquire(); err != nil {
		return err
	}
	defer lock.Release()

	// 5. Create the run directory and debug logger
	runID, err := newRunID()
	if err != nil {
		return err
	}
	runDir, err := ws.RunDir(runID)
	if err != nil {
		return err
	}
	log, err := logging.New(runDir, cfg.LogLevel)
	if err != nil {
		return err
	}
	defer log.Close()

	// 6. Run with signal handling
	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var summary *chain.Summary
	if runTUI {
		summary, err = tui.Run(ctx, func(ctx context.Context, events chain.Events, output io.Writer) (*chain.Summary, error) {
			ctrl := buildController(ws, ledger, cfg, runID, runDir, log, events, output)
			return ctrl.Run(ctx, storyIdent)
		})
	} else {
		console := NewConsole(os.Stdout)
		ctrl := buildController(ws, ledger, cfg, runID, runDir, log, console, console.OutputWriter())
		summary, err = ctrl.Run(ctx, storyIdent)
	}
	if err != nil {
		// A dashboard stop cancels its own derived context, so check for
		// context.Canceled as well as the signal context.
		if ctx.Err() != nil || errors.Is(err, context.Canceled) {
			return fmt.Errorf("run interrupted")
		}
		var missing *chain.MissingArtifactError
		if errors.As(err, &missing) {
			return &PrerequisiteError{
				Check:   "Story artifact",
				Message: missing.Error(),
				Help:    fmt.Sprintf("Author %s yourself, or re-run without --skip-generation.", missing.Path),
			}
		}
		return err
	}

	if !summary.Clean() {
		return fmt.Errorf("%d story(ies) escalated to review; see %s", summary.StoriesEscalated, ws.ReportPath())
	}
	return nil
}

// buildController wires the full pipeline around one event sink.
func buildController(ws *backlog.Workspace, ledger *backlog.Ledger, cfg *config.Config, runID, runDir string, log *logging.Logger, events chain.Events, output io.Writer) *chain.Controller {
	worker := agent.NewClaude(cfg.Worker, ws.Root)
	super := supervise.New(worker, func() string { return git.Fingerprint(ws.Root) }, supervise.Options{
		IterTimeout:  cfg.IterTimeout,
		StallTimeout: cfg.StallTimeout,
		PollInterval: cfg.PollInterval,
		Grace:        cfg.GracePeriod,
	}, log)
	checks := &shell.Runner{Dir: ws.Root}

	exec := executor.New(super, checks, agent.NewLearner(worker), executor.Options{
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
		FailureCap: cfg.FailureCap,
		RunDir:     runDir,
		Output:     output,
	}).WithLogger(log)

	validation := gate.NewValidation(checks, cfg.BuildCommand, cfg.TestCommand).WithLogger(log)
	review := gate.NewReview(super, cfg.MaxReviewIters, runDir).
		WithOutput(output).
		WithEvents(events).
		WithLogger(log)

	ctrl := chain.New(ws, ledger, cfg, chain.Pipeline{
		RunID:      runID,
		RunDir:     runDir,
		Executor:   exec,
		Validation: validation,
		Review:     review,
		Generator:  agent.NewGenerator(worker),
	}).WithEvents(events).WithLogger(log)

	// The executor reports through the controller so attempt verdicts and
	// task completions also land on the run timeline.
	exec.WithEvents(ctrl.TaskEvents())
	return ctrl
}

// newRunID returns a sortable run identifier with a random suffix.
func newRunID() (string, error) {
	id, err := util.GenerateShortID()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%s", time.Now().Format("20060102-150405"), id), nil
}
