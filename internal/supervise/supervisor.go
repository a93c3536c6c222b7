package supervise

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/pablasso/storyrunner/internal/agent"
	"github.com/pablasso/storyrunner/internal/logging"
)

// Supervisor runs worker attempts under two clocks: an absolute
// iteration budget and a rolling stall window. Progress is observed from
// the outside only, through transcript growth and a workspace
// fingerprint, because the worker itself is not trusted to report it.
type Supervisor struct {
	worker agent.Worker

	// Fingerprint probes the workspace for change. Any difference between
	// two probes counts as progress.
	fingerprint func() string

	iterTimeout  time.Duration
	stallTimeout time.Duration
	pollInterval time.Duration
	grace        time.Duration

	log *logging.Logger
}

// Options configures a Supervisor.
type Options struct {
	IterTimeout  time.Duration
	StallTimeout time.Duration
	PollInterval time.Duration
	Grace        time.Duration
}

// New creates a Supervisor for the given worker. The fingerprint func
// must be cheap; it runs once per poll tick.
func New(worker agent.Worker, fingerprint func() string, opts Options, log *logging.Logger) *Supervisor {
	if log == nil {
		log = logging.Nop()
	}
	return &Supervisor{
		worker:       worker,
		fingerprint:  fingerprint,
		iterTimeout:  opts.IterTimeout,
		stallTimeout: opts.StallTimeout,
		pollInterval: opts.PollInterval,
		grace:        opts.Grace,
		log:          log,
	}
}

// Run executes one attempt to completion or kill. The returned error is
// non-nil only for supervisor-side faults (transcript file, parent
// context cancellation); worker failures are verdicts, not errors.
func (s *Supervisor) Run(ctx context.Context, att Attempt) (*Result, error) {
	start := time.Now()

	file, err := os.Create(att.TranscriptPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create transcript: %w", err)
	}
	defer file.Close()

	capture := &captureWriter{}
	sinks := []io.Writer{file, capture}
	if att.Output != nil {
		sinks = append(sinks, att.Output)
	}
	out := io.MultiWriter(sinks...)

	wctx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- s.worker.Attempt(wctx, att.Objective, out)
	}()

	deadline := start.Add(s.iterTimeout)
	lastFP := s.fingerprint()
	lastChange := start

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	var verdict Outcome
	var reason string

poll:
	for {
		select {
		case werr := <-done:
			return s.classify(att, capture.String(), werr, time.Since(start)), nil

		case <-ctx.Done():
			cancel()
			s.await(done)
			return nil, ctx.Err()

		case now := <-ticker.C:
			if now.After(deadline) {
				verdict = OutcomeTimeout
				reason = fmt.Sprintf("attempt exceeded the %s iteration budget", s.iterTimeout)
				break poll
			}
			if fp := s.fingerprint(); fp != lastFP {
				lastFP = fp
				lastChange = now
			}
			// The grace window keeps a slow-starting worker from being
			// declared stalled before it touches anything.
			if now.Sub(start) > s.grace && now.Sub(lastChange) >= s.stallTimeout {
				verdict = OutcomeStalled
				reason = fmt.Sprintf("no workspace change for %s", s.stallTimeout)
				break poll
			}
		}
	}

	// Verdict was reached before the cancel so the worker's resulting
	// context error cannot masquerade as an ordinary failure.
	s.log.Warn("killing attempt", "outcome", string(verdict), "reason", reason)
	cancel()
	s.await(done)

	return &Result{
		Outcome:    verdict,
		Reason:     reason,
		Transcript: capture.String(),
		Elapsed:    time.Since(start),
	}, nil
}

// killWait bounds how long the supervisor waits for a killed worker
// process to actually exit before abandoning the goroutine.
const killWait = 10 * time.Second

func (s *Supervisor) await(done <-chan error) {
	select {
	case <-done:
	case <-time.After(killWait):
		s.log.Error("worker did not exit after kill", "waited", killWait.String())
	}
}

func (s *Supervisor) classify(att Attempt, transcript string, werr error, elapsed time.Duration) *Result {
	res := &Result{Transcript: transcript, Elapsed: elapsed}
	switch {
	case werr != nil:
		res.Outcome = OutcomeFailed
		res.Reason = werr.Error()
	case att.Marker != "" && !agent.ContainsMarker(transcript, att.Marker):
		res.Outcome = OutcomeFailed
		res.Reason = "worker exited without emitting the completion marker"
	default:
		res.Outcome = OutcomePassed
	}
	return res
}
