// Package tui renders a live dashboard for a pipeline run: story and task
// progress on the left, streamed worker output on the right.
package tui

import (
	"context"
	"io"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/pablasso/storyrunner/internal/chain"
)

// outputChanBuffer is the number of output chunks held for the dashboard.
// Sends beyond it are dropped rather than stalling the worker pipe.
const outputChanBuffer = 100

// Run starts the dashboard and drives the pipeline through it. The start
// function receives a context that is cancelled when the user requests a
// stop, an event sink that feeds the dashboard, and a writer that streams
// worker output into the output panel. Run blocks until both the pipeline
// and the dashboard have exited and returns the pipeline's result.
func Run(ctx context.Context, start func(ctx context.Context, events chain.Events, output io.Writer) (*chain.Summary, error)) (*chain.Summary, error) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	outputChan := make(chan string, outputChanBuffer)
	model := newDashboard(cancel, outputChan)

	program := tea.NewProgram(
		model,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)

	type result struct {
		summary *chain.Summary
		err     error
	}
	done := make(chan result, 1)

	go func() {
		summary, err := start(runCtx, newProgramEvents(program), &chunkWriter{ch: outputChan})
		close(outputChan)
		program.Send(pipelineDoneMsg{summary: summary, err: err})
		done <- result{summary, err}
	}()

	if _, err := program.Run(); err != nil {
		// The dashboard died. Wind the pipeline down before returning so
		// the run lock and ledger are left in a consistent state.
		cancel()
		res := <-done
		if res.err != nil {
			return res.summary, res.err
		}
		return res.summary, err
	}

	res := <-done
	return res.summary, res.err
}

// chunkWriter forwards worker output chunks to the dashboard. Sends are
// non-blocking: when the dashboard falls behind, chunks are dropped.
type chunkWriter struct {
	ch chan<- string
}

func (w *chunkWriter) Write(p []byte) (int, error) {
	select {
	case w.ch <- string(p):
	default:
	}
	return len(p), nil
}
