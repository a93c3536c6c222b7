package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/pablasso/storyrunner/internal/backlog"
	"github.com/pablasso/storyrunner/internal/chain"
	"github.com/pablasso/storyrunner/internal/gate"
	"github.com/pablasso/storyrunner/internal/supervise"
	"github.com/pablasso/storyrunner/internal/tui/components"
	"github.com/pablasso/storyrunner/internal/tui/styles"
)

// runState represents the current state of the dashboard.
type runState int

const (
	stateRunning runState = iota
	stateCancelling
	stateDone
	stateCancelled
)

// maxFeedEntries caps the recent-activity feed buffer.
const maxFeedEntries = 50

// feedEntry is a single item in the recent-activity feed.
type feedEntry struct {
	text      string
	timestamp time.Time
	done      bool
	failed    bool
	pending   bool
}

// Message types for pipeline events

// runStartedMsg is sent once when the controller begins.
type runStartedMsg struct {
	runID     string
	chainMode bool
}

// storySelectedMsg is sent when discovery picks the next story.
type storySelectedMsg struct {
	key     string
	title   string
	resumed bool
}

// generationStartedMsg is sent before a missing artifact is synthesized.
type generationStartedMsg struct {
	key string
}

// generationEndedMsg is sent with the generation result.
type generationEndedMsg struct {
	key string
	err error
}

// taskStartedMsg is sent when a task is selected for execution.
type taskStartedMsg struct {
	id        int
	title     string
	completed int
	total     int
}

// attemptStartedMsg is sent before each supervised worker attempt.
type attemptStartedMsg struct {
	attempt     int
	maxAttempts int
}

// attemptEndedMsg is sent with the supervisor's verdict on an attempt.
type attemptEndedMsg struct {
	attempt int
	outcome supervise.Outcome
	elapsed time.Duration
}

// taskPassedMsg is sent when a task is confirmed passed.
type taskPassedMsg struct {
	id      int
	title   string
	rescued bool
}

// taskFailedMsg is sent when an attempt ends without the task passing.
type taskFailedMsg struct {
	id      int
	attempt int
	reason  string
}

// validationStartedMsg is sent before the validation gate runs.
type validationStartedMsg struct{}

// validationEndedMsg is sent with the gate result.
type validationEndedMsg struct {
	passed bool
	failed string // command that stopped the gate, when any
}

// reviewStartedMsg is sent before each review iteration.
type reviewStartedMsg struct {
	iteration int
	max       int
}

// reviewEndedMsg is sent with the signal found in a review transcript.
type reviewEndedMsg struct {
	iteration int
	signal    string
}

// storyDoneMsg is sent when a story reaches done.
type storyDoneMsg struct {
	key     string
	elapsed time.Duration
}

// storyEscalatedMsg is sent when a story is routed to review.
type storyEscalatedMsg struct {
	key      string
	category string
	reason   string
}

// epicDoneMsg is sent when an epic ledger row is promoted.
type epicDoneMsg struct {
	epic int
}

// epicFailedMsg is sent when epic validation fails.
type epicFailedMsg struct {
	epic   int
	reason string
}

// outputChunkMsg carries a chunk of worker output for the output panel.
type outputChunkMsg struct {
	chunk string
}

// pipelineDoneMsg signals that the pipeline has returned.
type pipelineDoneMsg struct {
	summary *chain.Summary
	err     error
}

// tickMsg drives elapsed time updates.
type tickMsg time.Time

// dashboard is the model for the live run view.
type dashboard struct {
	state runState

	runID     string
	chainMode bool

	storyKey   string
	storyTitle string
	phase      string

	taskID      int
	taskTitle   string
	tasksDone   int
	tasksTotal  int
	attempt     int
	maxAttempts int

	storiesDone      int
	storiesEscalated int

	startTime  time.Time
	storyStart time.Time

	spinner spinner.Model
	output  components.Stream

	outputChan chan string
	cancel     context.CancelFunc

	feed []feedEntry

	summary  *chain.Summary
	finalErr error

	width  int
	height int
}

// newDashboard creates the dashboard model. The cancel function is invoked
// when the user requests a stop.
func newDashboard(cancel context.CancelFunc, outputChan chan string) dashboard {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = styles.Selected

	return dashboard{
		state:      stateRunning,
		phase:      "starting",
		startTime:  time.Now(),
		spinner:    s,
		output:     components.NewStream(80, 20, 0), // Will be resized
		outputChan: outputChan,
		cancel:     cancel,
	}
}

// Init implements tea.Model.
func (m dashboard) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		m.tickCmd(),
		m.listenForOutput(),
	)
}

// tickCmd returns a command that sends tick messages for elapsed time updates.
func (m dashboard) tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// listenForOutput returns a command that waits for output from the channel.
func (m dashboard) listenForOutput() tea.Cmd {
	return func() tea.Msg {
		chunk, ok := <-m.outputChan
		if !ok {
			return nil
		}
		return outputChunkMsg{chunk: chunk}
	}
}

// Update implements tea.Model.
func (m dashboard) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.updateOutputSize()
		return m, nil

	case spinner.TickMsg:
		if m.state == stateRunning || m.state == stateCancelling {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
		return m, nil

	case tickMsg:
		if m.state == stateRunning || m.state == stateCancelling {
			return m, m.tickCmd()
		}
		return m, nil

	case runStartedMsg:
		m.runID = msg.runID
		m.chainMode = msg.chainMode
		m.phase = "discovering"
		return m, nil

	case storySelectedMsg:
		m.storyKey = msg.key
		m.storyTitle = msg.title
		m.storyStart = time.Now()
		m.phase = "preparing"
		m.taskID = 0
		m.taskTitle = ""
		m.tasksDone = 0
		m.tasksTotal = 0
		m.attempt = 0
		text := fmt.Sprintf("story %s", msg.key)
		if msg.resumed {
			text += " (resumed)"
		}
		m.addFeed(text, feedDone)
		return m, nil

	case generationStartedMsg:
		m.phase = "generating"
		m.addFeed(fmt.Sprintf("generate %s", msg.key), feedPending)
		return m, nil

	case generationEndedMsg:
		if msg.err != nil {
			m.resolveFeed(false)
		} else {
			m.resolveFeed(true)
		}
		return m, nil

	case taskStartedMsg:
		m.phase = "executing"
		m.taskID = msg.id
		m.taskTitle = msg.title
		m.tasksDone = msg.completed
		m.tasksTotal = msg.total
		m.attempt = 0
		m.addFeed(fmt.Sprintf("task %d: %s", msg.id, msg.title), feedPending)
		return m, nil

	case attemptStartedMsg:
		m.attempt = msg.attempt
		m.maxAttempts = msg.maxAttempts
		return m, nil

	case attemptEndedMsg:
		return m, nil

	case taskPassedMsg:
		m.tasksDone++
		m.attempt = 0
		m.resolveFeed(true)
		if msg.rescued {
			m.addFeed(fmt.Sprintf("task %d confirmed by checks", msg.id), feedDone)
		}
		return m, nil

	case taskFailedMsg:
		m.addFeed(fmt.Sprintf("task %d attempt %d: %s", msg.id, msg.attempt, msg.reason), feedFailed)
		return m, nil

	case validationStartedMsg:
		m.phase = "validating"
		m.taskTitle = ""
		m.attempt = 0
		m.addFeed("validation", feedPending)
		return m, nil

	case validationEndedMsg:
		if msg.passed {
			m.resolveFeed(true)
		} else {
			m.resolveFeedText(fmt.Sprintf("validation: %s", msg.failed), false)
		}
		return m, nil

	case reviewStartedMsg:
		m.phase = "reviewing"
		m.attempt = 0
		m.addFeed(fmt.Sprintf("review %d/%d", msg.iteration, msg.max), feedPending)
		return m, nil

	case reviewEndedMsg:
		label := reviewSignalLabel(msg.signal)
		m.resolveFeedText(fmt.Sprintf("review %d: %s", msg.iteration, label), label == "pass" || label == "fixed")
		return m, nil

	case storyDoneMsg:
		m.storiesDone++
		m.phase = "discovering"
		m.failPending()
		m.addFeed(fmt.Sprintf("%s done (%s)", msg.key, formatDuration(msg.elapsed)), feedDone)
		return m, nil

	case storyEscalatedMsg:
		m.storiesEscalated++
		m.phase = "discovering"
		m.failPending()
		m.addFeed(fmt.Sprintf("%s escalated: %s", msg.key, msg.category), feedFailed)
		return m, nil

	case epicDoneMsg:
		m.addFeed(fmt.Sprintf("epic %d complete", msg.epic), feedDone)
		return m, nil

	case epicFailedMsg:
		m.addFeed(fmt.Sprintf("epic %d validation failed", msg.epic), feedFailed)
		return m, nil

	case outputChunkMsg:
		m.output.AppendChunk(msg.chunk)
		return m, m.listenForOutput()

	case pipelineDoneMsg:
		m.summary = msg.summary
		m.finalErr = msg.err
		if m.state == stateCancelling {
			m.state = stateCancelled
		} else {
			m.state = stateDone
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKeyPress(msg)
	}

	// Pass through to output viewport for scrolling
	var cmd tea.Cmd
	m.output, cmd = m.output.Update(msg)
	return m, cmd
}

// handleKeyPress handles keyboard input based on current state.
func (m dashboard) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.state {
	case stateRunning:
		switch msg.String() {
		case "ctrl+c":
			// Trigger a graceful stop: cancel the pipeline context and
			// wait for the worker to be killed and the ledger saved.
			m.state = stateCancelling
			if m.cancel != nil {
				m.cancel()
				m.cancel = nil
			}
			return m, nil
		case "up", "k", "pgup", "ctrl+u", "down", "j", "pgdown", "ctrl+d", "home", "g", "end", "G":
			// Pass scroll keys to output viewport
			var cmd tea.Cmd
			m.output, cmd = m.output.Update(msg)
			return m, cmd
		}

	case stateCancelling:
		switch msg.String() {
		case "up", "k", "pgup", "ctrl+u", "down", "j", "pgdown", "ctrl+d", "home", "g", "end", "G":
			// Allow output scrolling while waiting for cleanup.
			var cmd tea.Cmd
			m.output, cmd = m.output.Update(msg)
			return m, cmd
		}

	case stateDone, stateCancelled:
		switch msg.String() {
		case "enter", "q", "ctrl+c":
			return m, tea.Quit
		}
	}

	return m, nil
}

// updateOutputSize recalculates the output viewport size based on window size.
func (m *dashboard) updateOutputSize() {
	if m.width == 0 || m.height == 0 {
		return
	}

	// Right panel is 60% of width minus borders
	rightWidth := (m.width * 60 / 100) - 4

	// Height: total - title(2) - bottom border(1) - status bar(1) - borders(2)
	outputHeight := m.height - 6

	if outputHeight < 3 {
		outputHeight = 3
	}
	if rightWidth < 10 {
		rightWidth = 10
	}

	m.output.SetSize(rightWidth, outputHeight)
}

// View implements tea.Model.
func (m dashboard) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	switch m.state {
	case stateRunning, stateCancelling:
		return m.renderRunning()
	case stateDone:
		return m.renderDone()
	case stateCancelled:
		return m.renderStopped()
	}

	return ""
}

// renderRunning renders the split-panel execution view.
func (m dashboard) renderRunning() string {
	var b strings.Builder

	// Title
	heading := "storyrunner"
	if m.runID != "" {
		heading = fmt.Sprintf("storyrunner run %s", m.runID)
	}
	title := styles.Title.Render(heading)
	titleLine := lipgloss.PlaceHorizontal(m.width, lipgloss.Center, title)
	b.WriteString(titleLine)
	b.WriteString("\n")

	// Calculate panel dimensions
	leftWidth := (m.width * 40 / 100) - 2
	rightWidth := (m.width * 60 / 100) - 2
	panelHeight := m.height - 4 // title + status bar + borders

	if panelHeight < 5 {
		panelHeight = 5
	}

	leftContent := m.renderLeftPanel(leftWidth, panelHeight-2)
	rightContent := m.renderRightPanel()

	// Panels share the Box border but drop its padding for a tighter fit.
	leftPanelStyle := styles.Box.Copy().
		Width(leftWidth).
		Height(panelHeight-2).
		Padding(0, 1) // Override padding for tighter layout

	rightPanelStyle := styles.Box.Copy().
		Width(rightWidth).
		Height(panelHeight-2).
		Padding(0, 1)

	leftPanel := leftPanelStyle.Render(leftContent)
	rightPanel := rightPanelStyle.Render(rightContent)

	// Join panels horizontally
	panels := lipgloss.JoinHorizontal(lipgloss.Top, leftPanel, rightPanel)
	b.WriteString(panels)
	b.WriteString("\n")

	// Status bar
	statusItems := []string{"Running...", "Ctrl+C Stop"}
	if m.state == stateCancelling {
		statusItems = []string{"Stopping...", "Waiting for the worker to exit"}
	}
	b.WriteString(components.HelpBar(m.width, statusItems))

	return b.String()
}

// renderLeftPanel renders the progress panel: current story, task progress,
// and the recent-activity feed.
func (m dashboard) renderLeftPanel(width, height int) string {
	var lines []string

	// Story header
	storyLine := "No story selected"
	if m.storyKey != "" {
		storyLine = fmt.Sprintf("Story %s", m.storyKey)
		if m.storyTitle != "" {
			storyLine = fmt.Sprintf("Story %s: %s", m.storyKey, m.storyTitle)
		}
	}
	lines = append(lines, truncateWithEllipsis(storyLine, width))

	phaseLine := m.phase
	if m.state == stateRunning || m.state == stateCancelling {
		phaseLine = fmt.Sprintf("%s %s", m.spinner.View(), m.phase)
	}
	lines = append(lines, phaseLine)
	lines = append(lines, "")

	// Task progress
	if m.tasksTotal > 0 {
		taskLine := fmt.Sprintf("Task %d/%d", m.tasksDone, m.tasksTotal)
		if m.taskTitle != "" {
			taskLine = fmt.Sprintf("Task %d/%d: %s", m.tasksDone+1, m.tasksTotal, m.taskTitle)
		}
		lines = append(lines, truncateWithEllipsis(taskLine, width))

		barWidth := width - 6
		if barWidth > 20 {
			barWidth = 20
		}
		if barWidth > 0 {
			lines = append(lines, components.ProgressBar(m.tasksDone, m.tasksTotal, barWidth))
		}
	}
	if m.attempt > 0 {
		lines = append(lines, fmt.Sprintf("Attempt %d/%d", m.attempt, m.maxAttempts))
	}

	// Elapsed times
	elapsed := fmt.Sprintf("Run %s", formatDuration(time.Since(m.startTime)))
	if m.storyKey != "" {
		elapsed = fmt.Sprintf("Story %s  Run %s",
			formatDuration(time.Since(m.storyStart)),
			formatDuration(time.Since(m.startTime)))
	}
	lines = append(lines, elapsed)

	// Story counters in chain mode
	if m.chainMode {
		counters := fmt.Sprintf("%d done", m.storiesDone)
		if m.storiesEscalated > 0 {
			counters += styles.Error.Render(fmt.Sprintf("  %d escalated", m.storiesEscalated))
		}
		lines = append(lines, counters)
	}
	lines = append(lines, "")

	// Recent activity feed
	lines = append(lines, styles.Subtle.Render("Recent"))
	lines = append(lines, "─────")

	feedBudget := height - len(lines)
	if feedBudget < 0 {
		feedBudget = 0
	}

	start := 0
	if len(m.feed) > feedBudget {
		start = len(m.feed) - feedBudget
	}
	if feedBudget > 0 {
		for i := start; i < len(m.feed); i++ {
			entry := m.feed[i]
			indicator := "├─"
			switch {
			case entry.failed:
				indicator = styles.Error.Render("✗")
			case entry.done:
				indicator = styles.Success.Render("✓")
			case entry.pending && i == len(m.feed)-1 && m.state == stateRunning:
				indicator = m.spinner.View()
			}
			lines = append(lines, truncateWithEllipsis(fmt.Sprintf("%s %s", indicator, entry.text), width))
		}
	}
	if len(m.feed) == 0 && feedBudget > 0 {
		lines = append(lines, styles.Subtle.Render("  (waiting...)"))
	}

	// Join lines and pad to height
	content := strings.Join(lines, "\n")
	if len(lines) < height {
		content += strings.Repeat("\n", height-len(lines))
	}

	return content
}

// renderRightPanel renders the output panel.
func (m dashboard) renderRightPanel() string {
	var lines []string

	lines = append(lines, styles.Subtle.Render("Output"))
	lines = append(lines, "")
	lines = append(lines, m.output.View())

	return strings.Join(lines, "\n")
}

// renderDone renders the completion view.
func (m dashboard) renderDone() string {
	var b strings.Builder

	clean := m.finalErr == nil && (m.summary == nil || m.summary.Clean())

	var title string
	if clean {
		title = styles.Success.Render("Run Complete")
	} else {
		title = styles.Error.Render("Run Escalated")
	}
	if m.finalErr != nil {
		title = styles.Error.Render("Run Failed")
	}
	titleLine := lipgloss.PlaceHorizontal(m.width, lipgloss.Center, title)
	b.WriteString(titleLine)
	b.WriteString("\n\n")

	for _, line := range m.summaryLines() {
		b.WriteString(lipgloss.PlaceHorizontal(m.width, lipgloss.Center, line))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	quitOption := styles.Selected.Render("[Enter]") + " Quit"
	b.WriteString(lipgloss.PlaceHorizontal(m.width, lipgloss.Center, quitOption))
	b.WriteString("\n")

	// Fill remaining space
	lines := strings.Count(b.String(), "\n") + 1
	remainingLines := m.height - lines - 1
	if remainingLines > 0 {
		b.WriteString(strings.Repeat("\n", remainingLines))
	}

	b.WriteString(components.HelpBar(m.width, []string{"Enter Quit", "q Quit"}))

	return b.String()
}

// renderStopped renders the view after a user-requested stop.
func (m dashboard) renderStopped() string {
	var b strings.Builder

	title := styles.Subtle.Render("Run Stopped")
	titleLine := lipgloss.PlaceHorizontal(m.width, lipgloss.Center, title)
	b.WriteString(titleLine)
	b.WriteString("\n\n")

	message := fmt.Sprintf("Stopped. %d story(ies) completed.", m.storiesDone)
	b.WriteString(lipgloss.PlaceHorizontal(m.width, lipgloss.Center, message))
	b.WriteString("\n\n")

	for _, line := range m.summaryLines() {
		b.WriteString(lipgloss.PlaceHorizontal(m.width, lipgloss.Center, line))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	quitOption := styles.Selected.Render("[Enter]") + " Quit"
	b.WriteString(lipgloss.PlaceHorizontal(m.width, lipgloss.Center, quitOption))
	b.WriteString("\n")

	// Fill remaining space
	lines := strings.Count(b.String(), "\n") + 1
	remainingLines := m.height - lines - 1
	if remainingLines > 0 {
		b.WriteString(strings.Repeat("\n", remainingLines))
	}

	b.WriteString(components.HelpBar(m.width, []string{"Enter Quit", "q Quit"}))

	return b.String()
}

// summaryLines renders the final accounting for the done and stopped views.
func (m dashboard) summaryLines() []string {
	var lines []string

	if m.finalErr != nil {
		lines = append(lines, styles.Error.Render("✗")+" "+m.finalErr.Error())
	}

	if m.summary != nil {
		lines = append(lines, fmt.Sprintf("Completed %d story(ies) in %s",
			m.summary.StoriesDone, formatDuration(m.summary.Elapsed)))
		for _, esc := range m.summary.Escalations {
			mark := styles.Error.Render("✗")
			lines = append(lines, fmt.Sprintf("%s %s [%s]: %s", mark, esc.Key, esc.Category, esc.Reason))
		}
		if m.summary.Exhausted {
			lines = append(lines, styles.Subtle.Render("Backlog exhausted."))
		}
	}

	return lines
}

type feedKind int

const (
	feedDone feedKind = iota
	feedFailed
	feedPending
)

// addFeed appends an entry to the recent-activity feed.
func (m *dashboard) addFeed(text string, kind feedKind) {
	entry := feedEntry{
		text:      text,
		timestamp: time.Now(),
		done:      kind == feedDone,
		failed:    kind == feedFailed,
		pending:   kind == feedPending,
	}
	m.feed = append(m.feed, entry)
	if len(m.feed) > maxFeedEntries {
		m.feed = m.feed[len(m.feed)-maxFeedEntries:]
	}
}

// resolveFeed marks the most recent pending entry as done or failed.
func (m *dashboard) resolveFeed(ok bool) {
	m.resolveFeedText("", ok)
}

// resolveFeedText marks the most recent pending entry as done or failed,
// optionally replacing its text.
func (m *dashboard) resolveFeedText(text string, ok bool) {
	for i := len(m.feed) - 1; i >= 0; i-- {
		if !m.feed[i].pending {
			continue
		}
		m.feed[i].pending = false
		m.feed[i].done = ok
		m.feed[i].failed = !ok
		if text != "" {
			m.feed[i].text = text
		}
		return
	}
}

// failPending marks every still-pending entry as failed. Called when a
// story leaves the pipeline so no spinner is left behind.
func (m *dashboard) failPending() {
	for i := range m.feed {
		if m.feed[i].pending {
			m.feed[i].pending = false
			m.feed[i].failed = true
		}
	}
}

// reviewSignalLabel shortens a review signal for display.
func reviewSignalLabel(signal string) string {
	s := strings.TrimSuffix(strings.TrimPrefix(signal, "###REVIEW_"), "###")
	if s == "" || s == signal {
		return "no verdict"
	}
	return strings.ToLower(s)
}

func truncateWithEllipsis(s string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}

// formatDuration formats a duration as MM:SS or HH:MM:SS.
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	mins := d / time.Minute
	d -= mins * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, mins, s)
	}
	return fmt.Sprintf("%02d:%02d", mins, s)
}

// programEvents converts pipeline callbacks into Bubble Tea messages.
// Sending through the program reference is safe from any goroutine.
type programEvents struct {
	program *tea.Program
}

// newProgramEvents creates a chain.Events implementation that sends
// messages to the given Bubble Tea program.
func newProgramEvents(program *tea.Program) *programEvents {
	return &programEvents{program: program}
}

// OnRunStart implements chain.Events.
func (e *programEvents) OnRunStart(runID string, chainMode bool) {
	e.program.Send(runStartedMsg{runID: runID, chainMode: chainMode})
}

// OnStorySelected implements chain.Events.
func (e *programEvents) OnStorySelected(key backlog.Key, title string, resumed bool) {
	e.program.Send(storySelectedMsg{key: key.String(), title: title, resumed: resumed})
}

// OnGenerationStart implements chain.Events.
func (e *programEvents) OnGenerationStart(key backlog.Key) {
	e.program.Send(generationStartedMsg{key: key.String()})
}

// OnGenerationEnd implements chain.Events.
func (e *programEvents) OnGenerationEnd(key backlog.Key, err error) {
	e.program.Send(generationEndedMsg{key: key.String(), err: err})
}

// OnTaskStart implements chain.Events.
func (e *programEvents) OnTaskStart(task backlog.Task, completed, total int) {
	e.program.Send(taskStartedMsg{id: task.ID, title: task.Title, completed: completed, total: total})
}

// OnAttemptStart implements chain.Events.
func (e *programEvents) OnAttemptStart(task backlog.Task, attempt, maxAttempts int) {
	e.program.Send(attemptStartedMsg{attempt: attempt, maxAttempts: maxAttempts})
}

// OnAttemptEnd implements chain.Events.
func (e *programEvents) OnAttemptEnd(task backlog.Task, attempt int, outcome supervise.Outcome, elapsed time.Duration) {
	e.program.Send(attemptEndedMsg{attempt: attempt, outcome: outcome, elapsed: elapsed})
}

// OnTaskPassed implements chain.Events.
func (e *programEvents) OnTaskPassed(task backlog.Task, rescued bool) {
	e.program.Send(taskPassedMsg{id: task.ID, title: task.Title, rescued: rescued})
}

// OnTaskFailed implements chain.Events.
func (e *programEvents) OnTaskFailed(task backlog.Task, attempt int, reason string) {
	e.program.Send(taskFailedMsg{id: task.ID, attempt: attempt, reason: reason})
}

// OnValidationStart implements chain.Events.
func (e *programEvents) OnValidationStart() {
	e.program.Send(validationStartedMsg{})
}

// OnValidationEnd implements chain.Events.
func (e *programEvents) OnValidationEnd(result *gate.ValidationResult) {
	msg := validationEndedMsg{passed: result == nil || result.Passed}
	if result != nil && result.Failed != nil {
		msg.failed = result.Failed.Command
	}
	e.program.Send(msg)
}

// OnReviewStart implements chain.Events.
func (e *programEvents) OnReviewStart(iteration, max int) {
	e.program.Send(reviewStartedMsg{iteration: iteration, max: max})
}

// OnReviewEnd implements chain.Events.
func (e *programEvents) OnReviewEnd(iteration int, signal string) {
	e.program.Send(reviewEndedMsg{iteration: iteration, signal: signal})
}

// OnStoryDone implements chain.Events.
func (e *programEvents) OnStoryDone(key backlog.Key, elapsed time.Duration) {
	e.program.Send(storyDoneMsg{key: key.String(), elapsed: elapsed})
}

// OnStoryEscalated implements chain.Events.
func (e *programEvents) OnStoryEscalated(key backlog.Key, category, reason string) {
	e.program.Send(storyEscalatedMsg{key: key.String(), category: category, reason: reason})
}

// OnEpicDone implements chain.Events.
func (e *programEvents) OnEpicDone(epic int) {
	e.program.Send(epicDoneMsg{epic: epic})
}

// OnEpicFailed implements chain.Events.
func (e *programEvents) OnEpicFailed(epic int, reason string) {
	e.program.Send(epicFailedMsg{epic: epic, reason: reason})
}

// OnRunEnd implements chain.Events.
func (e *programEvents) OnRunEnd(summary *chain.Summary) {
	// The final summary arrives through pipelineDoneMsg once the start
	// function returns, together with any error.
}

// Verify interface compliance
var _ chain.Events = (*programEvents)(nil)
