package components

import (
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/ansi"
)

const defaultScrollback = 1000

// Stream is the scrollback panel for live worker output. Chunks arrive on
// arbitrary boundaries and are stitched back into lines, which are wrapped
// at the panel width and kept in a bounded ring. The view follows the
// newest line until the user scrolls up; the right-hand gutter shows the
// scroll position once the buffer outgrows the panel.
type Stream struct {
	viewport   viewport.Model
	follow     bool     // keep the newest line in view
	raw        []string // unwrapped lines as received
	openLine   bool     // last raw line is an unfinished chunk
	wrapped    []string // raw lines wrapped at the content width
	scrollback int
	width      int
	height     int
}

// NewStream creates a stream panel. scrollback bounds the number of lines
// kept; 0 uses the default of 1000.
func NewStream(width, height, scrollback int) Stream {
	if scrollback <= 0 {
		scrollback = defaultScrollback
	}

	s := Stream{
		follow:     true,
		raw:        make([]string, 0, scrollback),
		scrollback: scrollback,
		width:      width,
		height:     height,
	}
	s.viewport = viewport.New(s.contentWidth(), height)
	return s
}

// contentWidth is the panel width minus the gutter column.
func (s Stream) contentWidth() int {
	if s.width <= 1 {
		return 0
	}
	return s.width - 1
}

// AppendChunk adds streamed output. Newlines inside the chunk close lines;
// a chunk that ends mid-line leaves the line open for the next chunk, so
// chunk boundaries never introduce breaks of their own.
func (s *Stream) AppendChunk(chunk string) {
	if chunk == "" {
		return
	}

	start := 0
	for start < len(chunk) {
		rel := strings.IndexByte(chunk[start:], '\n')
		if rel == -1 {
			s.appendOpen(chunk[start:])
			break
		}
		s.appendOpen(chunk[start : start+rel])
		s.openLine = false
		start += rel + 1
	}

	s.rewrap()
	if s.follow {
		s.viewport.GotoBottom()
	}
}

func (s *Stream) appendOpen(text string) {
	if s.openLine && len(s.raw) > 0 {
		s.raw[len(s.raw)-1] += text
		return
	}
	if len(s.raw) >= s.scrollback {
		s.raw = s.raw[1:]
	}
	s.raw = append(s.raw, text)
	s.openLine = true
}

// rewrap rebuilds the wrapped buffer from the raw lines and pushes it into
// the viewport.
func (s *Stream) rewrap() {
	cw := s.contentWidth()
	wrapped := make([]string, 0, len(s.raw))
	for _, line := range s.raw {
		w := line
		if cw > 0 {
			w = ansi.Wrap(line, cw, "/")
		}
		wrapped = append(wrapped, strings.Split(w, "\n")...)
	}
	if len(wrapped) > s.scrollback {
		wrapped = wrapped[len(wrapped)-s.scrollback:]
	}

	s.wrapped = wrapped
	s.viewport.SetContent(strings.Join(wrapped, "\n"))
}

// Update handles scroll keys. Scrolling up pauses following; returning to
// the bottom, or jumping there with end/G, resumes it.
func (s *Stream) Update(msg tea.Msg) (Stream, tea.Cmd) {
	var cmd tea.Cmd
	s.viewport, cmd = s.viewport.Update(msg)

	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "up", "k", "pgup", "ctrl+u":
			s.follow = false
		case "down", "j", "pgdown", "ctrl+d":
			if s.viewport.AtBottom() {
				s.follow = true
			}
		case "home", "g":
			s.follow = false
			s.viewport.GotoTop()
		case "end", "G":
			s.follow = true
			s.viewport.GotoBottom()
		}
	}

	return *s, cmd
}

// SetSize resizes the panel and rewraps its content. A follower stays at
// the bottom; otherwise the relative scroll position is preserved as well
// as rewrapping allows.
func (s *Stream) SetSize(width, height int) {
	if s.width == width && s.height == height {
		return
	}

	atBottom := s.viewport.AtBottom()
	percent := s.viewport.ScrollPercent()
	widthChanged := width != s.width

	s.width = width
	s.height = height
	s.viewport.Width = s.contentWidth()
	s.viewport.Height = height

	if widthChanged {
		s.rewrap()
	} else {
		// Clamp the offset so a shorter panel does not show past the end.
		s.viewport.SetYOffset(s.viewport.YOffset)
	}

	if s.follow || atBottom {
		s.viewport.GotoBottom()
		return
	}

	if widthChanged {
		limit := len(s.wrapped) - height
		if limit < 0 {
			limit = 0
		}
		s.viewport.SetYOffset(int(percent * float64(limit)))
	}
}

// Following reports whether the view is pinned to the newest line.
func (s Stream) Following() bool {
	return s.follow
}

// LineCount returns the number of wrapped lines in the buffer.
func (s Stream) LineCount() int {
	return len(s.wrapped)
}

// View renders the panel: the visible slice of the buffer with the scroll
// gutter appended to every row. Rows are padded to the content width so the
// gutter forms a straight column.
func (s Stream) View() string {
	content := strings.Split(s.viewport.View(), "\n")
	gutter := s.gutter()
	cw := s.contentWidth()

	var b strings.Builder
	for i := 0; i < s.height; i++ {
		if i > 0 {
			b.WriteByte('\n')
		}
		var line string
		if i < len(content) {
			line = content[i]
		}
		if pad := cw - ansi.StringWidth(line); pad > 0 {
			line += strings.Repeat(" ", pad)
		}
		b.WriteString(line)
		if i < len(gutter) {
			b.WriteString(gutter[i])
		}
	}
	return b.String()
}

// gutter returns one cell per row: blank while the buffer fits the panel,
// otherwise a track with a thumb sized by the visible fraction and placed
// by the scroll offset.
func (s Stream) gutter() []string {
	if s.height <= 0 {
		return nil
	}

	cells := make([]string, s.height)
	total := len(s.wrapped)
	if total <= s.height {
		for i := range cells {
			cells[i] = " "
		}
		return cells
	}

	size := s.height * s.height / total
	if size < 1 {
		size = 1
	}
	span := s.height - size

	top := 0
	if limit := total - s.height; limit > 0 {
		top = s.viewport.YOffset * span / limit
	}
	if top > span {
		top = span
	}
	if top < 0 {
		top = 0
	}

	for i := range cells {
		if i >= top && i < top+size {
			cells[i] = "█"
		} else {
			cells[i] = "│"
		}
	}
	return cells
}
