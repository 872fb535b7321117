package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

const spinnerInterval = 80 * time.Millisecond

// statusLine is a single redrawn terminal line showing an activity and,
// once counts are known, how many packages it has finished. It stops
// when its context is cancelled.
type statusLine struct {
	w       io.Writer
	message string

	mu      sync.Mutex
	done    int
	total   int
	current string
	width   int // printable width of the last draw
	started bool
	halted  bool

	ctx     context.Context
	cancel  context.CancelFunc
	stopped chan struct{}
	once    sync.Once
}

// newStatusLine returns a status line drawing on stderr.
func newStatusLine(ctx context.Context, message string) *statusLine {
	return newStatusLineTo(ctx, os.Stderr, message)
}

func newStatusLineTo(ctx context.Context, w io.Writer, message string) *statusLine {
	ctx, cancel := context.WithCancel(ctx)
	return &statusLine{
		w:       w,
		message: message,
		ctx:     ctx,
		cancel:  cancel,
		stopped: make(chan struct{}),
	}
}

// Start draws the line every spinnerInterval until Stop or cancellation.
func (s *statusLine) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started || s.halted {
		return
	}
	s.started = true
	go func() {
		defer close(s.stopped)
		ticker := time.NewTicker(spinnerInterval)
		defer ticker.Stop()
		for i := 0; ; i++ {
			s.draw(spinnerFrames[i%len(spinnerFrames)])
			select {
			case <-s.ctx.Done():
				s.clear()
				return
			case <-ticker.C:
			}
		}
	}()
}

// Advance records that done of total packages are finished, name being the
// latest. It matches the shape of pipeline.Runner.Progress.
func (s *statusLine) Advance(done, total int, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.done, s.total, s.current = done, total, name
}

// Stop ends the animation and clears the line. It is safe to call more
// than once.
func (s *statusLine) Stop() {
	s.once.Do(func() {
		s.mu.Lock()
		s.halted = true
		started := s.started
		s.mu.Unlock()
		s.cancel()
		if started {
			<-s.stopped
		}
	})
}

// Cancelled reports whether the parent context, rather than Stop, ended
// the line.
func (s *statusLine) Cancelled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctx.Err() != nil && !s.halted
}

// text renders the line without the spinner frame.
func (s *statusLine) text() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.total == 0 {
		return s.message
	}
	t := fmt.Sprintf("%s %d/%d", s.message, s.done, s.total)
	if s.current != "" {
		t += " " + s.current
	}
	return t
}

func (s *statusLine) draw(frame string) {
	line := styleIconSpinner.Render(frame) + " " + StyleDim.Render(s.text())
	s.mu.Lock()
	defer s.mu.Unlock()
	pad := s.width - lipgloss.Width(line)
	s.width = lipgloss.Width(line)
	if pad < 0 {
		pad = 0
	}
	fmt.Fprintf(s.w, "\r%s%*s", line, pad, "")
}

func (s *statusLine) clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.w, "\r%*s\r", s.width, "")
	s.width = 0
}
