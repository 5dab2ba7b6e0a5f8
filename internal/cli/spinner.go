package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

const spinnerInterval = 80 * time.Millisecond

// spinner animates a status line while graphs are scheduled. With a
// positive total the line also counts finished graphs, "Scheduling 3/8".
type spinner struct {
	w      io.Writer
	label  string
	total  int
	done   atomic.Int64
	parent context.Context
	cancel context.CancelFunc
	exited chan struct{}

	mu    sync.Mutex
	width int // widest line drawn so far
}

// startSpinner draws on w until stop is called or ctx ends.
func startSpinner(ctx context.Context, w io.Writer, label string, total int) *spinner {
	sctx, cancel := context.WithCancel(ctx)
	s := &spinner{
		w:      w,
		label:  label,
		total:  total,
		parent: ctx,
		cancel: cancel,
		exited: make(chan struct{}),
	}
	go s.loop(sctx)
	return s
}

// advance counts one finished graph. Batch workers call it concurrently.
func (s *spinner) advance() {
	s.done.Add(1)
}

func (s *spinner) text() string {
	if s.total <= 0 {
		return s.label
	}
	return fmt.Sprintf("%s %d/%d", s.label, s.done.Load(), s.total)
}

func (s *spinner) loop(ctx context.Context) {
	defer close(s.exited)
	ticker := time.NewTicker(spinnerInterval)
	defer ticker.Stop()

	for i := 0; ; i++ {
		select {
		case <-ctx.Done():
			s.clear()
			return
		case <-ticker.C:
			s.draw(spinnerFrames[i%len(spinnerFrames)])
		}
	}
}

func (s *spinner) draw(frame string) {
	text := s.text()
	s.mu.Lock()
	defer s.mu.Unlock()
	if n := utf8.RuneCountInString(frame) + 1 + utf8.RuneCountInString(text); n > s.width {
		s.width = n
	}
	fmt.Fprintf(s.w, "\r%s %s", styleSpinner.Render(frame), styleMuted.Render(text))
}

// clear blanks the line. Nothing is written if no frame was drawn.
func (s *spinner) clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.width == 0 {
		return
	}
	fmt.Fprintf(s.w, "\r%s\r", strings.Repeat(" ", s.width))
}

// stop ends the animation and waits for the line to be cleared. It may be
// called more than once.
func (s *spinner) stop() {
	s.cancel()
	<-s.exited
}

// interrupted reports whether the spinner ended because its parent context
// was canceled rather than through stop.
func (s *spinner) interrupted() bool {
	return s.parent.Err() != nil
}
