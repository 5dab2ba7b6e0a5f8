package cli

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"
)

// syncBuffer lets the spinner goroutine and the test share a buffer.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestSpinnerText(t *testing.T) {
	tests := []struct {
		name     string
		label    string
		total    int
		advances int
		want     string
	}{
		{"single graph", "Scheduling 4 nodes", 0, 0, "Scheduling 4 nodes"},
		{"batch start", "Scheduling graphs", 3, 0, "Scheduling graphs 0/3"},
		{"batch partway", "Scheduling graphs", 3, 2, "Scheduling graphs 2/3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := startSpinner(context.Background(), &syncBuffer{}, tt.label, tt.total)
			defer s.stop()
			for i := 0; i < tt.advances; i++ {
				s.advance()
			}
			if got := s.text(); got != tt.want {
				t.Errorf("text() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSpinnerAdvanceConcurrent(t *testing.T) {
	s := startSpinner(context.Background(), &syncBuffer{}, "Scheduling graphs", 64)
	defer s.stop()

	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.advance()
		}()
	}
	wg.Wait()
	if got := s.text(); got != "Scheduling graphs 64/64" {
		t.Errorf("text() = %q, want all 64 graphs counted", got)
	}
}

func TestSpinnerDrawsAndClears(t *testing.T) {
	var buf syncBuffer
	s := startSpinner(context.Background(), &buf, "Scheduling graphs", 2)
	s.advance()
	time.Sleep(3 * spinnerInterval)
	s.stop()

	out := buf.String()
	if !strings.Contains(out, "1/2") {
		t.Errorf("output %q lacks progress count", out)
	}
	if !strings.HasSuffix(out, "\r") {
		t.Errorf("output %q does not end by clearing the line", out)
	}
	if s.interrupted() {
		t.Error("interrupted() = true after stop")
	}
}

func TestSpinnerStopBeforeFirstFrame(t *testing.T) {
	var buf syncBuffer
	s := startSpinner(context.Background(), &buf, "Scheduling 1 node", 0)
	s.stop()
	s.stop()
	if out := buf.String(); out != "" {
		t.Errorf("output = %q, want nothing for a run shorter than one frame", out)
	}
}

func TestSpinnerInterrupted(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := startSpinner(ctx, &syncBuffer{}, "Scheduling graphs", 5)
	cancel()
	s.stop()
	if !s.interrupted() {
		t.Error("interrupted() = false after the parent context was canceled")
	}
}
