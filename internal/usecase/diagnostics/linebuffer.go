package diagnostics

import (
	"strings"
	"sync"
)

// lineBuffer is a thread-safe, fixed-capacity line FIFO used for capturing
// process output. Raw chunks are split into complete lines; once full, the
// oldest lines are dropped. A trailing partial line (no newline yet) is held
// separately so it is neither counted against capacity nor lost.
type lineBuffer struct {
	mu      sync.Mutex
	lines   []string
	partial string
	max     int
	written int64 // total complete lines ever appended (including dropped)
}

func newLineBuffer(maxLines int) *lineBuffer {
	if maxLines <= 0 {
		maxLines = 1
	}
	return &lineBuffer{
		lines: make([]string, 0, min(maxLines, 256)),
		max:   maxLines,
	}
}

// Write implements io.Writer. Thread-safe.
func (lb *lineBuffer) Write(p []byte) (int, error) {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	text := lb.partial + string(p)
	lb.partial = ""

	for {
		idx := strings.IndexByte(text, '\n')
		if idx < 0 {
			lb.partial = text
			break
		}
		lb.appendLine(strings.TrimSuffix(text[:idx], "\r"))
		text = text[idx+1:]
	}
	return len(p), nil
}

// appendLine assumes lb.mu is held.
func (lb *lineBuffer) appendLine(line string) {
	lb.lines = append(lb.lines, line)
	lb.written++
	if len(lb.lines) > lb.max {
		lb.lines = lb.lines[len(lb.lines)-lb.max:]
	}
}

// Lines returns a copy of the retained complete lines, oldest first.
func (lb *lineBuffer) Lines() []string {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	out := make([]string, len(lb.lines))
	copy(out, lb.lines)
	return out
}

// Partial returns the trailing text not yet terminated by a newline.
func (lb *lineBuffer) Partial() string {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	return lb.partial
}

// String returns the retained lines plus any partial tail as one block,
// suitable for regex scanning.
func (lb *lineBuffer) String() string {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	var sb strings.Builder
	for _, l := range lb.lines {
		sb.WriteString(l)
		sb.WriteByte('\n')
	}
	sb.WriteString(lb.partial)
	return sb.String()
}

// TotalWritten returns the total number of complete lines ever appended,
// including lines dropped due to overflow.
func (lb *lineBuffer) TotalWritten() int64 {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	return lb.written
}
