package voice

import (
	"strings"
	"sync"
)

// Direction identifies whose speech a transcript belongs to.
type Direction string

const (
	DirectionUser  Direction = "user"
	DirectionAgent Direction = "agent"
)

// Transcript accumulates partial transcription text for one direction
// until the agent signals a turn boundary.
type Transcript struct {
	mu  sync.Mutex
	buf strings.Builder
}

// Append adds a partial update and returns the text accumulated so far.
func (t *Transcript) Append(delta string) string {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf.WriteString(delta)
	return t.buf.String()
}

// Flush returns the finalized utterance and resets the buffer to empty.
// ok is false when nothing was accumulated; an empty buffer is never
// flushed as an utterance.
func (t *Transcript) Flush() (text string, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.buf.Len() == 0 {
		return "", false
	}
	text = t.buf.String()
	t.buf.Reset()
	return text, true
}

// Reset discards any accumulated text.
func (t *Transcript) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf.Reset()
}
