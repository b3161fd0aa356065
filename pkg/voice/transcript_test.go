package voice

import "testing"

func TestTranscriptAppendAccumulates(t *testing.T) {
	var tr Transcript

	if got := tr.Append("I need"); got != "I need" {
		t.Errorf("first append: got %q", got)
	}
	if got := tr.Append(" a jacket"); got != "I need a jacket" {
		t.Errorf("second append: got %q", got)
	}
}

func TestTranscriptFlushResetsBuffer(t *testing.T) {
	var tr Transcript
	tr.Append("something warm")

	text, ok := tr.Flush()
	if !ok || text != "something warm" {
		t.Fatalf("flush: got %q, %v", text, ok)
	}

	// The next utterance starts from empty, not from the prior one.
	if got := tr.Append("in blue"); got != "in blue" {
		t.Errorf("append after flush: got %q", got)
	}
}

func TestTranscriptEmptyBufferNeverFlushes(t *testing.T) {
	var tr Transcript
	if text, ok := tr.Flush(); ok || text != "" {
		t.Errorf("empty flush: got %q, %v", text, ok)
	}

	tr.Append("hi")
	tr.Flush()
	if _, ok := tr.Flush(); ok {
		t.Error("second flush after reset should report empty")
	}
}

func TestTranscriptReset(t *testing.T) {
	var tr Transcript
	tr.Append("discarded on teardown")
	tr.Reset()
	if _, ok := tr.Flush(); ok {
		t.Error("reset buffer should not flush")
	}
}
