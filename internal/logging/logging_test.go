package logging

import (
	"bytes"
	"testing"
)

func TestRingBufferTail(t *testing.T) {
	r := newRingBuffer(3)
	r.Write([]byte("a"))
	r.Write([]byte("b"))
	r.Write([]byte("c"))
	r.Write([]byte("d"))

	got := r.Tail(10)
	want := []string{"b", "c", "d"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("index %d: got %q, want %q", i, got[i], want[i])
		}
	}
}

func TestRingBufferTailLimit(t *testing.T) {
	r := newRingBuffer(5)
	for _, s := range []string{"1", "2", "3"} {
		r.Write([]byte(s))
	}
	got := r.Tail(2)
	if len(got) != 2 || got[0] != "2" || got[1] != "3" {
		t.Errorf("got %v", got)
	}
}

func TestRingBufferSince(t *testing.T) {
	r := newRingBuffer(3)
	r.Write([]byte("a"))
	r.Write([]byte("b"))

	lines, seq := r.since(0, 0)
	if len(lines) != 2 || lines[0].Text != "a" || lines[1].Text != "b" {
		t.Fatalf("got %v", lines)
	}
	if seq != 2 {
		t.Errorf("got seq %d, want 2", seq)
	}

	r.Write([]byte("c"))
	more, seq2 := r.since(seq, 0)
	if len(more) != 1 || more[0].Text != "c" {
		t.Fatalf("got %v", more)
	}
	if seq2 != 3 {
		t.Errorf("got seq %d, want 3", seq2)
	}
}

func TestRingBufferSinceSkipsEvictedLines(t *testing.T) {
	r := newRingBuffer(2)
	r.Write([]byte("a"))
	r.Write([]byte("b"))
	r.Write([]byte("c")) // evicts "a"

	lines, _ := r.since(0, 0)
	if len(lines) != 2 || lines[0].Text != "b" || lines[1].Text != "c" {
		t.Fatalf("got %v", lines)
	}
}

func TestNewLoggerWritesToRing(t *testing.T) {
	var console bytes.Buffer
	d, err := New(Options{Level: InfoLevel, Console: &console})
	if err != nil {
		t.Fatal(err)
	}
	d.Logger.Info().Str("component", "test").Msg("hello")

	lines := d.Tail(10)
	if len(lines) == 0 {
		t.Fatal("expected at least one retained line")
	}
	if !bytes.Contains([]byte(lines[len(lines)-1]), []byte("hello")) {
		t.Errorf("expected retained line to contain message, got %q", lines[len(lines)-1])
	}
}

func TestParseLevel(t *testing.T) {
	if ParseLevel("debug") != DebugLevel {
		t.Error("expected debug level")
	}
	if ParseLevel("bogus") != InfoLevel {
		t.Error("expected fallback to info level")
	}
}
