// Package logging wires the daemon's structured logger and keeps a bounded
// in-memory tail of recent log lines so the control surface can serve
// `lcid logs` without reopening the log file.
package logging

import (
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Level mirrors the subset of zerolog levels the daemon exposes on its
// control surface and in configuration.
type Level = zerolog.Level

const (
	DebugLevel = zerolog.DebugLevel
	InfoLevel  = zerolog.InfoLevel
	WarnLevel  = zerolog.WarnLevel
	ErrorLevel = zerolog.ErrorLevel
)

// ParseLevel maps a config/CLI string onto a zerolog.Level, defaulting to
// InfoLevel for anything unrecognized.
func ParseLevel(s string) Level {
	lvl, err := zerolog.ParseLevel(s)
	if err != nil {
		return InfoLevel
	}
	return lvl
}

// ringBuffer keeps the last N formatted log lines for the control surface.
type ringBuffer struct {
	mu    sync.Mutex
	lines []string
	cap   int
	next  int
	full  bool
	total int64 // count of lines ever written, used to mint monotonic sequence numbers
}

func newRingBuffer(capacity int) *ringBuffer {
	if capacity <= 0 {
		capacity = 1000
	}
	return &ringBuffer{lines: make([]string, capacity), cap: capacity}
}

func (r *ringBuffer) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines[r.next] = string(p)
	r.next = (r.next + 1) % r.cap
	if r.next == 0 {
		r.full = true
	}
	r.total++
	return len(p), nil
}

// Tail returns up to n of the most recent lines, oldest first.
func (r *ringBuffer) Tail(n int) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var ordered []string
	if r.full {
		ordered = append(ordered, r.lines[r.next:]...)
		ordered = append(ordered, r.lines[:r.next]...)
	} else {
		ordered = append(ordered, r.lines[:r.next]...)
	}

	if n <= 0 || n >= len(ordered) {
		return ordered
	}
	return ordered[len(ordered)-n:]
}

// LogLine pairs a retained log line with its monotonic sequence number.
type LogLine struct {
	Seq  int64
	Text string
}

// since returns lines with sequence number > afterSeq, oldest first,
// capped at limit (0 means unlimited), plus the sequence number the next
// poll should pass as afterSeq. Lines evicted by ring wraparound before
// afterSeq was reached are silently skipped — the caller has already
// missed them.
func (r *ringBuffer) since(afterSeq int64, limit int) ([]LogLine, int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var ordered []string
	if r.full {
		ordered = append(ordered, r.lines[r.next:]...)
		ordered = append(ordered, r.lines[:r.next]...)
	} else {
		ordered = append(ordered, r.lines[:r.next]...)
	}

	oldestSeq := r.total - int64(len(ordered)) + 1
	next := r.total
	out := make([]LogLine, 0, len(ordered))
	for i, text := range ordered {
		seq := oldestSeq + int64(i)
		if seq <= afterSeq {
			continue
		}
		out = append(out, LogLine{Seq: seq, Text: text})
		if limit > 0 && len(out) >= limit {
			next = seq
			break
		}
	}
	return out, next
}

// Daemon bundles the zerolog logger used across lcid with the ring buffer
// backing the control surface's log-tail endpoint.
type Daemon struct {
	Logger zerolog.Logger
	ring   *ringBuffer
	file   *os.File
}

// Options configures where daemon logs are written in addition to the
// in-memory tail that always backs the control surface.
type Options struct {
	Level    Level
	FilePath string // optional; empty disables file logging
	Console  io.Writer // optional extra sink, e.g. os.Stderr for `lcid serve`
}

// New builds a Daemon logger. The ring buffer always receives every line;
// FilePath and Console are additional sinks.
func New(opts Options) (*Daemon, error) {
	ring := newRingBuffer(2000)
	writers := []io.Writer{ring}

	var file *os.File
	if opts.FilePath != "" {
		if err := os.MkdirAll(filepath.Dir(opts.FilePath), 0755); err != nil {
			return nil, err
		}
		f, err := os.OpenFile(opts.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, err
		}
		file = f
		writers = append(writers, f)
	}
	if opts.Console != nil {
		writers = append(writers, zerolog.ConsoleWriter{Out: opts.Console, TimeFormat: time.Kitchen})
	}

	mw := io.MultiWriter(writers...)
	logger := zerolog.New(mw).Level(opts.Level).With().Timestamp().Logger()

	return &Daemon{Logger: logger, ring: ring, file: file}, nil
}

// Tail returns up to n recent log lines, oldest first. n <= 0 returns all
// retained lines.
func (d *Daemon) Tail(n int) []string {
	return d.ring.Tail(n)
}

// Since returns lines logged after afterSeq (0 to start from the oldest
// retained line), oldest first, capped at limit (0 means unlimited), and
// the sequence number the caller should pass as afterSeq on its next
// poll — this is the `logs follow` control surface's polling primitive.
func (d *Daemon) Since(afterSeq int64, limit int) ([]LogLine, int64) {
	return d.ring.since(afterSeq, limit)
}

// Close releases the underlying log file, if one was opened.
func (d *Daemon) Close() error {
	if d.file != nil {
		return d.file.Close()
	}
	return nil
}

// DefaultLogPath returns the conventional per-workspace log file location,
// mirroring the daemon's socket-path convention of hashing the workspace
// root so concurrent workspaces don't collide.
func DefaultLogPath(workspaceRoot string) string {
	return filepath.Join(os.TempDir(), "lcid-logs", hashHex(workspaceRoot)+".log")
}
