package errors

import (
	"errors"
	"testing"
)

func TestCacheError(t *testing.T) {
	underlying := errors.New("bolt: bucket not found")
	err := NewCacheError("get", "workspace/file.go:definition:abc123", underlying)

	if err.Type != ErrorTypeCache {
		t.Errorf("expected ErrorTypeCache, got %v", err.Type)
	}
	if !errors.Is(err, underlying) {
		t.Error("expected error to unwrap to underlying error")
	}

	want := "cache get failed for key workspace/file.go:definition:abc123: bolt: bucket not found"
	if err.Error() != want {
		t.Errorf("got %q, want %q", err.Error(), want)
	}
}

func TestUpstreamError(t *testing.T) {
	underlying := errors.New("connection reset")
	err := NewUpstreamError("textDocument/hover", "/repo/main.go", underlying)

	want := "upstream textDocument/hover failed for /repo/main.go: connection reset"
	if err.Error() != want {
		t.Errorf("got %q, want %q", err.Error(), want)
	}
	if !errors.Is(err, underlying) {
		t.Error("expected error to unwrap to underlying error")
	}
}

func TestAdapterError(t *testing.T) {
	underlying := errors.New("missing range")
	err := NewAdapterError("convert_call_hierarchy", "src/main.go:Foo:abcd:10", underlying)

	want := "adapter convert_call_hierarchy failed for symbol src/main.go:Foo:abcd:10: missing range"
	if err.Error() != want {
		t.Errorf("got %q, want %q", err.Error(), want)
	}
}

func TestWorkspaceError(t *testing.T) {
	underlying := errors.New("no marker file found")
	err := NewWorkspaceError("discover", "/repo", underlying)

	want := "workspace discover failed for /repo: no marker file found"
	if err.Error() != want {
		t.Errorf("got %q, want %q", err.Error(), want)
	}
}

func TestConfigError(t *testing.T) {
	underlying := errors.New("not a valid duration")
	err := NewConfigError("cache.ttl", "abc", underlying)

	want := "config error for field cache.ttl (value abc): not a valid duration"
	if err.Error() != want {
		t.Errorf("got %q, want %q", err.Error(), want)
	}
}

func TestMultiError(t *testing.T) {
	e1 := errors.New("first")
	e2 := errors.New("second")

	m := NewMultiError([]error{e1, nil, e2})
	if len(m.Errors) != 2 {
		t.Fatalf("expected 2 errors after filtering nils, got %d", len(m.Errors))
	}
	if m.Error() != "2 errors: [first second]" {
		t.Errorf("got %q", m.Error())
	}

	single := NewMultiError([]error{e1})
	if single.Error() != "first" {
		t.Errorf("expected single error to pass through unwrapped, got %q", single.Error())
	}

	empty := NewMultiError(nil)
	if empty.Error() != "no errors" {
		t.Errorf("got %q", empty.Error())
	}
}
