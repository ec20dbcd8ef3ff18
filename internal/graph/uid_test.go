package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerateUIDDeterministic(t *testing.T) {
	g := NewSymbolUidGenerator()
	content := []byte("package main\nfunc foo() {}\n")

	uid1 := g.Generate("/ws", "/ws/main.go", content, "foo", 2, 5, ClassificationResolved)
	uid2 := g.Generate("/ws", "/ws/main.go", content, "foo", 2, 5, ClassificationResolved)
	assert.Equal(t, uid1, uid2)
}

func TestGenerateUIDDiffersOnContent(t *testing.T) {
	g := NewSymbolUidGenerator()
	uidA := g.Generate("/ws", "/ws/main.go", []byte("v1"), "foo", 2, 5, ClassificationResolved)
	uidB := g.Generate("/ws", "/ws/main.go", []byte("v2"), "foo", 2, 5, ClassificationResolved)
	assert.NotEqual(t, uidA, uidB)
}

func TestGenerateUIDUnreadableUsesPlaceholder(t *testing.T) {
	g := NewSymbolUidGenerator()
	uid := g.Generate("/ws", "/ws/gone.go", nil, "foo", 2, 5, ClassificationUnresolved)
	assert.Contains(t, uid, "UNRESOLVED:foo:")
}

func TestGenerateUIDExternalPrefix(t *testing.T) {
	g := NewSymbolUidGenerator()
	uid := g.Generate("/ws", "/outside/lib.go", []byte("x"), "bar", 10, 1, ClassificationExternal)
	assert.Contains(t, uid, "EXTERNAL:bar:")
}

func TestNormalizePathRewritesResolvedUID(t *testing.T) {
	g := NewSymbolUidGenerator()
	uid := g.Generate("/ws", "/ws/pkg/main.go", []byte("x"), "foo", 1, 1, ClassificationResolved)
	got := g.NormalizePath(uid, "fallback/path.go")
	assert.Equal(t, "pkg/main.go", got)
}

func TestNormalizePathKeepsFallbackForExternal(t *testing.T) {
	g := NewSymbolUidGenerator()
	uid := g.Generate("/ws", "/outside/lib.go", []byte("x"), "foo", 1, 1, ClassificationExternal)
	got := g.NormalizePath(uid, "fallback/path.go")
	assert.Equal(t, "fallback/path.go", got, "EXTERNAL/UNRESOLVED UIDs are never rewritten to a workspace-relative path")
}
