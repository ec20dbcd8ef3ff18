package lsp

import (
	"context"
	"os"
)

// DocumentProvider answers the questions CacheMiddleware needs about a
// document's live editor state: its current content (which may differ
// from disk for an unsaved buffer), whether it has unsaved changes at
// all, and which workspace it belongs to.
type DocumentProvider interface {
	GetContent(ctx context.Context, uri string) (content string, ok bool, err error)
	HasUnsavedChanges(ctx context.Context, uri string) (bool, error)
	GetWorkspaceRoot(ctx context.Context, uri string) (root string, ok bool, err error)
}

// FileSystemDocumentProvider is the default DocumentProvider: it always
// reads from disk and so always reports no unsaved changes. A daemon
// embedded inside an editor with a live buffer store should supply its
// own DocumentProvider instead.
type FileSystemDocumentProvider struct{}

func (FileSystemDocumentProvider) GetContent(_ context.Context, uri string) (string, bool, error) {
	path := URIToPath(uri)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, err
	}
	return string(data), true, nil
}

func (FileSystemDocumentProvider) HasUnsavedChanges(context.Context, string) (bool, error) {
	return false, nil
}

// GetWorkspaceRoot reports the document's own path as its root; it does
// not search for a workspace marker.
func (FileSystemDocumentProvider) GetWorkspaceRoot(_ context.Context, uri string) (string, bool, error) {
	return URIToPath(uri), true, nil
}

// URIToPath strips a "file://" scheme from a document URI, if present.
func URIToPath(uri string) string {
	const prefix = "file://"
	if len(uri) >= len(prefix) && uri[:len(prefix)] == prefix {
		return uri[len(prefix):]
	}
	return uri
}
