// Package graphdb persists the symbol graph (SymbolState nodes and Edge
// relationships) to a SQLite database, following the teacher pack's
// writer/reader split: a single-connection writer serializes all
// mutations while a small reader pool serves concurrent lookups.
package graphdb

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/standardbeagle/lcid/internal/errors"
	"github.com/standardbeagle/lcid/internal/graph"
)

// Backend is the symbol graph's storage contract, as spec.md §4.12 names
// it for the core: batch writes of symbols and edges, and a targeted
// clear. DatabaseBackend is the sqlite-backed implementation.
type Backend interface {
	StoreSymbols(ctx context.Context, symbols []graph.SymbolState) error
	StoreEdges(ctx context.Context, edges []graph.Edge) error
	ClearSymbol(ctx context.Context, file, name string, line, col *int, methods []string, allPositions bool) (ClearResult, error)
}

var _ Backend = (*DatabaseBackend)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS symbols (
	symbol_uid     TEXT PRIMARY KEY,
	file_path      TEXT NOT NULL,
	language       TEXT NOT NULL,
	name           TEXT NOT NULL,
	fqn            TEXT NOT NULL,
	kind           TEXT NOT NULL,
	signature      TEXT NOT NULL,
	visibility     TEXT NOT NULL,
	def_start_line INTEGER NOT NULL,
	def_start_char INTEGER NOT NULL,
	def_end_line   INTEGER NOT NULL,
	def_end_char   INTEGER NOT NULL,
	is_definition  INTEGER NOT NULL,
	documentation  TEXT NOT NULL,
	metadata       TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_symbols_file_name ON symbols(file_path, name);

CREATE TABLE IF NOT EXISTS edges (
	relation          TEXT NOT NULL,
	source_symbol_uid TEXT NOT NULL,
	target_symbol_uid TEXT NOT NULL,
	file_path         TEXT NOT NULL,
	start_line        INTEGER NOT NULL,
	start_char        INTEGER NOT NULL,
	confidence        REAL NOT NULL,
	language          TEXT NOT NULL,
	metadata          TEXT NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_edges_identity
	ON edges(relation, source_symbol_uid, target_symbol_uid);
`

// ClearResult reports what a targeted ClearSymbol removed.
type ClearResult struct {
	Count     int
	Positions []int
	Methods   []string
	Bytes     int64
}

// DatabaseBackend is the symbol graph's transactional SQLite store. It
// owns a single writer connection (MaxOpenConns=1) so batch writes never
// interleave, and a small reader pool for concurrent lookups.
type DatabaseBackend struct {
	writer    *sqlx.DB
	reader    *sqlx.DB
	path      string
	closeOnce sync.Once
}

// Open creates or opens the symbol database at path, creating its parent
// directory and applying the schema if needed.
func Open(path string) (*DatabaseBackend, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, errors.NewDatabaseError("open", fmt.Errorf("create directory %s: %w", dir, err))
	}

	writerDSN := path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)"
	writer, err := sqlx.Open("sqlite", writerDSN)
	if err != nil {
		return nil, errors.NewDatabaseError("open-writer", err)
	}
	writer.SetMaxOpenConns(1)
	writer.SetMaxIdleConns(1)
	writer.SetConnMaxLifetime(0)

	if err := writer.Ping(); err != nil {
		writer.Close()
		return nil, errors.NewDatabaseError("ping-writer", err)
	}

	readerDSN := path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)&_pragma=query_only(ON)"
	reader, err := sqlx.Open("sqlite", readerDSN)
	if err != nil {
		writer.Close()
		return nil, errors.NewDatabaseError("open-reader", err)
	}
	reader.SetMaxOpenConns(4)
	reader.SetMaxIdleConns(4)
	reader.SetConnMaxLifetime(0)

	if err := reader.Ping(); err != nil {
		writer.Close()
		reader.Close()
		return nil, errors.NewDatabaseError("ping-reader", err)
	}

	b := &DatabaseBackend{writer: writer, reader: reader, path: path}

	if _, err := b.writer.Exec(schema); err != nil {
		b.Close()
		return nil, errors.NewDatabaseError("migrate", err)
	}

	return b, nil
}

// Close closes both connections. Safe to call more than once.
func (b *DatabaseBackend) Close() error {
	var firstErr error
	b.closeOnce.Do(func() {
		if b.writer != nil {
			if err := b.writer.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		if b.reader != nil {
			if err := b.reader.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	})
	return firstErr
}

// Path returns the database's filesystem path.
func (b *DatabaseBackend) Path() string {
	return b.path
}

// StoreSymbols upserts a batch of symbol nodes inside a single
// transaction: either all symbols in the batch become visible, or none
// do.
func (b *DatabaseBackend) StoreSymbols(ctx context.Context, symbols []graph.SymbolState) error {
	if len(symbols) == 0 {
		return nil
	}

	tx, err := b.writer.BeginTxx(ctx, nil)
	if err != nil {
		return errors.NewDatabaseError("store-symbols-begin", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareNamedContext(ctx, `
		INSERT INTO symbols (
			symbol_uid, file_path, language, name, fqn, kind, signature,
			visibility, def_start_line, def_start_char, def_end_line,
			def_end_char, is_definition, documentation, metadata
		) VALUES (
			:symbol_uid, :file_path, :language, :name, :fqn, :kind, :signature,
			:visibility, :def_start_line, :def_start_char, :def_end_line,
			:def_end_char, :is_definition, :documentation, :metadata
		)
		ON CONFLICT(symbol_uid) DO UPDATE SET
			file_path=excluded.file_path, language=excluded.language,
			name=excluded.name, fqn=excluded.fqn, kind=excluded.kind,
			signature=excluded.signature, visibility=excluded.visibility,
			def_start_line=excluded.def_start_line, def_start_char=excluded.def_start_char,
			def_end_line=excluded.def_end_line, def_end_char=excluded.def_end_char,
			is_definition=excluded.is_definition, documentation=excluded.documentation,
			metadata=excluded.metadata
	`)
	if err != nil {
		return errors.NewDatabaseError("store-symbols-prepare", err)
	}
	defer stmt.Close()

	for _, s := range symbols {
		if _, err := stmt.ExecContext(ctx, symbolRow(s)); err != nil {
			return errors.NewDatabaseError("store-symbols-exec", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.NewDatabaseError("store-symbols-commit", err)
	}
	return nil
}

// StoreEdges upserts a batch of edges inside a single transaction.
// Repeated edges (same relation, source, target) are no-ops, matching
// the idempotence the symbol graph adapter requires on re-runs.
func (b *DatabaseBackend) StoreEdges(ctx context.Context, edges []graph.Edge) error {
	if len(edges) == 0 {
		return nil
	}

	tx, err := b.writer.BeginTxx(ctx, nil)
	if err != nil {
		return errors.NewDatabaseError("store-edges-begin", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareNamedContext(ctx, `
		INSERT INTO edges (
			relation, source_symbol_uid, target_symbol_uid, file_path,
			start_line, start_char, confidence, language, metadata
		) VALUES (
			:relation, :source_symbol_uid, :target_symbol_uid, :file_path,
			:start_line, :start_char, :confidence, :language, :metadata
		)
		ON CONFLICT(relation, source_symbol_uid, target_symbol_uid) DO UPDATE SET
			file_path=excluded.file_path, start_line=excluded.start_line,
			start_char=excluded.start_char, confidence=excluded.confidence,
			language=excluded.language, metadata=excluded.metadata
	`)
	if err != nil {
		return errors.NewDatabaseError("store-edges-prepare", err)
	}
	defer stmt.Close()

	for _, e := range edges {
		if _, err := stmt.ExecContext(ctx, edgeRow(e)); err != nil {
			return errors.NewDatabaseError("store-edges-exec", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.NewDatabaseError("store-edges-commit", err)
	}
	return nil
}

// ClearSymbol removes symbols (and the edges that reference them) by
// file and name, optionally narrowed to a specific defining position;
// methods is echoed back in the result and does not narrow the
// selection. When allPositions is false and line/col
// are given, only the symbol at that exact position is removed;
// otherwise every symbol_uid matching file+name is a candidate.
func (b *DatabaseBackend) ClearSymbol(ctx context.Context, file, name string, line, col *int, methods []string, allPositions bool) (ClearResult, error) {
	tx, err := b.writer.BeginTxx(ctx, nil)
	if err != nil {
		return ClearResult{}, errors.NewDatabaseError("clear-symbol-begin", err)
	}
	defer tx.Rollback()

	// methods scopes which cached LSP responses are invalidated in
	// UniversalCache.ClearSymbol; the symbol graph has no per-method rows
	// to filter by, so it is echoed back in the result but not applied
	// to this query.
	query := "SELECT symbol_uid, def_start_line, LENGTH(documentation) + LENGTH(signature) + LENGTH(metadata) AS approx_bytes FROM symbols WHERE file_path = ? AND name = ?"
	args := []any{file, name}

	if !allPositions && line != nil {
		query += " AND def_start_line = ?"
		args = append(args, *line)
		if col != nil {
			query += " AND def_start_char = ?"
			args = append(args, *col)
		}
	}

	rows, err := tx.QueryxContext(ctx, query, args...)
	if err != nil {
		return ClearResult{}, errors.NewDatabaseError("clear-symbol-select", err)
	}

	var uids []string
	var positions []int
	var totalBytes int64
	for rows.Next() {
		var uid string
		var defLine int
		var approxBytes int64
		if err := rows.Scan(&uid, &defLine, &approxBytes); err != nil {
			rows.Close()
			return ClearResult{}, errors.NewDatabaseError("clear-symbol-scan", err)
		}
		uids = append(uids, uid)
		positions = append(positions, defLine)
		totalBytes += approxBytes
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return ClearResult{}, errors.NewDatabaseError("clear-symbol-rows", err)
	}
	rows.Close()

	result := ClearResult{Positions: positions, Methods: methods}
	if len(uids) == 0 {
		if err := tx.Commit(); err != nil {
			return ClearResult{}, errors.NewDatabaseError("clear-symbol-commit", err)
		}
		return result, nil
	}

	placeholders := make([]string, len(uids))
	deleteArgs := make([]any, len(uids))
	for i, uid := range uids {
		placeholders[i] = "?"
		deleteArgs[i] = uid
	}
	in := joinPlaceholders(placeholders)

	edgeArgs := append(append([]any{}, deleteArgs...), deleteArgs...)
	if _, err := tx.ExecContext(ctx, "DELETE FROM edges WHERE source_symbol_uid IN ("+in+") OR target_symbol_uid IN ("+in+")", edgeArgs...); err != nil {
		return ClearResult{}, errors.NewDatabaseError("clear-symbol-delete-edges", err)
	}

	symRes, err := tx.ExecContext(ctx, "DELETE FROM symbols WHERE symbol_uid IN ("+in+")", deleteArgs...)
	if err != nil {
		return ClearResult{}, errors.NewDatabaseError("clear-symbol-delete-symbols", err)
	}
	deleted, err := symRes.RowsAffected()
	if err != nil {
		return ClearResult{}, errors.NewDatabaseError("clear-symbol-rows-affected", err)
	}

	if err := tx.Commit(); err != nil {
		return ClearResult{}, errors.NewDatabaseError("clear-symbol-commit", err)
	}

	result.Count = int(deleted)
	result.Bytes = totalBytes
	return result, nil
}

// SymbolCount returns the number of stored symbols, for diagnostics.
func (b *DatabaseBackend) SymbolCount(ctx context.Context) (int64, error) {
	var n int64
	if err := b.reader.GetContext(ctx, &n, "SELECT COUNT(*) FROM symbols"); err != nil {
		return 0, errors.NewDatabaseError("symbol-count", err)
	}
	return n, nil
}

// EdgeCount returns the number of stored edges, for diagnostics.
func (b *DatabaseBackend) EdgeCount(ctx context.Context) (int64, error) {
	var n int64
	if err := b.reader.GetContext(ctx, &n, "SELECT COUNT(*) FROM edges"); err != nil {
		return 0, errors.NewDatabaseError("edge-count", err)
	}
	return n, nil
}

// symbolRowDTO mirrors graph.SymbolState in the column names sqlx's
// named-parameter binding expects.
type symbolRowDTO struct {
	SymbolUID     string `db:"symbol_uid"`
	FilePath      string `db:"file_path"`
	Language      string `db:"language"`
	Name          string `db:"name"`
	FQN           string `db:"fqn"`
	Kind          string `db:"kind"`
	Signature     string `db:"signature"`
	Visibility    string `db:"visibility"`
	DefStartLine  int    `db:"def_start_line"`
	DefStartChar  int    `db:"def_start_char"`
	DefEndLine    int    `db:"def_end_line"`
	DefEndChar    int    `db:"def_end_char"`
	IsDefinition  bool   `db:"is_definition"`
	Documentation string `db:"documentation"`
	Metadata      string `db:"metadata"`
}

func symbolRow(s graph.SymbolState) symbolRowDTO {
	return symbolRowDTO{
		SymbolUID:     s.SymbolUID,
		FilePath:      s.FilePath,
		Language:      s.Language,
		Name:          s.Name,
		FQN:           s.FQN,
		Kind:          s.Kind,
		Signature:     s.Signature,
		Visibility:    s.Visibility,
		DefStartLine:  s.DefStartLine,
		DefStartChar:  s.DefStartChar,
		DefEndLine:    s.DefEndLine,
		DefEndChar:    s.DefEndChar,
		IsDefinition:  s.IsDefinition,
		Documentation: s.Documentation,
		Metadata:      s.Metadata,
	}
}

type edgeRowDTO struct {
	Relation        string  `db:"relation"`
	SourceSymbolUID string  `db:"source_symbol_uid"`
	TargetSymbolUID string  `db:"target_symbol_uid"`
	FilePath        string  `db:"file_path"`
	StartLine       int     `db:"start_line"`
	StartChar       int     `db:"start_char"`
	Confidence      float64 `db:"confidence"`
	Language        string  `db:"language"`
	Metadata        string  `db:"metadata"`
}

func edgeRow(e graph.Edge) edgeRowDTO {
	return edgeRowDTO{
		Relation:        string(e.Relation),
		SourceSymbolUID: e.SourceSymbolUID,
		TargetSymbolUID: e.TargetSymbolUID,
		FilePath:        e.FilePath,
		StartLine:       e.StartLine,
		StartChar:       e.StartChar,
		Confidence:      e.Confidence,
		Language:        e.Language,
		Metadata:        e.Metadata,
	}
}

func joinPlaceholders(ph []string) string {
	out := ph[0]
	for _, p := range ph[1:] {
		out += "," + p
	}
	return out
}
