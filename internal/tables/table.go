// Package tables discovers, classifies and loads the source tables the movement
// pipeline reads: route charts, circuit data and unified tables. Tables can come from
// a directory of CSV uploads, an SQLite file or a Postgres database.
package tables

import (
	"context"
	"time"
)

// Ref identifies a table within a Source without loading its rows.
type Ref struct {
	// ID is unique within the source: a file path or a table name.
	ID      string
	Name    string
	ModTime time.Time
}

// Table is a fully loaded source table. Cells are kept as trimmed-on-read text.
type Table struct {
	Ref    Ref
	Header []string
	Rows   [][]string
}

// Source lists and reads tables from one backend.
type Source interface {
	List(ctx context.Context) ([]Ref, error)
	Header(ctx context.Context, ref Ref) ([]string, error)
	Load(ctx context.Context, ref Ref) (*Table, error)
}
