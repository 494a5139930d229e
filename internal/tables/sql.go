package tables

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	_ "modernc.org/sqlite"

	"github.com/chrissnell/circuitgrid/internal/log"
)

// SQLiteSource reads source tables from an SQLite database file.
type SQLiteSource struct {
	db     *sql.DB
	path   string
	tables []string
}

// NewSQLiteSource opens path. When tables is empty every user table is listed.
func NewSQLiteSource(path string, tables []string) (*SQLiteSource, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping SQLite database: %w", err)
	}

	return &SQLiteSource{db: db, path: path, tables: tables}, nil
}

// NewSQLiteSourceFromDB wraps an already open handle.
func NewSQLiteSourceFromDB(db *sql.DB, path string, tables []string) *SQLiteSource {
	return &SQLiteSource{db: db, path: path, tables: tables}
}

// List returns the configured tables, or all user tables. Every table shares the
// database file's modification time.
func (s *SQLiteSource) List(ctx context.Context) ([]Ref, error) {
	names := s.tables
	if len(names) == 0 {
		rows, err := s.db.QueryContext(ctx, `SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`)
		if err != nil {
			return nil, fmt.Errorf("failed to list SQLite tables: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var name string
			if err := rows.Scan(&name); err != nil {
				return nil, err
			}
			names = append(names, name)
		}
		if err := rows.Err(); err != nil {
			return nil, err
		}
	}

	var modTime time.Time
	if info, err := os.Stat(s.path); err == nil {
		modTime = info.ModTime()
	}
	return namedRefs(names, modTime), nil
}

// Header returns the table's column names without reading rows.
func (s *SQLiteSource) Header(ctx context.Context, ref Ref) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT * FROM "+quoteIdent(ref.ID)+" LIMIT 0")
	if err != nil {
		return nil, fmt.Errorf("failed to read columns of %s: %w", ref.ID, err)
	}
	defer rows.Close()
	return rows.Columns()
}

// Load reads every row of the table.
func (s *SQLiteSource) Load(ctx context.Context, ref Ref) (*Table, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT * FROM "+quoteIdent(ref.ID))
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", ref.ID, err)
	}
	defer rows.Close()
	return scanTable(ref, rows)
}

// Close releases the database handle.
func (s *SQLiteSource) Close() error {
	return s.db.Close()
}

// PostgresSource reads source tables from Postgres through gorm.
type PostgresSource struct {
	db     *gorm.DB
	tables []string
}

// NewPostgresSource connects with the given DSN. When tables is empty every table in
// the current schema is listed.
func NewPostgresSource(dsn string, tables []string) (*PostgresSource, error) {
	dbLogger := logger.New(
		zap.NewStdLog(log.GetZapLogger()),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	log.Info("connecting to Postgres table source...")
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: dbLogger})
	if err != nil {
		return nil, fmt.Errorf("unable to connect to Postgres: %w", err)
	}

	return &PostgresSource{db: db, tables: tables}, nil
}

// List returns the configured tables, or all tables gorm's migrator reports.
func (p *PostgresSource) List(ctx context.Context) ([]Ref, error) {
	names := p.tables
	if len(names) == 0 {
		var err error
		names, err = p.db.WithContext(ctx).Migrator().GetTables()
		if err != nil {
			return nil, fmt.Errorf("failed to list Postgres tables: %w", err)
		}
		sort.Strings(names)
	}
	return namedRefs(names, time.Time{}), nil
}

// Header returns the table's column names without reading rows.
func (p *PostgresSource) Header(ctx context.Context, ref Ref) ([]string, error) {
	rows, err := p.db.WithContext(ctx).Table(ref.ID).Limit(0).Rows()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns of %s: %w", ref.ID, err)
	}
	defer rows.Close()
	return rows.Columns()
}

// Load reads every row of the table.
func (p *PostgresSource) Load(ctx context.Context, ref Ref) (*Table, error) {
	rows, err := p.db.WithContext(ctx).Table(ref.ID).Rows()
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", ref.ID, err)
	}
	defer rows.Close()
	return scanTable(ref, rows)
}

// Close releases the underlying connection pool.
func (p *PostgresSource) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func namedRefs(names []string, modTime time.Time) []Ref {
	refs := make([]Ref, 0, len(names))
	for _, name := range names {
		refs = append(refs, Ref{ID: name, Name: name, ModTime: modTime})
	}
	return refs
}

func scanTable(ref Ref, rows *sql.Rows) (*Table, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	t := &Table{Ref: ref, Header: cols}
	values := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}

	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row of %s: %w", ref.ID, err)
		}
		row := make([]string, len(cols))
		for i, v := range values {
			row[i] = stringify(v)
		}
		t.Rows = append(t.Rows, row)
	}
	return t, rows.Err()
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	case time.Time:
		return t.Format(time.RFC3339Nano)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
