package tables

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func writeCSV(t *testing.T, dir, name, content string, mod time.Time) {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	require.NoError(t, os.Chtimes(path, mod, mod))
}

func TestCatalogRequirements(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	chart := "route_id,route_circuit\nR1,A-B-C\n"
	events := "circuit_name,down_timestamp,up_timestamp\nA,2024-01-01 08:00:00,2024-01-01 08:01:00\n"
	unified := "route_id,circuit_name,down_timestamp,up_timestamp\nR1,A,2024-01-01 08:00:00,2024-01-01 08:01:00\n"

	tests := []struct {
		name    string
		files   map[string]string
		ok      bool
		message string
	}{
		{name: "empty directory", files: nil, ok: false, message: "no valid tables"},
		{name: "chart only", files: map[string]string{"chart.csv": chart}, ok: false, message: "circuit data table is missing"},
		{name: "events only", files: map[string]string{"events.csv": events}, ok: false, message: "route chart table is missing"},
		{name: "split pair", files: map[string]string{"chart.csv": chart, "events.csv": events}, ok: true},
		{name: "unified alone", files: map[string]string{"all.csv": unified}, ok: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			for name, content := range tt.files {
				writeCSV(t, dir, name, content, base)
			}
			c := NewCatalog(NewDirSource(dir), zap.NewNop().Sugar())
			ok, msg := c.Requirements(context.Background())
			assert.Equal(t, tt.ok, ok)
			if tt.message != "" {
				assert.Contains(t, msg, tt.message)
			}
		})
	}
}

func TestCatalogBestPicksNewest(t *testing.T) {
	dir := t.TempDir()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	writeCSV(t, dir, "a_chart.csv", "route_id,route_circuit\nR1,A-B\n", base.Add(time.Hour))
	writeCSV(t, dir, "b_chart.csv", "route_id,route_circuit\nR1,X-Y\n", base)
	writeCSV(t, dir, "notes.txt", "ignored", base)

	c := NewCatalog(NewDirSource(dir), zap.NewNop().Sugar())
	best, ok := c.Best(context.Background(), KindRouteChart)
	require.True(t, ok)
	assert.Equal(t, "a_chart.csv", best.Ref.Name)

	table, err := c.Load(context.Background(), best)
	require.NoError(t, err)
	rows := best.Schema.RouteChartRows(table)
	require.Len(t, rows, 1)
	assert.Equal(t, "A-B", rows[0].Chain)

	_, ok = c.Best(context.Background(), KindUnified)
	assert.False(t, ok)
}

func TestCatalogPurgeReclassifies(t *testing.T) {
	dir := t.TempDir()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	writeCSV(t, dir, "data.csv", "route_id,route_circuit\nR1,A-B\n", base)

	ctx := context.Background()
	c := NewCatalog(NewDirSource(dir), zap.NewNop().Sugar())
	refs, err := NewDirSource(dir).List(ctx)
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, KindRouteChart, c.Schema(ctx, refs[0]).Kind)

	writeCSV(t, dir, "data.csv", "circuit,down_timestamp,up_timestamp\nA,x,y\n", base)
	assert.Equal(t, KindRouteChart, c.Schema(ctx, refs[0]).Kind, "schema should stay memoized until purge")

	c.Purge()
	assert.Equal(t, KindCircuitData, c.Schema(ctx, refs[0]).Kind)
}

func TestSQLiteSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "source.db")
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()

	stmts := []string{
		`CREATE TABLE routes (route_id TEXT, route_name TEXT, route_circuit TEXT)`,
		`INSERT INTO routes VALUES ('007', 'Depot to Platform 1', 'A - B - C')`,
		`CREATE TABLE occupancy (circuit_name TEXT, down_timestamp TEXT, up_timestamp TEXT, movement_id INTEGER, distance REAL)`,
		`INSERT INTO occupancy VALUES ('A', '2024-01-01 08:00:00', '2024-01-01 08:01:00', 12, 150.5)`,
		`INSERT INTO occupancy VALUES ('B', '2024-01-01 08:01:00', NULL, 12, NULL)`,
	}
	for _, stmt := range stmts {
		_, err := db.Exec(stmt)
		require.NoError(t, err)
	}

	src := NewSQLiteSourceFromDB(db, path, nil)
	c := NewCatalog(src, zap.NewNop().Sugar())
	ctx := context.Background()

	ok, msg := c.Requirements(ctx)
	require.True(t, ok, msg)

	chart, ok := c.Best(ctx, KindRouteChart)
	require.True(t, ok)
	assert.Equal(t, "routes", chart.Ref.Name)

	events, ok := c.Best(ctx, KindCircuitData)
	require.True(t, ok)
	table, err := c.Load(ctx, events)
	require.NoError(t, err)

	rows := events.Schema.EventRows(table)
	require.Len(t, rows, 2)
	assert.Equal(t, "12", rows[0].MovementID)
	assert.Equal(t, "150.5", rows[0].Distance)
	assert.Equal(t, "", rows[1].Up)
}
