package app

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/chrissnell/circuitgrid/internal/tables"
	"github.com/chrissnell/circuitgrid/pkg/config"
)

func TestAnalysisConfig(t *testing.T) {
	cfg := config.Defaults()
	ac := AnalysisConfig(cfg)

	assert.Equal(t, 5000, ac.SamplingMinRows)
	assert.Equal(t, 7*24*time.Hour, ac.ChunkThreshold)
	assert.Equal(t, 3*24*time.Hour, ac.ChunkSize)
	assert.Equal(t, 20000, ac.Detail.LowDetailRows)
	assert.Equal(t, 3, ac.Detail.LowDetailDays)
	assert.Equal(t, 50, ac.Render.BatchSize)
	assert.Equal(t, 50000, ac.Render.GridMaxRows)
}

func TestNewSource(t *testing.T) {
	dir := t.TempDir()

	src, closer, err := NewSource(config.SourcesData{Backend: config.SourceCSV, UploadDir: dir})
	require.NoError(t, err)
	assert.Nil(t, closer)
	assert.IsType(t, &tables.DirSource{}, src)

	src, closer, err = NewSource(config.SourcesData{Backend: config.SourceSQLite, SQLitePath: filepath.Join(dir, "tables.db")})
	require.NoError(t, err)
	require.NotNil(t, closer)
	assert.IsType(t, &tables.SQLiteSource{}, src)
	assert.NoError(t, closer.Close())

	_, _, err = NewSource(config.SourcesData{Backend: "mongodb"})
	assert.Error(t, err)
}

func TestNewServiceOverUploads(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "chart.csv"), []byte("route_id,route_circuit\nR1,A-B\n"), 0o644))

	cfg := config.Defaults()
	cfg.Sources.UploadDir = dir

	service, closer, err := NewService(cfg, zap.NewNop().Sugar())
	require.NoError(t, err)
	assert.Nil(t, closer)

	st := service.Status(context.Background())
	assert.False(t, st.Ready)
	require.Len(t, st.Tables, 1)
	assert.Equal(t, tables.KindRouteChart, st.Tables[0].Kind)
}

type brokenProvider struct{ *config.YAMLProvider }

func (brokenProvider) GetRender() (*config.RenderData, error) {
	return nil, errors.New("render section unavailable")
}

func TestReport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	doc := "sources:\n  backend: sqlite\n  sqlite-path: tables.db\nserver:\n  port: 9090\n"
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	var out bytes.Buffer
	require.NoError(t, Report(&out, config.NewYAMLProvider(path)))
	for _, want := range []string{
		"Provider: read-only",
		"Backend: sqlite",
		"SQLite path: tables.db",
		"Sampling above 5000 rows, chunking windows over 168h into 72h chunks",
		"Low detail above 20000 rows or 3 days",
		"Listening on :9090 (TLS: false)",
	} {
		assert.Contains(t, out.String(), want)
	}

	broken := brokenProvider{config.NewYAMLProvider(path)}
	err := Report(&bytes.Buffer{}, broken)
	assert.ErrorContains(t, err, "reading render")

	err = Report(&bytes.Buffer{}, config.NewYAMLProvider(filepath.Join(t.TempDir(), "missing.yaml")))
	assert.ErrorContains(t, err, "reading sources")
}
