package app

import (
	"fmt"
	"io"

	"github.com/chrissnell/circuitgrid/pkg/config"
)

// Report writes a summary of each configuration section read from p.
func Report(w io.Writer, p config.ConfigProvider) error {
	sources, err := p.GetSources()
	if err != nil {
		return fmt.Errorf("reading sources: %w", err)
	}
	analysis, err := p.GetAnalysis()
	if err != nil {
		return fmt.Errorf("reading analysis: %w", err)
	}
	render, err := p.GetRender()
	if err != nil {
		return fmt.Errorf("reading render: %w", err)
	}
	server, err := p.GetServer()
	if err != nil {
		return fmt.Errorf("reading server: %w", err)
	}

	mode := "read-write"
	if p.IsReadOnly() {
		mode = "read-only"
	}
	fmt.Fprintf(w, "Provider: %s\n", mode)

	fmt.Fprintln(w, "\nSources:")
	fmt.Fprintf(w, "  Backend: %s\n", sources.Backend)
	switch sources.Backend {
	case config.SourceCSV:
		fmt.Fprintf(w, "  Upload dir: %s\n", sources.UploadDir)
	case config.SourceSQLite:
		fmt.Fprintf(w, "  SQLite path: %s\n", sources.SQLitePath)
	case config.SourcePostgres:
		fmt.Fprintln(w, "  DSN: (set)")
	}
	if len(sources.Tables) > 0 {
		fmt.Fprintf(w, "  Tables: %v\n", sources.Tables)
	}

	fmt.Fprintln(w, "\nAnalysis:")
	fmt.Fprintf(w, "  Sampling above %d rows, chunking windows over %dh into %dh chunks\n",
		analysis.SamplingMinRows, analysis.ChunkThresholdHours, analysis.ChunkSizeHours)

	fmt.Fprintln(w, "\nRender:")
	fmt.Fprintf(w, "  Low detail above %d rows or %d days, grid hidden above %d rows\n",
		render.LowDetailRows, render.LowDetailDays, render.GridMaxRows)

	fmt.Fprintln(w, "\nServer:")
	fmt.Fprintf(w, "  Listening on %s:%d (TLS: %t)\n", server.ListenAddr, server.Port, server.Cert != "")
	return nil
}
