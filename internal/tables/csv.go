package tables

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// DirSource reads *.csv files from a single directory, typically the upload folder.
type DirSource struct {
	dir string
}

// NewDirSource creates a CSV source rooted at dir. The directory does not have to exist yet.
func NewDirSource(dir string) *DirSource {
	return &DirSource{dir: dir}
}

// List returns every CSV file in the directory, sorted by name.
func (d *DirSource) List(ctx context.Context) ([]Ref, error) {
	entries, err := os.ReadDir(d.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading table directory %s: %w", d.dir, err)
	}

	var refs []Ref
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".csv") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		refs = append(refs, Ref{
			ID:      filepath.Join(d.dir, entry.Name()),
			Name:    entry.Name(),
			ModTime: info.ModTime(),
		})
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].Name < refs[j].Name })
	return refs, nil
}

// Header reads only the first record of the file.
func (d *DirSource) Header(ctx context.Context, ref Ref) ([]string, error) {
	f, err := os.Open(ref.ID)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	header, err := newCSVReader(f).Read()
	if err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("reading header of %s: %w", ref.Name, err)
	}
	return cleanHeader(header), nil
}

// Load reads the whole file.
func (d *DirSource) Load(ctx context.Context, ref Ref) (*Table, error) {
	f, err := os.Open(ref.ID)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return ReadCSV(ref, f)
}

// ReadCSV parses CSV content into a Table. Short rows are kept; missing cells read as "".
func ReadCSV(ref Ref, r io.Reader) (*Table, error) {
	records, err := newCSVReader(r).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", ref.Name, err)
	}
	t := &Table{Ref: ref}
	if len(records) == 0 {
		return t, nil
	}
	t.Header = cleanHeader(records[0])
	t.Rows = records[1:]
	return t, nil
}

func newCSVReader(r io.Reader) *csv.Reader {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true
	return cr
}

func cleanHeader(header []string) []string {
	out := make([]string, len(header))
	for i, h := range header {
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		out[i] = strings.TrimSpace(h)
	}
	return out
}
