package tables

import (
	"context"
	"fmt"

	"github.com/bluele/gcache"
	"go.uber.org/zap"
)

const schemaCacheSize = 1024

// Classified pairs a table reference with its schema.
type Classified struct {
	Ref    Ref
	Schema Schema
}

// Catalog classifies the tables of a Source and picks the table to use for each kind.
// Schemas are memoized per table id until Purge.
type Catalog struct {
	source  Source
	schemas gcache.Cache
	logger  *zap.SugaredLogger
}

// NewCatalog creates a catalog over source.
func NewCatalog(source Source, logger *zap.SugaredLogger) *Catalog {
	return &Catalog{
		source:  source,
		schemas: gcache.New(schemaCacheSize).LRU().Build(),
		logger:  logger,
	}
}

// Schema returns the memoized schema of ref, classifying it on first use. Tables whose
// header cannot be read are reported as unknown and not memoized.
func (c *Catalog) Schema(ctx context.Context, ref Ref) Schema {
	if v, err := c.schemas.Get(ref.ID); err == nil {
		return v.(Schema)
	}

	header, err := c.source.Header(ctx, ref)
	if err != nil {
		c.logger.Errorf("error identifying table type for %s: %v", ref.Name, err)
		return Schema{Kind: KindUnknown}
	}

	schema := Classify(header)
	if err := c.schemas.Set(ref.ID, schema); err != nil {
		c.logger.Debugf("unable to memoize schema for %s: %v", ref.Name, err)
	}
	return schema
}

// Tables lists and classifies every table in the source.
func (c *Catalog) Tables(ctx context.Context) ([]Classified, error) {
	refs, err := c.source.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Classified, 0, len(refs))
	for _, ref := range refs {
		out = append(out, Classified{Ref: ref, Schema: c.Schema(ctx, ref)})
	}
	return out, nil
}

// Best returns the most recently modified table of the given kind. Ties go to the
// table listed first.
func (c *Catalog) Best(ctx context.Context, kind Kind) (Classified, bool) {
	all, err := c.Tables(ctx)
	if err != nil {
		c.logger.Errorf("unable to list source tables: %v", err)
		return Classified{}, false
	}

	var best Classified
	found := 0
	for _, t := range all {
		if t.Schema.Kind != kind {
			continue
		}
		found++
		if found == 1 || t.Ref.ModTime.After(best.Ref.ModTime) {
			best = t
		}
	}
	if found > 1 {
		c.logger.Infof("multiple %s tables found, using most recent: %s", kind, best.Ref.Name)
	}
	return best, found > 0
}

// Load reads the rows of a classified table.
func (c *Catalog) Load(ctx context.Context, t Classified) (*Table, error) {
	table, err := c.source.Load(ctx, t.Ref)
	if err != nil {
		return nil, fmt.Errorf("loading %s table %s: %w", t.Schema.Kind, t.Ref.Name, err)
	}
	return table, nil
}

// Purge forgets every memoized schema.
func (c *Catalog) Purge() {
	c.schemas.Purge()
}

// Requirements reports whether the source holds a usable table combination and, if
// not, what is missing.
func (c *Catalog) Requirements(ctx context.Context) (bool, string) {
	all, err := c.Tables(ctx)
	if err != nil {
		return false, fmt.Sprintf("unable to list source tables: %v", err)
	}

	counts := map[Kind]int{}
	for _, t := range all {
		counts[t.Schema.Kind]++
	}

	switch {
	case counts[KindUnified] > 0:
		return true, ""
	case counts[KindRouteChart] > 0 && counts[KindCircuitData] > 0:
		return true, ""
	case counts[KindRouteChart] > 0:
		return false, "route chart table present but circuit data table is missing"
	case counts[KindCircuitData] > 0:
		return false, "circuit data table present but route chart table is missing"
	default:
		return false, "no valid tables found; provide a route chart and a circuit data table, or a unified table"
	}
}
