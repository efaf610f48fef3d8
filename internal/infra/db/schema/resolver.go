// Package schema resolves the logical fields used by the SQL stores to the
// physical tables and columns of the connected database.
//
// Column names have drifted across revisions of the database, so every query
// is written against logical names and the Resolver maps them once, at
// startup. The mapping is never refreshed; a schema change requires a restart.
package schema

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/bryanwahyu/leafcheck/internal/domain/apperrors"
)

// Catalog lists the columns of a table. An empty result means the table
// does not exist.
type Catalog interface {
	Columns(ctx context.Context, table string) ([]string, error)
}

// Resolver introspects the catalog on first use and caches the result for
// the life of the process. Failures are not cached.
type Resolver struct {
	catalog Catalog
	logger  *zap.Logger

	mu     sync.Mutex
	schema *Schema
}

func NewResolver(c Catalog, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{catalog: c, logger: logger.Named("schema")}
}

// Resolve returns the cached schema or introspects the database. A
// *SchemaMismatchError lists every unresolved required field.
func (r *Resolver) Resolve(ctx context.Context) (*Schema, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.schema != nil {
		return r.schema, nil
	}

	s, err := r.resolve(ctx)
	if err != nil {
		return nil, err
	}
	r.schema = s
	r.logger.Info("schema resolved",
		zap.String("analysis_table", s.Analysis.Name),
		zap.String("folder_mode", s.FolderMode.String()),
		zap.Bool("catalog", s.Catalog != nil))
	return s, nil
}

func (r *Resolver) resolve(ctx context.Context) (*Schema, error) {
	var missing []string
	resolved := make(map[string]*Table, len(tableSpecs))

	for _, spec := range tableSpecs {
		t, miss, err := r.resolveTable(ctx, spec)
		if err != nil {
			return nil, apperrors.Storage("introspect "+spec.logical, err)
		}
		missing = append(missing, miss...)
		if t != nil {
			resolved[spec.logical] = t
		}
	}

	s := &Schema{
		Catalog: resolved[TableCatalog],
		Saved:   resolved[TableSaved],
	}
	if t := resolved[TableAnalysis]; t != nil {
		s.Analysis = *t
	}
	if t := resolved[TableFolders]; t != nil {
		s.Folders = *t
	}

	switch {
	case s.Saved != nil:
		s.FolderMode = FolderAssociation
	case resolved[TableAnalysis] != nil && s.Analysis.Has(ColFolder):
		s.FolderMode = FolderDirect
	case resolved[TableAnalysis] != nil:
		missing = append(missing, TableAnalysis+"."+ColFolder+" (or a "+TableSaved+" table)")
	}

	if len(missing) > 0 {
		sort.Strings(missing)
		err := &apperrors.SchemaMismatchError{Missing: missing}
		r.logger.Error("schema mismatch", zap.Strings("missing", missing))
		return nil, err
	}
	return s, nil
}

func (r *Resolver) resolveTable(ctx context.Context, spec tableSpec) (*Table, []string, error) {
	for _, name := range spec.candidates {
		cols, err := r.catalog.Columns(ctx, name)
		if err != nil {
			return nil, nil, err
		}
		if len(cols) == 0 {
			continue
		}
		t, missing := matchColumns(name, cols, spec)
		return t, missing, nil
	}
	if spec.required {
		return nil, []string{spec.logical + " (table " + strings.Join(spec.candidates, " | ") + ")"}, nil
	}
	return nil, nil, nil
}

func matchColumns(table string, cols []string, spec tableSpec) (*Table, []string) {
	byLower := make(map[string]string, len(cols))
	for _, c := range cols {
		if !identRe.MatchString(c) {
			continue
		}
		if _, dup := byLower[strings.ToLower(c)]; !dup {
			byLower[strings.ToLower(c)] = c
		}
	}

	t := &Table{Logical: spec.logical, Name: table, cols: make(map[string]string, len(spec.columns))}
	var missing []string
	for _, col := range spec.columns {
		if phys := firstExisting(byLower, col.candidates); phys != "" {
			t.cols[col.logical] = phys
			continue
		}
		if col.required {
			missing = append(missing, spec.logical+"."+col.logical)
		}
	}
	return t, missing
}

func firstExisting(byLower map[string]string, candidates []string) string {
	for _, c := range candidates {
		if phys, ok := byLower[strings.ToLower(c)]; ok {
			return phys
		}
	}
	return ""
}

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// FolderMode says where the folder of an analysis lives.
type FolderMode int

const (
	// FolderDirect: a folder column on the analysis table.
	FolderDirect FolderMode = iota
	// FolderAssociation: a saved-results row per (owner, analysis).
	FolderAssociation
)

func (m FolderMode) String() string {
	if m == FolderAssociation {
		return "association"
	}
	return "direct"
}

// Table is one resolved table. Logical column names map to physical ones.
type Table struct {
	Logical string
	Name    string
	cols    map[string]string
}

// Col returns the physical column for logical, or "" when it is not present.
func (t *Table) Col(logical string) string {
	if t == nil {
		return ""
	}
	return t.cols[logical]
}

func (t *Table) Has(logical string) bool { return t.Col(logical) != "" }

// Columns returns a copy of the logical to physical mapping.
func (t *Table) Columns() map[string]string {
	out := make(map[string]string, len(t.cols))
	for k, v := range t.cols {
		out[k] = v
	}
	return out
}

// Schema is the immutable result of a resolution.
type Schema struct {
	Analysis   Table
	Folders    Table
	Catalog    *Table // nil when the database has no disease catalog
	Saved      *Table // set in FolderAssociation mode
	FolderMode FolderMode
}

// Describe renders the mapping, one "table.logical -> physical" line each.
func (s *Schema) Describe() string {
	var b strings.Builder
	fmt.Fprintf(&b, "folder mode: %s\n", s.FolderMode)
	for _, t := range []*Table{&s.Analysis, &s.Folders, s.Catalog, s.Saved} {
		if t == nil {
			continue
		}
		cols := t.Columns()
		keys := make([]string, 0, len(cols))
		for k := range cols {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "%s.%s -> %s.%s\n", t.Logical, k, t.Name, cols[k])
		}
	}
	return b.String()
}
