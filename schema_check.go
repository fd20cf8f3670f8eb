package gpameta

import (
	"fmt"
	"sort"
	"strings"
)

// =====================================
// Expected Schema
// =====================================

// TableExpectation lists the columns one table must provide for the mapped entities
type TableExpectation struct {
	Table    string   `json:"table"`
	Entities []string `json:"entities"`
	Columns  []string `json:"columns"`
}

// ExpectedTables derives every table and column the source set maps to:
// primary tables, secondary tables, join columns and collection tables.
// Inherited attributes land in the subclass table unless the hierarchy root
// declares joined or single-table inheritance.
func (set *SourceSet) ExpectedTables() ([]TableExpectation, error) {
	acc := newTableAccumulator()
	for _, src := range set.sources {
		lineage := set.Lineage(src)
		root := lineage[len(lineage)-1]
		table := src.PrimaryTable().QualifiedName()

		var owners []*EntitySource
		switch root.class.Inheritance {
		case InheritanceJoined:
			owners = []*EntitySource{src}
			for _, pk := range set.identifierColumns(root) {
				acc.add(table, src.EntityName(), pk)
			}
		case InheritanceSingleTable:
			table = root.PrimaryTable().QualifiedName()
			owners = lineage
		default:
			owners = lineage
		}
		acc.touch(table, src.EntityName())

		for _, owner := range owners {
			sources, err := owner.AttributeSources()
			if err != nil {
				return nil, err
			}
			if err := acc.addSources(table, src.EntityName(), sources); err != nil {
				return nil, err
			}
		}
		for _, st := range src.SecondaryTables() {
			name := st.Table.QualifiedName()
			acc.touch(name, src.EntityName())
			for _, c := range st.JoinColumns {
				acc.add(name, src.EntityName(), c)
			}
		}
	}
	return acc.result(), nil
}

func (set *SourceSet) identifierColumns(src *EntitySource) []string {
	var cols []string
	for _, attr := range src.class.SimpleAttributes {
		if attr.ID {
			cols = append(cols, attr.Column.Name)
		}
	}
	return cols
}

type tableAccumulator struct {
	order  []string
	tables map[string]*TableExpectation
	seen   map[string]map[string]bool
}

func newTableAccumulator() *tableAccumulator {
	return &tableAccumulator{
		tables: make(map[string]*TableExpectation),
		seen:   make(map[string]map[string]bool),
	}
}

func (a *tableAccumulator) touch(table, entity string) *TableExpectation {
	t, ok := a.tables[table]
	if !ok {
		t = &TableExpectation{Table: table}
		a.tables[table] = t
		a.seen[table] = make(map[string]bool)
		a.order = append(a.order, table)
	}
	for _, e := range t.Entities {
		if e == entity {
			return t
		}
	}
	t.Entities = append(t.Entities, entity)
	return t
}

func (a *tableAccumulator) add(table, entity, column string) {
	if column == "" {
		return
	}
	t := a.touch(table, entity)
	if a.seen[table][column] {
		return
	}
	a.seen[table][column] = true
	t.Columns = append(t.Columns, column)
}

func (a *tableAccumulator) addColumns(table, entity string, columns []ColumnSource) {
	for _, c := range columns {
		target := table
		if c.Table != "" {
			target = c.Table
		}
		a.add(target, entity, c.Name)
	}
}

func (a *tableAccumulator) addSources(table, entity string, sources []AttributeSource) error {
	for _, source := range sources {
		switch s := source.(type) {
		case *SingularAttributeSource:
			a.addColumns(table, entity, s.Columns())
		case *ToOneAttributeSource:
			a.addColumns(table, entity, s.Columns())
		case *ComponentAttributeSource:
			nested, err := s.AttributeSources()
			if err != nil {
				return err
			}
			if err := a.addSources(table, entity, nested); err != nil {
				return err
			}
		case *PluralAttributeSource:
			collection := s.CollectionTable().QualifiedName()
			if collection == "" {
				continue
			}
			a.touch(collection, entity)
			for _, key := range s.KeyColumns() {
				a.add(collection, entity, key)
			}
			if order, ok := s.OrderColumn().Get(); ok {
				a.add(collection, entity, order)
			}
			elements, err := s.ElementSources()
			if err != nil {
				return err
			}
			if err := a.addSources(collection, entity, elements); err != nil {
				return err
			}
		}
	}
	return nil
}

func (a *tableAccumulator) result() []TableExpectation {
	out := make([]TableExpectation, 0, len(a.order))
	for _, name := range a.order {
		out = append(out, *a.tables[name])
	}
	return out
}

// =====================================
// Validation Report
// =====================================

// ProblemKind classifies a schema validation problem
type ProblemKind string

const (
	ProblemMissingTable  ProblemKind = "missing_table"
	ProblemMissingColumn ProblemKind = "missing_column"
)

// ValidationProblem is one mismatch between mapped metadata and the database
type ValidationProblem struct {
	Kind     ProblemKind
	Table    string
	Column   string
	Entities []string
}

func (p ValidationProblem) String() string {
	if p.Kind == ProblemMissingTable {
		return fmt.Sprintf("missing table %s (%s)", p.Table, strings.Join(p.Entities, ", "))
	}
	return fmt.Sprintf("missing column %s.%s (%s)", p.Table, p.Column, strings.Join(p.Entities, ", "))
}

// ValidationReport collects the problems found by a schema validator
type ValidationReport struct {
	Tables   int
	Columns  int
	Problems []ValidationProblem
}

// OK reports whether no problem was found
func (r *ValidationReport) OK() bool { return len(r.Problems) == 0 }

// MissingTables returns the sorted names of missing tables
func (r *ValidationReport) MissingTables() []string {
	var tables []string
	for _, p := range r.Problems {
		if p.Kind == ProblemMissingTable {
			tables = append(tables, p.Table)
		}
	}
	sort.Strings(tables)
	return tables
}

// MissingColumns returns the sorted "table.column" names of missing columns
func (r *ValidationReport) MissingColumns() []string {
	var columns []string
	for _, p := range r.Problems {
		if p.Kind == ProblemMissingColumn {
			columns = append(columns, p.Table+"."+p.Column)
		}
	}
	sort.Strings(columns)
	return columns
}

// TableInspector answers existence questions about a live schema
type TableInspector interface {
	HasTable(table string) (bool, error)
	HasColumn(table, column string) (bool, error)
}

// CheckTables compares the expected tables against a live schema
func CheckTables(expected []TableExpectation, inspector TableInspector) (*ValidationReport, error) {
	report := &ValidationReport{}
	for _, t := range expected {
		report.Tables++
		ok, err := inspector.HasTable(t.Table)
		if err != nil {
			return nil, err
		}
		if !ok {
			report.Problems = append(report.Problems, ValidationProblem{
				Kind:     ProblemMissingTable,
				Table:    t.Table,
				Entities: t.Entities,
			})
			continue
		}
		for _, c := range t.Columns {
			report.Columns++
			ok, err := inspector.HasColumn(t.Table, c)
			if err != nil {
				return nil, err
			}
			if !ok {
				report.Problems = append(report.Problems, ValidationProblem{
					Kind:     ProblemMissingColumn,
					Table:    t.Table,
					Column:   c,
					Entities: t.Entities,
				})
			}
		}
	}
	return report, nil
}

// =====================================
// Schema Drift
// =====================================

// SchemaDiff lists how one set of expected tables differs from another
type SchemaDiff struct {
	AddedTables    []string
	RemovedTables  []string
	AddedColumns   []string // "table.column"
	RemovedColumns []string // "table.column"
}

// Empty reports whether both sides expect the same tables and columns
func (d SchemaDiff) Empty() bool {
	return len(d.AddedTables)+len(d.RemovedTables)+len(d.AddedColumns)+len(d.RemovedColumns) == 0
}

// DiffTables compares a previous expectation against the current one.
// Columns of added or removed tables are not listed separately.
func DiffTables(previous, current []TableExpectation) SchemaDiff {
	before := columnSets(previous)
	after := columnSets(current)

	var diff SchemaDiff
	for table, cols := range after {
		old, ok := before[table]
		if !ok {
			diff.AddedTables = append(diff.AddedTables, table)
			continue
		}
		for c := range cols {
			if !old[c] {
				diff.AddedColumns = append(diff.AddedColumns, table+"."+c)
			}
		}
	}
	for table, cols := range before {
		now, ok := after[table]
		if !ok {
			diff.RemovedTables = append(diff.RemovedTables, table)
			continue
		}
		for c := range cols {
			if !now[c] {
				diff.RemovedColumns = append(diff.RemovedColumns, table+"."+c)
			}
		}
	}
	sort.Strings(diff.AddedTables)
	sort.Strings(diff.RemovedTables)
	sort.Strings(diff.AddedColumns)
	sort.Strings(diff.RemovedColumns)
	return diff
}

func columnSets(tables []TableExpectation) map[string]map[string]bool {
	sets := make(map[string]map[string]bool, len(tables))
	for _, t := range tables {
		cols, ok := sets[t.Table]
		if !ok {
			cols = make(map[string]bool, len(t.Columns))
			sets[t.Table] = cols
		}
		for _, c := range t.Columns {
			cols[c] = true
		}
	}
	return sets
}
