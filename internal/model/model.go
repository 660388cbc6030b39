// Package model holds the in-memory representation of a single database's
// structure: tables, columns, constraints, indexes, and (for dialects that
// have them) sequences, functions, and triggers. Extractors build these
// values; the comparison engine only ever reads them.
package model

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// DatabaseMetadata is the root of one extraction. It is built incrementally
// during extraction and is read-only thereafter.
type DatabaseMetadata struct {
	SchemaName    string               `yaml:"schema_name" json:"schema_name"`
	DatabaseType  string               `yaml:"database_type" json:"database_type"`
	ExtractedAt   time.Time            `yaml:"extracted_at" json:"extracted_at"`
	Tables        map[string]*Table    `yaml:"tables" json:"tables"`
	Sequences     map[string]*Sequence `yaml:"sequences,omitempty" json:"sequences,omitempty"`
	Functions     map[string]*Function `yaml:"functions,omitempty" json:"functions,omitempty"`
	Triggers      map[string]*Trigger  `yaml:"triggers,omitempty" json:"triggers,omitempty"`
	tableNamesCI  map[string]string    // lower(name) -> canonical name, for the uniqueness invariant
}

// New creates an empty DatabaseMetadata for the given dialect and schema.
func New(databaseType, schemaName string) *DatabaseMetadata {
	return &DatabaseMetadata{
		SchemaName:   schemaName,
		DatabaseType: databaseType,
		ExtractedAt:  time.Now(),
		Tables:       make(map[string]*Table),
		Sequences:    make(map[string]*Sequence),
		Functions:    make(map[string]*Function),
		Triggers:     make(map[string]*Trigger),
		tableNamesCI: make(map[string]string),
	}
}

// AddTable inserts a table, enforcing the case-insensitive name uniqueness
// invariant. A duplicate (case-insensitive) name is a programming error in
// the extractor, not a recoverable condition.
func (d *DatabaseMetadata) AddTable(t *Table) error {
	key := strings.ToLower(t.Name)
	if existing, ok := d.tableNamesCI[key]; ok {
		return fmt.Errorf("duplicate table name %q (case-insensitive clash with %q)", t.Name, existing)
	}
	if d.tableNamesCI == nil {
		d.tableNamesCI = make(map[string]string)
	}
	d.tableNamesCI[key] = t.Name
	d.Tables[t.Name] = t
	return nil
}

// TableNames returns all table names sorted lexicographically, for
// deterministic iteration.
func (d *DatabaseMetadata) TableNames() []string {
	names := make([]string, 0, len(d.Tables))
	for n := range d.Tables {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// TableByNameCI looks up a table by case-insensitive name.
func (d *DatabaseMetadata) TableByNameCI(name string) (*Table, bool) {
	lower := strings.ToLower(name)
	for n, t := range d.Tables {
		if strings.ToLower(n) == lower {
			return t, true
		}
	}
	return nil, false
}

// Table is one user table: an ordered column list and unordered
// constraint/index sets.
type Table struct {
	Name        string       `yaml:"name" json:"name"`
	Columns     []*Column    `yaml:"columns" json:"columns"`
	Constraints []Constraint `yaml:"constraints,omitempty" json:"constraints,omitempty"`
	Indexes     []*Index     `yaml:"indexes,omitempty" json:"indexes,omitempty"`

	Engine     string `yaml:"engine,omitempty" json:"engine,omitempty"`
	Collation  string `yaml:"collation,omitempty" json:"collation,omitempty"`
	Comment    string `yaml:"comment,omitempty" json:"comment,omitempty"`
	CreatedAt  *time.Time `yaml:"created_at,omitempty" json:"created_at,omitempty"`
	UpdatedAt  *time.Time `yaml:"updated_at,omitempty" json:"updated_at,omitempty"`
	RowEstimate int64     `yaml:"row_estimate,omitempty" json:"row_estimate,omitempty"`
}

// ColumnByNameCI looks up a column by case-insensitive name.
func (t *Table) ColumnByNameCI(name string) (*Column, bool) {
	lower := strings.ToLower(name)
	for _, c := range t.Columns {
		if strings.ToLower(c.Name) == lower {
			return c, true
		}
	}
	return nil, false
}

// ColumnNames returns every column name in the table, ordinal order.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// PrimaryKey returns the table's primary key constraint, if any.
func (t *Table) PrimaryKey() *PrimaryKeyConstraint {
	for _, c := range t.Constraints {
		if pk, ok := c.(*PrimaryKeyConstraint); ok {
			return pk
		}
	}
	return nil
}

// ForeignKeys returns every foreign key constraint on the table.
func (t *Table) ForeignKeys() []*ForeignKeyConstraint {
	var out []*ForeignKeyConstraint
	for _, c := range t.Constraints {
		if fk, ok := c.(*ForeignKeyConstraint); ok {
			out = append(out, fk)
		}
	}
	return out
}

// Validate checks the invariants spec.md §3 lists for a Table: at most one
// primary key, FK column lists are subsets of the table's columns. It does
// not check whether the referenced table exists (that's a validation
// warning, not a hard invariant — see internal/validate).
func (t *Table) Validate() error {
	pkCount := 0
	colSet := make(map[string]bool, len(t.Columns))
	for _, c := range t.Columns {
		colSet[strings.ToLower(c.Name)] = true
	}
	for _, c := range t.Constraints {
		if _, ok := c.(*PrimaryKeyConstraint); ok {
			pkCount++
			if pkCount > 1 {
				return fmt.Errorf("table %q has more than one primary key constraint", t.Name)
			}
		}
		for _, col := range c.ColumnNames() {
			if col == "" {
				continue
			}
			if !colSet[strings.ToLower(col)] {
				return fmt.Errorf("table %q: constraint %q references unknown column %q", t.Name, c.ConstraintName(), col)
			}
		}
	}
	return nil
}

// Column is one column of a table, preserving the native datatype string
// verbatim (no cross-dialect mapping — see internal/typenorm).
type Column struct {
	Name           string  `yaml:"name" json:"name"`
	DataType       string  `yaml:"data_type" json:"data_type"` // native, e.g. "NUMBER(10,2)" or "character varying(255)"
	Nullable       bool    `yaml:"nullable" json:"nullable"`
	DefaultValue   *string `yaml:"default_value,omitempty" json:"default_value,omitempty"`
	AutoIncrement  bool    `yaml:"auto_increment,omitempty" json:"auto_increment,omitempty"`
	Unsigned       bool    `yaml:"unsigned,omitempty" json:"unsigned,omitempty"`
	OrdinalPosition int    `yaml:"ordinal_position" json:"ordinal_position"` // 1-based

	Comment      string `yaml:"comment,omitempty" json:"comment,omitempty"`
	CharacterSet string `yaml:"character_set,omitempty" json:"character_set,omitempty"`
	Collation    string `yaml:"collation,omitempty" json:"collation,omitempty"`
}

// Sequence is a standalone sequence object (PostgreSQL, DB2).
type Sequence struct {
	Name      string `yaml:"name" json:"name"`
	Start     int64  `yaml:"start" json:"start"`
	Increment int64  `yaml:"increment" json:"increment"`
	MinValue  int64  `yaml:"min_value" json:"min_value"`
	MaxValue  int64  `yaml:"max_value" json:"max_value"`
	Cache     int64  `yaml:"cache" json:"cache"`
	Cycle     bool   `yaml:"cycle" json:"cycle"`
	Owner     string `yaml:"owner,omitempty" json:"owner,omitempty"`
}

// Function is a PostgreSQL function/procedure, keyed by name+argument
// signature (two functions may be overloaded by argument list).
type Function struct {
	Name             string `yaml:"name" json:"name"`
	Schema           string `yaml:"schema,omitempty" json:"schema,omitempty"`
	ReturnType       string `yaml:"return_type" json:"return_type"`
	Language         string `yaml:"language" json:"language"`
	Body             string `yaml:"body,omitempty" json:"body,omitempty"`
	ArgumentSignature string `yaml:"argument_signature" json:"argument_signature"`
	Volatility       string `yaml:"volatility,omitempty" json:"volatility,omitempty"` // IMMUTABLE|STABLE|VOLATILE
	Strict           bool   `yaml:"strict,omitempty" json:"strict,omitempty"`
	SecurityType     string `yaml:"security_type,omitempty" json:"security_type,omitempty"` // DEFINER|INVOKER
}

// Key returns the function's composite identity (name+argumentSignature),
// matching spec.md §3's "keyed by name+argumentSignature".
func (f *Function) Key() string {
	return f.Name + "(" + f.ArgumentSignature + ")"
}

// Trigger event flags, composable (spec.md §3: "possibly composite").
const (
	EventInsert = 1 << iota
	EventUpdate
	EventDelete
)

// Trigger is a table trigger (PostgreSQL, SQL Server).
type Trigger struct {
	Name          string `yaml:"name" json:"name"`
	Table         string `yaml:"table" json:"table"`
	Timing        string `yaml:"timing" json:"timing"` // BEFORE|AFTER|INSTEAD_OF
	Events        int    `yaml:"events" json:"events"` // bitmask of Event* flags
	Level         string `yaml:"level" json:"level"`   // ROW|STATEMENT
	TargetFunc    string `yaml:"target_function,omitempty" json:"target_function,omitempty"`
	WhenCondition string `yaml:"when_condition,omitempty" json:"when_condition,omitempty"`
	Body          string `yaml:"-" json:"-"` // raw body, never serialised; no extractor fills it (Oracle's auto-increment derivation reads trigger bodies directly)
}

// HasEvent reports whether the trigger fires on the given event flag.
func (t *Trigger) HasEvent(event int) bool {
	return t.Events&event != 0
}
