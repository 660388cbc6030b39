package model

import "strings"

// Constraint is a sum type over the four constraint kinds spec.md §9 calls
// for: a table's constraints are held as a slice of this interface rather
// than four parallel, often-empty slices.
type Constraint interface {
	// ConstraintName returns the constraint's native name.
	ConstraintName() string
	// ColumnNames returns the columns the constraint is defined over, in
	// declared order.
	ColumnNames() []string
	// Signature returns the canonical signature computed by
	// internal/signature; empty until assigned.
	Signature() string
	// SetSignature assigns the canonical signature.
	SetSignature(sig string)
	// Kind identifies the constraint variant for switch-free dispatch where
	// only the kind matters.
	Kind() ConstraintKind
}

// ConstraintKind enumerates the constraint variants.
type ConstraintKind int

const (
	KindPrimaryKey ConstraintKind = iota
	KindForeignKey
	KindUnique
	KindCheck
)

func (k ConstraintKind) String() string {
	switch k {
	case KindPrimaryKey:
		return "PRIMARY KEY"
	case KindForeignKey:
		return "FOREIGN KEY"
	case KindUnique:
		return "UNIQUE"
	case KindCheck:
		return "CHECK"
	default:
		return "UNKNOWN"
	}
}

// base carries the fields every constraint variant shares.
type base struct {
	Name string `yaml:"name" json:"name"`
	Sig  string `yaml:"signature,omitempty" json:"signature,omitempty"`
}

func (b *base) ConstraintName() string   { return b.Name }
func (b *base) Signature() string        { return b.Sig }
func (b *base) SetSignature(sig string)  { b.Sig = sig }

// PrimaryKeyConstraint is a table's primary key (at most one per table).
type PrimaryKeyConstraint struct {
	base    `yaml:",inline"`
	Columns []string `yaml:"columns" json:"columns"`
}

func (c *PrimaryKeyConstraint) ColumnNames() []string  { return c.Columns }
func (c *PrimaryKeyConstraint) Kind() ConstraintKind    { return KindPrimaryKey }

// ForeignKeyConstraint references another table's columns.
type ForeignKeyConstraint struct {
	base              `yaml:",inline"`
	Columns           []string `yaml:"columns" json:"columns"`
	ReferencedTable   string   `yaml:"referenced_table" json:"referenced_table"`
	ReferencedColumns []string `yaml:"referenced_columns" json:"referenced_columns"`
	OnDelete          string   `yaml:"on_delete,omitempty" json:"on_delete,omitempty"` // CASCADE|SET NULL|RESTRICT|NO ACTION|SET DEFAULT
	OnUpdate          string   `yaml:"on_update,omitempty" json:"on_update,omitempty"`
}

func (c *ForeignKeyConstraint) ColumnNames() []string { return c.Columns }
func (c *ForeignKeyConstraint) Kind() ConstraintKind   { return KindForeignKey }

// Arity reports whether the local and referenced column lists have equal
// length, the invariant spec.md §3 requires of every foreign key.
func (c *ForeignKeyConstraint) Arity() bool {
	return len(c.Columns) == len(c.ReferencedColumns)
}

// UniqueConstraint is a named uniqueness constraint over one or more columns.
type UniqueConstraint struct {
	base    `yaml:",inline"`
	Columns []string `yaml:"columns" json:"columns"`
}

func (c *UniqueConstraint) ColumnNames() []string { return c.Columns }
func (c *UniqueConstraint) Kind() ConstraintKind   { return KindUnique }

// CheckConstraint holds a raw CHECK clause, extracted verbatim and never
// semantically parsed (spec.md §9 Open Question 1: clause-text comparison is
// deliberately not implemented — see DESIGN.md).
type CheckConstraint struct {
	base   `yaml:",inline"`
	Clause string `yaml:"clause" json:"clause"`
}

// ColumnNames returns nil: a CHECK constraint may reference zero or more
// columns embedded in its clause text, which is not parsed.
func (c *CheckConstraint) ColumnNames() []string { return nil }
func (c *CheckConstraint) Kind() ConstraintKind    { return KindCheck }

var (
	_ Constraint = (*PrimaryKeyConstraint)(nil)
	_ Constraint = (*ForeignKeyConstraint)(nil)
	_ Constraint = (*UniqueConstraint)(nil)
	_ Constraint = (*CheckConstraint)(nil)
)

// NormalizedColumnNames returns a lower-cased copy of cols. internal/signature
// does not use it: canonical signatures upper-case column names themselves.
func NormalizedColumnNames(cols []string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = strings.ToLower(c)
	}
	return out
}
