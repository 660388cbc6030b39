package model

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// LoadYAML reads a DatabaseMetadata from a YAML file, as produced by the
// `discover` command.
func LoadYAML(path string) (*DatabaseMetadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading metadata file: %w", err)
	}
	d := &DatabaseMetadata{}
	if err := yaml.Unmarshal(data, d); err != nil {
		return nil, fmt.Errorf("parsing metadata: %w", err)
	}
	d.tableNamesCI = make(map[string]string, len(d.Tables))
	for name := range d.Tables {
		d.tableNamesCI[toLower(name)] = name
	}
	return d, nil
}

// WriteYAML writes the metadata to a YAML file at the given path.
func (d *DatabaseMetadata) WriteYAML(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	data, err := yaml.Marshal(d)
	if err != nil {
		return fmt.Errorf("marshaling metadata: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// ToYAML returns the metadata as a YAML byte slice.
func (d *DatabaseMetadata) ToYAML() ([]byte, error) {
	return yaml.Marshal(d)
}

// Summary returns a human-readable one-line summary, in the teacher's
// Summary() idiom.
func (d *DatabaseMetadata) Summary() string {
	var cols, constraints, indexes int
	for _, t := range d.Tables {
		cols += len(t.Columns)
		constraints += len(t.Constraints)
		indexes += len(t.Indexes)
	}
	return fmt.Sprintf(
		"%s schema %q: %d tables, %d columns, %d constraints, %d indexes, %d sequences, %d functions, %d triggers",
		d.DatabaseType, d.SchemaName, len(d.Tables), cols, constraints, indexes,
		len(d.Sequences), len(d.Functions), len(d.Triggers),
	)
}

func toLower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

// constraintEnvelope is the on-disk representation of a Constraint: a kind
// discriminator plus the union of every variant's fields. yaml.v3 cannot
// marshal/unmarshal into an interface slice directly, so Table carries a
// custom MarshalYAML/UnmarshalYAML pair that goes through this envelope.
type constraintEnvelope struct {
	Kind              string   `yaml:"kind"`
	Name              string   `yaml:"name"`
	Columns           []string `yaml:"columns,omitempty"`
	ReferencedTable   string   `yaml:"referenced_table,omitempty"`
	ReferencedColumns []string `yaml:"referenced_columns,omitempty"`
	OnDelete          string   `yaml:"on_delete,omitempty"`
	OnUpdate          string   `yaml:"on_update,omitempty"`
	Clause            string   `yaml:"clause,omitempty"`
	Signature         string   `yaml:"signature,omitempty"`
}

func toEnvelope(c Constraint) constraintEnvelope {
	e := constraintEnvelope{Kind: c.Kind().String(), Name: c.ConstraintName(), Signature: c.Signature()}
	switch v := c.(type) {
	case *PrimaryKeyConstraint:
		e.Columns = v.Columns
	case *ForeignKeyConstraint:
		e.Columns = v.Columns
		e.ReferencedTable = v.ReferencedTable
		e.ReferencedColumns = v.ReferencedColumns
		e.OnDelete = v.OnDelete
		e.OnUpdate = v.OnUpdate
	case *UniqueConstraint:
		e.Columns = v.Columns
	case *CheckConstraint:
		e.Clause = v.Clause
	}
	return e
}

func fromEnvelope(e constraintEnvelope) (Constraint, error) {
	b := base{Name: e.Name, Sig: e.Signature}
	switch e.Kind {
	case KindPrimaryKey.String():
		return &PrimaryKeyConstraint{base: b, Columns: e.Columns}, nil
	case KindForeignKey.String():
		return &ForeignKeyConstraint{
			base:              b,
			Columns:           e.Columns,
			ReferencedTable:   e.ReferencedTable,
			ReferencedColumns: e.ReferencedColumns,
			OnDelete:          e.OnDelete,
			OnUpdate:          e.OnUpdate,
		}, nil
	case KindUnique.String():
		return &UniqueConstraint{base: b, Columns: e.Columns}, nil
	case KindCheck.String():
		return &CheckConstraint{base: b, Clause: e.Clause}, nil
	default:
		return nil, fmt.Errorf("unknown constraint kind %q for %q", e.Kind, e.Name)
	}
}

// tableYAML mirrors Table but with a marshalable Constraints field; used as
// the intermediate shape for (Un)MarshalYAML.
type tableYAML struct {
	Name        string                `yaml:"name"`
	Columns     []*Column             `yaml:"columns"`
	Constraints []constraintEnvelope  `yaml:"constraints,omitempty"`
	Indexes     []*Index              `yaml:"indexes,omitempty"`
	Engine      string                `yaml:"engine,omitempty"`
	Collation   string                `yaml:"collation,omitempty"`
	Comment     string                `yaml:"comment,omitempty"`
	RowEstimate int64                 `yaml:"row_estimate,omitempty"`
}

// MarshalYAML implements yaml.Marshaler.
func (t *Table) MarshalYAML() (interface{}, error) {
	y := tableYAML{
		Name:        t.Name,
		Columns:     t.Columns,
		Indexes:     t.Indexes,
		Engine:      t.Engine,
		Collation:   t.Collation,
		Comment:     t.Comment,
		RowEstimate: t.RowEstimate,
	}
	for _, c := range t.Constraints {
		y.Constraints = append(y.Constraints, toEnvelope(c))
	}
	return y, nil
}

// UnmarshalYAML implements yaml.Unmarshaler (yaml.v3 node-based form).
func (t *Table) UnmarshalYAML(value *yaml.Node) error {
	var y tableYAML
	if err := value.Decode(&y); err != nil {
		return err
	}
	t.Name = y.Name
	t.Columns = y.Columns
	t.Indexes = y.Indexes
	t.Engine = y.Engine
	t.Collation = y.Collation
	t.Comment = y.Comment
	t.RowEstimate = y.RowEstimate
	t.Constraints = nil
	for _, e := range y.Constraints {
		c, err := fromEnvelope(e)
		if err != nil {
			return err
		}
		t.Constraints = append(t.Constraints, c)
	}
	return nil
}
