package model

import (
	"testing"

	"gopkg.in/yaml.v3"
)

func TestAddTableDuplicateCaseInsensitive(t *testing.T) {
	d := New("postgres", "public")
	if err := d.AddTable(&Table{Name: "Orders"}); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	if err := d.AddTable(&Table{Name: "orders"}); err == nil {
		t.Fatal("expected duplicate case-insensitive name to error")
	}
}

func TestTableValidatePrimaryKeyCardinality(t *testing.T) {
	tbl := &Table{
		Name:    "orders",
		Columns: []*Column{{Name: "id"}, {Name: "customer_id"}},
		Constraints: []Constraint{
			&PrimaryKeyConstraint{base: base{Name: "pk_orders"}, Columns: []string{"id"}},
			&PrimaryKeyConstraint{base: base{Name: "pk_orders_2"}, Columns: []string{"customer_id"}},
		},
	}
	if err := tbl.Validate(); err == nil {
		t.Fatal("expected error for two primary keys on one table")
	}
}

func TestTableValidateUnknownConstraintColumn(t *testing.T) {
	tbl := &Table{
		Name:    "orders",
		Columns: []*Column{{Name: "id"}},
		Constraints: []Constraint{
			&UniqueConstraint{base: base{Name: "uq_missing"}, Columns: []string{"does_not_exist"}},
		},
	}
	if err := tbl.Validate(); err == nil {
		t.Fatal("expected error for constraint referencing unknown column")
	}
}

func TestForeignKeyArity(t *testing.T) {
	fk := &ForeignKeyConstraint{
		base:              base{Name: "fk_customer"},
		Columns:           []string{"customer_id"},
		ReferencedTable:   "customers",
		ReferencedColumns: []string{"id", "region"},
	}
	if fk.Arity() {
		t.Fatal("expected arity mismatch to be detected")
	}
}

func TestTableYAMLRoundTrip(t *testing.T) {
	tbl := &Table{
		Name:    "orders",
		Columns: []*Column{{Name: "id", DataType: "integer", OrdinalPosition: 1}},
		Constraints: []Constraint{
			&PrimaryKeyConstraint{base: base{Name: "pk_orders", Sig: "PK(id)"}, Columns: []string{"id"}},
			&ForeignKeyConstraint{
				base:              base{Name: "fk_customer"},
				Columns:           []string{"customer_id"},
				ReferencedTable:   "customers",
				ReferencedColumns: []string{"id"},
				OnDelete:          "CASCADE",
			},
			&CheckConstraint{base: base{Name: "chk_qty"}, Clause: "qty > 0"},
		},
		Indexes: []*Index{{Name: "idx_customer", Columns: []string{"customer_id"}, Type: IndexBTree}},
	}

	data, err := yaml.Marshal(tbl)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var round Table
	if err := yaml.Unmarshal(data, &round); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if len(round.Constraints) != 3 {
		t.Fatalf("expected 3 constraints after round-trip, got %d", len(round.Constraints))
	}
	pk, ok := round.Constraints[0].(*PrimaryKeyConstraint)
	if !ok {
		t.Fatalf("expected first constraint to be a primary key, got %T", round.Constraints[0])
	}
	if pk.Signature() != "PK(id)" {
		t.Fatalf("signature not preserved: got %q", pk.Signature())
	}
	fk, ok := round.Constraints[1].(*ForeignKeyConstraint)
	if !ok {
		t.Fatalf("expected second constraint to be a foreign key, got %T", round.Constraints[1])
	}
	if fk.ReferencedTable != "customers" || fk.OnDelete != "CASCADE" {
		t.Fatalf("foreign key fields not preserved: %+v", fk)
	}
}

func TestDatabaseMetadataYAMLRoundTrip(t *testing.T) {
	d := New("postgres", "public")
	if err := d.AddTable(&Table{Name: "customers", Columns: []*Column{{Name: "id", OrdinalPosition: 1}}}); err != nil {
		t.Fatalf("add table: %v", err)
	}

	data, err := d.ToYAML()
	if err != nil {
		t.Fatalf("to yaml: %v", err)
	}

	var round DatabaseMetadata
	if err := yaml.Unmarshal(data, &round); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, ok := round.Tables["customers"]; !ok {
		t.Fatal("expected customers table to survive round-trip")
	}
}
