package signature

import (
	"testing"

	"github.com/atoreson/schemadiff/internal/model"
)

func TestPrimaryKeySignatureIgnoresColumnOrderAndName(t *testing.T) {
	a := &model.PrimaryKeyConstraint{Columns: []string{"b", "a"}}
	b := &model.PrimaryKeyConstraint{Columns: []string{"A", "B"}}
	if Of(a) != Of(b) {
		t.Fatalf("expected order/case-insensitive equality: %q vs %q", Of(a), Of(b))
	}
}

func TestSignatureIgnoresConstraintName(t *testing.T) {
	a := &model.UniqueConstraint{Columns: []string{"email"}}
	b := &model.UniqueConstraint{Columns: []string{"email"}}
	a.Name = "uq_users_email"
	b.Name = "users_email_key"
	// Names differ but are not part of the signature.
	a.SetSignature("") // reset to force recompute
	sigA := Of(a)
	sigB := Of(b)
	if sigA != sigB {
		t.Fatalf("expected identical signatures regardless of name: %q vs %q", sigA, sigB)
	}
}

func TestForeignKeySignaturePreservesColumnOrder(t *testing.T) {
	fk1 := &model.ForeignKeyConstraint{
		Columns:           []string{"a", "b"},
		ReferencedTable:   "parent",
		ReferencedColumns: []string{"x", "y"},
	}
	fk2 := &model.ForeignKeyConstraint{
		Columns:           []string{"b", "a"},
		ReferencedTable:   "parent",
		ReferencedColumns: []string{"y", "x"},
	}
	// Same positional pairing (a->x, b->y) but listed in different order:
	// these are NOT equivalent because FK column order is semantic.
	if Of(fk1) == Of(fk2) {
		t.Fatal("expected FK signatures to differ when column order differs")
	}
}

func TestForeignKeySignatureDefaultsMissingRulesToNoAction(t *testing.T) {
	fk := &model.ForeignKeyConstraint{
		Columns:           []string{"a"},
		ReferencedTable:   "parent",
		ReferencedColumns: []string{"id"},
	}
	sig := Of(fk)
	if sig != "FOREIGN_KEY:A→PARENT(ID) ON DELETE NO ACTION ON UPDATE NO ACTION" {
		t.Fatalf("unexpected signature: %q", sig)
	}
}

func TestForeignKeySignatureRuleChangeIsDistinct(t *testing.T) {
	cascade := &model.ForeignKeyConstraint{
		Columns: []string{"parent_id"}, ReferencedTable: "parent", ReferencedColumns: []string{"id"}, OnDelete: "CASCADE",
	}
	noAction := &model.ForeignKeyConstraint{
		Columns: []string{"parent_id"}, ReferencedTable: "parent", ReferencedColumns: []string{"id"}, OnDelete: "NO ACTION",
	}
	if Of(cascade) == Of(noAction) {
		t.Fatal("expected a CASCADE vs NO ACTION delete rule change to yield distinct signatures")
	}
}

func TestAssignSetsSignaturesOnTable(t *testing.T) {
	tbl := &model.Table{
		Name:        "orders",
		Constraints: []model.Constraint{&model.UniqueConstraint{Columns: []string{"email"}}},
		Indexes:     []*model.Index{{Name: "idx_email", Columns: []string{"email"}, Type: model.IndexBTree}},
	}
	Assign(tbl)
	if tbl.Constraints[0].Signature() == "" {
		t.Fatal("expected constraint signature to be assigned")
	}
	if tbl.Indexes[0].Signature() == "" {
		t.Fatal("expected index signature to be assigned")
	}
}
