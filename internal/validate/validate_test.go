package validate

import (
	"testing"

	"github.com/atoreson/schemadiff/internal/model"
)

func TestCheckFlagsZeroColumnTable(t *testing.T) {
	md := model.New("postgres", "public")
	t1 := &model.Table{Name: "EMPTY"}
	if err := md.AddTable(t1); err != nil {
		t.Fatal(err)
	}

	warnings := Check(md, nil)
	if len(warnings) != 1 || warnings[0].Message != "table has zero columns" {
		t.Fatalf("expected zero-column warning, got %+v", warnings)
	}
}

func TestCheckFlagsForeignKeyToMissingTable(t *testing.T) {
	md := model.New("postgres", "public")
	t1 := &model.Table{Name: "ORDERS", Columns: []*model.Column{{Name: "ID"}, {Name: "CUSTOMER_ID"}}}
	fk := &model.ForeignKeyConstraint{Columns: []string{"CUSTOMER_ID"}, ReferencedTable: "CUSTOMERS", ReferencedColumns: []string{"ID"}}
	t1.Constraints = append(t1.Constraints, fk)
	if err := md.AddTable(t1); err != nil {
		t.Fatal(err)
	}

	var seen []Warning
	warnings := Check(md, func(w Warning) { seen = append(seen, w) })
	if len(warnings) != 1 {
		t.Fatalf("expected one warning, got %+v", warnings)
	}
	if len(seen) != len(warnings) {
		t.Fatalf("expected callback to fire for every warning")
	}
}

func TestCheckPassesCleanMetadata(t *testing.T) {
	md := model.New("postgres", "public")
	t1 := &model.Table{Name: "CUSTOMERS", Columns: []*model.Column{{Name: "ID"}}}
	if err := md.AddTable(t1); err != nil {
		t.Fatal(err)
	}
	if warnings := Check(md, nil); len(warnings) != 0 {
		t.Fatalf("expected no warnings, got %+v", warnings)
	}
}
