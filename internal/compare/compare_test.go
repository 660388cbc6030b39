package compare

import (
	"testing"

	"github.com/atoreson/schemadiff/internal/model"
	"github.com/atoreson/schemadiff/internal/signature"
)

func strptr(s string) *string { return &s }

func usersTable() *model.Table {
	t := &model.Table{
		Name: "USERS",
		Columns: []*model.Column{
			{Name: "ID", DataType: "int", AutoIncrement: true, OrdinalPosition: 1},
			{Name: "EMAIL", DataType: "varchar(255)", OrdinalPosition: 2},
		},
		Constraints: []model.Constraint{
			&model.PrimaryKeyConstraint{Columns: []string{"ID"}},
			&model.UniqueConstraint{Columns: []string{"EMAIL"}},
		},
	}
	signature.Assign(t)
	return t
}

func identicalMetadata() (*model.DatabaseMetadata, *model.DatabaseMetadata) {
	a := model.New("mysql", "testdb")
	_ = a.AddTable(usersTable())
	b := model.New("mysql", "testdb")
	_ = b.AddTable(usersTable())
	return a, b
}

func TestReflexivityEmptyDiff(t *testing.T) {
	ref, tgt := identicalMetadata()
	result := Compare(ref, tgt)
	if result.Count() != 0 {
		t.Fatalf("expected zero differences for identical schemas, got %d", result.Count())
	}
}

func TestMissingTableScenario(t *testing.T) {
	ref := model.New("mysql", "testdb")
	_ = ref.AddTable(usersTable())
	_ = ref.AddTable(&model.Table{Name: "ORDERS"})

	tgt := model.New("mysql", "testdb")
	_ = tgt.AddTable(usersTable())

	result := Compare(ref, tgt)
	if len(result.MissingTables) != 1 || result.MissingTables[0] != "ORDERS" {
		t.Fatalf("expected missingTables=[ORDERS], got %v", result.MissingTables)
	}
}

func TestSymmetryOfExistence(t *testing.T) {
	a := model.New("mysql", "testdb")
	_ = a.AddTable(usersTable())
	_ = a.AddTable(&model.Table{Name: "ORDERS"})

	b := model.New("mysql", "testdb")
	_ = b.AddTable(usersTable())

	ab := Compare(a, b)
	ba := Compare(b, a)

	if len(ab.MissingTables) != len(ba.ExtraTables) {
		t.Fatalf("compare(a,b).missingTables should equal compare(b,a).extraTables in length")
	}
	if ab.MissingTables[0] != ba.ExtraTables[0] {
		t.Fatalf("expected symmetric table name: %v vs %v", ab.MissingTables, ba.ExtraTables)
	}
}

func TestCascadeRuleChangeProducesMissingExtraAndModified(t *testing.T) {
	parentRef := &model.Table{Name: "PARENT", Columns: []*model.Column{{Name: "ID"}}}
	parentTgt := &model.Table{Name: "PARENT", Columns: []*model.Column{{Name: "ID"}}}

	// Build directly to control the shared constraint name on both sides.
	fkCascade := &model.ForeignKeyConstraint{Columns: []string{"PARENT_ID"}, ReferencedTable: "PARENT", ReferencedColumns: []string{"ID"}, OnDelete: "CASCADE"}
	fkNoAction := &model.ForeignKeyConstraint{Columns: []string{"PARENT_ID"}, ReferencedTable: "PARENT", ReferencedColumns: []string{"ID"}, OnDelete: "NO ACTION"}
	fkCascade.Name = "FK_CHILD_PARENT"
	fkNoAction.Name = "FK_CHILD_PARENT"

	childRefTbl := &model.Table{Name: "CHILD", Columns: []*model.Column{{Name: "PARENT_ID"}}, Constraints: []model.Constraint{fkCascade}}
	childTgtTbl := &model.Table{Name: "CHILD", Columns: []*model.Column{{Name: "PARENT_ID"}}, Constraints: []model.Constraint{fkNoAction}}
	signature.Assign(childRefTbl)
	signature.Assign(childTgtTbl)

	ref := model.New("mysql", "testdb")
	_ = ref.AddTable(parentRef)
	_ = ref.AddTable(childRefTbl)

	tgt := model.New("mysql", "testdb")
	_ = tgt.AddTable(parentTgt)
	_ = tgt.AddTable(childTgtTbl)

	result := Compare(ref, tgt)

	var td *TableDiffs
	for i := range result.Tables {
		if result.Tables[i].Table == "CHILD" {
			td = &result.Tables[i]
		}
	}
	if td == nil {
		t.Fatal("expected a CHILD table diff")
	}

	var missing, extra, modified int
	for _, c := range td.Constraints {
		switch c.Status {
		case Missing:
			missing++
		case Extra:
			extra++
		case Modified:
			modified++
		}
	}
	if missing != 1 || extra != 1 || modified != 1 {
		t.Fatalf("expected 1 missing, 1 extra, 1 modified; got missing=%d extra=%d modified=%d", missing, extra, modified)
	}
}

func TestIndexComparisonIsNameBased(t *testing.T) {
	refTbl := &model.Table{
		Name:    "ORDERS",
		Columns: []*model.Column{{Name: "CUSTOMER_ID"}},
		Indexes: []*model.Index{{Name: "IDX_CUSTOMER", Columns: []string{"CUSTOMER_ID"}, Type: model.IndexBTree}},
	}
	tgtTbl := &model.Table{
		Name:    "ORDERS",
		Columns: []*model.Column{{Name: "CUSTOMER_ID"}},
		Indexes: []*model.Index{{Name: "IDX_CUSTOMER", Columns: []string{"CUSTOMER_ID"}, Type: model.IndexHash}},
	}
	signature.Assign(refTbl)
	signature.Assign(tgtTbl)

	ref := model.New("mysql", "testdb")
	_ = ref.AddTable(refTbl)
	tgt := model.New("mysql", "testdb")
	_ = tgt.AddTable(tgtTbl)

	result := Compare(ref, tgt)
	if len(result.Tables) != 1 || len(result.Tables[0].Indexes) != 1 {
		t.Fatalf("expected one index modification, got %+v", result.Tables)
	}
	if result.Tables[0].Indexes[0].Status != Modified {
		t.Fatalf("expected MODIFIED, got %s", result.Tables[0].Indexes[0].Status)
	}
}

func TestIndexUniquenessChangeReasonText(t *testing.T) {
	refTbl := &model.Table{
		Name:    "USERS",
		Columns: []*model.Column{{Name: "EMAIL"}},
		Indexes: []*model.Index{{Name: "IDX_EMAIL", Columns: []string{"EMAIL"}, Unique: false}},
	}
	tgtTbl := &model.Table{
		Name:    "USERS",
		Columns: []*model.Column{{Name: "EMAIL"}},
		Indexes: []*model.Index{{Name: "IDX_EMAIL", Columns: []string{"EMAIL"}, Unique: true}},
	}
	signature.Assign(refTbl)
	signature.Assign(tgtTbl)

	ref := model.New("mysql", "testdb")
	_ = ref.AddTable(refTbl)
	tgt := model.New("mysql", "testdb")
	_ = tgt.AddTable(tgtTbl)

	result := Compare(ref, tgt)
	if len(result.Tables) != 1 || len(result.Tables[0].Indexes) != 1 {
		t.Fatalf("expected one index modification, got %+v", result.Tables)
	}
	idxDiff := result.Tables[0].Indexes[0]
	if idxDiff.Status != Modified {
		t.Fatalf("expected MODIFIED, got %s", idxDiff.Status)
	}
	found := false
	for _, r := range idxDiff.Reasons {
		if r == "Uniqueness: false != true" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a %q reason, got %v", "Uniqueness: false != true", idxDiff.Reasons)
	}
}

func TestColumnDefaultValueMismatch(t *testing.T) {
	refTbl := &model.Table{Name: "T", Columns: []*model.Column{{Name: "STATUS", DataType: "varchar(10)", DefaultValue: strptr("active")}}}
	tgtTbl := &model.Table{Name: "T", Columns: []*model.Column{{Name: "STATUS", DataType: "varchar(10)", DefaultValue: strptr("inactive")}}}

	ref := model.New("mysql", "testdb")
	_ = ref.AddTable(refTbl)
	tgt := model.New("mysql", "testdb")
	_ = tgt.AddTable(tgtTbl)

	result := Compare(ref, tgt)
	if len(result.Tables) != 1 || len(result.Tables[0].Columns) != 1 {
		t.Fatalf("expected one column modification, got %+v", result.Tables)
	}
	if result.Tables[0].Columns[0].Reasons[0] != "Default value mismatch" {
		t.Fatalf("expected default value mismatch reason, got %v", result.Tables[0].Columns[0].Reasons)
	}
}
