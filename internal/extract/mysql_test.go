package extract

import (
	"testing"

	"github.com/atoreson/schemadiff/internal/model"
)

func TestMySQLIndexTypeMapping(t *testing.T) {
	cases := map[string]model.IndexType{
		"BTREE":    model.IndexBTree,
		"HASH":     model.IndexHash,
		"FULLTEXT": model.IndexFullText,
		"SPATIAL":  model.IndexSpatial,
		"RTREE":    model.IndexNormal,
	}
	for raw, want := range cases {
		if got := mysqlIndexType(raw); got != want {
			t.Fatalf("mysqlIndexType(%q) = %v, want %v", raw, got, want)
		}
	}
}

func TestUniqueConstraintIndexNamesCollectsOnlyUniqueKind(t *testing.T) {
	pk := &model.PrimaryKeyConstraint{Columns: []string{"id"}}
	pk.Name = "PRIMARY"
	uq := &model.UniqueConstraint{Columns: []string{"email"}}
	uq.Name = "uq_users_email"

	tableMap := map[string]*model.Table{
		"users": {Name: "users", Constraints: []model.Constraint{pk, uq}},
	}

	got := uniqueConstraintIndexNames(tableMap)

	if !got["users\x00uq_users_email"] {
		t.Fatal("expected the UNIQUE constraint's backing index name to be present")
	}
	if got["users\x00PRIMARY"] {
		t.Fatal("did not expect the PRIMARY KEY constraint to be collected")
	}
	if len(got) != 1 {
		t.Fatalf("expected exactly 1 entry, got %d", len(got))
	}
}
