package extract

import (
	"testing"

	"github.com/atoreson/schemadiff/internal/model"
)

func TestMSSQLRuleNormalizesUnderscores(t *testing.T) {
	if got := mssqlRule("SET_NULL"); got != "SET NULL" {
		t.Fatalf("expected %q, got %q", "SET NULL", got)
	}
	if got := mssqlRule("NO_ACTION"); got != "NO ACTION" {
		t.Fatalf("expected %q, got %q", "NO ACTION", got)
	}
}

func TestMSSQLIndexTypeMapping(t *testing.T) {
	cases := map[string]model.IndexType{
		"CLUSTERED":                model.IndexClustered,
		"NONCLUSTERED":             model.IndexNonClustered,
		"CLUSTERED COLUMNSTORE":    model.IndexColumnstore,
		"NONCLUSTERED COLUMNSTORE": model.IndexColumnstore,
		"XML":                      model.IndexNormal,
	}
	for raw, want := range cases {
		if got := mssqlIndexType(raw); got != want {
			t.Fatalf("mssqlIndexType(%q) = %v, want %v", raw, got, want)
		}
	}
}

func TestOracleIndexTypeMapping(t *testing.T) {
	cases := map[string]model.IndexType{
		"BITMAP":               model.IndexBitmap,
		"FUNCTION-BASED NORMAL": model.IndexFunctional,
		"NORMAL":               model.IndexNormal,
	}
	for raw, want := range cases {
		if got := oracleIndexType(raw); got != want {
			t.Fatalf("oracleIndexType(%q) = %v, want %v", raw, got, want)
		}
	}
}

func TestDB2RuleMapping(t *testing.T) {
	cases := map[string]string{
		"C": "CASCADE",
		"N": "SET NULL",
		"R": "RESTRICT",
		"A": "NO ACTION",
	}
	for raw, want := range cases {
		if got := db2Rule(raw); got != want {
			t.Fatalf("db2Rule(%q) = %q, want %q", raw, got, want)
		}
	}
}
