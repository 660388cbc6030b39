package extract

import (
	"testing"

	"github.com/atoreson/schemadiff/internal/model"
)

func TestFormatPGType(t *testing.T) {
	ptr := func(v int64) *int64 { return &v }

	cases := []struct {
		name                  string
		dataType              string
		maxLen, precision, scale *int64
		want                  string
	}{
		{"varchar with length", "character varying", ptr(255), nil, nil, "character varying(255)"},
		{"numeric with precision and scale", "numeric", nil, ptr(10), ptr(2), "numeric(10,2)"},
		{"numeric with precision only", "numeric", nil, ptr(10), nil, "numeric(10)"},
		{"plain type passes through", "timestamp without time zone", nil, nil, nil, "timestamp without time zone"},
		{"zero scale falls through to precision only", "numeric", nil, ptr(10), ptr(0), "numeric(10)"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := formatPGType(c.dataType, c.maxLen, c.precision, c.scale); got != c.want {
				t.Fatalf("formatPGType(%q, ...) = %q, want %q", c.dataType, got, c.want)
			}
		})
	}
}

func TestPGIndexTypeMapping(t *testing.T) {
	cases := map[string]model.IndexType{
		"btree":  model.IndexBTree,
		"hash":   model.IndexHash,
		"gin":    model.IndexGIN,
		"gist":   model.IndexGIST,
		"brin":   model.IndexBRIN,
		"spgist": model.IndexSPGIST,
		"other":  model.IndexNormal,
	}
	for raw, want := range cases {
		if got := pgIndexType(raw); got != want {
			t.Fatalf("pgIndexType(%q) = %v, want %v", raw, got, want)
		}
	}
}

func TestPGVolatilityMapping(t *testing.T) {
	cases := map[string]string{
		"i": "IMMUTABLE",
		"s": "STABLE",
		"v": "VOLATILE",
		"":  "VOLATILE",
	}
	for raw, want := range cases {
		if got := pgVolatility(raw); got != want {
			t.Fatalf("pgVolatility(%q) = %q, want %q", raw, got, want)
		}
	}
}

func TestTableNamesReturnsAllKeys(t *testing.T) {
	tableMap := map[string]*model.Table{
		"users":  {Name: "users"},
		"orders": {Name: "orders"},
	}
	names := tableNames(tableMap)
	if len(names) != 2 {
		t.Fatalf("expected 2 names, got %d", len(names))
	}
	seen := map[string]bool{}
	for _, n := range names {
		seen[n] = true
	}
	if !seen["users"] || !seen["orders"] {
		t.Fatalf("expected both table names present, got %v", names)
	}
}
