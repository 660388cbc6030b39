package typenorm

import "testing"

func i64(n int64) *int64 { return &n }
func ip(n int) *int      { return &n }

func TestMySQLDataType(t *testing.T) {
	cases := []struct {
		name     string
		dataType string
		charLen  *int64
		prec     *int64
		scale    *int64
		want     string
	}{
		{"varchar", "varchar", i64(255), nil, nil, "varchar(255)"},
		{"decimal with scale", "decimal", nil, i64(10), i64(2), "decimal(10,2)"},
		{"int no fragments", "int", nil, nil, nil, "int"},
		{"precision only", "decimal", nil, i64(10), i64(0), "decimal(10)"},
		{"capped pathological length", "varchar", i64(5_000_000), nil, nil, "varchar(999999)"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := MySQLDataType(c.dataType, c.charLen, c.prec, c.scale)
			if got != c.want {
				t.Fatalf("got %q, want %q", got, c.want)
			}
		})
	}
}

func TestMSSQLDataTypeNVarcharHalvesLength(t *testing.T) {
	got := MSSQLDataType("nvarchar", 510, 0, 0)
	if got != "nvarchar(255)" {
		t.Fatalf("got %q", got)
	}
}

func TestMSSQLDataTypeMaxLength(t *testing.T) {
	got := MSSQLDataType("nvarchar", -1, 0, 0)
	if got != "nvarchar(max)" {
		t.Fatalf("got %q, want NVARCHAR(max) form, got %q", got, got)
	}
}

func TestOracleDataTypeNumberVariants(t *testing.T) {
	if got := OracleDataType("number", nil, nil); got != "NUMBER" {
		t.Fatalf("bare NUMBER: got %q", got)
	}
	p := 10
	if got := OracleDataType("number", &p, nil); got != "NUMBER(10)" {
		t.Fatalf("precision only: got %q", got)
	}
	s := 2
	if got := OracleDataType("number", &p, &s); got != "NUMBER(10,2)" {
		t.Fatalf("precision+scale: got %q", got)
	}
	if got := OracleDataType("varchar2", nil, nil); got != "VARCHAR2" {
		t.Fatalf("non-NUMBER passthrough: got %q", got)
	}
}

func TestNormalizeDefaultStripsSingleQuotes(t *testing.T) {
	vf := DefaultVerbatimFunctions("postgres")
	got := NormalizeDefault("'active'", "postgres", vf)
	if got == nil || *got != "active" {
		t.Fatalf("got %v", got)
	}
}

func TestNormalizeDefaultStripsPostgresCast(t *testing.T) {
	vf := DefaultVerbatimFunctions("postgres")
	got := NormalizeDefault("'active'::character varying", "postgres", vf)
	if got == nil || *got != "active" {
		t.Fatalf("got %v", got)
	}
}

func TestNormalizeDefaultStripsMSSQLParens(t *testing.T) {
	vf := DefaultVerbatimFunctions("mssql")
	got := NormalizeDefault("((0))", "mssql", vf)
	if got == nil || *got != "0" {
		t.Fatalf("got %v", got)
	}
}

func TestNormalizeDefaultEmptyIsNil(t *testing.T) {
	vf := DefaultVerbatimFunctions("postgres")
	if got := NormalizeDefault("   ", "postgres", vf); got != nil {
		t.Fatalf("expected nil, got %v", got)
	}
}

func TestNormalizeDefaultIsConvergent(t *testing.T) {
	vf := DefaultVerbatimFunctions("postgres")
	inputs := []string{"'active'::character varying", "  'x'  ", "SYSDATE", "nextval('orders_id_seq'::regclass)"}
	for _, in := range inputs {
		once := NormalizeDefault(in, "postgres", vf)
		if once == nil {
			continue
		}
		twice := NormalizeDefault(*once, "postgres", vf)
		if twice == nil || *once != *twice {
			t.Fatalf("normalisation not convergent for %q: once=%v twice=%v", in, once, twice)
		}
	}
}

func TestVerbatimFunctionsKnowsNextvalPattern(t *testing.T) {
	vf := DefaultVerbatimFunctions("postgres")
	if !vf.IsKnown("nextval('orders_id_seq')") {
		t.Fatal("expected nextval(...) to be recognised as verbatim")
	}
}
