package report

import (
	"strings"
	"testing"

	"github.com/atoreson/schemadiff/internal/compare"
)

func TestFormatTextZeroDifferences(t *testing.T) {
	result := &compare.DiffResult{}
	out := FormatText(result)
	if strings.TrimSpace(out) != "0 Differences Found" {
		t.Fatalf("expected exact zero-diff header, got %q", out)
	}
}

func TestFormatTextSingularDifference(t *testing.T) {
	result := &compare.DiffResult{MissingTables: []string{"ORDERS"}}
	out := FormatText(result)
	if !strings.HasPrefix(out, "1 Difference Found\n") {
		t.Fatalf("expected singular header, got %q", out)
	}
	if !strings.Contains(out, "MISSING TABLES") || !strings.Contains(out, "ORDERS") {
		t.Fatalf("expected missing tables section, got %q", out)
	}
}

func TestFormatTextOmitsEmptySections(t *testing.T) {
	result := &compare.DiffResult{ExtraTables: []string{"AUDIT_LOG"}}
	out := FormatText(result)
	if strings.Contains(out, "MISSING TABLES") {
		t.Fatalf("expected MISSING TABLES section to be omitted, got %q", out)
	}
	if !strings.Contains(out, "EXTRA TABLES") {
		t.Fatalf("expected EXTRA TABLES section present, got %q", out)
	}
}

func TestFormatTextTableSectionsLexicographic(t *testing.T) {
	result := &compare.DiffResult{
		Tables: []compare.TableDiffs{
			{Table: "ZEBRA", Columns: []compare.ColumnDiff{{Column: "A", Status: compare.Extra}}},
			{Table: "APPLE", Columns: []compare.ColumnDiff{{Column: "B", Status: compare.Extra}}},
		},
	}
	out := FormatText(result)
	if strings.Index(out, "APPLE") > strings.Index(out, "ZEBRA") {
		t.Fatalf("expected APPLE before ZEBRA, got %q", out)
	}
}

func TestFormatTextAppendsValidationWarnings(t *testing.T) {
	result := &compare.DiffResult{MissingTables: []string{"X"}}
	out := FormatText(result, "reference: ORDERS has zero columns")
	if !strings.Contains(out, "VALIDATION WARNINGS") {
		t.Fatalf("expected a VALIDATION WARNINGS section, got %q", out)
	}
	if !strings.Contains(out, "reference: ORDERS has zero columns") {
		t.Fatalf("expected the warning text to appear, got %q", out)
	}
}

func TestFormatTextOmitsValidationWarningsWhenNone(t *testing.T) {
	result := &compare.DiffResult{MissingTables: []string{"X"}}
	out := FormatText(result)
	if strings.Contains(out, "VALIDATION WARNINGS") {
		t.Fatalf("expected no VALIDATION WARNINGS section, got %q", out)
	}
}

func TestFormatTextAppendsValidationWarningsWithZeroDiffs(t *testing.T) {
	result := &compare.DiffResult{}
	out := FormatText(result, "target: missing FK target table")
	if !strings.Contains(out, "VALIDATION WARNINGS") || !strings.Contains(out, "target: missing FK target table") {
		t.Fatalf("expected validation warnings even with zero differences, got %q", out)
	}
}

func TestFormatTextIncludesLegend(t *testing.T) {
	result := &compare.DiffResult{MissingTables: []string{"X"}}
	out := FormatText(result)
	if !strings.Contains(out, "LEGEND") {
		t.Fatalf("expected legend section, got %q", out)
	}
}
