// Package compare implements the four-level structural comparison engine of
// spec §4.7: table existence, columns, constraints, and indexes, producing a
// DiffResult. Grounded on skeema's tengo.SchemaDiff/compareTables
// map-by-name diffing idiom (other_examples/..._skeema-skeema__internal-tengo-diff.go.go).
package compare

import (
	"fmt"
	"sort"
	"strings"

	"github.com/atoreson/schemadiff/internal/model"
)

// FindingStatus tags a single finding as missing from the target, extra in
// the target, or present-but-modified on both sides.
type FindingStatus string

const (
	Missing  FindingStatus = "MISSING"
	Extra    FindingStatus = "EXTRA"
	Modified FindingStatus = "MODIFIED"
)

// ColumnDiff is one per-column finding within a shared table.
type ColumnDiff struct {
	Column  string
	Status  FindingStatus
	Reasons []string // populated only for MODIFIED
}

// ConstraintDiff is one per-constraint finding within a shared table.
type ConstraintDiff struct {
	Name      string
	Signature string
	Status    FindingStatus
	Reference model.Constraint // set for MODIFIED (name-matched, signature differs)
	Target    model.Constraint
}

// IndexDiff is one per-index finding within a shared table.
type IndexDiff struct {
	Name    string
	Status  FindingStatus
	Reasons []string
}

// TableDiffs groups every column/constraint/index finding for one shared
// table, in the order they were produced.
type TableDiffs struct {
	Table       string
	Columns     []ColumnDiff
	Constraints []ConstraintDiff
	Indexes     []IndexDiff
}

func (t *TableDiffs) empty() bool {
	return len(t.Columns) == 0 && len(t.Constraints) == 0 && len(t.Indexes) == 0
}

// DiffResult is the complete output of comparing two DatabaseMetadata
// values: reference is the left-hand side, target the right-hand side.
type DiffResult struct {
	MissingTables []string // present in reference only
	ExtraTables   []string // present in target only
	Tables        []TableDiffs
}

// Count returns the total number of individual findings across every
// section, used to decide the process exit code (spec §6).
func (d *DiffResult) Count() int {
	n := len(d.MissingTables) + len(d.ExtraTables)
	for _, t := range d.Tables {
		n += len(t.Columns) + len(t.Constraints) + len(t.Indexes)
	}
	return n
}

// Compare runs the four-level comparison of spec §4.7. Both inputs are
// read-only; Compare never mutates either DatabaseMetadata.
func Compare(reference, target *model.DatabaseMetadata) *DiffResult {
	result := &DiffResult{}

	refNames := reference.TableNames()
	refByLower := make(map[string]string, len(refNames))
	for _, n := range refNames {
		refByLower[strings.ToLower(n)] = n
	}
	tgtNames := target.TableNames()
	tgtByLower := make(map[string]string, len(tgtNames))
	for _, n := range tgtNames {
		tgtByLower[strings.ToLower(n)] = n
	}

	for _, n := range refNames {
		if _, ok := tgtByLower[strings.ToLower(n)]; !ok {
			result.MissingTables = append(result.MissingTables, n)
		}
	}
	for _, n := range tgtNames {
		if _, ok := refByLower[strings.ToLower(n)]; !ok {
			result.ExtraTables = append(result.ExtraTables, n)
		}
	}

	shared := make([]string, 0)
	for _, n := range refNames {
		if _, ok := tgtByLower[strings.ToLower(n)]; ok {
			shared = append(shared, n)
		}
	}
	sort.Strings(shared)

	for _, name := range shared {
		refTable, _ := reference.TableByNameCI(name)
		tgtTable, _ := target.TableByNameCI(name)
		td := compareTable(name, refTable, tgtTable)
		if !td.empty() {
			result.Tables = append(result.Tables, td)
		}
	}

	return result
}

func compareTable(name string, ref, tgt *model.Table) TableDiffs {
	td := TableDiffs{Table: name}
	td.Columns = compareColumns(ref, tgt)
	td.Constraints = compareConstraints(ref, tgt)
	td.Indexes = compareIndexes(ref, tgt)
	return td
}

// compareColumns implements Level 2: datatype, nullable, autoIncrement,
// unsigned, and default-value mismatches. Ordinal position, comment,
// character set, and collation are extracted but deliberately not compared
// (spec §4.7).
func compareColumns(ref, tgt *model.Table) []ColumnDiff {
	var diffs []ColumnDiff
	tgtByLower := make(map[string]*model.Column, len(tgt.Columns))
	for _, c := range tgt.Columns {
		tgtByLower[strings.ToLower(c.Name)] = c
	}
	seen := make(map[string]bool, len(ref.Columns))

	for _, rc := range ref.Columns {
		key := strings.ToLower(rc.Name)
		seen[key] = true
		tc, ok := tgtByLower[key]
		if !ok {
			diffs = append(diffs, ColumnDiff{Column: rc.Name, Status: Missing})
			continue
		}
		var reasons []string
		if !strings.EqualFold(rc.DataType, tc.DataType) {
			reasons = append(reasons, "Type mismatch: "+rc.DataType+" != "+tc.DataType)
		}
		if rc.Nullable != tc.Nullable {
			reasons = append(reasons, "Nullable mismatch")
		}
		if rc.AutoIncrement != tc.AutoIncrement {
			reasons = append(reasons, "AutoIncrement mismatch")
		}
		if rc.Unsigned != tc.Unsigned {
			reasons = append(reasons, "Unsigned mismatch")
		}
		if !defaultsEqual(rc.DefaultValue, tc.DefaultValue) {
			reasons = append(reasons, "Default value mismatch")
		}
		if len(reasons) > 0 {
			diffs = append(diffs, ColumnDiff{Column: rc.Name, Status: Modified, Reasons: reasons})
		}
	}

	for _, tc := range tgt.Columns {
		if !seen[strings.ToLower(tc.Name)] {
			diffs = append(diffs, ColumnDiff{Column: tc.Name, Status: Extra})
		}
	}

	return diffs
}

func defaultsEqual(a, b *string) bool {
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	return *a == *b
}

// compareConstraints implements Level 3: signature-keyed map diffing, plus
// the name-matched-but-signature-differs MODIFIED case spec §4.7 calls out
// ("catches in-place rule/column changes that slip past signature-only
// comparison").
func compareConstraints(ref, tgt *model.Table) []ConstraintDiff {
	var diffs []ConstraintDiff

	refBySig := make(map[string]model.Constraint, len(ref.Constraints))
	refByName := make(map[string]model.Constraint, len(ref.Constraints))
	for _, c := range ref.Constraints {
		refBySig[c.Signature()] = c
		if c.ConstraintName() != "" {
			refByName[c.ConstraintName()] = c
		}
	}
	tgtBySig := make(map[string]model.Constraint, len(tgt.Constraints))
	tgtByName := make(map[string]model.Constraint, len(tgt.Constraints))
	for _, c := range tgt.Constraints {
		tgtBySig[c.Signature()] = c
		if c.ConstraintName() != "" {
			tgtByName[c.ConstraintName()] = c
		}
	}

	for _, c := range ref.Constraints {
		if _, ok := tgtBySig[c.Signature()]; !ok {
			diffs = append(diffs, ConstraintDiff{Name: c.ConstraintName(), Signature: c.Signature(), Status: Missing})
		}
	}
	for _, c := range tgt.Constraints {
		if _, ok := refBySig[c.Signature()]; !ok {
			diffs = append(diffs, ConstraintDiff{Name: c.ConstraintName(), Signature: c.Signature(), Status: Extra})
		}
	}

	for name, rc := range refByName {
		tc, ok := tgtByName[name]
		if !ok {
			continue
		}
		if rc.Signature() != tc.Signature() {
			diffs = append(diffs, ConstraintDiff{
				Name: name, Signature: rc.Signature(), Status: Modified,
				Reference: rc, Target: tc,
			})
		}
	}

	return diffs
}

// compareIndexes implements Level 4: name-keyed (not signature-keyed)
// comparison, since an index name is part of the dialect's own contract.
func compareIndexes(ref, tgt *model.Table) []IndexDiff {
	var diffs []IndexDiff

	refByName := make(map[string]*model.Index, len(ref.Indexes))
	for _, idx := range ref.Indexes {
		refByName[strings.ToUpper(idx.Name)] = idx
	}
	tgtByName := make(map[string]*model.Index, len(tgt.Indexes))
	for _, idx := range tgt.Indexes {
		tgtByName[strings.ToUpper(idx.Name)] = idx
	}

	for _, ri := range ref.Indexes {
		key := strings.ToUpper(ri.Name)
		ti, ok := tgtByName[key]
		if !ok {
			diffs = append(diffs, IndexDiff{Name: ri.Name, Status: Missing})
			continue
		}
		var reasons []string
		if !sameColumns(ri.Columns, ti.Columns) {
			reasons = append(reasons, fmt.Sprintf("Columns: %v != %v", ri.Columns, ti.Columns))
		}
		if ri.Unique != ti.Unique {
			reasons = append(reasons, fmt.Sprintf("Uniqueness: %v != %v", ri.Unique, ti.Unique))
		}
		if ri.Type != ti.Type {
			reasons = append(reasons, fmt.Sprintf("Type: %v != %v", ri.Type, ti.Type))
		}
		if len(reasons) > 0 {
			diffs = append(diffs, IndexDiff{Name: ri.Name, Status: Modified, Reasons: reasons})
		}
	}

	for _, ti := range tgt.Indexes {
		if _, ok := refByName[strings.ToUpper(ti.Name)]; !ok {
			diffs = append(diffs, IndexDiff{Name: ti.Name, Status: Extra})
		}
	}

	return diffs
}

func sameColumns(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !strings.EqualFold(a[i], b[i]) {
			return false
		}
	}
	return true
}
