// Package report renders a compare.DiffResult as the deterministic UTF-8 text
// tree of spec §6. Grounded on the box-drawing tree renderer in
// uschtwill-beads's cmd/bd/list.go (printPrettyTree's ├──/└──/│ connector
// idiom), adapted from a parent-child issue tree to a flat section-then-table
// listing.
package report

import (
	"fmt"
	"sort"
	"strings"

	"github.com/atoreson/schemadiff/internal/compare"
)

// FormatText renders a DiffResult into the report format described by spec
// §6: a header difference count, then MISSING TABLES / EXTRA TABLES /
// per-table column / constraint / index sections (each omitted when empty),
// followed by a legend. With zero differences only the header line (plus
// any warnings) is written. Ordering is insertion order within a section, tables
// lexicographic. Any warnings (per spec §7, the internal/validate structural
// warnings) are appended as a trailing VALIDATION WARNINGS section; they
// never affect the difference count.
func FormatText(result *compare.DiffResult, warnings ...string) string {
	var b strings.Builder

	count := result.Count()
	noun := "Differences"
	if count == 1 {
		noun = "Difference"
	}
	fmt.Fprintf(&b, "%d %s Found\n", count, noun)
	if count == 0 {
		if len(warnings) > 0 {
			b.WriteString("\n")
			writeWarningsSection(&b, warnings)
		}
		return b.String()
	}
	b.WriteString(strings.Repeat("=", 40) + "\n\n")

	if len(result.MissingTables) > 0 {
		b.WriteString("MISSING TABLES\n")
		writeList(&b, result.MissingTables)
		b.WriteString("\n")
	}

	if len(result.ExtraTables) > 0 {
		b.WriteString("EXTRA TABLES\n")
		writeList(&b, result.ExtraTables)
		b.WriteString("\n")
	}

	tables := make([]compare.TableDiffs, len(result.Tables))
	copy(tables, result.Tables)
	sort.Slice(tables, func(i, j int) bool { return tables[i].Table < tables[j].Table })

	writeColumnSection(&b, tables)
	writeConstraintSection(&b, tables)
	writeIndexSection(&b, tables)

	writeLegend(&b)

	if len(warnings) > 0 {
		b.WriteString("\n")
		writeWarningsSection(&b, warnings)
	}

	return b.String()
}

func writeWarningsSection(b *strings.Builder, warnings []string) {
	b.WriteString("VALIDATION WARNINGS\n")
	writeList(b, warnings)
}

func writeList(b *strings.Builder, names []string) {
	for i, n := range names {
		connector := "├── "
		if i == len(names)-1 {
			connector = "└── "
		}
		fmt.Fprintf(b, "%s%s\n", connector, n)
	}
}

func writeColumnSection(b *strings.Builder, tables []compare.TableDiffs) {
	var withColumns []compare.TableDiffs
	for _, t := range tables {
		if len(t.Columns) > 0 {
			withColumns = append(withColumns, t)
		}
	}
	if len(withColumns) == 0 {
		return
	}
	b.WriteString("COLUMN DIFFERENCES\n")
	for ti, t := range withColumns {
		tableConnector := "├── "
		tableExt := "│   "
		if ti == len(withColumns)-1 {
			tableConnector = "└── "
			tableExt = "    "
		}
		fmt.Fprintf(b, "%s%s\n", tableConnector, t.Table)
		for ci, c := range t.Columns {
			connector := "├── "
			if ci == len(t.Columns)-1 {
				connector = "└── "
			}
			fmt.Fprintf(b, "%s%s%s %s", tableExt, connector, c.Status, c.Column)
			if len(c.Reasons) > 0 {
				fmt.Fprintf(b, " (%s)", strings.Join(c.Reasons, "; "))
			}
			b.WriteString("\n")
		}
	}
	b.WriteString("\n")
}

func writeConstraintSection(b *strings.Builder, tables []compare.TableDiffs) {
	var withConstraints []compare.TableDiffs
	for _, t := range tables {
		if len(t.Constraints) > 0 {
			withConstraints = append(withConstraints, t)
		}
	}
	if len(withConstraints) == 0 {
		return
	}
	b.WriteString("CONSTRAINT DIFFERENCES\n")
	for ti, t := range withConstraints {
		tableConnector := "├── "
		tableExt := "│   "
		if ti == len(withConstraints)-1 {
			tableConnector = "└── "
			tableExt = "    "
		}
		fmt.Fprintf(b, "%s%s\n", tableConnector, t.Table)
		for ci, c := range t.Constraints {
			connector := "├── "
			if ci == len(t.Constraints)-1 {
				connector = "└── "
			}
			label := c.Name
			if label == "" {
				label = "(unnamed)"
			}
			fmt.Fprintf(b, "%s%s%s %s [%s]\n", tableExt, connector, c.Status, label, c.Signature)
		}
	}
	b.WriteString("\n")
}

func writeIndexSection(b *strings.Builder, tables []compare.TableDiffs) {
	var withIndexes []compare.TableDiffs
	for _, t := range tables {
		if len(t.Indexes) > 0 {
			withIndexes = append(withIndexes, t)
		}
	}
	if len(withIndexes) == 0 {
		return
	}
	b.WriteString("INDEX DIFFERENCES\n")
	for ti, t := range withIndexes {
		tableConnector := "├── "
		tableExt := "│   "
		if ti == len(withIndexes)-1 {
			tableConnector = "└── "
			tableExt = "    "
		}
		fmt.Fprintf(b, "%s%s\n", tableConnector, t.Table)
		for ii, idx := range t.Indexes {
			connector := "├── "
			if ii == len(t.Indexes)-1 {
				connector = "└── "
			}
			fmt.Fprintf(b, "%s%s%s %s", tableExt, connector, idx.Status, idx.Name)
			if len(idx.Reasons) > 0 {
				fmt.Fprintf(b, " (%s)", strings.Join(idx.Reasons, "; "))
			}
			b.WriteString("\n")
		}
	}
	b.WriteString("\n")
}

func writeLegend(b *strings.Builder) {
	b.WriteString("LEGEND\n")
	b.WriteString("  MISSING  present in reference, absent from target\n")
	b.WriteString("  EXTRA    present in target, absent from reference\n")
	b.WriteString("  MODIFIED present on both sides with a structural difference\n")
}
