// Package signature computes the deterministic constraint signature strings
// the comparison engine keys on, per spec §4.2. A signature depends only on
// a constraint's type, its column set (ordered for FK, sorted for the
// others), and — for FKs — the referenced table/columns and the delete/
// update rules. It never depends on the constraint's own name.
package signature

import (
	"fmt"
	"sort"
	"strings"

	"github.com/atoreson/schemadiff/internal/model"
)

// Of returns the canonical signature for a constraint, assigning it via
// SetSignature and also returning it for convenience.
func Of(c model.Constraint) string {
	var sig string
	switch v := c.(type) {
	case *model.PrimaryKeyConstraint:
		sig = fmt.Sprintf("PRIMARY_KEY:%s", sortedUpper(v.Columns))
	case *model.UniqueConstraint:
		sig = fmt.Sprintf("UNIQUE:%s", sortedUpper(v.Columns))
	case *model.CheckConstraint:
		sig = fmt.Sprintf("CHECK:%s", sortedUpper(extractCheckColumns(v)))
	case *model.ForeignKeyConstraint:
		sig = foreignKeySignature(v)
	default:
		sig = fmt.Sprintf("UNKNOWN:%s", sortedUpper(c.ColumnNames()))
	}
	c.SetSignature(sig)
	return sig
}

func foreignKeySignature(fk *model.ForeignKeyConstraint) string {
	onDelete := normalizeRule(fk.OnDelete)
	onUpdate := normalizeRule(fk.OnUpdate)
	return fmt.Sprintf("FOREIGN_KEY:%s→%s(%s) ON DELETE %s ON UPDATE %s",
		orderedUpper(fk.Columns),
		strings.ToUpper(fk.ReferencedTable),
		orderedUpper(fk.ReferencedColumns),
		onDelete,
		onUpdate,
	)
}

func normalizeRule(rule string) string {
	if rule == "" {
		return "NO ACTION"
	}
	return strings.ToUpper(rule)
}

// extractCheckColumns is a no-op today: CHECK clause text is not parsed for
// column references (see DESIGN.md, Open Question 1), so the signature's
// column component is always empty and the signature degenerates to
// "CHECK:" for every CHECK constraint sharing no comparable structure beyond
// existence. In internal/compare this means a table's CHECKs are reported as
// MISSING or EXTRA only when one side has CHECK constraints and the other
// has none; two CHECKs never differ in signature, so the constraint-name
// fallback never reports one as MODIFIED.
func extractCheckColumns(c *model.CheckConstraint) []string {
	return nil
}

func sortedUpper(cols []string) string {
	upper := make([]string, len(cols))
	for i, c := range cols {
		upper[i] = strings.ToUpper(c)
	}
	sort.Strings(upper)
	return strings.Join(upper, ",")
}

func orderedUpper(cols []string) string {
	upper := make([]string, len(cols))
	for i, c := range cols {
		upper[i] = strings.ToUpper(c)
	}
	return strings.Join(upper, ",")
}

// Assign computes and assigns signatures for every constraint and index in a
// table. Indexes do not use signature-based comparison (spec §4.7 Level 4 is
// name-based) but still carry a descriptive signature for reporting.
func Assign(t *model.Table) {
	for _, c := range t.Constraints {
		Of(c)
	}
	for _, idx := range t.Indexes {
		idx.SetSignature(indexSignature(idx))
	}
}

func indexSignature(idx *model.Index) string {
	uniq := ""
	if idx.Unique {
		uniq = "UNIQUE "
	}
	return fmt.Sprintf("%s%s(%s)", uniq, idx.Type, orderedUpper(idx.Columns))
}
