// Package validate runs post-extraction structural checks over a
// DatabaseMetadata: conditions that are suspicious but not fatal to
// comparison, per spec §7's "Validation warning" category (FK referencing a
// table absent from the metadata, a table with zero columns). Shaped after
// the teacher's internal/validation.Validator Callback-notification pattern.
package validate

import (
	"fmt"

	"github.com/atoreson/schemadiff/internal/model"
)

// Warning describes one post-extraction inconsistency.
type Warning struct {
	Table   string
	Message string
}

func (w Warning) String() string {
	if w.Table == "" {
		return w.Message
	}
	return fmt.Sprintf("%s: %s", w.Table, w.Message)
}

// Check inspects md and returns every warning found, in table-name order
// and, within a table, in the order its constraints were declared. callback,
// if non-nil, is invoked once per warning as it is discovered.
func Check(md *model.DatabaseMetadata, callback func(Warning)) []Warning {
	var warnings []Warning
	emit := func(w Warning) {
		warnings = append(warnings, w)
		if callback != nil {
			callback(w)
		}
	}

	for _, name := range md.TableNames() {
		t := md.Tables[name]

		if len(t.Columns) == 0 {
			emit(Warning{Table: t.Name, Message: "table has zero columns"})
		}

		for _, c := range t.Constraints {
			fk, ok := c.(*model.ForeignKeyConstraint)
			if !ok {
				continue
			}
			if !fk.Arity() {
				emit(Warning{
					Table:   t.Name,
					Message: fmt.Sprintf("foreign key %q column count does not match referenced column count", fk.ConstraintName()),
				})
			}
			if _, ok := md.TableByNameCI(fk.ReferencedTable); !ok {
				emit(Warning{
					Table:   t.Name,
					Message: fmt.Sprintf("foreign key %q references table %q, which is not present in the extracted metadata", fk.ConstraintName(), fk.ReferencedTable),
				})
			}
		}

		if err := t.Validate(); err != nil {
			emit(Warning{Table: t.Name, Message: err.Error()})
		}
	}

	return warnings
}
