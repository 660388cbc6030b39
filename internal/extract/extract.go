// Package extract implements the per-dialect catalog introspection of spec
// §4.1: one Extractor per supported engine, each producing a
// *model.DatabaseMetadata through the same strictly-ordered
// tables→columns→constraints→indexes phase sequence. Grounded on the
// teacher's internal/discovery package (Discoverer interface, New() dialect
// dispatch, and the phase-by-phase/grouped-aggregation shape of its
// postgres.go and oracle.go discoverers), generalised from two dialects to
// five and from *schema.Schema to *model.DatabaseMetadata.
package extract

import (
	"context"

	"github.com/atoreson/schemadiff/internal/config"
	"github.com/atoreson/schemadiff/internal/model"
	"github.com/atoreson/schemadiff/internal/progress"
)

// Extractor introspects one database's structural catalog.
type Extractor interface {
	// Connect establishes a connection to the target database, placing it
	// into the dialect's consistent-read transaction per spec §4.1's
	// execution envelope.
	Connect(ctx context.Context) error

	// Extract runs the four ordered phases and returns the assembled
	// metadata. sink may be nil, in which case progress events are discarded.
	Extract(ctx context.Context, sink progress.Sink, side progress.Side) (*model.DatabaseMetadata, error)

	// Close commits the extraction's transaction and releases the
	// connection; session settings Connect changed end with it.
	Close() error
}

// New creates an Extractor for the given dialect and side configuration.
func New(dialect string, cfg *config.SideConfig) (Extractor, error) {
	switch dialect {
	case "mysql":
		return NewMySQL(cfg)
	case "postgres":
		return NewPostgres(cfg)
	case "mssql":
		return NewMSSQL(cfg)
	case "oracle":
		return NewOracle(cfg)
	case "db2":
		return NewDB2(cfg)
	default:
		return nil, &UnsupportedDialectError{Dialect: dialect}
	}
}

// UnsupportedDialectError is returned when --db-type names a dialect none of
// the five Extractors implement.
type UnsupportedDialectError struct {
	Dialect string
}

func (e *UnsupportedDialectError) Error() string {
	return "unsupported database dialect: " + e.Dialect
}
