// Package orchestrate resolves the two sides of a compare run to live
// connections, extracts both concurrently, and hands the pair of
// DatabaseMetadata to the comparison engine. The two extractions run as
// sibling goroutines under errgroup.WithContext — spec §5's "first fault
// cancels its sibling" — grounded on the WithContext fan-out idiom used for
// per-table introspection in the pack's skeema-style discoverer.
package orchestrate

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	_ "github.com/denisenkom/go-mssqldb"
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/ibmdb/go_ibm_db"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/sijms/go-ora/v2"
	"golang.org/x/sync/errgroup"

	"github.com/atoreson/schemadiff/internal/compare"
	"github.com/atoreson/schemadiff/internal/config"
	"github.com/atoreson/schemadiff/internal/ddlsplit"
	"github.com/atoreson/schemadiff/internal/extract"
	"github.com/atoreson/schemadiff/internal/model"
	"github.com/atoreson/schemadiff/internal/progress"
	"github.com/atoreson/schemadiff/internal/provision"
)

// Result is the outcome of a two-sided run: the diff plus both sides'
// extracted metadata, which callers may want for --discover-style dumps or
// for internal/validate.
type Result struct {
	Diff      *compare.DiffResult
	Reference *model.DatabaseMetadata
	Target    *model.DatabaseMetadata
}

// Run resolves, extracts, and compares both sides of cfg. sink receives
// phase-timing and warning events from both extractions; it may be nil.
func Run(ctx context.Context, cfg *config.Config, sink progress.Sink) (*Result, error) {
	if sink == nil {
		sink = progress.NopSink{}
	}

	g, gctx := errgroup.WithContext(ctx)

	var refMD, targetMD *model.DatabaseMetadata

	g.Go(func() error {
		md, err := resolveAndExtract(gctx, cfg.DBType, cfg.Image, cfg.Reference, sink, progress.SideReference)
		if err != nil {
			return fmt.Errorf("reference side: %w", err)
		}
		refMD = md
		return nil
	})

	g.Go(func() error {
		md, err := resolveAndExtract(gctx, cfg.DBType, cfg.Image, cfg.Target, sink, progress.SideTarget)
		if err != nil {
			return fmt.Errorf("target side: %w", err)
		}
		targetMD = md
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &Result{
		Diff:      compare.Compare(refMD, targetMD),
		Reference: refMD,
		Target:    targetMD,
	}, nil
}

// resolveAndExtract materialises side into a live connection (provisioning
// a container for a script side, dialling directly otherwise), runs the
// matching Extractor, and tears the container down on return.
func resolveAndExtract(ctx context.Context, dialect, image string, side config.SideConfig, sink progress.Sink, which progress.Side) (*model.DatabaseMetadata, error) {
	conn := side

	if side.IsScript() {
		ctr, err := provision.Start(ctx, dialect, image, side)
		if err != nil {
			return nil, fmt.Errorf("provisioning container: %w", err)
		}
		defer func() {
			if stopErr := ctr.Stop(context.Background()); stopErr != nil {
				sink.Warning(which, progress.PhaseTables, fmt.Sprintf("container teardown: %v", stopErr))
			}
		}()
		conn = ctr.Coordinates()

		if err := materializeScript(ctx, dialect, conn, side.Script, sink, which); err != nil {
			return nil, fmt.Errorf("materializing DDL script: %w", err)
		}
	}

	extractor, err := extract.New(dialect, &conn)
	if err != nil {
		return nil, err
	}
	if err := extractor.Connect(ctx); err != nil {
		return nil, fmt.Errorf("connecting: %w", err)
	}
	defer extractor.Close()

	return extractor.Extract(ctx, sink, which)
}

// materializeScript reads a DDL file, splits it with ddlsplit, and executes
// each statement against conn in order. Per spec §4.6, statement failures
// are logged and execution continues (partial-failure tolerance) rather
// than aborting; the final success/failure tally is sent as a warning event
// through sink rather than failing the run outright. These events do not
// appear in the rendered report.
func materializeScript(ctx context.Context, dialect string, conn config.SideConfig, scriptPath string, sink progress.Sink, which progress.Side) error {
	db, err := dialExec(dialect, conn)
	if err != nil {
		return err
	}
	defer db.Close()

	content, err := os.ReadFile(scriptPath)
	if err != nil {
		return fmt.Errorf("reading DDL script: %w", err)
	}

	statements := ddlsplit.Split(string(content))
	successes, failures := 0, 0
	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			failures++
			sink.Warning(which, progress.PhaseTables, fmt.Sprintf("DDL statement failed: %v", err))
			continue
		}
		successes++
	}
	sink.Warning(which, progress.PhaseTables, fmt.Sprintf("materialized DDL script: %d succeeded, %d failed", successes, failures))
	return nil
}

// dialExec opens a plain database/sql connection for executing DDL, using
// the same driver each Extractor is built on (pgx's database/sql adapter
// for PostgreSQL, since extract.Postgres itself talks pgxpool directly).
func dialExec(dialect string, conn config.SideConfig) (*sql.DB, error) {
	switch dialect {
	case "postgres":
		dsn := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable", conn.Username, conn.Password, conn.Host, conn.Port, conn.Database)
		return sql.Open("pgx", dsn)
	case "mysql":
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s", conn.Username, conn.Password, conn.Host, conn.Port, conn.Database)
		return sql.Open("mysql", dsn)
	case "mssql":
		dsn := fmt.Sprintf("sqlserver://%s:%s@%s:%d?database=%s", conn.Username, conn.Password, conn.Host, conn.Port, conn.Database)
		return sql.Open("sqlserver", dsn)
	case "oracle":
		dsn := fmt.Sprintf("oracle://%s:%s@%s:%d/%s", conn.Username, conn.Password, conn.Host, conn.Port, conn.Database)
		return sql.Open("oracle", dsn)
	case "db2":
		dsn := fmt.Sprintf("HOSTNAME=%s;PORT=%d;DATABASE=%s;UID=%s;PWD=%s", conn.Host, conn.Port, conn.Database, conn.Username, conn.Password)
		return sql.Open("go_ibm_db", dsn)
	default:
		return nil, fmt.Errorf("materialize: unsupported dialect %q", dialect)
	}
}
