package extract

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atoreson/schemadiff/internal/config"
	"github.com/atoreson/schemadiff/internal/model"
	"github.com/atoreson/schemadiff/internal/progress"
	"github.com/atoreson/schemadiff/internal/retry"
	"github.com/atoreson/schemadiff/internal/signature"
	"github.com/atoreson/schemadiff/internal/typenorm"
)

// Postgres implements Extractor for PostgreSQL, grounded on the teacher's
// discovery.Postgres (a single pooled connection, information_schema +
// pg_catalog queries, grouped-by-constraint-name aggregation), extended
// with sequences/functions/triggers per spec §4.1's PostgreSQL paragraph.
type Postgres struct {
	cfg      *config.SideConfig
	pool     *pgxpool.Pool
	conn     *pgxpool.Conn
	schema   string
	verbatim *typenorm.VerbatimFunctions
}

// NewPostgres creates a PostgreSQL extractor for the given side.
func NewPostgres(cfg *config.SideConfig) (*Postgres, error) {
	s := cfg.Schema
	if s == "" {
		s = config.DefaultSchema("postgres")
	}
	return &Postgres{cfg: cfg, schema: s, verbatim: typenorm.DefaultVerbatimFunctions("postgres")}, nil
}

func (p *Postgres) Connect(ctx context.Context) error {
	sslMode := "disable"
	if p.cfg.SSL {
		sslMode = "require"
	}
	connStr := fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s default_query_exec_mode=simple_protocol",
		p.cfg.Host, p.cfg.Port, p.cfg.Database, p.cfg.Username, p.cfg.Password, sslMode,
	)

	poolCfg, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return fmt.Errorf("parsing connection string: %w", err)
	}
	poolCfg.MaxConns = 1 // extraction runs inside a single consistent-snapshot transaction

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return fmt.Errorf("connecting to PostgreSQL: %w", err)
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		pool.Close()
		return fmt.Errorf("acquiring PostgreSQL connection: %w", err)
	}

	// Execution envelope (spec §4.1): REPEATABLE READ, read-only, for the
	// duration of the whole extraction.
	if _, err := conn.Exec(ctx, "BEGIN ISOLATION LEVEL REPEATABLE READ READ ONLY"); err != nil {
		conn.Release()
		pool.Close()
		return fmt.Errorf("starting consistent-read transaction: %w", err)
	}

	p.pool = pool
	p.conn = conn
	return nil
}

func (p *Postgres) Close() error {
	if p.conn != nil {
		_, _ = p.conn.Exec(context.Background(), "COMMIT")
		p.conn.Release()
		p.conn = nil
	}
	if p.pool != nil {
		p.pool.Close()
		p.pool = nil
	}
	return nil
}

func (p *Postgres) Extract(ctx context.Context, sink progress.Sink, side progress.Side) (*model.DatabaseMetadata, error) {
	if sink == nil {
		sink = progress.NopSink{}
	}
	if p.conn == nil {
		return nil, fmt.Errorf("extract: not connected; call Connect first")
	}

	md := model.New("postgres", p.schema)
	tableMap := make(map[string]*model.Table)

	if err := p.runPhase(ctx, sink, side, progress.PhaseTables, func(ctx context.Context) (int, error) {
		names, err := p.extractTables(ctx, md, tableMap)
		return names, err
	}); err != nil {
		return nil, err
	}

	if err := p.runPhase(ctx, sink, side, progress.PhaseColumns, func(ctx context.Context) (int, error) {
		return p.extractColumns(ctx, tableMap)
	}); err != nil {
		return nil, err
	}

	if err := p.runPhase(ctx, sink, side, progress.PhaseConstraints, func(ctx context.Context) (int, error) {
		return p.extractConstraints(ctx, tableMap)
	}); err != nil {
		return nil, err
	}

	if err := p.runPhase(ctx, sink, side, progress.PhaseIndexes, func(ctx context.Context) (int, error) {
		return p.extractIndexes(ctx, tableMap)
	}); err != nil {
		return nil, err
	}

	for _, t := range tableMap {
		signature.Assign(t)
		if len(t.Columns) == 0 {
			sink.Warning(side, progress.PhaseColumns, fmt.Sprintf("table %s has zero columns", t.Name))
		}
	}

	if err := p.extractSequences(ctx, md); err != nil {
		return nil, fmt.Errorf("extracting sequences: %w", err)
	}
	if err := p.extractFunctions(ctx, md); err != nil {
		return nil, fmt.Errorf("extracting functions: %w", err)
	}
	if err := p.extractTriggers(ctx, md); err != nil {
		return nil, fmt.Errorf("extracting triggers: %w", err)
	}

	return md, nil
}

// runPhase wraps a phase function with start/complete sink events and the
// retry envelope.
func (p *Postgres) runPhase(ctx context.Context, sink progress.Sink, side progress.Side, phase progress.Phase, fn func(ctx context.Context) (int, error)) error {
	sink.PhaseStart(side, phase)
	start := time.Now()
	var count int
	err := retry.Do(ctx, retry.ForDialect("postgres"), func(ctx context.Context) error {
		qctx, cancel := context.WithTimeout(ctx, 300*time.Second)
		defer cancel()
		n, err := fn(qctx)
		count = n
		return err
	})
	if err != nil {
		return fmt.Errorf("phase %s: %w", phase, err)
	}
	sink.PhaseComplete(side, phase, count, time.Since(start))
	return nil
}

func (p *Postgres) extractTables(ctx context.Context, md *model.DatabaseMetadata, tableMap map[string]*model.Table) (int, error) {
	query := `
		SELECT
			c.relname,
			COALESCE(obj_description(c.oid, 'pg_class'), ''),
			GREATEST(c.reltuples::bigint, 0)
		FROM pg_class c
		JOIN pg_namespace n ON n.oid = c.relnamespace
		WHERE n.nspname = $1 AND c.relkind = 'r'
		ORDER BY c.relname`

	rows, err := p.conn.Query(ctx, query, p.schema)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	n := 0
	for rows.Next() {
		t := &model.Table{}
		if err := rows.Scan(&t.Name, &t.Comment, &t.RowEstimate); err != nil {
			return n, err
		}
		tableMap[t.Name] = t
		if err := md.AddTable(t); err != nil {
			return n, err
		}
		n++
	}
	return n, rows.Err()
}

func (p *Postgres) extractColumns(ctx context.Context, tableMap map[string]*model.Table) (int, error) {
	query := `
		SELECT
			table_name, column_name, data_type, is_nullable, column_default,
			character_maximum_length, numeric_precision, numeric_scale,
			ordinal_position, character_set_name, collation_name
		FROM information_schema.columns
		WHERE table_schema = $1 AND table_name = ANY($2)
		ORDER BY table_name, ordinal_position`

	rows, err := p.conn.Query(ctx, query, p.schema, tableNames(tableMap))
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	n := 0
	for rows.Next() {
		var (
			tableName, colName, dataType, nullable string
			defaultVal                              *string
			maxLen, precision, scale                *int64
			ordinal                                 int
			charset, collation                      *string
		)
		if err := rows.Scan(&tableName, &colName, &dataType, &nullable, &defaultVal,
			&maxLen, &precision, &scale, &ordinal, &charset, &collation); err != nil {
			return n, err
		}
		t, ok := tableMap[tableName]
		if !ok {
			continue // row for a table we did not enumerate; skipped without a warning
		}

		col := &model.Column{
			Name:            colName,
			DataType:        typenorm.PostgresDataType(formatPGType(dataType, maxLen, precision, scale)),
			Nullable:        nullable == "YES",
			OrdinalPosition: ordinal,
		}
		if charset != nil {
			col.CharacterSet = *charset
		}
		if collation != nil {
			col.Collation = *collation
		}
		if defaultVal != nil {
			col.DefaultValue = typenorm.NormalizeDefault(*defaultVal, "postgres", p.verbatim)
			col.AutoIncrement = strings.HasPrefix(strings.TrimSpace(*defaultVal), "nextval(")
		}
		t.Columns = append(t.Columns, col)
		n++
	}
	return n, rows.Err()
}

// formatPGType appends a length/precision fragment to PostgreSQL's own
// information_schema type name when one applies; most types (timestamp
// without time zone, text, boolean, ...) have none and pass through as-is.
func formatPGType(dataType string, maxLen, precision, scale *int64) string {
	switch {
	case maxLen != nil:
		return fmt.Sprintf("%s(%d)", dataType, *maxLen)
	case precision != nil && scale != nil && *scale > 0:
		return fmt.Sprintf("%s(%d,%d)", dataType, *precision, *scale)
	case precision != nil && strings.Contains(dataType, "numeric"):
		return fmt.Sprintf("%s(%d)", dataType, *precision)
	default:
		return dataType
	}
}

type pgConstraintRow struct {
	table, name, kind, column, refTable, refColumn, deleteRule, updateRule, checkClause string
	position                                                                            int
}

func (p *Postgres) extractConstraints(ctx context.Context, tableMap map[string]*model.Table) (int, error) {
	n := 0
	if c, err := p.extractPrimaryKeys(ctx, tableMap); err != nil {
		return n, err
	} else {
		n += c
	}
	if c, err := p.extractUniques(ctx, tableMap); err != nil {
		return n, err
	} else {
		n += c
	}
	if c, err := p.extractForeignKeys(ctx, tableMap); err != nil {
		return n, err
	} else {
		n += c
	}
	if c, err := p.extractChecks(ctx, tableMap); err != nil {
		return n, err
	} else {
		n += c
	}
	return n, nil
}

func (p *Postgres) extractPrimaryKeys(ctx context.Context, tableMap map[string]*model.Table) (int, error) {
	query := `
		SELECT tc.table_name, tc.constraint_name, kcu.column_name, kcu.ordinal_position
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
		  ON tc.constraint_name = kcu.constraint_name AND tc.table_schema = kcu.table_schema
		WHERE tc.constraint_type = 'PRIMARY KEY' AND tc.table_schema = $1 AND tc.table_name = ANY($2)
		ORDER BY tc.table_name, kcu.ordinal_position`
	rows, err := p.conn.Query(ctx, query, p.schema, tableNames(tableMap))
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	grouped := map[string]*model.PrimaryKeyConstraint{}
	var order []string
	tableOf := map[string]string{}
	n := 0
	for rows.Next() {
		var table, name, col string
		var pos int
		if err := rows.Scan(&table, &name, &col, &pos); err != nil {
			return n, err
		}
		key := table + "\x00" + name
		pk, ok := grouped[key]
		if !ok {
			pk = &model.PrimaryKeyConstraint{}
			pk.Name = name
			grouped[key] = pk
			order = append(order, key)
			tableOf[key] = table
		}
		pk.Columns = append(pk.Columns, col)
		n++
	}
	if err := rows.Err(); err != nil {
		return n, err
	}
	for _, key := range order {
		if t, ok := tableMap[tableOf[key]]; ok {
			t.Constraints = append(t.Constraints, grouped[key])
		}
	}
	return n, nil
}

func (p *Postgres) extractUniques(ctx context.Context, tableMap map[string]*model.Table) (int, error) {
	query := `
		SELECT tc.table_name, tc.constraint_name, kcu.column_name, kcu.ordinal_position
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
		  ON tc.constraint_name = kcu.constraint_name AND tc.table_schema = kcu.table_schema
		WHERE tc.constraint_type = 'UNIQUE' AND tc.table_schema = $1 AND tc.table_name = ANY($2)
		ORDER BY tc.table_name, tc.constraint_name, kcu.ordinal_position`
	rows, err := p.conn.Query(ctx, query, p.schema, tableNames(tableMap))
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	grouped := map[string]*model.UniqueConstraint{}
	var order []string
	tableOf := map[string]string{}
	n := 0
	for rows.Next() {
		var table, name, col string
		var pos int
		if err := rows.Scan(&table, &name, &col, &pos); err != nil {
			return n, err
		}
		key := table + "\x00" + name
		uq, ok := grouped[key]
		if !ok {
			uq = &model.UniqueConstraint{}
			uq.Name = name
			grouped[key] = uq
			order = append(order, key)
			tableOf[key] = table
		}
		uq.Columns = append(uq.Columns, col)
		n++
	}
	if err := rows.Err(); err != nil {
		return n, err
	}
	for _, key := range order {
		if t, ok := tableMap[tableOf[key]]; ok {
			t.Constraints = append(t.Constraints, grouped[key])
		}
	}
	return n, nil
}

func (p *Postgres) extractForeignKeys(ctx context.Context, tableMap map[string]*model.Table) (int, error) {
	query := `
		SELECT
			tc.table_name, tc.constraint_name, kcu.column_name,
			ccu.table_name, ccu.column_name,
			rc.delete_rule, rc.update_rule, kcu.ordinal_position
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
		  ON tc.constraint_name = kcu.constraint_name AND tc.table_schema = kcu.table_schema
		JOIN information_schema.constraint_column_usage ccu
		  ON tc.constraint_name = ccu.constraint_name AND tc.table_schema = ccu.table_schema
		JOIN information_schema.referential_constraints rc
		  ON tc.constraint_name = rc.constraint_name AND tc.table_schema = rc.constraint_schema
		WHERE tc.constraint_type = 'FOREIGN KEY' AND tc.table_schema = $1 AND tc.table_name = ANY($2)
		ORDER BY tc.table_name, tc.constraint_name, kcu.ordinal_position`
	rows, err := p.conn.Query(ctx, query, p.schema, tableNames(tableMap))
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	grouped := map[string]*model.ForeignKeyConstraint{}
	var order []string
	tableOf := map[string]string{}
	n := 0
	for rows.Next() {
		var table, name, col, refTable, refCol, delRule, updRule string
		var pos int
		if err := rows.Scan(&table, &name, &col, &refTable, &refCol, &delRule, &updRule, &pos); err != nil {
			return n, err
		}
		key := table + "\x00" + name
		fk, ok := grouped[key]
		if !ok {
			fk = &model.ForeignKeyConstraint{ReferencedTable: refTable, OnDelete: delRule, OnUpdate: updRule}
			fk.Name = name
			grouped[key] = fk
			order = append(order, key)
			tableOf[key] = table
		}
		fk.Columns = append(fk.Columns, col)
		fk.ReferencedColumns = append(fk.ReferencedColumns, refCol)
		n++
	}
	if err := rows.Err(); err != nil {
		return n, err
	}
	for _, key := range order {
		if t, ok := tableMap[tableOf[key]]; ok {
			t.Constraints = append(t.Constraints, grouped[key])
		}
	}
	return n, nil
}

func (p *Postgres) extractChecks(ctx context.Context, tableMap map[string]*model.Table) (int, error) {
	query := `
		SELECT tc.table_name, tc.constraint_name, cc.check_clause
		FROM information_schema.table_constraints tc
		JOIN information_schema.check_constraints cc
		  ON tc.constraint_name = cc.constraint_name AND tc.constraint_schema = cc.constraint_schema
		WHERE tc.constraint_type = 'CHECK' AND tc.table_schema = $1 AND tc.table_name = ANY($2)
		  AND tc.constraint_name NOT LIKE '%_not_null'
		ORDER BY tc.table_name, tc.constraint_name`
	rows, err := p.conn.Query(ctx, query, p.schema, tableNames(tableMap))
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	n := 0
	for rows.Next() {
		var table, name, clause string
		if err := rows.Scan(&table, &name, &clause); err != nil {
			return n, err
		}
		t, ok := tableMap[table]
		if !ok {
			continue
		}
		ck := &model.CheckConstraint{Clause: clause}
		ck.Name = name
		t.Constraints = append(t.Constraints, ck)
		n++
	}
	return n, rows.Err()
}

func (p *Postgres) extractIndexes(ctx context.Context, tableMap map[string]*model.Table) (int, error) {
	query := `
		SELECT t.relname, i.relname, ix.indisunique, am.amname, a.attname
		FROM pg_index ix
		JOIN pg_class t ON t.oid = ix.indrelid
		JOIN pg_class i ON i.oid = ix.indexrelid
		JOIN pg_namespace n ON n.oid = t.relnamespace
		JOIN pg_am am ON am.oid = i.relam
		JOIN pg_attribute a ON a.attrelid = t.oid AND a.attnum = ANY(ix.indkey)
		WHERE n.nspname = $1 AND t.relname = ANY($2)
		  AND NOT ix.indisprimary
		  AND NOT EXISTS (
		    SELECT 1 FROM pg_constraint con
		    WHERE con.conname = i.relname AND con.contype = 'u'
		  )
		ORDER BY t.relname, i.relname, array_position(ix.indkey, a.attnum)`
	rows, err := p.conn.Query(ctx, query, p.schema, tableNames(tableMap))
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	grouped := map[string]*model.Index{}
	var order []string
	tableOf := map[string]string{}
	n := 0
	for rows.Next() {
		var table, name, amName, col string
		var unique bool
		if err := rows.Scan(&table, &name, &unique, &amName, &col); err != nil {
			return n, err
		}
		key := table + "\x00" + name
		idx, ok := grouped[key]
		if !ok {
			idx = &model.Index{Name: name, Unique: unique, Type: pgIndexType(amName)}
			grouped[key] = idx
			order = append(order, key)
			tableOf[key] = table
		}
		idx.Columns = append(idx.Columns, col)
		n++
	}
	if err := rows.Err(); err != nil {
		return n, err
	}
	for _, key := range order {
		if t, ok := tableMap[tableOf[key]]; ok {
			t.Indexes = append(t.Indexes, grouped[key])
		}
	}
	return n, nil
}

func pgIndexType(amName string) model.IndexType {
	switch strings.ToLower(amName) {
	case "btree":
		return model.IndexBTree
	case "hash":
		return model.IndexHash
	case "gin":
		return model.IndexGIN
	case "gist":
		return model.IndexGIST
	case "brin":
		return model.IndexBRIN
	case "spgist":
		return model.IndexSPGIST
	default:
		return model.IndexNormal
	}
}

func (p *Postgres) extractSequences(ctx context.Context, md *model.DatabaseMetadata) error {
	query := `
		SELECT sequence_name, start_value::bigint, increment::bigint,
			minimum_value::bigint, maximum_value::bigint, cycle_option
		FROM information_schema.sequences
		WHERE sequence_schema = $1
		ORDER BY sequence_name`
	rows, err := p.conn.Query(ctx, query, p.schema)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var s model.Sequence
		var cycleOpt string
		if err := rows.Scan(&s.Name, &s.Start, &s.Increment, &s.MinValue, &s.MaxValue, &cycleOpt); err != nil {
			return err
		}
		s.Cycle = cycleOpt == "YES"
		md.Sequences[s.Name] = &s
	}
	return rows.Err()
}

func (p *Postgres) extractFunctions(ctx context.Context, md *model.DatabaseMetadata) error {
	query := `
		SELECT p.proname, pg_get_function_result(p.oid), l.lanname,
			COALESCE(p.prosrc, ''), pg_get_function_identity_arguments(p.oid),
			p.provolatile, p.proisstrict, p.prosecdef
		FROM pg_proc p
		JOIN pg_namespace n ON n.oid = p.pronamespace
		JOIN pg_language l ON l.oid = p.prolang
		WHERE n.nspname = $1
		ORDER BY p.proname`
	rows, err := p.conn.Query(ctx, query, p.schema)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var f model.Function
		var volatility string
		var secdef bool
		if err := rows.Scan(&f.Name, &f.ReturnType, &f.Language, &f.Body, &f.ArgumentSignature,
			&volatility, &f.Strict, &secdef); err != nil {
			return err
		}
		f.Schema = p.schema
		f.Volatility = pgVolatility(volatility)
		if secdef {
			f.SecurityType = "DEFINER"
		} else {
			f.SecurityType = "INVOKER"
		}
		md.Functions[f.Key()] = &f
	}
	return rows.Err()
}

func pgVolatility(code string) string {
	switch code {
	case "i":
		return "IMMUTABLE"
	case "s":
		return "STABLE"
	default:
		return "VOLATILE"
	}
}

func (p *Postgres) extractTriggers(ctx context.Context, md *model.DatabaseMetadata) error {
	query := `
		SELECT t.trigger_name, t.event_object_table, t.action_timing,
			t.event_manipulation, t.action_orientation, t.action_statement,
			COALESCE(pt.tgqual::text, '')
		FROM information_schema.triggers t
		JOIN pg_trigger pt ON pt.tgname = t.trigger_name
		WHERE t.trigger_schema = $1
		ORDER BY t.trigger_name, t.event_manipulation`
	rows, err := p.conn.Query(ctx, query, p.schema)
	if err != nil {
		return err
	}
	defer rows.Close()

	byName := map[string]*model.Trigger{}
	var order []string
	for rows.Next() {
		var name, table, timing, event, level, action, when string
		if err := rows.Scan(&name, &table, &timing, &event, &level, &action, &when); err != nil {
			return err
		}
		tr, ok := byName[name]
		if !ok {
			tr = &model.Trigger{Name: name, Table: table, Timing: timing, Level: level, TargetFunc: action, WhenCondition: when}
			byName[name] = tr
			order = append(order, name)
		}
		switch event {
		case "INSERT":
			tr.Events |= model.EventInsert
		case "UPDATE":
			tr.Events |= model.EventUpdate
		case "DELETE":
			tr.Events |= model.EventDelete
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}
	sort.Strings(order)
	for _, name := range order {
		md.Triggers[name] = byName[name]
	}
	return nil
}

func tableNames(tableMap map[string]*model.Table) []string {
	names := make([]string, 0, len(tableMap))
	for n := range tableMap {
		names = append(names, n)
	}
	return names
}

var _ Extractor = (*Postgres)(nil)
