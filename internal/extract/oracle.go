package extract

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"regexp"
	"strings"

	_ "github.com/sijms/go-ora/v2"

	"github.com/atoreson/schemadiff/internal/config"
	"github.com/atoreson/schemadiff/internal/model"
	"github.com/atoreson/schemadiff/internal/progress"
	"github.com/atoreson/schemadiff/internal/signature"
	"github.com/atoreson/schemadiff/internal/typenorm"
)

// Oracle implements Extractor for Oracle via the ALL_* data dictionary
// views named in spec §4.1's Oracle paragraph. The driver and the
// single-pinned-connection shape are carried over from the teacher's
// discovery.Oracle; the catalog queries are rebuilt against ALL_TAB_COLUMNS
// et al. rather than the teacher's schema.Schema model.
type Oracle struct {
	cfg      *config.SideConfig
	db       *sql.DB
	conn     *sql.Conn
	owner    string
	verbatim *typenorm.VerbatimFunctions
}

func NewOracle(cfg *config.SideConfig) (*Oracle, error) {
	o := cfg.Schema
	if o != "" {
		o = strings.ToUpper(o)
	}
	return &Oracle{cfg: cfg, owner: o, verbatim: typenorm.DefaultVerbatimFunctions("oracle")}, nil
}

func (o *Oracle) Connect(ctx context.Context) error {
	connStr := fmt.Sprintf("oracle://%s:%s@%s:%d/%s", o.cfg.Username, o.cfg.Password, o.cfg.Host, o.cfg.Port, o.cfg.Database)

	db, err := sql.Open("oracle", connStr)
	if err != nil {
		return fmt.Errorf("opening Oracle connection: %w", err)
	}
	db.SetMaxOpenConns(1)

	conn, err := db.Conn(ctx)
	if err != nil {
		db.Close()
		return fmt.Errorf("acquiring Oracle connection: %w", err)
	}
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		db.Close()
		return fmt.Errorf("pinging Oracle: %w", err)
	}

	if o.owner == "" {
		if err := conn.QueryRowContext(ctx, "SELECT USER FROM DUAL").Scan(&o.owner); err != nil {
			conn.Close()
			db.Close()
			return fmt.Errorf("resolving current Oracle user: %w", err)
		}
		o.owner = strings.ToUpper(o.owner)
	}

	// Execution envelope (spec §4.1): Oracle gets READ COMMITTED, same as
	// SQL Server and DB2 — no consistent-snapshot equivalent is requested.
	if _, err := conn.ExecContext(ctx, "SET TRANSACTION ISOLATION LEVEL READ COMMITTED"); err != nil {
		conn.Close()
		db.Close()
		return fmt.Errorf("setting isolation level: %w", err)
	}

	o.db = db
	o.conn = conn
	return nil
}

func (o *Oracle) Close() error {
	if o.conn != nil {
		_, _ = o.conn.ExecContext(context.Background(), "COMMIT")
		o.conn.Close()
		o.conn = nil
	}
	if o.db != nil {
		o.db.Close()
		o.db = nil
	}
	return nil
}

func (o *Oracle) Extract(ctx context.Context, sink progress.Sink, side progress.Side) (*model.DatabaseMetadata, error) {
	if sink == nil {
		sink = progress.NopSink{}
	}
	if o.conn == nil {
		return nil, fmt.Errorf("extract: not connected; call Connect first")
	}

	md := model.New("oracle", o.owner)
	tableMap := make(map[string]*model.Table)

	if err := runPhase(ctx, sink, side, progress.PhaseTables, "oracle", func(ctx context.Context) (int, error) {
		return o.extractTables(ctx, md, tableMap)
	}); err != nil {
		return nil, err
	}
	if err := runPhase(ctx, sink, side, progress.PhaseColumns, "oracle", func(ctx context.Context) (int, error) {
		return o.extractColumns(ctx, tableMap)
	}); err != nil {
		return nil, err
	}
	if err := runPhase(ctx, sink, side, progress.PhaseConstraints, "oracle", func(ctx context.Context) (int, error) {
		return o.extractConstraints(ctx, tableMap)
	}); err != nil {
		return nil, err
	}
	if err := runPhase(ctx, sink, side, progress.PhaseIndexes, "oracle", func(ctx context.Context) (int, error) {
		return o.extractIndexes(ctx, tableMap)
	}); err != nil {
		return nil, err
	}

	// Oracle exposes no auto-increment column attribute; it must be derived
	// by scanning BEFORE EACH ROW INSERT trigger bodies for the sequence
	// NEXTVAL assigned into :NEW.<column>. This is transient: the trigger
	// itself is never persisted into md (model.Trigger.Body is yaml:"-"/
	// json:"-" for exactly this reason).
	if err := o.deriveAutoIncrement(ctx, tableMap); err != nil {
		return nil, fmt.Errorf("deriving auto-increment columns: %w", err)
	}

	for _, t := range tableMap {
		signature.Assign(t)
		if len(t.Columns) == 0 {
			sink.Warning(side, progress.PhaseColumns, fmt.Sprintf("table %s has zero columns", t.Name))
		}
	}

	return md, nil
}

func (o *Oracle) extractTables(ctx context.Context, md *model.DatabaseMetadata, tableMap map[string]*model.Table) (int, error) {
	query := `
		SELECT t.table_name, COALESCE(c.comments, '')
		FROM ALL_TABLES t
		LEFT JOIN ALL_TAB_COMMENTS c ON c.owner = t.owner AND c.table_name = t.table_name
		WHERE t.owner = :owner AND t.nested = 'NO'
		ORDER BY t.table_name`
	rows, err := o.conn.QueryContext(ctx, query, o.owner)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	n := 0
	for rows.Next() {
		t := &model.Table{}
		if err := rows.Scan(&t.Name, &t.Comment); err != nil {
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

func (o *Oracle) extractColumns(ctx context.Context, tableMap map[string]*model.Table) (int, error) {
	query := `
		SELECT c.table_name, c.column_name, c.data_type, c.data_precision, c.data_scale,
			c.nullable, c.column_id, c.data_default, COALESCE(cc.comments, '')
		FROM ALL_TAB_COLUMNS c
		LEFT JOIN ALL_COL_COMMENTS cc ON cc.owner = c.owner AND cc.table_name = c.table_name AND cc.column_name = c.column_name
		WHERE c.owner = :owner
		ORDER BY c.table_name, c.column_id`
	rows, err := o.conn.QueryContext(ctx, query, o.owner)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	n := 0
	for rows.Next() {
		var (
			tableName, colName, dataType string
			precision, scale             *int
			nullableFlag                 string
			ordinal                      int
			defaultVal                   *string
			comment                      string
		)
		if err := rows.Scan(&tableName, &colName, &dataType, &precision, &scale,
			&nullableFlag, &ordinal, &defaultVal, &comment); err != nil {
			return n, err
		}
		t, ok := tableMap[tableName]
		if !ok {
			continue
		}
		col := &model.Column{
			Name:            colName,
			DataType:        typenorm.OracleDataType(dataType, precision, scale),
			Nullable:        nullableFlag == "Y",
			OrdinalPosition: ordinal,
			Comment:         comment,
		}
		if defaultVal != nil {
			col.DefaultValue = typenorm.NormalizeDefault(*defaultVal, "oracle", o.verbatim)
		}
		t.Columns = append(t.Columns, col)
		n++
	}
	return n, rows.Err()
}

func (o *Oracle) extractConstraints(ctx context.Context, tableMap map[string]*model.Table) (int, error) {
	n := 0
	if c, err := o.extractKeyConstraints(ctx, tableMap, "P"); err != nil {
		return n, err
	} else {
		n += c
	}
	if c, err := o.extractKeyConstraints(ctx, tableMap, "U"); err != nil {
		return n, err
	} else {
		n += c
	}
	if c, err := o.extractForeignKeys(ctx, tableMap); err != nil {
		return n, err
	} else {
		n += c
	}
	if c, err := o.extractChecks(ctx, tableMap); err != nil {
		return n, err
	} else {
		n += c
	}
	return n, nil
}

func (o *Oracle) extractKeyConstraints(ctx context.Context, tableMap map[string]*model.Table, consType string) (int, error) {
	query := `
		SELECT cons.table_name, cons.constraint_name, cc.column_name, cc.position
		FROM ALL_CONSTRAINTS cons
		JOIN ALL_CONS_COLUMNS cc ON cc.owner = cons.owner AND cc.constraint_name = cons.constraint_name
		WHERE cons.owner = :owner AND cons.constraint_type = :ctype
		ORDER BY cons.table_name, cons.constraint_name, cc.position`
	rows, err := o.conn.QueryContext(ctx, query, o.owner, consType)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	type key struct{ table, name string }
	grouped := map[key][]string{}
	var order []key
	n := 0
	for rows.Next() {
		var table, name, col string
		var pos int
		if err := rows.Scan(&table, &name, &col, &pos); err != nil {
			return n, err
		}
		k := key{table, name}
		if _, ok := grouped[k]; !ok {
			order = append(order, k)
		}
		grouped[k] = append(grouped[k], col)
		n++
	}
	if err := rows.Err(); err != nil {
		return n, err
	}
	for _, k := range order {
		t, ok := tableMap[k.table]
		if !ok {
			continue
		}
		if consType == "P" {
			pk := &model.PrimaryKeyConstraint{Columns: grouped[k]}
			pk.Name = k.name
			t.Constraints = append(t.Constraints, pk)
		} else {
			uq := &model.UniqueConstraint{Columns: grouped[k]}
			uq.Name = k.name
			t.Constraints = append(t.Constraints, uq)
		}
	}
	return n, nil
}

func (o *Oracle) extractForeignKeys(ctx context.Context, tableMap map[string]*model.Table) (int, error) {
	query := `
		SELECT cons.table_name, cons.constraint_name, cc.column_name, cc.position,
			rcons.table_name, rcc.column_name, cons.delete_rule
		FROM ALL_CONSTRAINTS cons
		JOIN ALL_CONS_COLUMNS cc ON cc.owner = cons.owner AND cc.constraint_name = cons.constraint_name
		JOIN ALL_CONSTRAINTS rcons ON rcons.owner = cons.r_owner AND rcons.constraint_name = cons.r_constraint_name
		JOIN ALL_CONS_COLUMNS rcc ON rcc.owner = rcons.owner AND rcc.constraint_name = rcons.constraint_name AND rcc.position = cc.position
		WHERE cons.owner = :owner AND cons.constraint_type = 'R'
		ORDER BY cons.table_name, cons.constraint_name, cc.position`
	rows, err := o.conn.QueryContext(ctx, query, o.owner)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	type key struct{ table, name string }
	grouped := map[key]*model.ForeignKeyConstraint{}
	var order []key
	n := 0
	for rows.Next() {
		var table, name, col, refTable, refCol, delRule string
		var pos int
		if err := rows.Scan(&table, &name, &col, &pos, &refTable, &refCol, &delRule); err != nil {
			return n, err
		}
		k := key{table, name}
		fk, ok := grouped[k]
		if !ok {
			fk = &model.ForeignKeyConstraint{
				ReferencedTable: refTable,
				OnDelete:        delRule,
				// Oracle has no FK UPDATE rule concept; the catalog never
				// reports one, so this is always NO ACTION.
				OnUpdate: "NO ACTION",
			}
			fk.Name = name
			grouped[k] = fk
			order = append(order, k)
		}
		fk.Columns = append(fk.Columns, col)
		fk.ReferencedColumns = append(fk.ReferencedColumns, refCol)
		n++
	}
	if err := rows.Err(); err != nil {
		return n, err
	}
	for _, k := range order {
		if t, ok := tableMap[k.table]; ok {
			t.Constraints = append(t.Constraints, grouped[k])
		}
	}
	return n, nil
}

func (o *Oracle) extractChecks(ctx context.Context, tableMap map[string]*model.Table) (int, error) {
	query := `
		SELECT table_name, constraint_name, search_condition
		FROM ALL_CONSTRAINTS
		WHERE owner = :owner AND constraint_type = 'C' AND generated = 'USER NAME'
		ORDER BY table_name, constraint_name`
	rows, err := o.conn.QueryContext(ctx, query, o.owner)
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
		// Oracle auto-generates a NOT NULL check for every NOT NULL column;
		// those are not structural CHECK constraints for comparison purposes.
		if strings.HasSuffix(strings.TrimSpace(strings.ToUpper(clause)), "IS NOT NULL") {
			continue
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

func (o *Oracle) extractIndexes(ctx context.Context, tableMap map[string]*model.Table) (int, error) {
	query := `
		SELECT i.table_name, i.index_name, i.uniqueness, i.index_type, ic.column_name
		FROM ALL_INDEXES i
		JOIN ALL_IND_COLUMNS ic ON ic.index_owner = i.owner AND ic.index_name = i.index_name
		WHERE i.owner = :owner
			AND NOT EXISTS (
				SELECT 1 FROM ALL_CONSTRAINTS cons
				WHERE cons.owner = i.owner AND cons.constraint_name = i.index_name
					AND cons.constraint_type IN ('P', 'U')
			)
		ORDER BY i.table_name, i.index_name, ic.column_position`
	rows, err := o.conn.QueryContext(ctx, query, o.owner)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	type key struct{ table, name string }
	grouped := map[key]*model.Index{}
	var order []key
	n := 0
	for rows.Next() {
		var table, name, uniqueness, idxType, col string
		if err := rows.Scan(&table, &name, &uniqueness, &idxType, &col); err != nil {
			return n, err
		}
		k := key{table, name}
		idx, ok := grouped[k]
		if !ok {
			idx = &model.Index{Name: name, Unique: uniqueness == "UNIQUE", Type: oracleIndexType(idxType)}
			grouped[k] = idx
			order = append(order, k)
		}
		idx.Columns = append(idx.Columns, col)
		n++
	}
	if err := rows.Err(); err != nil {
		return n, err
	}
	for _, k := range order {
		if t, ok := tableMap[k.table]; ok {
			t.Indexes = append(t.Indexes, grouped[k])
		}
	}
	return n, nil
}

func oracleIndexType(raw string) model.IndexType {
	switch strings.ToUpper(raw) {
	case "BITMAP":
		return model.IndexBitmap
	case "FUNCTION-BASED NORMAL", "FUNCTION-BASED BITMAP":
		return model.IndexFunctional
	default:
		return model.IndexNormal
	}
}

// autoIncrementColumn finds the :NEW column assigned a sequence NEXTVAL in
// a BEFORE EACH ROW INSERT trigger body, isolated as a pure function so it
// can be exercised without a live connection.
var autoIncrementPattern = regexp.MustCompile(`(?is)INTO\s+:NEW\.(\w+)`)

func autoIncrementColumn(body string) (string, bool) {
	if !strings.Contains(strings.ToUpper(body), "NEXTVAL") {
		return "", false
	}
	m := autoIncrementPattern.FindStringSubmatch(body)
	if m == nil {
		return "", false
	}
	return m[1], true
}

func (o *Oracle) deriveAutoIncrement(ctx context.Context, tableMap map[string]*model.Table) error {
	query := `
		SELECT trigger_name, table_name, triggering_event
		FROM ALL_TRIGGERS
		WHERE owner = :owner AND trigger_type = 'BEFORE EACH ROW'`
	rows, err := o.conn.QueryContext(ctx, query, o.owner)
	if err != nil {
		return err
	}
	defer rows.Close()

	type trig struct{ name, table string }
	var candidates []trig
	for rows.Next() {
		var name, table, event string
		if err := rows.Scan(&name, &table, &event); err != nil {
			return err
		}
		if !strings.Contains(strings.ToUpper(event), "INSERT") {
			continue
		}
		candidates = append(candidates, trig{name, table})
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, c := range candidates {
		t, ok := tableMap[c.table]
		if !ok {
			continue
		}
		body, err := o.triggerBody(ctx, c.name)
		if err != nil {
			return err
		}
		colName, found := autoIncrementColumn(body)
		if !found {
			continue
		}
		if col, ok := t.ColumnByNameCI(colName); ok {
			col.AutoIncrement = true
		}
	}
	return nil
}

// triggerBody reads a trigger's LONG source column, which go-ora surfaces
// as a streamable value, into a single string.
func (o *Oracle) triggerBody(ctx context.Context, name string) (string, error) {
	query := `SELECT trigger_body FROM ALL_TRIGGERS WHERE owner = :owner AND trigger_name = :name`
	row := o.conn.QueryRowContext(ctx, query, o.owner, name)
	var body sql.NullString
	if err := row.Scan(&body); err != nil {
		if err == io.EOF || err == sql.ErrNoRows {
			return "", nil
		}
		return "", err
	}
	return body.String, nil
}

var _ Extractor = (*Oracle)(nil)
