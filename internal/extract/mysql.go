package extract

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"github.com/atoreson/schemadiff/internal/config"
	"github.com/atoreson/schemadiff/internal/model"
	"github.com/atoreson/schemadiff/internal/progress"
	"github.com/atoreson/schemadiff/internal/retry"
	"github.com/atoreson/schemadiff/internal/signature"
	"github.com/atoreson/schemadiff/internal/typenorm"
)

// MySQL implements Extractor for MySQL/MariaDB via INFORMATION_SCHEMA,
// grounded on the teacher's discovery.Postgres shape (single pinned
// connection, grouped-by-constraint-name aggregation), adapted to MySQL's
// catalog per spec §4.1's MySQL paragraph.
type MySQL struct {
	cfg      *config.SideConfig
	db       *sql.DB
	conn     *sql.Conn
	schema   string
	verbatim *typenorm.VerbatimFunctions
}

func NewMySQL(cfg *config.SideConfig) (*MySQL, error) {
	return &MySQL{cfg: cfg, schema: cfg.Schema, verbatim: typenorm.DefaultVerbatimFunctions("mysql")}, nil
}

func (m *MySQL) Connect(ctx context.Context) error {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true", m.cfg.Username, m.cfg.Password, m.cfg.Host, m.cfg.Port, m.cfg.Database)
	if m.cfg.SSL {
		dsn += "&tls=true"
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return fmt.Errorf("opening MySQL connection: %w", err)
	}
	db.SetMaxOpenConns(1)

	conn, err := db.Conn(ctx)
	if err != nil {
		db.Close()
		return fmt.Errorf("acquiring MySQL connection: %w", err)
	}
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		db.Close()
		return fmt.Errorf("pinging MySQL: %w", err)
	}

	if m.schema == "" {
		if err := conn.QueryRowContext(ctx, "SELECT DATABASE()").Scan(&m.schema); err != nil {
			conn.Close()
			db.Close()
			return fmt.Errorf("resolving default schema: %w", err)
		}
	}

	// Execution envelope (spec §4.1): REPEATABLE READ consistent snapshot,
	// read-only, for the whole extraction.
	if _, err := conn.ExecContext(ctx, "SET SESSION TRANSACTION ISOLATION LEVEL REPEATABLE READ"); err != nil {
		conn.Close()
		db.Close()
		return fmt.Errorf("setting isolation level: %w", err)
	}
	if _, err := conn.ExecContext(ctx, "START TRANSACTION WITH CONSISTENT SNAPSHOT, READ ONLY"); err != nil {
		conn.Close()
		db.Close()
		return fmt.Errorf("starting consistent-read transaction: %w", err)
	}

	m.db = db
	m.conn = conn
	return nil
}

func (m *MySQL) Close() error {
	if m.conn != nil {
		_, _ = m.conn.ExecContext(context.Background(), "COMMIT")
		m.conn.Close()
		m.conn = nil
	}
	if m.db != nil {
		m.db.Close()
		m.db = nil
	}
	return nil
}

func (m *MySQL) Extract(ctx context.Context, sink progress.Sink, side progress.Side) (*model.DatabaseMetadata, error) {
	if sink == nil {
		sink = progress.NopSink{}
	}
	if m.conn == nil {
		return nil, fmt.Errorf("extract: not connected; call Connect first")
	}

	md := model.New("mysql", m.schema)
	tableMap := make(map[string]*model.Table)

	if err := runPhase(ctx, sink, side, progress.PhaseTables, "mysql", func(ctx context.Context) (int, error) {
		return m.extractTables(ctx, md, tableMap)
	}); err != nil {
		return nil, err
	}
	if err := runPhase(ctx, sink, side, progress.PhaseColumns, "mysql", func(ctx context.Context) (int, error) {
		return m.extractColumns(ctx, tableMap)
	}); err != nil {
		return nil, err
	}
	if err := runPhase(ctx, sink, side, progress.PhaseConstraints, "mysql", func(ctx context.Context) (int, error) {
		return m.extractConstraints(ctx, tableMap, sink, side)
	}); err != nil {
		return nil, err
	}
	if err := runPhase(ctx, sink, side, progress.PhaseIndexes, "mysql", func(ctx context.Context) (int, error) {
		return m.extractIndexes(ctx, tableMap)
	}); err != nil {
		return nil, err
	}

	for _, t := range tableMap {
		signature.Assign(t)
		if len(t.Columns) == 0 {
			sink.Warning(side, progress.PhaseColumns, fmt.Sprintf("table %s has zero columns", t.Name))
		}
	}

	return md, nil
}

func (m *MySQL) extractTables(ctx context.Context, md *model.DatabaseMetadata, tableMap map[string]*model.Table) (int, error) {
	query := `
		SELECT TABLE_NAME, TABLE_COMMENT, COALESCE(TABLE_ROWS, 0), COALESCE(ENGINE, ''), COALESCE(TABLE_COLLATION, '')
		FROM INFORMATION_SCHEMA.TABLES
		WHERE TABLE_SCHEMA = ? AND TABLE_TYPE = 'BASE TABLE'
		ORDER BY TABLE_NAME`
	rows, err := m.conn.QueryContext(ctx, query, m.schema)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	n := 0
	for rows.Next() {
		t := &model.Table{}
		if err := rows.Scan(&t.Name, &t.Comment, &t.RowEstimate, &t.Engine, &t.Collation); err != nil {
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

func (m *MySQL) extractColumns(ctx context.Context, tableMap map[string]*model.Table) (int, error) {
	query := `
		SELECT TABLE_NAME, COLUMN_NAME, DATA_TYPE, COLUMN_TYPE, IS_NULLABLE, COLUMN_DEFAULT,
			CHARACTER_MAXIMUM_LENGTH, NUMERIC_PRECISION, NUMERIC_SCALE, EXTRA, ORDINAL_POSITION,
			COALESCE(COLUMN_COMMENT, ''), CHARACTER_SET_NAME, COLLATION_NAME
		FROM INFORMATION_SCHEMA.COLUMNS
		WHERE TABLE_SCHEMA = ?
		ORDER BY TABLE_NAME, ORDINAL_POSITION`
	rows, err := m.conn.QueryContext(ctx, query, m.schema)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	n := 0
	for rows.Next() {
		var (
			tableName, colName, dataType, columnType, nullable string
			defaultVal                                          *string
			maxLen, precision, scale                            *int64
			extra, comment                                      string
			ordinal                                              int
			charset, collation                                  *string
		)
		if err := rows.Scan(&tableName, &colName, &dataType, &columnType, &nullable, &defaultVal,
			&maxLen, &precision, &scale, &extra, &ordinal, &comment, &charset, &collation); err != nil {
			return n, err
		}
		t, ok := tableMap[tableName]
		if !ok {
			continue
		}

		col := &model.Column{
			Name:            colName,
			DataType:        typenorm.MySQLDataType(dataType, maxLen, precision, scale),
			Nullable:        nullable == "YES",
			AutoIncrement:   strings.Contains(strings.ToLower(extra), "auto_increment"),
			Unsigned:        strings.Contains(strings.ToLower(columnType), "unsigned"),
			OrdinalPosition: ordinal,
			Comment:         comment,
		}
		if charset != nil {
			col.CharacterSet = *charset
		}
		if collation != nil {
			col.Collation = *collation
		}
		if defaultVal != nil {
			col.DefaultValue = typenorm.NormalizeDefault(*defaultVal, "mysql", m.verbatim)
		}
		t.Columns = append(t.Columns, col)
		n++
	}
	return n, rows.Err()
}

func (m *MySQL) extractConstraints(ctx context.Context, tableMap map[string]*model.Table, sink progress.Sink, side progress.Side) (int, error) {
	n := 0
	if c, err := m.extractKeyConstraints(ctx, tableMap, "PRIMARY KEY"); err != nil {
		return n, err
	} else {
		n += c
	}
	if c, err := m.extractKeyConstraints(ctx, tableMap, "UNIQUE"); err != nil {
		return n, err
	} else {
		n += c
	}
	if c, err := m.extractForeignKeys(ctx, tableMap); err != nil {
		return n, err
	} else {
		n += c
	}
	c, err := m.extractChecks(ctx, tableMap)
	if err != nil {
		// CHECK constraints require MySQL >= 8.0.16; error 1146 (table
		// missing, i.e. CHECK_CONSTRAINTS view absent) is swallowed.
		if strings.Contains(err.Error(), "1146") {
			sink.Warning(side, progress.PhaseConstraints, "CHECK_CONSTRAINTS unavailable (MySQL < 8.0.16); skipping")
		} else {
			return n, err
		}
	} else {
		n += c
	}
	return n, nil
}

func (m *MySQL) extractKeyConstraints(ctx context.Context, tableMap map[string]*model.Table, kind string) (int, error) {
	query := `
		SELECT tc.TABLE_NAME, tc.CONSTRAINT_NAME, kcu.COLUMN_NAME
		FROM INFORMATION_SCHEMA.TABLE_CONSTRAINTS tc
		JOIN INFORMATION_SCHEMA.KEY_COLUMN_USAGE kcu
		  ON tc.CONSTRAINT_NAME = kcu.CONSTRAINT_NAME AND tc.TABLE_SCHEMA = kcu.TABLE_SCHEMA
		WHERE tc.CONSTRAINT_TYPE = ? AND tc.TABLE_SCHEMA = ?
		ORDER BY tc.TABLE_NAME, tc.CONSTRAINT_NAME, kcu.ORDINAL_POSITION`
	rows, err := m.conn.QueryContext(ctx, query, kind, m.schema)
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
		if err := rows.Scan(&table, &name, &col); err != nil {
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
		if kind == "PRIMARY KEY" {
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

func (m *MySQL) extractForeignKeys(ctx context.Context, tableMap map[string]*model.Table) (int, error) {
	query := `
		SELECT kcu.TABLE_NAME, kcu.CONSTRAINT_NAME, kcu.COLUMN_NAME,
			kcu.REFERENCED_TABLE_NAME, kcu.REFERENCED_COLUMN_NAME,
			rc.DELETE_RULE, rc.UPDATE_RULE
		FROM INFORMATION_SCHEMA.KEY_COLUMN_USAGE kcu
		JOIN INFORMATION_SCHEMA.REFERENTIAL_CONSTRAINTS rc
		  ON kcu.CONSTRAINT_NAME = rc.CONSTRAINT_NAME AND kcu.TABLE_SCHEMA = rc.CONSTRAINT_SCHEMA
		WHERE kcu.TABLE_SCHEMA = ? AND kcu.REFERENCED_TABLE_NAME IS NOT NULL
		ORDER BY kcu.TABLE_NAME, kcu.CONSTRAINT_NAME, kcu.ORDINAL_POSITION`
	rows, err := m.conn.QueryContext(ctx, query, m.schema)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	type key struct{ table, name string }
	grouped := map[key]*model.ForeignKeyConstraint{}
	var order []key
	n := 0
	for rows.Next() {
		var table, name, col, refTable, refCol, delRule, updRule string
		if err := rows.Scan(&table, &name, &col, &refTable, &refCol, &delRule, &updRule); err != nil {
			return n, err
		}
		k := key{table, name}
		fk, ok := grouped[k]
		if !ok {
			fk = &model.ForeignKeyConstraint{ReferencedTable: refTable, OnDelete: delRule, OnUpdate: updRule}
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

func (m *MySQL) extractChecks(ctx context.Context, tableMap map[string]*model.Table) (int, error) {
	query := `
		SELECT tc.TABLE_NAME, cc.CONSTRAINT_NAME, cc.CHECK_CLAUSE
		FROM INFORMATION_SCHEMA.CHECK_CONSTRAINTS cc
		JOIN INFORMATION_SCHEMA.TABLE_CONSTRAINTS tc
		  ON cc.CONSTRAINT_NAME = tc.CONSTRAINT_NAME AND cc.CONSTRAINT_SCHEMA = tc.TABLE_SCHEMA
		WHERE tc.CONSTRAINT_TYPE = 'CHECK' AND tc.TABLE_SCHEMA = ?
		ORDER BY tc.TABLE_NAME, cc.CONSTRAINT_NAME`
	rows, err := m.conn.QueryContext(ctx, query, m.schema)
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

func (m *MySQL) extractIndexes(ctx context.Context, tableMap map[string]*model.Table) (int, error) {
	query := `
		SELECT TABLE_NAME, INDEX_NAME, NOT NON_UNIQUE, INDEX_TYPE, COLUMN_NAME
		FROM INFORMATION_SCHEMA.STATISTICS
		WHERE TABLE_SCHEMA = ? AND INDEX_NAME != 'PRIMARY'
		ORDER BY TABLE_NAME, INDEX_NAME, SEQ_IN_INDEX`
	rows, err := m.conn.QueryContext(ctx, query, m.schema)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	uniqueConstraintNames := uniqueConstraintIndexNames(tableMap)

	type key struct{ table, name string }
	grouped := map[key]*model.Index{}
	var order []key
	n := 0
	for rows.Next() {
		var table, name, idxType, col string
		var unique bool
		if err := rows.Scan(&table, &name, &unique, &idxType, &col); err != nil {
			return n, err
		}
		if uniqueConstraintNames[table+"\x00"+name] {
			continue // backs a UNIQUE constraint, excluded per spec §4.1
		}
		k := key{table, name}
		idx, ok := grouped[k]
		if !ok {
			idx = &model.Index{Name: name, Unique: unique, Type: mysqlIndexType(idxType)}
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

func uniqueConstraintIndexNames(tableMap map[string]*model.Table) map[string]bool {
	out := map[string]bool{}
	for _, t := range tableMap {
		for _, c := range t.Constraints {
			if c.Kind() == model.KindUnique {
				out[t.Name+"\x00"+c.ConstraintName()] = true
			}
		}
	}
	return out
}

func mysqlIndexType(raw string) model.IndexType {
	switch strings.ToUpper(raw) {
	case "BTREE":
		return model.IndexBTree
	case "HASH":
		return model.IndexHash
	case "FULLTEXT":
		return model.IndexFullText
	case "SPATIAL":
		return model.IndexSpatial
	default:
		return model.IndexNormal
	}
}

// runPhase wraps a phase function with start/complete sink events and the
// dialect-appropriate retry envelope; shared across every extractor.
func runPhase(ctx context.Context, sink progress.Sink, side progress.Side, phase progress.Phase, dialect string, fn func(ctx context.Context) (int, error)) error {
	sink.PhaseStart(side, phase)
	start := time.Now()
	var count int
	err := retry.Do(ctx, retry.ForDialect(dialect), func(ctx context.Context) error {
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

var _ Extractor = (*MySQL)(nil)
