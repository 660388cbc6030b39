package extract

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"

	_ "github.com/denisenkom/go-mssqldb"

	"github.com/atoreson/schemadiff/internal/config"
	"github.com/atoreson/schemadiff/internal/model"
	"github.com/atoreson/schemadiff/internal/progress"
	"github.com/atoreson/schemadiff/internal/signature"
	"github.com/atoreson/schemadiff/internal/typenorm"
)

// MSSQL implements Extractor for SQL Server via the sys.* catalog views
// named in spec §4.1's SQL Server paragraph. DSN construction and the
// single-pinned-connection pattern follow the teacher's discovery.Postgres
// shape; go-mssqldb is the driver joaosoft-db-mcp uses for the same engine.
type MSSQL struct {
	cfg      *config.SideConfig
	db       *sql.DB
	conn     *sql.Conn
	schema   string
	verbatim *typenorm.VerbatimFunctions
}

func NewMSSQL(cfg *config.SideConfig) (*MSSQL, error) {
	s := cfg.Schema
	if s == "" {
		s = config.DefaultSchema("mssql")
	}
	return &MSSQL{cfg: cfg, schema: s, verbatim: typenorm.DefaultVerbatimFunctions("mssql")}, nil
}

func (s *MSSQL) Connect(ctx context.Context) error {
	query := url.Values{}
	query.Add("database", s.cfg.Database)
	if s.cfg.SSL {
		query.Add("encrypt", "true")
	} else {
		query.Add("encrypt", "disable")
	}
	u := &url.URL{
		Scheme:   "sqlserver",
		User:     url.UserPassword(s.cfg.Username, s.cfg.Password),
		Host:     fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		RawQuery: query.Encode(),
	}

	db, err := sql.Open("sqlserver", u.String())
	if err != nil {
		return fmt.Errorf("opening SQL Server connection: %w", err)
	}
	db.SetMaxOpenConns(1)

	conn, err := db.Conn(ctx)
	if err != nil {
		db.Close()
		return fmt.Errorf("acquiring SQL Server connection: %w", err)
	}
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		db.Close()
		return fmt.Errorf("pinging SQL Server: %w", err)
	}

	// Execution envelope (spec §4.1): READ COMMITTED isolation inside one
	// explicit transaction held for the whole extraction.
	if _, err := conn.ExecContext(ctx, "SET TRANSACTION ISOLATION LEVEL READ COMMITTED"); err != nil {
		conn.Close()
		db.Close()
		return fmt.Errorf("setting isolation level: %w", err)
	}
	if _, err := conn.ExecContext(ctx, "BEGIN TRANSACTION"); err != nil {
		conn.Close()
		db.Close()
		return fmt.Errorf("starting transaction: %w", err)
	}

	s.db = db
	s.conn = conn
	return nil
}

func (s *MSSQL) Close() error {
	if s.conn != nil {
		_, _ = s.conn.ExecContext(context.Background(), "COMMIT TRANSACTION")
		s.conn.Close()
		s.conn = nil
	}
	if s.db != nil {
		s.db.Close()
		s.db = nil
	}
	return nil
}

func (s *MSSQL) Extract(ctx context.Context, sink progress.Sink, side progress.Side) (*model.DatabaseMetadata, error) {
	if sink == nil {
		sink = progress.NopSink{}
	}
	if s.conn == nil {
		return nil, fmt.Errorf("extract: not connected; call Connect first")
	}

	md := model.New("mssql", s.schema)
	tableMap := make(map[string]*model.Table)

	if err := runPhase(ctx, sink, side, progress.PhaseTables, "mssql", func(ctx context.Context) (int, error) {
		return s.extractTables(ctx, md, tableMap)
	}); err != nil {
		return nil, err
	}
	if err := runPhase(ctx, sink, side, progress.PhaseColumns, "mssql", func(ctx context.Context) (int, error) {
		return s.extractColumns(ctx, tableMap)
	}); err != nil {
		return nil, err
	}
	if err := runPhase(ctx, sink, side, progress.PhaseConstraints, "mssql", func(ctx context.Context) (int, error) {
		return s.extractConstraints(ctx, tableMap)
	}); err != nil {
		return nil, err
	}
	if err := runPhase(ctx, sink, side, progress.PhaseIndexes, "mssql", func(ctx context.Context) (int, error) {
		return s.extractIndexes(ctx, tableMap)
	}); err != nil {
		return nil, err
	}

	if err := s.extractTriggers(ctx, md); err != nil {
		return nil, fmt.Errorf("extracting triggers: %w", err)
	}

	for _, t := range tableMap {
		signature.Assign(t)
		if len(t.Columns) == 0 {
			sink.Warning(side, progress.PhaseColumns, fmt.Sprintf("table %s has zero columns", t.Name))
		}
	}

	return md, nil
}

func (s *MSSQL) extractTables(ctx context.Context, md *model.DatabaseMetadata, tableMap map[string]*model.Table) (int, error) {
	query := `
		SELECT t.name, COALESCE(ep.value, ''), s.schema_name_sid_guessed
		FROM sys.tables t
		JOIN sys.schemas sc ON sc.schema_id = t.schema_id
		CROSS APPLY (SELECT 0 AS schema_name_sid_guessed) s
		LEFT JOIN sys.extended_properties ep
		  ON ep.major_id = t.object_id AND ep.minor_id = 0 AND ep.class = 1 AND ep.name = 'MS_Description'
		WHERE sc.name = @p1
		ORDER BY t.name`
	rows, err := s.conn.QueryContext(ctx, query, s.schema)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	n := 0
	for rows.Next() {
		t := &model.Table{}
		var unused int
		if err := rows.Scan(&t.Name, &t.Comment, &unused); err != nil {
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

func (s *MSSQL) extractColumns(ctx context.Context, tableMap map[string]*model.Table) (int, error) {
	query := `
		SELECT
			t.name, c.name, ty.name, c.max_length, c.precision, c.scale,
			c.is_nullable, c.is_identity, c.column_id,
			OBJECT_DEFINITION(c.default_object_id),
			COALESCE(ep.value, '')
		FROM sys.columns c
		JOIN sys.tables t ON t.object_id = c.object_id
		JOIN sys.schemas sc ON sc.schema_id = t.schema_id
		JOIN sys.types ty ON ty.user_type_id = c.user_type_id
		LEFT JOIN sys.extended_properties ep
		  ON ep.major_id = c.object_id AND ep.minor_id = c.column_id AND ep.class = 1 AND ep.name = 'MS_Description'
		WHERE sc.name = @p1
		ORDER BY t.name, c.column_id`
	rows, err := s.conn.QueryContext(ctx, query, s.schema)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	n := 0
	for rows.Next() {
		var (
			tableName, colName, typeName string
			maxLength                    int64
			precision, scale             int
			nullable, identity           bool
			ordinal                      int
			defaultVal, comment          *string
		)
		if err := rows.Scan(&tableName, &colName, &typeName, &maxLength, &precision, &scale,
			&nullable, &identity, &ordinal, &defaultVal, &comment); err != nil {
			return n, err
		}
		t, ok := tableMap[tableName]
		if !ok {
			continue
		}
		col := &model.Column{
			Name:            colName,
			DataType:        typenorm.MSSQLDataType(typeName, maxLength, precision, scale),
			Nullable:        nullable,
			AutoIncrement:   identity,
			OrdinalPosition: ordinal,
		}
		if comment != nil {
			col.Comment = *comment
		}
		if defaultVal != nil {
			col.DefaultValue = typenorm.NormalizeDefault(*defaultVal, "mssql", s.verbatim)
		}
		t.Columns = append(t.Columns, col)
		n++
	}
	return n, rows.Err()
}

func (s *MSSQL) extractConstraints(ctx context.Context, tableMap map[string]*model.Table) (int, error) {
	n := 0
	if c, err := s.extractKeyConstraints(ctx, tableMap, true); err != nil {
		return n, err
	} else {
		n += c
	}
	if c, err := s.extractKeyConstraints(ctx, tableMap, false); err != nil {
		return n, err
	} else {
		n += c
	}
	if c, err := s.extractForeignKeys(ctx, tableMap); err != nil {
		return n, err
	} else {
		n += c
	}
	if c, err := s.extractChecks(ctx, tableMap); err != nil {
		return n, err
	} else {
		n += c
	}
	return n, nil
}

func (s *MSSQL) extractKeyConstraints(ctx context.Context, tableMap map[string]*model.Table, primary bool) (int, error) {
	kind := "UQ"
	if primary {
		kind = "PK"
	}
	query := `
		SELECT t.name, kc.name, c.name, ic.key_ordinal
		FROM sys.key_constraints kc
		JOIN sys.tables t ON t.object_id = kc.parent_object_id
		JOIN sys.schemas sc ON sc.schema_id = t.schema_id
		JOIN sys.index_columns ic ON ic.object_id = kc.parent_object_id AND ic.index_id = kc.unique_index_id
		JOIN sys.columns c ON c.object_id = ic.object_id AND c.column_id = ic.column_id
		WHERE sc.name = @p1 AND kc.type = @p2
		ORDER BY t.name, kc.name, ic.key_ordinal`
	rows, err := s.conn.QueryContext(ctx, query, s.schema, kind)
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
		var ordinal int
		if err := rows.Scan(&table, &name, &col, &ordinal); err != nil {
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
		if primary {
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

func (s *MSSQL) extractForeignKeys(ctx context.Context, tableMap map[string]*model.Table) (int, error) {
	query := `
		SELECT t.name, fk.name, c.name, rt.name, rc.name,
			fk.delete_referential_action_desc, fk.update_referential_action_desc, fkc.constraint_column_id
		FROM sys.foreign_keys fk
		JOIN sys.tables t ON t.object_id = fk.parent_object_id
		JOIN sys.schemas sc ON sc.schema_id = t.schema_id
		JOIN sys.tables rt ON rt.object_id = fk.referenced_object_id
		JOIN sys.foreign_key_columns fkc ON fkc.constraint_object_id = fk.object_id
		JOIN sys.columns c ON c.object_id = fkc.parent_object_id AND c.column_id = fkc.parent_column_id
		JOIN sys.columns rc ON rc.object_id = fkc.referenced_object_id AND rc.column_id = fkc.referenced_column_id
		WHERE sc.name = @p1
		ORDER BY t.name, fk.name, fkc.constraint_column_id`
	rows, err := s.conn.QueryContext(ctx, query, s.schema)
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
		var ord int
		if err := rows.Scan(&table, &name, &col, &refTable, &refCol, &delRule, &updRule, &ord); err != nil {
			return n, err
		}
		k := key{table, name}
		fk, ok := grouped[k]
		if !ok {
			fk = &model.ForeignKeyConstraint{
				ReferencedTable: refTable,
				OnDelete:        mssqlRule(delRule),
				OnUpdate:        mssqlRule(updRule),
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

// mssqlRule normalises sys.foreign_keys' underscore-joined rule names
// (NO_ACTION, SET_NULL) to the space-separated form spec §4.1 requires.
func mssqlRule(raw string) string {
	return strings.ReplaceAll(raw, "_", " ")
}

func (s *MSSQL) extractChecks(ctx context.Context, tableMap map[string]*model.Table) (int, error) {
	query := `
		SELECT t.name, cc.name, cc.definition
		FROM sys.check_constraints cc
		JOIN sys.tables t ON t.object_id = cc.parent_object_id
		JOIN sys.schemas sc ON sc.schema_id = t.schema_id
		WHERE sc.name = @p1
		ORDER BY t.name, cc.name`
	rows, err := s.conn.QueryContext(ctx, query, s.schema)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	n := 0
	for rows.Next() {
		var table, name, def string
		if err := rows.Scan(&table, &name, &def); err != nil {
			return n, err
		}
		t, ok := tableMap[table]
		if !ok {
			continue
		}
		ck := &model.CheckConstraint{Clause: strings.Trim(def, "()")}
		ck.Name = name
		t.Constraints = append(t.Constraints, ck)
		n++
	}
	return n, rows.Err()
}

func (s *MSSQL) extractIndexes(ctx context.Context, tableMap map[string]*model.Table) (int, error) {
	query := `
		SELECT t.name, i.name, i.is_unique, i.type_desc, c.name
		FROM sys.indexes i
		JOIN sys.tables t ON t.object_id = i.object_id
		JOIN sys.schemas sc ON sc.schema_id = t.schema_id
		JOIN sys.index_columns ic ON ic.object_id = i.object_id AND ic.index_id = i.index_id
		JOIN sys.columns c ON c.object_id = ic.object_id AND c.column_id = ic.column_id
		WHERE sc.name = @p1 AND i.is_primary_key = 0 AND i.is_unique_constraint = 0 AND i.name IS NOT NULL
		ORDER BY t.name, i.name, ic.key_ordinal`
	rows, err := s.conn.QueryContext(ctx, query, s.schema)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	type key struct{ table, name string }
	grouped := map[key]*model.Index{}
	var order []key
	n := 0
	for rows.Next() {
		var table, name, typeDesc, col string
		var unique bool
		if err := rows.Scan(&table, &name, &unique, &typeDesc, &col); err != nil {
			return n, err
		}
		k := key{table, name}
		idx, ok := grouped[k]
		if !ok {
			idx = &model.Index{Name: name, Unique: unique, Type: mssqlIndexType(typeDesc)}
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

func mssqlIndexType(typeDesc string) model.IndexType {
	switch strings.ToUpper(typeDesc) {
	case "CLUSTERED":
		return model.IndexClustered
	case "NONCLUSTERED":
		return model.IndexNonClustered
	case "CLUSTERED COLUMNSTORE", "NONCLUSTERED COLUMNSTORE":
		return model.IndexColumnstore
	default:
		return model.IndexNormal
	}
}

func (s *MSSQL) extractTriggers(ctx context.Context, md *model.DatabaseMetadata) error {
	query := `
		SELECT tr.name, t.name,
			CASE WHEN tr.is_instead_of_trigger = 1 THEN 'INSTEAD_OF' ELSE 'AFTER' END,
			OBJECTPROPERTY(tr.object_id, 'ExecIsInsertTrigger'),
			OBJECTPROPERTY(tr.object_id, 'ExecIsUpdateTrigger'),
			OBJECTPROPERTY(tr.object_id, 'ExecIsDeleteTrigger')
		FROM sys.triggers tr
		JOIN sys.tables t ON t.object_id = tr.parent_id
		JOIN sys.schemas sc ON sc.schema_id = t.schema_id
		WHERE sc.name = @p1 AND tr.is_ms_shipped = 0
		ORDER BY tr.name`
	rows, err := s.conn.QueryContext(ctx, query, s.schema)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var name, table, timing string
		var onInsert, onUpdate, onDelete int
		if err := rows.Scan(&name, &table, &timing, &onInsert, &onUpdate, &onDelete); err != nil {
			return err
		}
		tr := &model.Trigger{Name: name, Table: table, Timing: timing, Level: "ROW"}
		if onInsert != 0 {
			tr.Events |= model.EventInsert
		}
		if onUpdate != 0 {
			tr.Events |= model.EventUpdate
		}
		if onDelete != 0 {
			tr.Events |= model.EventDelete
		}
		md.Triggers[name] = tr
	}
	return rows.Err()
}

var _ Extractor = (*MSSQL)(nil)
