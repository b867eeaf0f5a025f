package stats

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"

	_ "modernc.org/sqlite"

	"cricsight/internal/domain"
)

// rowCap is the maximum number of rows a query returns to the caller.
// The true total is still reported so callers can see how much was cut.
const rowCap = 100

// knownTables is the fixed table set of the historical Test-match database.
var knownTables = []string{
	"players", "matches", "batting", "bowling", "fall_of_wickets", "partnerships",
}

// Column describes one column of a table.
type Column struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// TableSchema describes one table: its columns and row count.
type TableSchema struct {
	TableName string   `json:"table_name"`
	Columns   []Column `json:"columns"`
	RowCount  int64    `json:"row_count"`
}

// SchemaInfo is the full schema-introspection result.
type SchemaInfo struct {
	Database string        `json:"database"`
	Tables   []TableSchema `json:"tables"`
}

// QueryResult holds the outcome of a successful read query.
// Rows is capped at rowCap entries; RowCount is the uncapped total.
type QueryResult struct {
	SQL      string   `json:"sql"`
	RowCount int      `json:"row_count"`
	Columns  []string `json:"columns"`
	Rows     [][]any  `json:"rows"`
	Note     string   `json:"note,omitempty"`
}

// Store is a read-only connection to the analytical SQLite database.
// Safe for concurrent readers.
type Store struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// Open opens the database at path in read-only mode. A missing file is
// reported as domain.ErrStatsUnavailable so callers can surface a hint
// to run ingestion first.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, domain.NewDomainError("stats.Open", domain.ErrStatsUnavailable,
			fmt.Sprintf("database not found at %s", path))
	}
	db, err := sql.Open("sqlite", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, domain.WrapOp("stats.Open", err)
	}
	return &Store{db: db, path: path, logger: logger}, nil
}

// OpenDB wraps an already-open connection. Used by tests with in-memory
// databases.
func OpenDB(db *sql.DB, logger *slog.Logger) *Store {
	return &Store{db: db, path: ":memory:", logger: logger}
}

// Close releases the underlying connection. Idempotent.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// KnownTables returns the fixed table set of the database.
func (s *Store) KnownTables() []string {
	out := make([]string, len(knownTables))
	copy(out, knownTables)
	return out
}

// Schema introspects the named table, or every known table when name is
// empty. Tables that do not exist are skipped rather than failing the
// whole call.
func (s *Store) Schema(ctx context.Context, name string) (*SchemaInfo, error) {
	tables := knownTables
	if name != "" {
		tables = []string{name}
	}

	info := &SchemaInfo{Database: s.path, Tables: []TableSchema{}}
	for _, table := range tables {
		ts, err := s.describeTable(ctx, table)
		if err != nil {
			s.logger.Debug("skipping table during introspection", "table", table, "error", err)
			continue
		}
		info.Tables = append(info.Tables, *ts)
	}
	return info, nil
}

func (s *Store) describeTable(ctx context.Context, table string) (*TableSchema, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%q)", table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ts := &TableSchema{TableName: table, Columns: []Column{}}
	for rows.Next() {
		var (
			cid        int
			colName    string
			colType    string
			notNull    int
			defaultVal sql.NullString
			pk         int
		)
		if err := rows.Scan(&cid, &colName, &colType, &notNull, &defaultVal, &pk); err != nil {
			return nil, err
		}
		ts.Columns = append(ts.Columns, Column{Name: colName, Type: colType})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ts.Columns) == 0 {
		return nil, fmt.Errorf("table %s does not exist", table)
	}

	if err := s.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT COUNT(*) FROM %q", table)).Scan(&ts.RowCount); err != nil {
		return nil, err
	}
	return ts, nil
}

// Query executes a read query and returns up to rowCap rows with the true
// total count. Callers must validate the SQL through ValidateSQL first;
// Query does not re-check it, but the connection is read-only regardless.
func (s *Store) Query(ctx context.Context, query string) (*QueryResult, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, domain.WrapOp("stats.Query", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, domain.WrapOp("stats.Query", err)
	}

	res := &QueryResult{SQL: query, Columns: cols, Rows: [][]any{}}
	total := 0
	for rows.Next() {
		total++
		if total > rowCap {
			continue // keep counting, stop collecting
		}
		raw := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range raw {
			ptrs[i] = &raw[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, domain.WrapOp("stats.Query", err)
		}
		for i, v := range raw {
			if b, ok := v.([]byte); ok {
				raw[i] = string(b)
			}
		}
		res.Rows = append(res.Rows, raw)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.WrapOp("stats.Query", err)
	}

	res.RowCount = total
	if total > rowCap {
		res.Note = fmt.Sprintf("Limited to %d rows", rowCap)
	}
	return res, nil
}
