package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/trace"

	"cricsight/internal/domain"
	"cricsight/internal/infra/tracer"
	"cricsight/internal/stats"
)

// SchemaTool exposes schema introspection over the statistics database.
type SchemaTool struct {
	store  *stats.Store
	dbPath string
	logger *slog.Logger
}

// NewSchemaTool creates the get_database_schema tool. store may be nil
// when the database file is missing; calls then report the error inline.
func NewSchemaTool(store *stats.Store, dbPath string, logger *slog.Logger) *SchemaTool {
	return &SchemaTool{store: store, dbPath: dbPath, logger: logger}
}

func (t *SchemaTool) Name() string { return "get_database_schema" }

func (t *SchemaTool) Description() string {
	return "Get cricket database schema information. " +
		"Returns table structures, columns, types, and row counts. " +
		"ALWAYS use this BEFORE generating SQL queries to understand available data."
}

func (t *SchemaTool) Schema() domain.ToolSchema {
	return domain.ToolSchema{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"table_name": {
					"type": "string",
					"description": "Optional: specific table name to get schema for. Options: players, matches, batting, bowling, fall_of_wickets, partnerships. Omit to get all tables."
				}
			}
		}`),
	}
}

type schemaParams struct {
	TableName string `json:"table_name"`
}

func (t *SchemaTool) Execute(ctx context.Context, params json.RawMessage) (*domain.ToolResult, error) {
	return Execute(ctx, "tool.get_database_schema", t.logger, params,
		func(ctx context.Context, span trace.Span, p schemaParams) (any, error) {
			if t.store == nil {
				return statsUnavailable(t.dbPath), nil
			}

			info, err := t.store.Schema(ctx, p.TableName)
			if err != nil {
				return map[string]any{"error": fmt.Sprintf("schema lookup failed: %v", err)}, nil
			}
			span.SetAttributes(tracer.IntAttr("schema.tables", len(info.Tables)))
			return info, nil
		})
}

// ExecuteSQLTool runs validated read-only SQL against the statistics database.
type ExecuteSQLTool struct {
	store  *stats.Store
	dbPath string
	logger *slog.Logger
}

// NewExecuteSQLTool creates the execute_sql tool.
func NewExecuteSQLTool(store *stats.Store, dbPath string, logger *slog.Logger) *ExecuteSQLTool {
	return &ExecuteSQLTool{store: store, dbPath: dbPath, logger: logger}
}

func (t *ExecuteSQLTool) Name() string { return "execute_sql" }

func (t *ExecuteSQLTool) Description() string {
	return "Execute SQL query on cricket database (Test cricket 1877-2024). " +
		"Returns query results. Read-only, SELECT queries only. " +
		"Use get_database_schema first to see available tables and columns."
}

func (t *ExecuteSQLTool) Schema() domain.ToolSchema {
	return domain.ToolSchema{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"sql": {
					"type": "string",
					"description": "SQL query to execute (SELECT only, no DML/DDL)"
				}
			},
			"required": ["sql"]
		}`),
	}
}

type executeSQLParams struct {
	SQL string `json:"sql"`
}

func (t *ExecuteSQLTool) Execute(ctx context.Context, params json.RawMessage) (*domain.ToolResult, error) {
	return Execute(ctx, "tool.execute_sql", t.logger, params,
		func(ctx context.Context, span trace.Span, p executeSQLParams) (any, error) {
			if err := RequireField("sql", p.SQL); err != nil {
				return map[string]any{"error": err.Error()}, nil
			}
			if t.store == nil {
				return statsUnavailable(t.dbPath), nil
			}

			// The guard runs before the string gets anywhere near the
			// database. A rejection never touches the backend.
			verdict := stats.ValidateSQL(p.SQL)
			if !verdict.IsSafe {
				span.SetAttributes(tracer.StringAttr("sql.rejected", verdict.Reason))
				return map[string]any{
					"error": verdict.Reason,
					"sql":   p.SQL,
				}, nil
			}

			result, err := t.store.Query(ctx, p.SQL)
			if err != nil {
				return map[string]any{"error": fmt.Sprintf("SQL execution failed: %v", err)}, nil
			}
			span.SetAttributes(tracer.IntAttr("sql.rows", result.RowCount))
			return result, nil
		})
}

// SampleQueriesTool returns static reference queries for the database.
type SampleQueriesTool struct {
	dbPath string
	logger *slog.Logger
}

// NewSampleQueriesTool creates the get_sample_queries tool.
func NewSampleQueriesTool(dbPath string, logger *slog.Logger) *SampleQueriesTool {
	return &SampleQueriesTool{dbPath: dbPath, logger: logger}
}

func (t *SampleQueriesTool) Name() string { return "get_sample_queries" }

func (t *SampleQueriesTool) Description() string {
	return "Get example SQL queries for reference. " +
		"Useful for learning database structure and query patterns. " +
		"Shows common use cases like top scorers, player stats, head-to-head."
}

func (t *SampleQueriesTool) Schema() domain.ToolSchema {
	return domain.ToolSchema{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters:  json.RawMessage(`{"type": "object", "properties": {}}`),
	}
}

func (t *SampleQueriesTool) Execute(ctx context.Context, params json.RawMessage) (*domain.ToolResult, error) {
	return Execute(ctx, "tool.get_sample_queries", t.logger, params,
		func(ctx context.Context, span trace.Span, p struct{}) (any, error) {
			return stats.Samples(t.dbPath), nil
		})
}

func statsUnavailable(dbPath string) map[string]any {
	return map[string]any{
		"error": fmt.Sprintf("Statistics database not found at %s", dbPath),
		"hint":  "Run the stats ingestion pipeline first",
	}
}
