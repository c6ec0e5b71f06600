package store

import (
	"context"
	"database/sql"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"entgo.io/ent/dialect/sql/schema"
	"entgo.io/ent/schema/field"
)

var (
	sequenceColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt},
		{Name: "next_val", Type: field.TypeInt64, Default: 1},
	}
	sequenceSchema = &schema.Table{
		Name:       sequenceTable,
		Columns:    sequenceColumns,
		PrimaryKey: []*schema.Column{sequenceColumns[0]},
	}

	predictionsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt64, Increment: true},
		{Name: "sequence", Type: field.TypeInt64},
		{Name: "uuid", Type: field.TypeString, Unique: true},
		{Name: "created_at", Type: field.TypeInt64},
		{Name: "schema_version", Type: field.TypeString},
		{Name: "input", Type: field.TypeString},
		{Name: "vector", Type: field.TypeString},
		{Name: "label", Type: field.TypeInt},
		{Name: "probability", Type: field.TypeFloat64},
		{Name: "threshold", Type: field.TypeFloat64},
		{Name: "attribution", Type: field.TypeString, Default: ""},
		{Name: "attribution_error", Type: field.TypeString, Default: ""},
		{Name: "narrative", Type: field.TypeString, Default: ""},
	}
	predictionsSchema = &schema.Table{
		Name:       predictionsTable,
		Columns:    predictionsColumns,
		PrimaryKey: []*schema.Column{predictionsColumns[0]},
		Indexes: []*schema.Index{
			{Name: "predictions_created_at", Columns: []*schema.Column{predictionsColumns[3]}},
		},
	}

	llmRequestsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt64, Increment: true},
		{Name: "sequence", Type: field.TypeInt64},
		{Name: "created_at", Type: field.TypeInt64},
		{Name: "provider", Type: field.TypeString},
		{Name: "model", Type: field.TypeString},
		{Name: "purpose", Type: field.TypeString},
		{Name: "input_tokens", Type: field.TypeInt, Default: 0},
		{Name: "output_tokens", Type: field.TypeInt, Default: 0},
		{Name: "latency_ms", Type: field.TypeInt64, Default: 0},
		{Name: "success", Type: field.TypeBool},
		{Name: "error_message", Type: field.TypeString, Default: ""},
		{Name: "request_body", Type: field.TypeString, Default: ""},
		{Name: "response_body", Type: field.TypeString, Default: ""},
	}
	llmRequestsSchema = &schema.Table{
		Name:       llmRequestsTable,
		Columns:    llmRequestsColumns,
		PrimaryKey: []*schema.Column{llmRequestsColumns[0]},
		Indexes: []*schema.Index{
			{Name: "llm_requests_model", Columns: []*schema.Column{llmRequestsColumns[4]}},
		},
	}

	tables = []*schema.Table{sequenceSchema, predictionsSchema, llmRequestsSchema}
)

// migrate creates missing tables, columns and indexes. It never drops
// anything, so a database written by a newer build still opens.
func migrate(ctx context.Context, db *sql.DB) error {
	m, err := schema.NewMigrate(entsql.OpenDB(dialect.SQLite, db))
	if err != nil {
		return err
	}
	return m.Create(ctx, tables...)
}
