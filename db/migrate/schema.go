// Package migrate declares the catalog tables and creates them on Postgres or SQLite.
package migrate

import (
	"context"
	"fmt"

	"entgo.io/ent/dialect"
	"entgo.io/ent/dialect/sql/schema"
	"entgo.io/ent/schema/field"
)

// text forces an unbounded text column on Postgres (ent defaults to varchar).
var text = map[string]string{dialect.Postgres: "text"}

var (
	// DocumentsColumns holds the columns for the "documents" table.
	DocumentsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeUUID},
		{Name: "filename", Type: field.TypeString, SchemaType: text},
		{Name: "file_kind", Type: field.TypeString, Size: 16},
		{Name: "content_hash", Type: field.TypeString, Size: 64},
		{Name: "language", Type: field.TypeString, SchemaType: text},
		{Name: "locale", Type: field.TypeString, Size: 35},
		{Name: "raw_text", Type: field.TypeString, SchemaType: text},
		{Name: "translated_text", Type: field.TypeString, Nullable: true, SchemaType: text},
		{Name: "structured_data", Type: field.TypeString, Nullable: true, SchemaType: text},
		{Name: "is_processed", Type: field.TypeBool, Default: false},
		{Name: "validation_confidence", Type: field.TypeFloat64, Nullable: true},
		{Name: "validation_issues", Type: field.TypeString, SchemaType: text},
		{Name: "needs_review", Type: field.TypeBool, Default: false},
		{Name: "original_file_path", Type: field.TypeString, SchemaType: text},
		{Name: "created_at", Type: field.TypeTime},
		{Name: "updated_at", Type: field.TypeTime},
	}
	// DocumentsTable holds the schema information for the "documents" table.
	DocumentsTable = &schema.Table{
		Name:       "documents",
		Columns:    DocumentsColumns,
		PrimaryKey: []*schema.Column{DocumentsColumns[0]},
		Indexes: []*schema.Index{
			{Name: "documents_content_hash", Unique: true, Columns: []*schema.Column{DocumentsColumns[3]}},
			{Name: "documents_needs_review", Unique: false, Columns: []*schema.Column{DocumentsColumns[12]}},
		},
	}

	// DocumentVersionsColumns holds the columns for the "document_versions" table.
	DocumentVersionsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeUUID},
		{Name: "version_number", Type: field.TypeInt},
		{Name: "structured_data", Type: field.TypeString, SchemaType: text},
		{Name: "validation_confidence", Type: field.TypeFloat64, Nullable: true},
		{Name: "validation_issues", Type: field.TypeString, SchemaType: text},
		{Name: "change_description", Type: field.TypeString, Nullable: true, SchemaType: text},
		{Name: "created_at", Type: field.TypeTime},
		{Name: "document_id", Type: field.TypeUUID},
		{Name: "needs_review", Type: field.TypeBool, Default: false},
	}
	// DocumentVersionsTable holds the schema information for the "document_versions" table.
	DocumentVersionsTable = &schema.Table{
		Name:       "document_versions",
		Columns:    DocumentVersionsColumns,
		PrimaryKey: []*schema.Column{DocumentVersionsColumns[0]},
		ForeignKeys: []*schema.ForeignKey{
			{
				Symbol:     "document_versions_documents_versions",
				Columns:    []*schema.Column{DocumentVersionsColumns[7]},
				RefColumns: []*schema.Column{DocumentsColumns[0]},
				OnDelete:   schema.Cascade,
			},
		},
		Indexes: []*schema.Index{
			{Name: "documentversion_document_id_version_number", Unique: true, Columns: []*schema.Column{DocumentVersionsColumns[7], DocumentVersionsColumns[1]}},
		},
	}

	// ProductsColumns holds the columns for the "products" table.
	ProductsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeUUID},
		{Name: "name", Type: field.TypeString, SchemaType: text},
		{Name: "created_at", Type: field.TypeTime},
	}
	// ProductsTable holds the schema information for the "products" table.
	ProductsTable = &schema.Table{
		Name:       "products",
		Columns:    ProductsColumns,
		PrimaryKey: []*schema.Column{ProductsColumns[0]},
		Indexes: []*schema.Index{
			{Name: "products_name", Unique: true, Columns: []*schema.Column{ProductsColumns[1]}},
		},
	}

	// ProductVariantsColumns holds the columns for the "product_variants" table.
	ProductVariantsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeUUID},
		{Name: "section", Type: field.TypeString, Size: 32},
		{Name: "locale", Type: field.TypeString, Size: 35},
		{Name: "version_number", Type: field.TypeInt},
		{Name: "position", Type: field.TypeInt},
		{Name: "headlines", Type: field.TypeString, SchemaType: text},
		{Name: "advertising_copy", Type: field.TypeString, SchemaType: text},
		{Name: "key_feature_bullets", Type: field.TypeString, SchemaType: text},
		{Name: "legal_references", Type: field.TypeString, SchemaType: text},
		{Name: "product_id", Type: field.TypeUUID},
		{Name: "document_id", Type: field.TypeUUID},
	}
	// ProductVariantsTable holds the schema information for the "product_variants" table.
	ProductVariantsTable = &schema.Table{
		Name:       "product_variants",
		Columns:    ProductVariantsColumns,
		PrimaryKey: []*schema.Column{ProductVariantsColumns[0]},
		ForeignKeys: []*schema.ForeignKey{
			{
				Symbol:     "product_variants_products_variants",
				Columns:    []*schema.Column{ProductVariantsColumns[9]},
				RefColumns: []*schema.Column{ProductsColumns[0]},
				OnDelete:   schema.NoAction,
			},
			{
				Symbol:     "product_variants_documents_variants",
				Columns:    []*schema.Column{ProductVariantsColumns[10]},
				RefColumns: []*schema.Column{DocumentsColumns[0]},
				OnDelete:   schema.Cascade,
			},
		},
		Indexes: []*schema.Index{
			{Name: "productvariant_document_id", Unique: false, Columns: []*schema.Column{ProductVariantsColumns[10]}},
			{Name: "productvariant_product_id_locale", Unique: false, Columns: []*schema.Column{ProductVariantsColumns[9], ProductVariantsColumns[2]}},
		},
	}

	// ProcessingJobsColumns holds the columns for the "processing_jobs" table.
	ProcessingJobsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeUUID},
		{Name: "status", Type: field.TypeString, Size: 16},
		{Name: "stage", Type: field.TypeString, Nullable: true, Size: 32},
		{Name: "error_message", Type: field.TypeString, Nullable: true, SchemaType: text},
		{Name: "started_at", Type: field.TypeTime},
		{Name: "finished_at", Type: field.TypeTime, Nullable: true},
		{Name: "document_id", Type: field.TypeUUID},
	}
	// ProcessingJobsTable holds the schema information for the "processing_jobs" table.
	ProcessingJobsTable = &schema.Table{
		Name:       "processing_jobs",
		Columns:    ProcessingJobsColumns,
		PrimaryKey: []*schema.Column{ProcessingJobsColumns[0]},
		ForeignKeys: []*schema.ForeignKey{
			{
				Symbol:     "processing_jobs_documents_jobs",
				Columns:    []*schema.Column{ProcessingJobsColumns[6]},
				RefColumns: []*schema.Column{DocumentsColumns[0]},
				OnDelete:   schema.Cascade,
			},
		},
		Indexes: []*schema.Index{
			{Name: "processingjob_document_id_started_at", Unique: false, Columns: []*schema.Column{ProcessingJobsColumns[6], ProcessingJobsColumns[4]}},
		},
	}

	// Tables holds all the tables in the schema.
	Tables = []*schema.Table{
		DocumentsTable,
		DocumentVersionsTable,
		ProductsTable,
		ProductVariantsTable,
		ProcessingJobsTable,
	}
)

func init() {
	DocumentVersionsTable.ForeignKeys[0].RefTable = DocumentsTable
	ProductVariantsTable.ForeignKeys[0].RefTable = ProductsTable
	ProductVariantsTable.ForeignKeys[1].RefTable = DocumentsTable
	ProcessingJobsTable.ForeignKeys[0].RefTable = DocumentsTable
}

// Create brings the database schema up to date. It only adds; columns and
// tables are never dropped.
func Create(ctx context.Context, drv dialect.Driver) error {
	m, err := schema.NewMigrate(drv)
	if err != nil {
		return fmt.Errorf("new migrate: %w", err)
	}
	if err := m.Create(ctx, Tables...); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}
