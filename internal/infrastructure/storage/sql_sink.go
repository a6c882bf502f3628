package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"NewsletterScanner/internal/domain"
	"NewsletterScanner/internal/ports"
)

//go:embed schema.sql
var schema string

const recordsTable = "newsletter_records"

// DB is an opened SQL database together with the placeholder style of its driver.
type DB struct {
	db      *sql.DB
	builder sq.StatementBuilderType
}

// Open connects to postgres (lib/pq) or sqlite (modernc) and creates the
// tables if they are missing.
func Open(ctx context.Context, driver, dsn string) (*DB, error) {
	var (
		name        string
		placeholder sq.PlaceholderFormat
	)
	switch driver {
	case "postgres":
		name, placeholder = "postgres", sq.Dollar
	case "sqlite":
		name, placeholder = "sqlite", sq.Question
	default:
		return nil, fmt.Errorf("unsupported sql driver %q", driver)
	}

	db, err := sql.Open(name, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if driver == "sqlite" {
		// in-memory databases exist per connection
		db.SetMaxOpenConns(1)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return &DB{db: db, builder: sq.StatementBuilder.PlaceholderFormat(placeholder)}, nil
}

// Close releases the connection pool.
func (d *DB) Close() error {
	return d.db.Close()
}

// SQLSink stores records in the newsletter_records table.
type SQLSink struct {
	*DB
}

var _ ports.RecordSink = (*SQLSink)(nil)

// NewSQLSink writes records through db.
func NewSQLSink(db *DB) *SQLSink {
	return &SQLSink{DB: db}
}

// Write inserts rec. A record whose message id already exists is left untouched.
func (s *SQLSink) Write(ctx context.Context, rec domain.StructuredRecord) error {
	links, err := json.Marshal(rec.Links)
	if err != nil {
		return fmt.Errorf("marshal links: %w", err)
	}

	query, args, err := s.builder.
		Insert(recordsTable).
		Columns("message_id", "title", "category", "source_url", "published_date", "description",
			"content_link", "confidence", "other_categories", "sender", "links").
		Values(rec.MessageID, rec.Title, rec.Category, rec.SourceURL, rec.PublishedDate.UTC(), rec.Description,
			nullString(rec.ContentLink), nullFloat(rec.Confidence), domain.FormatScores(rec.OtherCategories), rec.Sender, string(links)).
		Suffix("ON CONFLICT (message_id) DO NOTHING").
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert record %s: %w", rec.MessageID, err)
	}
	return nil
}

// StoredRecord is a row read back from newsletter_records.
type StoredRecord struct {
	MessageID       string
	Title           string
	Category        string
	SourceURL       string
	Description     string
	ContentLink     sql.NullString
	Confidence      sql.NullFloat64
	OtherCategories string
}

// ByCategory lists stored records of one category ordered by message id.
func (s *SQLSink) ByCategory(ctx context.Context, category string) ([]StoredRecord, error) {
	query, args, err := s.builder.
		Select("message_id", "title", "category", "source_url", "description", "content_link", "confidence", "other_categories").
		From(recordsTable).
		Where(sq.Eq{"category": category}).
		OrderBy("message_id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}

	var out []StoredRecord
	for rows.Next() {
		var r StoredRecord
		if err := rows.Scan(&r.MessageID, &r.Title, &r.Category, &r.SourceURL, &r.Description,
			&r.ContentLink, &r.Confidence, &r.OtherCategories); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan record: %w", err)
		}
		out = append(out, r)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("rows iteration: %w", rowsErr)
	}

	if closeErr := rows.Close(); closeErr != nil {
		return nil, fmt.Errorf("close rows: %w", closeErr)
	}

	return out, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}
