package storage

import (
	"context"
	"fmt"

	"NewsletterScanner/internal/ports"
)

const ledgerTable = "processed_messages"

// SQLLedger keeps processed ids in the processed_messages table so the
// ledger lives next to the records of the sql sink.
type SQLLedger struct {
	*DB
}

var _ ports.LedgerStore = (*SQLLedger)(nil)

// NewSQLLedger stores the ledger through db.
func NewSQLLedger(db *DB) *SQLLedger {
	return &SQLLedger{DB: db}
}

// Load returns ids in insertion order.
func (l *SQLLedger) Load(ctx context.Context) ([]string, error) {
	query, args, err := l.builder.Select("message_id").From(ledgerTable).OrderBy("position").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query processed: %w", err)
	}

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan id: %w", err)
		}
		ids = append(ids, id)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("rows iteration: %w", rowsErr)
	}

	if closeErr := rows.Close(); closeErr != nil {
		return nil, fmt.Errorf("close rows: %w", closeErr)
	}

	return ids, nil
}

// Save replaces the stored ids in one transaction.
func (l *SQLLedger) Save(ctx context.Context, ids []string) (err error) {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin ledger tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	del, args, err := l.builder.Delete(ledgerTable).ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}
	if _, err = tx.ExecContext(ctx, del, args...); err != nil {
		return fmt.Errorf("clear ledger: %w", err)
	}

	const chunk = 200
	for start := 0; start < len(ids); start += chunk {
		end := min(start+chunk, len(ids))
		insert := l.builder.Insert(ledgerTable).Columns("message_id", "position")
		for i := start; i < end; i++ {
			insert = insert.Values(ids[i], i)
		}
		query, args, buildErr := insert.ToSql()
		if buildErr != nil {
			return fmt.Errorf("build insert: %w", buildErr)
		}
		if _, err = tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("insert processed: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit ledger: %w", err)
	}
	return nil
}
