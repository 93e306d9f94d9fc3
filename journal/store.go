package journal

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/michaelpento.lv/flashswap/types"
)

const schema = `
CREATE TABLE IF NOT EXISTS settlements (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id    INTEGER NOT NULL,
	path          TEXT    NOT NULL,
	borrow_amount TEXT    NOT NULL,
	repayment_due TEXT    NOT NULL,
	final_output  TEXT    NOT NULL,
	profit        TEXT    NOT NULL,
	state         TEXT    NOT NULL,
	reason        TEXT    NOT NULL,
	duration_ns   INTEGER NOT NULL,
	created_at    INTEGER NOT NULL
)`

// Store is the settlement journal. It records outcomes only; it is never
// read back into a live attack.
type Store struct {
	db *sql.DB
}

// New wraps an open database
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Open connects to driver/dsn and creates the schema
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	// sqlite allows one writer; a single connection avoids SQLITE_BUSY
	db.SetMaxOpenConns(1)
	s := New(db)
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Migrate creates the settlements table when missing
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to migrate journal: %w", err)
	}
	return nil
}

// RecordSettlement inserts rec and sets its ID
func (s *Store) RecordSettlement(ctx context.Context, rec *types.SettlementRecord) error {
	query := `
		INSERT INTO settlements (session_id, path, borrow_amount, repayment_due, final_output, profit, state, reason, duration_ns, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	res, err := s.db.ExecContext(ctx, query,
		int64(rec.SessionID),
		rec.PathString(),
		rec.BorrowAmount,
		rec.RepaymentDue,
		rec.FinalOutput,
		rec.Profit,
		rec.State,
		rec.Reason,
		rec.Duration.Nanoseconds(),
		rec.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to record settlement: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read settlement id: %w", err)
	}
	rec.ID = id
	return nil
}

// Recent returns the newest settlements first
func (s *Store) Recent(ctx context.Context, limit int) ([]*types.SettlementRecord, error) {
	query := `
		SELECT id, session_id, path, borrow_amount, repayment_due, final_output, profit, state, reason, duration_ns, created_at
		FROM settlements
		ORDER BY id DESC
		LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query settlements: %w", err)
	}
	defer rows.Close()

	var records []*types.SettlementRecord
	for rows.Next() {
		var (
			rec        types.SettlementRecord
			sessionID  int64
			path       string
			durationNs int64
			createdAt  int64
		)
		err := rows.Scan(
			&rec.ID,
			&sessionID,
			&path,
			&rec.BorrowAmount,
			&rec.RepaymentDue,
			&rec.FinalOutput,
			&rec.Profit,
			&rec.State,
			&rec.Reason,
			&durationNs,
			&createdAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan settlement: %w", err)
		}
		rec.SessionID = uint64(sessionID)
		rec.Path = types.ParsePath(path)
		rec.Duration = time.Duration(durationNs)
		rec.CreatedAt = time.Unix(0, createdAt).UTC()
		records = append(records, &rec)
	}
	return records, rows.Err()
}

// Stats counts settlements by state
func (s *Store) Stats(ctx context.Context) (map[string]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT state, COUNT(*) FROM settlements GROUP BY state`)
	if err != nil {
		return nil, fmt.Errorf("failed to query stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[string]int64)
	for rows.Next() {
		var state string
		var count int64
		if err := rows.Scan(&state, &count); err != nil {
			return nil, fmt.Errorf("failed to scan stats: %w", err)
		}
		stats[state] = count
	}
	return stats, rows.Err()
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}
