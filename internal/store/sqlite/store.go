// Package sqlite is the embedded default store backed by go-sqlite3.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/harrison/fragility/internal/models"
	"github.com/harrison/fragility/internal/store"
)

// Store manages the SQLite database holding events and report history
type Store struct {
	db     *sql.DB
	dbPath string
	now    func() time.Time
}

var _ store.Store = (*Store)(nil)

// NewStore creates a new Store instance and initializes the database
func NewStore(dbPath string) (*Store, error) {
	if dbPath == ":memory:" {
		return openAndInitStore(dbPath)
	}

	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	return openAndInitStore(dbPath)
}

func openAndInitStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Each pooled connection to :memory: would see its own empty database.
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	// busy_timeout goes first so the remaining pragmas wait on locks.
	pragmas := []string{
		"PRAGMA busy_timeout=5000",
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA cache_size=-64000",
	}

	for _, pragma := range pragmas {
		if err := execWithRetry(db, pragma, 5, 10*time.Millisecond); err != nil {
			db.Close()
			return nil, fmt.Errorf("set %s: %w", pragma, err)
		}
	}

	s := &Store{
		db:     db,
		dbPath: dbPath,
		now:    time.Now,
	}

	if err := s.ApplyMigrations(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return s, nil
}

// execWithRetry executes a statement with exponential backoff on lock errors.
func execWithRetry(db *sql.DB, stmt string, maxRetries int, baseDelay time.Duration) error {
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		_, err := db.Exec(stmt)
		if err == nil {
			return nil
		}

		if !strings.Contains(err.Error(), "database is locked") {
			return err
		}

		lastErr = err
		time.Sleep(baseDelay * time.Duration(1<<attempt))
	}
	return lastErr
}

// Path returns the database file path
func (s *Store) Path() string { return s.dbPath }

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

const (
	selectEvents = `SELECT id, user_id, action, ts FROM user_actions ORDER BY user_id ASC, id ASC`
	selectTally  = `SELECT action, COUNT(*) FROM user_actions GROUP BY action`
)

// queryer is satisfied by *sql.DB and *sql.Tx
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// ReadEvents returns all events ordered by user, then position
func (s *Store) ReadEvents(ctx context.Context) ([]models.EventRow, error) {
	return readEvents(ctx, s.db)
}

// ReadActionTally returns per-action counts
func (s *Store) ReadActionTally(ctx context.Context) ([]models.TallyRow, error) {
	return readTally(ctx, s.db)
}

// ReadSnapshot reads events and tally inside one transaction, so both
// observe the same WAL snapshot.
func (s *Store) ReadSnapshot(ctx context.Context) (*models.RawSnapshot, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("begin read transaction: %w", err)
	}
	defer tx.Rollback()

	events, err := readEvents(ctx, tx)
	if err != nil {
		return nil, err
	}
	tally, err := readTally(ctx, tx)
	if err != nil {
		return nil, err
	}
	return &models.RawSnapshot{Events: events, Tally: tally}, nil
}

func readEvents(ctx context.Context, q queryer) ([]models.EventRow, error) {
	rows, err := q.QueryContext(ctx, selectEvents)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var result []models.EventRow
	for rows.Next() {
		var (
			id     int64
			userID sql.NullInt64
			action sql.NullString
			ts     sql.NullString
		)
		if err := rows.Scan(&id, &userID, &action, &ts); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}

		row := models.EventRow{Position: models.Int64Ptr(id)}
		if userID.Valid {
			row.UserID = models.Int64Ptr(userID.Int64)
		}
		if action.Valid {
			row.Action = models.StringPtr(action.String)
		}
		if ts.Valid {
			// An unparseable timestamp is kept as absent; ordering uses position.
			if parsed, err := store.ParseTime(ts.String); err == nil {
				row.Timestamp = &parsed
			}
		}
		result = append(result, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return result, nil
}

func readTally(ctx context.Context, q queryer) ([]models.TallyRow, error) {
	rows, err := q.QueryContext(ctx, selectTally)
	if err != nil {
		return nil, fmt.Errorf("query action tally: %w", err)
	}
	defer rows.Close()

	var result []models.TallyRow
	for rows.Next() {
		var (
			action sql.NullString
			count  sql.NullInt64
		)
		if err := rows.Scan(&action, &count); err != nil {
			return nil, fmt.Errorf("scan tally: %w", err)
		}

		var row models.TallyRow
		if action.Valid {
			row.Action = models.StringPtr(action.String)
		}
		if count.Valid {
			row.Count = models.Int64Ptr(count.Int64)
		}
		result = append(result, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tally: %w", err)
	}
	return result, nil
}

// AppendEvents inserts the batch in one transaction
func (s *Store) AppendEvents(ctx context.Context, events []models.NewEvent) ([]models.Event, error) {
	if err := store.ValidateBatch(events); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO user_actions (user_id, action, ts) VALUES (?, ?, ?)`)
	if err != nil {
		return nil, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	ts := s.now().UTC()
	stored := make([]models.Event, 0, len(events))
	for _, e := range events {
		res, err := stmt.ExecContext(ctx, e.UserID, e.Action, store.FormatTime(ts))
		if err != nil {
			return nil, fmt.Errorf("insert event: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("get event id: %w", err)
		}
		stored = append(stored, models.Event{Position: id, UserID: e.UserID, Action: e.Action, Timestamp: ts})
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit events: %w", err)
	}
	return stored, nil
}

// AppendReport inserts an immutable report record
func (s *Store) AppendReport(ctx context.Context, record models.ReportRecord) (*models.ReportRecord, error) {
	if record.CreatedAt.IsZero() {
		record.CreatedAt = s.now()
	}
	record.CreatedAt = record.CreatedAt.UTC()

	query := `INSERT INTO reports
		(run_id, created_at, total_events, fragility_score, fragility_label, skipped_rows, skipped_events, details)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	res, err := s.db.ExecContext(ctx, query,
		record.RunID,
		store.FormatTime(record.CreatedAt),
		record.TotalEvents,
		record.FragilityScore,
		string(record.FragilityLabel),
		record.SkippedRows,
		record.SkippedEvents,
		record.Details,
	)
	if err != nil {
		return nil, fmt.Errorf("insert report: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get report id: %w", err)
	}
	record.ID = id
	return &record, nil
}

const reportColumns = `id, COALESCE(run_id, ''), created_at, total_events, fragility_score, fragility_label, COALESCE(skipped_rows, 0), COALESCE(skipped_events, 0), details`

// ListReports returns report records, most recent first
func (s *Store) ListReports(ctx context.Context, q models.HistoryQuery) ([]models.ReportRecord, error) {
	var (
		where []string
		args  []any
	)
	if q.Start != nil {
		where = append(where, "created_at >= ?")
		args = append(args, store.FormatTime(*q.Start))
	}
	if q.End != nil {
		where = append(where, "created_at <= ?")
		args = append(args, store.FormatTime(*q.End))
	}

	query := `SELECT ` + reportColumns + ` FROM reports`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC, id DESC`
	if q.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, q.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query reports: %w", err)
	}
	defer rows.Close()

	records := make([]models.ReportRecord, 0)
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reports: %w", err)
	}
	return records, nil
}

// GetReport retrieves one report by id
func (s *Store) GetReport(ctx context.Context, id int64) (*models.ReportRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+reportColumns+` FROM reports WHERE id = ?`, id)
	r, err := scanReport(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrReportNotFound
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanReport(sc scanner) (*models.ReportRecord, error) {
	var (
		r         models.ReportRecord
		createdAt string
		label     string
	)
	err := sc.Scan(&r.ID, &r.RunID, &createdAt, &r.TotalEvents, &r.FragilityScore, &label, &r.SkippedRows, &r.SkippedEvents, &r.Details)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan report: %w", err)
	}

	r.CreatedAt, err = store.ParseTime(createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at of report %d: %w", r.ID, err)
	}
	r.FragilityLabel = models.ParseLabel(label)
	return &r, nil
}
