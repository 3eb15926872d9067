// Package postgres stores events and report history in PostgreSQL.
//
// Events live in raw.user_actions and reports in analytics.reports, the
// layout shared with the ingestion tooling that writes the raw schema.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/harrison/fragility/internal/models"
	"github.com/harrison/fragility/internal/store"
)

// Store is a PostgreSQL-backed event and report store
type Store struct {
	db  *sqlx.DB
	now func() time.Time
}

var _ store.Store = (*Store)(nil)

// NewStore connects to dsn, verifies the connection and applies migrations.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, errors.New("postgres dsn is required")
	}

	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	s := &Store{db: db, now: time.Now}
	if err := s.ApplyMigrations(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return s, nil
}

// Close closes the connection pool
func (s *Store) Close() error {
	return s.db.Close()
}

const (
	selectEvents = `SELECT id AS position, user_id, action, ts FROM raw.user_actions ORDER BY user_id ASC, id ASC`
	selectTally  = `SELECT action, COUNT(*) AS count FROM raw.user_actions GROUP BY action`
)

// ReadEvents returns all events ordered by user, then position
func (s *Store) ReadEvents(ctx context.Context) ([]models.EventRow, error) {
	var rows []models.EventRow
	if err := s.db.SelectContext(ctx, &rows, selectEvents); err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	return rows, nil
}

// ReadActionTally returns per-action counts
func (s *Store) ReadActionTally(ctx context.Context) ([]models.TallyRow, error) {
	var rows []models.TallyRow
	if err := s.db.SelectContext(ctx, &rows, selectTally); err != nil {
		return nil, fmt.Errorf("query action tally: %w", err)
	}
	return rows, nil
}

// ReadSnapshot reads events and tally in one repeatable-read transaction.
func (s *Store) ReadSnapshot(ctx context.Context) (*models.RawSnapshot, error) {
	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("begin read transaction: %w", err)
	}
	defer tx.Rollback()

	snap := &models.RawSnapshot{}
	if err := tx.SelectContext(ctx, &snap.Events, selectEvents); err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	if err := tx.SelectContext(ctx, &snap.Tally, selectTally); err != nil {
		return nil, fmt.Errorf("query action tally: %w", err)
	}
	return snap, nil
}

// AppendEvents inserts the batch in one transaction
func (s *Store) AppendEvents(ctx context.Context, events []models.NewEvent) ([]models.Event, error) {
	if err := store.ValidateBatch(events); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PreparexContext(ctx, `INSERT INTO raw.user_actions (user_id, action, ts) VALUES ($1, $2, $3) RETURNING id`)
	if err != nil {
		return nil, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	ts := s.now().UTC().Truncate(time.Microsecond)
	stored := make([]models.Event, 0, len(events))
	for _, e := range events {
		var id int64
		if err := stmt.QueryRowxContext(ctx, e.UserID, e.Action, ts).Scan(&id); err != nil {
			return nil, fmt.Errorf("insert event: %w", err)
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
	record.CreatedAt = record.CreatedAt.UTC().Truncate(time.Microsecond)

	query := `INSERT INTO analytics.reports
		(run_id, created_at, total_events, fragility_score, fragility_label, skipped_rows, skipped_events, details)
		VALUES (:run_id, :created_at, :total_events, :fragility_score, :fragility_label, :skipped_rows, :skipped_events, :details)
		RETURNING id`

	rows, err := s.db.NamedQueryContext(ctx, query, &record)
	if err != nil {
		return nil, fmt.Errorf("insert report: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("insert report: %w", err)
		}
		return nil, errors.New("insert report: no id returned")
	}
	if err := rows.Scan(&record.ID); err != nil {
		return nil, fmt.Errorf("get report id: %w", err)
	}
	return &record, nil
}

const reportColumns = `id, run_id, created_at, total_events, fragility_score, fragility_label, skipped_rows, skipped_events, details`

// ListReports returns report records, most recent first
func (s *Store) ListReports(ctx context.Context, q models.HistoryQuery) ([]models.ReportRecord, error) {
	var (
		where []string
		args  []any
	)
	if q.Start != nil {
		where = append(where, "created_at >= ?")
		args = append(args, q.Start.UTC())
	}
	if q.End != nil {
		where = append(where, "created_at <= ?")
		args = append(args, q.End.UTC())
	}

	query := `SELECT ` + reportColumns + ` FROM analytics.reports`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC, id DESC`
	if q.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, q.Limit)
	}

	records := make([]models.ReportRecord, 0)
	if err := s.db.SelectContext(ctx, &records, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("query reports: %w", err)
	}
	for i := range records {
		normalizeRecord(&records[i])
	}
	return records, nil
}

// GetReport retrieves one report by id
func (s *Store) GetReport(ctx context.Context, id int64) (*models.ReportRecord, error) {
	var r models.ReportRecord
	err := s.db.GetContext(ctx, &r, `SELECT `+reportColumns+` FROM analytics.reports WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrReportNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query report %d: %w", id, err)
	}
	normalizeRecord(&r)
	return &r, nil
}

// normalizeRecord maps rows written by the earlier tooling onto current values
func normalizeRecord(r *models.ReportRecord) {
	r.CreatedAt = r.CreatedAt.UTC()
	r.FragilityLabel = models.ParseLabel(string(r.FragilityLabel))
}
