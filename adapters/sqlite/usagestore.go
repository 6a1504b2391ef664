package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/pkkmi/andikar-gate/domain/usage"
	"github.com/pkkmi/andikar-gate/ports"
)

// UsageStore implements ports.UsageStore using SQLite. SQLite serializes
// writers, so the read-modify-write in Increment is atomic per row when
// run inside one transaction.
type UsageStore struct {
	db *DB
}

// NewUsageStore creates a new SQLite usage store.
func NewUsageStore(db *DB) *UsageStore {
	return &UsageStore{db: db}
}

// Get returns the rolled-over record for a user without mutating
// stored state.
func (s *UsageStore) Get(ctx context.Context, userID string, now time.Time) (usage.Record, error) {
	rec, err := s.selectRecord(ctx, s.db.DB, userID)
	if errors.Is(err, ports.ErrNotFound) {
		return usage.NewRecord(userID, now), nil
	}
	if err != nil {
		return usage.Record{}, err
	}
	return usage.Rollover(rec, now), nil
}

// Increment atomically applies one request of the given word count.
func (s *UsageStore) Increment(ctx context.Context, userID string, words int64, now time.Time) (usage.Record, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return usage.Record{}, err
	}
	defer tx.Rollback()

	rec, err := s.selectRecord(ctx, tx, userID)
	if errors.Is(err, ports.ErrNotFound) {
		rec = usage.NewRecord(userID, now)
	} else if err != nil {
		return usage.Record{}, err
	}

	rec = usage.Apply(rec, words, now)

	_, err = tx.ExecContext(ctx, `
		INSERT INTO usage_records
			(user_id, requests_count, total_words, daily_words, monthly_words,
			 last_request_at, window_day, window_year, window_month)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			requests_count = excluded.requests_count,
			total_words = excluded.total_words,
			daily_words = excluded.daily_words,
			monthly_words = excluded.monthly_words,
			last_request_at = excluded.last_request_at,
			window_day = excluded.window_day,
			window_year = excluded.window_year,
			window_month = excluded.window_month
	`, rec.UserID, rec.RequestsCount, rec.TotalWords, rec.DailyWords, rec.MonthlyWords,
		rec.LastRequestAt, rec.WindowDay, rec.WindowYear, int(rec.WindowMonth))
	if err != nil {
		return usage.Record{}, err
	}

	if err := tx.Commit(); err != nil {
		return usage.Record{}, err
	}
	return rec, nil
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *UsageStore) selectRecord(ctx context.Context, q querier, userID string) (usage.Record, error) {
	var (
		rec         usage.Record
		lastRequest sql.NullTime
		month       int
	)
	err := q.QueryRowContext(ctx, `
		SELECT user_id, requests_count, total_words, daily_words, monthly_words,
		       last_request_at, window_day, window_year, window_month
		FROM usage_records
		WHERE user_id = ?
	`, userID).Scan(&rec.UserID, &rec.RequestsCount, &rec.TotalWords, &rec.DailyWords,
		&rec.MonthlyWords, &lastRequest, &rec.WindowDay, &rec.WindowYear, &month)
	if errors.Is(err, sql.ErrNoRows) {
		return usage.Record{}, ports.ErrNotFound
	}
	if err != nil {
		return usage.Record{}, err
	}
	if lastRequest.Valid {
		rec.LastRequestAt = lastRequest.Time
	}
	rec.WindowMonth = time.Month(month)
	return rec, nil
}

var _ ports.UsageStore = (*UsageStore)(nil)
