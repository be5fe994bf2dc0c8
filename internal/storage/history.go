package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"focusguard/internal/core/model"
)

// WorkSession is one completed stretch of accumulated work, recorded
// when the user takes a break or resets the timer.
type WorkSession struct {
	ID        string
	StartedAt time.Time
	EndedAt   time.Time
	WorkTime  time.Duration
	BreakType model.BreakType
}

// SessionRepository persists completed work sessions.
type SessionRepository struct {
	db *sql.DB
}

// Insert records a completed session. A missing ID is filled with a
// fresh UUID.
func (repo *SessionRepository) Insert(ctx context.Context, session WorkSession) error {
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	_, err := repo.db.ExecContext(ctx,
		"INSERT INTO work_sessions (id, started_at, ended_at, work_time_ms, break_type, created_at) "+
			"VALUES (?, ?, ?, ?, ?, ?)",
		session.ID,
		session.StartedAt.UnixMilli(),
		session.EndedAt.UnixMilli(),
		session.WorkTime.Milliseconds(),
		string(session.BreakType),
		time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("insert work session: %w", err)
	}
	return nil
}

// Recent returns up to limit sessions, newest first.
func (repo *SessionRepository) Recent(ctx context.Context, limit int) ([]WorkSession, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := repo.db.QueryContext(ctx,
		"SELECT id, started_at, ended_at, work_time_ms, break_type "+
			"FROM work_sessions ORDER BY ended_at DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("query work sessions: %w", err)
	}
	defer rows.Close()

	var sessions []WorkSession
	for rows.Next() {
		var (
			session            WorkSession
			startedMs, endedMs int64
			workMs             int64
			breakType          string
		)
		if err := rows.Scan(&session.ID, &startedMs, &endedMs, &workMs, &breakType); err != nil {
			return nil, fmt.Errorf("scan work session: %w", err)
		}
		session.StartedAt = time.UnixMilli(startedMs)
		session.EndedAt = time.UnixMilli(endedMs)
		session.WorkTime = time.Duration(workMs) * time.Millisecond
		session.BreakType = model.BreakType(breakType)
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}

// TotalSince sums recorded work time for sessions that ended at or
// after the given instant, and counts them.
func (repo *SessionRepository) TotalSince(ctx context.Context, since time.Time) (time.Duration, int, error) {
	var (
		totalMs sql.NullInt64
		count   int
	)
	err := repo.db.QueryRowContext(ctx,
		"SELECT COALESCE(SUM(work_time_ms), 0), COUNT(*) "+
			"FROM work_sessions WHERE ended_at >= ?", since.UnixMilli()).
		Scan(&totalMs, &count)
	if err != nil {
		return 0, 0, fmt.Errorf("sum work sessions: %w", err)
	}
	return time.Duration(totalMs.Int64) * time.Millisecond, count, nil
}

// Clear deletes all recorded sessions.
func (repo *SessionRepository) Clear(ctx context.Context) error {
	if _, err := repo.db.ExecContext(ctx, "DELETE FROM work_sessions"); err != nil {
		return fmt.Errorf("clear work sessions: %w", err)
	}
	return nil
}
