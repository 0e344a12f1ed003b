package backend

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const sqliteTimeLayout = time.RFC3339Nano

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(db *sql.DB) (*SQLiteRepository, error) {
	if db == nil {
		return nil, errors.New("backend: nil db")
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	return &SQLiteRepository{db: db}, nil
}

func OpenSQLite(path string) (*SQLiteRepository, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	repo, err := NewSQLiteRepository(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

func (r *SQLiteRepository) DB() *sql.DB {
	return r.db
}

func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

func (r *SQLiteRepository) CreateTimer(ctx context.Context, in TimerRecord) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO timers (id, entity_id, entity_name, duration, action_type, user_id, status, started_at, end_time, executed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		in.ID, in.EntityID, in.EntityName, in.Duration, in.ActionType, in.UserID, in.Status,
		mustTime(in.StartedAt), mustTime(in.EndTime), nullTime(in.ExecutedAt),
	)
	return err
}

func (r *SQLiteRepository) GetTimer(ctx context.Context, id string) (TimerRecord, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, entity_id, entity_name, duration, action_type, user_id, status, started_at, end_time, executed_at
		FROM timers WHERE id = ?`, id)
	item, err := scanTimer(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return TimerRecord{}, ErrNotFound
		}
		return TimerRecord{}, err
	}
	return item, nil
}

func (r *SQLiteRepository) UpdateTimer(ctx context.Context, in TimerRecord) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE timers
		SET entity_id = ?, entity_name = ?, duration = ?, action_type = ?, user_id = ?, status = ?, started_at = ?, end_time = ?, executed_at = ?
		WHERE id = ?`,
		in.EntityID, in.EntityName, in.Duration, in.ActionType, in.UserID, in.Status,
		mustTime(in.StartedAt), mustTime(in.EndTime), nullTime(in.ExecutedAt), in.ID,
	)
	if err != nil {
		return err
	}
	return checkRowsAffected(res)
}

func (r *SQLiteRepository) DeleteTimer(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM timers WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return checkRowsAffected(res)
}

func (r *SQLiteRepository) ListTimers(ctx context.Context, filter TimerListFilter) ([]TimerRecord, error) {
	query := `SELECT id, entity_id, entity_name, duration, action_type, user_id, status, started_at, end_time, executed_at FROM timers`
	where := make([]string, 0, 3)
	args := make([]any, 0, 5)
	if filter.EntityID != "" {
		where = append(where, "entity_id = ?")
		args = append(args, filter.EntityID)
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, filter.Status)
	}
	if filter.UserID != "" {
		where = append(where, "user_id = ?")
		args = append(args, filter.UserID)
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += ` ORDER BY started_at DESC`
	query += applyPagination(&args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]TimerRecord, 0)
	for rows.Next() {
		item, scanErr := scanTimer(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) CreateSchedule(ctx context.Context, in ScheduleRecord) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO schedules (id, entity_id, entity_name, repeat_type, schedule_time, action_type, user_id, status, weekdays, month_days, next_execution, last_executed, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		in.ID, in.EntityID, in.EntityName, in.RepeatType, in.ScheduleTime, in.ActionType, in.UserID, in.Status,
		joinStrings(in.Weekdays), joinInts(in.MonthDays), nullTime(in.NextExecution), nullTime(in.LastExecuted), mustTime(in.CreatedAt),
	)
	return err
}

func (r *SQLiteRepository) GetSchedule(ctx context.Context, id string) (ScheduleRecord, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, entity_id, entity_name, repeat_type, schedule_time, action_type, user_id, status, weekdays, month_days, next_execution, last_executed, created_at
		FROM schedules WHERE id = ?`, id)
	item, err := scanSchedule(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ScheduleRecord{}, ErrNotFound
		}
		return ScheduleRecord{}, err
	}
	return item, nil
}

func (r *SQLiteRepository) UpdateSchedule(ctx context.Context, in ScheduleRecord) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE schedules
		SET entity_id = ?, entity_name = ?, repeat_type = ?, schedule_time = ?, action_type = ?, user_id = ?, status = ?, weekdays = ?, month_days = ?, next_execution = ?, last_executed = ?
		WHERE id = ?`,
		in.EntityID, in.EntityName, in.RepeatType, in.ScheduleTime, in.ActionType, in.UserID, in.Status,
		joinStrings(in.Weekdays), joinInts(in.MonthDays), nullTime(in.NextExecution), nullTime(in.LastExecuted), in.ID,
	)
	if err != nil {
		return err
	}
	return checkRowsAffected(res)
}

func (r *SQLiteRepository) DeleteSchedule(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM schedules WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return checkRowsAffected(res)
}

func (r *SQLiteRepository) ListSchedules(ctx context.Context, filter ScheduleListFilter) ([]ScheduleRecord, error) {
	query := `SELECT id, entity_id, entity_name, repeat_type, schedule_time, action_type, user_id, status, weekdays, month_days, next_execution, last_executed, created_at FROM schedules`
	where := make([]string, 0, 3)
	args := make([]any, 0, 5)
	if filter.EntityID != "" {
		where = append(where, "entity_id = ?")
		args = append(args, filter.EntityID)
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, filter.Status)
	}
	if filter.UserID != "" {
		where = append(where, "user_id = ?")
		args = append(args, filter.UserID)
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC`
	query += applyPagination(&args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]ScheduleRecord, 0)
	for rows.Next() {
		item, scanErr := scanSchedule(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

func nullTime(v *time.Time) any {
	if v == nil {
		return nil
	}
	return v.UTC().Format(sqliteTimeLayout)
}

func mustTime(v time.Time) string {
	return v.UTC().Format(sqliteTimeLayout)
}

func parseNullableTime(v sql.NullString) (*time.Time, error) {
	if !v.Valid || v.String == "" {
		return nil, nil
	}
	tm, err := time.Parse(sqliteTimeLayout, v.String)
	if err != nil {
		return nil, err
	}
	return &tm, nil
}

func parseRequiredTime(v string) (time.Time, error) {
	return time.Parse(sqliteTimeLayout, v)
}

func joinStrings(vals []string) string {
	return strings.Join(vals, ",")
}

func splitStrings(v string) []string {
	if v == "" {
		return nil
	}
	return strings.Split(v, ",")
}

func joinInts(vals []int) string {
	out := make([]string, 0, len(vals))
	for _, v := range vals {
		out = append(out, strconv.Itoa(v))
	}
	return strings.Join(out, ",")
}

func splitInts(v string) ([]int, error) {
	if v == "" {
		return nil, nil
	}
	parts := strings.Split(v, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

func applyPagination(args *[]any, limit, offset int) string {
	sql := ""
	if limit > 0 {
		sql += " LIMIT ?"
		*args = append(*args, limit)
	}
	if offset > 0 {
		sql += " OFFSET ?"
		*args = append(*args, offset)
	}
	return sql
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTimer(s scanner) (TimerRecord, error) {
	var out TimerRecord
	var started, end string
	var executed sql.NullString
	if err := s.Scan(&out.ID, &out.EntityID, &out.EntityName, &out.Duration, &out.ActionType, &out.UserID, &out.Status, &started, &end, &executed); err != nil {
		return TimerRecord{}, err
	}
	startedAt, err := parseRequiredTime(started)
	if err != nil {
		return TimerRecord{}, err
	}
	endTime, err := parseRequiredTime(end)
	if err != nil {
		return TimerRecord{}, err
	}
	executedAt, err := parseNullableTime(executed)
	if err != nil {
		return TimerRecord{}, err
	}
	out.StartedAt = startedAt
	out.EndTime = endTime
	out.ExecutedAt = executedAt
	return out, nil
}

func scanSchedule(s scanner) (ScheduleRecord, error) {
	var out ScheduleRecord
	var weekdays, monthDays string
	var next, last sql.NullString
	var created string
	if err := s.Scan(&out.ID, &out.EntityID, &out.EntityName, &out.RepeatType, &out.ScheduleTime, &out.ActionType, &out.UserID, &out.Status, &weekdays, &monthDays, &next, &last, &created); err != nil {
		return ScheduleRecord{}, err
	}
	createdAt, err := parseRequiredTime(created)
	if err != nil {
		return ScheduleRecord{}, err
	}
	nextAt, err := parseNullableTime(next)
	if err != nil {
		return ScheduleRecord{}, err
	}
	lastAt, err := parseNullableTime(last)
	if err != nil {
		return ScheduleRecord{}, err
	}
	days, err := splitInts(monthDays)
	if err != nil {
		return ScheduleRecord{}, err
	}
	out.Weekdays = splitStrings(weekdays)
	out.MonthDays = days
	out.CreatedAt = createdAt
	out.NextExecution = nextAt
	out.LastExecuted = lastAt
	return out, nil
}

func checkRowsAffected(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
