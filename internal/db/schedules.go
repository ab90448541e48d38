package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"liteassistant/internal/models"
)

const scheduleColumns = `id, name, enabled, device_id, switch_name, schedule_type, run_time, days_of_week, run_date,
	duration, duration_unit, interval_value, interval_unit, total_duration_value, total_duration_unit, start_time, action`

func scanSchedule(row pgx.Row) (*models.Schedule, error) {
	var s models.Schedule
	err := row.Scan(&s.ID, &s.Name, &s.Enabled, &s.DeviceID, &s.SwitchName, &s.ScheduleType, &s.Time, &s.DaysOfWeek, &s.Date,
		&s.Duration, &s.DurationUnit, &s.IntervalValue, &s.IntervalUnit, &s.TotalDurationValue, &s.TotalDurationUnit,
		&s.StartTime, &s.Action)
	if err != nil {
		return nil, notFound(err)
	}
	return &s, nil
}

func (d *DB) querySchedules(ctx context.Context, sql string, args ...interface{}) ([]models.Schedule, error) {
	rows, err := d.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var schedules []models.Schedule
	for rows.Next() {
		s, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		schedules = append(schedules, *s)
	}
	return schedules, rows.Err()
}

// ListSchedules fetches all schedules
func (d *DB) ListSchedules(ctx context.Context) ([]models.Schedule, error) {
	return d.querySchedules(ctx, "SELECT "+scheduleColumns+" FROM schedules ORDER BY id")
}

// GetEnabledSchedules fetches the schedules the schedule engine should load
func (d *DB) GetEnabledSchedules(ctx context.Context) ([]models.Schedule, error) {
	return d.querySchedules(ctx, "SELECT "+scheduleColumns+" FROM schedules WHERE enabled ORDER BY id")
}

// GetScheduleByID fetches a schedule
func (d *DB) GetScheduleByID(ctx context.Context, id int64) (*models.Schedule, error) {
	return scanSchedule(d.pool.QueryRow(ctx, "SELECT "+scheduleColumns+" FROM schedules WHERE id = $1", id))
}

// CreateSchedule inserts s and returns the stored row
func (d *DB) CreateSchedule(ctx context.Context, s models.Schedule) (*models.Schedule, error) {
	days, err := jsonArg(daysOf(s))
	if err != nil {
		return nil, err
	}
	return scanSchedule(d.pool.QueryRow(ctx, `
		INSERT INTO schedules (name, enabled, device_id, switch_name, schedule_type, run_time, days_of_week, run_date,
			duration, duration_unit, interval_value, interval_unit, total_duration_value, total_duration_unit, action)
		VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING `+scheduleColumns,
		s.Name, s.Enabled, s.DeviceID, s.SwitchName, s.ScheduleType, s.Time, days, s.Date,
		s.Duration, s.DurationUnit, s.IntervalValue, s.IntervalUnit, s.TotalDurationValue, s.TotalDurationUnit, s.Action))
}

// UpdateSchedule replaces every field of the schedule with id s.ID.
// The interval campaign restarts, so start_time is cleared.
func (d *DB) UpdateSchedule(ctx context.Context, s models.Schedule) (*models.Schedule, error) {
	days, err := jsonArg(daysOf(s))
	if err != nil {
		return nil, err
	}
	return scanSchedule(d.pool.QueryRow(ctx, `
		UPDATE schedules SET
			name = $2, enabled = $3, device_id = $4, switch_name = $5, schedule_type = $6, run_time = $7,
			days_of_week = $8::jsonb, run_date = $9, duration = $10, duration_unit = $11, interval_value = $12,
			interval_unit = $13, total_duration_value = $14, total_duration_unit = $15, action = $16, start_time = NULL
		WHERE id = $1
		RETURNING `+scheduleColumns,
		s.ID, s.Name, s.Enabled, s.DeviceID, s.SwitchName, s.ScheduleType, s.Time, days, s.Date,
		s.Duration, s.DurationUnit, s.IntervalValue, s.IntervalUnit, s.TotalDurationValue, s.TotalDurationUnit, s.Action))
}

// SetScheduleEnabled flips the enabled flag. Re-enabling a disabled schedule
// clears its campaign anchor so an interval campaign starts over.
func (d *DB) SetScheduleEnabled(ctx context.Context, id int64, enabled bool) error {
	tag, err := d.pool.Exec(ctx, `
		UPDATE schedules
		SET start_time = CASE WHEN $2 AND NOT enabled THEN NULL ELSE start_time END, enabled = $2
		WHERE id = $1`, id, enabled)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetScheduleStartTime persists the interval campaign anchor
func (d *DB) SetScheduleStartTime(ctx context.Context, id int64, start time.Time) error {
	_, err := d.pool.Exec(ctx, "UPDATE schedules SET start_time = $2 WHERE id = $1", id, start.UTC())
	return err
}

// DeleteSchedule removes a schedule
func (d *DB) DeleteSchedule(ctx context.Context, id int64) error {
	tag, err := d.pool.Exec(ctx, "DELETE FROM schedules WHERE id = $1", id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func daysOf(s models.Schedule) []int {
	if s.DaysOfWeek == nil {
		return []int{}
	}
	return s.DaysOfWeek
}
