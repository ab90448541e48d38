package db

import (
	"context"
	"fmt"

	"liteassistant/internal/models"
)

// InsertExecutionLog records one rule or schedule execution attempt
func (d *DB) InsertExecutionLog(ctx context.Context, entry *models.ExecutionLog) error {
	trigger, err := jsonArg(entry.TriggerData)
	if err != nil {
		return fmt.Errorf("encode trigger data: %w", err)
	}
	result, err := jsonArg(entry.ActionResult)
	if err != nil {
		return fmt.Errorf("encode action result: %w", err)
	}

	return d.pool.QueryRow(ctx, `
		INSERT INTO execution_logs (source, entity_id, created_at, trigger_data, action_result, success, error_message)
		VALUES ($1, $2, $3, COALESCE($4::jsonb, '{}'), COALESCE($5::jsonb, '{}'), $6, $7)
		RETURNING id`,
		entry.Source, entry.EntityID, entry.Timestamp, trigger, result, entry.Success, entry.ErrorMessage,
	).Scan(&entry.ID)
}

// ListExecutionLogs fetches the newest log entries of one rule or schedule
func (d *DB) ListExecutionLogs(ctx context.Context, source string, entityID int64, limit int) ([]models.ExecutionLog, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT id, source, entity_id, created_at, trigger_data, action_result, success, error_message
		FROM execution_logs
		WHERE source = $1 AND entity_id = $2
		ORDER BY created_at DESC
		LIMIT $3`, source, entityID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := []models.ExecutionLog{}
	for rows.Next() {
		var l models.ExecutionLog
		if err := rows.Scan(&l.ID, &l.Source, &l.EntityID, &l.Timestamp, &l.TriggerData, &l.ActionResult, &l.Success, &l.ErrorMessage); err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}
