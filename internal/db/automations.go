package db

import (
	"context"

	"github.com/jackc/pgx/v5"

	"liteassistant/internal/models"
)

const automationColumns = "id, name, enabled, trigger_type, trigger_value, action_type, action_value"

func scanAutomation(row pgx.Row) (*models.Automation, error) {
	var a models.Automation
	if err := row.Scan(&a.ID, &a.Name, &a.Enabled, &a.TriggerType, &a.TriggerValue, &a.ActionType, &a.ActionValue); err != nil {
		return nil, notFound(err)
	}
	return &a, nil
}

func (d *DB) queryAutomations(ctx context.Context, sql string, args ...interface{}) ([]models.Automation, error) {
	rows, err := d.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var automations []models.Automation
	for rows.Next() {
		a, err := scanAutomation(rows)
		if err != nil {
			return nil, err
		}
		automations = append(automations, *a)
	}
	return automations, rows.Err()
}

// ListAutomations fetches all automations
func (d *DB) ListAutomations(ctx context.Context) ([]models.Automation, error) {
	return d.queryAutomations(ctx, "SELECT "+automationColumns+" FROM automations ORDER BY id")
}

// GetEnabledAutomations fetches the automations the rule evaluator should load
func (d *DB) GetEnabledAutomations(ctx context.Context) ([]models.Automation, error) {
	return d.queryAutomations(ctx, "SELECT "+automationColumns+" FROM automations WHERE enabled ORDER BY id")
}

// GetAutomationByID fetches an automation
func (d *DB) GetAutomationByID(ctx context.Context, id int64) (*models.Automation, error) {
	return scanAutomation(d.pool.QueryRow(ctx, "SELECT "+automationColumns+" FROM automations WHERE id = $1", id))
}

// CreateAutomation inserts a and returns the stored row
func (d *DB) CreateAutomation(ctx context.Context, a models.Automation) (*models.Automation, error) {
	return scanAutomation(d.pool.QueryRow(ctx, `
		INSERT INTO automations (name, enabled, trigger_type, trigger_value, action_type, action_value)
		VALUES ($1, $2, $3, $4::jsonb, $5, $6::jsonb)
		RETURNING `+automationColumns,
		a.Name, a.Enabled, a.TriggerType, string(a.TriggerValue), a.ActionType, string(a.ActionValue)))
}

// UpdateAutomation replaces every field of the automation with id a.ID
func (d *DB) UpdateAutomation(ctx context.Context, a models.Automation) (*models.Automation, error) {
	return scanAutomation(d.pool.QueryRow(ctx, `
		UPDATE automations
		SET name = $2, enabled = $3, trigger_type = $4, trigger_value = $5::jsonb, action_type = $6, action_value = $7::jsonb
		WHERE id = $1
		RETURNING `+automationColumns,
		a.ID, a.Name, a.Enabled, a.TriggerType, string(a.TriggerValue), a.ActionType, string(a.ActionValue)))
}

// SetAutomationEnabled flips the enabled flag
func (d *DB) SetAutomationEnabled(ctx context.Context, id int64, enabled bool) (*models.Automation, error) {
	return scanAutomation(d.pool.QueryRow(ctx,
		"UPDATE automations SET enabled = $2 WHERE id = $1 RETURNING "+automationColumns, id, enabled))
}

// DeleteAutomation removes an automation and its execution logs
func (d *DB) DeleteAutomation(ctx context.Context, id int64) error {
	tx, err := d.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, "DELETE FROM automations WHERE id = $1", id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	if _, err := tx.Exec(ctx, "DELETE FROM execution_logs WHERE source = $1 AND entity_id = $2", models.SourceAutomation, id); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
