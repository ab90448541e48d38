package db

import (
	"context"

	"github.com/jackc/pgx/v5"

	"liteassistant/internal/models"
)

const notificationColumns = "id, provider, enabled, config, events"

func scanNotificationConfig(row pgx.Row) (*models.NotificationConfig, error) {
	var c models.NotificationConfig
	if err := row.Scan(&c.ID, &c.Provider, &c.Enabled, &c.Config, &c.Events); err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

// ListNotificationConfigs fetches every provider configuration
func (d *DB) ListNotificationConfigs(ctx context.Context) ([]models.NotificationConfig, error) {
	rows, err := d.pool.Query(ctx, "SELECT "+notificationColumns+" FROM notification_configs ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	configs := []models.NotificationConfig{}
	for rows.Next() {
		c, err := scanNotificationConfig(rows)
		if err != nil {
			return nil, err
		}
		configs = append(configs, *c)
	}
	return configs, rows.Err()
}

// SaveNotificationConfig creates or replaces the configuration of c.Provider
func (d *DB) SaveNotificationConfig(ctx context.Context, c models.NotificationConfig) (*models.NotificationConfig, error) {
	config, err := jsonArg(c.Config)
	if err != nil {
		return nil, err
	}
	events := c.Events
	if events == nil {
		events = []string{}
	}
	eventsArg, err := jsonArg(events)
	if err != nil {
		return nil, err
	}

	return scanNotificationConfig(d.pool.QueryRow(ctx, `
		INSERT INTO notification_configs (provider, enabled, config, events)
		VALUES ($1, $2, COALESCE($3::jsonb, '{}'), $4::jsonb)
		ON CONFLICT (provider) DO UPDATE SET enabled = $2, config = COALESCE($3::jsonb, '{}'), events = $4::jsonb
		RETURNING `+notificationColumns,
		c.Provider, c.Enabled, config, eventsArg))
}

// DeleteNotificationConfig removes a provider configuration
func (d *DB) DeleteNotificationConfig(ctx context.Context, id int64) error {
	tag, err := d.pool.Exec(ctx, "DELETE FROM notification_configs WHERE id = $1", id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
