package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"liteassistant/internal/models"
)

const deviceColumns = "id, mqtt_topic, name, device_type, ip_address, is_online, attributes, active_timers"

func scanDevice(row pgx.Row) (*models.Device, error) {
	var d models.Device
	if err := row.Scan(&d.ID, &d.MQTTTopic, &d.Name, &d.DeviceType, &d.IPAddress, &d.IsOnline, &d.Attributes, &d.ActiveTimers); err != nil {
		return nil, notFound(err)
	}
	return &d, nil
}

// ListDevices fetches all devices
func (d *DB) ListDevices(ctx context.Context) ([]models.Device, error) {
	rows, err := d.pool.Query(ctx, "SELECT "+deviceColumns+" FROM devices ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var devices []models.Device
	for rows.Next() {
		device, err := scanDevice(rows)
		if err != nil {
			return nil, err
		}
		devices = append(devices, *device)
	}
	return devices, rows.Err()
}

// GetDeviceByID fetches a device by ID
func (d *DB) GetDeviceByID(ctx context.Context, id int64) (*models.Device, error) {
	return scanDevice(d.pool.QueryRow(ctx, "SELECT "+deviceColumns+" FROM devices WHERE id = $1", id))
}

// GetDeviceByTopic fetches a device by its MQTT topic
func (d *DB) GetDeviceByTopic(ctx context.Context, topic string) (*models.Device, error) {
	return scanDevice(d.pool.QueryRow(ctx, "SELECT "+deviceColumns+" FROM devices WHERE mqtt_topic = $1", topic))
}

// UpsertDevice creates the device for update.MQTTTopic or applies the
// non-nil fields of update to it. Attribute and timer maps replace the
// stored ones as a whole.
func (d *DB) UpsertDevice(ctx context.Context, update models.DeviceUpdate) (*models.Device, error) {
	attributes, err := jsonArg(update.Attributes)
	if err != nil {
		return nil, fmt.Errorf("encode attributes: %w", err)
	}
	timers, err := jsonArg(update.ActiveTimers)
	if err != nil {
		return nil, fmt.Errorf("encode active timers: %w", err)
	}

	return scanDevice(d.pool.QueryRow(ctx, `
		INSERT INTO devices (mqtt_topic, name, ip_address, is_online, attributes, active_timers)
		VALUES ($1, COALESCE($2::text, ''), COALESCE($3::text, ''), COALESCE($4::boolean, FALSE),
		        COALESCE($5::jsonb, '{}'), COALESCE($6::jsonb, '{}'))
		ON CONFLICT (mqtt_topic) DO UPDATE SET
			name          = COALESCE($2::text, devices.name),
			ip_address    = COALESCE($3::text, devices.ip_address),
			is_online     = COALESCE($4::boolean, devices.is_online),
			attributes    = COALESCE($5::jsonb, devices.attributes),
			active_timers = COALESCE($6::jsonb, devices.active_timers),
			updated_at    = NOW()
		RETURNING `+deviceColumns,
		update.MQTTTopic, update.Name, update.IPAddress, update.IsOnline, attributes, timers,
	))
}

// UpdateDeviceDetails changes the operator-editable fields of a device
func (d *DB) UpdateDeviceDetails(ctx context.Context, id int64, name, deviceType string) (*models.Device, error) {
	return scanDevice(d.pool.QueryRow(ctx,
		"UPDATE devices SET name = $2, device_type = $3, updated_at = NOW() WHERE id = $1 RETURNING "+deviceColumns,
		id, name, deviceType))
}

// DeleteDevice removes a device from the database
func (d *DB) DeleteDevice(ctx context.Context, id int64) error {
	tag, err := d.pool.Exec(ctx, "DELETE FROM devices WHERE id = $1", id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
