package db

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            BIGSERIAL PRIMARY KEY,
		username      TEXT UNIQUE NOT NULL,
		password_hash TEXT NOT NULL,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS devices (
		id            BIGSERIAL PRIMARY KEY,
		mqtt_topic    TEXT UNIQUE NOT NULL,
		name          TEXT NOT NULL DEFAULT '',
		device_type   TEXT NOT NULL DEFAULT '',
		ip_address    TEXT NOT NULL DEFAULT '',
		is_online     BOOLEAN NOT NULL DEFAULT FALSE,
		attributes    JSONB NOT NULL DEFAULT '{}',
		active_timers JSONB NOT NULL DEFAULT '{}',
		updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS automations (
		id            BIGSERIAL PRIMARY KEY,
		name          TEXT NOT NULL,
		enabled       BOOLEAN NOT NULL DEFAULT TRUE,
		trigger_type  TEXT NOT NULL,
		trigger_value JSONB NOT NULL DEFAULT '{}',
		action_type   TEXT NOT NULL,
		action_value  JSONB NOT NULL DEFAULT '{}',
		created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS schedules (
		id                   BIGSERIAL PRIMARY KEY,
		name                 TEXT NOT NULL,
		enabled              BOOLEAN NOT NULL DEFAULT TRUE,
		device_id            BIGINT NOT NULL REFERENCES devices(id) ON DELETE CASCADE,
		switch_name          TEXT NOT NULL DEFAULT 'POWER',
		schedule_type        TEXT NOT NULL,
		run_time             TEXT NOT NULL DEFAULT '',
		days_of_week         JSONB NOT NULL DEFAULT '[]',
		run_date             TEXT NOT NULL DEFAULT '',
		duration             INTEGER NOT NULL DEFAULT 0,
		duration_unit        TEXT NOT NULL DEFAULT 'minutes',
		interval_value       INTEGER NOT NULL DEFAULT 0,
		interval_unit        TEXT NOT NULL DEFAULT 'minutes',
		total_duration_value INTEGER NOT NULL DEFAULT 0,
		total_duration_unit  TEXT NOT NULL DEFAULT 'hours',
		start_time           TIMESTAMPTZ,
		action               TEXT NOT NULL DEFAULT 'ON'
	)`,
	`CREATE TABLE IF NOT EXISTS execution_logs (
		id            BIGSERIAL PRIMARY KEY,
		source        TEXT NOT NULL,
		entity_id     BIGINT NOT NULL,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		trigger_data  JSONB NOT NULL DEFAULT '{}',
		action_result JSONB NOT NULL DEFAULT '{}',
		success       BOOLEAN NOT NULL,
		error_message TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS execution_logs_entity_idx ON execution_logs (source, entity_id, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS notification_configs (
		id       BIGSERIAL PRIMARY KEY,
		provider TEXT UNIQUE NOT NULL,
		enabled  BOOLEAN NOT NULL DEFAULT TRUE,
		config   JSONB NOT NULL DEFAULT '{}',
		events   JSONB NOT NULL DEFAULT '[]'
	)`,
}
