package db

import (
	"fmt"

	"gorm.io/gorm"
)

var migrationStatements = []string{
	`CREATE TABLE IF NOT EXISTS branches (
		id          BIGSERIAL PRIMARY KEY,
		name        TEXT NOT NULL,
		address     TEXT,
		phone       TEXT,
		is_active   BOOLEAN NOT NULL DEFAULT TRUE,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	);`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_branches_name ON branches(name);`,
	`CREATE TABLE IF NOT EXISTS cameras (
		id          BIGSERIAL PRIMARY KEY,
		branch_id   BIGINT REFERENCES branches(id),
		name        TEXT,
		rtsp_url    TEXT,
		is_active   BOOLEAN NOT NULL DEFAULT TRUE
	);`,
	`CREATE TABLE IF NOT EXISTS zones (
		id          BIGSERIAL PRIMARY KEY,
		camera_id   BIGINT NOT NULL REFERENCES cameras(id),
		name        TEXT NOT NULL,
		type        TEXT NOT NULL,
		coords      JSONB NOT NULL
	);`,
	`CREATE INDEX IF NOT EXISTS idx_zones_camera_id ON zones(camera_id);`,
	`CREATE TABLE IF NOT EXISTS customer_log (
		face_embedding_hash TEXT PRIMARY KEY,
		visit_count     INT NOT NULL DEFAULT 1,
		customer_type   TEXT NOT NULL DEFAULT 'new',
		first_seen      TIMESTAMPTZ NOT NULL,
		last_seen       TIMESTAMPTZ NOT NULL,
		camera_id       BIGINT,
		branch_id       BIGINT
	);`,
	`CREATE INDEX IF NOT EXISTS idx_customer_log_last_seen ON customer_log(last_seen);`,
	`CREATE TABLE IF NOT EXISTS billing_log (
		id          BIGSERIAL PRIMARY KEY,
		camera_id   BIGINT,
		zone_name   TEXT,
		item_name   TEXT,
		qty         INT,
		timestamp   TIMESTAMPTZ NOT NULL DEFAULT now()
	);`,
	`CREATE INDEX IF NOT EXISTS idx_billing_log_lookup ON billing_log(camera_id, zone_name, item_name, timestamp);`,
	`CREATE TABLE IF NOT EXISTS events_log (
		id          BIGSERIAL PRIMARY KEY,
		camera_id   BIGINT,
		type        TEXT,
		message     TEXT,
		timestamp   TIMESTAMPTZ NOT NULL DEFAULT now()
	);`,
	`CREATE INDEX IF NOT EXISTS idx_events_log_lookup ON events_log(camera_id, type, timestamp);`,
	`CREATE TABLE IF NOT EXISTS staff_log (
		id          BIGSERIAL PRIMARY KEY,
		camera_id   BIGINT,
		staff_name  TEXT,
		zone_name   TEXT,
		timestamp   TIMESTAMPTZ NOT NULL DEFAULT now()
	);`,
	`CREATE TABLE IF NOT EXISTS table_occupancy_log (
		id               BIGSERIAL PRIMARY KEY,
		camera_id        BIGINT,
		zone_name        TEXT,
		start_time       TIMESTAMPTZ NOT NULL,
		end_time         TIMESTAMPTZ,
		duration_seconds BIGINT,
		person_count     INT NOT NULL DEFAULT 1,
		items            JSONB,
		status           TEXT NOT NULL DEFAULT 'open',
		created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
	);`,
	`CREATE INDEX IF NOT EXISTS idx_occupancy_open ON table_occupancy_log(camera_id, zone_name, status);`,
	`CREATE TABLE IF NOT EXISTS queue_log (
		id               BIGSERIAL PRIMARY KEY,
		camera_id        BIGINT,
		zone_name        TEXT,
		start_time       TIMESTAMPTZ NOT NULL,
		end_time         TIMESTAMPTZ,
		duration_seconds BIGINT,
		max_queue_count  INT,
		status           TEXT NOT NULL DEFAULT 'open',
		created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
	);`,
	`CREATE INDEX IF NOT EXISTS idx_queue_open ON queue_log(camera_id, zone_name, status);`,
}

func runMigrations(db *gorm.DB) error {
	for i, stmt := range migrationStatements {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	return nil
}
