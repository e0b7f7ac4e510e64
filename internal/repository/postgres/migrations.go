package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS rides (
		id                VARCHAR(36) PRIMARY KEY,
		driver_id         VARCHAR(64) NOT NULL,
		origin_lat        DOUBLE PRECISION NOT NULL,
		origin_lng        DOUBLE PRECISION NOT NULL,
		origin_label      TEXT NOT NULL DEFAULT '',
		destination_lat   DOUBLE PRECISION NOT NULL,
		destination_lng   DOUBLE PRECISION NOT NULL,
		destination_label TEXT NOT NULL DEFAULT '',
		route_line        TEXT,
		departure_at      TIMESTAMPTZ NOT NULL,
		available_seats   INTEGER NOT NULL CHECK (available_seats >= 0),
		price_per_seat    NUMERIC(14,2) NOT NULL CHECK (price_per_seat >= 0),
		status            VARCHAR(20) NOT NULL,
		cancel_reason     TEXT,
		cancelled_at      TIMESTAMPTZ,
		started_at        TIMESTAMPTZ,
		completed_at      TIMESTAMPTZ,
		created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS rides_driver_idx ON rides (driver_id)`,
	`CREATE INDEX IF NOT EXISTS rides_status_idx ON rides (status)`,
	`CREATE TABLE IF NOT EXISTS seat_adjustments (
		idempotency_key VARCHAR(128) PRIMARY KEY,
		ride_id         VARCHAR(36) NOT NULL REFERENCES rides (id),
		delta           INTEGER NOT NULL,
		created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS bookings (
		id             VARCHAR(36) PRIMARY KEY,
		ride_id        VARCHAR(36) NOT NULL,
		passenger_id   VARCHAR(64) NOT NULL,
		seats          INTEGER NOT NULL CHECK (seats > 0),
		price          NUMERIC(14,2) NOT NULL CHECK (price >= 0),
		payment_method VARCHAR(20) NOT NULL,
		payment_id     VARCHAR(36),
		status         VARCHAR(20) NOT NULL,
		reject_reason  TEXT,
		cancel_reason  TEXT,
		cancelled_by   VARCHAR(64),
		approved_at    TIMESTAMPTZ,
		closed_at      TIMESTAMPTZ,
		created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS bookings_one_pending_per_passenger
		ON bookings (ride_id, passenger_id) WHERE status = 'PENDING'`,
	`CREATE INDEX IF NOT EXISTS bookings_passenger_idx ON bookings (passenger_id)`,
	`CREATE TABLE IF NOT EXISTS wallets (
		id             VARCHAR(36) PRIMARY KEY,
		user_id        VARCHAR(64) NOT NULL UNIQUE,
		balance        NUMERIC(14,2) NOT NULL DEFAULT 0 CHECK (balance >= 0),
		frozen_balance NUMERIC(14,2) NOT NULL DEFAULT 0 CHECK (frozen_balance >= 0),
		currency       VARCHAR(3) NOT NULL,
		created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS payments (
		id              VARCHAR(36) PRIMARY KEY,
		user_id         VARCHAR(64) NOT NULL,
		booking_id      VARCHAR(36),
		amount          NUMERIC(14,2) NOT NULL CHECK (amount > 0),
		currency        VARCHAR(3) NOT NULL,
		type            VARCHAR(20) NOT NULL,
		method          VARCHAR(20) NOT NULL,
		status          VARCHAR(20) NOT NULL,
		external_ref    VARCHAR(128),
		refund_of       VARCHAR(36),
		reason          TEXT,
		idempotency_key VARCHAR(128) UNIQUE,
		created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS payments_user_idx ON payments (user_id)`,
	`CREATE TABLE IF NOT EXISTS compensations (
		id              VARCHAR(36) PRIMARY KEY,
		kind            VARCHAR(20) NOT NULL,
		booking_id      VARCHAR(36) NOT NULL,
		ride_id         VARCHAR(36),
		seats           INTEGER NOT NULL DEFAULT 0,
		payment_id      VARCHAR(36),
		user_id         VARCHAR(64),
		idempotency_key VARCHAR(128) NOT NULL,
		reason          TEXT,
		status          VARCHAR(10) NOT NULL,
		attempts        INTEGER NOT NULL DEFAULT 0,
		last_error      TEXT,
		not_before      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`ALTER TABLE compensations ADD COLUMN IF NOT EXISTS not_before TIMESTAMPTZ NOT NULL DEFAULT NOW()`,
	`CREATE INDEX IF NOT EXISTS compensations_pending_idx ON compensations (created_at) WHERE status = 'PENDING'`,
}

// Migrate creates the schema if it does not exist yet.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration step %d: %w", i+1, err)
		}
	}
	return nil
}
