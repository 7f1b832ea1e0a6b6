/**
 * @description
 * This file holds the PostgreSQL schema for the service and an idempotent
 * bootstrap that applies it at startup. The constraint and index names are
 * load-bearing: `mapUniqueViolation` matches on them to pick the sentinel
 * error, and the partial unique indexes on `is_primary` enforce the
 * one-primary-per-user invariant at the database even if an application
 * path misses the advisory lock.
 *
 * @dependencies
 * - context: Standard Go library.
 * - github.com/jackc/pgx/v5/pgxpool: The PostgreSQL connection pool.
 */

package store

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS accounts (
    id UUID PRIMARY KEY,
    user_id UUID NOT NULL,
    bank_name TEXT NOT NULL,
    account_holder_name TEXT NOT NULL,
    account_number TEXT NOT NULL,
    ifsc_code TEXT NOT NULL,
    account_type TEXT NOT NULL,
    balance NUMERIC(14, 2) NOT NULL DEFAULT 0,
    upi_pin_hash TEXT NOT NULL,
    is_primary BOOLEAN NOT NULL DEFAULT false,
    is_verified BOOLEAN NOT NULL DEFAULT false,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    CONSTRAINT accounts_account_number_ifsc_key UNIQUE (account_number, ifsc_code)
);
CREATE UNIQUE INDEX IF NOT EXISTS accounts_user_primary_idx
    ON accounts (user_id) WHERE is_primary;
CREATE INDEX IF NOT EXISTS accounts_user_idx ON accounts (user_id);

CREATE TABLE IF NOT EXISTS vpas (
    id UUID PRIMARY KEY,
    user_id UUID NOT NULL,
    account_id UUID NOT NULL REFERENCES accounts (id),
    address TEXT NOT NULL,
    is_primary BOOLEAN NOT NULL DEFAULT false,
    is_active BOOLEAN NOT NULL DEFAULT true,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    CONSTRAINT vpas_address_key UNIQUE (address)
);
CREATE UNIQUE INDEX IF NOT EXISTS vpas_user_primary_idx
    ON vpas (user_id) WHERE is_primary;
CREATE INDEX IF NOT EXISTS vpas_user_idx ON vpas (user_id);

CREATE TABLE IF NOT EXISTS transfers (
    id UUID PRIMARY KEY,
    reference TEXT NOT NULL,
    sender_address TEXT NOT NULL,
    receiver_address TEXT NOT NULL,
    amount NUMERIC(14, 2) NOT NULL,
    description TEXT,
    type TEXT NOT NULL,
    status TEXT NOT NULL,
    failure_reason TEXT,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    completed_at TIMESTAMPTZ,
    CONSTRAINT transfers_reference_key UNIQUE (reference)
);
CREATE INDEX IF NOT EXISTS transfers_sender_idx ON transfers (sender_address, created_at);
CREATE INDEX IF NOT EXISTS transfers_receiver_idx ON transfers (receiver_address, created_at);
CREATE INDEX IF NOT EXISTS transfers_status_created_idx ON transfers (status, created_at);
`

// EnsureSchema creates the tables and indexes if they do not exist yet.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, schema)
	return err
}
