// Package pg opens pgx pools with retries, applies embedded goose
// migrations, and classifies PostgreSQL errors.
package pg
