// Package postgres implements the task store on PostgreSQL via the pgx
// stdlib driver, and carries the embedded schema migrations.
package postgres
