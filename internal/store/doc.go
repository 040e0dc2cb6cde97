// Package store defines the task persistence interface, its error types, and
// the in-memory implementation. The PostgreSQL implementation lives in
// internal/platform/postgres.
package store
