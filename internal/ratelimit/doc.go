// Package ratelimit admits or delays upstream generation calls per
// credential. It enforces a concurrency cap and a minimum spacing between
// grant starts, locally through per-credential FIFO buckets and, when a
// shared Redis is configured, across processes through atomic admission
// records.
package ratelimit
