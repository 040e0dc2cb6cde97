// Package service contains the application services that orchestrate the
// domain, store, rate limiting, queueing, and provider layers. Handlers call
// into this package and never touch the lower layers directly.
package service
