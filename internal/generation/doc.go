// Package generation defines the boundary to the upstream generation
// provider: the Generator interface, the artifact model, and the formatter
// that shapes results for callers.
package generation
