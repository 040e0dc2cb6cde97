// Package task runs accepted generation tasks on a bounded global worker
// pool, driving each one through the status state machine to a terminal
// outcome and triggering webhook dispatch.
package task
