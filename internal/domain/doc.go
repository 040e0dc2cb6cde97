// Package domain contains the core entities of the gateway: the generation
// task record, its status state machine, and the invariants both must hold.
package domain
