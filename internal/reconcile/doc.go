// Package reconcile contains the sync engine: it matches external list
// entries against the library index, computes the change set that brings a
// server collection in line with its spec, and applies it. Planning is pure
// (no I/O) so every decision is testable with in-memory values; application
// is the only side-effecting step and is skipped entirely under dry run.
package reconcile
