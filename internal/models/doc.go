// Package models defines domain entities for the collectarr reconciliation service.
//
// The package contains two categories of types:
//
// 1. Per-run values constructed fresh for each sync:
//   - [CollectionSpec] : Declarative configuration for one managed collection
//   - [ExternalListEntry] : One item from a fetched provider list
//   - [LibraryItem] / [LibraryIndex] : The media server library and its lookup maps
//   - [CollectionState] : The server's current view of a collection
//
// 2. Persistent entities backed by the sqlite tracker:
//   - [ManagedCollection] : Marker + last-written metadata for collections this tool manages
//
// All per-run values are read-only after construction; nothing here is shared
// across runs or across goroutines.
package models
