// Package ui implements an interactive terminal interface using bubbletea's Elm architecture.
//
// The TUI provides a multi-view workflow for collection management:
//  1. [CollectionListView] : Browse collections on the media server
//  2. [MovieListView] : Inspect the movies inside a collection
//  3. [ConfirmView] : Confirm a full sync run
//  4. [SyncView] : Wait for the sync to finish
//  5. [ResultView] : Display the run report
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern.
// Sync runs execute inside a [tea.Cmd] so the interface stays responsive.
//
// Keyboard navigation uses vim-style bindings (j/k, enter, esc, s, y/n, q) with contextual help displayed via charmbracelet/bubbles/help.
package ui
