package tasks

import "fmt"

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	FetchCollections Phase = iota
	FetchLibrary
	ExportCollection
	WriteManifest
	SyncRun
)

func (p Phase) String() string {
	switch p {
	case FetchCollections:
		return "fetch_collections"
	case FetchLibrary:
		return "fetch_library"
	case ExportCollection:
		return "export_collection"
	case WriteManifest:
		return "write_manifest"
	case SyncRun:
		return "sync_run"
	default:
		return "unknown"
	}
}

func fetchingCollectionsUpdate(step, total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchCollections,
		Step:    step,
		Total:   total,
		Message: "Fetching collections from server",
	}
}

func exportingCollectionUpdate(step, total int, name string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExportCollection,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("Exporting '%s'", name),
	}
}

func exportCompletedUpdate(step, total int, name string, files int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExportCollection,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("Exported '%s' (%d files)", name, files),
	}
}

func exportFailedUpdate(step, total int, name string, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExportCollection,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("Failed to export '%s': %v", name, err),
	}
}
