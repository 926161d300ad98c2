package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/collectarr/internal/models"
	"github.com/desertthunder/collectarr/internal/services"
	"github.com/desertthunder/collectarr/internal/shared"
)

// Settings are the immutable run-level options threaded into the engine.
// Per-collection specs may override RemoveMissing and MatchPriority.
type Settings struct {
	DryRun         bool
	RemoveMissing  bool
	DeleteUnlisted bool
	ClearFirst     bool
	MatchPriority  []string

	// Now supplies the run's reference date. Defaults to time.Now; tests
	// inject fixed dates for seasonal windows.
	Now func() time.Time
}

func (s Settings) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Tracker persists which collections this tool manages and the metadata it
// last wrote. The tracker record is the marker consulted by the
// delete-unlisted scan, and the stored metadata lets a sync skip fields a
// user has since edited by hand.
type Tracker interface {
	// Record upserts the managed record for a collection.
	Record(mc *models.ManagedCollection) error

	// Get returns the managed record by collection name, or nil when the
	// collection is not managed by this tool.
	Get(name string) (*models.ManagedCollection, error)

	// Names returns every managed collection name.
	Names() ([]string, error)

	// Forget removes the managed record (e.g. after deleting the collection).
	Forget(name string) error
}

// Engine reconciles configured collection specs against the media server.
// Processing is sequential and synchronous: one spec at a time, so failures
// isolate cleanly and external APIs are never hammered concurrently.
type Engine struct {
	server    services.MediaServer
	providers map[string]services.ListProvider
	tracker   Tracker
	settings  Settings
	logger    *log.Logger
}

// NewEngine creates an engine with the provided collaborators. The provider
// map is keyed by spec source tag ("mdblist", "trakt").
func NewEngine(server services.MediaServer, providers map[string]services.ListProvider, tracker Tracker, settings Settings, logger *log.Logger) *Engine {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	return &Engine{
		server:    server,
		providers: providers,
		tracker:   tracker,
		settings:  settings,
		logger:    logger,
	}
}

// Run processes every spec in order and returns the run report. A failure in
// one spec never aborts the others; only a failure to reach the library
// index at all (nothing can match without it) fails the run outright.
func (e *Engine) Run(ctx context.Context, specs []models.CollectionSpec) (*RunReport, error) {
	report := NewRunReport(e.settings.DryRun, e.settings.now())

	if e.server == nil {
		return nil, fmt.Errorf("%w: media server not initialized", shared.ErrServiceUnavailable)
	}

	index, err := e.server.FetchLibraryIndex(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to build library index: %w", err)
	}
	e.logger.Info("built library index",
		"imdb", len(index.ByIMDb), "tmdb", len(index.ByTMDb), "titles", len(index.ByTitle))

	for _, spec := range specs {
		rep := e.syncCollection(ctx, spec, index)
		report.Collections = append(report.Collections, rep)

		logger := shared.WithLogger(e.logger, "collection", spec.Name, "status", rep.Status)
		if rep.Status == StatusFailed {
			logger.Error("collection sync failed", "reason", rep.Error)
		} else {
			logger.Info("collection processed",
				"resolved", rep.Resolved, "unresolved", len(rep.Unresolved))
		}
	}

	if e.settings.DeleteUnlisted {
		e.deleteUnlisted(ctx, specs, report)
	}

	report.FinishedAt = e.settings.now()
	return report, nil
}

// syncCollection fetches, matches, plans and applies one spec. All failure
// modes are converted into a failed report entry; nothing escapes except via
// the returned record.
func (e *Engine) syncCollection(ctx context.Context, spec models.CollectionSpec, index *models.LibraryIndex) CollectionReport {
	rep := CollectionReport{Name: spec.Name, Status: StatusApplied}
	if e.settings.DryRun {
		rep.Status = StatusPreview
	}

	// Configuration errors are detected before any fetch.
	if err := shared.ValidateSpec(spec); err != nil {
		rep.Status = StatusFailed
		rep.Error = err.Error()
		return rep
	}

	provider, ok := e.providers[spec.Source]
	if !ok {
		rep.Status = StatusFailed
		rep.Error = fmt.Sprintf("no provider configured for source %q", spec.Source)
		return rep
	}

	entries, err := provider.FetchList(ctx, spec)
	if err != nil {
		rep.Status = StatusFailed
		rep.Error = fmt.Sprintf("fetch from %s failed: %v", provider.Name(), err)
		return rep
	}
	if len(entries) == 0 {
		e.logger.Warn("no entries fetched", "collection", spec.Name, "source", spec.Source)
		rep.Status = StatusSkipped
		return rep
	}

	sortEntries(entries, spec.SortBy)

	resolved := Resolve(entries, index, e.matchPriority(spec))
	rep.Resolved = len(resolved.ItemIDs)
	rep.Unresolved = resolved.Unresolved
	for _, u := range resolved.Unresolved {
		e.logger.Warn("entry not resolved",
			"collection", spec.Name, "title", u.Entry.Title, "year", u.Entry.Year, "reason", u.Reason)
	}

	state, err := e.fetchState(ctx, spec.Name)
	if err != nil {
		rep.Status = StatusFailed
		rep.Error = fmt.Sprintf("fetch collection state failed: %v", err)
		return rep
	}

	prior := e.managedRecord(spec.Name)
	cs := Plan(spec, state, resolved, prior, e.settings)
	rep.MutationCounts = cs.Counts()

	if cs.Empty() {
		e.logger.Info("collection already up to date", "collection", spec.Name)
	}

	if e.settings.DryRun {
		for _, m := range cs.Mutations {
			e.logger.Info("dry run: would apply mutation",
				"kind", m.Kind, "collection", m.Collection,
				"items", len(m.ItemIDs), "ids", m.ItemIDs,
				"image", m.ImagePath, "visible", m.Visible)
		}
		return rep
	}

	failures, createdID := e.apply(ctx, spec, state, cs)
	if len(failures) > 0 {
		rep.ApplyFailures = failures
		rep.Status = StatusFailed
		rep.Error = fmt.Sprintf("%d of %d mutations failed", len(failures), len(cs.Mutations))
	}

	e.track(spec, state, createdID)
	return rep
}

// fetchState returns nil state when the collection does not exist yet;
// authentication and connectivity failures propagate.
func (e *Engine) fetchState(ctx context.Context, name string) (*models.CollectionState, error) {
	state, err := e.server.FetchCollectionState(ctx, name)
	if err != nil {
		if errors.Is(err, shared.ErrCollectionNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return state, nil
}

func (e *Engine) matchPriority(spec models.CollectionSpec) []string {
	if len(spec.MatchPriority) > 0 {
		return spec.MatchPriority
	}
	if len(e.settings.MatchPriority) > 0 {
		return e.settings.MatchPriority
	}
	return []string{"imdb_id", "tmdb_id", "title"}
}

func (e *Engine) managedRecord(name string) *models.ManagedCollection {
	if e.tracker == nil {
		return nil
	}
	mc, err := e.tracker.Get(name)
	if err != nil {
		e.logger.Warn("failed to read managed record", "collection", name, "err", err)
		return nil
	}
	return mc
}

// Plan computes the ordered change set for one spec. It is a pure function
// of (spec, server state, resolved membership, prior managed record,
// settings): no I/O, no clock reads beyond settings.Now.
func Plan(spec models.CollectionSpec, state *models.CollectionState, resolved ResolvedMembership, prior *models.ManagedCollection, settings Settings) ChangeSet {
	cs := ChangeSet{Collection: spec.Name}
	target := resolved.ItemIDs

	current := map[string]bool{}
	var currentIDs []string
	if state != nil {
		currentIDs = state.MemberIDs
		for _, id := range currentIDs {
			current[id] = true
		}
	} else {
		// The collection is created empty; membership arrives via
		// add-members so application is uniform for both paths.
		cs.add(Mutation{Kind: MutationCreate})
	}

	if settings.ClearFirst && len(currentIDs) > 0 {
		cs.add(Mutation{Kind: MutationRemoveMembers, ItemIDs: append([]string(nil), currentIDs...)})
		current = map[string]bool{}
	}

	var toAdd []string
	for _, id := range target {
		if !current[id] {
			toAdd = append(toAdd, id)
		}
	}
	if len(toAdd) > 0 {
		cs.add(Mutation{Kind: MutationAddMembers, ItemIDs: toAdd})
	}

	if removeMissing(spec, settings) && !settings.ClearFirst {
		targetSet := map[string]bool{}
		for _, id := range target {
			targetSet[id] = true
		}

		var toRemove []string
		for _, id := range currentIDs {
			if !targetSet[id] {
				toRemove = append(toRemove, id)
			}
		}
		if len(toRemove) > 0 {
			cs.add(Mutation{Kind: MutationRemoveMembers, ItemIDs: toRemove})
		}
	}

	if meta := plannedMetadata(spec, prior); meta != (services.CollectionMetadata{}) {
		cs.add(Mutation{Kind: MutationSetMetadata, Metadata: meta})
	}

	// An image already on the server is preserved: either we set it (tracked
	// in the managed record) or the user did, and manual edits win.
	if spec.Image != "" && (state == nil || state.ImageTag == "") {
		cs.add(Mutation{Kind: MutationSetImage, ImagePath: spec.Image})
	}

	inSeason := InSeason(spec.Seasonal, settings.now())
	visible := true
	if state != nil {
		visible = state.Visible
	}
	if inSeason != visible {
		cs.add(Mutation{Kind: MutationSetVisibility, Visible: inSeason})
	}

	return cs
}

func removeMissing(spec models.CollectionSpec, settings Settings) bool {
	if spec.RemoveMissing != nil {
		return *spec.RemoveMissing
	}
	return settings.RemoveMissing
}

// plannedMetadata returns only the fields that changed since we last wrote
// them. A field we never wrote is written once; after that the stored value
// gates rewrites so manual edits on the server are not clobbered.
func plannedMetadata(spec models.CollectionSpec, prior *models.ManagedCollection) services.CollectionMetadata {
	meta := services.CollectionMetadata{}

	if spec.Overview != "" && (prior == nil || prior.Overview != spec.Overview) {
		meta.Overview = spec.Overview
	}
	if spec.SortTitle != "" && (prior == nil || prior.SortTitle != spec.SortTitle) {
		meta.SortTitle = spec.SortTitle
	}
	if spec.DisplayOrder != "" && (prior == nil || prior.DisplayOrder != spec.DisplayOrder) {
		meta.DisplayOrder = spec.DisplayOrder
	}

	return meta
}

// apply sends each mutation to the server. Mutations are independent; a
// failure is recorded and the remaining mutations still attempt to apply.
// The second return carries the server ID when this run created the
// collection.
func (e *Engine) apply(ctx context.Context, spec models.CollectionSpec, state *models.CollectionState, cs ChangeSet) ([]string, string) {
	var failures []string
	collectionID := ""
	if state != nil {
		collectionID = state.ID
	}

	fail := func(m Mutation, err error) {
		msg := fmt.Sprintf("%s: %v", m.Kind, err)
		failures = append(failures, msg)
		e.logger.Error("mutation failed", "collection", spec.Name, "kind", m.Kind, "err", err)
	}

	for _, m := range cs.Mutations {
		// Everything below create needs the collection's server ID.
		if m.Kind != MutationCreate && collectionID == "" {
			fail(m, fmt.Errorf("collection was not created"))
			continue
		}

		var err error
		switch m.Kind {
		case MutationCreate:
			collectionID, err = e.server.CreateCollection(ctx, spec.Name, nil)
		case MutationAddMembers:
			err = e.server.AddToCollection(ctx, collectionID, m.ItemIDs)
		case MutationRemoveMembers:
			err = e.server.RemoveFromCollection(ctx, collectionID, m.ItemIDs)
		case MutationSetMetadata:
			err = e.server.UpdateMetadata(ctx, collectionID, m.Metadata)
		case MutationSetImage:
			err = e.server.SetImage(ctx, collectionID, m.ImagePath)
		case MutationSetVisibility:
			err = e.server.SetVisibility(ctx, collectionID, m.Visible)
		case MutationDelete:
			err = e.server.DeleteCollection(ctx, collectionID)
		}
		if err != nil {
			fail(m, err)
		}
	}

	createdID := ""
	if state == nil {
		createdID = collectionID
	}

	return failures, createdID
}

// track records the collection as managed along with the metadata values
// this run wrote.
func (e *Engine) track(spec models.CollectionSpec, state *models.CollectionState, createdID string) {
	if e.tracker == nil {
		return
	}

	collectionID := createdID
	if state != nil {
		collectionID = state.ID
	}
	if collectionID == "" {
		return
	}

	mc := &models.ManagedCollection{
		Name:         spec.Name,
		CollectionID: collectionID,
		Overview:     spec.Overview,
		SortTitle:    spec.SortTitle,
		DisplayOrder: spec.DisplayOrder,
		ImageSet:     spec.Image != "",
		LastSyncedAt: e.settings.now(),
	}
	if err := e.tracker.Record(mc); err != nil {
		e.logger.Warn("failed to record managed collection", "collection", spec.Name, "err", err)
	}
}

// deleteUnlisted runs once per full run: any server collection carrying our
// managed marker but absent from the configured specs is deleted (the
// container only, never the movies).
func (e *Engine) deleteUnlisted(ctx context.Context, specs []models.CollectionSpec, report *RunReport) {
	if e.tracker == nil {
		e.logger.Warn("delete_unlisted enabled but no tracker configured, skipping scan")
		return
	}

	configured := map[string]bool{}
	for _, spec := range specs {
		configured[spec.Name] = true
	}

	managed, err := e.tracker.Names()
	if err != nil {
		e.logger.Error("failed to list managed collections", "err", err)
		return
	}

	collections, err := e.server.ListCollections(ctx)
	if err != nil {
		e.logger.Error("failed to list server collections", "err", err)
		return
	}

	byName := map[string]models.ServerCollection{}
	for _, c := range collections {
		byName[c.Name] = c
	}

	for _, name := range managed {
		if configured[name] {
			continue
		}

		collection, onServer := byName[name]
		if !onServer {
			// stale record, the collection is already gone
			if err := e.tracker.Forget(name); err != nil {
				e.logger.Warn("failed to forget stale record", "collection", name, "err", err)
			}
			continue
		}

		if e.settings.DryRun {
			e.logger.Info("dry run: would delete unlisted collection", "collection", name, "id", collection.ID)
			report.Deleted = append(report.Deleted, name)
			continue
		}

		e.logger.Warn("deleting unlisted collection", "collection", name, "id", collection.ID)
		if err := e.server.DeleteCollection(ctx, collection.ID); err != nil {
			e.logger.Error("failed to delete unlisted collection", "collection", name, "err", err)
			continue
		}
		if err := e.tracker.Forget(name); err != nil {
			e.logger.Warn("failed to forget managed record", "collection", name, "err", err)
		}
		report.Deleted = append(report.Deleted, name)
	}
}

// sortEntries orders the fetched list before matching. Provider rank is the
// default order; sort_by overrides it.
func sortEntries(entries []models.ExternalListEntry, sortBy string) {
	switch sortBy {
	case "rating":
		sort.SliceStable(entries, func(i, j int) bool { return entries[i].Rating > entries[j].Rating })
	case "votes":
		sort.SliceStable(entries, func(i, j int) bool { return entries[i].Votes > entries[j].Votes })
	case "title":
		sort.SliceStable(entries, func(i, j int) bool { return entries[i].Title < entries[j].Title })
	default:
		sort.SliceStable(entries, func(i, j int) bool { return entries[i].Rank < entries[j].Rank })
	}
}
