// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"testing"

	"github.com/desertthunder/collectarr/internal/models"
	"github.com/desertthunder/collectarr/internal/services"
	"github.com/desertthunder/collectarr/internal/shared"
)

// MockMediaServer is a test double for [services.MediaServer]. It holds
// in-memory state and records every mutation so tests can assert on the
// exact calls an engine run produced. Individual methods can be overridden
// by setting the corresponding func field.
type MockMediaServer struct {
	Library     []models.LibraryItem
	Collections map[string]*models.CollectionState

	// Calls records mutation method names in invocation order.
	Calls []string

	// FailOn makes the named method return an error.
	FailOn map[string]error

	FetchLibraryIndexFunc func(ctx context.Context) (*models.LibraryIndex, error)

	nextID int
}

// NewMockMediaServer returns an empty mock server ready for use.
func NewMockMediaServer(library ...models.LibraryItem) *MockMediaServer {
	return &MockMediaServer{
		Library:     library,
		Collections: map[string]*models.CollectionState{},
		FailOn:      map[string]error{},
	}
}

func (m *MockMediaServer) record(method string) error {
	m.Calls = append(m.Calls, method)
	if err, ok := m.FailOn[method]; ok {
		return err
	}
	return nil
}

func (m *MockMediaServer) byID(id string) *models.CollectionState {
	for _, c := range m.Collections {
		if c.ID == id {
			return c
		}
	}
	return nil
}

func (m *MockMediaServer) Ping(ctx context.Context) error { return nil }

func (m *MockMediaServer) FetchLibraryIndex(ctx context.Context) (*models.LibraryIndex, error) {
	if m.FetchLibraryIndexFunc != nil {
		return m.FetchLibraryIndexFunc(ctx)
	}
	return shared.BuildLibraryIndex(m.Library), nil
}

func (m *MockMediaServer) FetchCollectionState(ctx context.Context, name string) (*models.CollectionState, error) {
	if err, ok := m.FailOn["FetchCollectionState"]; ok {
		return nil, err
	}
	c, ok := m.Collections[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", shared.ErrCollectionNotFound, name)
	}
	copied := *c
	copied.MemberIDs = append([]string(nil), c.MemberIDs...)
	return &copied, nil
}

func (m *MockMediaServer) ListCollections(ctx context.Context) ([]models.ServerCollection, error) {
	if err, ok := m.FailOn["ListCollections"]; ok {
		return nil, err
	}
	var out []models.ServerCollection
	for _, c := range m.Collections {
		out = append(out, models.ServerCollection{ID: c.ID, Name: c.Name})
	}
	return out, nil
}

func (m *MockMediaServer) CreateCollection(ctx context.Context, name string, itemIDs []string) (string, error) {
	if err := m.record("CreateCollection"); err != nil {
		return "", err
	}
	m.nextID++
	state := &models.CollectionState{
		ID:        fmt.Sprintf("coll-%d", m.nextID),
		Name:      name,
		MemberIDs: append([]string(nil), itemIDs...),
		Visible:   true,
	}
	m.Collections[name] = state
	return state.ID, nil
}

func (m *MockMediaServer) AddToCollection(ctx context.Context, collectionID string, itemIDs []string) error {
	if err := m.record("AddToCollection"); err != nil {
		return err
	}
	c := m.byID(collectionID)
	if c == nil {
		return fmt.Errorf("%w: %s", shared.ErrCollectionNotFound, collectionID)
	}
	c.MemberIDs = append(c.MemberIDs, itemIDs...)
	return nil
}

func (m *MockMediaServer) RemoveFromCollection(ctx context.Context, collectionID string, itemIDs []string) error {
	if err := m.record("RemoveFromCollection"); err != nil {
		return err
	}
	c := m.byID(collectionID)
	if c == nil {
		return fmt.Errorf("%w: %s", shared.ErrCollectionNotFound, collectionID)
	}
	drop := map[string]bool{}
	for _, id := range itemIDs {
		drop[id] = true
	}
	var kept []string
	for _, id := range c.MemberIDs {
		if !drop[id] {
			kept = append(kept, id)
		}
	}
	c.MemberIDs = kept
	return nil
}

func (m *MockMediaServer) UpdateMetadata(ctx context.Context, collectionID string, meta services.CollectionMetadata) error {
	return m.record("UpdateMetadata")
}

func (m *MockMediaServer) SetImage(ctx context.Context, collectionID string, imagePath string) error {
	if err := m.record("SetImage"); err != nil {
		return err
	}
	if c := m.byID(collectionID); c != nil {
		c.ImageTag = "mock-image-tag"
	}
	return nil
}

func (m *MockMediaServer) SetVisibility(ctx context.Context, collectionID string, visible bool) error {
	if err := m.record("SetVisibility"); err != nil {
		return err
	}
	if c := m.byID(collectionID); c != nil {
		c.Visible = visible
	}
	return nil
}

func (m *MockMediaServer) DeleteCollection(ctx context.Context, collectionID string) error {
	if err := m.record("DeleteCollection"); err != nil {
		return err
	}
	for name, c := range m.Collections {
		if c.ID == collectionID {
			delete(m.Collections, name)
			return nil
		}
	}
	return fmt.Errorf("%w: %s", shared.ErrCollectionNotFound, collectionID)
}

func (m *MockMediaServer) Name() string { return "mock" }

// MockListProvider is a test double for [services.ListProvider]. Entries are
// keyed by list ID, falling back to Default for any other spec.
type MockListProvider struct {
	Lists   map[string][]models.ExternalListEntry
	Default []models.ExternalListEntry
	Err     error
}

func (m *MockListProvider) FetchList(ctx context.Context, spec models.CollectionSpec) ([]models.ExternalListEntry, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	if entries, ok := m.Lists[spec.ListID]; ok {
		return entries, nil
	}
	return m.Default, nil
}

func (m *MockListProvider) Name() string { return "mock" }

// MockTracker is an in-memory implementation of the engine's tracker.
type MockTracker struct {
	Records map[string]*models.ManagedCollection
	Err     error
}

func NewMockTracker() *MockTracker {
	return &MockTracker{Records: map[string]*models.ManagedCollection{}}
}

func (m *MockTracker) Record(mc *models.ManagedCollection) error {
	if m.Err != nil {
		return m.Err
	}
	copied := *mc
	m.Records[mc.Name] = &copied
	return nil
}

func (m *MockTracker) Get(name string) (*models.ManagedCollection, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Records[name], nil
}

func (m *MockTracker) Names() ([]string, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	var names []string
	for name := range m.Records {
		names = append(names, name)
	}
	return names, nil
}

func (m *MockTracker) Forget(name string) error {
	if m.Err != nil {
		return m.Err
	}
	delete(m.Records, name)
	return nil
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// TempConfigFile writes contents to a temp TOML file and returns its path.
func TempConfigFile(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := dir + "/config.toml"
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}
	return path
}
