package ui

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/collectarr/internal/models"
	"github.com/desertthunder/collectarr/internal/reconcile"
	"github.com/desertthunder/collectarr/internal/services"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	CollectionListView ViewState = iota
	MovieListView
	ConfirmView
	SyncView
	ResultView
)

// Model represents the TUI application state.
type Model struct {
	ctx                context.Context
	view               ViewState
	server             services.MediaServer
	engine             *reconcile.Engine
	specs              []models.CollectionSpec
	width              int
	height             int
	collectionList     list.Model
	collections        []models.ServerCollection
	movieList          list.Model
	selectedCollection *models.ServerCollection
	report             *reconcile.RunReport
	err                error
	help               help.Model
	keys               keyMap
}

type collectionsFetchedMsg struct {
	collections []models.ServerCollection
	err         error
}

type moviesFetchedMsg struct {
	collection models.ServerCollection
	items      []models.LibraryItem
	err        error
}

type syncCompleteMsg struct {
	report *reconcile.RunReport
	err    error
}

// NewModel creates a new TUI model with the provided dependencies.
func NewModel(ctx context.Context, server services.MediaServer, engine *reconcile.Engine, specs []models.CollectionSpec) *Model {
	return &Model{
		ctx:    ctx,
		view:   CollectionListView,
		server: server,
		engine: engine,
		specs:  specs,
		help:   help.New(),
		keys:   newKeyMap(),
	}
}

// Init initializes the TUI by fetching collections from the media server.
func (m *Model) Init() tea.Cmd {
	return m.fetchCollections()
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if m.collectionList.Width() == 0 {
			m.collectionList.SetSize(msg.Width-4, msg.Height-8)
		}
		if m.movieList.Width() == 0 {
			m.movieList.SetSize(msg.Width-4, msg.Height-8)
		}
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case CollectionListView:
			return m.handleCollectionListKeys(msg)
		case MovieListView:
			return m.handleMovieListKeys(msg)
		case ConfirmView:
			return m.handleConfirmKeys(msg)
		case ResultView:
			return m.handleResultKeys(msg)
		}

	case collectionsFetchedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, tea.Quit
		}
		m.collections = msg.collections
		items := make([]list.Item, len(msg.collections))
		for i, c := range msg.collections {
			items[i] = collectionItem{collection: c}
		}
		m.collectionList = list.New(items, list.NewDefaultDelegate(), 0, 0)
		m.collectionList.Title = "Collections"
		m.collectionList.SetSize(m.width-4, m.height-8)
		return m, nil

	case moviesFetchedMsg:
		if msg.err != nil {
			m.err = msg.err
			m.view = CollectionListView
			return m, nil
		}
		collection := msg.collection
		m.selectedCollection = &collection
		items := make([]list.Item, len(msg.items))
		for i, item := range msg.items {
			items[i] = movieItem{item: item}
		}
		m.movieList = list.New(items, list.NewDefaultDelegate(), 0, 0)
		m.movieList.Title = fmt.Sprintf("Movies in '%s'", collection.Name)
		m.movieList.SetSize(m.width-4, m.height-8)
		m.view = MovieListView
		return m, nil

	case syncCompleteMsg:
		m.report = msg.report
		m.err = msg.err
		m.view = ResultView
		return m, nil
	}

	return m.updateLists(msg)
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	if m.err != nil && m.view != ResultView {
		return styles.err.Render(fmt.Sprintf("Error: %v\n\nPress q to quit", m.err))
	}

	switch m.view {
	case CollectionListView:
		return m.renderCollectionList()
	case MovieListView:
		return m.renderMovieList()
	case ConfirmView:
		return m.renderConfirm()
	case SyncView:
		return m.renderSync()
	case ResultView:
		return m.renderResult()
	default:
		return ""
	}
}

func (m *Model) handleCollectionListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "s":
		m.view = ConfirmView
		return m, nil
	case "r":
		return m, m.fetchCollections()
	case "enter":
		selected := m.collectionList.SelectedItem()
		if selected != nil {
			if c, ok := selected.(collectionItem); ok {
				return m, m.fetchMovies(c.collection)
			}
		}
	}

	var cmd tea.Cmd
	m.collectionList, cmd = m.collectionList.Update(msg)
	return m, cmd
}

func (m *Model) handleMovieListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "esc":
		m.view = CollectionListView
		return m, nil
	}

	var cmd tea.Cmd
	m.movieList, cmd = m.movieList.Update(msg)
	return m, cmd
}

func (m *Model) handleConfirmKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c", "n", "esc":
		m.view = CollectionListView
		return m, nil
	case "y":
		m.view = SyncView
		return m, m.startSync()
	}
	return m, nil
}

func (m *Model) handleResultKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "r":
		m.view = CollectionListView
		m.report = nil
		m.err = nil
		return m, m.fetchCollections()
	}
	return m, nil
}

func (m *Model) updateLists(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.view {
	case CollectionListView:
		m.collectionList, cmd = m.collectionList.Update(msg)
	case MovieListView:
		m.movieList, cmd = m.movieList.Update(msg)
	}
	return m, cmd
}

func (m *Model) fetchCollections() tea.Cmd {
	return func() tea.Msg {
		collections, err := m.server.ListCollections(m.ctx)
		return collectionsFetchedMsg{collections: collections, err: err}
	}
}

func (m *Model) fetchMovies(collection models.ServerCollection) tea.Cmd {
	return func() tea.Msg {
		state, err := m.server.FetchCollectionState(m.ctx, collection.Name)
		if err != nil {
			return moviesFetchedMsg{err: err}
		}

		index, err := m.server.FetchLibraryIndex(m.ctx)
		if err != nil {
			return moviesFetchedMsg{err: err}
		}

		byID := make(map[string]models.LibraryItem)
		for _, items := range index.ByTitle {
			for _, item := range items {
				byID[item.ID] = item
			}
		}

		var items []models.LibraryItem
		for _, id := range state.MemberIDs {
			if item, ok := byID[id]; ok {
				items = append(items, item)
			} else {
				items = append(items, models.LibraryItem{ID: id, Name: id})
			}
		}
		return moviesFetchedMsg{collection: collection, items: items}
	}
}

func (m *Model) startSync() tea.Cmd {
	return func() tea.Msg {
		report, err := m.engine.Run(m.ctx, m.specs)
		return syncCompleteMsg{report: report, err: err}
	}
}

func (m *Model) renderCollectionList() string {
	helpKeys := []key.Binding{m.keys.enter, m.keys.sync, m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)
	return fmt.Sprintf("%s\n\n%s", m.collectionList.View(), helpView)
}

func (m *Model) renderMovieList() string {
	helpKeys := []key.Binding{m.keys.back, m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)
	return fmt.Sprintf("%s\n\n%s", m.movieList.View(), helpView)
}

func (m *Model) renderConfirm() string {
	title := styles.title.Render(fmt.Sprintf("Sync %d configured collections?", len(m.specs)))
	var names string
	for _, spec := range m.specs {
		names += fmt.Sprintf("  - %s (%s)\n", spec.Name, spec.Source)
	}

	helpKeys := []key.Binding{m.keys.yes, m.keys.no, m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)

	return fmt.Sprintf("%s\n%s\n%s", title, names, helpView)
}

func (m *Model) renderSync() string {
	title := styles.title.Render("Syncing Collections")
	return fmt.Sprintf("%s\n\nReconciling %d collections against the server...", title, len(m.specs))
}

func (m *Model) renderResult() string {
	if m.err != nil {
		return styles.err.Render(fmt.Sprintf("Sync failed: %v\n\nPress r to go back, q to quit", m.err))
	}

	if m.report == nil {
		return styles.err.Render("No report available\n\nPress r to go back, q to quit")
	}

	title := styles.ok.Render("✓ Sync Complete")
	if !m.report.OK() {
		title = styles.warn.Render("Sync finished with failures")
	}

	var lines string
	for _, c := range m.report.Collections {
		line := fmt.Sprintf("\n  %s [%s]", c.Name, c.Status)
		if c.Error != "" {
			line += fmt.Sprintf(": %s", c.Error)
		}
		lines += line
	}
	summary := fmt.Sprintf("\n\n%d succeeded, %d failed", m.report.Succeeded(), m.report.Failed())

	helpKeys := []key.Binding{m.keys.restart, m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)

	return fmt.Sprintf("%s%s%s\n\n%s", title, lines, summary, helpView)
}
