// package tasks implements long-running operations on top of the sync engine.
//
// The Scheduler drives recurring sync runs on a fixed interval, and
// BulkExport dumps every server collection to disk concurrently. Operations
// emit progress updates via channels for non-blocking status reporting to
// CLI/UI layers.
package tasks

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/collectarr/internal/models"
	"github.com/desertthunder/collectarr/internal/reconcile"
	"github.com/desertthunder/collectarr/internal/services"
	"github.com/desertthunder/collectarr/internal/shared"
)

// Scheduler runs the sync engine on a fixed interval until its context is
// cancelled. Runs never overlap: each tick waits for the previous run to
// finish before the next begins.
type Scheduler struct {
	engine   *reconcile.Engine
	specs    []models.CollectionSpec
	interval time.Duration
	logger   *log.Logger

	// OnReport, when set, receives every completed run report.
	OnReport func(*reconcile.RunReport)
}

// NewScheduler creates a scheduler that syncs the given specs every interval.
func NewScheduler(engine *reconcile.Engine, specs []models.CollectionSpec, interval time.Duration, logger *log.Logger) *Scheduler {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Scheduler{
		engine:   engine,
		specs:    specs,
		interval: interval,
		logger:   logger,
	}
}

// Run executes a sync immediately, then on every interval tick until ctx is
// cancelled. Individual run failures are logged, not fatal: the schedule
// keeps going so a transient outage self-heals on the next tick.
func (s *Scheduler) Run(ctx context.Context) error {
	s.runOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopping", "reason", ctx.Err())
			return ctx.Err()
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	start := time.Now()
	report, err := s.engine.Run(ctx, s.specs)
	if err != nil {
		s.logger.Error("scheduled sync failed", "err", err)
		return
	}

	s.logger.Info("scheduled sync finished",
		"run", report.ID,
		"succeeded", report.Succeeded(),
		"failed", report.Failed(),
		"took", time.Since(start).Round(time.Millisecond))

	if s.OnReport != nil {
		s.OnReport(report)
	}
}

// CollectionExportJob pairs a collection with its resolved members for the
// export worker pool.
type CollectionExportJob struct {
	Collection models.ServerCollection
	Items      []models.LibraryItem
}

// CollectionExportResult represents the outcome of exporting one collection.
type CollectionExportResult struct {
	CollectionID   string
	CollectionName string
	Success        bool
	Files          []string
	Error          error
}

// BulkExportResult summarizes a bulk export run.
type BulkExportResult struct {
	TotalCollections  int
	SuccessfulExports int
	FailedExports     int
	OutputDirectory   string
	ManifestPath      string
	Results           []CollectionExportResult
}

// Exporter orchestrates bulk exports against a media server.
type Exporter struct {
	server services.MediaServer
	logger *log.Logger
}

// NewExporter creates an exporter for the given media server.
func NewExporter(server services.MediaServer, logger *log.Logger) *Exporter {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Exporter{server: server, logger: logger}
}

func (e *Exporter) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
		// drop updates rather than block the export
	}
}
