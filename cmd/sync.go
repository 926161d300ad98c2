package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/collectarr/internal/formatter"
	"github.com/desertthunder/collectarr/internal/models"
	"github.com/desertthunder/collectarr/internal/reconcile"
	"github.com/desertthunder/collectarr/internal/shared"
	"github.com/desertthunder/collectarr/internal/tasks"
	"github.com/urfave/cli/v3"
)

// SyncRun reconciles every configured collection, once or on a schedule.
func (r *Runner) SyncRun(ctx context.Context, cmd *cli.Command) error {
	config := r.loadConfig(cmd)
	if err := config.Validate(); err != nil {
		return err
	}

	specs := r.selectSpecs(config, cmd.StringSlice("collection"))
	if len(specs) == 0 {
		return fmt.Errorf("%w: no collections configured", shared.ErrMissingConfig)
	}

	engine, err := r.buildEngine(config, cmd)
	if err != nil {
		return err
	}

	interval := cmd.Duration("every")
	if interval > 0 {
		r.logger.Info("starting scheduled sync", "interval", interval, "collections", len(specs))
		scheduler := tasks.NewScheduler(engine, specs, interval, r.logger)
		scheduler.OnReport = func(report *reconcile.RunReport) {
			r.printReport(report, cmd.Bool("json"))
		}
		return scheduler.Run(ctx)
	}

	report, err := engine.Run(ctx, specs)
	if err != nil {
		return err
	}

	if err := r.printReport(report, cmd.Bool("json")); err != nil {
		return err
	}

	if !report.OK() {
		return fmt.Errorf("%d of %d collections failed", report.Failed(), len(report.Collections))
	}
	return nil
}

// selectSpecs filters the configured specs by the --collection flag values.
// An empty filter selects everything.
func (r *Runner) selectSpecs(config *shared.Config, names []string) []models.CollectionSpec {
	if len(names) == 0 {
		return config.Collections
	}

	wanted := map[string]bool{}
	for _, name := range names {
		wanted[name] = true
	}

	var specs []models.CollectionSpec
	for _, spec := range config.Collections {
		if wanted[spec.Name] {
			specs = append(specs, spec)
		}
	}
	return specs
}

// buildEngine assembles the sync engine from the runner's collaborators and
// the command's flags.
func (r *Runner) buildEngine(config *shared.Config, cmd *cli.Command) (*reconcile.Engine, error) {
	server, err := r.ensureServer(config)
	if err != nil {
		return nil, err
	}

	tracker, err := r.ensureTracker(config)
	if err != nil {
		return nil, err
	}

	settings := reconcile.Settings{
		DryRun:         config.Settings.DryRun || cmd.Bool("dry-run"),
		RemoveMissing:  config.Settings.RemoveMissing,
		DeleteUnlisted: config.Settings.DeleteUnlisted || cmd.Bool("delete-unlisted"),
		ClearFirst:     config.Settings.ClearFirst || cmd.Bool("clear"),
		MatchPriority:  config.Settings.MatchPriorityOrDefault(),
	}

	return reconcile.NewEngine(server, r.ensureProviders(config), tracker, settings, r.logger), nil
}

func (r *Runner) printReport(report *reconcile.RunReport, asJSON bool) error {
	if asJSON {
		data, err := formatter.ReportToJSON(report)
		if err != nil {
			return err
		}
		return r.writePlain("%s\n", data)
	}
	return r.writePlain("%s", formatter.ReportToText(report))
}
