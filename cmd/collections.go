package main

import (
	"context"

	"github.com/desertthunder/collectarr/internal/tasks"
	"github.com/urfave/cli/v3"
)

// CollectionsList prints the collections present on the media server.
func (r *Runner) CollectionsList(ctx context.Context, cmd *cli.Command) error {
	config := r.loadConfig(cmd)

	server, err := r.ensureServer(config)
	if err != nil {
		return err
	}

	collections, err := server.ListCollections(ctx)
	if err != nil {
		return err
	}

	if cmd.Bool("managed") {
		tracker, err := r.ensureTracker(config)
		if err != nil {
			return err
		}
		if tracker != nil {
			names, err := tracker.Names()
			if err != nil {
				return err
			}
			managed := map[string]bool{}
			for _, name := range names {
				managed[name] = true
			}

			filtered := collections[:0]
			for _, c := range collections {
				if managed[c.Name] {
					filtered = append(filtered, c)
				}
			}
			collections = filtered
		}
	}

	if cmd.Bool("json") {
		return r.writeJSON(collections, cmd.Bool("pretty"))
	}

	r.writePlainHeader("Collections")
	for _, c := range collections {
		visibility := ""
		if !c.Visible {
			visibility = " (hidden)"
		}
		r.writePlain("%s - %d movies%s\n", c.Name, c.ItemCount, visibility)
	}
	r.writePlain("\nTotal: %d\n", len(collections))
	return nil
}

// CollectionsExport dumps every server collection to disk via the bulk
// export worker pool.
func (r *Runner) CollectionsExport(ctx context.Context, cmd *cli.Command) error {
	config := r.loadConfig(cmd)

	server, err := r.ensureServer(config)
	if err != nil {
		return err
	}

	exporter := tasks.NewExporter(server, r.logger)

	prog := make(chan tasks.ProgressUpdate, 50)
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		for update := range prog {
			r.writePlain("%s\n", update.Message)
		}
	}()

	result, err := exporter.BulkExport(ctx, prog, tasks.BulkExportOpts{
		Format:     cmd.String("format"),
		OutputDir:  cmd.String("output"),
		NumWorkers: int(cmd.Int("workers")),
	})
	close(prog)
	<-drained

	if err != nil {
		return err
	}

	r.writePlainln("Export complete")
	r.writePlain("Directory: %s\n", result.OutputDirectory)
	r.writePlain("Exported: %d/%d collections\n", result.SuccessfulExports, result.TotalCollections)
	if result.FailedExports > 0 {
		r.writePlain("Failed: %d\n", result.FailedExports)
		for _, res := range result.Results {
			if !res.Success {
				r.writePlain("  - %s: %v\n", res.CollectionName, res.Error)
			}
		}
	}
	r.writePlain("Manifest: %s\n", result.ManifestPath)
	return nil
}
