package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/collectarr/internal/models"
	"github.com/desertthunder/collectarr/internal/shared"
	"github.com/urfave/cli/v3"
)

// ProvidersFetch fetches a configured collection's external list and prints
// the entries without touching the server. Useful for verifying credentials
// and list IDs before a sync.
func (r *Runner) ProvidersFetch(ctx context.Context, cmd *cli.Command) error {
	config := r.loadConfig(cmd)
	name := cmd.String("collection")

	var spec *models.CollectionSpec
	for i := range config.Collections {
		if config.Collections[i].Name == name {
			spec = &config.Collections[i]
			break
		}
	}
	if spec == nil {
		return fmt.Errorf("%w: collection %q is not configured", shared.ErrInvalidArgument, name)
	}

	if err := shared.ValidateSpec(*spec); err != nil {
		return err
	}

	providers := r.ensureProviders(config)
	provider, ok := providers[spec.Source]
	if !ok {
		return fmt.Errorf("%w: no provider configured for source %q", shared.ErrMissingConfig, spec.Source)
	}

	r.logger.Info("fetching list", "collection", spec.Name, "source", spec.Source)
	entries, err := provider.FetchList(ctx, *spec)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(entries, cmd.Bool("pretty"))
	}

	r.writePlainHeader(fmt.Sprintf("%s (%s)", spec.Name, provider.Name()))
	for i, entry := range entries {
		line := entry.Title
		if entry.Year > 0 {
			line = fmt.Sprintf("%s (%d)", line, entry.Year)
		}
		if entry.IMDbID != "" {
			line = fmt.Sprintf("%s [%s]", line, entry.IMDbID)
		}
		r.writePlain("%d. %s\n", i+1, line)
	}
	r.writePlain("\nTotal: %d entries\n", len(entries))
	return nil
}

// ServerPing checks connectivity and authentication against the media server.
func (r *Runner) ServerPing(ctx context.Context, cmd *cli.Command) error {
	config := r.loadConfig(cmd)

	server, err := r.ensureServer(config)
	if err != nil {
		return err
	}

	if err := server.Ping(ctx); err != nil {
		return fmt.Errorf("server unreachable: %w", err)
	}

	r.writePlain("✓ Connected to %s at %s\n", server.Name(), config.Emby.URL)
	return nil
}

// ServerLibrary summarizes the movie library index.
func (r *Runner) ServerLibrary(ctx context.Context, cmd *cli.Command) error {
	config := r.loadConfig(cmd)

	server, err := r.ensureServer(config)
	if err != nil {
		return err
	}

	index, err := server.FetchLibraryIndex(ctx)
	if err != nil {
		return err
	}

	total := 0
	for _, items := range index.ByTitle {
		total += len(items)
	}

	if cmd.Bool("json") {
		summary := map[string]int{
			"movies":        total,
			"with_imdb_ids": len(index.ByIMDb),
			"with_tmdb_ids": len(index.ByTMDb),
		}
		return r.writeJSON(summary, true)
	}

	r.writePlainHeader("Library")
	r.writePlain("Movies: %d\n", total)
	r.writePlain("With IMDb IDs: %d\n", len(index.ByIMDb))
	r.writePlain("With TMDb IDs: %d\n", len(index.ByTMDb))
	return nil
}
