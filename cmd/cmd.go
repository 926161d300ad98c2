// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func configFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to configuration file",
		Value:   "config.toml",
	}
}

// syncCommand handles collection reconciliation runs
func syncCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Reconcile configured collections against the media server",
		Flags: []cli.Flag{
			configFlag(),
			&cli.BoolFlag{
				Name:    "dry-run",
				Aliases: []string{"n"},
				Usage:   "Log planned changes without applying them",
			},
			&cli.BoolFlag{
				Name:  "delete-unlisted",
				Usage: "Delete managed collections no longer in the config",
			},
			&cli.BoolFlag{
				Name:  "clear",
				Usage: "Remove all members before re-adding the fetched list",
			},
			&cli.StringSliceFlag{
				Name:  "collection",
				Usage: "Sync only the named collection (repeatable)",
			},
			&cli.DurationFlag{
				Name:  "every",
				Usage: "Run continuously on this interval (e.g. 6h); omit for a single run",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output run report as JSON",
			},
		},
		Action: r.SyncRun,
	}
}

// collectionsCommand handles inspection and export of server collections
func collectionsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "collections",
		Aliases: []string{"coll"},
		Usage:   "Inspect collections on the media server",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List collections on the server",
				Flags: []cli.Flag{
					configFlag(),
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "Pretty-print output",
						Value: true,
					},
					&cli.BoolFlag{
						Name:  "managed",
						Usage: "Show only collections managed by this tool",
					},
				},
				Action: r.CollectionsList,
			},
			{
				Name:  "export",
				Usage: "Export every collection to disk",
				Flags: []cli.Flag{
					configFlag(),
					&cli.StringFlag{
						Name:  "format",
						Usage: "Export format: json, csv, markdown, txt",
						Value: "json",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output directory",
					},
					&cli.IntFlag{
						Name:  "workers",
						Usage: "Concurrent export workers",
						Value: 5,
					},
				},
				Action: r.CollectionsExport,
			},
		},
	}
}

// providersCommand handles list provider diagnostics
func providersCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "providers",
		Usage: "List provider operations",
		Commands: []*cli.Command{
			{
				Name:  "fetch",
				Usage: "Fetch a configured collection's list and print the entries",
				Flags: []cli.Flag{
					configFlag(),
					&cli.StringFlag{
						Name:     "collection",
						Usage:    "Configured collection name",
						Required: true,
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "Pretty-print output",
						Value: true,
					},
				},
				Action: r.ProvidersFetch,
			},
		},
	}
}

// serverCommand handles media server diagnostics
func serverCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "server",
		Usage: "Media server operations",
		Commands: []*cli.Command{
			{
				Name:   "ping",
				Usage:  "Check connectivity and authentication against the media server",
				Flags:  []cli.Flag{configFlag()},
				Action: r.ServerPing,
			},
			{
				Name:  "library",
				Usage: "Summarize the movie library index",
				Flags: []cli.Flag{
					configFlag(),
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.ServerLibrary,
			},
		},
	}
}

// setupCommand handles setup operations for database and configuration.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:   "database",
				Usage:  "Initialize database and run migrations",
				Flags:  []cli.Flag{configFlag()},
				Action: r.SetupDatabase,
			},
			{
				Name:  "config",
				Usage: "Write an example configuration file",
				Flags: []cli.Flag{
					configFlag(),
					&cli.BoolFlag{
						Name:  "force",
						Usage: "Overwrite an existing file",
					},
				},
				Action: r.SetupConfig,
			},
		},
	}
}

// tuiCommand returns the top-level TUI command for interactive collection management.
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "tui",
		Aliases: []string{"interactive", "browse"},
		Usage:   "Launch interactive TUI for browsing and syncing collections",
		Flags:   []cli.Flag{configFlag()},
		Action:  r.TUI,
	}
}
