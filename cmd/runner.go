package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/collectarr/internal/reconcile"
	"github.com/desertthunder/collectarr/internal/repositories"
	"github.com/desertthunder/collectarr/internal/services"
	"github.com/desertthunder/collectarr/internal/shared"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configPath string
	server     services.MediaServer
	providers  map[string]services.ListProvider
	tracker    reconcile.Tracker
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Server     services.MediaServer
	Providers  map[string]services.ListProvider
	Tracker    reconcile.Tracker
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.Providers == nil {
		opts.Providers = map[string]services.ListProvider{}
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		server:     opts.Server,
		providers:  opts.Providers,
		tracker:    opts.Tracker,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, syncCommand, collectionsCommand, providersCommand, serverCommand, tuiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// loadConfig reads the config file named by the command's --config flag,
// falling back to the runner's current config when the file is absent.
func (r *Runner) loadConfig(cmd *cli.Command) *shared.Config {
	configPath := cmd.String("config")
	if configPath == "" {
		configPath = r.configPath
	}
	if configPath == "" {
		return r.config
	}

	if _, err := os.Stat(configPath); err != nil {
		r.logger.Debug("config file not found, using current config", "path", configPath)
		return r.config
	}

	config, err := shared.LoadConfig(configPath)
	if err != nil {
		r.logger.Warn("failed to load config, using current config", "path", configPath, "error", err)
		return r.config
	}

	r.config = config
	r.configPath = configPath
	return config
}

// ensureServer returns the configured media server, constructing an Emby
// client from config when none was injected.
func (r *Runner) ensureServer(config *shared.Config) (services.MediaServer, error) {
	if r.server != nil {
		return r.server, nil
	}

	if config.Emby.URL == "" || config.Emby.APIKey == "" {
		return nil, fmt.Errorf("%w: emby.url and emby.api_key are required", shared.ErrMissingConfig)
	}

	r.server = services.NewEmbyService(config.Emby.URL, config.Emby.APIKey, config.Emby.UserID, r.httpClient)
	return r.server, nil
}

// ensureProviders returns the list providers, constructing them from config
// on first use.
func (r *Runner) ensureProviders(config *shared.Config) map[string]services.ListProvider {
	if _, ok := r.providers["mdblist"]; !ok {
		r.providers["mdblist"] = services.NewMDBListService(config.MDBList.APIKey, "", "", r.httpClient)
	}
	if _, ok := r.providers["trakt"]; !ok {
		if config.Trakt.ClientID != "" {
			r.providers["trakt"] = services.NewTraktService(config.Trakt.ClientID, config.Trakt.AccessToken, "", r.httpClient)
		}
	}
	return r.providers
}

// ensureTracker opens the managed collection store, running migrations on
// first use. A nil return with nil error means tracking is disabled.
func (r *Runner) ensureTracker(config *shared.Config) (reconcile.Tracker, error) {
	if r.tracker != nil {
		return r.tracker, nil
	}
	if config.Database.Path == "" {
		return nil, nil
	}

	db, err := shared.NewDatabase(config.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	shared.ConfigureDatabase(db, config.Database.MaxOpenConns, config.Database.MaxIdleConns)

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	r.tracker = repositories.NewManagedCollectionRepository(db)
	return r.tracker, nil
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
