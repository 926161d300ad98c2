package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/collectarr/internal/ui"
	"github.com/urfave/cli/v3"
)

// TUI launches the interactive collection browser.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	config := r.loadConfig(cmd)
	if err := config.Validate(); err != nil {
		return err
	}

	engine, err := r.buildEngine(config, cmd)
	if err != nil {
		return err
	}

	model := ui.NewModel(ctx, r.server, engine, config.Collections)

	program := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}
