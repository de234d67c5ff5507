package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/existflow/goalpost/internal/logger"
	"github.com/existflow/goalpost/internal/optimistic"
	gsync "github.com/existflow/goalpost/internal/sync"
)

// Run shows the TUI until the member quits. Both lists are reloaded every
// opts.RefreshInterval while it runs.
func Run(ctx context.Context, repo optimistic.Repository, opts Options) error {
	m := NewModel(ctx, repo, opts)

	refresher := gsync.NewRefresher(m.views, opts.RefreshInterval, m.log)
	defer refresher.Stop()
	refresher.SetOnError(m.reportError)
	m.refresh = refresher.RefreshNow

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()

	// Let remote calls that are still running land before the store closes
	for _, v := range m.views {
		v.Wait()
	}
	m.log.Info("TUI stopped", logger.F("owner", opts.OwnerID))
	return err
}
