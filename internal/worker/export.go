package worker

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/mtlprog/mstate/internal/domain"
)

// StateReader returns the last published state.
type StateReader interface {
	Current() domain.DataState
}

// Exporter writes a report for one state tree.
type Exporter interface {
	Export(ctx context.Context, state domain.DataState) error
}

// ExportScheduler runs the configured exporters on a cron schedule.
type ExportScheduler struct {
	cron      *cron.Cron
	states    StateReader
	exporters []Exporter
}

// NewExportScheduler registers one export job on schedule, a six-field cron expression.
func NewExportScheduler(ctx context.Context, schedule string, states StateReader, exporters ...Exporter) (*ExportScheduler, error) {
	s := &ExportScheduler{
		cron:      cron.New(cron.WithSeconds()),
		states:    states,
		exporters: exporters,
	}
	if _, err := s.cron.AddFunc(schedule, func() { s.RunNow(ctx) }); err != nil {
		return nil, fmt.Errorf("registering export job %q: %w", schedule, err)
	}
	return s, nil
}

// RunNow exports the current state. An empty state is skipped.
func (s *ExportScheduler) RunNow(ctx context.Context) {
	state := s.states.Current()
	if len(state) == 0 {
		slog.Info("ExportScheduler: no state loaded yet, skipping export")
		return
	}
	for _, e := range s.exporters {
		if err := e.Export(ctx, state); err != nil {
			slog.Error("ExportScheduler: export failed", "error", err)
		} else {
			slog.Info("ExportScheduler: export completed")
		}
	}
}

// Start starts the scheduler in its own goroutine.
func (s *ExportScheduler) Start() {
	s.cron.Start()
	slog.Info("ExportScheduler: started")
}

// Stop stops the scheduler and waits for a running export to finish.
func (s *ExportScheduler) Stop() {
	<-s.cron.Stop().Done()
	slog.Info("ExportScheduler: stopped")
}
