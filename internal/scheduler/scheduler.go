package scheduler

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"

	"parking-ledger/internal/logging"
	"parking-ledger/internal/parking"
)

// Exporter writes a report into dir and returns the file path.
type Exporter interface {
	ExportReport(ctx context.Context, dir string) (string, error)
}

// ReportScheduler exports the ledger report on a cron schedule.
type ReportScheduler struct {
	cron     *cron.Cron
	exporter Exporter
	dir      string
	spec     string
}

// New validates spec and registers the export job. Standard five-field
// expressions and descriptors such as "@daily" or "@every 1h" are accepted.
func New(exporter Exporter, dir, spec string) (*ReportScheduler, error) {
	s := &ReportScheduler{
		cron:     cron.New(),
		exporter: exporter,
		dir:      dir,
		spec:     spec,
	}

	if _, err := s.cron.AddFunc(spec, func() { s.run(context.Background()) }); err != nil {
		return nil, fmt.Errorf("%w: report schedule %q: %v", parking.ErrInvalidInput, spec, err)
	}

	return s, nil
}

func (s *ReportScheduler) Start() {
	logging.Logger().Info().Str("schedule", s.spec).Str("dir", s.dir).Msg("report scheduler started")
	s.cron.Start()
}

// Stop prevents new runs and waits for a running export to finish or ctx to end.
func (s *ReportScheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
}

func (s *ReportScheduler) run(ctx context.Context) {
	path, err := s.exporter.ExportReport(ctx, s.dir)
	if err != nil {
		logging.Error(ctx).Err(err).Msg("scheduled report export failed")
		return
	}
	logging.Info(ctx).Str("path", path).Msg("scheduled report exported")
}
