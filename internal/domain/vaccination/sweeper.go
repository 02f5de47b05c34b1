package vaccination

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// SweepObserver receives the outcome of each sweep run.
type SweepObserver interface {
	ObserveSweep(marked int, err error)
}

// Sweeper periodically marks overdue scheduled entries as missed.
type Sweeper struct {
	svc      *Service
	cron     *cron.Cron
	observer SweepObserver
	timeout  time.Duration
	logger   zerolog.Logger
}

// NewSweeper registers the sweep on the given five-field cron spec. Runs
// never overlap: a tick that arrives while a sweep is still running is
// skipped.
func NewSweeper(svc *Service, spec string, observer SweepObserver, logger zerolog.Logger) (*Sweeper, error) {
	logger = logger.With().Str("component", "sweeper").Logger()
	cl := cronLogger{logger: logger}
	s := &Sweeper{
		svc:      svc,
		observer: observer,
		timeout:  5 * time.Minute,
		logger:   logger,
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
	}
	if _, err := s.cron.AddFunc(spec, s.tick); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Sweeper) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	s.RunOnce(ctx)
}

// RunOnce performs one sweep immediately. Failures are logged and not
// retried until the next run.
func (s *Sweeper) RunOnce(ctx context.Context) (int, error) {
	start := time.Now()
	s.logger.Info().Msg("sweep started")

	marked, err := s.svc.Sweep(ctx)
	if s.observer != nil {
		s.observer.ObserveSweep(marked, err)
	}
	if err != nil {
		s.logger.Error().Err(err).Msg("sweep failed")
		return 0, err
	}
	s.logger.Info().Int("marked_missed", marked).Dur("took", time.Since(start)).Msg("sweep finished")
	return marked, nil
}

func (s *Sweeper) Start() {
	s.cron.Start()
}

// Stop halts the scheduler and returns a context that is done once any
// running sweep has finished.
func (s *Sweeper) Stop() context.Context {
	return s.cron.Stop()
}

// Next reports when the next sweep is due.
func (s *Sweeper) Next() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct {
	logger zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
