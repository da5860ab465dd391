package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// tickTimeout bounds one dispatch run. A run still in flight when the next
// tick fires is not prevented here; the engine's per-configuration claim is
// the safety net against duplicate sends.
const tickTimeout = 10 * time.Minute

// Dispatcher is the engine entry point the scheduler drives.
type Dispatcher interface {
	RunTick(ctx context.Context) error
}

// DispatchScheduler runs the notification dispatch engine on a cron
// schedule. Exactly one instance is expected to run the loop in a
// deployment; scaling out requires an external single-writer arrangement.
type DispatchScheduler struct {
	cronEngine *cron.Cron
	dispatcher Dispatcher
	logger     *logrus.Logger
	cronSpec   string
}

func NewDispatchScheduler(dispatcher Dispatcher, logger *logrus.Logger, cronSpec string, loc *time.Location) *DispatchScheduler {
	return &DispatchScheduler{
		cronEngine: cron.New(cron.WithLocation(loc)),
		dispatcher: dispatcher,
		logger:     logger,
		cronSpec:   cronSpec,
	}
}

func (s *DispatchScheduler) Start() error {
	_, err := s.cronEngine.AddFunc(s.cronSpec, func() {
		s.logger.Info("Cron job triggered for notification dispatch")
		ctx, cancel := context.WithTimeout(context.Background(), tickTimeout)
		defer cancel()
		if err := s.dispatcher.RunTick(ctx); err != nil {
			s.logger.WithError(err).Error("Notification dispatch tick failed")
		}
	})
	if err != nil {
		return err
	}
	s.cronEngine.Start()
	s.logger.WithField("cron_spec", s.cronSpec).Info("Dispatch scheduler started")
	return nil
}

func (s *DispatchScheduler) Stop() {
	s.logger.Info("Stopping dispatch scheduler...")
	ctx := s.cronEngine.Stop() // Waits for running jobs.
	<-ctx.Done()
	s.logger.Info("Dispatch scheduler gracefully stopped")
}
