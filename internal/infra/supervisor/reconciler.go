package supervisor

import (
	"context"
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"travelmcp/internal/domain"
)

var scheduleParser = cron.NewParser(
	cron.Minute |
		cron.Hour |
		cron.Dom |
		cron.Month |
		cron.Dow |
		cron.Descriptor,
)

func parseSchedule(expr string) (cron.Schedule, error) {
	clean := strings.TrimSpace(expr)
	if clean == "" {
		clean = domain.DefaultReconcileSchedule
	}
	schedule, err := scheduleParser.Parse(clean)
	if err != nil {
		return nil, fmt.Errorf("invalid reconcile schedule %q: %w", clean, err)
	}
	return schedule, nil
}

// RunReconciler prunes dead process records once immediately and then on
// the given cron schedule until ctx ends.
func (s *Supervisor) RunReconciler(ctx context.Context, expr string) error {
	schedule, err := parseSchedule(expr)
	if err != nil {
		return err
	}
	s.reconcileOnce(ctx)

	runner := cron.New(cron.WithParser(scheduleParser), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	runner.Schedule(schedule, cron.FuncJob(func() { s.reconcileOnce(ctx) }))
	runner.Start()
	<-ctx.Done()
	<-runner.Stop().Done()
	return nil
}

func (s *Supervisor) reconcileOnce(ctx context.Context) {
	pruned, err := s.Reconcile(ctx)
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Warn("reconcile failed", zap.Error(err))
		}
		return
	}
	if len(pruned) > 0 {
		s.logger.Info("reconciled process records", zap.Strings("pruned", pruned))
	}
}
