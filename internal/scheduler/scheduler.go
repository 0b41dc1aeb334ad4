// Package scheduler runs the periodic maintenance jobs of the API server.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/nexuscomply/backend/internal/logger"
	"github.com/nexuscomply/backend/internal/models"
	"github.com/nexuscomply/backend/internal/services"
)

// OverdueMarker flags issues whose due date has passed.
type OverdueMarker interface {
	MarkOverdue(ctx context.Context) ([]services.OverdueIssue, error)
}

// OutletNotifier delivers notifications to outlets.
type OutletNotifier interface {
	NotifyOutlet(outletID uint, nType models.NotificationType, title, message string)
	SendExternal(eventType, title, message string)
}

const sweepTimeout = 2 * time.Minute

// Scheduler owns the cron instance; its lifetime is bound to the server.
type Scheduler struct {
	Cron     *cron.Cron
	issues   OverdueMarker
	notifier OutletNotifier
}

// New registers the overdue sweep on spec, a standard cron expression or
// descriptor such as "@hourly".
func New(issues OverdueMarker, notifier OutletNotifier, spec string) (*Scheduler, error) {
	s := &Scheduler{
		Cron:     cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		issues:   issues,
		notifier: notifier,
	}
	if _, err := s.Cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
		defer cancel()
		s.SweepOverdue(ctx)
	}); err != nil {
		return nil, fmt.Errorf("schedule overdue sweep %q: %w", spec, err)
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.Cron.Start()
	logger.Log().WithField("jobs", len(s.Cron.Entries())).Info("scheduler started")
}

// Stop halts the scheduler and waits for a running job to finish or ctx to
// expire.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.Cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		logger.Log().Warn("scheduler stop timed out with a job still running")
	}
}

// SweepOverdue marks overdue issues and tells each affected outlet.
func (s *Scheduler) SweepOverdue(ctx context.Context) int {
	overdue, err := s.issues.MarkOverdue(ctx)
	if err != nil {
		logger.Log().WithError(err).Error("overdue sweep failed")
		return 0
	}

	perOutlet := map[uint][]services.OverdueIssue{}
	var order []uint
	for _, o := range overdue {
		if _, ok := perOutlet[o.OutletID]; !ok {
			order = append(order, o.OutletID)
		}
		perOutlet[o.OutletID] = append(perOutlet[o.OutletID], o)
	}
	for _, outletID := range order {
		issues := perOutlet[outletID]
		title := "Issues overdue"
		message := fmt.Sprintf("%d issue(s) passed their due date.", len(issues))
		if len(issues) == 1 {
			i := issues[0]
			title = fmt.Sprintf("Issue #%d overdue", i.IssueID)
			message = fmt.Sprintf("%s issue was due %s.", i.Severity, i.DueDate.Format("2006-01-02"))
		}
		s.notifier.NotifyOutlet(outletID, models.NotificationTypeError, title, message)
	}
	if len(overdue) > 0 {
		s.notifier.SendExternal("overdue", "Issues overdue", fmt.Sprintf("%d issue(s) across %d outlet(s) are overdue.", len(overdue), len(order)))
	}
	return len(overdue)
}
