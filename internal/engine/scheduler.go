package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spec-kit/escalation-engine/internal/observability"
	"github.com/spec-kit/escalation-engine/pkg/util"
)

// Scheduler drives periodic evaluation ticks. Ticks never overlap: a
// tick still running when the next is due causes the next to be
// skipped, not queued.
type Scheduler struct {
	evaluator *Evaluator
	executor  *Executor
	tracker   FiringTracker
	interval  time.Duration
	workers   int
	logger    *zap.Logger
	metrics   *observability.Metrics
	cron      *cron.Cron
}

// SchedulerDependencies bundles collaborators for the scheduler.
type SchedulerDependencies struct {
	Evaluator *Evaluator
	Executor  *Executor
	Tracker   FiringTracker
	Interval  time.Duration
	Workers   int
	Logger    *zap.Logger
	Metrics   *observability.Metrics
}

// NewScheduler constructs the scheduler.
func NewScheduler(deps SchedulerDependencies) *Scheduler {
	interval := deps.Interval
	if interval <= 0 {
		interval = time.Minute
	}
	workers := deps.Workers
	if workers <= 0 {
		workers = 4
	}
	return &Scheduler{
		evaluator: deps.Evaluator,
		executor:  deps.Executor,
		tracker:   deps.Tracker,
		interval:  interval,
		workers:   workers,
		logger:    deps.Logger,
		metrics:   deps.Metrics,
	}
}

// Start begins ticking until ctx is cancelled or Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	c := cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cronLogger{s.logger}),
	))
	spec := fmt.Sprintf("@every %s", s.interval)
	if _, err := c.AddFunc(spec, func() {
		s.RunTick(ctx, time.Now())
	}); err != nil {
		return err
	}
	s.cron = c
	c.Start()
	s.logger.Info("escalation scheduler started", zap.Duration("interval", s.interval))
	return nil
}

// Stop halts scheduling and returns a context that is done once any
// in-flight tick has finished.
func (s *Scheduler) Stop() context.Context {
	if s.cron == nil {
		done, cancel := context.WithCancel(context.Background())
		cancel()
		return done
	}
	return s.cron.Stop()
}

// RunTick performs one full evaluation pass: fetch rules, evaluate,
// execute matches, commit. Matches for the same ticket execute
// sequentially; distinct tickets fan out across the worker pool.
func (s *Scheduler) RunTick(ctx context.Context, now time.Time) {
	start := time.Now()

	matches, err := s.evaluator.Evaluate(ctx, now)
	if err != nil {
		if ctx.Err() != nil {
			s.logger.Info("tick cancelled")
			return
		}
		s.logger.Error("tick aborted; retrying next interval", zap.Error(err))
		return
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(s.workers)
	for _, ticketMatches := range groupMatchesByTicket(matches) {
		ticketMatches := ticketMatches
		group.Go(func() error {
			s.executeForTicket(groupCtx, ticketMatches, now)
			return nil
		})
	}
	_ = group.Wait()

	if s.metrics != nil {
		s.metrics.TicksTotal.Inc()
		s.metrics.TickDuration.Observe(time.Since(start).Seconds())
	}
}

func (s *Scheduler) executeForTicket(ctx context.Context, matches []Match, now time.Time) {
	for _, match := range matches {
		if ctx.Err() != nil {
			return
		}
		err := s.executor.Execute(ctx, match, now)
		switch {
		case err == nil:
			if err := s.tracker.MarkFired(ctx, match.Rule.ID, match.Ticket.ID, match.Ref); err != nil {
				s.logger.Warn("firing tracker mark failed", zap.Error(err))
			}
		case errors.Is(err, util.ErrVersionConflict):
			// The ticket changed under us; remaining matches for it
			// were computed against the same stale state.
			if s.metrics != nil {
				s.metrics.VersionConflicts.Inc()
			}
			s.logger.Debug("match dropped on version conflict",
				zap.String("ticket_id", match.Ticket.ID),
				zap.String("rule_id", match.Rule.ID))
			return
		case errors.Is(err, util.ErrInvalidTransition):
			s.logger.Debug("rule does not apply in current status",
				zap.String("ticket_id", match.Ticket.ID),
				zap.String("rule_id", match.Rule.ID))
		default:
			if ctx.Err() != nil {
				return
			}
			s.logger.Warn("firing failed; will retry next tick",
				zap.String("ticket_id", match.Ticket.ID),
				zap.String("rule_id", match.Rule.ID),
				zap.Error(err))
		}
	}
}

// groupMatchesByTicket partitions matches per ticket, preserving rule
// order within each group and first-seen order across groups.
func groupMatchesByTicket(matches []Match) [][]Match {
	index := make(map[string]int)
	var groups [][]Match
	for _, match := range matches {
		i, ok := index[match.Ticket.ID]
		if !ok {
			i = len(groups)
			index[match.Ticket.ID] = i
			groups = append(groups, nil)
		}
		groups[i] = append(groups[i], match)
	}
	return groups
}

// cronLogger adapts zap to the cron logging interface.
type cronLogger struct {
	logger *zap.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Sugar().Infow(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Sugar().Errorw(msg, append([]interface{}{"error", err}, keysAndValues...)...)
}
