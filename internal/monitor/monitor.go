// Package monitor runs the periodic SLA sweep: it evaluates open tickets for
// escalation triggers, actions the winners, and reports what happened.
package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/opsline/helpdesk-core/internal/clock"
	"github.com/opsline/helpdesk-core/internal/domain"
	"github.com/opsline/helpdesk-core/internal/escalate"
	"github.com/opsline/helpdesk-core/internal/events"
	"github.com/opsline/helpdesk-core/internal/notify"
	"github.com/opsline/helpdesk-core/internal/observability"
	"github.com/opsline/helpdesk-core/internal/repository"
	"github.com/opsline/helpdesk-core/internal/routing"
	"github.com/opsline/helpdesk-core/internal/service"
	"github.com/opsline/helpdesk-core/pkg/util"
)

const (
	defaultInterval      = 5 * time.Minute
	defaultNotifyTimeout = 5 * time.Second
	defaultBatchSize     = 500
	actionRetries        = 3
	maxRecentErrors      = 5
)

// SweepError records one per-ticket failure inside a sweep.
type SweepError struct {
	TicketID string `json:"ticket_id"`
	Message  string `json:"message"`
}

// SweepReport summarizes one monitoring pass. One ticket failing never
// aborts the rest; its error lands here instead.
type SweepReport struct {
	SweepID    string       `json:"sweep_id"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
	Checked    int          `json:"checked"`
	Found      int          `json:"triggers_found"`
	Actioned   int          `json:"actioned"`
	Skipped    int          `json:"skipped"`
	Errors     []SweepError `json:"errors,omitempty"`
}

// Status is a point-in-time snapshot of the scheduler.
type Status struct {
	Running         bool       `json:"running"`
	IntervalSeconds int64      `json:"interval_seconds"`
	LastRun         *time.Time `json:"last_run,omitempty"`
	RunCount        int64      `json:"run_count"`
	ErrorCount      int64      `json:"error_count"`
	RecentErrors    []string   `json:"recent_errors,omitempty"`
}

// Scheduler owns the sweep loop. Sweeps also run on demand through RunOnce,
// so all actioning is guarded by the dedup store and optimistic ticket
// versions rather than by the loop itself.
type Scheduler struct {
	ticketRepo repository.TicketRepository
	tickets    *service.TicketService
	evaluator  *escalate.Evaluator
	table      *routing.Table
	notifier   notify.Notifier
	dedup      DedupStore
	dispatcher events.Dispatcher
	clock      clock.Clock
	logger     *zap.Logger
	metrics    *observability.Metrics

	interval      time.Duration
	notifyTimeout time.Duration
	batchSize     int

	sweepMu sync.Mutex

	mu           sync.Mutex
	running      bool
	stop         chan struct{}
	done         chan struct{}
	lastRun      *time.Time
	runCount     int64
	errorCount   int64
	recentErrors []string
}

// Dependencies bundles collaborators for the scheduler.
type Dependencies struct {
	TicketRepo repository.TicketRepository
	Tickets    *service.TicketService
	Evaluator  *escalate.Evaluator
	Table      *routing.Table
	Notifier   notify.Notifier
	Dedup      DedupStore
	Dispatcher events.Dispatcher
	Clock      clock.Clock
	Logger     *zap.Logger
	Metrics    *observability.Metrics
}

// Options tunes the sweep loop. Zero values fall back to defaults.
type Options struct {
	Interval      time.Duration
	NotifyTimeout time.Duration
	BatchSize     int
}

// NewScheduler constructs a stopped scheduler.
func NewScheduler(deps Dependencies, opts Options) *Scheduler {
	clk := deps.Clock
	if clk == nil {
		clk = clock.Real{}
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	interval := opts.Interval
	if interval <= 0 {
		interval = defaultInterval
	}
	notifyTimeout := opts.NotifyTimeout
	if notifyTimeout <= 0 {
		notifyTimeout = defaultNotifyTimeout
	}
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &Scheduler{
		ticketRepo:    deps.TicketRepo,
		tickets:       deps.Tickets,
		evaluator:     deps.Evaluator,
		table:         deps.Table,
		notifier:      deps.Notifier,
		dedup:         deps.Dedup,
		dispatcher:    deps.Dispatcher,
		clock:         clk,
		logger:        logger,
		metrics:       deps.Metrics,
		interval:      interval,
		notifyTimeout: notifyTimeout,
		batchSize:     batchSize,
	}
}

// Start launches the sweep loop. Starting a running scheduler is an error.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return fmt.Errorf("sla monitor already running")
	}
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	s.running = true
	go s.loop(s.stop, s.done)
	s.logger.Info("sla monitor started", zap.Duration("interval", s.interval))
	return nil
}

// Stop signals the loop and waits for it to finish, bounded by ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	stop, done := s.stop, s.done
	s.running = false
	s.mu.Unlock()

	close(stop)
	select {
	case <-done:
		s.logger.Info("sla monitor stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunOnce executes a single sweep immediately, outside the loop schedule.
func (s *Scheduler) RunOnce(ctx context.Context) (SweepReport, error) {
	return s.runSweep(ctx)
}

// Status reports loop state and accumulated run counters.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Status{
		Running:         s.running,
		IntervalSeconds: int64(s.interval / time.Second),
		RunCount:        s.runCount,
		ErrorCount:      s.errorCount,
		RecentErrors:    append([]string(nil), s.recentErrors...),
	}
	if s.lastRun != nil {
		t := *s.lastRun
		st.LastRun = &t
	}
	return st
}

// ManualEscalate raises an operator trigger for one ticket, marks the ticket
// escalated, and notifies the recommended team.
func (s *Scheduler) ManualEscalate(ctx context.Context, ticketID, reason string) (*domain.EscalationTrigger, *domain.Ticket, error) {
	ticket, err := s.tickets.GetTicket(ctx, ticketID)
	if err != nil {
		return nil, nil, err
	}
	trigger := s.evaluator.Manual(ticket, reason, s.clock.Now())

	updated, err := s.tickets.UpdateTicketFields(ctx, ticket.ID,
		map[domain.Field]any{domain.FieldStatus: domain.TicketStatusEscalated},
		domain.ActorAPI,
	)
	if err != nil {
		return nil, nil, err
	}

	if err := s.notifyTeam(ctx, updated, trigger); err != nil {
		s.logger.Error("manual escalation notify failed",
			zap.String("ticket_id", updated.ID),
			zap.Error(err),
		)
	}
	s.publishEscalated(ctx, updated.ID, domain.ActorAPI, trigger)
	if err := s.dedup.MarkActioned(ctx, updated.ID, trigger.Type, trigger.Severity); err != nil {
		s.logger.Warn("dedup mark failed", zap.String("ticket_id", updated.ID), zap.Error(err))
	}
	return trigger, updated, nil
}

func (s *Scheduler) loop(stop, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), s.interval)
			if _, err := s.runSweep(ctx); err != nil {
				s.logger.Error("sweep failed", zap.Error(err))
			}
			cancel()
		case <-stop:
			return
		}
	}
}

func (s *Scheduler) runSweep(ctx context.Context) (SweepReport, error) {
	s.sweepMu.Lock()
	defer s.sweepMu.Unlock()

	now := s.clock.Now()
	report := SweepReport{SweepID: uuid.NewString(), StartedAt: now}

	tickets, err := s.ticketRepo.ListMonitored(ctx, s.batchSize)
	if err != nil {
		s.noteFailure("list monitored tickets: " + err.Error())
		return report, err
	}
	report.Checked = len(tickets)

	for i := range tickets {
		ticket := tickets[i]
		trigger, actioned, err := s.checkTicket(ctx, &ticket, now)
		if trigger != nil {
			report.Found++
		}
		switch {
		case err != nil:
			report.Errors = append(report.Errors, SweepError{TicketID: ticket.ID, Message: err.Error()})
			s.logger.Error("ticket check failed",
				zap.String("ticket_id", ticket.ID),
				zap.Error(err),
			)
		case actioned:
			report.Actioned++
		case trigger != nil:
			report.Skipped++
		}
	}
	report.FinishedAt = s.clock.Now()

	s.metrics.RecordSweep(report.Checked, report.Found, report.Actioned, len(report.Errors))
	s.noteRun(&report)
	s.logger.Info("sweep finished",
		zap.String("sweep_id", report.SweepID),
		zap.Int("checked", report.Checked),
		zap.Int("triggers_found", report.Found),
		zap.Int("actioned", report.Actioned),
		zap.Int("skipped", report.Skipped),
		zap.Int("errors", len(report.Errors)),
	)
	return report, nil
}

// checkTicket evaluates and actions one ticket. The recover keeps a single
// poisoned ticket from taking down the whole sweep.
func (s *Scheduler) checkTicket(ctx context.Context, ticket *domain.Ticket, now time.Time) (trigger *domain.EscalationTrigger, actioned bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while checking ticket: %v", r)
		}
	}()

	trigger = s.evaluator.Evaluate(ticket, now)
	if trigger == nil {
		return nil, false, nil
	}

	lastTrigger, lastSeverity, seen, derr := s.dedup.LastActioned(ctx, ticket.ID)
	if derr != nil {
		// Treat a broken dedup store as empty: re-notifying beats silence.
		s.logger.Warn("dedup lookup failed", zap.String("ticket_id", ticket.ID), zap.Error(derr))
	} else if seen && lastTrigger == trigger.Type && lastSeverity == trigger.Severity {
		return trigger, false, nil
	}

	actioned, err = s.action(ctx, ticket, trigger)
	return trigger, actioned, err
}

// action applies the trigger: upgrade priority when the trigger is critical,
// notify the owning team, publish the event, then mark the trigger actioned.
// The dedup marker lands last so a failed notification retries next sweep.
func (s *Scheduler) action(ctx context.Context, ticket *domain.Ticket, trigger *domain.EscalationTrigger) (bool, error) {
	current := ticket
	if trigger.Severity == domain.SeverityCritical && current.Priority != domain.TicketPriorityCritical {
		upgraded, ok, err := s.upgradePriority(ctx, current)
		if err != nil {
			return false, err
		}
		if !ok {
			// Ticket left the monitored set under us; nothing to escalate.
			return false, nil
		}
		current = upgraded
	}

	if err := s.notifyTeam(ctx, current, trigger); err != nil {
		return false, err
	}
	s.publishEscalated(ctx, current.ID, domain.ActorMonitor, trigger)

	if err := s.dedup.MarkActioned(ctx, current.ID, trigger.Type, trigger.Severity); err != nil {
		s.logger.Warn("dedup mark failed", zap.String("ticket_id", current.ID), zap.Error(err))
	}
	return true, nil
}

// upgradePriority raises the ticket to critical, re-reading on version
// conflicts. Returns ok=false when a concurrent writer closed the ticket.
func (s *Scheduler) upgradePriority(ctx context.Context, ticket *domain.Ticket) (*domain.Ticket, bool, error) {
	current := ticket
	changes := map[domain.Field]any{domain.FieldPriority: domain.TicketPriorityCritical}
	var lastErr error
	for attempt := 0; attempt < actionRetries; attempt++ {
		if current.Priority == domain.TicketPriorityCritical {
			return current, true, nil
		}
		updated, err := s.tickets.ApplyFields(ctx, current, changes, domain.ActorMonitor)
		if err == nil {
			return updated, true, nil
		}
		if !util.IsConflict(err) {
			return nil, false, fmt.Errorf("upgrade priority: %w", err)
		}
		lastErr = err

		fresh, gerr := s.tickets.GetTicket(ctx, current.ID)
		if gerr != nil {
			return nil, false, fmt.Errorf("reload after conflict: %w", gerr)
		}
		if !fresh.Open() {
			return nil, false, nil
		}
		current = fresh
	}
	return nil, false, fmt.Errorf("upgrade priority: %w", lastErr)
}

func (s *Scheduler) notifyTeam(ctx context.Context, ticket *domain.Ticket, trigger *domain.EscalationTrigger) error {
	team, ok := s.table.Team(trigger.RecommendedTeam)
	if !ok {
		team = routing.Team{ID: trigger.RecommendedTeam}
	}

	nctx, cancel := context.WithTimeout(ctx, s.notifyTimeout)
	defer cancel()
	err := s.notifier.Notify(nctx, notify.Request{
		Team:        team.ID,
		TeamName:    team.Name,
		Channel:     team.Channel,
		TicketID:    ticket.ID,
		ExternalKey: ticket.ExternalKey,
		Subject:     ticket.Subject,
		TriggerType: trigger.Type,
		Severity:    trigger.Severity,
		Message:     trigger.Description,
	})
	if err != nil {
		return fmt.Errorf("notify team %s: %w", team.ID, err)
	}
	return nil
}

func (s *Scheduler) publishEscalated(ctx context.Context, ticketID string, actor domain.Actor, trigger *domain.EscalationTrigger) {
	if s.dispatcher == nil {
		return
	}
	_ = s.dispatcher.Publish(ctx, events.Event{
		ID:        uuid.NewString(),
		Type:      events.EventTicketEscalated,
		TicketID:  ticketID,
		Actor:     actor,
		Timestamp: s.clock.Now(),
		Payload: events.TicketEscalatedPayload{
			TriggerType:     trigger.Type,
			Severity:        trigger.Severity,
			RecommendedTeam: trigger.RecommendedTeam,
			Description:     trigger.Description,
		},
	})
}

func (s *Scheduler) noteRun(report *SweepReport) {
	s.mu.Lock()
	defer s.mu.Unlock()
	finished := report.FinishedAt
	s.lastRun = &finished
	s.runCount++
	s.errorCount += int64(len(report.Errors))
	for _, e := range report.Errors {
		s.recentErrors = append(s.recentErrors, e.TicketID+": "+e.Message)
	}
	if n := len(s.recentErrors); n > maxRecentErrors {
		s.recentErrors = s.recentErrors[n-maxRecentErrors:]
	}
}

func (s *Scheduler) noteFailure(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errorCount++
	s.recentErrors = append(s.recentErrors, message)
	if n := len(s.recentErrors); n > maxRecentErrors {
		s.recentErrors = s.recentErrors[n-maxRecentErrors:]
	}
}
