package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"

	"github.com/atelierlabs/studio-portal/internal/catalog"
	"github.com/atelierlabs/studio-portal/internal/domain/notify"
	"github.com/atelierlabs/studio-portal/internal/domain/project"
	"github.com/atelierlabs/studio-portal/internal/domain/tracking"
	"github.com/atelierlabs/studio-portal/internal/gate"
	"github.com/atelierlabs/studio-portal/internal/usecase/workflow"
)

// ReasonAutomated is the audit reason recorded on auto-advanced transitions.
const ReasonAutomated = "automated: requirements met"

// Options are the evaluation tunables, filled from config at wiring time.
type Options struct {
	Interval       time.Duration
	BatchSize      int
	Concurrency    int
	ProjectTimeout time.Duration
	StuckAfter     time.Duration // default when a rule carries no threshold
	RemindAfter    time.Duration
	StuckCooldown  time.Duration
	RemindCooldown time.Duration
}

func (o *Options) fillDefaults() {
	if o.Interval <= 0 {
		o.Interval = time.Minute
	}
	if o.BatchSize <= 0 {
		o.BatchSize = 200
	}
	if o.Concurrency <= 0 {
		o.Concurrency = 8
	}
	if o.ProjectTimeout <= 0 {
		o.ProjectTimeout = 5 * time.Second
	}
	if o.StuckAfter <= 0 {
		o.StuckAfter = 7 * 24 * time.Hour
	}
	if o.RemindAfter <= 0 {
		o.RemindAfter = 3 * 24 * time.Hour
	}
	if o.StuckCooldown <= 0 {
		o.StuckCooldown = 3 * 24 * time.Hour
	}
	if o.RemindCooldown <= 0 {
		o.RemindCooldown = 24 * time.Hour
	}
}

// Engine is the periodic rule evaluator. One sweep scans all active
// projects once and applies every rule category to each project, bounding
// database load to O(active projects) per tick regardless of rule count.
type Engine struct {
	trackings  tracking.Repository
	projects   project.Repository
	catalog    *catalog.Service
	gate       *gate.Gate
	advance    *workflow.AdvanceUseCase
	rules      *RuleCache
	dedupe     DedupeStore
	dispatcher notify.Dispatcher
	logger     *zap.Logger
	opts       Options
}

func New(
	trackings tracking.Repository,
	projects project.Repository,
	catalogSvc *catalog.Service,
	gateSvc *gate.Gate,
	advance *workflow.AdvanceUseCase,
	rules *RuleCache,
	dedupe DedupeStore,
	dispatcher notify.Dispatcher,
	opts Options,
	logger *zap.Logger,
) *Engine {
	opts.fillDefaults()
	return &Engine{
		trackings:  trackings,
		projects:   projects,
		catalog:    catalogSvc,
		gate:       gateSvc,
		advance:    advance,
		rules:      rules,
		dedupe:     dedupe,
		dispatcher: dispatcher,
		logger:     logger.Named("engine"),
		opts:       opts,
	}
}

// Run drives sweeps on a fixed interval until ctx is cancelled. Tests call
// Sweep directly instead of racing the ticker.
func (e *Engine) Run(ctx context.Context) {
	if err := e.rules.Reload(ctx); err != nil {
		e.logger.Error("rules_initial_load_failed", zap.Error(err))
	}
	if err := e.Sweep(ctx); err != nil {
		e.logger.Error("sweep_initial_failed", zap.Error(err))
	}

	ticker := time.NewTicker(e.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := e.Sweep(ctx); err != nil {
				e.logger.Error("sweep_failed", zap.Error(err))
			}
		}
	}
}

// Sweep runs one evaluation pass over all active projects. A failure in one
// project's evaluation never aborts the pass for the others; the project is
// naturally retried on the next tick, no per-project retry state is kept.
func (e *Engine) Sweep(ctx context.Context) error {
	start := time.Now()
	items, err := e.trackings.ListActive(ctx, e.opts.BatchSize)
	if err != nil {
		return fmt.Errorf("list active trackings: %w", err)
	}

	p := pool.New().WithMaxGoroutines(e.opts.Concurrency)
	for _, t := range items {
		t := t
		p.Go(func() {
			pctx, cancel := context.WithTimeout(ctx, e.opts.ProjectTimeout)
			defer cancel()

			projectsEvaluated.Inc()
			if err := e.evaluate(pctx, t); err != nil {
				evalFailures.Inc()
				e.logger.Warn("project_evaluation_failed",
					zap.Error(err),
					zap.Int64("project_id", t.ProjectID),
					zap.String("phase", string(t.CurrentPhase)),
				)
			}
		})
	}
	p.Wait()

	sweepsTotal.Inc()
	sweepDuration.Observe(time.Since(start).Seconds())
	return nil
}

// EvaluateProject runs the full rule evaluation for a single project,
// outside the periodic tick. Action-completion entry points (payment
// webhook, form submit) call this so external completions advance without
// waiting for the next tick; it shares the sweep's code path and is safe to
// run concurrently with it.
func (e *Engine) EvaluateProject(ctx context.Context, projectID int64) error {
	t, err := e.trackings.FindByProjectID(ctx, projectID)
	if err != nil {
		return err
	}
	if t == nil {
		return tracking.ErrProjectNotFound
	}
	if t.Completed {
		return nil
	}
	return e.evaluate(ctx, t)
}

func (e *Engine) evaluate(ctx context.Context, t *tracking.Tracking) error {
	proj, err := e.projects.FindByID(ctx, t.ProjectID)
	if err != nil {
		return err
	}
	if proj == nil {
		return tracking.ErrProjectNotFound
	}

	set, err := e.catalog.ResolvePhaseSet(ctx, proj.ServiceCodes)
	if err != nil {
		return err
	}
	if !set.Contains(t.CurrentPhase) {
		return fmt.Errorf("tracking phase %s is not in project %d phase set", t.CurrentPhase, t.ProjectID)
	}

	def, err := e.catalog.Definition(ctx, t.CurrentPhase)
	if err != nil {
		return err
	}

	next, hasNext := set.Next(t.CurrentPhase)
	last, _ := set.Last()
	inLastPhase := t.CurrentPhase == last

	var rule *AutomationRule
	if hasNext {
		rule, _ = e.rules.Current().Match(t.CurrentPhase, next)
	}

	if rule != nil && rule.AutoAdvance && def.RequiresClientAction {
		satisfied, err := e.gate.IsSatisfied(ctx, t.ProjectID, t.CurrentPhase)
		if err != nil {
			return err
		}
		if satisfied {
			// The evaluated phase travels into the advance so the gate
			// decision and the transition can never apply to different
			// phases; a concurrent advance turns this into a no-op.
			res, err := e.advance.Execute(ctx, t.ProjectID, t.CurrentPhase, ReasonAutomated, tracking.SystemActor())
			if err != nil {
				return err
			}
			if !res.AlreadyComplete {
				autoAdvanced.Inc()
			}
			// Freshly advanced projects are not stuck and owe no reminder.
			return nil
		}
	}

	age := time.Since(t.PhaseStartedAt)

	if !inLastPhase {
		stuckAfter := e.opts.StuckAfter
		if rule != nil && rule.StuckAfter > 0 {
			stuckAfter = rule.StuckAfter
		}
		if age > stuckAfter {
			if err := e.notifyOnce(ctx, proj, t, notify.KindStuck, e.opts.StuckCooldown, map[string]any{
				"days_in_phase": int(age.Hours() / 24),
			}); err != nil {
				return err
			}
		}
	}

	remindAfter := e.opts.RemindAfter
	if rule != nil && rule.RemindAfter > 0 {
		remindAfter = rule.RemindAfter
	}
	if def.RequiresClientAction && age > remindAfter {
		pending, err := e.gate.PendingActions(ctx, t.ProjectID, t.CurrentPhase)
		if err != nil {
			return err
		}
		if len(pending) > 0 {
			if err := e.notifyOnce(ctx, proj, t, notify.KindReminder, e.opts.RemindCooldown, map[string]any{
				"pending_actions": pending,
			}); err != nil {
				return err
			}
		}
	}

	return nil
}

// notifyOnce emits one deduped notice. Dispatch failures are logged, never
// propagated: a missed stuck/reminder notice is backstopped by the next tick
// once the cool-down lapses.
func (e *Engine) notifyOnce(ctx context.Context, proj *project.Project, t *tracking.Tracking, kind notify.Kind, cooldown time.Duration, payload map[string]any) error {
	key := DedupeKey(kind, t.ProjectID, t.CurrentPhase)
	last, err := e.dedupe.LastSent(ctx, key)
	if err != nil {
		return err
	}
	if last != nil && time.Since(*last) < cooldown {
		return nil
	}

	now := time.Now().UTC()
	if err := e.dedupe.MarkSent(ctx, key, now); err != nil {
		return err
	}

	event := notify.Event{
		ProjectID: t.ProjectID,
		Kind:      kind,
		PhaseKey:  t.CurrentPhase,
		Payload:   payload,
	}

	if err := e.dispatcher.CreateInAppNotification(ctx, proj.ClientUserID, kind, event); err != nil {
		e.logger.Warn("in_app_dispatch_failed", zap.Error(err), zap.Int64("project_id", t.ProjectID))
	}
	if err := e.dispatcher.PushRealtimeEvent(ctx, proj.ClientUserID, kind, event); err != nil {
		e.logger.Warn("realtime_dispatch_failed", zap.Error(err), zap.Int64("project_id", t.ProjectID))
	}
	if err := e.dispatcher.QueueEmail(ctx, string(kind), proj.ClientEmail, event); err != nil {
		e.logger.Warn("email_dispatch_failed", zap.Error(err), zap.Int64("project_id", t.ProjectID))
	}

	switch kind {
	case notify.KindStuck:
		stuckNotices.Inc()
	case notify.KindReminder:
		reminderNotices.Inc()
	}

	e.logger.Info("notice_emitted",
		zap.String("kind", string(kind)),
		zap.Int64("project_id", t.ProjectID),
		zap.String("phase", string(t.CurrentPhase)),
	)
	return nil
}
