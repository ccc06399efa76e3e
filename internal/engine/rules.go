package engine

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/atelierlabs/studio-portal/internal/domain/phase"
	"go.uber.org/zap"
)

// AutomationRule is one configured behavior for a transition shape. Rules are
// data, not code: new from->to thresholds ship without redeploying the
// evaluator. FromPhase nil means the rule matches any phase advancing into
// ToPhase.
type AutomationRule struct {
	ID          int64
	FromPhase   *phase.Key
	ToPhase     phase.Key
	AutoAdvance bool
	StuckAfter  time.Duration
	RemindAfter time.Duration
	Enabled     bool
}

// RuleRepository loads enabled rules from configuration storage.
type RuleRepository interface {
	ListEnabled(ctx context.Context) ([]AutomationRule, error)
}

type transitionKey struct {
	from phase.Key
	to   phase.Key
}

// RuleSet is an immutable structured lookup over rules: exact (from, to)
// pairs first, then wildcard any->to. No string-concatenated keys.
type RuleSet struct {
	exact    map[transitionKey]*AutomationRule
	wildcard map[phase.Key]*AutomationRule
}

func NewRuleSet(rules []AutomationRule) *RuleSet {
	rs := &RuleSet{
		exact:    make(map[transitionKey]*AutomationRule),
		wildcard: make(map[phase.Key]*AutomationRule),
	}
	for i := range rules {
		r := rules[i]
		if !r.Enabled {
			continue
		}
		if r.FromPhase == nil {
			rs.wildcard[r.ToPhase] = &r
			continue
		}
		rs.exact[transitionKey{from: *r.FromPhase, to: r.ToPhase}] = &r
	}
	return rs
}

// Match returns the rule governing the from->to transition. An exact rule
// shadows a wildcard one.
func (rs *RuleSet) Match(from, to phase.Key) (*AutomationRule, bool) {
	if r, ok := rs.exact[transitionKey{from: from, to: to}]; ok {
		return r, true
	}
	if r, ok := rs.wildcard[to]; ok {
		return r, true
	}
	return nil, false
}

func (rs *RuleSet) Len() int {
	return len(rs.exact) + len(rs.wildcard)
}

// Rules returns the active rules ordered by ID.
func (rs *RuleSet) Rules() []AutomationRule {
	out := make([]AutomationRule, 0, rs.Len())
	for _, r := range rs.exact {
		out = append(out, *r)
	}
	for _, r := range rs.wildcard {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// RuleCache holds the active rule set. Loaded at engine start and replaced
// wholesale on explicit reload; reads during evaluation never block writers
// beyond the pointer swap.
type RuleCache struct {
	repo   RuleRepository
	logger *zap.Logger

	mu  sync.RWMutex
	set *RuleSet
}

func NewRuleCache(repo RuleRepository, logger *zap.Logger) *RuleCache {
	return &RuleCache{
		repo:   repo,
		logger: logger.Named("engine.rules"),
		set:    NewRuleSet(nil),
	}
}

func (c *RuleCache) Reload(ctx context.Context) error {
	rules, err := c.repo.ListEnabled(ctx)
	if err != nil {
		return err
	}
	set := NewRuleSet(rules)

	c.mu.Lock()
	c.set = set
	c.mu.Unlock()

	c.logger.Info("rules_reloaded", zap.Int("count", set.Len()))
	return nil
}

func (c *RuleCache) Current() *RuleSet {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.set
}
