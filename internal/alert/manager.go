// Package alert turns reconciliation events into operator alerts. Rules are
// declarative: an event type, a CEL condition over the event payload and a
// cooldown. Matched rules emit notifications through the configured sink.
package alert

import (
	"context"
	"fmt"
	"time"

	"github.com/google/cel-go/cel"

	"crosslist/internal/domain/notification"
	"crosslist/pkg/logger"
)

// Event is one observation from the reconciliation engine.
type Event struct {
	Type string
	Data map[string]any
}

// Event types produced by the engine.
const (
	EventPriceDrift   = "price_drift"
	EventOutOfStock   = "out_of_stock"
	EventSyncError    = "sync_error"
	EventRunCompleted = "run_completed"
)

// Rule is one alerting rule. Condition is a CEL expression evaluated against
// the event payload bound as `data`; an empty condition always matches.
type Rule struct {
	Name      string
	EventType string
	Condition string
	Severity  notification.Severity
	Title     string
	Cooldown  time.Duration
}

// DefaultRules is the production rule set.
func DefaultRules() []Rule {
	return []Rule{
		{
			Name:      "large-price-drift",
			EventType: EventPriceDrift,
			Condition: `data.percent >= 20.0 || data.percent <= -20.0`,
			Severity:  notification.SeverityWarning,
			Title:     "Large price drift detected",
			Cooldown:  15 * time.Minute,
		},
		{
			Name:      "out-of-stock",
			EventType: EventOutOfStock,
			Severity:  notification.SeverityWarning,
			Title:     "Source item went out of stock",
		},
		{
			Name:      "error-rate",
			EventType: EventRunCompleted,
			Condition: `data.total > 0 && double(data.failed) / double(data.total) >= 0.3`,
			Severity:  notification.SeverityError,
			Title:     "High failure rate in reconciliation run",
			Cooldown:  30 * time.Minute,
		},
		{
			Name:      "sync-error",
			EventType: EventSyncError,
			Severity:  notification.SeverityError,
			Title:     "Marketplace sync failed",
			Cooldown:  5 * time.Minute,
		},
	}
}

type compiledRule struct {
	Rule
	program cel.Program
}

// Manager evaluates events against the rule set and sends alerts.
type Manager struct {
	rules    []compiledRule
	throttle Throttle
	sink     notification.Sink
	log      *logger.Logger
}

// NewManager compiles the rules and returns the manager. Invalid CEL in any
// rule fails construction; a broken rule set should not boot.
func NewManager(rules []Rule, throttle Throttle, sink notification.Sink, log *logger.Logger) (*Manager, error) {
	env, err := cel.NewEnv(
		cel.Variable("data", cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		return nil, fmt.Errorf("alert cel env: %w", err)
	}

	compiled := make([]compiledRule, 0, len(rules))
	for _, r := range rules {
		cr := compiledRule{Rule: r}
		if r.Condition != "" {
			ast, issues := env.Compile(r.Condition)
			if issues != nil && issues.Err() != nil {
				return nil, fmt.Errorf("compile rule %q: %w", r.Name, issues.Err())
			}
			prg, err := env.Program(ast)
			if err != nil {
				return nil, fmt.Errorf("program rule %q: %w", r.Name, err)
			}
			cr.program = prg
		}
		compiled = append(compiled, cr)
	}

	return &Manager{
		rules:    compiled,
		throttle: throttle,
		sink:     sink,
		log:      log.WithComponent("alert"),
	}, nil
}

// Publish evaluates one event. Rule failures are logged and do not propagate;
// alerting never blocks reconciliation.
func (m *Manager) Publish(ctx context.Context, ev Event) {
	for _, rule := range m.rules {
		if rule.EventType != ev.Type {
			continue
		}

		matched, err := m.matches(rule, ev)
		if err != nil {
			m.log.Warnw("alert rule evaluation failed", "rule", rule.Name, "error", err)
			continue
		}
		if !matched {
			continue
		}

		allowed, err := m.throttle.Allow(ctx, rule.Name, rule.Cooldown)
		if err != nil {
			m.log.Warnw("alert throttle check failed", "rule", rule.Name, "error", err)
			// Fail open. A redis outage should not silence alerts.
			allowed = true
		}
		if !allowed {
			m.log.Debugw("alert suppressed by cooldown", "rule", rule.Name)
			continue
		}

		n := notification.New(
			notification.TypeSyncError,
			rule.Severity,
			rule.Title,
			fmt.Sprintf("rule %s matched event %s", rule.Name, ev.Type),
			ev.Data,
		)
		switch ev.Type {
		case EventPriceDrift:
			n.Type = notification.TypePriceChange
		case EventOutOfStock:
			n.Type = notification.TypeOutOfStock
		case EventRunCompleted:
			n.Type = notification.TypeRunSummary
		}

		if err := m.sink.Send(ctx, n); err != nil {
			m.log.Warnw("alert delivery failed", "rule", rule.Name, "error", err)
		}
	}
}

func (m *Manager) matches(rule compiledRule, ev Event) (bool, error) {
	if rule.program == nil {
		return true, nil
	}
	out, _, err := rule.program.Eval(map[string]any{"data": ev.Data})
	if err != nil {
		return false, err
	}
	matched, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("rule %q condition is not boolean", rule.Name)
	}
	return matched, nil
}
