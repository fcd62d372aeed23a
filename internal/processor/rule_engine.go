package processor

import (
	"encoding/json"
	"log/slog"
	"slices"

	"fraud_scorer/internal/domain"
)

const NoRuleReason = "No rule triggered"

// DefaultRules is the static rule set, evaluated in order.
var DefaultRules = []domain.Rule{
	{
		Field:    domain.FieldAmount,
		Operator: domain.OperatorGreaterThan,
		Value:    5000.0,
		Reason:   "High value transaction",
	},
	{
		Field:    domain.FieldChannel,
		Operator: domain.OperatorEqual,
		Value:    "web",
		Reason:   "Web transaction",
	},
}

type RuleResult struct {
	IsFraud bool
	Reason  string
}

type RuleEngine struct {
	rules  []domain.Rule
	logger *slog.Logger
}

func NewRuleEngine(rules []domain.Rule, logger *slog.Logger) *RuleEngine {
	if logger == nil {
		logger = slog.Default()
	}
	if rules == nil {
		rules = DefaultRules
	}

	return &RuleEngine{
		rules:  slices.Clone(rules),
		logger: logger,
	}
}

// Evaluate returns the first matching rule. A rule whose field is absent,
// or whose field value cannot be compared, does not match.
func (e *RuleEngine) Evaluate(src domain.FieldSource) RuleResult {
	for _, rule := range e.rules {
		value, ok := src.Field(rule.Field)
		if !ok {
			e.logger.Debug("Rule field missing",
				slog.String("field", rule.Field))
			continue
		}

		if matches(rule, value) {
			return RuleResult{IsFraud: true, Reason: rule.Reason}
		}
	}

	return RuleResult{IsFraud: false, Reason: NoRuleReason}
}

func (e *RuleEngine) Rules() []domain.Rule {
	return slices.Clone(e.rules)
}

func matches(rule domain.Rule, value any) bool {
	switch rule.Operator {
	case domain.OperatorGreaterThan:
		actual, ok := toFloat(value)
		if !ok {
			return false
		}
		target, ok := toFloat(rule.Value)
		if !ok {
			return false
		}
		return actual > target
	case domain.OperatorEqual:
		return equal(value, rule.Value)
	default:
		return false
	}
}

func equal(a, b any) bool {
	if as, ok := a.(string); ok {
		bs, ok := b.(string)
		return ok && as == bs
	}
	af, ok := toFloat(a)
	if !ok {
		return false
	}
	bf, ok := toFloat(b)
	return ok && af == bf
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
