package rules

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/kernox/agent/internal/model"
	"github.com/kernox/agent/internal/schema"
)

// Evaluator evaluates a fixed rule set against every event
// (SPEC_FULL.md §4.6). Rules are evaluated in load order; every matching
// rule fires independently for the same event.
type Evaluator struct {
	rules   []Rule
	emitter *schema.Emitter
}

// NewEvaluator constructs an Evaluator over rules, in the order they should
// be evaluated (the loader's sorted-filename order).
func NewEvaluator(rules []Rule, emitter *schema.Emitter) *Evaluator {
	return &Evaluator{rules: rules, emitter: emitter}
}

// RuleCount reports how many rules are loaded, for the debug /status
// endpoint.
func (ev *Evaluator) RuleCount() int {
	return len(ev.rules)
}

// Process evaluates ev against every rule, emitting alert_rule_match for
// each one that fires.
func (ev *Evaluator) Process(event model.Event) {
	for _, rule := range ev.rules {
		if matches, details := evaluateRule(&rule, &event); matches {
			ev.fire(&rule, details)
		}
	}
}

func (e *Evaluator) fire(rule *Rule, details map[string]string) {
	sev := model.Severity(rule.Severity)
	if rule.Severity == "" {
		sev = model.SeverityMedium
	}
	e.emitter.Emit(model.Event{
		EventType: model.AlertRuleMatch,
		Severity:  sev,
		Alert: &model.AlertPayload{
			Rule:    rule.Name,
			Details: details,
		},
	})
}

func evaluateRule(rule *Rule, ev *model.Event) (bool, map[string]string) {
	if len(rule.Conditions) == 0 {
		return false, nil
	}

	details := make(map[string]string)
	matchedAny := false
	allMatched := true

	for _, cond := range rule.Conditions {
		ok, val := evaluateCondition(&cond, ev)
		if ok {
			matchedAny = true
			details[cond.Field] = toDisplayString(val)
		} else {
			allMatched = false
		}
	}

	if rule.EffectiveMatch() == MatchAny {
		if !matchedAny {
			return false, nil
		}
		return true, details
	}
	if !allMatched {
		return false, nil
	}
	return true, details
}

// evaluateCondition applies one condition's operator. A missing field
// (lookupField returns ok=false) always evaluates false, never an error
// (SPEC_FULL.md §4.6).
func evaluateCondition(cond *Condition, ev *model.Event) (bool, any) {
	lhs, ok := lookupField(ev, cond.Field)
	if !ok {
		return false, nil
	}

	switch cond.Operator {
	case OpEquals:
		return valuesEqual(lhs, cond.Value), lhs
	case OpNotEquals:
		return !valuesEqual(lhs, cond.Value), lhs
	case OpContains:
		s, isStr := lhs.(string)
		if !isStr {
			return false, lhs
		}
		return strings.Contains(s, fmt.Sprint(cond.Value)), lhs
	case OpRegex:
		re, err := regexp.Compile(fmt.Sprint(cond.Value))
		if err != nil {
			return false, lhs
		}
		return re.MatchString(fmt.Sprint(lhs)), lhs
	case OpGT, OpLT, OpGTE, OpLTE:
		lf, ok1 := toFloat(lhs)
		rf, ok2 := toFloat(cond.Value)
		if !ok1 || !ok2 {
			return false, lhs
		}
		switch cond.Operator {
		case OpGT:
			return lf > rf, lhs
		case OpLT:
			return lf < rf, lhs
		case OpGTE:
			return lf >= rf, lhs
		case OpLTE:
			return lf <= rf, lhs
		}
		return false, lhs
	case OpIn:
		seq, ok := cond.Value.([]any)
		if !ok {
			return false, lhs
		}
		for _, item := range seq {
			if valuesEqual(lhs, item) {
				return true, lhs
			}
		}
		return false, lhs
	default:
		return false, lhs
	}
}

// valuesEqual implements "structural equality after type coercion of RHS to
// LHS's type" (SPEC_FULL.md §4.6) by rendering both sides to their decimal
// or literal string form and comparing.
func valuesEqual(lhs, rhs any) bool {
	return fmt.Sprint(lhs) == fmt.Sprint(rhs)
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case uint64:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case float64:
		return t, true
	case string:
		f, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}
