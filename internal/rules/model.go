// Package rules implements the declarative rule engine (SPEC_FULL.md §4.6):
// YAML rule documents, loaded at startup, evaluated against every event.
package rules

import "fmt"

// Operator is the closed operator enum (SPEC_FULL.md §4.6).
type Operator string

const (
	OpEquals    Operator = "equals"
	OpNotEquals Operator = "not_equals"
	OpContains  Operator = "contains"
	OpRegex     Operator = "regex"
	OpGT        Operator = "gt"
	OpLT        Operator = "lt"
	OpGTE       Operator = "gte"
	OpLTE       Operator = "lte"
	OpIn        Operator = "in"
)

var validOperators = map[Operator]bool{
	OpEquals: true, OpNotEquals: true, OpContains: true, OpRegex: true,
	OpGT: true, OpLT: true, OpGTE: true, OpLTE: true, OpIn: true,
}

// Match is the closed match-mode enum.
type Match string

const (
	MatchAll Match = "all"
	MatchAny Match = "any"
)

// Condition is a single predicate within a rule.
type Condition struct {
	Field    string `yaml:"field"`
	Operator Operator `yaml:"operator"`
	Value    any    `yaml:"value"`
}

// Rule is one detection rule document (SPEC_FULL.md §4.6: "one rule per
// file").
type Rule struct {
	Name        string      `yaml:"name"`
	Description string      `yaml:"description"`
	Severity    string      `yaml:"severity"`
	Match       Match       `yaml:"match"`
	Action      string      `yaml:"action"`
	Conditions  []Condition `yaml:"conditions"`

	SourceFile string `yaml:"-"`
}

// Validate checks that the rule's match mode and every condition's operator
// are recognized (SPEC_FULL.md §4.6: "A rule whose match or operator is
// unrecognized is rejected with a structured log entry").
func (r *Rule) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("rule missing name")
	}
	switch r.Match {
	case "", MatchAll, MatchAny:
	default:
		return fmt.Errorf("rule %q: unrecognized match mode %q", r.Name, r.Match)
	}
	for _, c := range r.Conditions {
		if !validOperators[c.Operator] {
			return fmt.Errorf("rule %q: unrecognized operator %q", r.Name, c.Operator)
		}
		if c.Field == "" {
			return fmt.Errorf("rule %q: condition missing field", r.Name)
		}
	}
	return nil
}

// EffectiveMatch returns the rule's match mode, defaulting to "all".
func (r *Rule) EffectiveMatch() Match {
	if r.Match == "" {
		return MatchAll
	}
	return r.Match
}
