package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRule_Validate_RejectsMissingName(t *testing.T) {
	r := Rule{Conditions: []Condition{{Field: "event_type", Operator: OpEquals, Value: "x"}}}
	assert.Error(t, r.Validate())
}

func TestRule_Validate_RejectsUnknownMatchMode(t *testing.T) {
	r := Rule{Name: "r", Match: "sometimes"}
	assert.Error(t, r.Validate())
}

func TestRule_Validate_RejectsUnknownOperator(t *testing.T) {
	r := Rule{Name: "r", Conditions: []Condition{{Field: "event_type", Operator: "wildcard"}}}
	assert.Error(t, r.Validate())
}

func TestRule_Validate_RejectsConditionMissingField(t *testing.T) {
	r := Rule{Name: "r", Conditions: []Condition{{Operator: OpEquals, Value: "x"}}}
	assert.Error(t, r.Validate())
}

func TestRule_Validate_AcceptsWellFormedRule(t *testing.T) {
	r := Rule{
		Name:  "r",
		Match: MatchAny,
		Conditions: []Condition{
			{Field: "event_type", Operator: OpEquals, Value: "network_connect"},
		},
	}
	assert.NoError(t, r.Validate())
}

func TestRule_EffectiveMatch_DefaultsToAll(t *testing.T) {
	r := Rule{Name: "r"}
	assert.Equal(t, MatchAll, r.EffectiveMatch())
}
