package testutil

import (
	"context"
	"strings"
	"time"

	"github.com/landlordcomply/landlordcomply/internal/domain/jurisdiction"
	"github.com/landlordcomply/landlordcomply/pkg/errors"
)

// WARuleSet returns a Washington state rule set: 30 days, itemization
// required, a deadline penalty of twice the deposit and a bad faith one.
func WARuleSet(jurisdictionID string) *jurisdiction.RuleSet {
	return &jurisdiction.RuleSet{
		ID:                     "rs-wa-1",
		JurisdictionID:         jurisdictionID,
		Version:                1,
		EffectiveDate:          time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
		ReturnDeadlineDays:     30,
		ItemizationRequired:    true,
		AllowedDeliveryMethods: []string{"FIRST_CLASS_MAIL", "CERTIFIED_MAIL", "EMAIL"},
		Citations:              []string{"RCW 59.18.280"},
		Penalties: []jurisdiction.Penalty{
			{Condition: "failure to return within the deadline", Description: "up to 2x the deposit", Citation: "RCW 59.18.280(2)"},
			{Condition: "bad faith retention", Description: "court costs and attorney fees"},
		},
	}
}

// StaticRules serves one jurisdiction and rule set per state code. It
// satisfies the rule lookups the application services need.
type StaticRules struct {
	ByState map[string]*jurisdiction.Resolution
}

// NewStaticRules returns rules for Washington only.
func NewStaticRules() *StaticRules {
	j := &jurisdiction.Jurisdiction{ID: "j-wa", StateCode: "WA", Coverage: jurisdiction.CoverageFull, Active: true}
	return &StaticRules{ByState: map[string]*jurisdiction.Resolution{
		"WA": {Jurisdiction: j, RuleSet: WARuleSet(j.ID)},
	}}
}

func (s *StaticRules) Resolve(_ context.Context, state, _ string) (*jurisdiction.Resolution, error) {
	res, ok := s.ByState[strings.ToUpper(state)]
	if !ok {
		return nil, errors.New(errors.ErrCodeJurisdictionNotFound, "no jurisdiction matches").WithDetail(state)
	}
	return res, nil
}

func (s *StaticRules) GetRuleSet(_ context.Context, id string) (*jurisdiction.RuleSet, error) {
	for _, res := range s.ByState {
		if res.RuleSet.ID == id {
			return res.RuleSet, nil
		}
	}
	return nil, errors.New(errors.ErrCodeRuleSetNotFound, "rule set not found").WithDetail(id)
}
