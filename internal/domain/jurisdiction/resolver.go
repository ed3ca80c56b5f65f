package jurisdiction

import (
	"context"
	"strings"
	"time"

	"github.com/landlordcomply/landlordcomply/pkg/errors"
)

// Resolution is the outcome of a rule lookup.
type Resolution struct {
	Jurisdiction *Jurisdiction `json:"jurisdiction"`
	RuleSet      *RuleSet      `json:"rule_set"`
	// CityMatched is true when a city-level record won over the state.
	CityMatched bool `json:"city_matched"`
}

// MatchJurisdiction picks the best active candidate for state and city: a
// case-insensitive city match first, then the state-level record.
func MatchJurisdiction(candidates []*Jurisdiction, stateCode, city string) (*Jurisdiction, bool, error) {
	state, err := NormalizeState(stateCode)
	if err != nil {
		return nil, false, err
	}

	var stateLevel *Jurisdiction
	city = strings.TrimSpace(city)
	for _, j := range candidates {
		if j == nil || !j.Active || j.StateCode != state {
			continue
		}
		if city != "" && j.MatchesCity(city) {
			return j, true, nil
		}
		if j.IsStateLevel() && stateLevel == nil {
			stateLevel = j
		}
	}
	if stateLevel != nil {
		return stateLevel, false, nil
	}

	detail := state
	if city != "" {
		detail = city + ", " + state
	}
	return nil, false, errors.New(errors.ErrCodeJurisdictionNotFound, "no jurisdiction matches the given location").WithDetail(detail)
}

// EffectiveRuleSet returns the rule set with the latest effective date at
// or before now. Ties on date go to the higher version.
func EffectiveRuleSet(ruleSets []*RuleSet, now time.Time) (*RuleSet, error) {
	var best *RuleSet
	for _, rs := range ruleSets {
		if rs == nil || rs.EffectiveDate.After(now) {
			continue
		}
		if best == nil ||
			rs.EffectiveDate.After(best.EffectiveDate) ||
			(rs.EffectiveDate.Equal(best.EffectiveDate) && rs.Version > best.Version) {
			best = rs
		}
	}
	if best == nil {
		return nil, errors.New(errors.ErrCodeRuleSetNotFound, "no rule set is in effect for the jurisdiction")
	}
	return best, nil
}

// Resolver looks up jurisdictions and rule sets through a Repository.
type Resolver struct {
	repo  Repository
	clock func() time.Time
}

// NewResolver returns a Resolver that reads the current time from clock, or
// time.Now when clock is nil.
func NewResolver(repo Repository, clock func() time.Time) *Resolver {
	if clock == nil {
		clock = time.Now
	}
	return &Resolver{repo: repo, clock: clock}
}

// Resolve returns the jurisdiction and live rule set for a location. A
// matched city without a live rule set is NotFound; it does not fall back
// to the state record.
func (r *Resolver) Resolve(ctx context.Context, stateCode, city string) (*Resolution, error) {
	state, err := NormalizeState(stateCode)
	if err != nil {
		return nil, err
	}
	candidates, err := r.repo.ListByState(ctx, state)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeUnknown, "failed to list jurisdictions")
	}
	j, cityMatched, err := MatchJurisdiction(candidates, state, city)
	if err != nil {
		return nil, err
	}
	ruleSets, err := r.repo.ListRuleSets(ctx, j.ID)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeUnknown, "failed to list rule sets")
	}
	rs, err := EffectiveRuleSet(ruleSets, r.clock())
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeUnknown, "no rule set is in effect for "+j.DisplayName())
	}
	return &Resolution{Jurisdiction: j, RuleSet: rs, CityMatched: cityMatched}, nil
}
