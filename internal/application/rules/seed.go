package rules

import (
	"embed"
	"fmt"
	"io"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/landlordcomply/landlordcomply/internal/domain/jurisdiction"
	"github.com/landlordcomply/landlordcomply/pkg/errors"
)

//go:embed seed/*.yaml
var seedFS embed.FS

// DefaultSeedFile is the bundled rule seed.
const DefaultSeedFile = "seed/default.yaml"

// SeedFile is the YAML document `landlordctl rules seed` reads.
type SeedFile struct {
	Jurisdictions []SeedJurisdiction `yaml:"jurisdictions"`
}

type SeedJurisdiction struct {
	State    string        `yaml:"state"`
	City     string        `yaml:"city"`
	Coverage string        `yaml:"coverage"`
	Active   *bool         `yaml:"active"`
	RuleSets []SeedRuleSet `yaml:"rule_sets"`
}

type SeedRuleSet struct {
	Version                int                    `yaml:"version"`
	EffectiveDate          string                 `yaml:"effective_date"`
	ReturnDeadlineDays     int                    `yaml:"return_deadline_days"`
	InterestRequired       bool                   `yaml:"interest_required"`
	InterestRate           *float64               `yaml:"interest_rate"`
	ItemizationRequired    bool                   `yaml:"itemization_required"`
	AllowedDeliveryMethods []string               `yaml:"allowed_delivery_methods"`
	MaxDepositMonths       *float64               `yaml:"max_deposit_months"`
	Citations              []string               `yaml:"citations"`
	Penalties              []jurisdiction.Penalty `yaml:"penalties"`
}

// ParseSeed decodes and validates a seed document. Unknown keys are
// rejected so typos do not silently drop rules.
func ParseSeed(r io.Reader) (*SeedFile, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var f SeedFile
	if err := dec.Decode(&f); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeValidation, "invalid rule seed file")
	}
	if len(f.Jurisdictions) == 0 {
		return nil, errors.New(errors.ErrCodeValidation, "rule seed file lists no jurisdictions")
	}
	for i, j := range f.Jurisdictions {
		if _, err := j.toDomain(); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeValidation, fmt.Sprintf("jurisdictions[%d]", i))
		}
		if len(j.RuleSets) == 0 {
			return nil, errors.Newf(errors.ErrCodeValidation, "jurisdictions[%d]: at least one rule set is required", i)
		}
		seen := map[int]bool{}
		for k, rs := range j.RuleSets {
			if rs.Version <= 0 {
				return nil, errors.Newf(errors.ErrCodeValidation, "jurisdictions[%d].rule_sets[%d]: version must be positive", i, k)
			}
			if seen[rs.Version] {
				return nil, errors.Newf(errors.ErrCodeValidation, "jurisdictions[%d]: duplicate rule set version %d", i, rs.Version)
			}
			seen[rs.Version] = true
			// The id is assigned on write; any placeholder satisfies Validate.
			if _, err := rs.toDomain("seed"); err != nil {
				return nil, errors.Wrap(err, errors.ErrCodeValidation, fmt.Sprintf("jurisdictions[%d].rule_sets[%d]", i, k))
			}
		}
	}
	return &f, nil
}

// LoadDefaultSeed parses the bundled seed.
func LoadDefaultSeed() (*SeedFile, error) {
	f, err := seedFS.Open(DefaultSeedFile)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "bundled rule seed missing")
	}
	defer f.Close()
	return ParseSeed(f)
}

func parseDate(s string) (time.Time, error) {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, errors.InvalidParam("effective_date must be YYYY-MM-DD").WithDetail(s)
	}
	return t, nil
}

func (j SeedJurisdiction) toDomain() (*jurisdiction.Jurisdiction, error) {
	out, err := jurisdiction.NewJurisdiction(j.State, j.City, jurisdiction.Coverage(strings.ToUpper(j.Coverage)))
	if err != nil {
		return nil, err
	}
	if j.Active != nil {
		out.Active = *j.Active
	}
	return out, nil
}

func (rs SeedRuleSet) toDomain(jurisdictionID string) (*jurisdiction.RuleSet, error) {
	eff, err := parseDate(rs.EffectiveDate)
	if err != nil {
		return nil, err
	}
	methods := make([]string, len(rs.AllowedDeliveryMethods))
	for i, m := range rs.AllowedDeliveryMethods {
		methods[i] = strings.ToUpper(strings.TrimSpace(m))
	}
	out := &jurisdiction.RuleSet{
		JurisdictionID:         jurisdictionID,
		Version:                rs.Version,
		EffectiveDate:          eff,
		ReturnDeadlineDays:     rs.ReturnDeadlineDays,
		InterestRequired:       rs.InterestRequired,
		InterestRate:           rs.InterestRate,
		ItemizationRequired:    rs.ItemizationRequired,
		AllowedDeliveryMethods: methods,
		MaxDepositMonths:       rs.MaxDepositMonths,
		Citations:              rs.Citations,
		Penalties:              rs.Penalties,
	}
	return out, out.Validate()
}
