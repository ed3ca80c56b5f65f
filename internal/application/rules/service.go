// Package rules serves jurisdiction rule lookups to the API and the CLI,
// with a Redis read-through cache in front of Postgres.
package rules

import (
	"context"
	"strings"
	"time"

	"github.com/landlordcomply/landlordcomply/internal/domain/jurisdiction"
	"github.com/landlordcomply/landlordcomply/internal/infrastructure/database/redis"
	"github.com/landlordcomply/landlordcomply/internal/infrastructure/monitoring/logging"
	"github.com/landlordcomply/landlordcomply/internal/infrastructure/monitoring/prometheus"
	"github.com/landlordcomply/landlordcomply/pkg/errors"
)

const (
	cachePrefix = "rules:"
	cacheName   = "rules"
)

// Service is the rules application service.
type Service interface {
	// Resolve returns the jurisdiction and live rule set for a location.
	Resolve(ctx context.Context, state, city string) (*jurisdiction.Resolution, error)
	// GetRuleSet loads a rule set by id, e.g. the one a case was opened under.
	GetRuleSet(ctx context.Context, id string) (*jurisdiction.RuleSet, error)
	ListJurisdictions(ctx context.Context, opts ...jurisdiction.QueryOption) ([]*jurisdiction.Jurisdiction, int64, error)
	// Seed upserts jurisdictions and adds rule set versions not yet stored,
	// all in one transaction.
	Seed(ctx context.Context, f *SeedFile) (*SeedResult, error)
}

// SeedResult counts what Seed changed.
type SeedResult struct {
	Jurisdictions   int `json:"jurisdictions"`
	RuleSetsCreated int `json:"rule_sets_created"`
	RuleSetsSkipped int `json:"rule_sets_skipped"`
}

type service struct {
	repo     jurisdiction.Repository
	resolver *jurisdiction.Resolver
	cache    redis.Cache
	ttl      time.Duration
	metrics  *prometheus.AppMetrics
	logger   logging.Logger
	now      func() time.Time
}

// Option configures the service.
type Option func(*service)

// WithCache puts cache in front of lookups. Without it every call reaches
// the repository.
func WithCache(c redis.Cache, ttl time.Duration) Option {
	return func(s *service) {
		s.cache = c
		s.ttl = ttl
	}
}

func WithMetrics(m *prometheus.AppMetrics) Option {
	return func(s *service) { s.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(s *service) { s.now = now }
}

func NewService(repo jurisdiction.Repository, log logging.Logger, opts ...Option) Service {
	if log == nil {
		log = logging.NewNopLogger()
	}
	s := &service{
		repo:    repo,
		metrics: prometheus.NewNopMetrics(),
		logger:  log.Named("rules"),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.resolver = jurisdiction.NewResolver(repo, s.now)
	return s
}

func resolveKey(state, city string, day time.Time) string {
	return cachePrefix + "resolve:" + strings.ToUpper(strings.TrimSpace(state)) + ":" +
		strings.ToLower(strings.TrimSpace(city)) + ":" + day.Format("20060102")
}

func (s *service) Resolve(ctx context.Context, state, city string) (*jurisdiction.Resolution, error) {
	if _, err := jurisdiction.NormalizeState(state); err != nil {
		return nil, err
	}
	if s.cache == nil {
		return s.resolver.Resolve(ctx, state, city)
	}

	// The key carries the day so a rule set that takes effect tomorrow is
	// never served from yesterday's entry.
	key := resolveKey(state, city, s.now().UTC())
	hit := true
	var res jurisdiction.Resolution
	err := s.cache.GetOrLoad(ctx, key, &res, s.ttl, func(ctx context.Context) (interface{}, error) {
		hit = false
		return s.resolver.Resolve(ctx, state, city)
	})
	if err != nil {
		return nil, err
	}
	s.metrics.RecordCacheAccess(cacheName, hit)
	return &res, nil
}

func (s *service) GetRuleSet(ctx context.Context, id string) (*jurisdiction.RuleSet, error) {
	if id == "" {
		return nil, errors.InvalidParam("rule set id is required")
	}
	if s.cache == nil {
		return s.repo.GetRuleSet(ctx, id)
	}
	var rs jurisdiction.RuleSet
	err := s.cache.GetOrLoad(ctx, cachePrefix+"ruleset:"+id, &rs, s.ttl, func(ctx context.Context) (interface{}, error) {
		return s.repo.GetRuleSet(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	return &rs, nil
}

func (s *service) ListJurisdictions(ctx context.Context, opts ...jurisdiction.QueryOption) ([]*jurisdiction.Jurisdiction, int64, error) {
	return s.repo.List(ctx, opts...)
}

func (s *service) Seed(ctx context.Context, f *SeedFile) (*SeedResult, error) {
	if f == nil {
		return nil, errors.InvalidParam("seed file is required")
	}
	var res *SeedResult
	err := s.repo.WithTx(ctx, func(repo jurisdiction.Repository) error {
		var err error
		res, err = seedInto(ctx, repo, f)
		return err
	})
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if n, err := s.cache.DeleteByPrefix(ctx, cachePrefix); err != nil {
			s.logger.Warn("Failed to invalidate rule cache", logging.Err(err))
		} else {
			s.logger.Debug("Invalidated rule cache", logging.Int64("keys", n))
		}
	}
	s.logger.Info("Seeded rules",
		logging.Int("jurisdictions", res.Jurisdictions),
		logging.Int("created", res.RuleSetsCreated),
		logging.Int("skipped", res.RuleSetsSkipped))
	return res, nil
}

func seedInto(ctx context.Context, repo jurisdiction.Repository, f *SeedFile) (*SeedResult, error) {
	res := &SeedResult{}
	for _, sj := range f.Jurisdictions {
		j, err := sj.toDomain()
		if err != nil {
			return nil, err
		}
		if err := repo.UpsertJurisdiction(ctx, j); err != nil {
			return nil, err
		}
		res.Jurisdictions++

		existing, err := repo.ListRuleSets(ctx, j.ID)
		if err != nil {
			return nil, err
		}
		have := make(map[int]bool, len(existing))
		for _, rs := range existing {
			have[rs.Version] = true
		}
		for _, srs := range sj.RuleSets {
			if have[srs.Version] {
				res.RuleSetsSkipped++
				continue
			}
			rs, err := srs.toDomain(j.ID)
			if err != nil {
				return nil, err
			}
			if err := repo.CreateRuleSet(ctx, rs); err != nil {
				return nil, err
			}
			res.RuleSetsCreated++
		}
	}
	return res, nil
}
