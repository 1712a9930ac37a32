package matching

import (
	"context"
	"fmt"
	"sort"

	"investlink-workers/internal/models"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// SmartMatcher is satisfied by *Matcher.
type SmartMatcher interface {
	GetSmartMatch(ctx context.Context, investor models.InvestorProfile, startup models.StartupProfile) (*models.MatchResult, error)
}

// Candidate is one startup considered for ranking.
type Candidate struct {
	ID      string
	Name    string
	Startup models.StartupProfile
}

// Ranker scores many candidates for one investor with bounded concurrency.
type Ranker struct {
	matcher     SmartMatcher
	limiter     *rate.Limiter
	concurrency int
}

// NewRanker builds a Ranker. A nil limiter disables throttling and a
// concurrency below 1 runs candidates one at a time.
func NewRanker(matcher SmartMatcher, concurrency int, limiter *rate.Limiter) *Ranker {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Ranker{
		matcher:     matcher,
		limiter:     limiter,
		concurrency: concurrency,
	}
}

// Rank scores every candidate and returns them ordered by confidence, highest
// first. Ties keep ascending startup id order. Duplicate ids are scored once.
// Any failed match fails the whole ranking. A limit of 0 returns everything.
func (r *Ranker) Rank(ctx context.Context, investor models.InvestorProfile, candidates []Candidate, limit int) ([]models.RankedMatch, error) {
	unique := Dedupe(candidates)
	results := make([]models.RankedMatch, len(unique))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)

	for i, c := range unique {
		i, c := i, c
		g.Go(func() error {
			if r.limiter != nil {
				if err := r.limiter.Wait(gctx); err != nil {
					return fmt.Errorf("startup %s: %w", c.ID, err)
				}
			}
			match, err := r.matcher.GetSmartMatch(gctx, investor, c.Startup)
			if err != nil {
				return fmt.Errorf("startup %s: %w", c.ID, err)
			}
			results[i] = models.RankedMatch{
				StartupID: c.ID,
				Name:      c.Name,
				Match:     match,
				Startup:   c.Startup,
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i].Match.ConfidenceScore, results[j].Match.ConfidenceScore
		if a != b {
			return a > b
		}
		return results[i].StartupID < results[j].StartupID
	})

	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	for i := range results {
		results[i].Rank = i + 1
	}

	return results, nil
}

// Dedupe drops candidates whose id was already seen, keeping the first.
func Dedupe(candidates []Candidate) []Candidate {
	seen := make(map[string]bool, len(candidates))
	out := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		if seen[c.ID] {
			continue
		}
		seen[c.ID] = true
		out = append(out, c)
	}
	return out
}
