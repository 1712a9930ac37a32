// Package matching scores investor/startup pairs and ranks startups for an
// investor.
package matching

import (
	"context"
	"fmt"

	"investlink-workers/internal/common/logger"
	"investlink-workers/internal/common/metrics"
	"investlink-workers/internal/models"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

const tracerName = "investlink-workers/matching"

// Scorer is the prediction service used to score a pair.
type Scorer interface {
	Compatibility(ctx context.Context, investor models.InvestorProfile, startup models.StartupProfile) (float64, error)
	Traction(ctx context.Context, startup models.StartupProfile) (float64, error)
	SectorSimilarity(ctx context.Context, sectorA, sectorB string) (float64, error)
}

type Matcher struct {
	scorer Scorer
	tracer trace.Tracer
	logger logger.Logger
}

func NewMatcher(scorer Scorer, log logger.Logger) *Matcher {
	return &Matcher{
		scorer: scorer,
		tracer: otel.Tracer(tracerName),
		logger: log.WithFields(map[string]interface{}{"component": "matcher"}),
	}
}

// GetSmartMatch scores one investor/startup pair. The scoring calls run
// concurrently and the first failure cancels the others; no partial result
// is ever returned.
func (m *Matcher) GetSmartMatch(ctx context.Context, investor models.InvestorProfile, startup models.StartupProfile) (*models.MatchResult, error) {
	ctx, span := m.tracer.Start(ctx, "GetSmartMatch", trace.WithAttributes(
		attribute.String("startup.sector", startup.Sector),
		attribute.StringSlice("investor.preferred_sectors", investor.PreferredSectors),
	))
	defer span.End()

	scores := Scores{SectorSimilarity: 1.0}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		v, err := m.scorer.Compatibility(gctx, investor, startup)
		if err != nil {
			return fmt.Errorf("compatibility: %w", err)
		}
		scores.Compatibility = v
		return nil
	})

	g.Go(func() error {
		v, err := m.scorer.Traction(gctx, startup)
		if err != nil {
			return fmt.Errorf("traction: %w", err)
		}
		scores.Traction = v
		return nil
	})

	if needsSectorSimilarity(investor, startup) {
		g.Go(func() error {
			v, err := m.scorer.SectorSimilarity(gctx, investor.PrimarySector(), startup.Sector)
			if err != nil {
				return fmt.Errorf("sector similarity: %w", err)
			}
			scores.SectorSimilarity = v
			return nil
		})
	} else {
		metrics.SectorSimilaritySkipped.Inc()
	}

	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	result, err := Aggregate(scores)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	metrics.MatchesComputed.WithLabelValues(string(result.RecommendationStrength), string(result.SuggestionType)).Inc()
	span.SetAttributes(
		attribute.Float64("match.confidence", result.ConfidenceScore),
		attribute.String("match.strength", string(result.RecommendationStrength)),
	)

	m.logger.Debug("smart match computed", map[string]interface{}{
		"sector":     startup.Sector,
		"confidence": result.ConfidenceScore,
		"strength":   result.RecommendationStrength,
		"suggestion": result.SuggestionType,
	})

	return result, nil
}

// needsSectorSimilarity reports whether the similarity call must be made.
// A preferred sector is fully similar to itself, and an investor without
// preferred sectors has nothing to compare against.
func needsSectorSimilarity(investor models.InvestorProfile, startup models.StartupProfile) bool {
	return len(investor.PreferredSectors) > 0 && !investor.PrefersSector(startup.Sector)
}
