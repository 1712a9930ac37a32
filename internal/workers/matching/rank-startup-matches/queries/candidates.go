// Package queries builds the Elasticsearch candidate search for ranking and
// decodes its hits into matching candidates.
package queries

import (
	"encoding/json"
	"fmt"

	"investlink-workers/internal/common/database"
	"investlink-workers/internal/matching"
	"investlink-workers/internal/models"
)

// BuildCandidateQuery selects startups in any of the investor's preferred
// sectors or stages. An investor with no preferences gets match_all.
func BuildCandidateQuery(investor models.InvestorProfile) map[string]interface{} {
	should := []interface{}{}

	if len(investor.PreferredSectors) > 0 {
		should = append(should, map[string]interface{}{
			"terms": map[string]interface{}{"sector": investor.PreferredSectors},
		})
	}
	if len(investor.PreferredStages) > 0 {
		should = append(should, map[string]interface{}{
			"terms": map[string]interface{}{"stage": investor.PreferredStages},
		})
	}

	if len(should) == 0 {
		return map[string]interface{}{
			"query": map[string]interface{}{"match_all": map[string]interface{}{}},
		}
	}

	return map[string]interface{}{
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"should":               should,
				"minimum_should_match": 1,
			},
		},
	}
}

// DecodeCandidates turns search hits into candidates. The document source
// holds the flat startup profile plus an optional name; missing profile
// fields get the normalizer defaults.
func DecodeCandidates(hits []database.SearchHit) ([]matching.Candidate, error) {
	candidates := make([]matching.Candidate, 0, len(hits))
	for _, hit := range hits {
		var source map[string]interface{}
		if err := json.Unmarshal(hit.Source, &source); err != nil {
			return nil, fmt.Errorf("decode startup %s: %w", hit.ID, err)
		}

		name, _ := source["name"].(string)
		delete(source, "name")

		startup, err := matching.NormalizeStartup(source)
		if err != nil {
			return nil, fmt.Errorf("startup %s: %w", hit.ID, err)
		}

		candidates = append(candidates, matching.Candidate{
			ID:      hit.ID,
			Name:    name,
			Startup: startup,
		})
	}
	return candidates, nil
}
