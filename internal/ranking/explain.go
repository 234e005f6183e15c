package ranking

import (
	"fmt"
	"sort"

	"github.com/litscout/backend/internal/domain"
)

const maxExplanations = 4

// Explain produces up to four "why recommended" bullets, ordered by how
// much each feature contributed to the score. Bullets with unmet
// preconditions are skipped so explanations are never vacuous.
func Explain(e *scored, mode domain.Mode, currentYear int) []string {
	p := e.paper
	f := e.features
	weights := modeWeights[mode]

	type contribution struct {
		feature string
		value   float64
	}
	contributions := []contribution{
		{"citations", weights.LogCitations * f.LogCitations},
		{"velocity", weights.CitationVelocity * f.CitationVelocity},
		{"recency", weights.Recency * f.Recency},
		{"relevance", weights.Relevance * f.Relevance},
		{"venue", weights.VenueSignal * f.VenueSignal},
	}
	sort.SliceStable(contributions, func(i, j int) bool {
		return contributions[i].value > contributions[j].value
	})

	var bullets []string
	add := func(s string) {
		for _, existing := range bullets {
			if existing == s {
				return
			}
		}
		if len(bullets) < maxExplanations {
			bullets = append(bullets, s)
		}
	}

	for _, c := range contributions {
		switch c.feature {
		case "citations":
			if bullet := citationBullet(p, e.citationPercentile, currentYear); bullet != "" {
				add(bullet)
			}
		case "velocity":
			if mode == domain.ModeRecent && f.CitationVelocity >= 0.7 {
				add("Fast citation growth for a recent paper")
			}
		case "recency":
			if p.Year != nil && *p.Year >= currentYear-2 {
				add(fmt.Sprintf("Published recently (%d)", *p.Year))
			}
		case "relevance":
			if f.Relevance > 0.6 {
				add("High semantic match to your topic")
			}
		case "venue":
			if f.VenueSignal >= 0.6 {
				add("Published in recognized venue")
			}
		}
	}

	if p.IsSurvey {
		add("Survey/Review (good starting point)")
	}
	if p.IsOpenAccess {
		add("Open access available")
	}
	return bullets
}

func citationBullet(p *domain.MergedPaper, percentile float64, currentYear int) string {
	if p.CitationCount == nil {
		return ""
	}
	count := *p.CitationCount
	if percentile >= 0.9 && count > 0 {
		return "Top-cited within the candidate set"
	}
	if count >= 1000 {
		return fmt.Sprintf("Highly cited (%d citations)", count)
	}
	if count >= 100 && p.Year != nil && currentYear-*p.Year >= 10 {
		return "Classic paper in the field"
	}
	return ""
}
