package ranking

import (
	"sort"
	"strings"
	"time"

	"github.com/litscout/backend/internal/domain"
)

const (
	// PrefilterSize caps how many candidates enter feature normalization.
	PrefilterSize = 200
	// MaxRanked caps the ranked list the cache will hold.
	MaxRanked = 100
)

// Weights maps feature names to their share of the final score.
type Weights struct {
	Relevance        float64
	LogCitations     float64
	CitationVelocity float64
	Recency          float64
	VenueSignal      float64
	IsSurvey         float64
	IsOpenAccess     float64
}

var modeWeights = map[domain.Mode]Weights{
	domain.ModeFoundational: {
		Relevance:        0.45,
		LogCitations:     0.35,
		CitationVelocity: 0.00,
		Recency:          0.00,
		VenueSignal:      0.10,
		IsSurvey:         0.05,
		IsOpenAccess:     0.05,
	},
	domain.ModeRecent: {
		Relevance:        0.55,
		LogCitations:     0.00,
		CitationVelocity: 0.25,
		Recency:          0.15,
		VenueSignal:      0.03,
		IsSurvey:         0.00,
		IsOpenAccess:     0.02,
	},
}

// Intent captures what the query text itself asks for, beyond the mode.
type Intent struct {
	SurveySeeking float64
	RecencyFocus  float64
	Foundational  float64
}

var (
	surveyIntentWords       = []string{"survey", "review", "overview", "introduction", "tutorial"}
	recencyIntentWords      = []string{"recent", "latest", "new", "emerging", "current", "2023", "2024", "2025"}
	foundationalIntentWords = []string{"foundational", "classic", "seminal", "influential", "landmark", "pioneering"}
)

// DetectIntent scores intent keyword groups in the query, 0.3 per hit,
// saturating at 1.
func DetectIntent(query string) Intent {
	lower := strings.ToLower(query)
	score := func(words []string) float64 {
		s := 0.0
		for _, w := range words {
			if strings.Contains(lower, w) {
				s += 0.3
			}
		}
		if s > 1 {
			s = 1
		}
		return s
	}
	return Intent{
		SurveySeeking: score(surveyIntentWords),
		RecencyFocus:  score(recencyIntentWords),
		Foundational:  score(foundationalIntentWords),
	}
}

// adjustWeights nudges weights toward the query's stated intent, each
// feature capped so intent can tilt but never dominate the mode.
func adjustWeights(w Weights, intent Intent) Weights {
	capAdd := func(current, cap float64) float64 {
		v := current + 0.10
		if v > cap {
			v = cap
		}
		return v
	}
	if intent.SurveySeeking > 0.3 {
		w.IsSurvey = capAdd(w.IsSurvey, 0.15)
	}
	if intent.RecencyFocus > 0.3 {
		w.Recency = capAdd(w.Recency, 0.25)
		w.CitationVelocity = capAdd(w.CitationVelocity, 0.35)
	}
	if intent.Foundational > 0.3 {
		w.LogCitations = capAdd(w.LogCitations, 0.45)
	}
	return w
}

// scored pairs a paper with its normalized feature vector for explanation.
type scored struct {
	paper              *domain.MergedPaper
	features           Features
	citationPercentile float64
}

// Rank runs the two-stage ranker: relevance prefilter, in-set feature
// normalization, mode-weighted scoring with intent adjustment, survey cap
// and diversity. Returns up to MaxRanked papers, best first, each with
// Score and WhyRecommended populated.
func Rank(papers []*domain.MergedPaper, query string, mode domain.Mode, limit int, surveyOnly bool) []*domain.MergedPaper {
	if len(papers) == 0 {
		return nil
	}
	if limit <= 0 {
		limit = 20
	}

	// Stage 1: crop by each source's own relevance signal so one noisy
	// source cannot swamp normalization.
	prefiltered := append([]*domain.MergedPaper(nil), papers...)
	sort.SliceStable(prefiltered, func(i, j int) bool {
		return prefiltered[i].RelevanceScore > prefiltered[j].RelevanceScore
	})
	if len(prefiltered) > PrefilterSize {
		prefiltered = prefiltered[:PrefilterSize]
	}

	// Stage 2: features, normalization, weighted score.
	intent := DetectIntent(query)
	weights := adjustWeights(modeWeights[mode], intent)
	currentYear := time.Now().Year()

	entries := make([]*scored, len(prefiltered))
	rawRelevance := make([]float64, len(prefiltered))
	rawCitations := make([]float64, len(prefiltered))
	rawVelocity := make([]float64, len(prefiltered))
	for i, p := range prefiltered {
		f := Extract(p, query)
		entries[i] = &scored{paper: p, features: f}
		rawRelevance[i] = f.Relevance
		rawCitations[i] = f.LogCitations
		rawVelocity[i] = f.CitationVelocity
	}
	normRelevance := normalizeInSet(rawRelevance)
	normCitations := normalizeInSet(rawCitations)
	normVelocity := normalizeInSet(rawVelocity)

	for i, e := range entries {
		e.features.Relevance = normRelevance[i]
		e.features.LogCitations = normCitations[i]
		e.features.CitationVelocity = normVelocity[i]
		e.citationPercentile = percentileRank(rawCitations, rawCitations[i])

		if mode == domain.ModeRecent && e.paper.Year != nil && *e.paper.Year >= currentYear-3 {
			e.features.Recency = clamp01(e.features.Recency * 1.5)
		}

		f := e.features
		e.paper.Score = weights.Relevance*f.Relevance +
			weights.LogCitations*f.LogCitations +
			weights.CitationVelocity*f.CitationVelocity +
			weights.Recency*f.Recency +
			weights.VenueSignal*f.VenueSignal +
			weights.IsSurvey*f.IsSurvey +
			weights.IsOpenAccess*f.IsOpenAccess
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].paper.Score > entries[j].paper.Score
	})

	if !surveyOnly {
		entries = applySurveyCap(entries, limit, intent.SurveySeeking)
	}
	entries = applyDiversity(entries, limit)

	if len(entries) > MaxRanked {
		entries = entries[:MaxRanked]
	}

	out := make([]*domain.MergedPaper, len(entries))
	for i, e := range entries {
		e.paper.WhyRecommended = Explain(e, mode, currentYear)
		out[i] = e.paper
	}
	return out
}

// percentileRank is the fraction of values at or below v.
func percentileRank(values []float64, v float64) float64 {
	if len(values) == 0 {
		return 0
	}
	count := 0
	for _, x := range values {
		if x <= v {
			count++
		}
	}
	return float64(count) / float64(len(values))
}

// applySurveyCap pushes excess or low-quality surveys below the organic
// results. The cap is soft: demoted surveys stay at the tail so an
// all-survey candidate set still fills the response.
func applySurveyCap(entries []*scored, limit int, surveyIntent float64) []*scored {
	surveyCap := 6
	if surveyIntent > 0.5 {
		surveyCap = limit / 2
		if surveyCap < 1 {
			surveyCap = 1
		}
	}

	var surveyScores []float64
	for _, e := range entries {
		if e.paper.IsSurvey {
			surveyScores = append(surveyScores, e.paper.Score)
		}
	}
	if len(surveyScores) == 0 {
		return entries
	}
	median := medianOf(surveyScores)

	var kept, demoted []*scored
	surveys := 0
	for _, e := range entries {
		if !e.paper.IsSurvey {
			kept = append(kept, e)
			continue
		}
		if surveys < surveyCap && e.paper.Score >= median {
			kept = append(kept, e)
			surveys++
			continue
		}
		demoted = append(demoted, e)
	}
	return append(kept, demoted...)
}

func medianOf(values []float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

// applyDiversity limits per-author, per-venue and (until 70% of the limit
// is filled) per-decade repetition in the head of the list, backfilling
// rejected papers behind the diverse head.
func applyDiversity(entries []*scored, limit int) []*scored {
	softTarget := (limit * 7) / 10
	authorCount := map[string]int{}
	venueCount := map[string]int{}
	decadeCount := map[int]int{}

	var kept, rejected []*scored
	for _, e := range entries {
		if len(kept) >= limit {
			rejected = append(rejected, e)
			continue
		}
		p := e.paper
		author := firstAuthorKey(p)
		venue := strings.ToLower(p.Venue)
		decade := -1
		if p.Year != nil {
			decade = *p.Year / 10
		}

		if author != "" && authorCount[author] >= 2 {
			rejected = append(rejected, e)
			continue
		}
		if venue != "" && venueCount[venue] >= 3 {
			rejected = append(rejected, e)
			continue
		}
		if decade >= 0 && len(kept) < softTarget && decadeCount[decade] >= 3 {
			rejected = append(rejected, e)
			continue
		}

		kept = append(kept, e)
		if author != "" {
			authorCount[author]++
		}
		if venue != "" {
			venueCount[venue]++
		}
		if decade >= 0 {
			decadeCount[decade]++
		}
	}
	return append(kept, rejected...)
}

func firstAuthorKey(p *domain.MergedPaper) string {
	if len(p.Authors) == 0 {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(p.Authors[0].Name))
}
