// Package ranking scores merged papers: per-paper feature extraction,
// robust in-set normalization, mode-weighted scoring with diversity and
// survey caps, and human-readable explanations.
package ranking

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/litscout/backend/internal/domain"
)

// Features is one paper's raw signal vector before in-set normalization.
type Features struct {
	Relevance        float64
	LogCitations     float64
	CitationVelocity float64
	Recency          float64
	VenueSignal      float64
	IsSurvey         float64
	IsOpenAccess     float64
}

var sourceReliability = map[domain.Source]float64{
	domain.SourceSemanticScholar: 1.0,
	domain.SourceOpenAlex:        0.9,
	domain.SourcePubMed:          0.85,
	domain.SourceCrossref:        0.8,
	domain.SourceArxiv:           0.7,
}

var topTierVenues = []string{
	"nature", "science", "cell", "lancet", "new england journal", "pnas",
	"jama", "neurips", "nips", "icml", "iclr", "cvpr", "iccv", "eccv",
	"acl", "emnlp", "aaai", "ijcai", "kdd",
}

// Extract computes the raw feature vector for one merged paper. The query
// may be empty, in which case relevance leans on source signals alone.
func Extract(p *domain.MergedPaper, query string) Features {
	currentYear := time.Now().Year()
	f := Features{
		Relevance:   relevance(p, query),
		VenueSignal: venueSignal(p),
	}
	if p.CitationCount != nil {
		f.LogCitations = math.Log1p(float64(*p.CitationCount))
	}
	if p.Year != nil {
		age := currentYear - *p.Year
		f.Recency = math.Exp(-0.15 * float64(age))
		f.CitationVelocity = velocity(p, age)
	}
	if p.IsSurvey {
		f.IsSurvey = 1
	}
	if p.IsOpenAccess {
		f.IsOpenAccess = 1
	}
	return f
}

func relevance(p *domain.MergedPaper, query string) float64 {
	reliability := avgReliability(p.Sources)
	topicOverlap := math.Min(1.0, 0.3+float64(len(p.Topics))/10.0)

	var rel float64
	if query != "" {
		rel = 0.4*p.RelevanceScore*reliability + 0.4*querySimilarity(p, query) + 0.2*topicOverlap
	} else {
		rel = 0.7*p.RelevanceScore*reliability + 0.3*topicOverlap
	}
	return clamp01(rel)
}

func avgReliability(sources []domain.Source) float64 {
	if len(sources) == 0 {
		return 0.75
	}
	sum := 0.0
	for _, src := range sources {
		r, ok := sourceReliability[src]
		if !ok {
			r = 0.75
		}
		sum += r
	}
	return sum / float64(len(sources))
}

// querySimilarity is a cheap word-overlap signal: the fraction of query
// words found in the title, abstract and keywords, weighted 0.5/0.3/0.2.
func querySimilarity(p *domain.MergedPaper, query string) float64 {
	queryWords := wordSet(query)
	if len(queryWords) == 0 {
		return 0
	}
	titleFrac := overlapFraction(queryWords, wordSet(p.Title))
	abstractFrac := overlapFraction(queryWords, wordSet(p.Abstract))
	keywordFrac := overlapFraction(queryWords, wordSet(strings.Join(p.Keywords, " ")))
	return 0.5*titleFrac + 0.3*abstractFrac + 0.2*keywordFrac
}

func wordSet(s string) map[string]bool {
	words := strings.Fields(strings.ToLower(s))
	set := make(map[string]bool, len(words))
	for _, w := range words {
		w = strings.Trim(w, ".,;:!?()[]\"'")
		if len(w) > 2 {
			set[w] = true
		}
	}
	return set
}

func overlapFraction(query, doc map[string]bool) float64 {
	if len(query) == 0 || len(doc) == 0 {
		return 0
	}
	hits := 0
	for w := range query {
		if doc[w] {
			hits++
		}
	}
	return float64(hits) / float64(len(query))
}

// velocity estimates citations per year, log-scaled, with an acceleration
// bump for very recent papers that are already accumulating citations.
func velocity(p *domain.MergedPaper, age int) float64 {
	if p.CitationCount == nil {
		return 0
	}
	citations := float64(*p.CitationCount)
	if age <= 0 {
		return math.Log1p(citations)
	}
	perYear := citations / float64(age)
	switch {
	case age < 2 && citations > 10:
		perYear *= 1.5
	case age < 3 && citations > 20:
		perYear *= 1.2
	}
	return math.Log1p(perYear)
}

func venueSignal(p *domain.MergedPaper) float64 {
	signal := 0.0
	venueLower := strings.ToLower(p.Venue)
	if venueLower != "" {
		for _, name := range topTierVenues {
			if strings.Contains(venueLower, name) {
				signal += 0.6
				break
			}
		}
	}
	switch p.WorkType {
	case domain.WorkTypeJournal, domain.WorkTypeConference:
		signal += 0.3
	case domain.WorkTypeBook, domain.WorkTypeChapter:
		signal += 0.1
	}
	return clamp01(signal)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// normalizeInSet rescales one feature across the candidate set using robust
// percentile scaling, falling back to min-max when the IQR degenerates.
func normalizeInSet(values []float64) []float64 {
	if len(values) == 0 {
		return values
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	p25 := percentile(sorted, 0.25)
	p75 := percentile(sorted, 0.75)
	iqr := p75 - p25

	out := make([]float64, len(values))
	if iqr > 0.001 {
		for i, v := range values {
			out[i] = clamp01((v - p25) / iqr)
		}
		return out
	}

	min, max := sorted[0], sorted[len(sorted)-1]
	if max-min > 0.001 {
		for i, v := range values {
			out[i] = (v - min) / (max - min)
		}
		return out
	}
	for i := range out {
		out[i] = 0.5
	}
	return out
}

func percentile(sorted []float64, q float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}
