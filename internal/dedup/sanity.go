package dedup

import (
	"regexp"
	"strconv"
	"time"

	"github.com/litscout/backend/internal/domain"
	"github.com/litscout/backend/internal/normalize"
)

// citationAgeThresholds: a paper with at least minCitations citations must
// be at least minAge years old. First matching row applies.
var citationAgeThresholds = []struct {
	minCitations int
	minAge       int
}{
	{10000, 5},
	{5000, 4},
	{2000, 3},
	{500, 2},
}

// ProvenanceArxivInference marks a year recovered from the arXiv id rather
// than reported by any source.
const ProvenanceArxivInference = domain.Source("arxiv_id_inference")

var arxivYearRe = regexp.MustCompile(`^(\d{2})(\d{2})\.`)

// CitationAgeSanity flags papers whose citation count is implausible for
// their age, then tries to recover the real year from the arXiv id. Papers
// that cannot be corrected lose their year entirely.
func CitationAgeSanity(papers []*domain.MergedPaper) {
	currentYear := time.Now().Year()
	for _, p := range papers {
		if p.CitationCount == nil || p.Year == nil {
			continue
		}
		age := currentYear - *p.Year
		if !violatesAgeThreshold(*p.CitationCount, age) {
			continue
		}
		p.Flags = p.Flags.Add(domain.FlagImplausibleCitationAge)

		if inferred := yearFromArxivID(p.ArxivID); inferred != nil {
			p.Year = inferred
			p.Flags = p.Flags.Add(domain.FlagYearCorrected)
			p.FieldProvenance["year"] = ProvenanceArxivInference
			continue
		}
		p.Year = nil
		p.Flags = p.Flags.Add(domain.FlagYearUncorrectable)
	}
}

func violatesAgeThreshold(citations, age int) bool {
	for _, t := range citationAgeThresholds {
		if citations >= t.minCitations {
			return age < t.minAge
		}
	}
	return false
}

// yearFromArxivID decodes the YYMM prefix of a modern arXiv id. Two-digit
// years below 50 land in the 2000s.
func yearFromArxivID(id string) *int {
	m := arxivYearRe.FindStringSubmatch(id)
	if m == nil {
		return nil
	}
	yy, err := strconv.Atoi(m[1])
	if err != nil {
		return nil
	}
	year := 1900 + yy
	if yy < 50 {
		year = 2000 + yy
	}
	return normalize.Year(year)
}
