package dedup

import (
	"strings"

	"github.com/litscout/backend/internal/domain"
	"github.com/litscout/backend/internal/similarity"
)

const (
	postMergeTitleFloor  = 0.92
	postMergeTitleStrong = 0.98
	postMergeAuthorFloor = 0.40
	citationRatioLimit   = 10.0
)

// SafeDedup catches cross-cluster duplicates that slipped through because
// the representative of one cluster lacked the strong identifier a sibling
// carried. It only merges pairs with near-identical titles plus independent
// corroborating evidence, so distinct papers with similar names survive.
func SafeDedup(papers []*domain.MergedPaper) []*domain.MergedPaper {
	if len(papers) < 2 {
		return papers
	}

	merged := make([]bool, len(papers))
	for i := range papers {
		if merged[i] {
			continue
		}
		bestJ := -1
		bestScore := 0.0
		for j := i + 1; j < len(papers); j++ {
			if merged[j] {
				continue
			}
			score, ok := duplicateScore(papers[i], papers[j])
			if !ok {
				continue
			}
			if score > bestScore {
				bestScore = score
				bestJ = j
			}
		}
		if bestJ < 0 {
			continue
		}

		primary, secondary := papers[i], papers[bestJ]
		if mergePreference(secondary) > mergePreference(primary) {
			primary, secondary = secondary, primary
		}
		absorb(primary, secondary)
		papers[i] = primary
		merged[bestJ] = true
	}

	out := papers[:0]
	for i, p := range papers {
		if !merged[i] {
			out = append(out, p)
		}
	}
	return out
}

// duplicateScore decides whether a pair is a merge candidate and how
// confident we are. Returns ok=false when the pair fails any gate.
func duplicateScore(a, b *domain.MergedPaper) (float64, bool) {
	titleSim := similarity.TitleSimilarity(a.Title, b.Title)
	if titleSim < postMergeTitleFloor {
		return 0, false
	}
	if len(a.Authors) > 0 && len(b.Authors) > 0 {
		if similarity.AuthorSimilarity(a.Authors, b.Authors) < postMergeAuthorFloor {
			return 0, false
		}
	}

	badFlag := hasBadMetadata(a) || hasBadMetadata(b)
	aStrong := a.ArxivID != "" || a.DOI != ""
	bStrong := b.ArxivID != "" || b.DOI != ""
	xorStrong := aStrong != bStrong
	sameArxiv := a.ArxivID != "" && strings.EqualFold(a.ArxivID, b.ArxivID)
	highRatio := citationRatio(a, b) > citationRatioLimit

	if !badFlag && !xorStrong && !sameArxiv && !(titleSim >= postMergeTitleStrong && highRatio) {
		return 0, false
	}

	score := 0.4 * titleSim
	if sameArxiv {
		score += 0.5
	}
	if xorStrong {
		score += 0.2
	}
	if badFlag {
		score += 0.3
	}
	if highRatio {
		score += 0.2
	}
	return score, true
}

func hasBadMetadata(p *domain.MergedPaper) bool {
	return p.Flags.Has(domain.FlagImplausibleCitationAge) ||
		p.Flags.Has(domain.FlagYearUncorrectable) ||
		p.Flags.Has(domain.FlagBadYear)
}

func citationRatio(a, b *domain.MergedPaper) float64 {
	if a.CitationCount == nil || b.CitationCount == nil {
		return 0
	}
	ca, cb := float64(*a.CitationCount), float64(*b.CitationCount)
	if ca < cb {
		ca, cb = cb, ca
	}
	if cb <= 0 {
		cb = 1
	}
	return ca / cb
}

// mergePreference scores which copy of a duplicate should survive. The copy
// with healthy metadata wins; a flagged year is heavily penalized.
func mergePreference(p *domain.MergedPaper) float64 {
	score := 0.0
	if p.Year != nil {
		score += 20
	}
	if p.Flags.Has(domain.FlagImplausibleCitationAge) || p.Flags.Has(domain.FlagYearUncorrectable) {
		score -= 30
	}
	if p.Flags.Has(domain.FlagBadYear) {
		score -= 20
	}
	if p.ArxivID != "" {
		score += 10
	}
	if p.HasSource(domain.SourceSemanticScholar) {
		score += 8
	}
	if p.DOI != "" {
		score += 5
	}
	if p.CitationCount != nil {
		bonus := float64(*p.CitationCount) / 10000
		if bonus > 5 {
			bonus = 5
		}
		score += bonus
	}
	if p.Abstract != "" {
		score += 2
	}
	return score
}

// absorb folds the losing copy into the surviving one. The secondary only
// fills gaps; its year replaces the primary's only when the primary's year
// is flagged implausible and the secondary's is clean.
func absorb(primary, secondary *domain.MergedPaper) {
	fill := func(field string, dst *string, val string, src domain.Source) {
		if *dst == "" && val != "" {
			*dst = val
			if src != "" {
				primary.FieldProvenance[field] = src
			}
		}
	}
	prov := func(field string) domain.Source { return secondary.FieldProvenance[field] }

	fill("abstract", &primary.Abstract, secondary.Abstract, prov("abstract"))
	fill("doi", &primary.DOI, secondary.DOI, prov("doi"))
	fill("arxiv_id", &primary.ArxivID, secondary.ArxivID, prov("arxiv_id"))
	fill("pmid", &primary.PMID, secondary.PMID, prov("pmid"))
	fill("oa_url", &primary.OAURL, secondary.OAURL, prov("oa_url"))
	fill("publisher_url", &primary.PublisherURL, secondary.PublisherURL, prov("publisher_url"))
	fill("venue", &primary.Venue, secondary.Venue, prov("venue"))
	if primary.PublicationDate == "" {
		primary.PublicationDate = secondary.PublicationDate
	}

	if primary.Year == nil && secondary.Year != nil {
		primary.Year = copyInt(secondary.Year)
		primary.FieldProvenance["year"] = prov("year")
	} else if primary.Flags.Has(domain.FlagImplausibleCitationAge) &&
		!secondary.Flags.Has(domain.FlagImplausibleCitationAge) && secondary.Year != nil {
		primary.Year = copyInt(secondary.Year)
		primary.FieldProvenance["year"] = prov("year")
	}

	if primary.CitationCount == nil && secondary.CitationCount != nil {
		primary.CitationCount = copyInt(secondary.CitationCount)
		primary.CitationSource = secondary.CitationSource
		primary.FieldProvenance["citation_count"] = prov("citation_count")
	}
	if len(primary.Authors) == 0 {
		primary.Authors = secondary.Authors
	}

	primary.Topics = appendUnique(primary.Topics, secondary.Topics, 10)
	primary.Keywords = appendUnique(primary.Keywords, secondary.Keywords, 0)
	primary.Databases = appendUnique(primary.Databases, secondary.Databases, 0)
	primary.URLs = appendUnique(primary.URLs, secondary.URLs, 0)
	primary.IsSurvey = primary.IsSurvey || secondary.IsSurvey
	primary.IsOpenAccess = primary.IsOpenAccess || secondary.IsOpenAccess
	if secondary.RelevanceScore > primary.RelevanceScore {
		primary.RelevanceScore = secondary.RelevanceScore
	}
	primary.Flags = primary.Flags.Union(secondary.Flags)

	for _, src := range secondary.Sources {
		primary.Sources = append(primary.Sources, src)
	}
	for src, id := range secondary.SourceIDs {
		if _, ok := primary.SourceIDs[src]; !ok {
			primary.SourceIDs[src] = id
		}
	}
}
