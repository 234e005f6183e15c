package dedup

import (
	"sort"

	"github.com/google/uuid"

	"github.com/litscout/backend/internal/domain"
)

var sourceBonus = map[domain.Source]int{
	domain.SourceSemanticScholar: 5,
	domain.SourceOpenAlex:        4,
	domain.SourcePubMed:          3,
	domain.SourceCrossref:        2,
	domain.SourceArxiv:           1,
}

// citationSourcePriority orders sources by how much their citation counts
// are trusted. Lower is better.
var citationSourcePriority = map[domain.Source]int{
	domain.SourceSemanticScholar: 0,
	domain.SourceOpenAlex:        1,
	domain.SourceCrossref:        2,
	domain.SourcePubMed:          3,
	domain.SourceArxiv:           4,
}

// representativeScore ranks cluster members by metadata completeness and
// source trust. The highest-scoring member becomes the merge base.
func representativeScore(rec *domain.PaperRecord) int {
	score := 0
	if rec.DOI != "" {
		score += 4
	}
	if rec.WorkType == domain.WorkTypeJournal || rec.WorkType == domain.WorkTypeConference {
		score += 3
	}
	if rec.Abstract != "" {
		score += 2
	}
	if rec.PublisherURL != "" {
		score += 2
	}
	if rec.CitationCount != nil {
		score++
	}
	score += sourceBonus[rec.Source]
	return score
}

// Merge collapses all records into canonical merged papers: cluster, pick a
// representative per cluster, and fold the remaining members in field by
// field. The result order follows the (sorted) cluster order.
func Merge(records []*domain.PaperRecord) []*domain.MergedPaper {
	clusters := Cluster(records)
	papers := make([]*domain.MergedPaper, 0, len(clusters))
	for _, c := range clusters {
		papers = append(papers, mergeCluster(c))
	}
	return papers
}

func mergeCluster(c cluster) *domain.MergedPaper {
	members := make([]*domain.PaperRecord, len(c.records))
	copy(members, c.records)
	sort.SliceStable(members, func(i, j int) bool {
		return representativeScore(members[i]) > representativeScore(members[j])
	})

	rep := members[0]
	paper := &domain.MergedPaper{
		ID:              uuid.New(),
		Title:           rep.Title,
		Abstract:        rep.Abstract,
		DOI:             rep.DOI,
		ArxivID:         rep.ArxivID,
		PMID:            rep.PMID,
		Year:            copyInt(rep.Year),
		PublicationDate: rep.PublicationDate,
		Venue:           rep.Venue,
		Authors:         rep.Authors,
		OAURL:           rep.OAURL,
		PublisherURL:    rep.PublisherURL,
		Topics:          appendUnique(nil, rep.Topics, 10),
		Keywords:        appendUnique(nil, rep.Keywords, 0),
		Categories:      map[string][]string{},
		Databases:       []string{string(rep.Source)},
		URLs:            nil,
		IsSurvey:        rep.IsSurvey,
		IsOpenAccess:    rep.IsOpenAccess,
		WorkType:        rep.WorkType,
		RelevanceScore:  rep.RelevanceScore,
		Sources:         []domain.Source{rep.Source},
		SourceIDs:       map[domain.Source]string{},
		WorkKey:         c.key,
		FieldProvenance: map[string]domain.Source{},
		Flags:           domain.FlagSet{}.Union(rep.Flags),
	}
	if rep.SourceID != "" {
		paper.SourceIDs[rep.Source] = rep.SourceID
	}
	for _, field := range []struct {
		name  string
		empty bool
	}{
		{"title", rep.Title == ""},
		{"abstract", rep.Abstract == ""},
		{"doi", rep.DOI == ""},
		{"arxiv_id", rep.ArxivID == ""},
		{"pmid", rep.PMID == ""},
		{"year", rep.Year == nil},
		{"venue", rep.Venue == ""},
		{"authors", len(rep.Authors) == 0},
		{"oa_url", rep.OAURL == ""},
		{"publisher_url", rep.PublisherURL == ""},
	} {
		if !field.empty {
			paper.FieldProvenance[field.name] = rep.Source
		}
	}

	for _, other := range members[1:] {
		foldRecord(paper, other)
	}

	mergeCitations(paper, members)
	return paper
}

// foldRecord fills the merged paper's gaps from one additional member. An
// already-populated field is never overwritten, except the venue upgrade
// from book/preprint to journal/conference material.
func foldRecord(paper *domain.MergedPaper, rec *domain.PaperRecord) {
	fill := func(field string, dst *string, val string) {
		if *dst == "" && val != "" {
			*dst = val
			paper.FieldProvenance[field] = rec.Source
		}
	}
	fill("abstract", &paper.Abstract, rec.Abstract)
	fill("doi", &paper.DOI, rec.DOI)
	fill("arxiv_id", &paper.ArxivID, rec.ArxivID)
	fill("pmid", &paper.PMID, rec.PMID)
	fill("oa_url", &paper.OAURL, rec.OAURL)
	fill("publisher_url", &paper.PublisherURL, rec.PublisherURL)
	if paper.PublicationDate == "" && rec.PublicationDate != "" {
		paper.PublicationDate = rec.PublicationDate
	}

	if paper.Year == nil && rec.Year != nil {
		paper.Year = copyInt(rec.Year)
		paper.FieldProvenance["year"] = rec.Source
	}

	if betterVenue(paper, rec) {
		paper.Venue = rec.Venue
		paper.WorkType = rec.WorkType
		paper.FieldProvenance["venue"] = rec.Source
	} else if paper.Venue == "" && rec.Venue != "" {
		paper.Venue = rec.Venue
		paper.FieldProvenance["venue"] = rec.Source
	}

	if len(paper.Authors) == 0 && len(rec.Authors) > 0 {
		paper.Authors = rec.Authors
		paper.FieldProvenance["authors"] = rec.Source
	}

	paper.Topics = appendUnique(paper.Topics, rec.Topics, 10)
	paper.Keywords = appendUnique(paper.Keywords, rec.Keywords, 0)
	paper.Databases = appendUnique(paper.Databases, []string{string(rec.Source)}, 0)
	paper.IsSurvey = paper.IsSurvey || rec.IsSurvey
	paper.IsOpenAccess = paper.IsOpenAccess || rec.IsOpenAccess
	if rec.RelevanceScore > paper.RelevanceScore {
		paper.RelevanceScore = rec.RelevanceScore
	}
	paper.Flags = paper.Flags.Union(rec.Flags)

	paper.Sources = append(paper.Sources, rec.Source)
	if rec.SourceID != "" {
		if _, ok := paper.SourceIDs[rec.Source]; !ok {
			paper.SourceIDs[rec.Source] = rec.SourceID
		}
	}
}

// betterVenue reports whether rec carries journal/conference metadata that
// should replace a weaker venue (book, chapter, preprint, unknown).
func betterVenue(paper *domain.MergedPaper, rec *domain.PaperRecord) bool {
	if rec.Venue == "" {
		return false
	}
	recStrong := rec.WorkType == domain.WorkTypeJournal || rec.WorkType == domain.WorkTypeConference
	paperStrong := paper.WorkType == domain.WorkTypeJournal || paper.WorkType == domain.WorkTypeConference
	return recStrong && !paperStrong
}

// mergeCitations picks the citation count from the most trusted reporting
// source rather than the maximum, so a stale mirror cannot inflate counts.
func mergeCitations(paper *domain.MergedPaper, members []*domain.PaperRecord) {
	best := -1
	for _, rec := range members {
		if rec.CitationCount == nil {
			continue
		}
		priority, ok := citationSourcePriority[rec.Source]
		if !ok {
			priority = len(citationSourcePriority)
		}
		if best == -1 || priority < best {
			best = priority
			paper.CitationCount = copyInt(rec.CitationCount)
			paper.CitationSource = rec.Source
			paper.FieldProvenance["citation_count"] = rec.Source
		}
	}
}

func copyInt(v *int) *int {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

// appendUnique appends items not already present, optionally capping the
// result length (cap 0 means unbounded).
func appendUnique(dst, items []string, max int) []string {
	seen := make(map[string]bool, len(dst))
	for _, s := range dst {
		seen[s] = true
	}
	for _, s := range items {
		if s == "" || seen[s] {
			continue
		}
		if max > 0 && len(dst) >= max {
			break
		}
		dst = append(dst, s)
		seen[s] = true
	}
	return dst
}
