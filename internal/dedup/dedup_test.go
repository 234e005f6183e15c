package dedup

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/litscout/backend/internal/domain"
)

func intp(v int) *int { return &v }

func TestWorkKey(t *testing.T) {
	tests := []struct {
		name string
		rec  domain.PaperRecord
		want string
	}{
		{
			"doi wins",
			domain.PaperRecord{Title: "T", DOI: "10.1038/Nature14539", ArxivID: "1706.03762"},
			"doi:10.1038/nature14539",
		},
		{
			"suspicious doi falls through to arxiv",
			domain.PaperRecord{Title: "T", DOI: "10.65215/ne77pf66", ArxivID: "1706.03762"},
			"arxiv:1706.03762",
		},
		{
			"arxiv source id used when field empty",
			domain.PaperRecord{Title: "T", Source: domain.SourceArxiv, SourceID: "1706.03762v3"},
			"arxiv:1706.03762",
		},
		{
			"pmid",
			domain.PaperRecord{Title: "T", PMID: "12345"},
			"pmid:12345",
		},
		{
			"s2 fallback",
			domain.PaperRecord{Title: "T", Source: domain.SourceSemanticScholar, SourceID: "abc123"},
			"s2:abc123",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, WorkKey(&tt.rec))
		})
	}
}

func TestWorkKeyTitleHashDeterministic(t *testing.T) {
	rec := func() *domain.PaperRecord {
		return &domain.PaperRecord{
			Title:   "Some Obscure Paper",
			Authors: []domain.Author{{Name: "Jane Doe"}},
			Year:    intp(1999),
		}
	}
	k1, k2 := WorkKey(rec()), WorkKey(rec())
	assert.Equal(t, k1, k2)
	assert.Contains(t, k1, "title_hash:")
	// 16 hex chars after the prefix
	assert.Len(t, k1, len("title_hash:")+16)
}

func TestClusterArxivAcrossSources(t *testing.T) {
	s2 := &domain.PaperRecord{
		Title: "Attention Is All You Need", Source: domain.SourceSemanticScholar,
		SourceID: "s2id", ArxivID: "1706.03762",
	}
	oa := &domain.PaperRecord{
		Title: "Attention Is All You Need", Source: domain.SourceOpenAlex,
		SourceID: "W123", ArxivID: "1706.03762",
	}
	clusters := Cluster([]*domain.PaperRecord{s2, oa})
	require.Len(t, clusters, 1)
	assert.Equal(t, "arxiv:1706.03762", clusters[0].key)
	assert.Len(t, clusters[0].records, 2)
}

func TestClusterTitleHashFuzzySubdivision(t *testing.T) {
	// Same hash bucket requires identical normalized title, surname, year.
	a := &domain.PaperRecord{Title: "Deep Learning", Authors: []domain.Author{{Name: "Yann LeCun"}}, Year: intp(2015)}
	b := &domain.PaperRecord{Title: "Deep  Learning", Authors: []domain.Author{{Name: "LeCun, Yann"}}, Year: intp(2015)}
	clusters := Cluster([]*domain.PaperRecord{a, b})
	require.Len(t, clusters, 1)
	assert.Len(t, clusters[0].records, 2)
}

func TestClusterFuzzyMergesAcrossHashBuckets(t *testing.T) {
	// The colon changes the title hash; fuzzy matching still unifies them.
	a := &domain.PaperRecord{
		Title:   "Graph Neural Networks: A Comprehensive Survey",
		Authors: []domain.Author{{Name: "Zonghan Wu"}},
		Year:    intp(2020),
	}
	b := &domain.PaperRecord{
		Title:   "Graph Neural Networks A Comprehensive Survey",
		Authors: []domain.Author{{Name: "Zonghan Wu"}},
		Year:    intp(2020),
	}
	require.NotEqual(t, WorkKey(a), WorkKey(b))

	clusters := Cluster([]*domain.PaperRecord{a, b})
	require.Len(t, clusters, 1)
	assert.Len(t, clusters[0].records, 2)
}

func TestMergeRepresentativeAndCitations(t *testing.T) {
	arxivRec := &domain.PaperRecord{
		Title: "Attention Is All You Need", Source: domain.SourceArxiv,
		SourceID: "1706.03762", ArxivID: "1706.03762",
		Year: intp(2017), IsOpenAccess: true, OAURL: "https://arxiv.org/pdf/1706.03762",
		WorkType: domain.WorkTypePreprint, RelevanceScore: 0.8,
	}
	s2Rec := &domain.PaperRecord{
		Title: "Attention Is All You Need", Source: domain.SourceSemanticScholar,
		SourceID: "s2id", ArxivID: "1706.03762", DOI: "10.5555/3295222.3295349",
		Abstract: "The dominant sequence transduction models...", Year: intp(2017),
		Venue: "NeurIPS", CitationCount: intp(120000),
		WorkType: domain.WorkTypeConference, RelevanceScore: 0.95,
		Authors: []domain.Author{{Name: "Ashish Vaswani"}},
	}
	crossrefRec := &domain.PaperRecord{
		Title: "Attention Is All You Need", Source: domain.SourceCrossref,
		SourceID: "10.5555/3295222.3295349", DOI: "10.5555/3295222.3295349",
		Year: intp(2017), CitationCount: intp(90000),
		WorkType: domain.WorkTypeConference,
	}

	papers := Merge([]*domain.PaperRecord{arxivRec, crossrefRec, s2Rec})
	require.Len(t, papers, 1)
	p := papers[0]

	// S2 wins representative selection and the citation count.
	assert.Equal(t, domain.SourceSemanticScholar, p.CitationSource)
	assert.Equal(t, 120000, *p.CitationCount)
	assert.Equal(t, "10.5555/3295222.3295349", p.DOI)
	// OA URL filled from the arXiv member.
	assert.Equal(t, "https://arxiv.org/pdf/1706.03762", p.OAURL)
	assert.True(t, p.IsOpenAccess)
	assert.Equal(t, 0.95, p.RelevanceScore)
	assert.Len(t, p.Sources, 3)
	assert.Equal(t, "s2id", p.SourceIDs[domain.SourceSemanticScholar])
}

func TestMergeProvenanceWithinSources(t *testing.T) {
	a := &domain.PaperRecord{
		Title: "P", Source: domain.SourceOpenAlex, SourceID: "W1",
		DOI: "10.1/x", Year: intp(2019),
	}
	b := &domain.PaperRecord{
		Title: "P", Source: domain.SourceCrossref, SourceID: "10.1/x",
		DOI: "10.1/x", Abstract: "filled later",
	}
	papers := Merge([]*domain.PaperRecord{a, b})
	require.Len(t, papers, 1)
	p := papers[0]
	for field, src := range p.FieldProvenance {
		assert.True(t, p.HasSource(src), "provenance for %s points outside sources", field)
	}
	assert.Equal(t, domain.SourceCrossref, p.FieldProvenance["abstract"])
}

func TestCitationAgeSanityCorrectsFromArxivID(t *testing.T) {
	current := time.Now().Year()
	p := &domain.MergedPaper{
		Title: "P", Year: intp(current), CitationCount: intp(12000),
		ArxivID:         "1706.03762",
		FieldProvenance: map[string]domain.Source{},
	}
	CitationAgeSanity([]*domain.MergedPaper{p})
	assert.True(t, p.Flags.Has(domain.FlagImplausibleCitationAge))
	assert.True(t, p.Flags.Has(domain.FlagYearCorrected))
	require.NotNil(t, p.Year)
	assert.Equal(t, 2017, *p.Year)
	assert.Equal(t, ProvenanceArxivInference, p.FieldProvenance["year"])
}

func TestCitationAgeSanityUncorrectable(t *testing.T) {
	current := time.Now().Year()
	p := &domain.MergedPaper{
		Title: "P", Year: intp(current), CitationCount: intp(600),
		FieldProvenance: map[string]domain.Source{},
	}
	CitationAgeSanity([]*domain.MergedPaper{p})
	assert.True(t, p.Flags.Has(domain.FlagImplausibleCitationAge))
	assert.True(t, p.Flags.Has(domain.FlagYearUncorrectable))
	assert.Nil(t, p.Year)
}

func TestCitationAgeSanityLeavesOldPapersAlone(t *testing.T) {
	p := &domain.MergedPaper{
		Title: "P", Year: intp(2015), CitationCount: intp(50000),
		FieldProvenance: map[string]domain.Source{},
	}
	CitationAgeSanity([]*domain.MergedPaper{p})
	assert.False(t, p.Flags.Has(domain.FlagImplausibleCitationAge))
	assert.Equal(t, 2015, *p.Year)
}

func TestSafeDedupMergesFlaggedDuplicate(t *testing.T) {
	flagged := &domain.MergedPaper{
		Title: "Attention Is All You Need", ArxivID: "1706.03762",
		Year: intp(2017), CitationCount: intp(6000),
		Sources:         []domain.Source{domain.SourceOpenAlex},
		SourceIDs:       map[domain.Source]string{domain.SourceOpenAlex: "W1"},
		FieldProvenance: map[string]domain.Source{},
		Flags:           domain.FlagSet{domain.FlagImplausibleCitationAge: true, domain.FlagYearCorrected: true},
		Authors:         []domain.Author{{Name: "Ashish Vaswani"}},
	}
	clean := &domain.MergedPaper{
		Title: "Attention Is All You Need", DOI: "10.5555/3295222.3295349",
		Year: intp(2017), CitationCount: intp(150000),
		Sources:         []domain.Source{domain.SourceSemanticScholar},
		SourceIDs:       map[domain.Source]string{domain.SourceSemanticScholar: "s2id"},
		FieldProvenance: map[string]domain.Source{},
		Authors:         []domain.Author{{Name: "Ashish Vaswani"}},
	}

	out := SafeDedup([]*domain.MergedPaper{flagged, clean})
	require.Len(t, out, 1)
	p := out[0]
	assert.Equal(t, 150000, *p.CitationCount)
	assert.Equal(t, 2017, *p.Year)
	assert.Equal(t, "1706.03762", p.ArxivID)
	assert.True(t, p.Flags.Has(domain.FlagImplausibleCitationAge))
	assert.Len(t, p.Sources, 2)
}

func TestSafeDedupLeavesDistinctPapers(t *testing.T) {
	a := &domain.MergedPaper{
		Title: "Attention Is All You Need", DOI: "10.1/x",
		Sources: []domain.Source{domain.SourceCrossref}, FieldProvenance: map[string]domain.Source{},
	}
	b := &domain.MergedPaper{
		Title: "Random Forests", DOI: "10.2/y",
		Sources: []domain.Source{domain.SourceCrossref}, FieldProvenance: map[string]domain.Source{},
	}
	out := SafeDedup([]*domain.MergedPaper{a, b})
	assert.Len(t, out, 2)
}

func TestSafeDedupSingleton(t *testing.T) {
	a := &domain.MergedPaper{Title: "Only One", FieldProvenance: map[string]domain.Source{}}
	out := SafeDedup([]*domain.MergedPaper{a})
	assert.Len(t, out, 1)
}

func TestMergePipelineIdempotentClusters(t *testing.T) {
	recs := func() []*domain.PaperRecord {
		return []*domain.PaperRecord{
			{Title: "Paper A", Source: domain.SourceArxiv, SourceID: "2301.00001", ArxivID: "2301.00001"},
			{Title: "Paper A", Source: domain.SourceSemanticScholar, SourceID: "s1", ArxivID: "2301.00001"},
			{Title: "Paper B", Source: domain.SourceCrossref, SourceID: "10.3/z", DOI: "10.3/z"},
		}
	}
	first := Merge(recs())
	second := Merge(recs())
	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].WorkKey, second[i].WorkKey)
		assert.Equal(t, first[i].Title, second[i].Title)
		assert.Equal(t, first[i].Sources, second[i].Sources)
	}
}
