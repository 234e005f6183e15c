package ranking

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/litscout/backend/internal/domain"
)

func intp(v int) *int { return &v }

func paper(title string, year, citations int, opts func(*domain.MergedPaper)) *domain.MergedPaper {
	p := &domain.MergedPaper{
		Title:           title,
		Sources:         []domain.Source{domain.SourceSemanticScholar},
		RelevanceScore:  0.8,
		FieldProvenance: map[string]domain.Source{},
	}
	if year > 0 {
		p.Year = intp(year)
	}
	if citations >= 0 {
		p.CitationCount = intp(citations)
	}
	if opts != nil {
		opts(p)
	}
	return p
}

func TestNormalizeInSet(t *testing.T) {
	t.Run("robust scaling clamps to unit interval", func(t *testing.T) {
		out := normalizeInSet([]float64{0, 1, 2, 3, 4, 100})
		for _, v := range out {
			assert.GreaterOrEqual(t, v, 0.0)
			assert.LessOrEqual(t, v, 1.0)
		}
		assert.Equal(t, 1.0, out[5])
	})

	t.Run("degenerate set maps to 0.5", func(t *testing.T) {
		out := normalizeInSet([]float64{2, 2, 2})
		for _, v := range out {
			assert.Equal(t, 0.5, v)
		}
	})

	t.Run("empty", func(t *testing.T) {
		assert.Empty(t, normalizeInSet(nil))
	})
}

func TestDetectIntent(t *testing.T) {
	intent := DetectIntent("a survey of recent transformers")
	assert.Greater(t, intent.SurveySeeking, 0.0)
	assert.Greater(t, intent.RecencyFocus, 0.0)
	assert.Equal(t, 0.0, intent.Foundational)

	intent = DetectIntent("seminal classic papers on optimization")
	assert.GreaterOrEqual(t, intent.Foundational, 0.6)
}

func TestRankScoresMonotonic(t *testing.T) {
	var papers []*domain.MergedPaper
	for i := 0; i < 30; i++ {
		papers = append(papers, paper(fmt.Sprintf("Paper %d", i), 2010+i%10, i*100, func(p *domain.MergedPaper) {
			p.Authors = []domain.Author{{Name: fmt.Sprintf("Author %d", i)}}
		}))
	}
	ranked := Rank(papers, "machine learning", domain.ModeFoundational, 20, false)
	require.NotEmpty(t, ranked)
	for i := 1; i < len(ranked); i++ {
		assert.GreaterOrEqual(t, ranked[i-1].Score, ranked[i].Score)
	}
}

func TestRankFoundationalFavorsCitations(t *testing.T) {
	classic := paper("Classic Work on Learning Theory", 2005, 10000, func(p *domain.MergedPaper) {
		p.Authors = []domain.Author{{Name: "Old Author"}}
	})
	fresh := paper("Fresh Work on Learning Theory", time.Now().Year()-1, 50, func(p *domain.MergedPaper) {
		p.Authors = []domain.Author{{Name: "New Author"}}
	})
	ranked := Rank([]*domain.MergedPaper{fresh, classic}, "learning theory", domain.ModeFoundational, 10, false)
	require.Len(t, ranked, 2)
	assert.Equal(t, classic.Title, ranked[0].Title)
}

func TestRankRecentFavorsVelocity(t *testing.T) {
	old := paper("Learning Methods Classic", 2005, 10000, func(p *domain.MergedPaper) {
		p.Authors = []domain.Author{{Name: "Old Author"}}
	})
	recent := paper("Learning Methods Modern", time.Now().Year()-1, 500, func(p *domain.MergedPaper) {
		p.Authors = []domain.Author{{Name: "New Author"}}
	})
	ranked := Rank([]*domain.MergedPaper{old, recent}, "learning methods", domain.ModeRecent, 10, false)
	require.Len(t, ranked, 2)
	assert.Equal(t, recent.Title, ranked[0].Title)
}

func TestRankPrefilterCapsCandidates(t *testing.T) {
	var papers []*domain.MergedPaper
	for i := 0; i < PrefilterSize+150; i++ {
		papers = append(papers, paper(fmt.Sprintf("Paper %d", i), 2015, 10, nil))
	}
	ranked := Rank(papers, "query", domain.ModeFoundational, 20, false)
	assert.LessOrEqual(t, len(ranked), MaxRanked)
}

func TestSurveyCapIsSoft(t *testing.T) {
	var papers []*domain.MergedPaper
	for i := 0; i < 15; i++ {
		papers = append(papers, paper(fmt.Sprintf("Survey of Topic %d", i), 2018, 200+i, func(p *domain.MergedPaper) {
			p.IsSurvey = true
			p.Authors = []domain.Author{{Name: fmt.Sprintf("Author %d", i)}}
		}))
	}
	ranked := Rank(papers, "topic", domain.ModeFoundational, 10, false)
	// All candidates are surveys: the cap reorders but never drops them.
	assert.Len(t, ranked, 15)
}

func TestSurveyCapLimitsHead(t *testing.T) {
	var papers []*domain.MergedPaper
	for i := 0; i < 10; i++ {
		papers = append(papers, paper(fmt.Sprintf("Survey Number %d", i), 2018, 5000, func(p *domain.MergedPaper) {
			p.IsSurvey = true
			p.Authors = []domain.Author{{Name: fmt.Sprintf("Survey Author %d", i)}}
		}))
	}
	for i := 0; i < 10; i++ {
		papers = append(papers, paper(fmt.Sprintf("Regular Paper %d", i), 2018, 100, func(p *domain.MergedPaper) {
			p.Authors = []domain.Author{{Name: fmt.Sprintf("Regular Author %d", i)}}
		}))
	}
	ranked := Rank(papers, "topic", domain.ModeFoundational, 20, false)
	surveysInHead := 0
	for _, p := range ranked[:12] {
		if p.IsSurvey {
			surveysInHead++
		}
	}
	assert.LessOrEqual(t, surveysInHead, 6)
}

func TestDiversityLimitsRepeatAuthors(t *testing.T) {
	var papers []*domain.MergedPaper
	for i := 0; i < 8; i++ {
		papers = append(papers, paper(fmt.Sprintf("Prolific Result %d", i), 2000+i, 1000, func(p *domain.MergedPaper) {
			p.Authors = []domain.Author{{Name: "Prolific Author"}}
		}))
	}
	// Enough distinct authors across distinct decades that the head fills
	// without backfilling author-capped papers.
	otherYears := []int{1955, 1965, 1975, 1982, 1987, 1993, 1998, 2012, 2016, 2021, 1945, 1935}
	for i, y := range otherYears {
		papers = append(papers, paper(fmt.Sprintf("Other Result %d", i), y, 10, func(p *domain.MergedPaper) {
			p.Authors = []domain.Author{{Name: fmt.Sprintf("Other %d", i)}}
		}))
	}
	ranked := Rank(papers, "results", domain.ModeFoundational, 10, false)
	prolificInHead := 0
	for _, p := range ranked[:10] {
		if len(p.Authors) > 0 && p.Authors[0].Name == "Prolific Author" {
			prolificInHead++
		}
	}
	assert.LessOrEqual(t, prolificInHead, 2)
	// Rejected papers backfill behind the head instead of disappearing.
	assert.Len(t, ranked, 20)
}

func TestExplanations(t *testing.T) {
	currentYear := time.Now().Year()

	t.Run("highly cited", func(t *testing.T) {
		papers := []*domain.MergedPaper{
			paper("Famous Paper on Topics", 2015, 50000, func(p *domain.MergedPaper) {
				p.IsOpenAccess = true
			}),
			paper("Minor Paper on Topics", 2015, 10, nil),
		}
		ranked := Rank(papers, "topics", domain.ModeFoundational, 10, false)
		require.NotEmpty(t, ranked)
		top := ranked[0]
		assert.Equal(t, "Famous Paper on Topics", top.Title)
		assert.Contains(t, top.WhyRecommended, "Top-cited within the candidate set")
		assert.Contains(t, top.WhyRecommended, "Open access available")
		assert.LessOrEqual(t, len(top.WhyRecommended), 4)
	})

	t.Run("published recently", func(t *testing.T) {
		papers := []*domain.MergedPaper{
			paper("Brand New Paper", currentYear, 30, nil),
			paper("Older Paper Here", 2012, 40, nil),
		}
		ranked := Rank(papers, "paper", domain.ModeRecent, 10, false)
		var fresh *domain.MergedPaper
		for _, p := range ranked {
			if p.Title == "Brand New Paper" {
				fresh = p
			}
		}
		require.NotNil(t, fresh)
		assert.Contains(t, fresh.WhyRecommended, fmt.Sprintf("Published recently (%d)", currentYear))
	})

	t.Run("survey bullet", func(t *testing.T) {
		papers := []*domain.MergedPaper{
			paper("A Survey of Everything", 2019, 500, func(p *domain.MergedPaper) {
				p.IsSurvey = true
			}),
			paper("Narrow Technical Note", 2019, 5, nil),
		}
		ranked := Rank(papers, "everything", domain.ModeFoundational, 10, false)
		var survey *domain.MergedPaper
		for _, p := range ranked {
			if p.IsSurvey {
				survey = p
			}
		}
		require.NotNil(t, survey)
		assert.Contains(t, survey.WhyRecommended, "Survey/Review (good starting point)")
	})
}

func TestVenueSignal(t *testing.T) {
	top := paper("P", 2018, 10, func(p *domain.MergedPaper) {
		p.Venue = "Nature Methods"
		p.WorkType = domain.WorkTypeJournal
	})
	assert.Equal(t, 0.9, venueSignal(top))

	plain := paper("P", 2018, 10, func(p *domain.MergedPaper) {
		p.Venue = "Obscure Quarterly"
		p.WorkType = domain.WorkTypeJournal
	})
	assert.InDelta(t, 0.3, venueSignal(plain), 1e-9)

	assert.Equal(t, 0.0, venueSignal(paper("P", 2018, 10, nil)))
}

func TestVelocityAcceleration(t *testing.T) {
	fast := paper("P", 0, 100, nil)
	v1 := velocity(fast, 1)  // age<2, >10 citations: 1.5x
	v2 := velocity(fast, 5)  // no acceleration
	assert.Greater(t, v1, v2)
	assert.Equal(t, 0.0, velocity(paper("P", 0, -1, nil), 1))
}
