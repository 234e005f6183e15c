// Package similarity provides the fuzzy-matching primitives used to decide
// whether two records describe the same scholarly work.
package similarity

import (
	"sort"
	"strings"

	"github.com/litscout/backend/internal/domain"
	"github.com/litscout/backend/internal/normalize"
)

// Ratio is a sequence similarity in [0,1]: 2*LCS / (len(a)+len(b)), the
// classic difflib ratio. Empty-vs-empty is 1.
func Ratio(a, b string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1.0
	}
	if len(a) == 0 || len(b) == 0 {
		return 0.0
	}
	ra, rb := []rune(a), []rune(b)
	return 2.0 * float64(lcsLength(ra, rb)) / float64(len(ra)+len(rb))
}

func lcsLength(a, b []rune) int {
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				curr[j] = prev[j-1] + 1
			} else if prev[j] >= curr[j-1] {
				curr[j] = prev[j]
			} else {
				curr[j] = curr[j-1]
			}
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

// TokenSortRatio compares two strings word-order-independently by sorting
// their tokens before measuring the ratio.
func TokenSortRatio(a, b string) float64 {
	return Ratio(sortTokens(a), sortTokens(b))
}

func sortTokens(s string) string {
	tokens := strings.Fields(s)
	sort.Strings(tokens)
	return strings.Join(tokens, " ")
}

// TitleSimilarity compares two raw titles after canonicalization. 0 when
// either is empty.
func TitleSimilarity(a, b string) float64 {
	na, nb := normalize.Title(a), normalize.Title(b)
	if na == "" || nb == "" {
		return 0.0
	}
	return TokenSortRatio(na, nb)
}

// AuthorSimilarity compares first authors by surname. 0.5 when either side
// has no authors, since absence is weak evidence either way.
func AuthorSimilarity(a, b []domain.Author) float64 {
	sa := firstSurname(a)
	sb := firstSurname(b)
	if sa == "" || sb == "" {
		return 0.5
	}
	if sa == sb {
		return 1.0
	}
	return Ratio(sa, sb)
}

func firstSurname(authors []domain.Author) string {
	if len(authors) == 0 {
		return ""
	}
	return normalize.FirstAuthorSurname(authors[0].Name)
}

// YearSimilarity tolerates small disagreements between sources. 0.5 when
// either year is absent.
func YearSimilarity(y1, y2 *int) float64 {
	if y1 == nil || y2 == nil {
		return 0.5
	}
	diff := *y1 - *y2
	if diff < 0 {
		diff = -diff
	}
	switch diff {
	case 0:
		return 1.0
	case 1:
		return 0.9
	case 2:
		return 0.7
	default:
		return 0.0
	}
}

const (
	titleFloor     = 0.90
	titleStrong    = 0.95
	authorFloor    = 0.30
	combinedAccept = 0.85
)

// LikelySamePaper decides whether two records inside a title-hash bucket
// describe the same work. DOIs are authoritative when both sides have one.
func LikelySamePaper(a, b *domain.PaperRecord) bool {
	if a.DOI != "" && b.DOI != "" {
		return strings.EqualFold(a.DOI, b.DOI)
	}

	titleSim := TitleSimilarity(a.Title, b.Title)
	if titleSim < titleFloor {
		return false
	}

	if a.Year != nil && b.Year != nil {
		diff := *a.Year - *b.Year
		if diff < 0 {
			diff = -diff
		}
		if diff > 2 {
			return false
		}
	}

	if titleSim >= titleStrong {
		return true
	}

	authorSim := AuthorSimilarity(a.Authors, b.Authors)
	if authorSim < authorFloor {
		return false
	}
	yearSim := YearSimilarity(a.Year, b.Year)
	combined := 0.50*titleSim + 0.35*authorSim + 0.15*yearSim
	return combined >= combinedAccept
}
