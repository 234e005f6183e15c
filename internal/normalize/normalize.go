// Package normalize canonicalizes bibliographic metadata so that records
// from different sources can be compared and clustered.
package normalize

import (
	"regexp"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/litscout/backend/internal/domain"
)

var (
	htmlTagRe    = regexp.MustCompile(`<[^>]+>`)
	whitespaceRe = regexp.MustCompile(`\s+`)
)

var leadingArticles = []string{"a ", "an ", "the ", "on ", "re: ", "fwd: "}

// Title canonicalizes a paper title: Unicode NFKD, HTML tags stripped,
// lowercased, whitespace collapsed, leading articles and a trailing period
// removed. Idempotent.
func Title(s string) string {
	s = norm.NFKD.String(s)
	s = htmlTagRe.ReplaceAllString(s, " ")
	s = strings.ToLower(s)
	s = whitespaceRe.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)
	for changed := true; changed; {
		changed = false
		for _, art := range leadingArticles {
			if strings.HasPrefix(s, art) {
				s = strings.TrimSpace(s[len(art):])
				changed = true
			}
		}
	}
	s = strings.TrimSuffix(s, ".")
	return strings.TrimSpace(s)
}

// AuthorName canonicalizes an author name: NFKD with combining marks
// dropped, lowercased, whitespace collapsed, punctuation stripped.
func AuthorName(s string) string {
	s = norm.NFKD.String(s)
	var b strings.Builder
	for _, r := range s {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		switch r {
		case ',', ';', ':', '\'', '"':
			continue
		}
		b.WriteRune(r)
	}
	s = strings.ToLower(b.String())
	s = whitespaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// FirstAuthorSurname extracts a comparison key for the first author. Names
// in "Surname, Given" form take the part before the comma; otherwise the
// last word of the normalized name.
func FirstAuthorSurname(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	if idx := strings.Index(name, ","); idx > 0 {
		return AuthorName(name[:idx])
	}
	normalized := AuthorName(name)
	parts := strings.Fields(normalized)
	if len(parts) == 0 {
		return ""
	}
	return parts[len(parts)-1]
}

var doiPrefixes = []string{"https://doi.org/", "http://doi.org/", "doi.org/", "doi:"}

// DOI strips URL prefixes and validates the registrant form. Returns ""
// when the value is not a DOI.
func DOI(s string) string {
	s = strings.TrimSpace(s)
	lower := strings.ToLower(s)
	for _, prefix := range doiPrefixes {
		if strings.HasPrefix(lower, prefix) {
			s = s[len(prefix):]
			lower = lower[len(prefix):]
		}
	}
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "10.") {
		return ""
	}
	return s
}

var arxivVersionRe = regexp.MustCompile(`v\d+$`)

// ArxivID strips URL/prefix forms and the version suffix from an arXiv id.
func ArxivID(s string) string {
	s = strings.TrimSpace(s)
	lower := strings.ToLower(s)
	for _, prefix := range []string{"https://arxiv.org/abs/", "http://arxiv.org/abs/", "arxiv:"} {
		if strings.HasPrefix(lower, prefix) {
			s = s[len(prefix):]
			lower = lower[len(prefix):]
		}
	}
	return arxivVersionRe.ReplaceAllString(s, "")
}

// Year keeps a year only when it is plausible for a published work.
func Year(y int) *int {
	if y < 1800 || y > time.Now().Year() {
		return nil
	}
	return &y
}

var venueNoise = []string{"(Online)", "(Print)", " - Online", " - Print"}

// Venue trims publisher noise from a venue name.
func Venue(s string) string {
	s = strings.TrimSpace(s)
	for _, noise := range venueNoise {
		s = strings.ReplaceAll(s, noise, "")
	}
	s = whitespaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

var surveyKeywords = []string{
	"survey", "review", "overview", "tutorial", "state of the art",
	"systematic review", "meta-analysis", "literature review",
}

// IsSurveyTitle reports whether a title announces a survey-type work.
func IsSurveyTitle(title string) bool {
	lower := strings.ToLower(title)
	for _, kw := range surveyKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// DetectSurvey combines the source's own survey marker with title keywords.
func DetectSurvey(rec *domain.PaperRecord) bool {
	return rec.IsSurvey || IsSurveyTitle(rec.Title)
}

var conferenceKeywords = []string{
	"proceedings", "conference", "symposium", "workshop", "congress",
}

// Short names of major venues that rarely say "conference" in their title.
var conferenceShortNames = []string{
	"neurips", "nips", "icml", "iclr", "cvpr", "iccv", "eccv", "acl",
	"emnlp", "naacl", "aaai", "ijcai", "kdd", "sigir", "sigmod", "vldb",
	"www", "chi", "interspeech", "icassp", "miccai",
}

var journalKeywords = []string{"journal", "transactions", "letters", "annals"}

var bookKeywords = []string{"book", "handbook", "encyclopedia", "textbook"}

// DetectWorkType infers the publication kind from title, venue and source.
// Tests run in priority order; the first hit wins.
func DetectWorkType(rec *domain.PaperRecord) domain.WorkType {
	titleLower := strings.ToLower(rec.Title)
	venueLower := strings.ToLower(rec.Venue)

	if DetectSurvey(rec) {
		return domain.WorkTypeSurvey
	}

	if strings.Contains(titleLower, "chapter") || strings.Contains(venueLower, "chapter") {
		return domain.WorkTypeChapter
	}
	for _, kw := range bookKeywords {
		if strings.Contains(titleLower, kw) || strings.Contains(venueLower, kw) {
			return domain.WorkTypeBook
		}
	}

	if rec.Source == domain.SourceArxiv ||
		strings.Contains(venueLower, "arxiv") || strings.Contains(venueLower, "preprint") {
		return domain.WorkTypePreprint
	}

	for _, kw := range conferenceKeywords {
		if strings.Contains(venueLower, kw) {
			return domain.WorkTypeConference
		}
	}
	for _, name := range conferenceShortNames {
		if containsWord(venueLower, name) {
			return domain.WorkTypeConference
		}
	}

	for _, kw := range journalKeywords {
		if strings.Contains(venueLower, kw) {
			return domain.WorkTypeJournal
		}
	}

	if rec.Venue != "" {
		return domain.WorkTypeJournal
	}
	return domain.WorkTypeUnknown
}

func containsWord(s, word string) bool {
	idx := 0
	for {
		i := strings.Index(s[idx:], word)
		if i < 0 {
			return false
		}
		start := idx + i
		end := start + len(word)
		beforeOK := start == 0 || !isAlnum(rune(s[start-1]))
		afterOK := end == len(s) || !isAlnum(rune(s[end]))
		if beforeOK && afterOK {
			return true
		}
		idx = start + 1
	}
}

func isAlnum(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// Record applies field-level normalization in place and re-derives the
// survey marker and work type. Adapters call this on every emitted record.
func Record(rec *domain.PaperRecord) {
	rec.DOI = DOI(rec.DOI)
	rec.ArxivID = ArxivID(rec.ArxivID)
	rec.Venue = Venue(rec.Venue)
	if rec.Year != nil {
		if valid := Year(*rec.Year); valid == nil {
			rec.Year = nil
			rec.Flags = rec.Flags.Add(domain.FlagBadYear)
		}
	}
	rec.IsSurvey = DetectSurvey(rec)
	if rec.WorkType == "" || rec.WorkType == domain.WorkTypeUnknown {
		rec.WorkType = DetectWorkType(rec)
	}
}
