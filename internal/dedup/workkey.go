// Package dedup turns the raw multi-source candidate set into canonical
// merged works: work-key clustering, fuzzy sub-clustering, per-cluster
// merge, citation-age sanity and a conservative post-merge dedup pass.
package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/litscout/backend/internal/domain"
	"github.com/litscout/backend/internal/normalize"
)

// Registrant prefixes known to mint DOIs for junk or mirrored records.
// Records carrying one fall through to the next identifier tier.
var suspiciousDOIPrefixes = []string{"10.65215/"}

func suspiciousDOI(doi string) bool {
	lower := strings.ToLower(doi)
	for _, prefix := range suspiciousDOIPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}

// WorkKey assigns the canonical identifier used to cluster records into
// works. Identifier tiers, strongest first: trusted DOI, arXiv id (from any
// source), PMID, Semantic Scholar id, title hash.
func WorkKey(rec *domain.PaperRecord) string {
	if rec.DOI != "" && !suspiciousDOI(rec.DOI) {
		return "doi:" + strings.ToLower(rec.DOI)
	}

	if rec.ArxivID != "" {
		return "arxiv:" + rec.ArxivID
	}
	if rec.Source == domain.SourceArxiv && rec.SourceID != "" {
		return "arxiv:" + normalize.ArxivID(rec.SourceID)
	}

	if rec.PMID != "" {
		return "pmid:" + rec.PMID
	}
	if rec.Source == domain.SourcePubMed && rec.SourceID != "" {
		return "pmid:" + rec.SourceID
	}

	if rec.Source == domain.SourceSemanticScholar && rec.SourceID != "" {
		return "s2:" + rec.SourceID
	}

	return "title_hash:" + titleHash(rec)
}

func titleHash(rec *domain.PaperRecord) string {
	year := "unknown"
	if rec.Year != nil {
		year = strconv.Itoa(*rec.Year)
	}
	surname := ""
	if len(rec.Authors) > 0 {
		surname = normalize.FirstAuthorSurname(rec.Authors[0].Name)
	}
	key := fmt.Sprintf("%s|%s|%s", normalize.Title(rec.Title), surname, year)
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])[:16]
}
