package dedup

import (
	"sort"
	"strconv"
	"strings"

	"github.com/litscout/backend/internal/domain"
	"github.com/litscout/backend/internal/similarity"
)

// cluster holds records sharing one work key (or one fuzzy sub-group of a
// title-hash bucket).
type cluster struct {
	key     string
	records []*domain.PaperRecord
}

// Cluster groups records by work key, then fuzzy-matches across all
// title-hash records as one pool, so near-identical titles merge even when
// their hashes differ. Clusters come back sorted by key so downstream
// merging is deterministic regardless of adapter arrival order.
func Cluster(records []*domain.PaperRecord) []cluster {
	byKey := make(map[string][]*domain.PaperRecord)
	order := make([]string, 0, len(records))
	for _, rec := range records {
		key := WorkKey(rec)
		if _, seen := byKey[key]; !seen {
			order = append(order, key)
		}
		byKey[key] = append(byKey[key], rec)
	}

	var clusters []cluster
	var hashed []*domain.PaperRecord
	for _, key := range order {
		members := byKey[key]
		if strings.HasPrefix(key, "title_hash:") {
			hashed = append(hashed, members...)
			continue
		}
		clusters = append(clusters, cluster{key: key, records: members})
	}

	seen := map[string]int{}
	for _, group := range fuzzyGroups(hashed) {
		key := WorkKey(group[0])
		if n := seen[key]; n > 0 {
			key += "#" + strconv.Itoa(n)
		}
		seen[WorkKey(group[0])]++
		clusters = append(clusters, cluster{key: key, records: group})
	}

	sort.SliceStable(clusters, func(i, j int) bool {
		return clusters[i].key < clusters[j].key
	})
	return clusters
}

// fuzzyGroups greedily partitions a title-hash bucket: each unassigned
// record seeds a group that absorbs every later record likely to be the
// same paper.
func fuzzyGroups(records []*domain.PaperRecord) [][]*domain.PaperRecord {
	assigned := make([]bool, len(records))
	var groups [][]*domain.PaperRecord
	for i, rec := range records {
		if assigned[i] {
			continue
		}
		group := []*domain.PaperRecord{rec}
		assigned[i] = true
		for j := i + 1; j < len(records); j++ {
			if assigned[j] {
				continue
			}
			if similarity.LikelySamePaper(rec, records[j]) {
				group = append(group, records[j])
				assigned[j] = true
			}
		}
		groups = append(groups, group)
	}
	return groups
}
