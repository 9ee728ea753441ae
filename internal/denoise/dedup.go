package denoise

import (
	"ainews/internal/core"
	"ainews/internal/logger"
)

// Only the head of the content participates in the similarity key; two
// stories that open identically are the same story for digest purposes.
const dedupContentHead = 500

// DedupClusterer groups near-duplicate items (same story from different
// sources) using MinHash signatures behind an LSH index, so the batch
// never needs an all-pairs comparison.
type DedupClusterer struct {
	threshold float64
}

// NewDedupClusterer builds a clusterer with the given Jaccard similarity
// threshold. Non-positive thresholds select the 0.85 default.
func NewDedupClusterer(threshold float64) *DedupClusterer {
	if threshold <= 0 {
		threshold = 0.85
	}
	return &DedupClusterer{threshold: threshold}
}

// Cluster assigns every item a ClusterID and marks one representative per
// cluster. The representative is the item with the longest content,
// breaking ties on earliest publish time, then smallest ID. Cluster IDs
// are the smallest item ID in the cluster, which keeps them stable when
// the same batch is re-clustered. Returns the annotated items and the
// number of clusters.
func (c *DedupClusterer) Cluster(items []core.Item) ([]core.Item, int) {
	n := len(items)
	if n == 0 {
		return items, 0
	}

	uf := newUnionFind(n)

	// Phase A: exact canonical-URL matches cluster unconditionally.
	byURL := map[string]int{}
	for i, item := range items {
		if item.URLCanonical == "" {
			continue
		}
		if first, ok := byURL[item.URLCanonical]; ok {
			uf.union(first, i)
		} else {
			byURL[item.URLCanonical] = i
		}
	}

	// Phase B: MinHash similarity over title plus the content head. Only
	// one probe per URL cluster enters the index; letting every member
	// probe would single-link clusters through a weak shared member.
	probe := map[int]int{}
	for i := range items {
		r := uf.find(i)
		if p, ok := probe[r]; !ok || betterRepresentative(items[i], items[p]) {
			probe[r] = i
		}
	}
	isProbe := make([]bool, n)
	for _, i := range probe {
		isProbe[i] = true
	}

	idx := newLSHIndex()
	sigs := make([][]uint32, n)
	for i, item := range items {
		if !isProbe[i] {
			continue
		}
		sigs[i] = Signature(item.Title + " " + truncateRunes(item.Content, dedupContentHead))
		for _, cand := range idx.candidates(i, sigs[i]) {
			if jaccardEstimate(sigs[i], sigs[cand]) >= c.threshold {
				uf.union(i, cand)
			}
		}
	}

	groups := map[int][]int{}
	for i := 0; i < n; i++ {
		root := uf.find(i)
		groups[root] = append(groups[root], i)
	}

	for _, members := range groups {
		clusterID := items[members[0]].ID
		rep := members[0]
		for _, m := range members[1:] {
			if items[m].ID < clusterID {
				clusterID = items[m].ID
			}
			if betterRepresentative(items[m], items[rep]) {
				rep = m
			}
		}
		for _, m := range members {
			items[m].ClusterID = clusterID
			items[m].IsRepresentative = m == rep
		}
	}

	if len(groups) < n {
		logger.Debug("Dedup clustering", "items", n, "clusters", len(groups))
	}
	return items, len(groups)
}

// betterRepresentative reports whether a should represent its cluster
// instead of b.
func betterRepresentative(a, b core.Item) bool {
	if len(a.Content) != len(b.Content) {
		return len(a.Content) > len(b.Content)
	}
	if !a.PublishedAt.Equal(b.PublishedAt) {
		return a.PublishedAt.Before(b.PublishedAt)
	}
	return a.ID < b.ID
}

type unionFind struct {
	parent []int
}

func newUnionFind(n int) *unionFind {
	parent := make([]int, n)
	for i := range parent {
		parent[i] = i
	}
	return &unionFind{parent: parent}
}

func (u *unionFind) find(x int) int {
	for u.parent[x] != x {
		u.parent[x] = u.parent[u.parent[x]] // path halving
		x = u.parent[x]
	}
	return x
}

func (u *unionFind) union(a, b int) {
	ra, rb := u.find(a), u.find(b)
	if ra != rb {
		u.parent[rb] = ra
	}
}
