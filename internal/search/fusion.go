package search

import (
	"sort"
)

// DefaultRRFConstant is the standard RRF damping constant.
const DefaultRRFConstant = 60

// Fuse combines the vector and keyword lists with weighted Reciprocal Rank
// Fusion:
//
//	score(d) = w_v/(k + r_v) + w_k/(k + r_k)
//
// A document missing from a list contributes 0 for that list. Only ranks are
// used; path scores are ignored. Results are sorted by score descending, then
// by fewer absent lists, then by lower sum of present ranks, then by document
// id, and truncated to topN. topN <= 0 yields an empty result; k <= 0 uses
// DefaultRRFConstant. Inputs are not modified.
func Fuse(vectorHits, keywordHits []RankedHit, profile QueryProfile, k, topN int) []FusedHit {
	if topN <= 0 || (len(vectorHits) == 0 && len(keywordHits) == 0) {
		return []FusedHit{}
	}
	if k <= 0 {
		k = DefaultRRFConstant
	}

	ranks := make(map[uint64]*ContributingRanks, len(vectorHits)+len(keywordHits))
	get := func(id uint64) *ContributingRanks {
		r, ok := ranks[id]
		if !ok {
			r = &ContributingRanks{}
			ranks[id] = r
		}
		return r
	}
	for _, h := range vectorHits {
		if h.Rank <= 0 {
			continue
		}
		if r := get(h.DocID); r.Vector == 0 || h.Rank < r.Vector {
			r.Vector = h.Rank
		}
	}
	for _, h := range keywordHits {
		if h.Rank <= 0 {
			continue
		}
		if r := get(h.DocID); r.Keyword == 0 || h.Rank < r.Keyword {
			r.Keyword = h.Rank
		}
	}

	fused := make([]FusedHit, 0, len(ranks))
	for id, r := range ranks {
		fused = append(fused, FusedHit{
			DocID: id,
			Score: rrf(profile.VectorWeight, k, r.Vector) + rrf(profile.KeywordWeight, k, r.Keyword),
			Ranks: *r,
		})
	}

	sort.Slice(fused, func(i, j int) bool {
		return fusedBefore(fused[i], fused[j])
	})

	if len(fused) > topN {
		fused = fused[:topN]
	}
	return fused
}

func rrf(weight float64, k, rank int) float64 {
	if rank <= 0 {
		return 0
	}
	return weight / float64(k+rank)
}

// fusedBefore is the total order used by Fuse.
func fusedBefore(a, b FusedHit) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if aa, ba := absentCount(a.Ranks), absentCount(b.Ranks); aa != ba {
		return aa < ba
	}
	if as, bs := a.Ranks.Vector+a.Ranks.Keyword, b.Ranks.Vector+b.Ranks.Keyword; as != bs {
		return as < bs
	}
	return a.DocID < b.DocID
}

func absentCount(r ContributingRanks) int {
	n := 0
	if r.Vector == 0 {
		n++
	}
	if r.Keyword == 0 {
		n++
	}
	return n
}

// fuseRuns combines the hit lists of several retrieval runs with equal-weight
// RRF, using the same tie order as Fuse. The first occurrence of a document
// keeps its hit data.
func fuseRuns(runs [][]Hit, k, topN int) []Hit {
	if len(runs) == 1 {
		hits := runs[0]
		if len(hits) > topN {
			hits = hits[:topN]
		}
		return hits
	}
	if k <= 0 {
		k = DefaultRRFConstant
	}

	type entry struct {
		hit     Hit
		score   float64
		absent  int
		rankSum int
	}
	entries := make(map[uint64]*entry)
	for _, run := range runs {
		for i, h := range run {
			e, ok := entries[h.DocID]
			if !ok {
				e = &entry{hit: h, absent: len(runs)}
				entries[h.DocID] = e
			}
			e.score += 1 / float64(k+i+1)
			e.absent--
			e.rankSum += i + 1
		}
	}

	ordered := make([]*entry, 0, len(entries))
	for _, e := range entries {
		ordered = append(ordered, e)
	}
	sort.Slice(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if a.score != b.score {
			return a.score > b.score
		}
		if a.absent != b.absent {
			return a.absent < b.absent
		}
		if a.rankSum != b.rankSum {
			return a.rankSum < b.rankSum
		}
		return a.hit.DocID < b.hit.DocID
	})

	if len(ordered) > topN {
		ordered = ordered[:topN]
	}
	hits := make([]Hit, len(ordered))
	for i, e := range ordered {
		hits[i] = e.hit
	}
	return hits
}
