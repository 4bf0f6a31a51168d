package search

import (
	"sort"

	"copilot-orchestrator/internal/domain"
)

// rrfK dampens the rank contribution in reciprocal rank fusion. 60 is the
// value from the original RRF paper and keeps single top ranks from
// dominating the fused order.
const rrfK = 60.0

// leg is one search leg's ordered hits plus the weight of its votes.
type leg struct {
	weight float64
	hits   []domain.CandidateDocument
}

// fuseLegs merges the legs with weighted reciprocal rank fusion: each hit
// contributes weight/(k+rank) per leg it appears in, ranks 1-based. Sources
// found by several legs accumulate, which is the point of running hybrid
// retrieval. The fused score replaces the leg-local scores. A non-positive
// k falls back to the standard dampening constant.
func fuseLegs(legs []leg, limit int, k float64) []domain.CandidateDocument {
	if k <= 0 {
		k = rrfK
	}

	type fused struct {
		doc   domain.CandidateDocument
		score float64
	}

	index := make(map[string]*fused)
	order := make([]string, 0)

	for _, l := range legs {
		if l.weight <= 0 {
			continue
		}
		for rank, hit := range l.hits {
			f, ok := index[hit.SourceID]
			if !ok {
				f = &fused{doc: hit}
				index[hit.SourceID] = f
				order = append(order, hit.SourceID)
			}
			f.score += l.weight / (k + float64(rank+1))
		}
	}

	out := make([]domain.CandidateDocument, 0, len(index))
	for _, id := range order {
		f := index[id]
		f.doc.Score = f.score
		out = append(out, f.doc)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
