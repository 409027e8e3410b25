package graph

import (
	"strings"

	"github.com/knoweave/knoweave/pkg/common"
)

// MergeEntities collapses duplicate candidates from multiple strategies.
// Candidates are grouped by (lowercased text, type); the highest-confidence
// candidate survives per group. Groups fed by more than one strategy get a
// confidence boost and are relabeled as hybrid.
func MergeEntities(candidates []common.EntityCandidate) []common.EntityCandidate {
	type groupKey struct {
		Text string
		Type common.NodeType
	}

	order := make([]groupKey, 0, len(candidates))
	groups := make(map[groupKey][]common.EntityCandidate)
	for _, cand := range candidates {
		key := groupKey{Text: strings.ToLower(cand.Text), Type: cand.Type}
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], cand)
	}

	merged := make([]common.EntityCandidate, 0, len(order))
	for _, key := range order {
		group := groups[key]
		best := group[0]
		strategies := map[string]struct{}{group[0].Strategy: {}}
		for _, cand := range group[1:] {
			strategies[cand.Strategy] = struct{}{}
			if cand.Confidence > best.Confidence {
				best = cand
			}
		}
		if len(strategies) > 1 {
			best.Confidence = best.Confidence + hybridBoost
			if best.Confidence > maxConfidence {
				best.Confidence = maxConfidence
			}
			best.Strategy = string(StrategyHybrid)
		}
		merged = append(merged, best)
	}
	return merged
}

// dedupeExact removes literal duplicates, keeping the first occurrence of
// each (lowercased text, type, start) triple.
func dedupeExact(candidates []common.EntityCandidate) []common.EntityCandidate {
	type exactKey struct {
		Text  string
		Type  common.NodeType
		Start int
	}
	seen := make(map[exactKey]struct{}, len(candidates))
	out := candidates[:0]
	for _, cand := range candidates {
		key := exactKey{Text: strings.ToLower(cand.Text), Type: cand.Type, Start: cand.Start}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, cand)
	}
	return out
}

// DedupeRelations collapses duplicate relation candidates, treating the
// endpoint pair as unordered: (A,B,t) and (B,A,t) are the same relation.
// The first candidate wins, so trigger-based relations take priority over
// co-occurrence ones when both are present.
func DedupeRelations(relations []common.RelationCandidate) []common.RelationCandidate {
	// Identity is the lowercased endpoint texts plus the relation type;
	// the endpoints' entity types do not participate.
	type relKey struct {
		A, B string
		Type common.RelationType
	}

	seen := make(map[relKey]struct{}, len(relations))
	out := relations[:0]
	for _, rel := range relations {
		a := strings.ToLower(rel.Source.Text)
		b := strings.ToLower(rel.Target.Text)
		if b < a {
			a, b = b, a
		}
		key := relKey{A: a, B: b, Type: rel.Type}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, rel)
	}
	return out
}
