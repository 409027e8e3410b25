package graph

import (
	"fmt"
	"regexp"
	"sort"
	"unicode/utf8"

	"github.com/knoweave/knoweave/pkg/common"
)

// ExtractEntities finds entity candidates in text using the given strategy.
// Candidate offsets are rune positions. Results are ordered by span start,
// with exact duplicates (same text, type, and start) collapsed.
func (c *Config) ExtractEntities(text string, strategy Strategy) ([]common.EntityCandidate, error) {
	var candidates []common.EntityCandidate
	switch strategy {
	case StrategyRule:
		candidates = c.extractByRules(text)
	case StrategySegment:
		candidates = c.extractBySegmentation(text)
	case StrategyHybrid:
		rule := c.extractByRules(text)
		segment := c.extractBySegmentation(text)
		candidates = MergeEntities(append(rule, segment...))
	default:
		return nil, fmt.Errorf("unknown extraction strategy %q", strategy)
	}

	candidates = dedupeExact(candidates)
	sortCandidates(candidates)
	return candidates, nil
}

func (c *Config) extractByRules(text string) []common.EntityCandidate {
	var candidates []common.EntityCandidate
	for _, entityType := range sortedNodeTypes(c.entityPatterns) {
		pattern := c.entityPatterns[entityType]
		for _, span := range pattern.FindAllStringIndex(text, -1) {
			start := utf8.RuneCountInString(text[:span[0]])
			match := text[span[0]:span[1]]
			candidates = append(candidates, common.EntityCandidate{
				Text:       match,
				Type:       entityType,
				Start:      start,
				End:        start + utf8.RuneCountInString(match),
				Confidence: ruleConfidence,
				Strategy:   string(StrategyRule),
			})
		}
	}
	return candidates
}

func (c *Config) extractBySegmentation(text string) []common.EntityCandidate {
	var candidates []common.EntityCandidate
	for _, tok := range segmentText(text, c.lexicon) {
		if tok.End-tok.Start < 2 {
			continue
		}
		if _, dropped := droppedClasses[tok.Class]; dropped {
			continue
		}
		entityType, ok := c.posEntityTypes[tok.Class]
		if !ok {
			continue
		}
		candidates = append(candidates, common.EntityCandidate{
			Text:       tok.Text,
			Type:       entityType,
			Start:      tok.Start,
			End:        tok.End,
			Confidence: segmentConfidence,
			Strategy:   string(StrategySegment),
		})
	}
	return candidates
}

// ExtractRelations finds relation candidates linking the given entities,
// combining trigger-phrase matches with sentence co-occurrence. Symmetric
// duplicates are collapsed, keeping the earlier (higher-priority) candidate.
func (c *Config) ExtractRelations(text string, entities []common.EntityCandidate) []common.RelationCandidate {
	relations := c.extractByTriggers(text, entities)
	relations = append(relations, c.extractByCooccurrence(text, entities)...)
	return DedupeRelations(relations)
}

// extractByTriggers scans for relation trigger phrases and links the first
// two entities whose spans fall inside a symmetric character window around
// the trigger. The earlier span becomes the source.
func (c *Config) extractByTriggers(text string, entities []common.EntityCandidate) []common.RelationCandidate {
	runes := []rune(text)
	var relations []common.RelationCandidate

	for _, relType := range sortedRelationTypes(c.relationTriggers) {
		pattern := c.relationTriggers[relType]
		for _, span := range pattern.FindAllStringIndex(text, -1) {
			matchStart := utf8.RuneCountInString(text[:span[0]])
			matchEnd := matchStart + utf8.RuneCountInString(text[span[0]:span[1]])

			windowStart := matchStart - relationWindow
			if windowStart < 0 {
				windowStart = 0
			}
			windowEnd := matchEnd + relationWindow
			if windowEnd > len(runes) {
				windowEnd = len(runes)
			}

			var related []common.EntityCandidate
			for _, e := range entities {
				if e.Start >= windowStart && e.Start <= windowEnd {
					related = append(related, e)
				}
			}
			if len(related) < 2 {
				continue
			}

			relations = append(relations, common.RelationCandidate{
				Source:     related[0],
				Target:     related[1],
				Type:       relType,
				Confidence: triggerConfidence,
				Context:    string(runes[windowStart:windowEnd]),
				Strategy:   string(StrategyRule),
			})
		}
	}
	return relations
}

// extractByCooccurrence pairs up entities appearing in the same sentence.
// The relation type comes from the type-pair table; unknown pairs default
// to related_to.
func (c *Config) extractByCooccurrence(text string, entities []common.EntityCandidate) []common.RelationCandidate {
	var relations []common.RelationCandidate
	for _, sentence := range splitSentences(text) {
		var inSentence []common.EntityCandidate
		for _, e := range entities {
			if e.Start >= sentence.Start && e.End <= sentence.End {
				inSentence = append(inSentence, e)
			}
		}
		for i := 0; i < len(inSentence); i++ {
			for j := i + 1; j < len(inSentence); j++ {
				source, target := inSentence[i], inSentence[j]
				relType, ok := c.typeRelations[typePair{source.Type, target.Type}]
				if !ok {
					relType = common.RelRelatedTo
				}
				relations = append(relations, common.RelationCandidate{
					Source:     source,
					Target:     target,
					Type:       relType,
					Confidence: cooccurrenceConfidence,
					Context:    sentence.Text,
					Strategy:   "cooccurrence",
				})
			}
		}
	}
	return relations
}

type sentenceSpan struct {
	Text  string
	Start int // rune offset
	End   int
}

// splitSentences cuts text on sentence-terminal punctuation, keeping rune
// offsets so entity spans can be matched against each sentence.
func splitSentences(text string) []sentenceSpan {
	runes := []rune(text)
	var sentences []sentenceSpan
	start := 0
	for i, r := range runes {
		if r == '。' || r == '！' || r == '？' || r == '\n' {
			if i > start {
				sentences = append(sentences, sentenceSpan{
					Text:  string(runes[start:i]),
					Start: start,
					End:   i,
				})
			}
			start = i + 1
		}
	}
	if start < len(runes) {
		sentences = append(sentences, sentenceSpan{
			Text:  string(runes[start:]),
			Start: start,
			End:   len(runes),
		})
	}
	return sentences
}

func sortedNodeTypes(m map[common.NodeType]*regexp.Regexp) []common.NodeType {
	types := make([]common.NodeType, 0, len(m))
	for t := range m {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

func sortedRelationTypes(m map[common.RelationType]*regexp.Regexp) []common.RelationType {
	types := make([]common.RelationType, 0, len(m))
	for t := range m {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

func sortCandidates(candidates []common.EntityCandidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Start != candidates[j].Start {
			return candidates[i].Start < candidates[j].Start
		}
		if candidates[i].End != candidates[j].End {
			return candidates[i].End < candidates[j].End
		}
		return candidates[i].Type < candidates[j].Type
	})
}
