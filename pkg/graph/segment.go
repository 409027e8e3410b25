package graph

import (
	"unicode"
)

// posClass tags a token with a coarse part-of-speech class. The single-letter
// codes follow the convention of common Chinese segmenters so the mapping
// tables read familiarly.
type posClass string

const (
	posPersonName posClass = "nr"
	posPlaceName  posClass = "ns"
	posOrgName    posClass = "nt"
	posProperNoun posClass = "nz"
	posNumeral    posClass = "m"
	posTimeWord   posClass = "t"
	posForeign    posClass = "eng"
	posNoun       posClass = "n"
	posVerb       posClass = "v"
	posFunction   posClass = "u"
	posPunct      posClass = "w"
)

// droppedClasses are never considered entity material, matching the usual
// segmenter stopword classes (punctuation, particles, conjunctions,
// prepositions).
var droppedClasses = map[posClass]struct{}{
	posPunct:    {},
	posFunction: {},
}

type token struct {
	Text  string
	Class posClass
	Start int // rune offset
	End   int
}

// maxLexiconWord bounds the longest-match scan over Han runs.
const maxLexiconWord = 4

// segmentText splits text into classified tokens. Latin runs become foreign
// words, digit runs numerals, and Han runs are segmented by longest match
// against the lexicon; Han spans between lexicon hits fall back to plain
// noun tokens. Offsets are in runes.
func segmentText(text string, lexicon map[string]posClass) []token {
	runes := []rune(text)
	var tokens []token

	i := 0
	for i < len(runes) {
		r := runes[i]
		switch {
		case unicode.Is(unicode.Han, r):
			j := i
			for j < len(runes) && unicode.Is(unicode.Han, runes[j]) {
				j++
			}
			tokens = append(tokens, segmentHanRun(runes, i, j, lexicon)...)
			i = j
		case unicode.IsLetter(r):
			j := i
			for j < len(runes) && (unicode.IsLetter(runes[j]) || unicode.IsDigit(runes[j])) && !unicode.Is(unicode.Han, runes[j]) {
				j++
			}
			tokens = append(tokens, token{Text: string(runes[i:j]), Class: posForeign, Start: i, End: j})
			i = j
		case unicode.IsDigit(r):
			j := i
			for j < len(runes) && (unicode.IsDigit(runes[j]) || runes[j] == '.' || runes[j] == ',') {
				j++
			}
			cls := posNumeral
			// A year/date continuation makes the numeral a time word.
			if j < len(runes) && (runes[j] == '年' || runes[j] == '月' || runes[j] == '日' || runes[j] == '-') {
				cls = posTimeWord
			}
			tokens = append(tokens, token{Text: string(runes[i:j]), Class: cls, Start: i, End: j})
			i = j
		case unicode.IsSpace(r):
			i++
		default:
			tokens = append(tokens, token{Text: string(r), Class: posPunct, Start: i, End: i + 1})
			i++
		}
	}
	return tokens
}

// segmentHanRun walks runes[start:end) taking the longest lexicon word at
// each position. Runes not covered by any lexicon word accumulate into
// plain noun tokens.
func segmentHanRun(runes []rune, start, end int, lexicon map[string]posClass) []token {
	var tokens []token
	plainStart := -1

	flushPlain := func(upTo int) {
		if plainStart >= 0 && upTo > plainStart {
			tokens = append(tokens, token{
				Text:  string(runes[plainStart:upTo]),
				Class: posNoun,
				Start: plainStart,
				End:   upTo,
			})
		}
		plainStart = -1
	}

	i := start
	for i < end {
		matched := 0
		var matchedClass posClass
		limit := maxLexiconWord
		if end-i < limit {
			limit = end - i
		}
		for l := limit; l >= 1; l-- {
			if cls, ok := lexicon[string(runes[i:i+l])]; ok {
				matched = l
				matchedClass = cls
				break
			}
		}
		if matched > 0 {
			flushPlain(i)
			tokens = append(tokens, token{
				Text:  string(runes[i : i+matched]),
				Class: matchedClass,
				Start: i,
				End:   i + matched,
			})
			i += matched
			continue
		}
		if plainStart < 0 {
			plainStart = i
		}
		i++
	}
	flushPlain(end)
	return tokens
}

// defaultLexicon seeds the segmenter with common construction and project
// vocabulary. Verbs and function words are listed so they segment cleanly
// and get filtered, not so they become entities.
func defaultLexicon() map[string]posClass {
	return map[string]posClass{
		// materials and domain nouns
		"混凝土": posNoun, "水泥": posNoun, "钢筋": posNoun, "砂浆": posNoun,
		"钢材": posNoun, "木材": posNoun, "材料": posNoun, "设备": posNoun,
		"项目": posNoun, "工程": posNoun, "任务": posNoun, "成本": posNoun,
		"费用": posNoun, "预算": posNoun, "报价": posNoun, "质量": posNoun,
		"标准": posNoun, "规范": posNoun, "图纸": posNoun, "合同": posNoun,

		// place names
		"北京": posPlaceName, "上海": posPlaceName, "广州": posPlaceName,
		"深圳": posPlaceName, "杭州": posPlaceName, "南京": posPlaceName,

		// organization words
		"公司": posOrgName, "集团": posOrgName, "研究院": posOrgName,
		"设计院": posOrgName, "事务所": posOrgName,

		// time words
		"今天": posTimeWord, "明天": posTimeWord, "昨天": posTimeWord,
		"上午": posTimeWord, "下午": posTimeWord, "本月": posTimeWord,

		// verbs, segmented then filtered by the type mapping
		"使用": posVerb, "采用": posVerb, "应用": posVerb, "包含": posVerb,
		"位于": posVerb, "建设": posVerb, "生产": posVerb, "需要": posVerb,
		"管理": posVerb, "负责": posVerb, "实施": posVerb, "连接": posVerb,

		// function words
		"的": posFunction, "了": posFunction, "在": posFunction, "是": posFunction,
		"和": posFunction, "与": posFunction, "或": posFunction, "及": posFunction,
		"等": posFunction, "对": posFunction, "从": posFunction, "把": posFunction,
		"被": posFunction, "并": posFunction, "为": posFunction, "将": posFunction,
	}
}
