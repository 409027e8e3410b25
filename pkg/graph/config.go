package graph

import (
	"regexp"

	"github.com/knoweave/knoweave/pkg/common"
)

// Strategy selects how entities are extracted from a chunk.
type Strategy string

const (
	// StrategyRule matches the fixed type→pattern table.
	StrategyRule Strategy = "rule"
	// StrategySegment tokenizes the text and maps part-of-speech classes
	// to entity types.
	StrategySegment Strategy = "segment"
	// StrategyHybrid runs both and boosts entities found by both.
	StrategyHybrid Strategy = "hybrid"
)

// Confidence levels per extraction strategy. Agreement between strategies
// boosts by hybridBoost, capped at maxConfidence.
const (
	ruleConfidence         = 0.8
	segmentConfidence      = 0.6
	triggerConfidence      = 0.7
	cooccurrenceConfidence = 0.5
	hybridBoost            = 0.1
	maxConfidence          = 0.95
)

// relationWindow is the number of characters taken on each side of a
// relation trigger phrase as context.
const relationWindow = 50

// typePair keys the co-occurrence relation inference table.
type typePair struct {
	Source common.NodeType
	Target common.NodeType
}

// Config carries the pattern and lookup tables driving extraction. Build it
// once and share it; it is never mutated after construction.
type Config struct {
	entityPatterns   map[common.NodeType]*regexp.Regexp
	relationTriggers map[common.RelationType]*regexp.Regexp
	typeRelations    map[typePair]common.RelationType
	posEntityTypes   map[posClass]common.NodeType
	lexicon          map[string]posClass
}

// DefaultConfig returns the stock extraction tables, tuned for mixed
// Chinese/Latin engineering and project text.
func DefaultConfig() *Config {
	return &Config{
		entityPatterns: map[common.NodeType]*regexp.Regexp{
			common.NodeOrganization: regexp.MustCompile(`[\x{4e00}-\x{9fa5}A-Za-z0-9]+(?:公司|企业|集团|机构|单位|部门)`),
			common.NodePerson:       regexp.MustCompile(`[\x{4e00}-\x{9fa5}]{2,4}(?:先生|女士|总经理|总监|工程师|专家)`),
			common.NodeLocation:     regexp.MustCompile(`[\x{4e00}-\x{9fa5}]+(?:省|市|县|区|路|号)`),
			common.NodeTechnology:   regexp.MustCompile(`(?:Python|Java|Golang|React|Vue|Angular|Spring|Django|Flask|Kubernetes|Docker)`),
			common.NodeProject:      regexp.MustCompile(`[\x{4e00}-\x{9fa5}A-Za-z0-9]+?(?:项目|工程|任务)`),
			common.NodeMaterial:     regexp.MustCompile(`[A-Za-z0-9]*(?:混凝土|水泥|钢筋|砂浆|钢材|木材)|[\x{4e00}-\x{9fa5}A-Za-z0-9]+(?:材料|设备|工具)`),
			common.NodeCost:         regexp.MustCompile(`[0-9][0-9,，.]*(?:万元|千元|亿元|元)`),
			common.NodeTime:         regexp.MustCompile(`[0-9]{4}年[0-9]{1,2}月[0-9]{1,2}日|[0-9]{4}-[0-9]{1,2}-[0-9]{1,2}`),
			common.NodeStandard:     regexp.MustCompile(`(?:GB|ISO|ASTM|JIS|DIN)(?:[/-][A-Z0-9]+)+`),
			common.NodeMetric:       regexp.MustCompile(`[0-9][0-9,，.]*(?:mm|cm|km|m2|m3|m|kg|t|kWh|MPa|℃)`),
		},
		relationTriggers: map[common.RelationType]*regexp.Regexp{
			common.RelBelongsTo:    regexp.MustCompile(`属于|隶属|归属`),
			common.RelContains:     regexp.MustCompile(`包含|含有|包括`),
			common.RelLocatedIn:    regexp.MustCompile(`位于|坐落于`),
			common.RelCostOf:       regexp.MustCompile(`成本为|费用是|报价`),
			common.RelImplements:   regexp.MustCompile(`实施|执行|建设`),
			common.RelUses:         regexp.MustCompile(`使用|采用|应用`),
			common.RelProduces:     regexp.MustCompile(`生产|制造|产出`),
			common.RelRequires:     regexp.MustCompile(`需要|要求|依赖`),
			common.RelConnects:     regexp.MustCompile(`连接|关联|联系`),
			common.RelManages:      regexp.MustCompile(`管理|负责|主管`),
			common.RelCollaborates: regexp.MustCompile(`合作|协作|配合`),
			common.RelBefore:       regexp.MustCompile(`之前|早于|先于`),
			common.RelAfter:        regexp.MustCompile(`之后|晚于|后于`),
		},
		typeRelations: map[typePair]common.RelationType{
			{common.NodePerson, common.NodeOrganization}:       common.RelWorksFor,
			{common.NodeOrganization, common.NodePerson}:       common.RelEmploys,
			{common.NodePerson, common.NodeLocation}:           common.RelLocatedIn,
			{common.NodeOrganization, common.NodeLocation}:     common.RelLocatedIn,
			{common.NodeProject, common.NodeOrganization}:      common.RelOwnedBy,
			{common.NodeOrganization, common.NodeProject}:      common.RelOwns,
			{common.NodeMaterial, common.NodeProject}:          common.RelUsedIn,
			{common.NodeProject, common.NodeMaterial}:          common.RelUses,
			{common.NodeTechnology, common.NodeProject}:        common.RelImplementedIn,
			{common.NodeProject, common.NodeTechnology}:        common.RelImplements,
			{common.NodeCost, common.NodeProject}:              common.RelCostOf,
			{common.NodeProject, common.NodeCost}:              common.RelHasCost,
		},
		posEntityTypes: map[posClass]common.NodeType{
			posPersonName: common.NodePerson,
			posPlaceName:  common.NodeLocation,
			posOrgName:    common.NodeOrganization,
			posProperNoun: common.NodeProduct,
			posNumeral:    common.NodeMetric,
			posTimeWord:   common.NodeTime,
			posForeign:    common.NodeTechnology,
			posNoun:       common.NodeGeneric,
		},
		lexicon: defaultLexicon(),
	}
}
