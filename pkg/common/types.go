package common

// NodeType classifies a knowledge node.
type NodeType string

const (
	NodePerson       NodeType = "person"
	NodeOrganization NodeType = "organization"
	NodeLocation     NodeType = "location"
	NodeProject      NodeType = "project"
	NodeTechnology   NodeType = "technology"
	NodeMaterial     NodeType = "material"
	NodeEquipment    NodeType = "equipment"
	NodeCost         NodeType = "cost"
	NodeTime         NodeType = "time"
	NodeStandard     NodeType = "standard"
	NodeMetric       NodeType = "metric"
	NodeProduct      NodeType = "product"
	NodeProcess      NodeType = "process"
	NodeDocument     NodeType = "document"
	NodeRegulation   NodeType = "regulation"
	NodeGeneric      NodeType = "generic"
)

var nodeTypes = map[NodeType]struct{}{
	NodePerson: {}, NodeOrganization: {}, NodeLocation: {}, NodeProject: {},
	NodeTechnology: {}, NodeMaterial: {}, NodeEquipment: {}, NodeCost: {},
	NodeTime: {}, NodeStandard: {}, NodeMetric: {}, NodeProduct: {},
	NodeProcess: {}, NodeDocument: {}, NodeRegulation: {}, NodeGeneric: {},
}

// Valid reports whether t is a known node type.
func (t NodeType) Valid() bool {
	_, ok := nodeTypes[t]
	return ok
}

// RelationType classifies a directed edge between two nodes.
type RelationType string

const (
	RelBelongsTo     RelationType = "belongs_to"
	RelContains      RelationType = "contains"
	RelLocatedIn     RelationType = "located_in"
	RelWorksFor      RelationType = "works_for"
	RelEmploys       RelationType = "employs"
	RelOwns          RelationType = "owns"
	RelOwnedBy       RelationType = "owned_by"
	RelUses          RelationType = "uses"
	RelUsedIn        RelationType = "used_in"
	RelImplements    RelationType = "implements"
	RelImplementedIn RelationType = "implemented_in"
	RelProduces      RelationType = "produces"
	RelProducedBy    RelationType = "produced_by"
	RelRequires      RelationType = "requires"
	RelRequiredBy    RelationType = "required_by"
	RelManages       RelationType = "manages"
	RelManagedBy     RelationType = "managed_by"
	RelCollaborates  RelationType = "collaborates"
	RelConnects      RelationType = "connects"
	RelCostOf        RelationType = "cost_of"
	RelHasCost       RelationType = "has_cost"
	RelBefore        RelationType = "before"
	RelAfter         RelationType = "after"
	RelRelatedTo     RelationType = "related_to"
)

var relationTypes = map[RelationType]struct{}{
	RelBelongsTo: {}, RelContains: {}, RelLocatedIn: {}, RelWorksFor: {},
	RelEmploys: {}, RelOwns: {}, RelOwnedBy: {}, RelUses: {}, RelUsedIn: {},
	RelImplements: {}, RelImplementedIn: {}, RelProduces: {}, RelProducedBy: {},
	RelRequires: {}, RelRequiredBy: {}, RelManages: {}, RelManagedBy: {},
	RelCollaborates: {}, RelConnects: {}, RelCostOf: {}, RelHasCost: {},
	RelBefore: {}, RelAfter: {}, RelRelatedTo: {},
}

// Valid reports whether t is a known relation type.
func (t RelationType) Valid() bool {
	_, ok := relationTypes[t]
	return ok
}
