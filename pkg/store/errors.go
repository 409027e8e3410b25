package store

import "errors"

// Sentinel errors shared by store implementations and the query engine.
// Callers match with errors.Is; wrapped variants carry the detail.
var (
	// ErrNotFound signals a missing document, node, or relation endpoint
	// within the caller's tenant.
	ErrNotFound = errors.New("not found")

	// ErrInvalidRelation signals malformed relation input, e.g. a
	// self-referencing edge.
	ErrInvalidRelation = errors.New("invalid relation")

	// ErrQuerySyntax signals a malformed raw traversal query, either
	// rejected by the engine's vetting or by the graph database itself.
	ErrQuerySyntax = errors.New("query syntax error")
)
