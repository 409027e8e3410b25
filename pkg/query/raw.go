package query

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/knoweave/knoweave/pkg/store"
)

// Clauses that mutate the graph or escape into procedures. The mirror is
// derived state; raw queries must stay read-only so the relational store
// remains the single source of truth.
var (
	writeClausePattern = regexp.MustCompile(`(?i)\b(create|merge|delete|detach|set|remove|drop|foreach|load\s+csv)\b`)
	procCallPattern    = regexp.MustCompile(`(?i)\bcall\s`)
	ownerParamPattern  = regexp.MustCompile(`\$owner_id\b`)
)

// vetRawQuery rejects queries that mutate data, smuggle in their own
// owner_id value, or fail to scope by $owner_id at all. Scoping happens via
// parameter binding only; the query text is never rewritten.
func vetRawQuery(query string, params map[string]any) error {
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return fmt.Errorf("%w: empty query", store.ErrQuerySyntax)
	}

	if m := writeClausePattern.FindString(trimmed); m != "" {
		return fmt.Errorf("%w: clause %q is not allowed in raw queries", store.ErrQuerySyntax, strings.ToUpper(m))
	}
	if procCallPattern.MatchString(trimmed) {
		return fmt.Errorf("%w: procedure calls are not allowed in raw queries", store.ErrQuerySyntax)
	}

	if !ownerParamPattern.MatchString(trimmed) {
		return fmt.Errorf("%w: query must scope results with $owner_id", store.ErrQuerySyntax)
	}

	if _, ok := params["owner_id"]; ok {
		return fmt.Errorf("%w: owner_id parameter is reserved", store.ErrQuerySyntax)
	}

	return nil
}
