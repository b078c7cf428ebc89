package search

import "github.com/crucial707/audit-search/internal/repo"

// Strategy names reported on a Result.
const (
	StrategyAll        = "all"
	StrategyStructured = "structured"
	StrategyFullText   = "fulltext"
	StrategySimilarity = "similarity"
	StrategyNone       = "none"
)

// Result is the outcome of one search. Query is lazy: callers page through it
// with repo.AuditRepo.Find and Count.
type Result struct {
	Query repo.Query
	// Distinct reports whether rows may repeat and need de-duplicating downstream.
	Distinct bool
	Strategy string
	// Err is the reason an explicitly empty result was returned, if any.
	Err error
}

func rejected(base repo.Query, strategy string, reason error) Result {
	return Result{Query: base.None(), Strategy: strategy, Err: reason}
}
