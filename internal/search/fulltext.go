package search

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/crucial707/audit-search/internal/metrics"
	"github.com/crucial707/audit-search/internal/repo"
)

// FullTextCap is the most ids fetched from the full-text backend for one search.
const FullTextCap = 10000

const msgTruncated = "Search returned %s results, showing first %s. Please refine your search for better results."

// WeightedField is an indexed field and its relevance boost.
type WeightedField struct {
	Name  string
	Boost float64
}

// DefaultFullTextFields are the indexed audit entry fields. object_repr weighs
// double.
var DefaultFullTextFields = []WeightedField{
	{Name: "object_repr", Boost: 2},
	{Name: "changes_searchable", Boost: 1},
	{Name: "actor_email", Boost: 1},
	{Name: "actor_first_name", Boost: 1},
	{Name: "actor_last_name", Boost: 1},
	{Name: "actor_username", Boost: 1},
}

// FullTextQuery is a ranked search request to the backend.
type FullTextQuery struct {
	Term       string
	Fields     []WeightedField
	Fuzzy      bool
	RequireAll bool
	Size       int
}

// FullTextHit is one matching audit entry id with its relevance score.
type FullTextHit struct {
	ID    int64
	Score float64
}

// FullTextHits are the ranked matches plus the total number of matches, which
// may exceed len(Hits).
type FullTextHits struct {
	Hits  []FullTextHit
	Total int
}

// FullTextBackend is an external document search service.
type FullTextBackend interface {
	Search(ctx context.Context, q FullTextQuery) (FullTextHits, error)
}

// FullTextStrategy adapts a FullTextBackend to the dispatcher.
type FullTextStrategy struct {
	Backend FullTextBackend
	// Timeout bounds one backend call; zero leaves it to the backend client.
	Timeout time.Duration
}

// Search queries the backend and maps hits back to audit entries. The backend
// relevance order is not kept: the result is ordered newest first. Any backend
// failure is logged and reported as ErrBackendUnavailable.
func (f *FullTextStrategy) Search(ctx context.Context, term string, base repo.Query, msg Messenger) (Result, error) {
	if f == nil || f.Backend == nil {
		return Result{}, ErrBackendUnavailable
	}
	if f.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.Timeout)
		defer cancel()
	}

	hits, err := f.Backend.Search(ctx, FullTextQuery{
		Term:       term,
		Fields:     DefaultFullTextFields,
		Fuzzy:      true,
		RequireAll: true,
		Size:       FullTextCap,
	})
	if err != nil {
		metrics.IncFullTextFailures()
		log.Warn().Err(err).Msg("full-text search failed")
		return Result{}, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	if hits.Total > FullTextCap {
		msg.Message(LevelWarning, fmt.Sprintf(msgTruncated, groupThousands(hits.Total), groupThousands(FullTextCap)))
	}

	ids := make([]int64, 0, len(hits.Hits))
	for _, h := range hits.Hits {
		ids = append(ids, h.ID)
	}
	return Result{Query: base.ForIDs(ids), Strategy: StrategyFullText}, nil
}

var countPrinter = message.NewPrinter(language.English)

// groupThousands formats n with comma separators: 12345 -> "12,345".
func groupThousands(n int) string {
	return countPrinter.Sprintf("%d", n)
}
