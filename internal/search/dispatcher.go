package search

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/crucial707/audit-search/internal/metrics"
	"github.com/crucial707/audit-search/internal/repo"
)

// DefaultOrder tries the full-text backend before trigram similarity.
var DefaultOrder = []string{StrategyFullText, StrategySimilarity}

const msgNoStrategy = "Search is not available. Please use structured search (ModelName:ID) or configure full-text search."

// Dispatcher routes a search term to exactly one strategy:
//
//	empty term        -> base set
//	"ModelName:ID"    -> structured resolver, always terminal
//	free text         -> free-text strategies in Order; the first applicable one wins
//	nothing left      -> explicit empty result with an error message
//
// It never falls back to an unindexed scan of the audit log.
type Dispatcher struct {
	structured *StructuredResolver
	fullText   *FullTextStrategy
	similarity *SimilarityEngine
	order      []string
}

// NewDispatcher wires the strategies. fullText and similarity may be nil, which
// removes them from the order.
func NewDispatcher(structured *StructuredResolver, fullText *FullTextStrategy, similarity *SimilarityEngine, order []string) (*Dispatcher, error) {
	if structured == nil {
		return nil, errors.New("search: structured resolver is required")
	}
	if len(order) == 0 {
		order = DefaultOrder
	}
	for _, name := range order {
		if name != StrategyFullText && name != StrategySimilarity {
			return nil, fmt.Errorf("search: unknown strategy %q", name)
		}
	}
	return &Dispatcher{
		structured: structured,
		fullText:   fullText,
		similarity: similarity,
		order:      append([]string(nil), order...),
	}, nil
}

// Search implements the host search hook: it returns the narrowed collection and
// whether it needs de-duplicating. User-facing diagnostics go to msg.
func (d *Dispatcher) Search(ctx context.Context, term string, base repo.Query, msg Messenger) (Result, error) {
	start := time.Now()
	res, err := d.dispatch(ctx, term, base, msg)
	metrics.RecordSearch(res.Strategy, outcome(res, err), time.Since(start).Seconds())
	return res, err
}

func (d *Dispatcher) dispatch(ctx context.Context, term string, base repo.Query, msg Messenger) (Result, error) {
	if term == "" {
		return Result{Query: base, Strategy: StrategyAll}, nil
	}

	if sq, ok := Classify(term); ok {
		return d.structured.Resolve(ctx, sq, base, msg)
	}

	tooShort := false
	for _, name := range d.order {
		switch name {
		case StrategyFullText:
			if d.fullText == nil {
				continue
			}
			res, err := d.fullText.Search(ctx, term, base, msg)
			if errors.Is(err, ErrBackendUnavailable) {
				continue
			}
			return res, err
		case StrategySimilarity:
			if d.similarity == nil {
				continue
			}
			res, err := d.similarity.Search(term, base)
			if errors.Is(err, ErrTermTooShort) {
				tooShort = true
				continue
			}
			return res, err
		}
	}

	if tooShort {
		msg.Message(LevelWarning, fmt.Sprintf(msgTooShort, d.similarity.MinTermLength()))
		return rejected(base, StrategyNone, ErrTermTooShort), nil
	}
	msg.Message(LevelError, msgNoStrategy)
	return rejected(base, StrategyNone, ErrNoStrategyApplicable), nil
}

func outcome(res Result, err error) string {
	switch {
	case err != nil:
		return "error"
	case errors.Is(res.Err, ErrUnknownType), errors.Is(res.Err, ErrMalformedStructured):
		return "invalid"
	case errors.Is(res.Err, ErrTermTooShort):
		return "too_short"
	case errors.Is(res.Err, ErrNoStrategyApplicable):
		return "unavailable"
	default:
		return "ok"
	}
}
