package search

import (
	"unicode/utf8"

	"github.com/crucial707/audit-search/internal/repo"
)

// DefaultMinTermLength is the shortest term the similarity engine accepts.
const DefaultMinTermLength = 3

const msgTooShort = "Please enter at least %d characters to search."

// SimilarityEngine ranks entries by trigram similarity to a free-text term.
// Candidates are entries whose object_repr, changes, or actor first name, last
// name or login contain the term; they are ordered by object_repr similarity,
// then changes similarity, both descending.
type SimilarityEngine struct {
	MinLength int
}

// MinTermLength is the shortest accepted term, DefaultMinTermLength when unset.
func (e *SimilarityEngine) MinTermLength() int {
	if e.MinLength > 0 {
		return e.MinLength
	}
	return DefaultMinTermLength
}

// Search returns ErrTermTooShort for terms under the minimum length; the
// caller decides whether that ends the search.
func (e *SimilarityEngine) Search(term string, base repo.Query) (Result, error) {
	if utf8.RuneCountInString(term) < e.MinTermLength() {
		return Result{}, ErrTermTooShort
	}
	// UNION in the candidate lookup already removes duplicates.
	return Result{Query: base.Similar(term), Strategy: StrategySimilarity}, nil
}
