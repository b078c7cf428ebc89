package search

import (
	"regexp"
	"strconv"
)

// structuredPattern matches "ModelName:ID": an identifier, a colon and a
// positive integer without leading zeros.
var structuredPattern = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_]*):([1-9][0-9]*)$`)

// StructuredQuery is a term addressing one audited entity directly.
type StructuredQuery struct {
	TypeName string
	RawID    string
}

// ID parses the id part. It only fails for ids that overflow int64.
func (s StructuredQuery) ID() (int64, error) {
	return strconv.ParseInt(s.RawID, 10, 64)
}

func (s StructuredQuery) String() string { return s.TypeName + ":" + s.RawID }

// Classify reports whether term is a structured query and splits it.
func Classify(term string) (StructuredQuery, bool) {
	m := structuredPattern.FindStringSubmatch(term)
	if m == nil {
		return StructuredQuery{}, false
	}
	return StructuredQuery{TypeName: m[1], RawID: m[2]}, true
}

// FormatStructured builds the structured query addressing (typeName, id).
func FormatStructured(typeName string, id int64) string {
	return typeName + ":" + strconv.FormatInt(id, 10)
}
