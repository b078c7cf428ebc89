package repo

import "github.com/crucial707/audit-search/internal/models"

type queryMode int

const (
	modeAll queryMode = iota
	modeNone
	modeObject
	modeIDs
	modeSimilar
)

// Query describes a set of audit log rows without loading it. Search strategies
// narrow a base Query; AuditRepo evaluates it with Find and Count, so only the
// requested page is ever read.
type Query struct {
	mode queryMode

	action        *models.Action
	contentTypeID int
	cid           string

	objectTypeID int
	objectID     int64
	ids          []int64
	term         string
}

// AllEntries is the unfiltered audit log.
func AllEntries() Query {
	return Query{mode: modeAll}
}

// WithAction keeps rows of one action kind.
func (q Query) WithAction(a models.Action) Query {
	q.action = &a
	return q
}

// WithContentType keeps rows about one entity type.
func (q Query) WithContentType(id int) Query {
	q.contentTypeID = id
	return q
}

// WithCID keeps rows sharing one correlation id.
func (q Query) WithCID(cid string) Query {
	q.cid = cid
	return q
}

// None is an explicitly empty result. It never reaches the database.
func (q Query) None() Query {
	q.mode = modeNone
	return q
}

// ForObject narrows to the rows about one entity, using the (content_type_id, object_id) index.
func (q Query) ForObject(contentTypeID int, objectID int64) Query {
	q.mode = modeObject
	q.objectTypeID = contentTypeID
	q.objectID = objectID
	return q
}

// ForIDs narrows to the given row ids, newest first. An empty id set is None.
func (q Query) ForIDs(ids []int64) Query {
	if len(ids) == 0 {
		return q.None()
	}
	q.mode = modeIDs
	q.ids = append([]int64(nil), ids...)
	return q
}

// Similar narrows to rows whose record or actor fields contain term, ranked by
// trigram similarity of object_repr and then of changes.
func (q Query) Similar(term string) Query {
	q.mode = modeSimilar
	q.term = term
	return q
}

// IsNone reports whether the query is explicitly empty.
func (q Query) IsNone() bool { return q.mode == modeNone }

// Scored reports whether rows carry similarity scores.
func (q Query) Scored() bool { return q.mode == modeSimilar }

// Term is the similarity search term, if any.
func (q Query) Term() string { return q.term }

// IDs returns the id set of a ForIDs query.
func (q Query) IDs() []int64 { return q.ids }

// Object returns the (content type, object id) pair of a ForObject query.
func (q Query) Object() (int, int64, bool) {
	return q.objectTypeID, q.objectID, q.mode == modeObject
}

func (m queryMode) String() string {
	switch m {
	case modeNone:
		return "none"
	case modeObject:
		return "object"
	case modeIDs:
		return "ids"
	case modeSimilar:
		return "similar"
	default:
		return "all"
	}
}

// Kind names the narrowing applied, for logs and CLI output.
func (q Query) Kind() string { return q.mode.String() }
