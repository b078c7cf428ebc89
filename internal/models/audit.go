package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Action is the kind of change an audit entry records.
type Action int

const (
	ActionCreate Action = iota
	ActionUpdate
	ActionDelete
	ActionAccess
)

var actionNames = [...]string{"create", "update", "delete", "access"}

func (a Action) String() string {
	if a < 0 || int(a) >= len(actionNames) {
		return "unknown"
	}
	return actionNames[a]
}

// ParseAction maps "create|update|delete|access" to an Action.
func ParseAction(s string) (Action, bool) {
	for i, n := range actionNames {
		if n == s {
			return Action(i), true
		}
	}
	return 0, false
}

func (a Action) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

func (a *Action) UnmarshalJSON(b []byte) error {
	var name string
	if err := json.Unmarshal(b, &name); err != nil {
		return err
	}
	parsed, ok := ParseAction(name)
	if !ok {
		return fmt.Errorf("unknown action %q", name)
	}
	*a = parsed
	return nil
}

// AuditEntry represents one audit log row. Rows are append-only.
type AuditEntry struct {
	ID            int64           `json:"id"`
	Timestamp     time.Time       `json:"timestamp"`
	ActorID       *int64          `json:"actor_id,omitempty"`
	Actor         *Actor          `json:"actor,omitempty"`
	ObjectRepr    string          `json:"object_repr"`
	Changes       json.RawMessage `json:"changes,omitempty"`
	ContentTypeID int             `json:"content_type_id"`
	ObjectID      int64           `json:"object_id"`
	CID           string          `json:"cid,omitempty"`
	Action        Action          `json:"action"`
	RemoteAddr    string          `json:"remote_addr,omitempty"`

	// Similarity is only set for rows produced by a similarity search.
	Similarity *Similarity `json:"similarity,omitempty"`
}

// Actor is the display part of the principal that performed a change.
type Actor struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Login     string `json:"login"`
}

// Similarity holds the trigram scores of a row against the search term.
type Similarity struct {
	ObjectRepr float64 `json:"object_repr"`
	Changes    float64 `json:"changes"`
}
