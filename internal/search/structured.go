package search

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/crucial707/audit-search/internal/registry"
	"github.com/crucial707/audit-search/internal/repo"
)

// DefaultUserAliases are the lowercase names that address the principal type
// when no domain type of that name exists.
var DefaultUserAliases = []string{"user", "customuser"}

const (
	msgUnknownType = "Model '%s' does not exist."
	msgMalformed   = "Structured search format must be 'ModelName:id'."
)

// TypeRegistry resolves type names to the ids stored on audit entries.
type TypeRegistry interface {
	Lookup(name string) (registry.TypeHandle, bool)
	Principal() registry.TypeHandle
	Identity(ctx context.Context, h registry.TypeHandle) (int, error)
}

// StructuredResolver answers "ModelName:ID" queries.
type StructuredResolver struct {
	Types       TypeRegistry
	UserAliases []string
}

// ResolveType finds the type named by a structured query: a registered domain
// type first, then the principal type for one of the user aliases.
func (s *StructuredResolver) ResolveType(name string) (registry.TypeHandle, bool) {
	if h, ok := s.Types.Lookup(name); ok {
		return h, true
	}
	aliases := s.UserAliases
	if aliases == nil {
		aliases = DefaultUserAliases
	}
	lower := strings.ToLower(name)
	for _, a := range aliases {
		if a == lower {
			return s.Types.Principal(), true
		}
	}
	return registry.TypeHandle{}, false
}

// Resolve filters base to the entries about the addressed entity. Unknown types
// and unparsable ids give an explicitly empty result with a warning. Only
// infrastructure failures are returned as errors.
func (s *StructuredResolver) Resolve(ctx context.Context, sq StructuredQuery, base repo.Query, msg Messenger) (Result, error) {
	id, err := sq.ID()
	if err != nil {
		msg.Message(LevelWarning, msgMalformed)
		return rejected(base, StrategyStructured, ErrMalformedStructured), nil
	}

	h, ok := s.ResolveType(sq.TypeName)
	if !ok {
		msg.Message(LevelWarning, fmt.Sprintf(msgUnknownType, sq.TypeName))
		return rejected(base, StrategyStructured, ErrUnknownType), nil
	}

	ctID, err := s.Types.Identity(ctx, h)
	if errors.Is(err, repo.ErrContentTypeNotFound) {
		msg.Message(LevelWarning, fmt.Sprintf(msgUnknownType, sq.TypeName))
		return rejected(base, StrategyStructured, ErrUnknownType), nil
	}
	if err != nil {
		return Result{}, fmt.Errorf("resolve %s: %w", sq, err)
	}

	return Result{Query: base.ForObject(ctID, id), Strategy: StrategyStructured}, nil
}
