// Package registry resolves entity type names to the content type ids that
// audit entries reference.
package registry

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/crucial707/audit-search/internal/config"
	"github.com/crucial707/audit-search/internal/models"
)

// TypeHandle names an entity type.
type TypeHandle struct {
	AppLabel string
	Model    string
}

func (h TypeHandle) String() string { return h.AppLabel + "." + h.Model }

// ParseTypeHandle parses the "app_label.Model" form produced by String.
func ParseTypeHandle(s string) (TypeHandle, error) {
	app, model, ok := strings.Cut(s, ".")
	if !ok || app == "" || model == "" {
		return TypeHandle{}, fmt.Errorf("registry: type %q: want app_label.Model", s)
	}
	return TypeHandle{AppLabel: app, Model: model}, nil
}

// ContentTypes is the content type table.
type ContentTypes interface {
	ListByApp(ctx context.Context, appLabel string) ([]models.ContentType, error)
	Get(ctx context.Context, appLabel, model string) (*models.ContentType, error)
}

const (
	identityCacheSize = 512
	identityCacheTTL  = 10 * time.Minute
)

// Registry holds the entity types of the domain app plus the principal type.
type Registry struct {
	source    ContentTypes
	appLabel  string
	principal TypeHandle

	mu    sync.RWMutex
	types map[string]TypeHandle

	ids *lru.LRU[TypeHandle, int]
}

// New returns an empty Registry; call Reload to populate it.
func New(source ContentTypes, appLabel string, principal TypeHandle) *Registry {
	return &Registry{
		source:    source,
		appLabel:  appLabel,
		principal: principal,
		types:     make(map[string]TypeHandle),
		ids:       lru.NewLRU[TypeHandle, int](identityCacheSize, nil, identityCacheTTL),
	}
}

// FromConfig builds a registry over the DomainAppLabel types with PrincipalType
// as the principal.
func FromConfig(source ContentTypes, cfg config.Config) (*Registry, error) {
	principal, err := ParseTypeHandle(cfg.PrincipalType)
	if err != nil {
		return nil, err
	}
	return New(source, cfg.DomainAppLabel, principal), nil
}

// Reload replaces the registered types with those currently in the table.
func (r *Registry) Reload(ctx context.Context) error {
	list, err := r.source.ListByApp(ctx, r.appLabel)
	if err != nil {
		return fmt.Errorf("list content types for %q: %w", r.appLabel, err)
	}
	types := make(map[string]TypeHandle, len(list))
	for _, ct := range list {
		h := TypeHandle{AppLabel: ct.AppLabel, Model: ct.Model}
		types[ct.Model] = h
		r.ids.Add(h, ct.ID)
	}

	r.mu.Lock()
	r.types = types
	r.mu.Unlock()
	return nil
}

// Lookup finds a registered type by exact, case-sensitive name.
func (r *Registry) Lookup(name string) (TypeHandle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.types[name]
	return h, ok
}

// Principal is the type of the actors referenced by audit entries.
func (r *Registry) Principal() TypeHandle { return r.principal }

// Names lists the registered type names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.types))
	for n := range r.types {
		names = append(names, n)
	}
	r.mu.RUnlock()
	sort.Strings(names)
	return names
}

// Identity returns the content type id of h.
func (r *Registry) Identity(ctx context.Context, h TypeHandle) (int, error) {
	if id, ok := r.ids.Get(h); ok {
		return id, nil
	}
	ct, err := r.source.Get(ctx, h.AppLabel, h.Model)
	if err != nil {
		return 0, fmt.Errorf("content type %s: %w", h, err)
	}
	r.ids.Add(h, ct.ID)
	return ct.ID, nil
}
