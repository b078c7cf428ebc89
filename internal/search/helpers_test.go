package search

import (
	"context"
	"sync/atomic"

	"github.com/crucial707/audit-search/internal/registry"
	"github.com/crucial707/audit-search/internal/repo"
)

var principal = registry.TypeHandle{AppLabel: "auth", Model: "User"}

type fakeTypes struct {
	types  map[string]registry.TypeHandle
	ids    map[registry.TypeHandle]int
	idErr  error
	lookup int
}

func newFakeTypes() *fakeTypes {
	person := registry.TypeHandle{AppLabel: "api", Model: "Person"}
	return &fakeTypes{
		types: map[string]registry.TypeHandle{"Person": person},
		ids:   map[registry.TypeHandle]int{person: 2, principal: 1},
	}
}

func (f *fakeTypes) Lookup(name string) (registry.TypeHandle, bool) {
	f.lookup++
	h, ok := f.types[name]
	return h, ok
}

func (f *fakeTypes) Principal() registry.TypeHandle { return principal }

func (f *fakeTypes) Identity(_ context.Context, h registry.TypeHandle) (int, error) {
	if f.idErr != nil {
		return 0, f.idErr
	}
	id, ok := f.ids[h]
	if !ok {
		return 0, repo.ErrContentTypeNotFound
	}
	return id, nil
}

type fakeBackend struct {
	hits  FullTextHits
	err   error
	calls atomic.Int32
	last  FullTextQuery
	block bool
}

func (f *fakeBackend) Search(ctx context.Context, q FullTextQuery) (FullTextHits, error) {
	f.calls.Add(1)
	f.last = q
	if f.block {
		<-ctx.Done()
		return FullTextHits{}, ctx.Err()
	}
	if f.err != nil {
		return FullTextHits{}, f.err
	}
	return f.hits, nil
}
