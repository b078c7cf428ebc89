package registry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crucial707/audit-search/internal/config"
	"github.com/crucial707/audit-search/internal/models"
	"github.com/crucial707/audit-search/internal/repo"
)

type fakeContentTypes struct {
	byApp   map[string][]models.ContentType
	gets    int
	listErr error
}

func (f *fakeContentTypes) ListByApp(_ context.Context, appLabel string) ([]models.ContentType, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.byApp[appLabel], nil
}

func (f *fakeContentTypes) Get(_ context.Context, appLabel, model string) (*models.ContentType, error) {
	f.gets++
	for _, list := range f.byApp {
		for _, ct := range list {
			if ct.AppLabel == appLabel && ct.Model == model {
				ct := ct
				return &ct, nil
			}
		}
	}
	return nil, repo.ErrContentTypeNotFound
}

func newFake() *fakeContentTypes {
	return &fakeContentTypes{byApp: map[string][]models.ContentType{
		"api":  {{ID: 2, AppLabel: "api", Model: "Person"}, {ID: 3, AppLabel: "api", Model: "Company"}},
		"auth": {{ID: 1, AppLabel: "auth", Model: "User"}},
	}}
}

func TestRegistry_LookupIsCaseSensitive(t *testing.T) {
	reg := New(newFake(), "api", TypeHandle{AppLabel: "auth", Model: "User"})
	require.NoError(t, reg.Reload(context.Background()))

	h, ok := reg.Lookup("Person")
	require.True(t, ok)
	assert.Equal(t, TypeHandle{AppLabel: "api", Model: "Person"}, h)

	_, ok = reg.Lookup("person")
	assert.False(t, ok)
	_, ok = reg.Lookup("User")
	assert.False(t, ok, "principal type is not a domain type")

	assert.Equal(t, []string{"Company", "Person"}, reg.Names())
}

func TestRegistry_IdentityIsCached(t *testing.T) {
	src := newFake()
	reg := New(src, "api", TypeHandle{AppLabel: "auth", Model: "User"})
	require.NoError(t, reg.Reload(context.Background()))

	id, err := reg.Identity(context.Background(), TypeHandle{AppLabel: "api", Model: "Person"})
	require.NoError(t, err)
	assert.Equal(t, 2, id)
	assert.Equal(t, 0, src.gets, "reloaded types should be served from cache")

	for i := 0; i < 3; i++ {
		id, err = reg.Identity(context.Background(), reg.Principal())
		require.NoError(t, err)
		assert.Equal(t, 1, id)
	}
	assert.Equal(t, 1, src.gets)
}

func TestRegistry_IdentityUnknown(t *testing.T) {
	reg := New(newFake(), "api", TypeHandle{AppLabel: "auth", Model: "User"})
	_, err := reg.Identity(context.Background(), TypeHandle{AppLabel: "api", Model: "Ghost"})
	assert.ErrorIs(t, err, repo.ErrContentTypeNotFound)
}

func TestRegistry_ReloadErrorKeepsTypes(t *testing.T) {
	src := newFake()
	reg := New(src, "api", TypeHandle{AppLabel: "auth", Model: "User"})
	require.NoError(t, reg.Reload(context.Background()))

	src.listErr = errors.New("connection refused")
	assert.Error(t, reg.Reload(context.Background()))

	_, ok := reg.Lookup("Person")
	assert.True(t, ok)
}

func TestParseTypeHandle(t *testing.T) {
	h, err := ParseTypeHandle("auth.User")
	require.NoError(t, err)
	assert.Equal(t, TypeHandle{AppLabel: "auth", Model: "User"}, h)
	assert.Equal(t, "auth.User", h.String())

	for _, bad := range []string{"", "User", ".User", "auth."} {
		_, err := ParseTypeHandle(bad)
		assert.Error(t, err, bad)
	}
}

func TestFromConfig_Principal(t *testing.T) {
	reg, err := FromConfig(newFake(), config.Config{DomainAppLabel: "api", PrincipalType: config.DefaultPrincipalType})
	require.NoError(t, err)
	assert.Equal(t, TypeHandle{AppLabel: "auth", Model: "User"}, reg.Principal())

	reg, err = FromConfig(newFake(), config.Config{DomainAppLabel: "api", PrincipalType: "accounts.Member"})
	require.NoError(t, err)
	assert.Equal(t, TypeHandle{AppLabel: "accounts", Model: "Member"}, reg.Principal())

	_, err = FromConfig(newFake(), config.Config{DomainAppLabel: "api", PrincipalType: "Member"})
	assert.Error(t, err)
}
