//go:build integration

package search

import (
	"context"
	"database/sql"
	"encoding/json"
	"strconv"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/crucial707/audit-search/internal/db"
	"github.com/crucial707/audit-search/internal/models"
	"github.com/crucial707/audit-search/internal/registry"
	"github.com/crucial707/audit-search/internal/repo"
)

// setupPostgres starts a PostgreSQL container with pg_trgm and applies the migrations.
func setupPostgres(t *testing.T) *sql.DB {
	t.Helper()
	ctx := context.Background()

	container, err := postgres.Run(ctx, "postgres:15-alpine",
		postgres.WithDatabase("audit_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
		postgres.BasicWaitStrategies(),
	)
	require.NoError(t, err, "Failed to start PostgreSQL container")
	t.Cleanup(func() {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := container.Terminate(cleanupCtx); err != nil {
			t.Logf("Warning: Failed to terminate container: %v", err)
		}
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	require.NoError(t, db.Run(connStr), "Failed to run migrations")

	database, err := sql.Open("postgres", connStr)
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	require.NoError(t, database.Ping())
	return database
}

type fixture struct {
	audit      *repo.AuditRepo
	dispatcher *Dispatcher
	personCT   int
	userCT     int
	jane       *models.User
	entries    map[string]int64
}

func seed(t *testing.T, database *sql.DB) *fixture {
	t.Helper()
	ctx := context.Background()

	var personCT, userCT int
	require.NoError(t, database.QueryRow(`INSERT INTO content_types (app_label, model) VALUES ('api', 'Person') RETURNING id`).Scan(&personCT))
	require.NoError(t, database.QueryRow(`SELECT id FROM content_types WHERE app_label = 'auth' AND model = 'User'`).Scan(&userCT))

	users := repo.NewUserRepo(database, "username")
	jane, err := users.Create(ctx, models.User{Username: "jsmith", Email: "jane@example.com", FirstName: "Jane", LastName: "Smith", IsStaff: true})
	require.NoError(t, err)
	bob, err := users.Create(ctx, models.User{Username: "bob", Email: "bob@example.com", FirstName: "Bob", LastName: "Jones"})
	require.NoError(t, err)

	audit := repo.NewAuditRepo(database, "username")
	entries := make(map[string]int64)
	log := func(key string, actor *int64, ct int, objectID int64, repr, changes string, action models.Action) {
		in := repo.LogInput{ActorID: actor, ObjectRepr: repr, ContentTypeID: ct, ObjectID: objectID, Action: action}
		if changes != "" {
			in.Changes = json.RawMessage(changes)
		}
		id, err := audit.Log(ctx, in)
		require.NoError(t, err)
		entries[key] = id
	}

	log("toagna-create", &jane.ID, personCT, 42, "Toagna Logistics", `{"name": ["", "Toagna Logistics"]}`, models.ActionCreate)
	log("toagna-update", nil, personCT, 42, "Toagna Logistics", `{"city": ["Oslo", "Bergen"]}`, models.ActionUpdate)
	log("acme-update", &bob.ID, personCT, 43, "Acme Corp", `{"city": ["Paris", "Smithfield"]}`, models.ActionUpdate)
	log("smith-co", &jane.ID, personCT, 44, "Smith & Co", "", models.ActionCreate)
	log("discount-pct", &bob.ID, personCT, 45, "Discount 100% off", "", models.ActionCreate)
	log("discount-num", &bob.ID, personCT, 46, "Discount 1000 off", "", models.ActionCreate)
	log("acme-corporation", nil, personCT, 47, "Acme Corporation", "", models.ActionUpdate)
	log("acme-invoice", nil, personCT, 48, "Invoice for Acme Corporation Europe Ltd", "", models.ActionCreate)
	log("acme-supplier", nil, personCT, 49, "Supplier 7", `{"vendor": ["", "Acme Corp"]}`, models.ActionUpdate)
	log("jane-login", &jane.ID, userCT, jane.ID, "jsmith", "", models.ActionAccess)

	types := registry.New(repo.NewContentTypeRepo(database), "api", registry.TypeHandle{AppLabel: "auth", Model: "User"})
	require.NoError(t, types.Reload(ctx))
	d, err := NewDispatcher(&StructuredResolver{Types: types}, nil, &SimilarityEngine{}, nil)
	require.NoError(t, err)

	return &fixture{audit: audit, dispatcher: d, personCT: personCT, userCT: userCT, jane: jane, entries: entries}
}

func (f *fixture) ids(t *testing.T, res Result) []int64 {
	t.Helper()
	rows, err := f.audit.Find(context.Background(), res.Query, 100, 0)
	require.NoError(t, err)
	ids := make([]int64, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.ID)
	}
	return ids
}

func TestIntegration_Search(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	database := setupPostgres(t)
	f := seed(t, database)
	ctx := context.Background()

	t.Run("structured matches one entity only", func(t *testing.T) {
		res, err := f.dispatcher.Search(ctx, "Person:42", repo.AllEntries(), &Recorder{})
		require.NoError(t, err)
		assert.Equal(t, []int64{f.entries["toagna-update"], f.entries["toagna-create"]}, f.ids(t, res))

		n, err := f.audit.Count(ctx, res.Query)
		require.NoError(t, err)
		assert.Equal(t, 2, n)
	})

	t.Run("user alias resolves the principal type", func(t *testing.T) {
		res, err := f.dispatcher.Search(ctx, "user:"+strconv.FormatInt(f.jane.ID, 10), repo.AllEntries(), &Recorder{})
		require.NoError(t, err)
		assert.Equal(t, []int64{f.entries["jane-login"]}, f.ids(t, res))
	})

	t.Run("similarity matches record and actor fields once each", func(t *testing.T) {
		res, err := f.dispatcher.Search(ctx, "smith", repo.AllEntries(), &Recorder{})
		require.NoError(t, err)
		require.Equal(t, StrategySimilarity, res.Strategy)

		rows, err := f.audit.Find(ctx, res.Query, 100, 0)
		require.NoError(t, err)

		seen := make(map[int64]int)
		for _, r := range rows {
			seen[r.ID]++
			require.NotNil(t, r.Similarity)
		}
		for _, key := range []string{"toagna-create", "acme-update", "smith-co", "jane-login"} {
			assert.Equal(t, 1, seen[f.entries[key]], key)
		}
		assert.Zero(t, seen[f.entries["toagna-update"]], "system entry without a smith match")
		assert.Len(t, rows, len(seen), "no duplicates")

		for i := 1; i < len(rows); i++ {
			prev, cur := rows[i-1].Similarity, rows[i].Similarity
			assert.True(t, prev.ObjectRepr > cur.ObjectRepr ||
				(prev.ObjectRepr == cur.ObjectRepr && prev.Changes >= cur.Changes),
				"rows ordered by object_repr then changes similarity")
		}
		assert.Equal(t, f.entries["smith-co"], rows[0].ID)

		n, err := f.audit.Count(ctx, res.Query)
		require.NoError(t, err)
		assert.Equal(t, len(rows), n)
	})

	t.Run("similarity ranks closer object_repr first", func(t *testing.T) {
		res, err := f.dispatcher.Search(ctx, "acme corp", repo.AllEntries(), &Recorder{})
		require.NoError(t, err)
		require.Equal(t, StrategySimilarity, res.Strategy)

		rows, err := f.audit.Find(ctx, res.Query, 100, 0)
		require.NoError(t, err)
		ids := make([]int64, 0, len(rows))
		for _, r := range rows {
			ids = append(ids, r.ID)
		}
		assert.Equal(t, []int64{
			f.entries["acme-update"],
			f.entries["acme-corporation"],
			f.entries["acme-invoice"],
			f.entries["acme-supplier"],
		}, ids)
		for i := 1; i < len(rows); i++ {
			assert.Greater(t, rows[i-1].Similarity.ObjectRepr, rows[i].Similarity.ObjectRepr)
		}
		assert.Greater(t, rows[3].Similarity.Changes, 0.0, "matched through changes only")

		n, err := f.audit.Count(ctx, res.Query)
		require.NoError(t, err)
		assert.Equal(t, 4, n)
	})

	t.Run("similarity combines with base filters", func(t *testing.T) {
		res, err := f.dispatcher.Search(ctx, "smith", repo.AllEntries().WithAction(models.ActionCreate), &Recorder{})
		require.NoError(t, err)
		assert.ElementsMatch(t, []int64{f.entries["toagna-create"], f.entries["smith-co"]}, f.ids(t, res))
	})

	t.Run("like wildcards are literal", func(t *testing.T) {
		res, err := f.dispatcher.Search(ctx, "100%", repo.AllEntries(), &Recorder{})
		require.NoError(t, err)
		assert.Equal(t, []int64{f.entries["discount-pct"]}, f.ids(t, res))
	})

	t.Run("explain returns a plan", func(t *testing.T) {
		res, err := f.dispatcher.Search(ctx, "toagna", repo.AllEntries(), &Recorder{})
		require.NoError(t, err)
		plan, err := f.audit.Explain(ctx, res.Query)
		require.NoError(t, err)
		assert.NotEmpty(t, plan)
	})
}
