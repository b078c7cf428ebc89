package search

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crucial707/audit-search/internal/repo"
)

func TestFullTextStrategy_MapsHitsToIDs(t *testing.T) {
	backend := &fakeBackend{hits: FullTextHits{
		Hits:  []FullTextHit{{ID: 5, Score: 9.1}, {ID: 2, Score: 3.3}},
		Total: 2,
	}}
	f := &FullTextStrategy{Backend: backend}
	rec := &Recorder{}

	res, err := f.Search(context.Background(), "jane smith", repo.AllEntries(), rec)
	require.NoError(t, err)
	assert.Equal(t, []int64{5, 2}, res.Query.IDs())
	assert.Equal(t, StrategyFullText, res.Strategy)
	assert.False(t, res.Distinct)
	assert.Empty(t, rec.Messages())

	q := backend.last
	assert.Equal(t, "jane smith", q.Term)
	assert.True(t, q.Fuzzy)
	assert.True(t, q.RequireAll)
	assert.Equal(t, FullTextCap, q.Size)
	assert.Equal(t, WeightedField{Name: "object_repr", Boost: 2}, q.Fields[0])
}

func TestFullTextStrategy_NoHitsIsEmpty(t *testing.T) {
	f := &FullTextStrategy{Backend: &fakeBackend{}}
	res, err := f.Search(context.Background(), "nothing", repo.AllEntries(), &Recorder{})
	require.NoError(t, err)
	assert.True(t, res.Query.IsNone())
	assert.NoError(t, res.Err)
}

func TestFullTextStrategy_TruncationWarning(t *testing.T) {
	f := &FullTextStrategy{Backend: &fakeBackend{hits: FullTextHits{Hits: []FullTextHit{{ID: 1}}, Total: 12345}}}
	rec := &Recorder{}
	_, err := f.Search(context.Background(), "smith", repo.AllEntries(), rec)
	require.NoError(t, err)

	msgs := rec.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, LevelWarning, msgs[0].Level)
	assert.Equal(t, "Search returned 12,345 results, showing first 10,000. Please refine your search for better results.", msgs[0].Text)
}

func TestFullTextStrategy_ExactlyAtCapNoWarning(t *testing.T) {
	f := &FullTextStrategy{Backend: &fakeBackend{hits: FullTextHits{Hits: []FullTextHit{{ID: 1}}, Total: FullTextCap}}}
	rec := &Recorder{}
	_, err := f.Search(context.Background(), "smith", repo.AllEntries(), rec)
	require.NoError(t, err)
	assert.Empty(t, rec.Messages())
}

func TestFullTextStrategy_FailureIsUnavailable(t *testing.T) {
	f := &FullTextStrategy{Backend: &fakeBackend{err: errors.New("dial tcp: connection refused")}}
	rec := &Recorder{}
	_, err := f.Search(context.Background(), "smith", repo.AllEntries(), rec)
	assert.ErrorIs(t, err, ErrBackendUnavailable)
	assert.Empty(t, rec.Messages(), "backend failures are not shown to the user")
}

func TestFullTextStrategy_Timeout(t *testing.T) {
	f := &FullTextStrategy{Backend: &fakeBackend{block: true}, Timeout: 50 * time.Millisecond}
	start := time.Now()
	_, err := f.Search(context.Background(), "smith", repo.AllEntries(), &Recorder{})
	assert.ErrorIs(t, err, ErrBackendUnavailable)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestFullTextStrategy_NilBackend(t *testing.T) {
	var f *FullTextStrategy
	_, err := f.Search(context.Background(), "smith", repo.AllEntries(), &Recorder{})
	assert.ErrorIs(t, err, ErrBackendUnavailable)
}

func TestGroupThousands(t *testing.T) {
	tests := map[int]string{0: "0", 999: "999", 1000: "1,000", 10000: "10,000", 1234567: "1,234,567", -4500: "-4,500"}
	for in, want := range tests {
		assert.Equal(t, want, groupThousands(in))
	}

	rec := &Recorder{}
	s := &FullTextStrategy{Backend: &fakeBackend{hits: FullTextHits{Total: 1234567}}}
	_, err := s.Search(context.Background(), "jane", repo.AllEntries(), rec)
	require.NoError(t, err)
	require.Len(t, rec.Messages(), 1)
	assert.Equal(t, "Search returned 1,234,567 results, showing first 10,000. Please refine your search for better results.", rec.Messages()[0].Text)
}
