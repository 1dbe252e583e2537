package database

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := OpenSQL("sqlite", filepath.Join(t.TempDir(), "ideas.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, db.Migrate(ctx))
	return db
}

func TestMigrate_Idempotent(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.Migrate(ctx))
	require.NoError(t, db.Ping(ctx))
}

func TestSQLIdeas_InsertAndSelect(t *testing.T) {
	ideas := newTestDB(t).Ideas()

	for _, content := range []string{"first", "second", "third"} {
		_, err := ideas.Insert(ctx, IdeaInsert{Content: Ptr(content), Status: Ptr(StatusNew), PriorityScore: Ptr(0.5)})
		require.NoError(t, err)
	}

	got, err := ideas.Select(ctx, Query{Order: []Order{Desc("created_at")}})
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, []int64{3, 2, 1}, []int64{got[0].ID, got[1].ID, got[2].ID})
	assert.Equal(t, "third", *got[0].Content)
	assert.False(t, got[0].CreatedAt.IsZero())
	assert.Nil(t, got[0].UserID)
	assert.Nil(t, got[0].UsedAt)
}

func TestSQLIdeas_InsertDefaults(t *testing.T) {
	ideas := newTestDB(t).Ideas()

	idea, err := ideas.Insert(ctx, IdeaInsert{})
	require.NoError(t, err)

	assert.Equal(t, int64(1), idea.ID)
	assert.Nil(t, idea.Content)
	assert.Nil(t, idea.Status)
	assert.WithinDuration(t, time.Now(), idea.CreatedAt, time.Minute)
}

func TestSQLIdeas_Update(t *testing.T) {
	ideas := newTestDB(t).Ideas()
	created, err := ideas.Insert(ctx, IdeaInsert{Content: Ptr("draft"), PriorityScore: Ptr(0.1)})
	require.NoError(t, err)

	updated, err := ideas.Update(ctx, created.ID, IdeaUpdate{Content: Ptr("final"), UserID: Ptr(int64(4))})
	require.NoError(t, err)

	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, "final", *updated.Content)
	assert.Equal(t, int64(4), *updated.UserID)
	assert.Equal(t, 0.1, *updated.PriorityScore)
	assert.True(t, created.CreatedAt.Equal(updated.CreatedAt))

	same, err := ideas.Update(ctx, created.ID, IdeaUpdate{})
	require.NoError(t, err)
	assert.Equal(t, updated, same)

	_, err = ideas.Update(ctx, 999, IdeaUpdate{Content: Ptr("x")})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLIdeas_UpdateClearsColumn(t *testing.T) {
	ideas := newTestDB(t).Ideas()
	usedAt := time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)
	created, err := ideas.Insert(ctx, IdeaInsert{Status: Ptr(StatusUsed), UsedAt: &usedAt, UserID: Ptr(int64(3))})
	require.NoError(t, err)
	require.NotNil(t, created.UsedAt)

	reset, err := ideas.Update(ctx, created.ID, IdeaUpdate{Status: Ptr(StatusNew), Null: []string{"used_at"}})
	require.NoError(t, err)
	assert.Nil(t, reset.UsedAt)
	assert.Equal(t, StatusNew, *reset.Status)
	assert.Equal(t, int64(3), *reset.UserID)

	_, err = ideas.Update(ctx, created.ID, IdeaUpdate{Status: Ptr(StatusNew), Null: []string{"status"}})
	assert.EqualError(t, err, "column status is both set and cleared")

	_, err = ideas.Update(ctx, created.ID, IdeaUpdate{Null: []string{"created_at"}})
	assert.EqualError(t, err, "column created_at cannot be cleared")
}

func TestSQLIdeas_Delete(t *testing.T) {
	ideas := newTestDB(t).Ideas()
	for i := 0; i < 3; i++ {
		_, err := ideas.Insert(ctx, IdeaInsert{Content: Ptr("x")})
		require.NoError(t, err)
	}

	require.NoError(t, ideas.Delete(ctx, 2))
	require.NoError(t, ideas.Delete(ctx, 2), "deleting a missing row is not an error")

	got, err := ideas.Select(ctx, Query{Order: []Order{Asc("id")}})
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 3}, []int64{got[0].ID, got[1].ID})
}

func TestSQLIdeas_UpdateIn(t *testing.T) {
	ideas := newTestDB(t).Ideas()
	for i := 0; i < 10; i++ {
		_, err := ideas.Insert(ctx, IdeaInsert{Status: Ptr(StatusNew)})
		require.NoError(t, err)
	}
	usedAt := time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)

	require.NoError(t, ideas.UpdateIn(ctx, []int64{2, 5, 9}, IdeaUpdate{Status: Ptr(StatusUsed), UsedAt: &usedAt}))
	require.NoError(t, ideas.UpdateIn(ctx, nil, IdeaUpdate{Status: Ptr(StatusUsed)}))

	used, err := ideas.Select(ctx, Query{}.Where(Eq("status", StatusUsed)).OrderBy(Asc("id")))
	require.NoError(t, err)
	require.Len(t, used, 3)
	for i, id := range []int64{2, 5, 9} {
		assert.Equal(t, id, used[i].ID)
		require.NotNil(t, used[i].UsedAt)
		assert.True(t, usedAt.Equal(*used[i].UsedAt))
	}

	unused, err := ideas.Select(ctx, Query{}.Where(IsNull("used_at")))
	require.NoError(t, err)
	assert.Len(t, unused, 7)
}

func TestSQLIdeas_SelectFilters(t *testing.T) {
	ideas := newTestDB(t).Ideas()
	for _, p := range []float64{0.1, 0.5, 0.9} {
		_, err := ideas.Insert(ctx, IdeaInsert{PriorityScore: Ptr(p), Content: Ptr("Launch checklist")})
		require.NoError(t, err)
	}

	high, err := ideas.Select(ctx, Query{Filters: []Filter{{Column: "priority_score", Op: OpGte, Value: 0.5}}})
	require.NoError(t, err)
	assert.Len(t, high, 2)

	in, err := ideas.Select(ctx, Query{}.Where(In("id", []int64{1, 3})))
	require.NoError(t, err)
	assert.Len(t, in, 2)

	none, err := ideas.Select(ctx, Query{}.Where(In("id", []int64{})))
	require.NoError(t, err)
	assert.Empty(t, none)

	like, err := ideas.Select(ctx, Query{Filters: []Filter{{Column: "content", Op: OpILike, Value: "*checklist*"}}, Limit: 1})
	require.NoError(t, err)
	assert.Len(t, like, 1)

	_, err = ideas.Select(ctx, Query{}.Where(Eq("nope; DROP TABLE ideas", 1)))
	assert.Error(t, err)
}
