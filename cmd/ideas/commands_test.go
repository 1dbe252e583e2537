package main

import (
	"bytes"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/letieu/idea-store/config"
	"github.com/letieu/idea-store/internal/database"
	"github.com/letieu/idea-store/internal/database/dbtest"
)

func newServer(t *testing.T) *dbtest.Server {
	t.Helper()
	srv := dbtest.NewServer()
	t.Cleanup(srv.Close)

	orig := loadConfig
	loadConfig = func() (*config.Config, error) {
		cfg := &config.Config{}
		cfg.Backend.Type = config.BackendSupabase
		cfg.Supabase.URL = srv.URL
		cfg.Supabase.AnonKey = dbtest.APIKey
		cfg.HTTP.TimeoutSecs = 5
		return cfg, nil
	}
	t.Cleanup(func() { loadConfig = orig })
	return srv
}

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer

	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append([]string{"--no-color"}, args...))

	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func seedIdeas(srv *dbtest.Server, contents ...string) {
	for _, c := range contents {
		srv.Seed(database.TableIdeas, dbtest.Row{
			"content":        c,
			"status":         database.StatusNew,
			"priority_score": 0.5,
		})
	}
}

func TestList_NewestFirst(t *testing.T) {
	srv := newServer(t)
	seedIdeas(srv, "older idea", "newer idea")

	out, _, err := run(t, "list")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "ID"))
	assert.Contains(t, lines[1], "newer idea")
	assert.Contains(t, lines[2], "older idea")
	assert.Contains(t, lines[1], "0.50")
}

func TestList_StatusFilter(t *testing.T) {
	srv := newServer(t)
	seedIdeas(srv, "fresh")
	srv.Seed(database.TableIdeas, dbtest.Row{"content": "spent", "status": database.StatusUsed})

	out, _, err := run(t, "list", "--status", "used")
	require.NoError(t, err)
	assert.Contains(t, out, "spent")
	assert.NotContains(t, out, "fresh")
}

func TestList_Raw(t *testing.T) {
	srv := newServer(t)
	seedIdeas(srv, "raw idea")

	out, _, err := run(t, "list", "--raw")
	require.NoError(t, err)
	assert.Contains(t, out, "raw idea")
	assert.Contains(t, out, "PriorityScore")
}

func TestList_FetchError(t *testing.T) {
	srv := newServer(t)
	srv.Fail(http.MethodGet, http.StatusInternalServerError, "database is down")

	_, errOut, err := run(t, "list")
	require.EqualError(t, err, "load ideas: database is down")
	assert.Equal(t, 1, strings.Count(errOut, "Error: database is down"), errOut)
	assert.Contains(t, errOut, "Error: load ideas: database is down")
}

func TestAdd_Defaults(t *testing.T) {
	srv := newServer(t)

	out, errOut, err := run(t, "add", "write", "about", "generics")
	require.NoError(t, err)
	assert.Equal(t, "1\n", out)
	assert.Contains(t, errOut, "Idea created successfully")

	rows := srv.Rows(database.TableIdeas)
	require.Len(t, rows, 1)
	assert.Equal(t, "write about generics", rows[0]["content"])
	assert.Equal(t, database.StatusNew, rows[0]["status"])
	assert.Equal(t, 0.5, rows[0]["priority_score"])
}

func TestAdd_ExplicitPriority(t *testing.T) {
	srv := newServer(t)

	_, _, err := run(t, "add", "urgent", "--priority", "0.9", "--user", "7")
	require.NoError(t, err)

	rows := srv.Rows(database.TableIdeas)
	require.Len(t, rows, 1)
	assert.Equal(t, 0.9, rows[0]["priority_score"])
	assert.Equal(t, float64(7), rows[0]["user_id"])
}

func TestUpdate(t *testing.T) {
	srv := newServer(t)
	seedIdeas(srv, "draft")

	_, errOut, err := run(t, "update", "1", "--content", "final")
	require.NoError(t, err)
	assert.Contains(t, errOut, "Idea updated successfully")
	assert.Equal(t, "final", srv.Rows(database.TableIdeas)[0]["content"])
}

func TestUpdate_ClearUsedAt(t *testing.T) {
	srv := newServer(t)
	srv.Seed(database.TableIdeas, dbtest.Row{"content": "recycled", "status": "used", "used_at": "2025-06-01T09:30:00Z"})

	_, _, err := run(t, "update", "1", "--status", "new", "--clear", "used_at")
	require.NoError(t, err)

	row := srv.Rows(database.TableIdeas)[0]
	assert.Equal(t, database.StatusNew, row["status"])
	assert.Nil(t, row["used_at"])
}

func TestUpdate_RequiresAField(t *testing.T) {
	newServer(t)

	_, _, err := run(t, "update", "1")
	assert.ErrorContains(t, err, "is required")
}

func TestUpdate_InvalidID(t *testing.T) {
	newServer(t)

	_, _, err := run(t, "update", "abc", "--status", "used")
	assert.EqualError(t, err, `invalid idea id "abc"`)
}

func TestRemove(t *testing.T) {
	srv := newServer(t)
	seedIdeas(srv, "keep", "drop")

	_, errOut, err := run(t, "rm", "2")
	require.NoError(t, err)
	assert.Contains(t, errOut, "Idea deleted successfully")

	rows := srv.Rows(database.TableIdeas)
	require.Len(t, rows, 1)
	assert.Equal(t, "keep", rows[0]["content"])
}

func TestUse(t *testing.T) {
	srv := newServer(t)
	seedIdeas(srv, "a", "b", "c")

	_, errOut, err := run(t, "use", "1", "3")
	require.NoError(t, err)
	assert.Contains(t, errOut, "Marked 2 ideas as used")

	for _, row := range srv.Rows(database.TableIdeas) {
		want := database.StatusUsed
		if row["content"] == "b" {
			want = database.StatusNew
		}
		assert.Equal(t, want, row["status"], row["content"])
	}
}

func TestPing(t *testing.T) {
	newServer(t)

	out, _, err := run(t, "ping")
	require.NoError(t, err)
	assert.Equal(t, "backend connection successful\n", out)
}

func TestPing_WrongKey(t *testing.T) {
	srv := newServer(t)
	loadConfig = func() (*config.Config, error) {
		cfg := &config.Config{}
		cfg.Backend.Type = config.BackendSupabase
		cfg.Supabase.URL = srv.URL
		cfg.Supabase.AnonKey = "wrong"
		cfg.HTTP.TimeoutSecs = 5
		return cfg, nil
	}

	_, _, err := run(t, "ping")
	assert.EqualError(t, err, "backend connection failed: Invalid API key")
}
