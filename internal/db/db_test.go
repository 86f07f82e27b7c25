package db

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"graf/internal/model"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	database, err := Open(filepath.Join(t.TempDir(), "graf.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	return database
}

func beginTestSession(t *testing.T, database *DB) *Session {
	t.Helper()
	s, err := database.BeginSession(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { s.Rollback() })
	return s
}

func ptr[T any](v T) *T { return &v }

func TestDetectDriver(t *testing.T) {
	tests := []struct {
		dsn    string
		driver DriverType
		name   string
	}{
		{"graf.db", DriverSQLite, "sqlite"},
		{"file:x?mode=memory", DriverSQLite, "sqlite"},
		{"postgres://u:p@localhost/graf", DriverPostgres, "postgres"},
		{"postgresql://localhost/graf", DriverPostgres, "postgres"},
	}
	for _, tt := range tests {
		driver, name := detectDriver(tt.dsn)
		assert.Equal(t, tt.driver, driver, tt.dsn)
		assert.Equal(t, tt.name, name, tt.dsn)
	}
}

func TestConvertPlaceholders(t *testing.T) {
	got := convertPlaceholders("SELECT id FROM nodes WHERE id < ? AND id >= ? LIMIT ?")
	assert.Equal(t, "SELECT id FROM nodes WHERE id < $1 AND id >= $2 LIMIT $3", got)
	assert.Equal(t, "SELECT 1", rebind(DriverSQLite, "SELECT 1"))
}

func TestNodeLifecycle(t *testing.T) {
	database := openTestDB(t)
	ctx := context.Background()
	s := beginTestSession(t, database)

	ok, err := s.NodeExists(ctx, 100)
	require.NoError(t, err)
	assert.False(t, ok)

	node := model.Node{ID: 100, Name: "Ada", X: 10, Y: 20, Year: 1990, Sex: "F"}
	require.NoError(t, s.InsertNode(ctx, node))

	got, err := s.GetNode(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, node, *got)

	require.NoError(t, s.UpdateNode(ctx, 100, NodeUpdate{Name: ptr("Ada L."), Year: ptr(int64(1815))}))
	got, err = s.GetNode(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, "Ada L.", got.Name)
	assert.Equal(t, int64(1815), got.Year)
	assert.Equal(t, "F", got.Sex)
	assert.Equal(t, int64(10), got.X)

	assert.True(t, NodeUpdate{}.Empty())
	assert.False(t, NodeUpdate{Sex: ptr("M")}.Empty())
	require.NoError(t, s.UpdateNode(ctx, 100, NodeUpdate{}))
	got, err = s.GetNode(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, "Ada L.", got.Name)

	require.NoError(t, s.DeleteNode(ctx, 100))
	_, err = s.GetNode(ctx, 100)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestInsertNode_DuplicateIsConflict(t *testing.T) {
	database := openTestDB(t)
	ctx := context.Background()
	s := beginTestSession(t, database)

	node := model.Node{ID: 7, Name: "a", Sex: "U"}
	require.NoError(t, s.InsertNode(ctx, node))

	err := s.InsertNode(ctx, node)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConflict), "got %v", err)
}

func TestHighestNodeID(t *testing.T) {
	database := openTestDB(t)
	ctx := context.Background()
	s := beginTestSession(t, database)

	_, found, err := s.HighestNodeID(ctx, 100, 200)
	require.NoError(t, err)
	assert.False(t, found)

	for _, id := range []int64{5, 150, 120, 200, 250} {
		require.NoError(t, s.InsertNode(ctx, model.Node{ID: id, Name: "n", Sex: "M"}))
	}

	id, found, err := s.HighestNodeID(ctx, 100, 200)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, int64(150), id)

	id, found, err = s.HighestNodeID(ctx, 0, 100)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, int64(5), id)
}

func TestEdgeLifecycle(t *testing.T) {
	database := openTestDB(t)
	ctx := context.Background()
	s := beginTestSession(t, database)

	require.NoError(t, s.InsertNode(ctx, model.Node{ID: 1, Name: "a", Sex: "M"}))
	require.NoError(t, s.InsertNode(ctx, model.Node{ID: 2, Name: "b", Sex: "F"}))

	has, err := s.NodeHasEdges(ctx, 1)
	require.NoError(t, err)
	assert.False(t, has)

	require.NoError(t, s.InsertEdge(ctx, 1, 2))

	e, err := s.FindEdge(ctx, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(1), e.A)
	assert.Equal(t, int64(2), e.B)
	assert.Equal(t, int64(1), e.Votes)

	byID, err := s.GetEdge(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, *e, *byID)

	for _, id := range []int64{1, 2} {
		has, err = s.NodeHasEdges(ctx, id)
		require.NoError(t, err)
		assert.True(t, has)
	}

	err = s.InsertEdge(ctx, 1, 2)
	assert.ErrorIs(t, err, ErrConflict)

	require.NoError(t, s.DeleteEdge(ctx, e.ID))
	_, err = s.FindEdge(ctx, 1, 2)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.GetEdge(ctx, e.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestInsertEdge_RejectsNonCanonicalPair(t *testing.T) {
	database := openTestDB(t)
	ctx := context.Background()
	s := beginTestSession(t, database)

	err := s.InsertEdge(ctx, 5, 3)
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrConflict))
}

func TestListNodesAndEdges(t *testing.T) {
	database := openTestDB(t)
	ctx := context.Background()
	s := beginTestSession(t, database)

	nodes, err := s.ListNodes(ctx)
	require.NoError(t, err)
	assert.Empty(t, nodes)

	require.NoError(t, s.InsertNode(ctx, model.Node{ID: 3, Name: "c", Sex: "U"}))
	require.NoError(t, s.InsertNode(ctx, model.Node{ID: 1, Name: "a", Sex: "M"}))
	require.NoError(t, s.InsertEdge(ctx, 1, 3))

	nodes, err = s.ListNodes(ctx)
	require.NoError(t, err)
	require.Len(t, nodes, 2)
	assert.Equal(t, int64(1), nodes[0].ID)
	assert.Equal(t, int64(3), nodes[1].ID)

	edges, err := s.ListEdges(ctx)
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.Equal(t, "1_3", edges[0].Key())
}

func TestSession_RollbackDiscards(t *testing.T) {
	database := openTestDB(t)
	ctx := context.Background()

	s, err := database.BeginSession(ctx)
	require.NoError(t, err)
	require.NoError(t, s.InsertNode(ctx, model.Node{ID: 1, Name: "a", Sex: "M"}))
	require.NoError(t, s.Rollback())

	s2 := beginTestSession(t, database)
	ok, err := s2.NodeExists(ctx, 1)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSession_RollbackAfterCommit(t *testing.T) {
	database := openTestDB(t)
	ctx := context.Background()

	s, err := database.BeginSession(ctx)
	require.NoError(t, err)
	require.NoError(t, s.InsertNode(ctx, model.Node{ID: 1, Name: "a", Sex: "M"}))
	require.NoError(t, s.Commit())
	assert.NoError(t, s.Rollback())

	s2 := beginTestSession(t, database)
	ok, err := s2.NodeExists(ctx, 1)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestAudit(t *testing.T) {
	database := openTestDB(t)
	ctx := context.Background()

	s, err := database.BeginSession(ctx)
	require.NoError(t, err)
	require.NoError(t, s.WriteAudit(ctx, "create_node", model.TargetNode, "100", map[string]string{"name": "Ada"}))
	require.NoError(t, s.Commit())

	entries, err := database.ListAudit(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "create_node", entries[0].Action)
	assert.Equal(t, model.TargetNode, entries[0].TargetType)
	assert.Equal(t, "100", entries[0].TargetID)
	assert.JSONEq(t, `{"name":"Ada"}`, string(entries[0].Data))
	assert.NotEmpty(t, entries[0].ID)

	n, err := database.PruneAudit(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	n, err = database.PruneAudit(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	entries, err = database.ListAudit(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestPing(t *testing.T) {
	database := openTestDB(t)
	assert.NoError(t, database.Ping(context.Background()))
	assert.Equal(t, DriverSQLite, database.Driver())
	assert.Equal(t, "sqlite", database.Driver().String())
}
