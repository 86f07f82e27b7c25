package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"graf/internal/bands"
	"graf/internal/db"
	"graf/internal/ops"
)

func runCmd(t *testing.T, args ...string) (ops.Result, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs(args)

	err := root.ExecuteContext(context.Background())

	var res ops.Result
	if out.Len() > 0 {
		require.NoError(t, json.Unmarshal(out.Bytes(), &res), out.String())
	}
	return res, err
}

func TestOpCommand(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "graf.db")

	res, err := runCmd(t, "op", "create_node", "name=Ada", "x=10", "y=20", "year=1990", "sex=F", "--db", dbPath)
	require.NoError(t, err)
	assert.Equal(t, ops.StatusOK, res.Status)
	assert.Equal(t, int64(1), *res.Par.ID)

	res, err = runCmd(t, "op", "create_node", "name=Bob", "x=0", "y=0", "year=1991", "sex=M", "--db", dbPath)
	require.NoError(t, err)
	assert.Equal(t, int64(2), *res.Par.ID)

	res, err = runCmd(t, "op", "create_edge", "a=2", "b=1", "--db", dbPath)
	require.NoError(t, err)
	assert.Equal(t, int64(1), *res.Par.A)

	res, err = runCmd(t, "op", "delete_node", "id=1", "--db", dbPath)
	require.Error(t, err)
	var se *statusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, ops.StatusHasEdges, se.status)
	assert.Equal(t, ops.StatusHasEdges, res.Status)

	res, err = runCmd(t, "op", "fetch_graph", "--db", dbPath)
	require.NoError(t, err)
	assert.Len(t, res.Data.Nodes, 2)
	assert.Len(t, res.Data.Edges, 1)
}

func TestOpCommand_BadArguments(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "graf.db")

	_, err := runCmd(t, "op", "--db", dbPath)
	assert.Error(t, err)

	_, err = runCmd(t, "op", "create_node", "name", "--db", dbPath)
	assert.ErrorContains(t, err, "field=value")

	_, err = runCmd(t, "op", "create_node", "action=x", "--db", dbPath)
	assert.Error(t, err)
}

func TestParseFields(t *testing.T) {
	req, err := parseFields("edit_node", []string{"id=3", "name=A=B", "sex="})
	require.NoError(t, err)
	assert.Equal(t, ops.Request{"action": "edit_node", "id": "3", "name": "A=B", "sex": ""}, req)
}

func TestReloadBands(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "graf.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
bands:
  default: {min: 10, max: 20}
  extra: {min: 500, max: 600}
`), 0o600))

	picker := bands.NewPicker(map[string]bands.Band{"default": {Min: 1, Max: 2}}, "default")
	require.NoError(t, reloadBands(path, picker))
	assert.Equal(t, []string{"default", "extra"}, picker.Names())
	b, ok := picker.Get("extra")
	require.True(t, ok)
	assert.Equal(t, bands.Band{Min: 500, Max: 600}, b)

	require.NoError(t, os.WriteFile(path, []byte(`
default_band: other
bands:
  other: {min: 1, max: 5}
`), 0o600))
	assert.Error(t, reloadBands(path, picker))
	assert.Equal(t, []string{"default", "extra"}, picker.Names())
}

func TestPruneAudit(t *testing.T) {
	database, err := db.Open(filepath.Join(t.TempDir(), "graf.db"))
	require.NoError(t, err)
	defer database.Close()
	ctx := context.Background()

	s, err := database.BeginSession(ctx)
	require.NoError(t, err)
	require.NoError(t, s.WriteAudit(ctx, "create_node", "node", "1", nil))
	require.NoError(t, s.Commit())

	pruneAudit(ctx, database, 24*time.Hour, zap.NewNop())
	entries, err := database.ListAudit(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	pruneAudit(ctx, database, -time.Hour, zap.NewNop())
	entries, err = database.ListAudit(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
