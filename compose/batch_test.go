package compose_test

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ByLCY/imprint/binding"
	"github.com/ByLCY/imprint/compose"
	"github.com/ByLCY/imprint/layout"
)

const batchSchema = `{
  "assets": { "f": { "font": "f.ttf", "size": 10 } },
  "frame": { "size": [200, 100], "layers": [
    { "type": "text", "string": "${name}", "font": "@f", "at": [100, 50] }
  ] }
}`

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names
}

func TestRunBatchWritesOneFilePerRow(t *testing.T) {
	out := t.TempDir()
	e := newEngine(t, newStubRenderer(), batchSchema)

	rows := []binding.Data{{"id": "1", "name": "Ada"}, {"id": "2", "name": "Grace"}}
	res, err := compose.RunBatch(context.Background(), e, rows, compose.BatchOptions{OutputDir: out, Format: "${id}.png"})
	require.NoError(t, err)

	assert.Equal(t, []string{filepath.Join(out, "1.png"), filepath.Join(out, "2.png")}, res.Written)
	assert.Empty(t, res.Failed)
	// 原子写入不应留下临时文件
	assert.Equal(t, []string{"1.png", "2.png"}, listDir(t, out))
}

func TestRunBatchAbortsOnMissingVariable(t *testing.T) {
	out := t.TempDir()
	e := newEngine(t, newStubRenderer(), batchSchema)

	rows := []binding.Data{{"id": "1", "name": "Ada"}, {"id": "2"}, {"id": "3", "name": "Linus"}}
	_, err := compose.RunBatch(context.Background(), e, rows, compose.BatchOptions{OutputDir: out, Format: "${id}.png"})

	var rerr *compose.RowError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, 1, rerr.Row)
	var verr *binding.UndefinedVariableError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "name", verr.Name)

	assert.Equal(t, []string{"1.png"}, listDir(t, out))
}

func TestRunBatchKeepGoing(t *testing.T) {
	out := t.TempDir()
	e := newEngine(t, newStubRenderer(), batchSchema)

	rows := []binding.Data{{"id": "1"}, {"id": "2", "name": "Grace"}, {"id": "3"}}
	res, err := compose.RunBatch(context.Background(), e, rows, compose.BatchOptions{
		OutputDir: out, Format: "${id}.png", KeepGoing: true,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(out, "2.png")}, res.Written)
	require.Len(t, res.Failed, 2)
	assert.Equal(t, 0, res.Failed[0].Row)
	assert.Equal(t, 2, res.Failed[1].Row)
}

func TestRunBatchWorkersAndLimit(t *testing.T) {
	out := t.TempDir()
	e := newEngine(t, newStubRenderer(), batchSchema)

	var rows []binding.Data
	for i := range 10 {
		rows = append(rows, binding.Data{"id": fmt.Sprint(i), "name": fmt.Sprintf("n%d", i)})
	}
	res, err := compose.RunBatch(context.Background(), e, rows, compose.BatchOptions{
		OutputDir: out, Format: "sub/${id}.png", Workers: 4, Limit: 8,
	})
	require.NoError(t, err)
	require.Len(t, res.Written, 8)
	for i, p := range res.Written {
		assert.Equal(t, filepath.Join(out, "sub", fmt.Sprintf("%d.png", i)), p)
	}
	assert.Len(t, listDir(t, filepath.Join(out, "sub")), 8)
}

func TestRunBatchWorkersStopOnFailure(t *testing.T) {
	out := t.TempDir()
	e := newEngine(t, newStubRenderer(), batchSchema)

	rows := []binding.Data{{"id": "1", "name": "a"}, {"id": "2"}, {"id": "3", "name": "c"}}
	_, err := compose.RunBatch(context.Background(), e, rows, compose.BatchOptions{
		OutputDir: out, Format: "${id}.png", Workers: 2,
	})
	var rerr *compose.RowError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, 1, rerr.Row)
	assert.NotContains(t, listDir(t, out), "2.png")
}

func TestRunBatchDebugTrace(t *testing.T) {
	out, debug := t.TempDir(), t.TempDir()
	e := newEngine(t, newStubRenderer(), batchSchema)

	_, err := compose.RunBatch(context.Background(), e, []binding.Data{{"id": "1", "name": "Ada"}}, compose.BatchOptions{
		OutputDir: out, Format: "${id}.png", DebugDir: debug,
	})
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(debug, "1.png.json"))
	require.NoError(t, err)
	var tr layout.Trace
	require.NoError(t, json.Unmarshal(data, &tr))
	assert.Equal(t, filepath.Join(out, "1.png"), tr.Output)
	require.Len(t, tr.Layers, 1)
	assert.Equal(t, "Ada", tr.Layers[0].Lines[0].Line)
}

func TestRunBatchCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	e := newEngine(t, newStubRenderer(), batchSchema)

	_, err := compose.RunBatch(ctx, e, []binding.Data{{"id": "1", "name": "a"}}, compose.BatchOptions{
		OutputDir: t.TempDir(), Format: "${id}.png",
	})
	require.ErrorIs(t, err, context.Canceled)
}

func TestProcessRejectsUnknownExtension(t *testing.T) {
	e := newEngine(t, newStubRenderer(), batchSchema)
	_, err := e.Process(context.Background(), binding.Data{"name": "a"}, filepath.Join(t.TempDir(), "a.txt"))
	require.Error(t, err)
}

func TestProcessWithoutAtomicWrites(t *testing.T) {
	out := t.TempDir()
	e := newEngine(t, newStubRenderer(), batchSchema, compose.WithAtomicWrites(false))
	path := filepath.Join(out, "nested", "a.jpg")
	_, err := e.Process(context.Background(), binding.Data{"name": "a"}, path)
	require.NoError(t, err)
	assert.FileExists(t, path)
}
