package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AndrewGaspar/parthenon/internal/config"
	"github.com/AndrewGaspar/parthenon/internal/model"
	"github.com/AndrewGaspar/parthenon/internal/store"
)

// writeRunFile writes a small serial run file into a temp dir and returns its
// path and the directory.
func writeRunFile(t *testing.T, extra string) (string, string) {
	t.Helper()
	dir := t.TempDir()
	body := `listen_addr: ""
db_path: ` + filepath.Join(dir, "runs.db") + `
log_level: error
run:
  space: serial
  pattern: range
  integrator: rk2
  time_limit: 100
  cycle_limit: 3
problem:
  nx: 16
  ny: 16
  nz: 1
  block_nx: 8
  block_ny: 8
  block_nz: 1
outputs:
  history_path: ` + filepath.Join(dir, "history.jsonl") + `
` + extra
	path := filepath.Join(dir, "run.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path, dir
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func TestExecuteRecordsRun(t *testing.T) {
	path, dir := writeRunFile(t, "")
	cfg, err := config.Load(path)
	require.NoError(t, err)

	res, err := execute(context.Background(), cfg, discardLogger())
	require.NoError(t, err)
	require.NoError(t, res.Err)

	assert.Equal(t, model.StateComplete, res.State)
	assert.Equal(t, 3, res.Cycle)
	assert.Equal(t, int64(12), res.BlockCycles)

	db, err := store.NewSQLiteStore(cfg.DBPath)
	require.NoError(t, err)
	defer db.Close()

	runs, total, err := db.ListRuns(context.Background(), 10, 0)
	require.NoError(t, err)
	require.Equal(t, 1, total)
	assert.Equal(t, model.StateComplete, runs[0].Status)
	assert.Equal(t, "rk2", runs[0].Integrator)
	assert.Equal(t, model.SpaceSerial, runs[0].Space)
	assert.Equal(t, 3, runs[0].Cycles)

	cycles, err := db.ListCycles(context.Background(), runs[0].ID, 10, 0)
	require.NoError(t, err)
	assert.Len(t, cycles, 3)

	f, err := os.Open(filepath.Join(dir, "history.jsonl"))
	require.NoError(t, err)
	defer f.Close()
	var lines []model.Snapshot
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var snap model.Snapshot
		require.NoError(t, json.Unmarshal(sc.Bytes(), &snap))
		lines = append(lines, snap)
	}
	require.Len(t, lines, 3)
	assert.Equal(t, runs[0].ID, lines[2].RunID)
	assert.Equal(t, 3, lines[2].Cycle)
}

func TestExecuteRejectsUnsupportedPattern(t *testing.T) {
	path, _ := writeRunFile(t, "")
	cfg, err := config.Load(path)
	require.NoError(t, err)
	cfg.Run.Space = model.SpaceDevice
	cfg.Run.Pattern = model.PatternSIMDFor

	_, err = execute(context.Background(), cfg, discardLogger())
	assert.Error(t, err)
}

func TestExecuteUnknownSpace(t *testing.T) {
	path, _ := writeRunFile(t, "")
	cfg, err := config.Load(path)
	require.NoError(t, err)
	cfg.Run.Space = "quantum"

	_, err = execute(context.Background(), cfg, discardLogger())
	assert.Error(t, err)
}

func TestBuildOutputs(t *testing.T) {
	path, _ := writeRunFile(t, "")
	cfg, err := config.Load(path)
	require.NoError(t, err)

	db, err := store.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer db.Close()

	set, cleanup, err := buildOutputs(context.Background(), cfg, db, discardLogger())
	require.NoError(t, err)
	defer cleanup()
	assert.Len(t, set, 2)

	cfg.Outputs.HistoryPath = ""
	cfg.Outputs.RecordCycles = false
	set, cleanup2, err := buildOutputs(context.Background(), cfg, nil, discardLogger())
	require.NoError(t, err)
	defer cleanup2()
	assert.Empty(t, set)
}

func TestOpenGroupSingle(t *testing.T) {
	g, closeGroup, err := openGroup(context.Background(), config.GroupConfig{Rank: 0, Size: 1})
	require.NoError(t, err)
	assert.Equal(t, 0, g.Rank())
	assert.Equal(t, 1, g.Size())
	assert.NoError(t, closeGroup())
}

func TestSpacesCommand(t *testing.T) {
	path, _ := writeRunFile(t, "")
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"spaces", "--config", path})
	defer rootCmd.SetOut(nil)

	require.NoError(t, rootCmd.Execute())

	text := out.String()
	assert.Contains(t, text, "NAME")
	for _, name := range []string{"serial", "host", "device"} {
		assert.Contains(t, text, name)
	}
}

func TestHistoryCommand(t *testing.T) {
	path, _ := writeRunFile(t, "")
	cfg, err := config.Load(path)
	require.NoError(t, err)
	res, err := execute(context.Background(), cfg, discardLogger())
	require.NoError(t, err)
	require.Equal(t, model.StateComplete, res.State)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"history", "--config", path, "-o", "json"})
	defer rootCmd.SetOut(nil)
	require.NoError(t, rootCmd.Execute())

	var listing struct {
		Runs  []model.Run `json:"runs"`
		Total int         `json:"total"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &listing))
	require.Equal(t, 1, listing.Total)
	runID := listing.Runs[0].ID

	out.Reset()
	rootCmd.SetArgs([]string{"history", runID, "--config", path, "-o", "yaml"})
	require.NoError(t, rootCmd.Execute())
	assert.True(t, strings.Contains(out.String(), "cycles:"), "yaml output missing cycles: %s", out.String())
}
