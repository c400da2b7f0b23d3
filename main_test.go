package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gemfield/config"
	"gemfield/model"
	"gemfield/pipeline"
	"gemfield/potential"
	"gemfield/runner"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrintPotentials(t *testing.T) {
	var buf bytes.Buffer
	pots := potential.Calculate(config.Default())
	require.NoError(t, printPotentials(&buf, pots, false))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 9)
	assert.Equal(t, []string{"5", "-2100.0", "0"}, strings.Fields(lines[1]))
	assert.Equal(t, []string{"12", "0.0", "1"}, strings.Fields(lines[8]))
}

func TestPrintPotentialsJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printPotentials(&buf, []float64{-10, 0}, true))
	assert.Equal(t, "[-10,0]\n", buf.String())
}

func TestLoadParamsFlags(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.ini")
	require.NoError(t, os.WriteFile(path, []byte("[run]\ntype = gt\ngeometries = a, b\nworkers = 1\n"), 0o644))

	f := paramFlags{relaxed: true, workers: 4}
	p, err := f.loadParams([]string{path})
	require.NoError(t, err)
	assert.Equal(t, "gt", p.Type)
	assert.Equal(t, model.ModeRelaxed, p.Mode)
	assert.Equal(t, 4, p.Workers)

	_, err = f.loadParams([]string{filepath.Join(t.TempDir(), "missing.ini")})
	assert.Error(t, err)
}

func TestRunPipelinePrintsReport(t *testing.T) {
	dir := t.TempDir()
	err := runPipeline(config.Default(), &runner.Fake{}, pipeline.Options{WorkDir: dir})
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, "triplegem", "gem.sif"))
	assert.FileExists(t, filepath.Join(dir, "triplegem", "gemWT.sif"))
	assert.FileExists(t, filepath.Join(dir, "triplegem", "dielectrics.dat"))
}

func TestSetupLogging(t *testing.T) {
	assert.NoError(t, setupLogging("debug", "json"))
	assert.NoError(t, setupLogging("info", "text"))
	assert.Error(t, setupLogging("loud", "text"))
}
