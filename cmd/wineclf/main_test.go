package main

import (
	"bytes"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/s3ba-b/SVM-for-Classification/internal/data"
	"github.com/s3ba-b/SVM-for-Classification/internal/mlerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	color.NoColor = true
	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = &out
	err := app.Run(append([]string{"wineclf"}, args...))
	return out.String(), err
}

// writeWineFile writes jittered copies of the built-in samples in the
// semicolon separated wine layout.
func writeWineFile(t *testing.T, dir string, n int, seed int64) string {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	samples := data.WineSamples()
	var sb strings.Builder
	sb.WriteString(strings.Join(append(append([]string(nil), data.WineFeatures...), data.WineLabel), ";"))
	sb.WriteString("\n")
	for i := 0; i < n; i++ {
		s := samples[i%len(samples)]
		for _, f := range data.WineFeatures {
			v := float64(s.Record.Fields[f]) * (1 + rng.NormFloat64()*0.005)
			fmt.Fprintf(&sb, "%.5f;", v)
		}
		sb.WriteString(s.Record.Label)
		sb.WriteString("\n")
	}
	path := filepath.Join(dir, fmt.Sprintf("wine-%d.csv", seed))
	require.NoError(t, os.WriteFile(path, []byte(sb.String()), 0o644))
	return path
}

func recordArg(s data.Sample) string {
	parts := make([]string, 0, len(data.WineFeatures))
	for _, f := range data.WineFeatures {
		parts = append(parts, fmt.Sprintf("%s=%g", f, s.Record.Fields[f]))
	}
	return strings.Join(parts, ",")
}

func TestTrainPredictSamples(t *testing.T) {
	dir := t.TempDir()
	train := writeWineFile(t, dir, 30, 1)
	test := writeWineFile(t, dir, 12, 2)
	model := filepath.Join(dir, "wine.model")
	metrics := filepath.Join(dir, "metrics.csv")

	out, err := run(t, "train",
		"--train-data", train, "--test-data", test, "--model-out", model,
		"--metrics-out", metrics, "--max-epochs", "500", "--no-progress")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Micro accuracy")
	assert.Contains(t, out, "saved to "+model)
	assert.FileExists(t, model)
	assert.FileExists(t, metrics)

	samples := data.WineSamples()
	out, err = run(t, "predict", "--model", model, "--record", recordArg(samples[1]))
	require.NoError(t, err, out)
	assert.Contains(t, out, "Predicted: 7")

	out, err = run(t, "samples", "--model", model)
	require.NoError(t, err, out)
	assert.Contains(t, out, "Wine1: actual 6, predicted 6")
	assert.Contains(t, out, "Wine2: actual 7, predicted 7")
	assert.Contains(t, out, "Wine3: actual 6, predicted 6")

	out, err = run(t, "evaluate", "--model", model, "--test-data", test)
	require.NoError(t, err, out)
	assert.Contains(t, out, "Log loss")
}

func TestCrossValidationCommand(t *testing.T) {
	dir := t.TempDir()
	train := writeWineFile(t, dir, 30, 3)
	out, err := run(t, "cv", "--train-data", train, "--folds", "3")
	require.NoError(t, err, out)
	assert.Contains(t, out, "fold 3:")
	assert.Contains(t, out, "Mean:")
}

func TestExitCodes(t *testing.T) {
	dir := t.TempDir()

	_, err := run(t, "predict", "--model", filepath.Join(dir, "absent.model"), "--record", recordArg(data.WineSamples()[0]))
	assert.Equal(t, exitNotFound, exitCode(err))

	_, err = run(t, "train", "--train-data", filepath.Join(dir, "absent.csv"), "--model-out", filepath.Join(dir, "m"), "--no-progress")
	assert.Equal(t, exitIO, exitCode(err))

	bad := filepath.Join(dir, "bad.csv")
	require.NoError(t, os.WriteFile(bad, []byte("a;b\n1;2\n"), 0o644))
	_, err = run(t, "train", "--train-data", bad, "--model-out", filepath.Join(dir, "m"), "--no-progress")
	assert.Equal(t, exitParse, exitCode(err))

	corrupt := filepath.Join(dir, "corrupt.model")
	require.NoError(t, os.WriteFile(corrupt, []byte("not a model at all"), 0o644))
	_, err = run(t, "samples", "--model", corrupt)
	assert.Equal(t, exitCorruptModel, exitCode(err))

	_, err = run(t, "predict", "--model", corrupt, "--record", "colour=3")
	assert.Equal(t, exitSchema, exitCode(err))

	assert.Equal(t, exitOK, exitCode(nil))
	assert.Equal(t, exitGeneral, exitCode(fmt.Errorf("plain")))
	assert.Equal(t, exitUnknownLabel, exitCode(mlerr.New(mlerr.KindUnknownLabel, "x", "y")))
	assert.Equal(t, exitData, exitCode(fmt.Errorf("wrapped: %w", mlerr.New(mlerr.KindData, "x", "y"))))
}
