package persistence

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/s3ba-b/SVM-for-Classification/internal/data"
	"github.com/s3ba-b/SVM-for-Classification/internal/evaluation"
	"github.com/s3ba-b/SVM-for-Classification/internal/mlerr"
	"github.com/s3ba-b/SVM-for-Classification/internal/models"
	"github.com/s3ba-b/SVM-for-Classification/internal/preprocessing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func trainedWine(t *testing.T) (*models.Model, *models.TrainResult, [][]float32, []int) {
	t.Helper()
	var records []data.Record
	for _, s := range data.WineSamples() {
		records = append(records, s.Record)
	}
	keys := preprocessing.BuildLabelKeyMap(records)
	vec := preprocessing.NewVectorizer(data.WineFeatures)
	X, y, err := vec.VectorizeAll(records, keys)
	require.NoError(t, err)
	norm, err := preprocessing.FitNormalizer(preprocessing.NormalizeMinMax, X)
	require.NoError(t, err)

	res, err := models.NewSDCATrainer(models.DefaultSDCAOptions()).Fit(models.TrainingSet{
		X: X, Y: y, Labels: keys, Features: vec.Features(), Normalizer: norm,
	})
	require.NoError(t, err)
	return res.Model, res, X, y
}

func TestSaveLoadRoundTrip(t *testing.T) {
	model, res, X, y := trainedWine(t)
	metrics, err := evaluation.NewEvaluator().Evaluate(model, X, y)
	require.NoError(t, err)

	bundle := NewModelBundle(model)
	bundle.Metadata.Dataset = "samples"
	bundle.Metadata.Trainer = TrainerInfo{Name: "SdcaMaximumEntropy", L2: 1e-3, Epochs: res.Epochs, Gap: res.Gap, Converged: res.Converged}
	bundle.Metadata.Metrics = metrics

	path := filepath.Join(t.TempDir(), "nested", "wine.model")
	require.NoError(t, bundle.Save(path))
	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))

	loaded, err := LoadModelBundle(path)
	require.NoError(t, err)

	assert.Equal(t, model.Weights, loaded.Model.Weights)
	assert.Equal(t, model.Biases, loaded.Model.Biases)
	assert.Equal(t, model.Features, loaded.Model.Features)
	assert.Equal(t, model.Labels.Labels(), loaded.Model.Labels.Labels())
	assert.Equal(t, model.Normalizer, loaded.Model.Normalizer)
	assert.Equal(t, bundle.Metadata.ID, loaded.Metadata.ID)
	assert.True(t, bundle.Metadata.CreatedAt.Equal(loaded.Metadata.CreatedAt))
	assert.Equal(t, res.Epochs, loaded.Metadata.Trainer.Epochs)
	require.NotNil(t, loaded.Metadata.Metrics)
	assert.Equal(t, metrics.MicroAccuracy, loaded.Metadata.Metrics.MicroAccuracy)

	for _, x := range X {
		assert.Equal(t, model.Probabilities(x), loaded.Model.Probabilities(x))
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := LoadModelBundle(filepath.Join(t.TempDir(), "absent.model"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, mlerr.ErrNotFound))
	assert.Equal(t, mlerr.KindNotFound, mlerr.KindOf(err))
}

func TestLoadCorruptFile(t *testing.T) {
	model, _, _, _ := trainedWine(t)
	raw, err := NewModelBundle(model).Encode()
	require.NoError(t, err)

	flip := func(i int) []byte {
		out := append([]byte(nil), raw...)
		out[i] ^= 0xff
		return out
	}

	cases := map[string][]byte{
		"payload byte": flip(len(raw) - 5),
		"magic":        flip(0),
		"version":      flip(8),
		"length":       flip(14),
		"truncated":    raw[:len(raw)-3],
		"short":        raw[:5],
		"empty":        {},
	}
	dir := t.TempDir()
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name+".model")
			require.NoError(t, os.WriteFile(path, content, 0o644))
			_, err := LoadModelBundle(path)
			require.Error(t, err)
			assert.True(t, errors.Is(err, mlerr.ErrCorruptModel), err.Error())
			assert.Contains(t, err.Error(), path)
		})
	}
}

func TestEncodeRejectsInvalidModel(t *testing.T) {
	model, _, _, _ := trainedWine(t)
	model.Biases = model.Biases[:1]
	_, err := NewModelBundle(model).Encode()
	assert.Error(t, err)
}

func TestSaveMetadata(t *testing.T) {
	model, _, _, _ := trainedWine(t)
	bundle := NewModelBundle(model)
	bundle.Metadata.Trainer.Name = "SdcaMaximumEntropy"

	path := filepath.Join(t.TempDir(), "meta.yaml")
	require.NoError(t, bundle.SaveMetadata(path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, yaml.Unmarshal(raw, &doc))
	assert.Equal(t, bundle.Metadata.ID, doc["id"])
	assert.Equal(t, "minmax", doc["normalization"])
	assert.Equal(t, []any{"6", "7"}, doc["labels"])
}
