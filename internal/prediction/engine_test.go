package prediction

import (
	"context"
	"errors"
	"testing"

	"github.com/s3ba-b/SVM-for-Classification/internal/data"
	"github.com/s3ba-b/SVM-for-Classification/internal/mlerr"
	"github.com/s3ba-b/SVM-for-Classification/internal/models"
	"github.com/s3ba-b/SVM-for-Classification/internal/preprocessing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func twoFeatureModel(t *testing.T, biases []float32) *models.Model {
	t.Helper()
	keys, err := preprocessing.NewLabelKeyMap([]string{"low", "mid", "high"})
	require.NoError(t, err)
	return &models.Model{
		Weights:  [][]float32{{-1, 0}, {0, 0}, {1, 0}},
		Biases:   biases,
		Labels:   keys,
		Features: []string{"a", "b"},
	}
}

func record(fields map[string]float32) data.Record {
	return data.Record{Fields: fields}
}

func TestPredictScoresSumToOne(t *testing.T) {
	engine, err := NewEngine(twoFeatureModel(t, []float32{0, 0, 0}))
	require.NoError(t, err)

	scores, err := engine.Predict(record(map[string]float32{"a": 2, "b": 5, "extra": 1}))
	require.NoError(t, err)
	require.Len(t, scores, 3)

	sum := float32(0)
	for _, s := range scores {
		sum += s
	}
	assert.InDelta(t, 1, sum, 1e-6)

	idx, label := engine.ArgMaxLabel(scores)
	assert.Equal(t, 2, idx)
	assert.Equal(t, "high", label)
}

func TestPredictMissingColumn(t *testing.T) {
	engine, err := NewEngine(twoFeatureModel(t, []float32{0, 0, 0}))
	require.NoError(t, err)

	_, err = engine.Predict(record(map[string]float32{"a": 1}))
	require.Error(t, err)
	assert.True(t, errors.Is(err, mlerr.ErrSchema))
	assert.Contains(t, err.Error(), `"b"`)
}

func TestArgMaxLabelTie(t *testing.T) {
	engine, err := NewEngine(twoFeatureModel(t, []float32{0, 0, 0}))
	require.NoError(t, err)

	idx, label := engine.ArgMaxLabel(Scores{0.25, 0.375, 0.375})
	assert.Equal(t, 1, idx)
	assert.Equal(t, "mid", label)

	scores, err := engine.Predict(record(map[string]float32{"a": 0, "b": 0}))
	require.NoError(t, err)
	idx, label = engine.ArgMaxLabel(scores)
	assert.Equal(t, 0, idx)
	assert.Equal(t, "low", label)
}

func TestClassifyAndBatch(t *testing.T) {
	engine, err := NewEngine(twoFeatureModel(t, []float32{0, 0.5, 0}))
	require.NoError(t, err)

	records := []data.Record{
		record(map[string]float32{"a": -3, "b": 0}),
		record(map[string]float32{"a": 0, "b": 0}),
		record(map[string]float32{"a": 3, "b": 0}),
	}
	results, err := engine.PredictBatch(context.Background(), records)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "low", results[0].Label)
	assert.Equal(t, "mid", results[1].Label)
	assert.Equal(t, "high", results[2].Label)
	assert.Equal(t, []string{"low", "mid", "high"}, []string{
		results[2].Scores[0].Label, results[2].Scores[1].Label, results[2].Scores[2].Label,
	})

	records = append(records, record(map[string]float32{"b": 1}))
	_, err = engine.PredictBatch(context.Background(), records)
	assert.True(t, errors.Is(err, mlerr.ErrSchema))
}

func TestNewEngineRejectsInvalidModel(t *testing.T) {
	_, err := NewEngine(twoFeatureModel(t, []float32{0, 0}))
	assert.Error(t, err)
}
