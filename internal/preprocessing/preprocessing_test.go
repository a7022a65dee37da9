package preprocessing

import (
	"errors"
	"testing"

	"github.com/s3ba-b/SVM-for-Classification/internal/data"
	"github.com/s3ba-b/SVM-for-Classification/internal/mlerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func labelled(label string, fields map[string]float32) data.Record {
	return data.Record{Fields: fields, Label: label, HasLabel: true, Source: "test"}
}

func TestLabelKeyMapFirstSeenOrder(t *testing.T) {
	records := []data.Record{
		labelled("6", nil), labelled("5", nil), labelled("6", nil), labelled("7", nil), labelled("5", nil),
	}
	keys := BuildLabelKeyMap(records)

	assert.Equal(t, []string{"6", "5", "7"}, keys.Labels())
	assert.Equal(t, 3, keys.Len())
	for i, label := range keys.Labels() {
		idx, err := keys.Index(label)
		require.NoError(t, err)
		assert.Equal(t, i, idx)
	}

	_, err := keys.Index("9")
	assert.True(t, errors.Is(err, mlerr.ErrUnknownLabel))
	_, err = keys.Label(3)
	assert.True(t, errors.Is(err, mlerr.ErrUnknownLabel))

	encoded, err := keys.Transform([]string{"7", "6"})
	require.NoError(t, err)
	assert.Equal(t, []int{2, 0}, encoded)
	decoded, err := keys.InverseTransform(encoded)
	require.NoError(t, err)
	assert.Equal(t, []string{"7", "6"}, decoded)
}

func TestNewLabelKeyMapRejectsDuplicates(t *testing.T) {
	_, err := NewLabelKeyMap([]string{"a", "b", "a"})
	assert.Error(t, err)

	keys, err := NewLabelKeyMap([]string{"Iris-setosa", "Iris-versicolor"})
	require.NoError(t, err)
	idx, err := keys.Index("Iris-versicolor")
	require.NoError(t, err)
	assert.Equal(t, 1, idx)
}

func TestVectorizerColumnOrder(t *testing.T) {
	v := NewVectorizer([]string{"b", "a"})
	x, err := v.Vectorize(labelled("1", map[string]float32{"a": 1, "b": 2, "c": 3}))
	require.NoError(t, err)
	assert.Equal(t, []float32{2, 1}, x)

	_, err = v.Vectorize(labelled("1", map[string]float32{"a": 1}))
	assert.True(t, errors.Is(err, mlerr.ErrSchema))

	assert.NoError(t, v.CheckColumns([]string{"b", "a"}))
	assert.True(t, errors.Is(v.CheckColumns([]string{"a", "b"}), mlerr.ErrSchema))
	assert.True(t, errors.Is(v.CheckColumns([]string{"b"}), mlerr.ErrSchema))
}

func TestVectorizeAll(t *testing.T) {
	records := []data.Record{
		labelled("x", map[string]float32{"f": 1}),
		labelled("y", map[string]float32{"f": 2}),
	}
	keys := BuildLabelKeyMap(records)
	X, y, err := NewVectorizer([]string{"f"}).VectorizeAll(records, keys)
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1}, {2}}, X)
	assert.Equal(t, []int{0, 1}, y)

	other := []data.Record{labelled("z", map[string]float32{"f": 3})}
	_, _, err = NewVectorizer([]string{"f"}).VectorizeAll(other, keys)
	assert.True(t, errors.Is(err, mlerr.ErrUnknownLabel))
}

func TestNormalizerMinMax(t *testing.T) {
	X := [][]float32{{1, 5, 7}, {3, 5, 9}, {2, 5, 8}}
	n, err := FitNormalizer(NormalizeMinMax, X)
	require.NoError(t, err)

	out := n.Transform(X)
	assert.Equal(t, []float32{0, 0, 0}, out[0])
	assert.Equal(t, []float32{1, 0, 1}, out[1])
	assert.InDelta(t, 0.5, out[2][0], 1e-6)
	assert.Equal(t, float32(0), out[2][1], "constant feature maps to zero")
	assert.NoError(t, n.Validate(3))
	assert.Error(t, n.Validate(2))
}

func TestNormalizerStandard(t *testing.T) {
	X := [][]float32{{1, 4}, {3, 4}}
	n, err := FitNormalizer(NormalizeStandard, X)
	require.NoError(t, err)
	out := n.Transform(X)
	assert.InDelta(t, -1, out[0][0], 1e-6)
	assert.InDelta(t, 1, out[1][0], 1e-6)
	assert.Equal(t, float32(0), out[0][1])
}

func TestNormalizerNoneCopies(t *testing.T) {
	var n *Normalizer
	x := []float32{1, 2}
	out := n.Apply(x)
	out[0] = 9
	assert.Equal(t, float32(1), x[0])

	kind, err := ParseNormalizerKind("normalized")
	require.NoError(t, err)
	assert.Equal(t, NormalizeMinMax, kind)
	_, err = ParseNormalizerKind("log")
	assert.Error(t, err)
}
