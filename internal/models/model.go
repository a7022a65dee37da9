package models

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/s3ba-b/SVM-for-Classification/internal/preprocessing"
)

// Model is a linear multiclass discriminant: one weight vector and one bias
// per class. Once built it is never mutated, so concurrent scoring is safe.
type Model struct {
	Weights    [][]float32
	Biases     []float32
	Labels     *preprocessing.LabelKeyMap
	Features   []string
	Normalizer *preprocessing.Normalizer
}

func (m *Model) NumClasses() int {
	return len(m.Biases)
}

func (m *Model) NumFeatures() int {
	return len(m.Features)
}

func (m *Model) Validate() error {
	if m.Labels == nil {
		return fmt.Errorf("model has no label map")
	}
	if len(m.Weights) != len(m.Biases) || len(m.Biases) != m.Labels.Len() {
		return fmt.Errorf("model has %d weight rows, %d biases and %d labels",
			len(m.Weights), len(m.Biases), m.Labels.Len())
	}
	if m.Labels.Len() < 2 {
		return fmt.Errorf("model has %d classes", m.Labels.Len())
	}
	for c, w := range m.Weights {
		if len(w) != len(m.Features) {
			return fmt.Errorf("weight row %d has %d entries for %d features", c, len(w), len(m.Features))
		}
	}
	return m.Normalizer.Validate(len(m.Features))
}

// Decision returns w_c·x + b_c for every class. x is a raw feature vector
// in Features order; normalization is applied here.
func (m *Model) Decision(x []float32) []float32 {
	xn := m.Normalizer.Apply(x)
	out := make([]float32, len(m.Weights))
	for c, w := range m.Weights {
		out[c] = float32(dot(w, xn) + float64(m.Biases[c]))
	}
	return out
}

// Probabilities returns the soft-max of Decision(x).
func (m *Model) Probabilities(x []float32) []float32 {
	return Softmax(m.Decision(x))
}

func dot(w, x []float32) float64 {
	sum := 0.0
	for j, v := range x {
		sum += float64(w[j]) * float64(v)
	}
	return sum
}

// Softmax normalizes raw scores into probabilities. The max is subtracted
// before exponentiation to avoid overflow.
func Softmax(scores []float32) []float32 {
	out := make([]float32, len(scores))
	if len(scores) == 0 {
		return out
	}
	z := make([]float64, len(scores))
	for i, s := range scores {
		z[i] = float64(s)
	}
	p := softmax64(z)
	for i, v := range p {
		out[i] = float32(v)
	}
	return out
}

func softmax64(z []float64) []float64 {
	maxZ := z[0]
	for _, v := range z[1:] {
		if v > maxZ {
			maxZ = v
		}
	}
	p := make([]float64, len(z))
	sum := 0.0
	for i, v := range z {
		p[i] = math.Exp(v - maxZ)
		sum += p[i]
	}
	for i := range p {
		p[i] /= sum
	}
	return p
}

func logSumExp(z []float64) float64 {
	maxZ := z[0]
	for _, v := range z[1:] {
		if v > maxZ {
			maxZ = v
		}
	}
	sum := 0.0
	for _, v := range z {
		sum += math.Exp(v - maxZ)
	}
	return maxZ + math.Log(sum)
}

// RandomModel returns an untrained model of the same shape with weights
// drawn from N(0, scale²). It serves as a baseline for the trained model.
func RandomModel(labels *preprocessing.LabelKeyMap, features []string, normalizer *preprocessing.Normalizer, seed int64, scale float64) *Model {
	rng := rand.New(rand.NewSource(seed))
	m := &Model{
		Weights:    make([][]float32, labels.Len()),
		Biases:     make([]float32, labels.Len()),
		Labels:     labels,
		Features:   append([]string(nil), features...),
		Normalizer: normalizer,
	}
	for c := range m.Weights {
		m.Weights[c] = make([]float32, len(features))
		for j := range m.Weights[c] {
			m.Weights[c][j] = float32(rng.NormFloat64() * scale)
		}
		m.Biases[c] = float32(rng.NormFloat64() * scale)
	}
	return m
}
