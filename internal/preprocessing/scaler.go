package preprocessing

import (
	"fmt"
	"math"
	"strings"
)

type NormalizerKind string

const (
	NormalizeNone     NormalizerKind = "none"
	NormalizeMinMax   NormalizerKind = "minmax"
	NormalizeStandard NormalizerKind = "standard"
)

func ParseNormalizerKind(s string) (NormalizerKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none", "raw":
		return NormalizeNone, nil
	case "minmax", "normalized":
		return NormalizeMinMax, nil
	case "standard", "standardized":
		return NormalizeStandard, nil
	default:
		return "", fmt.Errorf("unknown normalization: %s", s)
	}
}

// Normalizer maps every feature to (x - Offset[j]) * Scale[j]. The
// parameters are float32 so a model loaded from disk normalizes with
// exactly the same arithmetic as the one that was trained.
type Normalizer struct {
	Kind   NormalizerKind
	Offset []float32
	Scale  []float32
}

func FitNormalizer(kind NormalizerKind, X [][]float32) (*Normalizer, error) {
	if len(X) == 0 {
		return nil, fmt.Errorf("empty dataset")
	}
	nFeatures := len(X[0])
	n := &Normalizer{
		Kind:   kind,
		Offset: make([]float32, nFeatures),
		Scale:  make([]float32, nFeatures),
	}

	switch kind {
	case NormalizeMinMax:
		n.fitMinMax(X)
	case NormalizeStandard:
		n.fitStandard(X)
	case NormalizeNone:
		for j := range n.Scale {
			n.Scale[j] = 1
		}
	default:
		return nil, fmt.Errorf("unknown normalization: %s", kind)
	}
	return n, nil
}

func (n *Normalizer) fitMinMax(X [][]float32) {
	for j := range n.Offset {
		lo, hi := X[0][j], X[0][j]
		for i := 1; i < len(X); i++ {
			if X[i][j] < lo {
				lo = X[i][j]
			}
			if X[i][j] > hi {
				hi = X[i][j]
			}
		}
		n.Offset[j] = lo
		if hi > lo {
			n.Scale[j] = float32(1 / (float64(hi) - float64(lo)))
		}
	}
}

func (n *Normalizer) fitStandard(X [][]float32) {
	nSamples := float64(len(X))
	for j := range n.Offset {
		sum := 0.0
		for i := range X {
			sum += float64(X[i][j])
		}
		mean := sum / nSamples

		variance := 0.0
		for i := range X {
			diff := float64(X[i][j]) - mean
			variance += diff * diff
		}
		std := math.Sqrt(variance / nSamples)

		n.Offset[j] = float32(mean)
		n.Scale[j] = 1
		if std > 0 {
			n.Scale[j] = float32(1 / std)
		}
	}
}

// Apply returns a normalized copy of x. A nil normalizer copies x as is.
func (n *Normalizer) Apply(x []float32) []float32 {
	out := make([]float32, len(x))
	if n == nil || n.Kind == NormalizeNone {
		copy(out, x)
		return out
	}
	for j, v := range x {
		out[j] = (v - n.Offset[j]) * n.Scale[j]
	}
	return out
}

func (n *Normalizer) Transform(X [][]float32) [][]float32 {
	result := make([][]float32, len(X))
	for i := range X {
		result[i] = n.Apply(X[i])
	}
	return result
}

func (n *Normalizer) Validate(nFeatures int) error {
	if n == nil {
		return nil
	}
	if _, err := ParseNormalizerKind(string(n.Kind)); err != nil {
		return err
	}
	if n.Kind == NormalizeNone {
		return nil
	}
	if len(n.Offset) != nFeatures || len(n.Scale) != nFeatures {
		return fmt.Errorf("normalizer has %d/%d parameters for %d features", len(n.Offset), len(n.Scale), nFeatures)
	}
	return nil
}
