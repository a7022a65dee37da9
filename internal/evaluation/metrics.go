package evaluation

import (
	"fmt"
	"math"
	"strings"

	"github.com/s3ba-b/SVM-for-Classification/internal/data"
	"github.com/s3ba-b/SVM-for-Classification/internal/mlerr"
	"github.com/s3ba-b/SVM-for-Classification/internal/models"
	"github.com/s3ba-b/SVM-for-Classification/internal/preprocessing"
	"gonum.org/v1/gonum/floats"
)

// DefaultLogLossFloor keeps -log(p) finite when a class gets zero probability.
const DefaultLogLossFloor = 1e-15

type Metrics struct {
	MicroAccuracy    float64        `json:"micro_accuracy"`
	MacroAccuracy    float64        `json:"macro_accuracy"`
	LogLoss          float64        `json:"log_loss"`
	LogLossReduction float64        `json:"log_loss_reduction"`
	TopK             int            `json:"top_k,omitempty"`
	TopKAccuracy     float64        `json:"top_k_accuracy,omitempty"`
	PerClassLogLoss  []float64      `json:"per_class_log_loss"`
	PerClass         []ClassMetrics `json:"per_class"`
	ConfusionMatrix  [][]int        `json:"confusion_matrix"`
	NumSamples       int            `json:"num_samples"`
	NumClasses       int            `json:"num_classes"`
}

type ClassMetrics struct {
	Label     string  `json:"label"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	LogLoss   float64 `json:"log_loss"`
	Support   int     `json:"support"`
}

type Evaluator struct {
	LogLossFloor float64
	TopK         int
	// Prior is the class distribution used for the log-loss reduction,
	// normally the training set frequencies. Nil means the test set's.
	Prior []float64
}

func NewEvaluator() *Evaluator {
	return &Evaluator{LogLossFloor: DefaultLogLossFloor}
}

// ClassPrior returns relative class frequencies of y.
func ClassPrior(y []int, numClasses int) []float64 {
	prior := make([]float64, numClasses)
	for _, c := range y {
		if c >= 0 && c < numClasses {
			prior[c]++
		}
	}
	if len(y) > 0 {
		floats.Scale(1/float64(len(y)), prior)
	}
	return prior
}

// EvaluateRecords vectorizes labelled records with the model's own column
// order and label map, then evaluates them.
func (e *Evaluator) EvaluateRecords(model *models.Model, records []data.Record) (*Metrics, error) {
	vec := preprocessing.NewVectorizer(model.Features)
	X, y, err := vec.VectorizeAll(records, model.Labels)
	if err != nil {
		return nil, err
	}
	return e.Evaluate(model, X, y)
}

// Evaluate scores every example and accumulates the metrics. The model is
// only read.
func (e *Evaluator) Evaluate(model *models.Model, X [][]float32, y []int) (*Metrics, error) {
	if len(X) == 0 {
		return nil, mlerr.New(mlerr.KindData, "evaluate", "no test examples")
	}
	if len(X) != len(y) {
		return nil, mlerr.Newf(mlerr.KindData, "evaluate", "%d feature vectors but %d labels", len(X), len(y))
	}
	floor := e.LogLossFloor
	if floor <= 0 {
		floor = DefaultLogLossFloor
	}

	numClasses := model.NumClasses()
	confusion := make([][]int, numClasses)
	for i := range confusion {
		confusion[i] = make([]int, numClasses)
	}
	classLoss := make([]float64, numClasses)
	support := make([]int, numClasses)
	totalLoss := 0.0
	correct, topKHits := 0, 0

	for i, x := range X {
		truth := y[i]
		if truth < 0 || truth >= numClasses {
			return nil, mlerr.Newf(mlerr.KindUnknownLabel, "evaluate", "example %d has class %d outside [0,%d)", i, truth, numClasses)
		}
		if len(x) != model.NumFeatures() {
			return nil, mlerr.Newf(mlerr.KindSchema, "evaluate", "example %d has %d features, model expects %d", i, len(x), model.NumFeatures())
		}
		probs := model.Probabilities(x)
		pred := ArgMax(probs)

		confusion[truth][pred]++
		support[truth]++
		if pred == truth {
			correct++
		}
		if e.TopK > 0 && rankOf(probs, truth) < e.TopK {
			topKHits++
		}

		loss := -math.Log(math.Max(float64(probs[truth]), floor))
		totalLoss += loss
		classLoss[truth] += loss
	}

	n := float64(len(X))
	m := &Metrics{
		MicroAccuracy:   float64(correct) / n,
		LogLoss:         totalLoss / n,
		PerClassLogLoss: make([]float64, numClasses),
		PerClass:        make([]ClassMetrics, numClasses),
		ConfusionMatrix: confusion,
		NumSamples:      len(X),
		NumClasses:      numClasses,
		TopK:            e.TopK,
	}
	if e.TopK > 0 {
		m.TopKAccuracy = float64(topKHits) / n
	}

	labels := model.Labels.Labels()
	recalls := make([]float64, 0, numClasses)
	for c := 0; c < numClasses; c++ {
		predicted := 0
		for r := 0; r < numClasses; r++ {
			predicted += confusion[r][c]
		}
		cm := ClassMetrics{
			Label:     labels[c],
			Precision: safeDivide(float64(confusion[c][c]), float64(predicted)),
			Recall:    safeDivide(float64(confusion[c][c]), float64(support[c])),
			LogLoss:   safeDivide(classLoss[c], float64(support[c])),
			Support:   support[c],
		}
		m.PerClass[c] = cm
		m.PerClassLogLoss[c] = cm.LogLoss
		if support[c] > 0 {
			recalls = append(recalls, cm.Recall)
		}
	}
	m.MacroAccuracy = safeDivide(floats.Sum(recalls), float64(len(recalls)))

	prior := e.Prior
	if len(prior) != numClasses {
		prior = ClassPrior(y, numClasses)
	}
	priorLoss := 0.0
	for c, s := range support {
		if s > 0 {
			priorLoss -= float64(s) * math.Log(math.Max(prior[c], floor))
		}
	}
	priorLoss /= n
	if priorLoss > 0 {
		m.LogLossReduction = (priorLoss - m.LogLoss) / priorLoss
	}

	return m, nil
}

// ArgMax returns the index of the highest score; the lowest index wins a tie.
func ArgMax(scores []float32) int {
	best := 0
	for c := 1; c < len(scores); c++ {
		if scores[c] > scores[best] {
			best = c
		}
	}
	return best
}

func rankOf(scores []float32, c int) int {
	rank := 0
	for k, s := range scores {
		if s > scores[c] || (s == scores[c] && k < c) {
			rank++
		}
	}
	return rank
}

func safeDivide(numerator, denominator float64) float64 {
	if denominator == 0 {
		return 0.0
	}
	result := numerator / denominator
	if math.IsNaN(result) || math.IsInf(result, 0) {
		return 0.0
	}
	return result
}

func (m *Metrics) FormatMetrics() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Micro accuracy:     %.4f\n", m.MicroAccuracy)
	fmt.Fprintf(&sb, "Macro accuracy:     %.4f\n", m.MacroAccuracy)
	fmt.Fprintf(&sb, "Log loss:           %.4f\n", m.LogLoss)
	fmt.Fprintf(&sb, "Log loss reduction: %.4f\n", m.LogLossReduction)
	if m.TopK > 0 {
		fmt.Fprintf(&sb, "Top-%d accuracy:     %.4f\n", m.TopK, m.TopKAccuracy)
	}
	for _, c := range m.PerClass {
		fmt.Fprintf(&sb, "  class %-16s support %-5d precision %.4f recall %.4f log-loss %.4f\n",
			c.Label, c.Support, c.Precision, c.Recall, c.LogLoss)
	}
	return sb.String()
}
