package evaluation

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/rs/zerolog/log"
	"github.com/s3ba-b/SVM-for-Classification/internal/data"
	"github.com/s3ba-b/SVM-for-Classification/internal/models"
	"github.com/s3ba-b/SVM-for-Classification/internal/preprocessing"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"
)

type CrossValidator struct {
	NFolds     int
	Stratified bool
	Shuffle    bool
	RandomSeed int64
	MaxWorkers int
	Normalize  preprocessing.NormalizerKind
}

func NewCrossValidator(nFolds int, stratified bool) *CrossValidator {
	return &CrossValidator{
		NFolds:     nFolds,
		Stratified: stratified,
		Shuffle:    true,
		RandomSeed: 42,
		MaxWorkers: 4,
		Normalize:  preprocessing.NormalizeMinMax,
	}
}

type FoldResult struct {
	Fold      int
	TrainSize int
	TestSize  int
	Epochs    int
	Metrics   *Metrics
	Warning   error
}

type CVResult struct {
	Folds         []FoldResult
	MeanAccuracy  float64
	StdAccuracy   float64
	MeanMacro     float64
	MeanLogLoss   float64
	StdLogLoss    float64
	WarningsCount int
}

// CrossValidate trains one model per fold and evaluates it on the held-out
// records. Folds run concurrently; each fold fits its own normalizer on its
// training part and uses seed config.Seed+fold, so results do not depend on
// scheduling. The label map is built from all records so every fold scores
// the same classes.
func (cv *CrossValidator) CrossValidate(
	ctx context.Context,
	records []data.Record,
	features []string,
	config models.ModelConfig,
) (*CVResult, error) {
	keys := preprocessing.BuildLabelKeyMap(records)
	vec := preprocessing.NewVectorizer(features)
	X, y, err := vec.VectorizeAll(records, keys)
	if err != nil {
		return nil, err
	}

	folds, err := cv.KFoldSplit(len(X), y)
	if err != nil {
		return nil, err
	}

	results := make([]FoldResult, len(folds))
	g, ctx := errgroup.WithContext(ctx)
	workers := cv.MaxWorkers
	if workers <= 0 {
		workers = 1
	}
	g.SetLimit(workers)

	for i, testIndices := range folds {
		i, testIndices := i, testIndices
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			res, err := cv.evaluateFold(X, y, keys, vec.Features(), config, i, testIndices)
			if err != nil {
				return fmt.Errorf("fold %d failed: %w", i, err)
			}
			results[i] = *res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	accuracies := make([]float64, len(results))
	macros := make([]float64, len(results))
	losses := make([]float64, len(results))
	out := &CVResult{Folds: results}
	for i, r := range results {
		accuracies[i] = r.Metrics.MicroAccuracy
		macros[i] = r.Metrics.MacroAccuracy
		losses[i] = r.Metrics.LogLoss
		if r.Warning != nil {
			out.WarningsCount++
		}
	}
	out.MeanAccuracy, out.StdAccuracy = stat.MeanStdDev(accuracies, nil)
	out.MeanLogLoss, out.StdLogLoss = stat.MeanStdDev(losses, nil)
	out.MeanMacro = stat.Mean(macros, nil)
	return out, nil
}

func (cv *CrossValidator) evaluateFold(
	X [][]float32,
	y []int,
	keys *preprocessing.LabelKeyMap,
	features []string,
	config models.ModelConfig,
	fold int,
	testIndices []int,
) (*FoldResult, error) {

	testSet := make(map[int]bool)
	for _, idx := range testIndices {
		testSet[idx] = true
	}

	var XTrain, XTest [][]float32
	var yTrain, yTest []int
	for i := range X {
		if testSet[i] {
			XTest = append(XTest, X[i])
			yTest = append(yTest, y[i])
		} else {
			XTrain = append(XTrain, X[i])
			yTrain = append(yTrain, y[i])
		}
	}

	norm, err := preprocessing.FitNormalizer(cv.Normalize, XTrain)
	if err != nil {
		return nil, err
	}

	config.Seed += int64(fold)
	config.OnEpoch = nil
	trainer, err := models.CreateTrainer(config)
	if err != nil {
		return nil, err
	}
	res, err := trainer.Fit(models.TrainingSet{
		X:          XTrain,
		Y:          yTrain,
		Labels:     keys,
		Features:   features,
		Normalizer: norm,
	})
	if err != nil {
		return nil, err
	}

	ev := NewEvaluator()
	ev.Prior = ClassPrior(yTrain, keys.Len())
	metrics, err := ev.Evaluate(res.Model, XTest, yTest)
	if err != nil {
		return nil, err
	}

	log.Debug().
		Int("fold", fold).
		Int("train", len(XTrain)).
		Int("test", len(XTest)).
		Float64("microAccuracy", metrics.MicroAccuracy).
		Float64("logLoss", metrics.LogLoss).
		Msg("fold evaluated")

	return &FoldResult{
		Fold:      fold,
		TrainSize: len(XTrain),
		TestSize:  len(XTest),
		Epochs:    res.Epochs,
		Metrics:   metrics,
		Warning:   res.Warning,
	}, nil
}

// KFoldSplit returns the test indices of each fold. With Stratified set the
// indices of every class are dealt round-robin across folds.
func (cv *CrossValidator) KFoldSplit(n int, y []int) ([][]int, error) {
	if cv.NFolds < 2 || cv.NFolds > n {
		return nil, fmt.Errorf("invalid number of folds: %d (must be between 2 and %d)", cv.NFolds, n)
	}

	rng := rand.New(rand.NewSource(cv.RandomSeed))
	var groups [][]int
	if cv.Stratified {
		pos := make(map[int]int)
		for i, c := range y {
			g, ok := pos[c]
			if !ok {
				g = len(groups)
				pos[c] = g
				groups = append(groups, nil)
			}
			groups[g] = append(groups[g], i)
		}
	} else {
		all := make([]int, n)
		for i := range all {
			all[i] = i
		}
		groups = [][]int{all}
	}

	folds := make([][]int, cv.NFolds)
	next := 0
	for _, indices := range groups {
		if cv.Shuffle {
			rng.Shuffle(len(indices), func(i, j int) {
				indices[i], indices[j] = indices[j], indices[i]
			})
		}
		for _, idx := range indices {
			folds[next] = append(folds[next], idx)
			next = (next + 1) % cv.NFolds
		}
	}

	return folds, nil
}
