// Package pipeline runs the training workflow as an ordered list of named
// steps sharing one State.
package pipeline

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/s3ba-b/SVM-for-Classification/internal/config"
	"github.com/s3ba-b/SVM-for-Classification/internal/data"
	"github.com/s3ba-b/SVM-for-Classification/internal/evaluation"
	"github.com/s3ba-b/SVM-for-Classification/internal/mlerr"
	"github.com/s3ba-b/SVM-for-Classification/internal/models"
	"github.com/s3ba-b/SVM-for-Classification/internal/persistence"
	"github.com/s3ba-b/SVM-for-Classification/internal/preprocessing"
	"go.uber.org/multierr"
)

type Step interface {
	Name() string
	Run(ctx context.Context, st *State) error
}

type StepTiming struct {
	Step    string
	Elapsed time.Duration
}

// State is filled in step by step. Inputs are Conf and the paths; every
// other field is produced by one of the steps.
type State struct {
	Conf         *config.Conf
	TrainPath    string
	TestPath     string
	ModelPath    string
	MetadataPath string
	OnEpoch      func(models.EpochStats)

	Schema       data.Schema
	TrainRecords []data.Record
	TestRecords  []data.Record
	Keys         *preprocessing.LabelKeyMap
	Vectorizer   *preprocessing.Vectorizer
	Normalizer   *preprocessing.Normalizer
	XTrain       [][]float32
	YTrain       []int
	XTest        [][]float32
	YTest        []int
	Result       *models.TrainResult
	Metrics      *evaluation.Metrics
	Bundle       *persistence.ModelBundle

	// Warnings collects recoverable conditions such as a training run
	// that stopped before converging.
	Warnings []error
	Timings  []StepTiming
}

type Runner struct {
	Steps []Step
}

// NewTrainingRunner returns load, vectorize, train, evaluate and save in
// that order.
func NewTrainingRunner() *Runner {
	return &Runner{
		Steps: []Step{
			loadStep{},
			vectorizeStep{},
			trainStep{},
			evaluateStep{},
			saveStep{},
		},
	}
}

// Run executes the steps in order and stops at the first error.
func (r *Runner) Run(ctx context.Context, st *State) error {
	if st.Conf == nil {
		return fmt.Errorf("pipeline needs a configuration")
	}
	for _, step := range r.Steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		log.Info().Str("step", step.Name()).Msg("step started")
		t0 := time.Now()
		if err := step.Run(ctx, st); err != nil {
			log.Error().Err(err).Str("step", step.Name()).Msg("step failed")
			return err
		}
		elapsed := time.Since(t0)
		st.Timings = append(st.Timings, StepTiming{Step: step.Name(), Elapsed: elapsed})
		log.Info().Str("step", step.Name()).Dur("elapsed", elapsed).Msg("step finished")
	}
	return nil
}

type loadStep struct{}

func (loadStep) Name() string { return "load" }

func (loadStep) Run(ctx context.Context, st *State) error {
	schema, err := st.Conf.Schema()
	if err != nil {
		return err
	}
	st.Schema = schema

	train, err := data.Load(st.TrainPath, schema)
	if err != nil {
		return err
	}
	validator := data.NewDataValidator()
	if err := validator.ValidateDataset(train, schema); err != nil {
		return err
	}

	if st.TestPath != "" {
		test, err := data.Load(st.TestPath, schema)
		if err != nil {
			return err
		}
		if err := validator.ValidateDataset(test, schema); err != nil {
			return err
		}
		st.TrainRecords, st.TestRecords = train, test

	} else {
		splitter := evaluation.NewTrainTestSplitter(st.Conf.Evaluation.TestFraction, st.Conf.Trainer.Seed, true)
		st.TrainRecords, st.TestRecords, err = splitter.StratifiedSplit(train)
		if err != nil {
			return mlerr.Wrap(mlerr.KindData, "split", err)
		}
		if len(st.TestRecords) == 0 {
			return mlerr.New(mlerr.KindData, "split", "test split is empty")
		}
	}

	if err := validator.ValidateLabels(st.TrainRecords); err != nil {
		return err
	}
	stats := validator.GetDatasetStats(st.TrainRecords, schema)
	log.Info().
		Int("train", len(st.TrainRecords)).
		Int("test", len(st.TestRecords)).
		Int("classes", stats.Classes).
		Msg("datasets loaded")
	return nil
}

type vectorizeStep struct{}

func (vectorizeStep) Name() string { return "vectorize" }

func (vectorizeStep) Run(ctx context.Context, st *State) error {
	st.Keys = preprocessing.BuildLabelKeyMap(st.TrainRecords)
	st.Vectorizer = preprocessing.NewVectorizer(st.Schema.FeatureColumns())

	var err error
	st.XTrain, st.YTrain, err = st.Vectorizer.VectorizeAll(st.TrainRecords, st.Keys)
	if err != nil {
		return err
	}
	st.XTest, st.YTest, err = st.Vectorizer.VectorizeAll(st.TestRecords, st.Keys)
	if err != nil {
		return err
	}
	st.Normalizer, err = preprocessing.FitNormalizer(st.Conf.NormalizerKind(), st.XTrain)
	if err != nil {
		return mlerr.Wrap(mlerr.KindData, "normalize", err)
	}
	log.Debug().
		Strs("labels", st.Keys.Labels()).
		Int("features", st.Vectorizer.Len()).
		Str("normalization", string(st.Normalizer.Kind)).
		Msg("label key map built")
	return nil
}

type trainStep struct{}

func (trainStep) Name() string { return "train" }

func (trainStep) Run(ctx context.Context, st *State) error {
	mc := st.Conf.ModelConfig()
	mc.OnEpoch = st.OnEpoch
	trainer, err := models.CreateTrainer(mc)
	if err != nil {
		return err
	}
	res, err := trainer.Fit(models.TrainingSet{
		X:          st.XTrain,
		Y:          st.YTrain,
		Labels:     st.Keys,
		Features:   st.Vectorizer.Features(),
		Normalizer: st.Normalizer,
	})
	if err != nil {
		return err
	}
	st.Result = res
	if res.Warning != nil {
		log.Warn().Err(res.Warning).Msg("training did not converge")
		st.Warnings = append(st.Warnings, res.Warning)
	}
	log.Info().
		Str("trainer", trainer.Name()).
		Int("epochs", res.Epochs).
		Float64("gap", res.Gap).
		Bool("converged", res.Converged).
		Msg("model trained")
	return nil
}

type evaluateStep struct{}

func (evaluateStep) Name() string { return "evaluate" }

func (evaluateStep) Run(ctx context.Context, st *State) error {
	ev := evaluation.NewEvaluator()
	ev.TopK = st.Conf.Evaluation.TopK
	ev.Prior = evaluation.ClassPrior(st.YTrain, st.Keys.Len())
	m, err := ev.Evaluate(st.Result.Model, st.XTest, st.YTest)
	if err != nil {
		return err
	}
	st.Metrics = m
	log.Info().
		Float64("microAccuracy", m.MicroAccuracy).
		Float64("macroAccuracy", m.MacroAccuracy).
		Float64("logLoss", m.LogLoss).
		Msg("model evaluated")
	return nil
}

type saveStep struct{}

func (saveStep) Name() string { return "save" }

func (saveStep) Run(ctx context.Context, st *State) error {
	mc := st.Conf.ModelConfig()
	bundle := persistence.NewModelBundle(st.Result.Model)
	bundle.Metadata.Dataset = st.TrainPath
	bundle.Metadata.Metrics = st.Metrics
	bundle.Metadata.Trainer = persistence.TrainerInfo{
		Name:      st.Conf.Trainer.Algorithm,
		L2:        mc.L2,
		MaxEpochs: mc.MaxEpochs,
		Tolerance: mc.Tolerance,
		Seed:      mc.Seed,
		Epochs:    st.Result.Epochs,
		Gap:       st.Result.Gap,
		Converged: st.Result.Converged,
	}
	st.Bundle = bundle
	if st.ModelPath == "" {
		log.Warn().Msg("no model path given, model not saved")
		return nil
	}
	if err := bundle.Save(st.ModelPath); err != nil {
		return err
	}
	if st.MetadataPath != "" {
		return bundle.SaveMetadata(st.MetadataPath)
	}
	return nil
}

// ExportMetrics writes one CSV row per class followed by an overall row
// whose recall is the micro accuracy.
func ExportMetrics(m *evaluation.Metrics, filename string) (err error) {
	file, err := os.Create(filename)
	if err != nil {
		return &mlerr.Error{Kind: mlerr.KindIO, Op: "export metrics", Path: filename, Err: err}
	}
	defer func() {
		err = multierr.Append(err, file.Close())
	}()

	writer := csv.NewWriter(file)
	rows := [][]string{{"Class", "Support", "Precision", "Recall", "LogLoss"}}
	for _, c := range m.PerClass {
		rows = append(rows, []string{
			c.Label,
			fmt.Sprintf("%d", c.Support),
			fmt.Sprintf("%.4f", c.Precision),
			fmt.Sprintf("%.4f", c.Recall),
			fmt.Sprintf("%.4f", c.LogLoss),
		})
	}
	rows = append(rows, []string{
		"overall",
		fmt.Sprintf("%d", m.NumSamples),
		"",
		fmt.Sprintf("%.4f", m.MicroAccuracy),
		fmt.Sprintf("%.4f", m.LogLoss),
	})
	return writer.WriteAll(rows)
}
