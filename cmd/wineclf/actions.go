package main

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/s3ba-b/SVM-for-Classification/internal/config"
	"github.com/s3ba-b/SVM-for-Classification/internal/data"
	"github.com/s3ba-b/SVM-for-Classification/internal/evaluation"
	"github.com/s3ba-b/SVM-for-Classification/internal/logging"
	"github.com/s3ba-b/SVM-for-Classification/internal/models"
	"github.com/s3ba-b/SVM-for-Classification/internal/persistence"
	"github.com/s3ba-b/SVM-for-Classification/internal/pipeline"
	"github.com/s3ba-b/SVM-for-Classification/internal/prediction"
	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v2"
)

const dfltCLILogLevel = "warn"

var (
	green  = color.New(color.FgGreen).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	cyan   = color.New(color.FgCyan).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
)

// setup loads the configuration (file or preset), applies command line
// overrides, installs the logger and fills in defaults.
func setup(c *cli.Context) (*config.Conf, io.Closer, error) {
	var conf *config.Conf
	var err error
	if path := c.String(flagConfig); path != "" {
		conf, err = config.Load(path)
	} else {
		conf, err = config.Preset(c.String(flagPreset))
	}
	if err != nil {
		return nil, nil, err
	}

	if c.IsSet(flagSeed) {
		conf.Trainer.Seed = c.Int64(flagSeed)
	}
	if c.IsSet(flagL2) {
		conf.Trainer.L2 = c.Float64(flagL2)
	}
	if c.IsSet(flagMaxEpochs) {
		conf.Trainer.MaxEpochs = c.Int(flagMaxEpochs)
	}
	if c.IsSet(flagTolerance) {
		conf.Trainer.Tolerance = c.Float64(flagTolerance)
	}
	if c.IsSet(flagNormalize) {
		conf.Trainer.Normalize = c.String(flagNormalize)
	}
	if c.IsSet(flagTestFraction) {
		conf.Evaluation.TestFraction = c.Float64(flagTestFraction)
	}
	if c.IsSet(flagFolds) {
		conf.Evaluation.Folds = c.Int(flagFolds)
	}
	if c.IsSet(flagTopK) {
		conf.Evaluation.TopK = c.Int(flagTopK)
	}

	if lvl := c.String(flagLogLevel); lvl != "" {
		conf.Logging.Level = lvl
	} else if conf.Logging.Level == "" {
		conf.Logging.Level = dfltCLILogLevel
	}
	closer, err := logging.Setup(conf.Logging)
	if err != nil {
		return nil, nil, err
	}
	if err := config.ValidateAndDefaults(conf); err != nil {
		closer.Close()
		return nil, nil, err
	}
	return conf, closer, nil
}

func trainAction(c *cli.Context) error {
	conf, closer, err := setup(c)
	if err != nil {
		return err
	}
	defer closer.Close()

	st := &pipeline.State{
		Conf:         conf,
		TrainPath:    c.String(flagTrainData),
		TestPath:     c.String(flagTestData),
		ModelPath:    c.String(flagModelOut),
		MetadataPath: c.String(flagMetadataOut),
	}
	var bar *progressbar.ProgressBar
	if !c.Bool(flagNoProgress) {
		bar = progressbar.NewOptions(
			conf.Trainer.MaxEpochs,
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionSetDescription("training"),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)
		st.OnEpoch = func(models.EpochStats) { bar.Add(1) }
	}

	err = pipeline.NewTrainingRunner().Run(c.Context, st)
	if bar != nil {
		bar.Finish()
	}
	if err != nil {
		return err
	}

	out := c.App.Writer
	fmt.Fprintf(out, "%s %d training / %d test records, classes %v\n",
		cyan("Data:"), len(st.TrainRecords), len(st.TestRecords), st.Keys.Labels())
	fmt.Fprintf(out, "%s %d epochs, duality gap %.3g\n", cyan("Training:"), st.Result.Epochs, st.Result.Gap)
	printWarnings(out, st.Warnings)
	printMetrics(out, st.Metrics)
	if st.Bundle != nil {
		fmt.Fprintf(out, "%s model %s saved to %s\n", green("OK"), st.Bundle.Metadata.ID, st.ModelPath)
	}
	if path := c.String(flagMetricsOut); path != "" {
		if err := pipeline.ExportMetrics(st.Metrics, path); err != nil {
			return err
		}
	}
	return nil
}

func loadEngine(path string) (*persistence.ModelBundle, *prediction.Engine, error) {
	bundle, err := persistence.LoadModelBundle(path)
	if err != nil {
		return nil, nil, err
	}
	engine, err := prediction.NewEngine(bundle.Model)
	if err != nil {
		return nil, nil, err
	}
	return bundle, engine, nil
}

func predictAction(c *cli.Context) error {
	conf, closer, err := setup(c)
	if err != nil {
		return err
	}
	defer closer.Close()

	var raw []string
	if r := c.String(flagRecord); r != "" {
		raw = append(raw, r)
	}
	raw = append(raw, c.Args().Slice()...)
	if len(raw) == 0 {
		return fmt.Errorf("no record given, use --%s name=value,...", flagRecord)
	}

	schema, err := conf.Schema()
	if err != nil {
		return err
	}
	records := make([]data.Record, len(raw))
	for i, s := range raw {
		if records[i], err = data.ParseRecord(s, schema); err != nil {
			return err
		}
	}

	_, engine, err := loadEngine(c.String(flagModel))
	if err != nil {
		return err
	}
	results, err := engine.PredictBatch(c.Context, records)
	if err != nil {
		return err
	}

	out := c.App.Writer
	for i, res := range results {
		fmt.Fprintf(out, "%s %s", bold("Predicted:"), green(res.Label))
		if records[i].HasLabel {
			mark := green("correct")
			if records[i].Label != res.Label {
				mark = red("wrong")
			}
			fmt.Fprintf(out, " (actual %s, %s)", records[i].Label, mark)
		}
		fmt.Fprintln(out)
		printScores(out, res)
	}
	return nil
}

func evaluateAction(c *cli.Context) error {
	conf, closer, err := setup(c)
	if err != nil {
		return err
	}
	defer closer.Close()

	schema, err := conf.Schema()
	if err != nil {
		return err
	}
	bundle, _, err := loadEngine(c.String(flagModel))
	if err != nil {
		return err
	}
	records, err := data.Load(c.String(flagTestData), schema)
	if err != nil {
		return err
	}
	if err := data.NewDataValidator().ValidateDataset(records, schema); err != nil {
		return err
	}

	ev := evaluation.NewEvaluator()
	ev.TopK = conf.Evaluation.TopK
	m, err := ev.EvaluateRecords(bundle.Model, records)
	if err != nil {
		return err
	}
	printMetrics(c.App.Writer, m)
	return nil
}

func cvAction(c *cli.Context) error {
	conf, closer, err := setup(c)
	if err != nil {
		return err
	}
	defer closer.Close()

	schema, err := conf.Schema()
	if err != nil {
		return err
	}
	records, err := data.Load(c.String(flagTrainData), schema)
	if err != nil {
		return err
	}
	validator := data.NewDataValidator()
	if err := validator.ValidateDataset(records, schema); err != nil {
		return err
	}
	if err := validator.ValidateLabels(records); err != nil {
		return err
	}

	cv := evaluation.NewCrossValidator(conf.Evaluation.Folds, true)
	cv.RandomSeed = conf.Trainer.Seed
	cv.Normalize = conf.NormalizerKind()
	res, err := cv.CrossValidate(c.Context, records, schema.FeatureColumns(), conf.ModelConfig())
	if err != nil {
		return err
	}

	out := c.App.Writer
	for _, f := range res.Folds {
		fmt.Fprintf(out, "fold %d: train %d, test %d, micro accuracy %.4f, log-loss %.4f\n",
			f.Fold+1, f.TrainSize, f.TestSize, f.Metrics.MicroAccuracy, f.Metrics.LogLoss)
	}
	fmt.Fprintf(out, "%s micro accuracy %.4f ± %.4f, macro accuracy %.4f, log-loss %.4f ± %.4f\n",
		cyan("Mean:"), res.MeanAccuracy, res.StdAccuracy, res.MeanMacro, res.MeanLogLoss, res.StdLogLoss)
	if res.WarningsCount > 0 {
		fmt.Fprintf(out, "%s %d of %d folds did not converge\n", yellow("Warning:"), res.WarningsCount, len(res.Folds))
	}
	return nil
}

func samplesAction(c *cli.Context) error {
	_, closer, err := setup(c)
	if err != nil {
		return err
	}
	defer closer.Close()

	_, engine, err := loadEngine(c.String(flagModel))
	if err != nil {
		return err
	}
	out := c.App.Writer
	for _, s := range data.WineSamples() {
		res, err := engine.Classify(s.Record)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s actual %s, predicted %s\n", bold(s.Name+":"), s.Record.Label, green(res.Label))
		printScores(out, res)
		fmt.Fprintln(out)
	}
	return nil
}

func printScores(w io.Writer, res *prediction.Result) {
	for _, s := range res.Scores {
		line := fmt.Sprintf("  %-12s %.4f", s.Label, s.Score)
		if s.Label == res.Label {
			line = green(line)
		}
		fmt.Fprintln(w, line)
	}
}

func printMetrics(w io.Writer, m *evaluation.Metrics) {
	fmt.Fprintln(w, cyan("Metrics:"))
	fmt.Fprint(w, m.FormatMetrics())
}

func printWarnings(w io.Writer, warnings []error) {
	for _, warn := range warnings {
		fmt.Fprintf(w, "%s %v\n", yellow("Warning:"), warn)
	}
}
