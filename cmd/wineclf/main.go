// Command wineclf trains, evaluates and applies a multiclass maximum entropy
// classifier on the wine quality (or iris) datasets.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/s3ba-b/SVM-for-Classification/internal/mlerr"
	"github.com/urfave/cli/v2"
)

const (
	flagConfig       = "config"
	flagPreset       = "preset"
	flagLogLevel     = "log-level"
	flagTrainData    = "train-data"
	flagTestData     = "test-data"
	flagModelOut     = "model-out"
	flagMetadataOut  = "metadata-out"
	flagMetricsOut   = "metrics-out"
	flagModel        = "model"
	flagRecord       = "record"
	flagSeed         = "seed"
	flagL2           = "l2"
	flagMaxEpochs    = "max-epochs"
	flagTolerance    = "tolerance"
	flagNormalize    = "normalize"
	flagTestFraction = "test-fraction"
	flagFolds        = "folds"
	flagTopK         = "top-k"
	flagNoProgress   = "no-progress"
)

const (
	exitOK           = 0
	exitGeneral      = 1
	exitIO           = 2
	exitParse        = 3
	exitSchema       = 4
	exitData         = 5
	exitCorruptModel = 6
	exitNotFound     = 7
	exitUnknownLabel = 8
)

func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	switch mlerr.KindOf(err) {
	case mlerr.KindIO:
		return exitIO
	case mlerr.KindParse:
		return exitParse
	case mlerr.KindSchema:
		return exitSchema
	case mlerr.KindData:
		return exitData
	case mlerr.KindCorruptModel:
		return exitCorruptModel
	case mlerr.KindNotFound:
		return exitNotFound
	case mlerr.KindUnknownLabel:
		return exitUnknownLabel
	}
	return exitGeneral
}

func trainerFlags() []cli.Flag {
	return []cli.Flag{
		&cli.Int64Flag{Name: flagSeed, Usage: "random seed for shuffling and splitting"},
		&cli.Float64Flag{Name: flagL2, Usage: "L2 regularization strength"},
		&cli.IntFlag{Name: flagMaxEpochs, Usage: "maximum number of passes over the training data"},
		&cli.Float64Flag{Name: flagTolerance, Usage: "duality gap at which training stops"},
		&cli.StringFlag{Name: flagNormalize, Usage: "feature normalization: none, minmax or standard"},
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "wineclf",
		Usage: "train and apply a multiclass wine quality classifier",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  flagConfig,
				Usage: "path to a YAML configuration file",
			},
			&cli.StringFlag{
				Name:  flagPreset,
				Value: "wine",
				Usage: "dataset layout when no config is given: wine or iris",
			},
			&cli.StringFlag{
				Name:  flagLogLevel,
				Usage: "log level (debug, info, warn, error)",
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "train",
				Usage: "train a model and evaluate it on held-out data",
				Flags: append([]cli.Flag{
					&cli.StringFlag{Name: flagTrainData, Required: true, Usage: "training data file"},
					&cli.StringFlag{Name: flagTestData, Usage: "test data file; split from the training data when omitted"},
					&cli.StringFlag{Name: flagModelOut, Required: true, Usage: "where to write the model"},
					&cli.StringFlag{Name: flagMetadataOut, Usage: "optional YAML summary of the model"},
					&cli.StringFlag{Name: flagMetricsOut, Usage: "optional CSV with per-class metrics"},
					&cli.Float64Flag{Name: flagTestFraction, Usage: "fraction held out when no test file is given"},
					&cli.IntFlag{Name: flagTopK, Usage: "also report top-k accuracy"},
					&cli.BoolFlag{Name: flagNoProgress, Usage: "do not draw the epoch progress bar"},
				}, trainerFlags()...),
				Action: trainAction,
			},
			{
				Name:      "predict",
				Usage:     "predict the label of one or more records",
				ArgsUsage: "[k=v,... ...]",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: flagModel, Required: true, Usage: "model file"},
					&cli.StringFlag{Name: flagRecord, Usage: "record as name=value pairs separated by commas"},
				},
				Action: predictAction,
			},
			{
				Name:  "evaluate",
				Usage: "evaluate a saved model on a labelled file",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: flagModel, Required: true, Usage: "model file"},
					&cli.StringFlag{Name: flagTestData, Required: true, Usage: "test data file"},
					&cli.IntFlag{Name: flagTopK, Usage: "also report top-k accuracy"},
				},
				Action: evaluateAction,
			},
			{
				Name:  "cv",
				Usage: "k-fold cross-validation",
				Flags: append([]cli.Flag{
					&cli.StringFlag{Name: flagTrainData, Required: true, Usage: "data file"},
					&cli.IntFlag{Name: flagFolds, Usage: "number of folds"},
				}, trainerFlags()...),
				Action: cvAction,
			},
			{
				Name:  "samples",
				Usage: "score the three built-in wine samples",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: flagModel, Required: true, Usage: "model file"},
				},
				Action: samplesAction,
			},
		},
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newApp().RunContext(ctx, os.Args)
	stop()
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, color.RedString("Error: %v", err))
		}
		os.Exit(exitCode(err))
	}
}
