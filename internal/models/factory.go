package models

import (
	"fmt"
)

type Trainer interface {
	Fit(set TrainingSet) (*TrainResult, error)
	Name() string
}

type ModelConfig struct {
	Algorithm string
	L2        float64
	MaxEpochs int
	Tolerance float64
	Seed      int64
	Shuffle   bool
	OnEpoch   func(EpochStats)
}

func CreateTrainer(config ModelConfig) (Trainer, error) {
	switch config.Algorithm {
	case "", "sdca", "maxent", "sdca-maxent":
		return NewSDCATrainer(SDCAOptions{
			L2:        config.L2,
			MaxEpochs: config.MaxEpochs,
			Tolerance: config.Tolerance,
			Seed:      config.Seed,
			Shuffle:   config.Shuffle,
			OnEpoch:   config.OnEpoch,
		}), nil

	default:
		return nil, fmt.Errorf("unknown algorithm: %s", config.Algorithm)
	}
}

func DefaultConfig(algorithm string) ModelConfig {
	opts := DefaultSDCAOptions()
	return ModelConfig{
		Algorithm: algorithm,
		L2:        opts.L2,
		MaxEpochs: opts.MaxEpochs,
		Tolerance: opts.Tolerance,
		Seed:      opts.Seed,
		Shuffle:   opts.Shuffle,
	}
}
