package config

import (
	"fmt"
	"os"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
	"github.com/s3ba-b/SVM-for-Classification/internal/data"
	"github.com/s3ba-b/SVM-for-Classification/internal/logging"
	"github.com/s3ba-b/SVM-for-Classification/internal/models"
	"github.com/s3ba-b/SVM-for-Classification/internal/preprocessing"
	"gopkg.in/yaml.v3"
)

const (
	dfltPreset       = "wine"
	dfltAlgorithm    = "sdca"
	dfltNormalize    = preprocessing.NormalizeMinMax
	dfltTestFraction = 0.2
	dfltFolds        = 5
	dfltLogLevel     = "info"
)

type ColumnConf struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
}

type DatasetConf struct {
	Columns   []ColumnConf `yaml:"columns"`
	Label     string       `yaml:"label"`
	Features  []string     `yaml:"features"`
	Delimiter string       `yaml:"delimiter"`
	HasHeader bool         `yaml:"hasHeader"`
}

type TrainerConf struct {
	Algorithm string  `yaml:"algorithm"`
	L2        float64 `yaml:"l2"`
	MaxEpochs int     `yaml:"maxEpochs"`
	Tolerance float64 `yaml:"tolerance"`
	Seed      int64   `yaml:"seed"`
	Shuffle   *bool   `yaml:"shuffle"`
	Normalize string  `yaml:"normalize"`
}

type EvaluationConf struct {
	TestFraction float64 `yaml:"testFraction"`
	Folds        int     `yaml:"folds"`
	TopK         int     `yaml:"topK"`
}

type Conf struct {
	srcPath    string
	Preset     string              `yaml:"preset"`
	Logging    logging.LoggingConf `yaml:"logging"`
	Dataset    DatasetConf         `yaml:"dataset"`
	Trainer    TrainerConf         `yaml:"trainer"`
	Evaluation EvaluationConf      `yaml:"evaluation"`
}

func (conf *Conf) SrcPath() string {
	return conf.srcPath
}

func Load(path string) (*Conf, error) {
	rawData, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot load config: %w", err)
	}
	var conf Conf
	conf.srcPath = path
	if err := yaml.Unmarshal(rawData, &conf); err != nil {
		return nil, fmt.Errorf("cannot parse config %s: %w", path, err)
	}
	return &conf, nil
}

// Preset returns a configuration with the dataset layout of one of the
// bundled datasets. Trainer and evaluation values stay unset so that
// ValidateAndDefaults fills them in.
func Preset(name string) (*Conf, error) {
	var schema data.Schema
	switch name {
	case "wine":
		schema = data.WineSchema()
	case "iris":
		schema = data.IrisSchema()
	default:
		return nil, fmt.Errorf("unknown preset: %s", name)
	}
	conf := &Conf{Preset: name, Dataset: datasetFromSchema(schema)}
	return conf, nil
}

func datasetFromSchema(schema data.Schema) DatasetConf {
	ds := DatasetConf{
		Label:     schema.Label,
		Features:  append([]string(nil), schema.Features...),
		Delimiter: string(schema.Delimiter),
		HasHeader: schema.HasHeader,
	}
	for _, c := range schema.Columns {
		ds.Columns = append(ds.Columns, ColumnConf{Name: c.Name, Type: string(c.Type)})
	}
	return ds
}

func ValidateAndDefaults(conf *Conf) error {
	if conf.Preset == "" {
		conf.Preset = dfltPreset
	}
	if len(conf.Dataset.Columns) == 0 {
		preset, err := Preset(conf.Preset)
		if err != nil {
			return err
		}
		conf.Dataset = preset.Dataset
		log.Warn().Str("preset", conf.Preset).Msg("dataset columns not specified, using preset layout")
	}
	if conf.Dataset.Delimiter == "" {
		conf.Dataset.Delimiter = ","
		log.Warn().Str("delimiter", ",").Msg("dataset delimiter not specified, using default")
	}
	if utf8.RuneCountInString(conf.Dataset.Delimiter) != 1 {
		return fmt.Errorf("dataset delimiter must be a single character, got %q", conf.Dataset.Delimiter)
	}
	if _, err := conf.Schema(); err != nil {
		return err
	}

	if conf.Trainer.Algorithm == "" {
		conf.Trainer.Algorithm = dfltAlgorithm
	}
	dflt := models.DefaultSDCAOptions()
	if conf.Trainer.L2 == 0 {
		conf.Trainer.L2 = dflt.L2
		log.Warn().Float64("l2", dflt.L2).Msg("trainer.l2 not specified, using default")
	}
	if conf.Trainer.L2 < 0 {
		return fmt.Errorf("trainer.l2 must be positive, got %g", conf.Trainer.L2)
	}
	if conf.Trainer.MaxEpochs == 0 {
		conf.Trainer.MaxEpochs = dflt.MaxEpochs
		log.Warn().Msgf("trainer.maxEpochs not specified, using default: %d", dflt.MaxEpochs)
	}
	if conf.Trainer.MaxEpochs < 0 {
		return fmt.Errorf("trainer.maxEpochs must be positive, got %d", conf.Trainer.MaxEpochs)
	}
	if conf.Trainer.Tolerance == 0 {
		conf.Trainer.Tolerance = dflt.Tolerance
		log.Warn().Float64("tolerance", dflt.Tolerance).Msg("trainer.tolerance not specified, using default")
	}
	if conf.Trainer.Tolerance < 0 {
		return fmt.Errorf("trainer.tolerance must be positive, got %g", conf.Trainer.Tolerance)
	}
	if conf.Trainer.Shuffle == nil {
		shuffle := dflt.Shuffle
		conf.Trainer.Shuffle = &shuffle
	}
	if conf.Trainer.Normalize == "" {
		conf.Trainer.Normalize = string(dfltNormalize)
		log.Warn().Str("normalize", string(dfltNormalize)).Msg("trainer.normalize not specified, using default")
	}
	if _, err := preprocessing.ParseNormalizerKind(conf.Trainer.Normalize); err != nil {
		return err
	}
	if _, err := models.CreateTrainer(conf.ModelConfig()); err != nil {
		return err
	}

	if conf.Evaluation.TestFraction == 0 {
		conf.Evaluation.TestFraction = dfltTestFraction
	}
	if conf.Evaluation.TestFraction <= 0 || conf.Evaluation.TestFraction >= 1 {
		return fmt.Errorf("evaluation.testFraction must be in (0,1), got %g", conf.Evaluation.TestFraction)
	}
	if conf.Evaluation.Folds == 0 {
		conf.Evaluation.Folds = dfltFolds
	}
	if conf.Evaluation.Folds < 2 {
		return fmt.Errorf("evaluation.folds must be at least 2, got %d", conf.Evaluation.Folds)
	}

	if conf.Logging.Level == "" {
		conf.Logging.Level = dfltLogLevel
	}
	return nil
}

// Schema converts the dataset section into a validated data.Schema.
func (conf *Conf) Schema() (data.Schema, error) {
	delim, _ := utf8.DecodeRuneInString(conf.Dataset.Delimiter)
	schema := data.Schema{
		Label:     conf.Dataset.Label,
		Features:  append([]string(nil), conf.Dataset.Features...),
		Delimiter: delim,
		HasHeader: conf.Dataset.HasHeader,
	}
	for _, c := range conf.Dataset.Columns {
		typ := data.ColumnType(c.Type)
		if c.Type == "" {
			typ = data.Numeric
		}
		schema.Columns = append(schema.Columns, data.Column{Name: c.Name, Type: typ})
	}
	if err := schema.Validate(); err != nil {
		return data.Schema{}, err
	}
	return schema, nil
}

func (conf *Conf) NormalizerKind() preprocessing.NormalizerKind {
	kind, err := preprocessing.ParseNormalizerKind(conf.Trainer.Normalize)
	if err != nil {
		return dfltNormalize
	}
	return kind
}

func (conf *Conf) ModelConfig() models.ModelConfig {
	shuffle := true
	if conf.Trainer.Shuffle != nil {
		shuffle = *conf.Trainer.Shuffle
	}
	return models.ModelConfig{
		Algorithm: conf.Trainer.Algorithm,
		L2:        conf.Trainer.L2,
		MaxEpochs: conf.Trainer.MaxEpochs,
		Tolerance: conf.Trainer.Tolerance,
		Seed:      conf.Trainer.Seed,
		Shuffle:   shuffle,
	}
}
