package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/s3ba-b/SVM-for-Classification/internal/data"
	"github.com/s3ba-b/SVM-for-Classification/internal/preprocessing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPresetWine(t *testing.T) {
	conf, err := Preset("wine")
	require.NoError(t, err)
	require.NoError(t, ValidateAndDefaults(conf))

	schema, err := conf.Schema()
	require.NoError(t, err)
	assert.Equal(t, ';', schema.Delimiter)
	assert.Equal(t, "quality", schema.Label)
	assert.Equal(t, data.WineFeatures, schema.FeatureColumns())

	mc := conf.ModelConfig()
	assert.Equal(t, "sdca", mc.Algorithm)
	assert.Equal(t, 1e-3, mc.L2)
	assert.Equal(t, 200, mc.MaxEpochs)
	assert.True(t, mc.Shuffle)
	assert.Equal(t, preprocessing.NormalizeMinMax, conf.NormalizerKind())
	assert.Equal(t, 0.2, conf.Evaluation.TestFraction)
	assert.Equal(t, 5, conf.Evaluation.Folds)
}

func TestPresetIris(t *testing.T) {
	conf, err := Preset("iris")
	require.NoError(t, err)
	require.NoError(t, ValidateAndDefaults(conf))
	schema, err := conf.Schema()
	require.NoError(t, err)
	assert.Equal(t, data.String, schema.LabelType())
	assert.False(t, schema.HasHeader)

	_, err = Preset("mushrooms")
	assert.Error(t, err)
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf.yaml")
	content := `
preset: iris
logging:
  level: debug
trainer:
  l2: 0.01
  maxEpochs: 50
  seed: 17
  shuffle: false
  normalize: standard
evaluation:
  folds: 3
  topK: 2
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	conf, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, path, conf.SrcPath())
	require.NoError(t, ValidateAndDefaults(conf))

	assert.Equal(t, "species", conf.Dataset.Label)
	assert.Equal(t, "debug", conf.Logging.Level)
	mc := conf.ModelConfig()
	assert.Equal(t, 0.01, mc.L2)
	assert.Equal(t, 50, mc.MaxEpochs)
	assert.Equal(t, int64(17), mc.Seed)
	assert.False(t, mc.Shuffle)
	assert.Equal(t, preprocessing.NormalizeStandard, conf.NormalizerKind())
	assert.Equal(t, 3, conf.Evaluation.Folds)
	assert.Equal(t, 2, conf.Evaluation.TopK)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := map[string]func(*Conf){
		"algorithm":  func(c *Conf) { c.Trainer.Algorithm = "svm-rbf" },
		"normalize":  func(c *Conf) { c.Trainer.Normalize = "log" },
		"l2":         func(c *Conf) { c.Trainer.L2 = -1 },
		"fraction":   func(c *Conf) { c.Evaluation.TestFraction = 1.5 },
		"folds":      func(c *Conf) { c.Evaluation.Folds = 1 },
		"delimiter":  func(c *Conf) { c.Dataset.Delimiter = ";;" },
		"label":      func(c *Conf) { c.Dataset.Label = "color" },
		"preset":     func(c *Conf) { c.Preset = "beer"; c.Dataset = DatasetConf{} },
		"columnType": func(c *Conf) { c.Dataset.Columns[0].Type = "date" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			conf, err := Preset("wine")
			require.NoError(t, err)
			mutate(conf)
			assert.Error(t, ValidateAndDefaults(conf))
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
