package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wineclf.log")
	closer, err := Setup(LoggingConf{Level: "debug", Path: path})
	require.NoError(t, err)
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.InfoLevel) })

	log.Debug().Str("step", "train").Msg("hello")
	require.NoError(t, closer.Close())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"step":"train"`)
	assert.Contains(t, string(raw), `"level":"debug"`)
}

func TestSetupRejectsLevel(t *testing.T) {
	_, err := Setup(LoggingConf{Level: "loud"})
	assert.Error(t, err)
}
