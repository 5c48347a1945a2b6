package batch

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 1, cfg.Workers)
	assert.False(t, cfg.ContinueOnError)
	assert.Equal(t, FormatText, cfg.Format)
	assert.True(t, cfg.Output.Annotate)
	assert.NoError(t, cfg.Validate())
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Workers = 0
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Format = "xml"
	assert.Error(t, cfg.Validate())

	cfg.Format = ""
	assert.NoError(t, cfg.Validate())
}

func TestImageWorkers(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Pipeline.Parallel.MaxWorkers = 8
	cfg.Workers = 2
	assert.Equal(t, 4, imageWorkers(cfg))

	cfg.Workers = 16
	assert.Equal(t, 1, imageWorkers(cfg))

	cfg.Pipeline.Parallel.MaxWorkers = 0
	cfg.Workers = 1
	assert.Positive(t, imageWorkers(cfg))
}
