package config

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imeteo/radarfusion/internal/radarerr"
)

func validConfig() Config {
	return Config{
		ResolutionM:               500,
		MaxWorkers:                6,
		MinCoreSources:            3,
		ReprocessCount:            1,
		TimestampToleranceMinutes: 10,
	}
}

func TestValidateSourcesRejectsEmptyAndUnknown(t *testing.T) {
	err := ValidateSources(nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, radarerr.ErrConfig))

	err = ValidateSources([]string{"dwd", "not-a-source"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, radarerr.ErrConfig))
}

func TestValidateSourcesAcceptsKnownNames(t *testing.T) {
	assert.NoError(t, ValidateSources([]string{"dwd", "arso", "omsz"}))
	assert.NoError(t, ValidateSources(AllSources))
}

func TestConfigValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"resolution", func(c *Config) { c.ResolutionM = 0 }},
		{"max_workers", func(c *Config) { c.MaxWorkers = 0 }},
		{"min_core_sources_zero", func(c *Config) { c.MinCoreSources = 0 }},
		{"min_core_sources_too_large", func(c *Config) { c.MinCoreSources = 100 }},
		{"reprocess_count", func(c *Config) { c.ReprocessCount = 0 }},
		{"timestamp_tolerance", func(c *Config) { c.TimestampToleranceMinutes = -1 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := validConfig()
			tc.mutate(&c)
			err := c.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, radarerr.ErrConfig))
		})
	}
}

func TestConfigValidateAcceptsDefaults(t *testing.T) {
	assert.NoError(t, validConfig().Validate())
}

func TestReferenceGridUsesDefaultBounds(t *testing.T) {
	c := validConfig()
	grid := c.ReferenceGrid(func(lon, lat float64) (float64, float64) { return lon, lat })
	assert.Equal(t, 500.0, grid.ResolutionM)
	assert.True(t, grid.DstShape.Height > 0)
	assert.True(t, grid.DstShape.Width > 0)
}
