package cliapp

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imeteo/radarfusion/internal/config"
)

func TestSplitSources(t *testing.T) {
	assert.Equal(t, []string{"dwd", "arso"}, splitSources(" dwd, arso ", config.AllSources))
	assert.Equal(t, config.AllSources, splitSources("", config.AllSources))
	assert.Equal(t, config.AllSources, splitSources("   ", config.AllSources))
}

func TestAppendIfMissing(t *testing.T) {
	assert.Equal(t, []string{"dwd", "arso"}, appendIfMissing([]string{"dwd"}, "arso"))
	assert.Equal(t, []string{"dwd", "arso"}, appendIfMissing([]string{"dwd", "arso"}, "arso"))
}

func TestMaxInt(t *testing.T) {
	assert.Equal(t, 5, maxInt(5, 3))
	assert.Equal(t, 5, maxInt(3, 5))
}

func TestParseBackloadWindowFromHours(t *testing.T) {
	start, end, err := parseBackloadWindow(6, "", "")
	require.NoError(t, err)
	assert.InDelta(t, 6*time.Hour, end.Sub(start), float64(time.Second))
}

func TestParseBackloadWindowFromExplicitRange(t *testing.T) {
	start, end, err := parseBackloadWindow(0, "2026-01-01 00:00", "2026-01-01 06:00")
	require.NoError(t, err)
	assert.Equal(t, 2026, start.Year())
	assert.Equal(t, 6*time.Hour, end.Sub(start))
}

func TestParseBackloadWindowRejectsOneSidedRange(t *testing.T) {
	_, _, err := parseBackloadWindow(24, "2026-01-01 00:00", "")
	assert.Error(t, err)
}

func TestParseBackloadWindowRejectsUnparsableTime(t *testing.T) {
	_, _, err := parseBackloadWindow(24, "not-a-time", "2026-01-01 06:00")
	assert.Error(t, err)
}

func TestParseBackloadWindowDefaultsHoursWhenNonPositive(t *testing.T) {
	start, end, err := parseBackloadWindow(0, "", "")
	require.NoError(t, err)
	assert.InDelta(t, 24*time.Hour, end.Sub(start), float64(time.Second))
}
