package outage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyFreshAndStale(t *testing.T) {
	now := time.Date(2026, 7, 31, 14, 30, 0, 0, time.UTC)
	newest := map[string]time.Time{
		"dwd": now.Add(-5 * time.Minute),
		"shmu": now.Add(-45 * time.Minute),
	}
	reports := Classify([]string{"dwd", "shmu", "chmi"}, newest, 30*time.Minute, now)
	require.Len(t, reports, 3)

	byName := map[string]Report{}
	for _, r := range reports {
		byName[r.Source] = r
	}
	assert.Equal(t, Available, byName["dwd"].Status)
	assert.Equal(t, Outage, byName["shmu"].Status)
	assert.Contains(t, byName["shmu"].Reason, "stale data")
	assert.Equal(t, Outage, byName["chmi"].Status)
	assert.Equal(t, "no data available", byName["chmi"].Reason)
}

func TestGatePassesWithEnoughCoreSources(t *testing.T) {
	reports := []Report{
		{Source: "dwd", Status: Available},
		{Source: "shmu", Status: Available},
		{Source: "chmi", Status: Available},
		{Source: "omsz", Status: Outage, Reason: "stale data (age=1h0m0s)"},
		{Source: "imgw", Status: Outage, Reason: "no data available"},
	}
	assert.NoError(t, Gate(reports, 3))
}

func TestGateFailsWithTooFewCoreSources(t *testing.T) {
	reports := []Report{
		{Source: "dwd", Status: Available},
		{Source: "shmu", Status: Outage, Reason: "no data available"},
		{Source: "chmi", Status: Outage, Reason: "no data available"},
		{Source: "omsz", Status: Outage, Reason: "no data available"},
		{Source: "imgw", Status: Outage, Reason: "no data available"},
	}
	err := Gate(reports, 3)
	assert.Error(t, err)
}

func TestGateIgnoresArsoForQuorum(t *testing.T) {
	reports := []Report{
		{Source: "dwd", Status: Available},
		{Source: "shmu", Status: Available},
		{Source: "chmi", Status: Available},
		{Source: "omsz", Status: Outage},
		{Source: "imgw", Status: Outage},
		{Source: "arso", Status: Outage},
	}
	assert.NoError(t, Gate(reports, 3))
}
