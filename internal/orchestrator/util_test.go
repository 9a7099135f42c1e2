package orchestrator

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/imeteo/radarfusion/internal/matcher"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimestamp(t *testing.T) {
	got, ok := parseTimestamp("20260115123045")
	require.True(t, ok)
	assert.Equal(t, 2026, got.Year())
	assert.Equal(t, 12, got.Hour())

	_, ok = parseTimestamp("not-a-timestamp")
	assert.False(t, ok)
}

func TestUnixSeconds(t *testing.T) {
	sec, err := unixSeconds("20260101000000")
	require.NoError(t, err)
	assert.Equal(t, int64(1767225600), sec)

	_, err = unixSeconds("bogus")
	assert.Error(t, err)
}

func TestOrderedSourcesIsDeterministicAndFollowsAllSources(t *testing.T) {
	m := map[string]matcher.Candidate{
		"imgw": {Timestamp: "20260101000000"},
		"dwd":  {Timestamp: "20260101000000"},
		"arso": {Timestamp: "20260101000000"},
	}
	want := []string{"dwd", "arso", "imgw"}
	for i := 0; i < 10; i++ {
		assert.Equal(t, want, orderedSources(m))
	}
}

func TestWriteFileAtomicCreatesParentDirAndIsReadable(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "out.bin")

	require.NoError(t, WriteFileAtomic(path, []byte("hello")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	// Overwriting must replace, not append.
	require.NoError(t, WriteFileAtomic(path, []byte("bye")))
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "bye", string(data))
}
