package metrics

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileSinkAppendsJSONL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metrics.jsonl")

	sink, err := NewFileSink(path)
	require.NoError(t, err)
	require.NoError(t, sink.Record(100, map[string]any{"local/loss": 2.5, "stake": 41.0}))
	require.NoError(t, sink.Record(200, map[string]any{"stake": 42.0}))
	require.NoError(t, sink.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var records []map[string]any
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var record map[string]any
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &record))
		records = append(records, record)
	}
	require.Len(t, records, 2)
	assert.Equal(t, float64(100), records[0]["block"])
	assert.Equal(t, 2.5, records[0]["local/loss"])
	assert.Equal(t, float64(200), records[1]["block"])
	assert.NotEmpty(t, records[1]["timestamp"])
}

func TestForPathEmptyIsNop(t *testing.T) {
	sink, err := ForPath("")
	require.NoError(t, err)
	assert.IsType(t, Nop{}, sink)
	assert.NoError(t, sink.Record(1, nil))
	assert.NoError(t, sink.Close())
}
