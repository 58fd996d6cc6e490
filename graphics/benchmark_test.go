package graphics

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameBenchmark_WarmupThenWindowThenSingleWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bench.csv")
	metrics := []string{"Frame Time", "Lighting"}
	b := NewFrameBenchmark(2, 3, path, metrics, testLogger{t})

	source := func(name string) float64 {
		if name == "Frame Time" {
			return 16.6
		}
		return 1.25
	}
	counts := InstanceCounts{Total: 10, Static: 7, Dynamic: 3}

	// frames 1-2: warm-up, no rows
	for frame := 0; frame < 2; frame++ {
		require.NoError(t, b.RecordFrame(source, counts))
		assert.Empty(t, b.rows)
		assert.False(t, b.Done())
	}
	// frames 3-5: one row each
	for frame := 0; frame < 3; frame++ {
		require.NoError(t, b.RecordFrame(source, counts))
		assert.Len(t, b.rows, frame+1)
		assert.False(t, b.Done())
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatal("table written before the measurement window closed")
	}

	// frame 6: exactly one write
	require.NoError(t, b.RecordFrame(source, counts))
	assert.True(t, b.Done())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	require.NoError(t, err)

	// 3 header lines + column row + 3 data rows
	require.Len(t, records, 7)
	assert.Equal(t, []string{"total instances", "10"}, records[0])
	assert.Equal(t, []string{"static instances", "7"}, records[1])
	assert.Equal(t, []string{"dynamic instances", "3"}, records[2])
	assert.Equal(t, metrics, records[3])
	for _, row := range records[4:] {
		assert.Equal(t, []string{"16.6000", "1.2500"}, row)
	}

	// further frames must not rewrite the table
	info, err := os.Stat(path)
	require.NoError(t, err)
	before := info.ModTime()
	require.NoError(t, b.RecordFrame(source, counts))
	info, err = os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, before, info.ModTime())
}

func TestDefaultMetrics_GeometrySeriesPerMode(t *testing.T) {
	cpu := DefaultMetrics(RenderModeCPUDriven)
	gpu := DefaultMetrics(RenderModeGPUDriven)

	assert.Contains(t, cpu, "Geometry")
	assert.NotContains(t, cpu, "GPU Driven Geometry")
	assert.Contains(t, gpu, "GPU Driven Geometry")
	assert.NotContains(t, gpu, "Geometry")
}
