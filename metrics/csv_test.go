package metrics

import (
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sl5234/daylytics/analysis"
)

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return records
}

func TestCSVSinkEmit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metrics.csv")
	sink := NewCSVSink(path, testLogger())

	data := analysis.MetricsData{
		Date:         "2026-08-20",
		Totals:       map[string]int64{"Sleep": 28800, "Fitness": 3600},
		TotalSeconds: 32400,
	}
	require.NoError(t, sink.Emit(context.Background(), data))

	records := readCSV(t, path)
	require.Len(t, records, 3)
	assert.Equal(t, []string{"timestamp", "date", "category", "seconds"}, records[0])

	// Rows come out in category order.
	assert.Equal(t, "Fitness", records[1][2])
	assert.Equal(t, "3600", records[1][3])
	assert.Equal(t, "Sleep", records[2][2])
	assert.Equal(t, "28800", records[2][3])

	assert.Equal(t, "2026-08-20", records[1][1])
	_, err := time.Parse(time.RFC3339, records[1][0])
	assert.NoError(t, err)
}

func TestCSVSinkAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metrics.csv")
	sink := NewCSVSink(path, testLogger())

	day1 := analysis.MetricsData{Date: "2026-08-20", Totals: map[string]int64{"Work": 7200}}
	day2 := analysis.MetricsData{Date: "2026-08-21", Totals: map[string]int64{"Work": 3600}}

	require.NoError(t, sink.Emit(context.Background(), day1))
	require.NoError(t, sink.Emit(context.Background(), day2))

	records := readCSV(t, path)
	require.Len(t, records, 3, "one header, one row per emission")
	assert.Equal(t, "timestamp", records[0][0], "header is written once")
	assert.Equal(t, "2026-08-20", records[1][1])
	assert.Equal(t, "2026-08-21", records[2][1])
}

func TestCSVSinkUnwritablePath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "no-such-dir", "metrics.csv")
	sink := NewCSVSink(path, testLogger())

	err := sink.Emit(context.Background(), analysis.MetricsData{
		Date:   "2026-08-20",
		Totals: map[string]int64{"Work": 1},
	})

	var emitErr *EmissionError
	require.ErrorAs(t, err, &emitErr)
	assert.Equal(t, "csv", emitErr.Backend)
}

func TestCSVSinkConcurrentEmissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metrics.csv")
	sink := NewCSVSink(path, testLogger())

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = sink.Emit(context.Background(), analysis.MetricsData{
				Date:   "2026-08-20",
				Totals: map[string]int64{"Work": int64(i + 1)},
			})
		}(i)
	}
	wg.Wait()

	require.NoError(t, errors.Join(errs...))

	// Every row parses cleanly: no interleaved writes.
	records := readCSV(t, path)
	require.Len(t, records, 9)
	for _, record := range records {
		assert.Len(t, record, 4)
	}
}
