package fitmetrics

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Fixture row shapes covering the date encodings metric files show up with.
type dateRow struct {
	Entity string    `parquet:"entity"`
	Date   time.Time `parquet:"date,date"`
	Steps  int64     `parquet:"steps"`
}

type timestampRow struct {
	Entity   string    `parquet:"entity"`
	Month    time.Time `parquet:"month,timestamp(millisecond)"`
	Distance float64   `parquet:"distance_m"`
}

type stringDateRow struct {
	Entity string  `parquet:"entity"`
	Week   string  `parquet:"week"`
	Value  float64 `parquet:"value"`
}

type metricColumnRow struct {
	Entity string `parquet:"entity"`
	Metric string `parquet:"metric"`
	Date   string `parquet:"date"`
	Count  int32  `parquet:"count"`
}

func writeParquet[T any](t *testing.T, path string, rows []T) {
	t.Helper()

	f, err := os.Create(path)
	require.NoError(t, err)

	writer := parquet.NewGenericWriter[T](f)
	_, err = writer.Write(rows)
	require.NoError(t, err)
	require.NoError(t, writer.Close())
	require.NoError(t, f.Close())
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{input: "2023-01-02", want: "2023-01-02"},
		{input: "2023-12-31", want: "2023-12-31"},
		{input: "2023-1-2", wantErr: true},
		{input: "01-02-2023", wantErr: true},
		{input: "yesterday", wantErr: true},
		{input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			parsed, err := ParseDate(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, parsed.String())
		})
	}
}

func TestDateMarshalJSON(t *testing.T) {
	data, err := NewDate(2023, time.June, 5).MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `"2023-06-05"`, string(data))
}

func TestLoadMetricFileDateColumn(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "steps_daily.parquet")

	writeParquet(t, path, []dateRow{
		{Entity: "alice", Date: time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC), Steps: 11408},
		{Entity: "bob", Date: time.Date(2023, 1, 3, 0, 0, 0, 0, time.UTC), Steps: 9200},
	})

	points, err := LoadMetricFile(path, "steps")
	require.NoError(t, err)
	require.Len(t, points, 2)

	assert.Equal(t, "alice", points[0].Entity)
	assert.Equal(t, "steps", points[0].Metric)
	assert.Equal(t, "2023-01-02", points[0].Date.String())
	assert.Equal(t, float64(11408), points[0].Value)

	assert.Equal(t, "bob", points[1].Entity)
	assert.Equal(t, "2023-01-03", points[1].Date.String())
}

func TestLoadMetricFileTimestampMonthColumn(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "distance_monthly.parquet")

	writeParquet(t, path, []timestampRow{
		{Entity: "alice", Month: time.Date(2023, 2, 1, 0, 0, 0, 0, time.UTC), Distance: 42195.5},
	})

	points, err := LoadMetricFile(path, "distance")
	require.NoError(t, err)
	require.Len(t, points, 1)

	assert.Equal(t, "2023-02-01", points[0].Date.String())
	assert.Equal(t, 42195.5, points[0].Value)
}

func TestLoadMetricFileStringWeekColumn(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "weight_weekly.parquet")

	writeParquet(t, path, []stringDateRow{
		{Entity: "alice", Week: "2023-03-06", Value: 71.2},
	})

	points, err := LoadMetricFile(path, "weight")
	require.NoError(t, err)
	require.Len(t, points, 1)

	assert.Equal(t, "2023-03-06", points[0].Date.String())
	assert.Equal(t, 71.2, points[0].Value)
}

func TestLoadMetricFileBadStringDate(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "weight_weekly.parquet")

	writeParquet(t, path, []stringDateRow{
		{Entity: "alice", Week: "first week of march", Value: 71.2},
	})

	_, err := LoadMetricFile(path, "weight")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid date string")
}

func TestLoadMetricFileMetricColumnIgnored(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "calories_daily.parquet")

	// The metric column recorded in the file does not match the file name;
	// the catalog name must win
	writeParquet(t, path, []metricColumnRow{
		{Entity: "alice", Metric: "something_else", Date: "2023-01-02", Count: 1840},
	})

	points, err := LoadMetricFile(path, "calories")
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.Equal(t, "calories", points[0].Metric)
	assert.Equal(t, float64(1840), points[0].Value)
}

func TestLoadMetricFileSchemaErrors(t *testing.T) {
	type noEntityRow struct {
		Name  string `parquet:"name"`
		Date  string `parquet:"date"`
		Count int64  `parquet:"count"`
	}
	type twoValuesRow struct {
		Entity string `parquet:"entity"`
		Date   string `parquet:"date"`
		Count  int64  `parquet:"count"`
		Other  int64  `parquet:"other"`
	}
	type noDateRow struct {
		Entity string `parquet:"entity"`
		Count  int64  `parquet:"count"`
	}

	dir := t.TempDir()

	t.Run("missing entity column", func(t *testing.T) {
		path := filepath.Join(dir, "steps_a.parquet")
		writeParquet(t, path, []noEntityRow{{Name: "alice", Date: "2023-01-02", Count: 1}})

		_, err := LoadMetricFile(path, "steps")
		require.Error(t, err)
		assert.Contains(t, err.Error(), `missing required column "entity"`)
		assert.Contains(t, err.Error(), "columns:")
	})

	t.Run("multiple value columns", func(t *testing.T) {
		path := filepath.Join(dir, "steps_b.parquet")
		writeParquet(t, path, []twoValuesRow{{Entity: "alice", Date: "2023-01-02", Count: 1, Other: 2}})

		_, err := LoadMetricFile(path, "steps")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "multiple value columns")
		assert.Contains(t, err.Error(), "count")
		assert.Contains(t, err.Error(), "other")
	})

	t.Run("no date column", func(t *testing.T) {
		path := filepath.Join(dir, "steps_c.parquet")
		writeParquet(t, path, []noDateRow{{Entity: "alice", Count: 1}})

		_, err := LoadMetricFile(path, "steps")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no date column")
	})
}

func TestLoadMetricFileSkipsNullRows(t *testing.T) {
	type optionalValueRow struct {
		Entity string   `parquet:"entity"`
		Date   string   `parquet:"date"`
		Count  *float64 `parquet:"count"`
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "steps_daily.parquet")

	value := 120.0
	writeParquet(t, path, []optionalValueRow{
		{Entity: "alice", Date: "2023-01-02", Count: &value},
		{Entity: "alice", Date: "2023-01-03", Count: nil},
	})

	points, err := LoadMetricFile(path, "steps")
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.Equal(t, 120.0, points[0].Value)
}

func TestLoadAll(t *testing.T) {
	dir := t.TempDir()

	writeParquet(t, filepath.Join(dir, "steps_daily.parquet"), []dateRow{
		{Entity: "alice", Date: time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC), Steps: 11408},
		{Entity: "bob", Date: time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC), Steps: 8100},
	})
	writeParquet(t, filepath.Join(dir, "distance_monthly.parquet"), []timestampRow{
		{Entity: "alice", Month: time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC), Distance: 250000},
	})

	catalog, err := ScanDir(dir, nil)
	require.NoError(t, err)

	frame, err := LoadAll(context.Background(), catalog, 4)
	require.NoError(t, err)
	require.Equal(t, 3, frame.Len())

	// Metrics concatenate in sorted order, file row order preserved within
	assert.Equal(t, "distance", frame.Points[0].Metric)
	assert.Equal(t, "steps", frame.Points[1].Metric)
	assert.Equal(t, "alice", frame.Points[1].Entity)
	assert.Equal(t, "bob", frame.Points[2].Entity)

	assert.True(t, frame.HasEntity("alice"))
	assert.True(t, frame.HasEntity("bob"))
	assert.False(t, frame.HasEntity("carol"))
	assert.True(t, frame.HasMetric("steps"))
	assert.True(t, frame.HasMetric("distance"))
	assert.False(t, frame.HasMetric("calories"))
}

func TestLoadAllPropagatesFileErrors(t *testing.T) {
	dir := t.TempDir()

	writeParquet(t, filepath.Join(dir, "steps_daily.parquet"), []dateRow{
		{Entity: "alice", Date: time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC), Steps: 1},
	})
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken_daily.parquet"), []byte("not parquet"), 0644))

	catalog, err := ScanDir(dir, nil)
	require.NoError(t, err)

	_, err = LoadAll(context.Background(), catalog, 4)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken_daily.parquet")
}
