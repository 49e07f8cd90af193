package fitmetrics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/format"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Date is a civil date (no time component) in UTC, serialized as YYYY-MM-DD.
type Date struct{ time.Time }

var epochDay = time.Date(1970, time.January, 1, 0, 0, 0, 0, time.UTC)

// NewDate returns the civil date for the given year, month and day.
func NewDate(year int, month time.Month, day int) Date {
	return Date{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates an instant to its UTC civil date.
func DateOf(t time.Time) Date {
	year, month, day := t.UTC().Date()
	return NewDate(year, month, day)
}

// ParseDate parses a date in ISO format (YYYY-MM-DD).
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, err
	}
	return Date{t}, nil
}

func (d Date) String() string {
	return d.Format("2006-01-02")
}

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Point is one observation: a value measured for an entity on a date.
type Point struct {
	Entity string  `json:"entity"`
	Metric string  `json:"metric"`
	Date   Date    `json:"date"`
	Value  float64 `json:"value"`
}

// Frame is the consolidated table of points across all metrics, with the
// entity and metric universes used for query validation.
type Frame struct {
	Points []Point

	entities map[string]struct{}
	metrics  map[string]struct{}
}

// NewFrame returns an empty frame.
func NewFrame() *Frame {
	return &Frame{
		entities: make(map[string]struct{}),
		metrics:  make(map[string]struct{}),
	}
}

// Add appends points to the frame.
func (f *Frame) Add(points ...Point) {
	for _, p := range points {
		f.entities[p.Entity] = struct{}{}
		f.metrics[p.Metric] = struct{}{}
	}
	f.Points = append(f.Points, points...)
}

// HasEntity reports whether any point in the frame belongs to the entity.
func (f *Frame) HasEntity(entity string) bool {
	_, ok := f.entities[entity]
	return ok
}

// HasMetric reports whether any point in the frame belongs to the metric.
func (f *Frame) HasMetric(metric string) bool {
	_, ok := f.metrics[metric]
	return ok
}

// Len returns the number of points in the frame.
func (f *Frame) Len() int {
	return len(f.Points)
}

// dateEncoding is how a data file's date column is physically encoded.
type dateEncoding int

const (
	dateEncodingDays dateEncoding = iota
	dateEncodingMillis
	dateEncodingMicros
	dateEncodingNanos
	dateEncodingString
)

// columnLayout maps the roles of a metric file's columns to leaf column
// indexes. Metric files have a flat schema: an entity column, exactly one
// date-like column (date, month or week), an optional metric column whose
// value is ignored, and exactly one remaining column holding the values.
type columnLayout struct {
	entity  int
	date    int
	value   int
	dateEnc dateEncoding
}

func resolveColumns(schema *parquet.Schema, fileName string) (*columnLayout, error) {
	layout := &columnLayout{entity: -1, date: -1, value: -1}

	var names, dateCols, valueCols []string
	for i, field := range schema.Fields() {
		name := field.Name()
		names = append(names, name)

		if !field.Leaf() {
			return nil, fmt.Errorf("%s: unsupported nested column %q", fileName, name)
		}

		switch name {
		case "entity":
			layout.entity = i
		case "metric":
			// The file's own metric column is ignored, the catalog name wins
		case "date", "month", "week":
			dateCols = append(dateCols, name)
			layout.date = i
			enc, err := dateEncodingFor(field.Type(), name, fileName)
			if err != nil {
				return nil, err
			}
			layout.dateEnc = enc
		default:
			valueCols = append(valueCols, name)
			layout.value = i
		}
	}

	allColumns := strings.Join(names, ", ")
	if layout.entity < 0 {
		return nil, fmt.Errorf("%s: missing required column \"entity\" (columns: %s)", fileName, allColumns)
	}
	if len(dateCols) == 0 {
		return nil, fmt.Errorf("%s: no date column, expected one of date, month or week (columns: %s)", fileName, allColumns)
	}
	if len(dateCols) > 1 {
		return nil, fmt.Errorf("%s: multiple date columns (%s)", fileName, strings.Join(dateCols, ", "))
	}
	if len(valueCols) == 0 {
		return nil, fmt.Errorf("%s: no value column (columns: %s)", fileName, allColumns)
	}
	if len(valueCols) > 1 {
		return nil, fmt.Errorf("%s: multiple value columns (%s), expected exactly one", fileName, strings.Join(valueCols, ", "))
	}

	return layout, nil
}

func dateEncodingFor(t parquet.Type, column, fileName string) (dateEncoding, error) {
	if lt := t.LogicalType(); lt != nil {
		switch {
		case lt.Date != nil:
			return dateEncodingDays, nil
		case lt.Timestamp != nil:
			return timestampEncoding(lt.Timestamp.Unit), nil
		case lt.UTF8 != nil:
			return dateEncodingString, nil
		}
	}

	// No usable logical type, fall back on the physical type. Raw int64
	// date columns are assumed to hold epoch milliseconds.
	switch t.Kind() {
	case parquet.Int32:
		return dateEncodingDays, nil
	case parquet.Int64:
		return dateEncodingMillis, nil
	case parquet.ByteArray:
		return dateEncodingString, nil
	}

	return 0, fmt.Errorf("%s: unsupported type for date column %q", fileName, column)
}

func timestampEncoding(unit format.TimeUnit) dateEncoding {
	switch {
	case unit.Micros != nil:
		return dateEncodingMicros
	case unit.Nanos != nil:
		return dateEncodingNanos
	default:
		return dateEncodingMillis
	}
}

func decodeDate(v parquet.Value, enc dateEncoding) (Date, error) {
	switch enc {
	case dateEncodingDays:
		switch v.Kind() {
		case parquet.Int32:
			return Date{epochDay.AddDate(0, 0, int(v.Int32()))}, nil
		case parquet.Int64:
			return Date{epochDay.AddDate(0, 0, int(v.Int64()))}, nil
		}
		return Date{}, fmt.Errorf("date column holds %s, expected an integer day count", v.Kind())
	case dateEncodingMillis:
		return DateOf(time.UnixMilli(v.Int64())), nil
	case dateEncodingMicros:
		return DateOf(time.UnixMicro(v.Int64())), nil
	case dateEncodingNanos:
		return DateOf(time.Unix(0, v.Int64())), nil
	case dateEncodingString:
		parsed, err := ParseDate(v.String())
		if err != nil {
			return Date{}, fmt.Errorf("invalid date string %q, expected YYYY-MM-DD", v.String())
		}
		return parsed, nil
	}
	return Date{}, fmt.Errorf("unknown date encoding %d", enc)
}

func decodeValue(v parquet.Value) (float64, error) {
	switch v.Kind() {
	case parquet.Boolean:
		if v.Boolean() {
			return 1, nil
		}
		return 0, nil
	case parquet.Int32:
		return float64(v.Int32()), nil
	case parquet.Int64:
		return float64(v.Int64()), nil
	case parquet.Float:
		return float64(v.Float()), nil
	case parquet.Double:
		return v.Double(), nil
	}
	return 0, fmt.Errorf("unsupported value type %s", v.Kind())
}

// LoadMetricFile reads one Parquet data file and returns its points, all
// tagged with the given metric name. Rows with a null entity, date or value
// are skipped.
func LoadMetricFile(path, metric string) ([]Point, error) {
	fileName := filepath.Base(path)

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open data file: %w", err)
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat data file: %w", err)
	}

	pf, err := parquet.OpenFile(f, stat.Size())
	if err != nil {
		return nil, fmt.Errorf("failed to open %s as parquet: %w", fileName, err)
	}

	layout, err := resolveColumns(pf.Schema(), fileName)
	if err != nil {
		return nil, err
	}

	var points []Point
	var skipped int

	for _, rowGroup := range pf.RowGroups() {
		rows := rowGroup.Rows()
		buf := make([]parquet.Row, 64)

		for {
			n, readErr := rows.ReadRows(buf)
			for _, row := range buf[:n] {
				point := Point{Metric: metric}
				null := false

				for _, value := range row {
					switch value.Column() {
					case layout.entity:
						if value.IsNull() {
							null = true
							continue
						}
						point.Entity = value.String()
					case layout.date:
						if value.IsNull() {
							null = true
							continue
						}
						point.Date, err = decodeDate(value, layout.dateEnc)
						if err != nil {
							rows.Close()
							return nil, fmt.Errorf("%s: %w", fileName, err)
						}
					case layout.value:
						if value.IsNull() {
							null = true
							continue
						}
						point.Value, err = decodeValue(value)
						if err != nil {
							rows.Close()
							return nil, fmt.Errorf("%s: value column: %w", fileName, err)
						}
					}
				}

				if null {
					skipped++
					continue
				}
				points = append(points, point)
			}

			if readErr != nil {
				if errors.Is(readErr, io.EOF) {
					break
				}
				rows.Close()
				return nil, fmt.Errorf("failed to read rows from %s: %w", fileName, readErr)
			}
			if n == 0 {
				break
			}
		}

		if err := rows.Close(); err != nil {
			return nil, fmt.Errorf("failed to close row reader for %s: %w", fileName, err)
		}
	}

	if skipped > 0 {
		zlog.Debug("skipped rows with null fields",
			zap.String("file", fileName),
			zap.Int("skipped", skipped))
	}

	zlog.Debug("loaded metric file",
		zap.String("file", fileName),
		zap.String("metric", metric),
		zap.Int("points", len(points)))

	return points, nil
}

// LoadAll loads every cataloged metric file concurrently and concatenates
// the results into a single frame, metrics in sorted order and file row
// order preserved within each metric.
func LoadAll(ctx context.Context, catalog *Catalog, workers int) (*Frame, error) {
	if workers < 1 {
		workers = 1
	}

	metrics := catalog.Metrics()
	results := make([][]Point, len(metrics))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, metric := range metrics {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			file, _ := catalog.File(metric)
			points, err := LoadMetricFile(file.Path, metric)
			if err != nil {
				return err
			}
			results[i] = points
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	frame := NewFrame()
	for _, points := range results {
		frame.Add(points...)
	}

	zlog.Debug("loaded all metric data",
		zap.Int("metrics", len(metrics)),
		zap.Int("points", frame.Len()))

	return frame, nil
}
