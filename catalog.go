package fitmetrics

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// metricFilePattern extracts the metric name from a data file name: the
// word characters up to the last underscore. "resting_heart_rate_daily.parquet"
// maps to the metric "resting_heart_rate".
var metricFilePattern = regexp.MustCompile(`^(\w+)_`)

// MetricFile is one data file in the local data directory.
type MetricFile struct {
	// Metric is the metric name extracted from the file name
	Metric string

	// Name is the file's base name
	Name string

	// Path is the absolute path to the file
	Path string

	// Size is the file size in bytes
	Size int64
}

// Catalog maps metric names to the data files that hold them.
type Catalog struct {
	dir          string
	files        map[string]MetricFile
	descriptions map[string]string
}

// MetricNameFromFile extracts the metric name from a data file name.
// Returns false when the name carries no metric prefix.
func MetricNameFromFile(fileName string) (string, bool) {
	m := metricFilePattern.FindStringSubmatch(fileName)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// ScanDir builds a catalog from the files in the given data directory.
// Files whose name carries no metric prefix are skipped with a warning.
// When several files map to the same metric, the lexically last one wins.
// A missing directory yields an empty catalog.
func ScanDir(dir string, descriptionOverrides map[string]string) (*Catalog, error) {
	catalog := &Catalog{
		dir:          dir,
		files:        make(map[string]MetricFile),
		descriptions: descriptionOverrides,
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			zlog.Warn("data directory does not exist, catalog is empty", zap.String("dir", dir))
			return catalog, nil
		}
		return nil, fmt.Errorf("failed to read data directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}

		metric, ok := MetricNameFromFile(entry.Name())
		if !ok {
			zlog.Warn("skipping data file without metric prefix",
				zap.String("file", entry.Name()))
			continue
		}

		info, err := entry.Info()
		if err != nil {
			return nil, fmt.Errorf("failed to stat data file %s: %w", entry.Name(), err)
		}

		catalog.files[metric] = MetricFile{
			Metric: metric,
			Name:   entry.Name(),
			Path:   filepath.Join(dir, entry.Name()),
			Size:   info.Size(),
		}

		zlog.Debug("cataloged metric file",
			zap.String("metric", metric),
			zap.String("file", entry.Name()),
			zap.Int64("size", info.Size()))
	}

	zlog.Debug("scanned data directory",
		zap.String("dir", dir),
		zap.Int("metrics", len(catalog.files)))

	return catalog, nil
}

// Metrics returns the cataloged metric names, sorted.
func (c *Catalog) Metrics() []string {
	names := make([]string, 0, len(c.files))
	for name := range c.files {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// File returns the data file backing the given metric.
func (c *Catalog) File(metric string) (MetricFile, bool) {
	file, ok := c.files[metric]
	return file, ok
}

// Len returns the number of cataloged metrics.
func (c *Catalog) Len() int {
	return len(c.files)
}

// Description returns the description for a metric. Configured overrides
// win over the built-in descriptors; unknown metrics return "".
func (c *Catalog) Description(metric string) string {
	if desc, ok := c.descriptions[metric]; ok {
		return desc
	}
	if descriptor, ok := GetDescriptor(metric); ok {
		return descriptor.Description
	}
	return ""
}
