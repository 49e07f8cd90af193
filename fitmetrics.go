// Package fitmetrics serves activity metrics extracted from Google Fit
// exports. Metric data lives as Parquet files in an object store; the
// package syncs them into a local data directory and exposes a JSON query
// API over the consolidated data.
package fitmetrics

import (
	"github.com/streamingfast/logging"
)

var zlog, _ = logging.PackageLogger("fitmetrics", "github.com/streamingfast/fitmetrics")
