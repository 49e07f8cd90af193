package fitmetrics

import (
	"encoding/json"
	"net/http"
	"strings"
)

// Error messages are part of the API contract and must not be reworded.
const (
	msgBadDate       = "date must be provided as a string in ISO format (YYYY-MM-DD)."
	msgUnknownEntity = "one or more entities provided do not exist."
	msgUnknownMetric = "metric provided do not exist."
)

// QueryError is a query validation failure, carrying the HTTP status the
// API reports it with.
type QueryError struct {
	Status  int
	Message string
}

func (e *QueryError) Error() string {
	return e.Message
}

// QueryParams selects the points a query returns. Entities is required and
// matched exactly (no trimming); StartDate and EndDate are optional
// inclusive bounds in ISO format (YYYY-MM-DD).
type QueryParams struct {
	Entities  []string
	Metric    string
	StartDate string
	EndDate   string
}

// SplitEntities splits a comma-separated entity list the way the API
// receives it. Values are not trimmed; an empty input yields nil.
func SplitEntities(raw string) []string {
	if raw == "" {
		return nil
	}
	return strings.Split(raw, ",")
}

// RunQuery filters the frame down to the requested entities, metric and
// date range. Validation failures return a *QueryError; the returned slice
// is never nil so an empty result encodes as [].
//
// Entities and metric are validated against the whole frame, not just the
// queried metric, so a valid entity with no points for this metric yields
// an empty result rather than an error.
func RunQuery(frame *Frame, params QueryParams) ([]Point, error) {
	if len(params.Entities) == 0 {
		return nil, &QueryError{Status: http.StatusNotFound, Message: msgUnknownEntity}
	}
	if params.Metric == "" {
		return nil, &QueryError{Status: http.StatusNotFound, Message: msgUnknownMetric}
	}

	for _, entity := range params.Entities {
		if !frame.HasEntity(entity) {
			return nil, &QueryError{Status: http.StatusNotFound, Message: msgUnknownEntity}
		}
	}
	if !frame.HasMetric(params.Metric) {
		return nil, &QueryError{Status: http.StatusNotFound, Message: msgUnknownMetric}
	}

	var startDate, endDate Date
	hasStart, hasEnd := params.StartDate != "", params.EndDate != ""
	if hasStart {
		parsed, err := ParseDate(params.StartDate)
		if err != nil {
			return nil, &QueryError{Status: http.StatusBadRequest, Message: msgBadDate}
		}
		startDate = parsed
	}
	if hasEnd {
		parsed, err := ParseDate(params.EndDate)
		if err != nil {
			return nil, &QueryError{Status: http.StatusBadRequest, Message: msgBadDate}
		}
		endDate = parsed
	}

	entities := make(map[string]struct{}, len(params.Entities))
	for _, entity := range params.Entities {
		entities[entity] = struct{}{}
	}

	results := []Point{}
	for _, point := range frame.Points {
		if point.Metric != params.Metric {
			continue
		}
		if _, ok := entities[point.Entity]; !ok {
			continue
		}
		if hasStart && point.Date.Before(startDate.Time) {
			continue
		}
		if hasEnd && point.Date.After(endDate.Time) {
			continue
		}
		results = append(results, point)
	}

	return results, nil
}

// EncodeRecords serializes query results as a pretty-printed JSON array of
// records, 4-space indented. A nil slice encodes as [].
func EncodeRecords(points []Point) ([]byte, error) {
	if points == nil {
		points = []Point{}
	}
	return json.MarshalIndent(points, "", "    ")
}
