package fitmetrics

import "sort"

// Descriptor describes a well-known metric
type Descriptor struct {
	// Name is the metric name as extracted from data file names
	Name string

	// Description provides a human-readable explanation of what this metric measures
	Description string

	// Unit is the unit of the metric's values
	Unit string
}

// BuiltinDescriptors contains descriptions for the metrics Google Fit
// exports commonly produce. Unknown metrics are still served, they just
// carry no description.
var BuiltinDescriptors = map[string]Descriptor{
	"steps": {
		Name:        "steps",
		Description: "Step count aggregated per period",
		Unit:        "steps",
	},
	"distance": {
		Name:        "distance",
		Description: "Distance travelled aggregated per period",
		Unit:        "meters",
	},
	"calories": {
		Name:        "calories",
		Description: "Energy expended aggregated per period",
		Unit:        "kcal",
	},
	"heart_rate": {
		Name:        "heart_rate",
		Description: "Average heart rate per period",
		Unit:        "bpm",
	},
	"resting_heart_rate": {
		Name:        "resting_heart_rate",
		Description: "Resting heart rate per period",
		Unit:        "bpm",
	},
	"heart_points": {
		Name:        "heart_points",
		Description: "Heart Points earned per period",
		Unit:        "points",
	},
	"active_minutes": {
		Name:        "active_minutes",
		Description: "Move Minutes accumulated per period",
		Unit:        "minutes",
	},
	"speed": {
		Name:        "speed",
		Description: "Average speed per period",
		Unit:        "m/s",
	},
	"weight": {
		Name:        "weight",
		Description: "Body weight measurements",
		Unit:        "kg",
	},
	"sleep": {
		Name:        "sleep",
		Description: "Sleep duration per period",
		Unit:        "minutes",
	},
}

// GetDescriptor retrieves a built-in descriptor by metric name
func GetDescriptor(name string) (Descriptor, bool) {
	descriptor, ok := BuiltinDescriptors[name]
	return descriptor, ok
}

// ListDescriptors returns a sorted list of all built-in descriptor names
func ListDescriptors() []string {
	names := make([]string, 0, len(BuiltinDescriptors))
	for name := range BuiltinDescriptors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
