package domain

// Metric is a counted quantity.
type Metric string

const (
	MetricCases  Metric = "cases"
	MetricDeaths Metric = "deaths"
)

// Metrics lists every tracked metric in export order.
var Metrics = []Metric{MetricCases, MetricDeaths}

// Relation is the shape of a metric series.
type Relation string

const (
	// RelationAbsolute is the cumulative running total.
	RelationAbsolute Relation = "absolute"
	// RelationRelative is the day-over-day delta.
	RelationRelative Relation = "relative"
	// RelationGrowth is the ratio of consecutive deltas.
	RelationGrowth Relation = "growth"
)

// Relations lists every relation in export order.
var Relations = []Relation{RelationAbsolute, RelationRelative, RelationGrowth}

// ValueKind says how an Observation's value relates to earlier days.
type ValueKind int

const (
	// KindDelta values are new counts for that day only.
	KindDelta ValueKind = iota
	// KindCumulative values are running totals as of that day.
	KindCumulative
)

func (k ValueKind) String() string {
	if k == KindCumulative {
		return "cumulative"
	}
	return "delta"
}

// Observation is one adapted source record. Observations are consumed by
// the assembler and never persisted.
type Observation struct {
	Location Location
	Offset   int
	Metric   Metric
	Value    int64
	Kind     ValueKind
}
