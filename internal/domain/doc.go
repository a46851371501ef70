// Package domain models the epidemiological time series assembled by the
// pipeline.
//
// # Locations
//
// A [Location] is a comparable identity used directly as a map key. Its
// [Tier] follows from which fields are populated:
//
//	Country  Code only, an ISO-3166 alpha-3 code or a reserved X-code
//	         ("XDP" for the cruise ship, "XKX" for Kosovo)
//	State    Code "USA" plus State
//	County   Code "USA" plus State, County and the census FIPS id
//	Meta     Code "TOT", the grand total over every country
//
// Per-tier subtotals are ordinary State and County locations whose state or
// county is "Total", so they are trimmed and charted with their tier.
//
// # Time base
//
// Every series is indexed by an integer day offset from [DateAxis.Start].
// The axis is inclusive of both ends:
//
//	Days = floor((End - Start) / 24h) + 1
//
// Offset 0 has no prior day, so its delta is undefined for sources that
// report running totals. The pipeline drops it before deriving metrics.
//
// # Relations
//
// For every (metric, location) three series are kept:
//
//	relative  daily new count (delta)
//	absolute  running sum of relative
//	growth    relative[i] / relative[i-1], rounded to two decimals,
//	          0 when the previous day is 0 and at offset 0
package domain
