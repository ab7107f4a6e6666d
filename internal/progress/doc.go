// Package progress implements the selection-scoped filter and aggregation engine behind the
// course progress dashboard.
//
// Every function in this package is pure: it reads the events handed to it and returns
// fresh values. Percentages are fractions in [0,1]; presentation layers scale them.
// Missing ids and empty selections produce empty results, never errors. The only errors
// raised are IngestError for malformed source rows and DataInconsistencyError for
// violated data invariants.
package progress
