// Package harvest drives one image harvest from a search query to a folder
// of unique, relevant pictures.
//
// A run goes through three phases. The base phase searches the query,
// admits a tier-sized set of referrer URLs and visits them in batches,
// fast domains first. The remaining sweep revisits URLs an earlier batch
// never reached. The variation phase searches qualified forms of the query
// while the shortfall stays above the tier threshold.
//
// Candidate images run on a bounded worker pool. Fetching, validation and
// scoring happen in parallel; the fingerprint check and the insert are
// serialized by the Deduper, which also enforces the hard download cap.
package harvest
