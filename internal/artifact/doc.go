// Package artifact memoizes expensive derived artifacts (parse results,
// symbol tables, full analyses) keyed by a logical identity such as a
// document URI and validated by a hash of the content they were computed
// from.
//
// A hit is only returned when the stored content hash equals the hash of
// the content being looked up now; version numbers play no part, so an
// edit followed by its exact undo hits the cache again.
//
// Each table is bounded. When a table is full the entry written longest
// ago is evicted; reads do not refresh an entry.
package artifact
