// Package search answers similarity queries over one index or every index
// of a project.
//
// A query is embedded once. Project search queries the target indexes
// concurrently; an index that fails contributes no results. Hits are then
// merged, sorted by descending score, filtered by the minimum score and
// capped at top-K, in that order, so the cap applies to the union and not
// per index. Hits without a chunk row are orphans: they are dropped,
// logged and counted, never returned.
package search
