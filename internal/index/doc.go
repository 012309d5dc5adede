// Package index keeps the asset catalog and the metadata store consistent
// with the file system.
//
// Three cooperating parts share the catalog and store:
//   - Pipeline enriches a single file and inserts it into the catalog.
//   - Importer walks new roots through the pipeline on a bounded worker
//     pool, then applies coalesced change notifications for them.
//   - Sweeper periodically evicts records whose file has disappeared.
//
// No lock spans these parts. Ordering between a change notification, an
// import walk and a sweep touching the same path is last-writer-wins; a
// stale entry survives at most one sweep interval.
package index
