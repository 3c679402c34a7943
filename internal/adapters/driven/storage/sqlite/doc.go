// Package sqlite implements every driven store port on a single embedded
// SQLite database. The FTS5 virtual table fts_units is colocated with the
// relational tables; its rowid equals units.unit_id.
//
// Concurrency: WAL mode allows concurrent readers; writers serialize on the
// database. Ingestion, curation, segmentation, and per-pair alignment writes
// each run in one transaction, so readers observe either the old or the new
// state, never a partial one.
package sqlite
