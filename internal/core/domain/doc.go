// Package domain contains the core business entities of the corpus engine:
// documents, units, alignment links, document relations, runs, jobs, and the
// value types exchanged with the query, curation, segmentation, and export
// services.
//
// Domain types have no dependency on storage or transport. They carry JSON
// tags because the sidecar envelope and the CLI JSON output serialize them
// directly.
package domain
