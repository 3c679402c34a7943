// Package services implements the core operations of the corpus engine on
// top of the driven store ports: ingestion, indexing, query, alignment,
// curation, segmentation, metadata validation, and the run log. The Engine
// type bundles them behind the single-writer lock the sidecar and CLI share.
package services
