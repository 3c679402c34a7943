// Package exporters writes corpus data to caller-supplied local paths:
// structured XML per document, alignment dumps as CSV/TSV, and run reports
// as JSONL or HTML.
package exporters
