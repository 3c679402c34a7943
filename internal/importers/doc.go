// Package importers contains the format parsers of the ingestion pipeline
// and the helpers they share: DOCX paragraph extraction, the numbered-line
// pattern, and external-id sequence diagnostics.
//
// Each format lives in its own subpackage (docxnum, docxpara, txt, tei) and
// produces a Parsed value; the ingest service owns the database write and the
// import report.
package importers
