package exporters

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"os"
	"path/filepath"
	"strings"

	"github.com/custodia-labs/agrafes/internal/core/ports/driven"
)

// Run report formats.
const (
	FormatJSONL = "jsonl"
	FormatHTML  = "html"
)

// ExportRunReport serializes runs (optionally filtered to one run identity)
// to outPath as JSONL or XSS-safe HTML. Returns the number of runs exported.
func ExportRunReport(
	ctx context.Context, runs driven.RunStore, runID, outPath, format string,
) (int, error) {
	if format == "" {
		format = FormatJSONL
	}
	if format != FormatJSONL && format != FormatHTML {
		return 0, fmt.Errorf("unsupported run report format %q", format)
	}

	records, err := runs.ListRuns(ctx, runID)
	if err != nil {
		return 0, err
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0o700); err != nil {
		return 0, fmt.Errorf("creating export directory: %w", err)
	}

	if format == FormatHTML {
		var rows strings.Builder
		for _, r := range records {
			stats := ""
			if r.Stats != nil {
				data, err := json.MarshalIndent(r.Stats, "", "  ")
				if err == nil {
					stats = string(data)
				}
			}
			fmt.Fprintf(&rows,
				"<tr><td>%s</td><td>%s</td><td>%s</td><td><pre>%s</pre></td></tr>",
				html.EscapeString(r.ID),
				html.EscapeString(string(r.Kind)),
				html.EscapeString(r.CreatedAt.UTC().Format("2006-01-02T15:04:05Z")),
				html.EscapeString(stats),
			)
		}
		page := "<!DOCTYPE html><html><head><meta charset='utf-8'>" +
			"<title>Run Report</title></head><body>" +
			"<h1>Run Report</h1>" +
			"<table border='1'><tr><th>run_id</th><th>kind</th><th>created_at</th><th>stats</th></tr>" +
			rows.String() + "</table></body></html>"
		if err := os.WriteFile(outPath, []byte(page), 0o600); err != nil {
			return 0, fmt.Errorf("writing HTML report: %w", err)
		}
		return len(records), nil
	}

	var b strings.Builder
	for _, r := range records {
		line, err := json.Marshal(r)
		if err != nil {
			return 0, fmt.Errorf("marshalling run %s: %w", r.ID, err)
		}
		b.Write(line)
		b.WriteByte('\n')
	}
	if err := os.WriteFile(outPath, []byte(b.String()), 0o600); err != nil {
		return 0, fmt.Errorf("writing JSONL report: %w", err)
	}
	return len(records), nil
}
