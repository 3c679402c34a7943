package exporters

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/custodia-labs/agrafes/internal/core/domain"
	"github.com/custodia-labs/agrafes/internal/core/ports/driven"
)

// alignHeader is the column order of the alignment dump.
var alignHeader = []string{
	"link_id", "external_id", "pivot_doc_id", "target_doc_id",
	"pivot_unit_id", "target_unit_id", "pivot_text", "target_text", "status",
}

// ExportAlignCSV writes the alignment links matching the filter to outPath.
// delimiter must be ',' or '\t'; anything else falls back to ','.
func ExportAlignCSV(
	ctx context.Context, links driven.LinkStore,
	f domain.AlignExportFilter, outPath string, delimiter rune,
) (int, error) {
	if delimiter != ',' && delimiter != '\t' {
		delimiter = ','
	}

	rows, err := links.ExportRows(ctx, f)
	if err != nil {
		return 0, err
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0o700); err != nil {
		return 0, fmt.Errorf("creating export directory: %w", err)
	}
	file, err := os.Create(outPath)
	if err != nil {
		return 0, fmt.Errorf("creating export file: %w", err)
	}
	defer file.Close()

	w := csv.NewWriter(file)
	w.Comma = delimiter

	if err := w.Write(alignHeader); err != nil {
		return 0, fmt.Errorf("writing header: %w", err)
	}
	for _, r := range rows {
		record := []string{
			strconv.FormatInt(r.LinkID, 10),
			formatNullInt(r.ExternalID),
			strconv.FormatInt(r.PivotDocID, 10),
			strconv.FormatInt(r.TargetDocID, 10),
			strconv.FormatInt(r.PivotUnitID, 10),
			strconv.FormatInt(r.TargetUnitID, 10),
			r.PivotText,
			r.TargetText,
			formatNullString(r.Status),
		}
		if err := w.Write(record); err != nil {
			return 0, fmt.Errorf("writing row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return 0, fmt.Errorf("flushing export: %w", err)
	}
	return len(rows), nil
}

func formatNullInt(v *int64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatInt(*v, 10)
}

func formatNullString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
