package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/poiesic/kbot/core"
	"github.com/xuri/excelize/v2"
)

// extractXLSX returns every sheet's rows in workbook order, cells tab-separated,
// one row per line.
func extractXLSX(content []byte) (string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return "", fmt.Errorf("%w: open workbook: %v", core.ErrExtraction, err)
	}
	defer f.Close()

	var buf strings.Builder
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return "", fmt.Errorf("%w: read sheet %q: %v", core.ErrExtraction, sheet, err)
		}
		for _, row := range rows {
			buf.WriteString(strings.Join(row, "\t"))
			buf.WriteByte('\n')
		}
	}
	return strings.TrimSpace(buf.String()), nil
}
