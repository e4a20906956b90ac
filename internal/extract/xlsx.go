package extract

import (
	"bytes"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/copy-catalog/constants"
)

// extractXLSX renders every sheet as tab-separated rows, one sheet after another.
func extractXLSX(data []byte) (Result, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return Result{}, corrupt(constants.XLSX, err)
	}
	defer func() { _ = f.Close() }()

	var (
		b     strings.Builder
		warns []string
	)
	sheets := f.GetSheetList()
	for _, sheet := range sheets {
		rows, err := f.GetRows(sheet)
		if err != nil {
			warns = append(warns, "sheet "+sheet+": "+err.Error())
			continue
		}
		for _, row := range rows {
			line := strings.TrimRight(strings.Join(row, "\t"), "\t")
			if line == "" {
				continue
			}
			b.WriteString(line)
			b.WriteByte('\n')
		}
		b.WriteByte('\n')
	}
	return Result{Text: b.String(), Pages: len(sheets), Method: "xlsx", Warnings: warns}, nil
}
