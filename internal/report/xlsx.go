package report

import (
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/nyc311-cli/internal/model"
)

// SheetName is the worksheet holding an exported report.
const SheetName = "report"

// SaveXLSX writes rows to path as a single-sheet workbook with a header row.
func SaveXLSX(path string, rows []model.StatRow) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet(SheetName)
	if err != nil {
		return eris.Wrap(err, "report: add sheet")
	}

	header := sheet.AddRow()
	for _, name := range []string{"date", "boro", "metric", "value"} {
		header.AddCell().SetString(name)
	}
	for _, r := range rows {
		row := sheet.AddRow()
		row.AddCell().SetString(r.Date)
		row.AddCell().SetString(r.Boro)
		row.AddCell().SetString(r.Metric)
		row.AddCell().SetInt64(r.Value)
	}

	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "report: save xlsx %s", path)
	}
	return nil
}
