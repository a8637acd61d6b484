package reports

import (
	"fmt"
	"io"

	"bitbucket.org/iglesiacentral/comunidad_backend/models"
	"bitbucket.org/iglesiacentral/comunidad_backend/utils"
	"bitbucket.org/iglesiacentral/comunidad_backend/workflow"
	"github.com/xuri/excelize/v2"
)

// XlsxContentType is the response content type for closure exports.
const XlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// WriteClosureXlsx renders one event closure as a spreadsheet: a header
// block with the totals, then one row per entry. Treasurers hand this to the
// church board, so amounts are written as exact strings.
func WriteClosureXlsx(w io.Writer, closure *workflow.EventClosure) error {
	f := excelize.NewFile()
	sheetName := "Cierre"
	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return err
	}

	f.SetCellValue(sheetName, "A1", "Evento")
	f.SetCellValue(sheetName, "B1", closure.Title)
	f.SetCellValue(sheetName, "A2", "Total ingresos")
	f.SetCellValue(sheetName, "B2", closure.TotalIncome.StringFixed(2))
	f.SetCellValue(sheetName, "A3", "Registros")
	f.SetCellValue(sheetName, "B3", closure.EntryCount)
	f.SetCellValue(sheetName, "A4", "Diezmos")
	f.SetCellValue(sheetName, "B4", closure.TithesCount)
	f.SetCellValue(sheetName, "A5", "Ofrendas")
	f.SetCellValue(sheetName, "B5", closure.OfferingsCount)

	// Add headers
	headerRow := 7
	f.SetCellValue(sheetName, "A"+fmt.Sprint(headerRow), "Fecha")
	f.SetCellValue(sheetName, "B"+fmt.Sprint(headerRow), "Concepto")
	f.SetCellValue(sheetName, "C"+fmt.Sprint(headerRow), "Donante")
	f.SetCellValue(sheetName, "D"+fmt.Sprint(headerRow), "Tipo")
	f.SetCellValue(sheetName, "E"+fmt.Sprint(headerRow), "Método")
	f.SetCellValue(sheetName, "F"+fmt.Sprint(headerRow), "Monto")

	// Add data
	for i, entry := range closure.Entries {
		row := fmt.Sprint(headerRow + 1 + i)
		f.SetCellValue(sheetName, "A"+row, entry.CreatedAt.Format("2006-01-02"))
		f.SetCellValue(sheetName, "B"+row, entry.Concept)
		f.SetCellValue(sheetName, "C"+row, utils.DereferencePtr(entry.DonorName, ""))
		f.SetCellValue(sheetName, "D"+row, subTypeLabel(entry.SubType))
		f.SetCellValue(sheetName, "E"+row, string(entry.PaymentMethod))
		f.SetCellValue(sheetName, "F"+row, entry.SignedAmount.StringFixed(2))
	}

	return f.Write(w)
}

func subTypeLabel(subType *models.EntrySubType) string {
	if subType == nil {
		return ""
	}
	switch *subType {
	case models.EntrySubTypeTithe:
		return "diezmo"
	case models.EntrySubTypeOffering:
		return "ofrenda"
	}
	return string(*subType)
}
