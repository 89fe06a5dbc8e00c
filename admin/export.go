package admin

import (
	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"
)

// handleExport writes every record of a model as an xlsx workbook with one
// column per list field. Rows use the same display values as the list page.
func (a *Admin) handleExport(c *gin.Context) {
	ma, err := a.registry.get(c.Param("model"))
	if err != nil {
		a.notFound(c)
		return
	}
	items, err := a.store.Run(c.Request.Context(), ma.baseQuery())
	if err != nil {
		a.serverError(c, err)
		return
	}

	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	for col, prop := range ma.listProps {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		f.SetCellValue(sheet, cell, prop.Label)
	}
	for row, item := range items {
		values := a.attachValues(c.Request.Context(), ma.listProps, item)
		for col, value := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			f.SetCellValue(sheet, cell, value.Display())
		}
	}

	c.Writer.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Writer.Header().Set("Content-Disposition", "attachment; filename="+ma.name+".xlsx")
	if err := f.Write(c.Writer); err != nil {
		a.logger.Error("xlsx export failed", "model", ma.name, "error", err)
	}
}
