package service

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

// WriteReportXLSX 将批量报告导出为 XLSX：
// 订单汇总、非目录款号、价格审计三个工作表。
func WriteReportXLSX(report *BatchReport, path string) error {
	f := excelize.NewFile()
	defer f.Close()

	const ordersSheet = "Orders"
	f.SetSheetName("Sheet1", ordersSheet)
	writeRow(f, ordersSheet, 1, []interface{}{
		"Order #", "Quote ID", "Status", "Products", "Quantity", "Our Total", "SW Subtotal", "Audit", "Verify", "Error",
	})
	for i, o := range report.Orders {
		row := []interface{}{o.OrderID, o.QuoteID}
		if o.Failed() {
			row = append(row, "FAIL")
		} else {
			row = append(row, "OK")
		}
		var products, qty int
		var total, swSubtotal float64
		if o.Result != nil {
			products = len(o.Result.Products)
			qty = o.Result.GarmentQuantity + o.Result.CapQuantity
			total = o.Result.GrandTotal
		}
		if o.Parsed != nil {
			swSubtotal = o.Parsed.OrderSummary.Subtotal
		}
		verify := ""
		if o.Verify != nil {
			verify = fmt.Sprintf("%d/%d", o.Verify.PassCount(), len(o.Verify.Checks))
		}
		row = append(row, products, qty, total, swSubtotal, auditFlag(o), verify, o.Err)
		writeRow(f, ordersSheet, i+2, row)
	}

	const nonCatalogSheet = "Non-Catalog"
	f.NewSheet(nonCatalogSheet)
	writeRow(f, nonCatalogSheet, 1, []interface{}{"Order #", "Part Number"})
	nonCatalogRow := 2
	for _, o := range report.Orders {
		for _, pn := range o.NonCatalog {
			writeRow(f, nonCatalogSheet, nonCatalogRow, []interface{}{o.OrderID, pn})
			nonCatalogRow++
		}
	}

	const auditSheet = "Price Audit"
	f.NewSheet(auditSheet)
	writeRow(f, auditSheet, 1, []interface{}{"Order #", "Line", "Ours", "Reference", "Delta", "Delta %", "Flag"})
	auditRow := 2
	for _, o := range report.Orders {
		if o.Audit == nil {
			continue
		}
		lines := append([]interface{}{}, o.OrderID, o.Audit.Order.Label,
			o.Audit.Order.Ours, o.Audit.Order.Reference, o.Audit.Order.Delta,
			o.Audit.Order.DeltaPct, o.Audit.Order.Flag)
		writeRow(f, auditSheet, auditRow, lines)
		auditRow++
		for _, l := range o.Audit.Lines {
			writeRow(f, auditSheet, auditRow, []interface{}{
				o.OrderID, l.Label, l.Ours, l.Reference, l.Delta, l.DeltaPct, l.Flag,
			})
			auditRow++
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("保存报告失败: %w", err)
	}
	return nil
}

func writeRow(f *excelize.File, sheet string, row int, values []interface{}) {
	cell, _ := excelize.CoordinatesToCellName(1, row)
	_ = f.SetSheetRow(sheet, cell, &values)
}
