// Package report renders expense reports.
package report

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/garyjia/expense-approvals/internal/application/port"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

const sheetName = "Expenses"

var headers = []string{
	"Date", "Employee", "Category", "Vendor", "Description",
	"Amount", "Currency", "Converted Amount", "Converted Currency", "Status",
}

// ExcelWriter renders expense reports as xlsx workbooks
type ExcelWriter struct {
	logger *zap.Logger
}

// NewExcelWriter creates a new ExcelWriter
func NewExcelWriter(logger *zap.Logger) *ExcelWriter {
	return &ExcelWriter{logger: logger}
}

func (w *ExcelWriter) ContentType() string {
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

func (w *ExcelWriter) FileExtension() string {
	return ".xlsx"
}

// WriteExpenseReport writes a title row, a header row, one row per expense and
// one totals row per converted currency
func (w *ExcelWriter) WriteExpenseReport(ctx context.Context, out io.Writer, title string, rows []port.ReportRow) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), sheetName); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create style: %w", err)
	}

	w.setRow(f, 1, []interface{}{title})
	header := make([]interface{}, len(headers))
	for i, h := range headers {
		header[i] = h
	}
	w.setRow(f, 3, header)
	if err := f.SetRowStyle(sheetName, 3, 3, bold); err != nil {
		return fmt.Errorf("failed to style header: %w", err)
	}

	totals := make(map[string]decimal.Decimal)
	rowNum := 4
	for _, r := range rows {
		if err := ctx.Err(); err != nil {
			return err
		}
		w.setRow(f, rowNum, []interface{}{
			r.ExpenseDate, r.Employee, r.Category, r.Vendor, r.Description,
			r.Amount, r.Currency, r.ConvertedAmount, r.ConvertedCurrency, r.Status,
		})
		totals[r.ConvertedCurrency] = totals[r.ConvertedCurrency].Add(decimal.NewFromFloat(r.ConvertedAmount))
		rowNum++
	}

	currencies := make([]string, 0, len(totals))
	for c := range totals {
		currencies = append(currencies, c)
	}
	sort.Strings(currencies)

	rowNum++
	for _, c := range currencies {
		w.setRow(f, rowNum, []interface{}{"Total", nil, nil, nil, nil, nil, nil, totals[c].Round(2).InexactFloat64(), c})
		if err := f.SetRowStyle(sheetName, rowNum, rowNum, bold); err != nil {
			return fmt.Errorf("failed to style totals: %w", err)
		}
		rowNum++
	}

	if err := f.SetColWidth(sheetName, "A", "J", 16); err != nil {
		return fmt.Errorf("failed to set column width: %w", err)
	}
	if err := f.SetColWidth(sheetName, "E", "E", 40); err != nil {
		return fmt.Errorf("failed to set column width: %w", err)
	}

	if err := f.Write(out); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}

	w.logger.Info("Expense report written", zap.String("title", title), zap.Int("rows", len(rows)))
	return nil
}

// setRow writes values starting at column A of row
func (w *ExcelWriter) setRow(f *excelize.File, row int, values []interface{}) {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err == nil {
		err = f.SetSheetRow(sheetName, cell, &values)
	}
	if err != nil {
		w.logger.Warn("Failed to set row values",
			zap.String("sheet", sheetName),
			zap.Int("row", row),
			zap.Error(err))
	}
}

var _ port.ReportWriter = (*ExcelWriter)(nil)
