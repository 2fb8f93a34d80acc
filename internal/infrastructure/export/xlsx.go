// Package export renders expense reports.
package export

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/garyjia/expense-approval/internal/domain/entity"
)

const (
	SheetExpenses = "Expenses"
	SheetSteps    = "Approval Steps"

	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var (
	expenseHeader = []interface{}{
		"ID", "Title", "Submitted By", "Date", "Submitted At", "Amount", "Currency",
		"Original Amount", "Original Currency", "Rule Type", "Status", "Approved Steps", "Total Steps",
	}
	stepHeader = []interface{}{
		"Expense ID", "Sequence", "Role", "Approver", "Decision", "Decided By", "Decided At", "Comment",
	}
)

// XLSXExporter writes expenses into a workbook with one sheet of expenses
// and one sheet of their approval steps
type XLSXExporter struct {
	dateFormat string
	maxRows    int
	logger     *zap.Logger
}

// NewXLSXExporter creates an exporter. maxRows <= 0 disables the limit.
func NewXLSXExporter(dateFormat string, maxRows int, logger *zap.Logger) *XLSXExporter {
	if dateFormat == "" {
		dateFormat = "2006-01-02"
	}
	return &XLSXExporter{dateFormat: dateFormat, maxRows: maxRows, logger: logger}
}

func (x *XLSXExporter) ContentType() string {
	return xlsxContentType
}

// Export writes the workbook to w
func (x *XLSXExporter) Export(ctx context.Context, expenses []*entity.Expense, w io.Writer) error {
	if x.maxRows > 0 && len(expenses) > x.maxRows {
		return fmt.Errorf("report has %d expenses, limit is %d", len(expenses), x.maxRows)
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetExpenses); err != nil {
		return fmt.Errorf("failed to rename sheet: %w", err)
	}
	if _, err := f.NewSheet(SheetSteps); err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create style: %w", err)
	}
	if err := x.writeHeader(f, SheetExpenses, expenseHeader, bold); err != nil {
		return err
	}
	if err := x.writeHeader(f, SheetSteps, stepHeader, bold); err != nil {
		return err
	}

	stepRow := 2
	for i, exp := range expenses {
		if err := ctx.Err(); err != nil {
			return err
		}

		row := []interface{}{
			exp.ID,
			exp.Title,
			exp.SubmittedBy,
			x.formatTime(exp.Date),
			exp.SubmittedAt.UTC().Format(time.RFC3339),
			exp.Amount.InexactFloat64(),
			exp.Currency,
			exp.OriginalAmount.InexactFloat64(),
			exp.OriginalCurrency,
			exp.RuleTypeSnapshot.String(),
			exp.Status.String(),
			exp.ApprovedCount(),
			len(exp.ApprovalSteps),
		}
		if err := x.writeRow(f, SheetExpenses, i+2, row); err != nil {
			return err
		}

		for _, step := range exp.ApprovalSteps {
			decidedAt := ""
			if step.DecidedAt != nil {
				decidedAt = step.DecidedAt.UTC().Format(time.RFC3339)
			}
			row := []interface{}{
				exp.ID,
				step.Sequence + 1,
				step.Role.String(),
				step.ApproverID,
				step.Decision.String(),
				step.DecidedBy,
				decidedAt,
				step.Comment,
			}
			if err := x.writeRow(f, SheetSteps, stepRow, row); err != nil {
				return err
			}
			stepRow++
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}

	x.logger.Info("Expense report exported",
		zap.Int("expenses", len(expenses)),
		zap.Int("steps", stepRow-2))
	return nil
}

func (x *XLSXExporter) writeHeader(f *excelize.File, sheet string, header []interface{}, style int) error {
	if err := x.writeRow(f, sheet, 1, header); err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(len(header), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", last, style); err != nil {
		return fmt.Errorf("failed to style header: %w", err)
	}
	return f.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})
}

func (x *XLSXExporter) writeRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("failed to write %s row %d: %w", sheet, row, err)
	}
	return nil
}

func (x *XLSXExporter) formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(x.dateFormat)
}
