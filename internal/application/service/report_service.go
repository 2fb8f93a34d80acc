package service

import (
	"context"
	"fmt"
	"io"

	"github.com/garyjia/expense-approval/internal/application/port"
	"github.com/garyjia/expense-approval/internal/domain/entity"
)

// ReportService produces admin downloads
type ReportService interface {
	ExportExpenses(ctx context.Context, actor entity.Actor, filter entity.ExpenseFilter, w io.Writer) error
	ContentType() string
}

type reportServiceImpl struct {
	expenseRepo port.ExpenseRepository
	exporter    port.ExpenseExporter
	logger      Logger
}

// NewReportService creates a new ReportService
func NewReportService(expenseRepo port.ExpenseRepository, exporter port.ExpenseExporter, logger Logger) ReportService {
	return &reportServiceImpl{
		expenseRepo: expenseRepo,
		exporter:    exporter,
		logger:      logger,
	}
}

func (s *reportServiceImpl) ExportExpenses(ctx context.Context, actor entity.Actor, filter entity.ExpenseFilter, w io.Writer) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	expenses, err := s.expenseRepo.List(ctx, actor.OrgID, filter)
	if err != nil {
		return fmt.Errorf("list expenses: %w", err)
	}
	if err := s.exporter.Export(ctx, expenses, w); err != nil {
		s.logger.Error("Export failed", "error", err, "org_id", actor.OrgID)
		return fmt.Errorf("export: %w", err)
	}
	s.logger.Info("Expenses exported", "org_id", actor.OrgID, "count", len(expenses))
	return nil
}

func (s *reportServiceImpl) ContentType() string {
	return s.exporter.ContentType()
}
