package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/expense-approval/internal/domain/approval"
	"github.com/garyjia/expense-approval/internal/domain/entity"
)

// PendingSource lists pending expenses across organizations
type PendingSource interface {
	ListPendingByRuleType(ctx context.Context, ruleType entity.RuleType) ([]*entity.Expense, error)
}

// StallGauge receives the number of stalled expenses found by a scan
type StallGauge interface {
	SetStalled(n int)
}

// StallMonitor periodically looks for specific-rule expenses that no
// approval can ever complete and reports them
type StallMonitor struct {
	interval time.Duration
	source   PendingSource
	engine   *approval.Engine
	gauge    StallGauge
	logger   *zap.Logger

	mu        sync.Mutex
	isRunning bool
	cancel    context.CancelFunc
	done      chan struct{}
	lastCount int
	lastScan  time.Time
}

// NewStallMonitor creates a monitor. gauge may be nil.
func NewStallMonitor(interval time.Duration, source PendingSource, engine *approval.Engine, gauge StallGauge, logger *zap.Logger) *StallMonitor {
	return &StallMonitor{
		interval: interval,
		source:   source,
		engine:   engine,
		gauge:    gauge,
		logger:   logger,
	}
}

func (s *StallMonitor) Name() string {
	return "StallMonitor"
}

// Start scans once immediately and then on every tick
func (s *StallMonitor) Start(ctx context.Context) error {
	if s.interval <= 0 {
		return fmt.Errorf("stall monitor interval must be positive, got %s", s.interval)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		return fmt.Errorf("stall monitor already running")
	}

	var loopCtx context.Context
	loopCtx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	s.isRunning = true

	go s.loop(loopCtx, s.done)
	return nil
}

// Stop cancels the loop and waits for an in-flight scan to finish
func (s *StallMonitor) Stop() error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	cancel()
	<-done
	return nil
}

func (s *StallMonitor) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if _, err := s.Scan(ctx); err != nil && ctx.Err() == nil {
			s.logger.Error("Stall scan failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Scan runs one pass and returns the stalled expenses
func (s *StallMonitor) Scan(ctx context.Context) ([]*entity.Expense, error) {
	candidates, err := s.source.ListPendingByRuleType(ctx, entity.RuleTypeSpecific)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending expenses: %w", err)
	}

	var stalled []*entity.Expense
	for _, exp := range candidates {
		if !s.engine.IsStalled(exp) {
			continue
		}
		stalled = append(stalled, exp)
		s.logger.Warn("Expense cannot be approved by its named approver",
			zap.String("expense_id", exp.ID),
			zap.String("org_id", exp.OrgID),
			zap.String("specific_approver_id", exp.SpecificApproverSnapshot))
	}

	if s.gauge != nil {
		s.gauge.SetStalled(len(stalled))
	}

	s.mu.Lock()
	s.lastCount = len(stalled)
	s.lastScan = time.Now()
	s.mu.Unlock()

	return stalled, nil
}

// LastScan returns the time and result count of the latest completed scan
func (s *StallMonitor) LastScan() (time.Time, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastScan, s.lastCount
}
