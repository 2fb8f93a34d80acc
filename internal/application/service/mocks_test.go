package service

import (
	"cmp"
	"context"
	"fmt"
	"io"
	"slices"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/garyjia/expense-approval/internal/application/port"
	"github.com/garyjia/expense-approval/internal/domain/entity"
	"github.com/garyjia/expense-approval/internal/domain/event"
)

// memExpenseRepo keeps expenses in memory and enforces the version check on Save
type memExpenseRepo struct {
	mu    sync.Mutex
	items map[string]*entity.Expense
	saves int

	// beforeSave runs ahead of the version check, outside the lock
	beforeSave func(exp *entity.Expense) error
	listErr    error
}

func newMemExpenseRepo(exps ...*entity.Expense) *memExpenseRepo {
	r := &memExpenseRepo{items: make(map[string]*entity.Expense)}
	for _, e := range exps {
		c := e.Clone()
		if c.Version == 0 {
			c.Version = 1
		}
		r.items[c.ID] = c
	}
	return r
}

func (r *memExpenseRepo) Create(ctx context.Context, exp *entity.Expense) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	exp.Version = 1
	for i := range exp.ApprovalSteps {
		exp.ApprovalSteps[i].ID = int64(i + 1)
	}
	r.items[exp.ID] = exp.Clone()
	return nil
}

func (r *memExpenseRepo) GetByID(ctx context.Context, id string) (*entity.Expense, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.items[id]
	if !ok {
		return nil, fmt.Errorf("expense %s: %w", id, port.ErrNotFound)
	}
	return e.Clone(), nil
}

func (r *memExpenseRepo) Save(ctx context.Context, exp *entity.Expense) error {
	if r.beforeSave != nil {
		if err := r.beforeSave(exp); err != nil {
			return err
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.items[exp.ID]
	if !ok {
		return port.ErrNotFound
	}
	if stored.Version != exp.Version {
		return port.ErrVersionConflict
	}
	c := exp.Clone()
	c.Version++
	r.items[exp.ID] = c
	exp.Version = c.Version
	r.saves++
	return nil
}

func (r *memExpenseRepo) List(ctx context.Context, orgID string, filter entity.ExpenseFilter) ([]*entity.Expense, error) {
	if r.listErr != nil {
		return nil, r.listErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.Expense
	for _, e := range r.items {
		if e.OrgID != orgID {
			continue
		}
		if filter.Status != "" && e.Status != filter.Status {
			continue
		}
		if filter.SubmittedBy != "" && e.SubmittedBy != filter.SubmittedBy {
			continue
		}
		if filter.Submitters != nil && !slices.Contains(filter.Submitters, e.SubmittedBy) {
			continue
		}
		out = append(out, e.Clone())
	}
	slices.SortFunc(out, func(a, b *entity.Expense) int {
		return cmp.Compare(b.SubmittedAt.UnixNano(), a.SubmittedAt.UnixNano())
	})
	return out, nil
}

// mutate changes a stored expense as a concurrent writer would, bumping its version
func (r *memExpenseRepo) mutate(id string, fn func(e *entity.Expense)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := r.items[id]
	fn(e)
	e.Version++
}

func (r *memExpenseRepo) stored(id string) *entity.Expense {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.items[id].Clone()
}

type mockRuleRepo struct {
	mu    sync.Mutex
	rules map[string]*entity.ApprovalRule
}

func newMockRuleRepo(rules ...*entity.ApprovalRule) *mockRuleRepo {
	m := &mockRuleRepo{rules: make(map[string]*entity.ApprovalRule)}
	for _, r := range rules {
		m.rules[r.ID] = r
	}
	return m
}

func (m *mockRuleRepo) Create(ctx context.Context, rule *entity.ApprovalRule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules[rule.ID] = rule
	return nil
}

func (m *mockRuleRepo) GetByID(ctx context.Context, id string) (*entity.ApprovalRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rules[id]
	if !ok {
		return nil, port.ErrNotFound
	}
	c := *r
	return &c, nil
}

func (m *mockRuleRepo) GetActive(ctx context.Context, orgID string) (*entity.ApprovalRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rules {
		if r.OrgID == orgID && r.IsActive {
			c := *r
			return &c, nil
		}
	}
	return nil, port.ErrNotFound
}

func (m *mockRuleRepo) List(ctx context.Context, orgID string) ([]*entity.ApprovalRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*entity.ApprovalRule
	for _, r := range m.rules {
		if r.OrgID == orgID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *mockRuleRepo) Update(ctx context.Context, rule *entity.ApprovalRule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rules[rule.ID]; !ok {
		return port.ErrNotFound
	}
	m.rules[rule.ID] = rule
	return nil
}

func (m *mockRuleRepo) Activate(ctx context.Context, orgID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rules {
		if r.OrgID == orgID {
			r.IsActive = r.ID == id
		}
	}
	return nil
}

func (m *mockRuleRepo) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rules, id)
	return nil
}

type mockHistoryRepo struct {
	mu      sync.Mutex
	entries []*entity.ExpenseHistory
}

func (m *mockHistoryRepo) Append(ctx context.Context, h *entity.ExpenseHistory) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	h.ID = int64(len(m.entries) + 1)
	m.entries = append(m.entries, h)
	return nil
}

func (m *mockHistoryRepo) ListByExpense(ctx context.Context, expenseID string) ([]*entity.ExpenseHistory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*entity.ExpenseHistory
	for _, h := range m.entries {
		if h.ExpenseID == expenseID {
			out = append(out, h)
		}
	}
	return out, nil
}

func (m *mockHistoryRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

type memDirectory struct {
	mu    sync.Mutex
	users map[string]*entity.User
	err   error
}

func newMemDirectory(users ...*entity.User) *memDirectory {
	d := &memDirectory{users: make(map[string]*entity.User)}
	for _, u := range users {
		d.users[u.OrgID+"/"+u.ID] = u
	}
	return d
}

func (d *memDirectory) Upsert(ctx context.Context, user *entity.User) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	c := *user
	d.users[user.OrgID+"/"+user.ID] = &c
	return nil
}

func (d *memDirectory) GetByID(ctx context.Context, orgID, id string) (*entity.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	u, ok := d.users[orgID+"/"+id]
	if !ok {
		return nil, port.ErrNotFound
	}
	c := *u
	return &c, nil
}

func (d *memDirectory) List(ctx context.Context, orgID string) ([]*entity.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []*entity.User
	for _, u := range d.users {
		if u.OrgID == orgID {
			out = append(out, u)
		}
	}
	slices.SortFunc(out, func(a, b *entity.User) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

func (d *memDirectory) ReportsOf(ctx context.Context, orgID, managerID string) ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return nil, d.err
	}
	ids := []string{}
	for _, u := range d.users {
		if u.OrgID == orgID && u.ManagerID == managerID {
			ids = append(ids, u.ID)
		}
	}
	slices.Sort(ids)
	return ids, nil
}

type mockTxManager struct {
	withTransactionFunc func(ctx context.Context, fn func(ctx context.Context) error) error
}

func (m *mockTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if m.withTransactionFunc != nil {
		return m.withTransactionFunc(ctx, fn)
	}
	return fn(ctx)
}

type mockPublisher struct {
	mu     sync.Mutex
	events []*event.Event
}

func (m *mockPublisher) DispatchAsync(ctx context.Context, evt *event.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, evt)
}

func (m *mockPublisher) types() []event.Type {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]event.Type, len(m.events))
	for i, e := range m.events {
		out[i] = e.Type
	}
	return out
}

type mockLogger struct {
	mu    sync.Mutex
	warns []string
}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{}) {}
func (m *mockLogger) Warn(msg string, keysAndValues ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.warns = append(m.warns, msg)
}
func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {}

type identityConverter struct {
	convertFunc func(amount decimal.Decimal, from, to string) (decimal.Decimal, error)
}

func (c *identityConverter) Convert(ctx context.Context, amount decimal.Decimal, from, to string) (decimal.Decimal, error) {
	if c.convertFunc != nil {
		return c.convertFunc(amount, from, to)
	}
	return amount, nil
}

type mockNotifier struct {
	mu         sync.Mutex
	approvers  map[string][]entity.ApprovalStep
	submitters []string
	err        error
}

func (m *mockNotifier) NotifyApprovers(ctx context.Context, exp *entity.Expense, steps []entity.ApprovalStep) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.approvers == nil {
		m.approvers = make(map[string][]entity.ApprovalStep)
	}
	m.approvers[exp.ID] = steps
	return m.err
}

func (m *mockNotifier) NotifySubmitter(ctx context.Context, exp *entity.Expense) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.submitters = append(m.submitters, exp.SubmittedBy)
	return m.err
}

type mockExporter struct {
	got []*entity.Expense
	err error
}

func (m *mockExporter) Export(ctx context.Context, expenses []*entity.Expense, w io.Writer) error {
	m.got = expenses
	if m.err != nil {
		return m.err
	}
	_, err := io.WriteString(w, "xlsx")
	return err
}

func (m *mockExporter) ContentType() string { return "application/test" }

var (
	admin    = entity.Actor{ID: "A1", Role: entity.RoleAdmin, OrgID: "org-1"}
	employee = entity.Actor{ID: "E1", Role: entity.RoleEmployee, OrgID: "org-1"}
	manager  = entity.Actor{ID: "M1", Role: entity.RoleManager, OrgID: "org-1"}
	finance  = entity.Actor{ID: "F1", Role: entity.RoleFinance, OrgID: "org-1"}
	director = entity.Actor{ID: "D1", Role: entity.RoleDirector, OrgID: "org-1"}
)

func intPtr(v int) *int { return &v }

// pendingExpense builds a stored-shape expense with unbound steps for the given roles
func pendingExpense(id string, ruleType entity.RuleType, submittedAt time.Time, roles ...entity.Role) *entity.Expense {
	steps := make([]entity.ApprovalStep, len(roles))
	for i, r := range roles {
		steps[i] = entity.ApprovalStep{ID: int64(i + 1), Sequence: i, Role: r, Decision: entity.DecisionUndecided}
	}
	return &entity.Expense{
		ID:               id,
		OrgID:            "org-1",
		Title:            "Taxi",
		Amount:           decimal.NewFromInt(42),
		Currency:         "USD",
		SubmittedBy:      employee.ID,
		SubmittedAt:      submittedAt,
		Status:           entity.StatusPending,
		RuleTypeSnapshot: ruleType,
		ApprovalSteps:    steps,
		Version:          1,
	}
}
