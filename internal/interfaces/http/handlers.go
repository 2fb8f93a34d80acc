package http

import (
	"bytes"
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/expense-approval/internal/application/service"
	"github.com/garyjia/expense-approval/internal/domain/entity"
)

// Handlers contains all HTTP request handlers
type Handlers struct {
	services Services
	logger   Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(services Services, logger Logger) *Handlers {
	return &Handlers{services: services, logger: logger}
}

func ok(c *gin.Context, status int, data interface{}) {
	c.JSON(status, Response{Success: true, Data: data})
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	resp := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if h.services.Health != nil {
		healthy, details := h.services.Health(c.Request.Context())
		resp.Components = details
		if !healthy {
			resp.Status = "unhealthy"
			c.JSON(http.StatusServiceUnavailable, Response{Success: false, Data: resp, Error: "unhealthy"})
			return
		}
	}
	ok(c, http.StatusOK, resp)
}

// SubmitExpense handles POST /api/v1/expenses
func (h *Handlers) SubmitExpense(c *gin.Context) {
	var req SubmitExpenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	date, err := parseDate(req.Date)
	if err != nil {
		badRequest(c, "date must be YYYY-MM-DD")
		return
	}

	exp, err := h.services.Expenses.Submit(c.Request.Context(), actorFrom(c), service.SubmitInput{
		Title:       req.Title,
		Description: req.Description,
		Amount:      req.Amount,
		Currency:    req.Currency,
		Date:        date,
	})
	if err != nil {
		h.respondError(c, "Submit expense", err)
		return
	}
	ok(c, http.StatusCreated, exp)
}

// GetExpense handles GET /api/v1/expenses/:id
func (h *Handlers) GetExpense(c *gin.Context) {
	exp, err := h.services.Expenses.Get(c.Request.Context(), actorFrom(c), c.Param("id"))
	if err != nil {
		h.respondError(c, "Get expense", err)
		return
	}
	ok(c, http.StatusOK, exp)
}

type listFunc func(ctx context.Context, actor entity.Actor, filter entity.ExpenseFilter) ([]*entity.Expense, error)

// ListMyExpenses handles GET /api/v1/expenses/mine
func (h *Handlers) ListMyExpenses(c *gin.Context) {
	h.listExpenses(c, "List own expenses", h.services.Expenses.ListMine)
}

// ListTeamExpenses handles GET /api/v1/expenses/team
func (h *Handlers) ListTeamExpenses(c *gin.Context) {
	h.listExpenses(c, "List team expenses", h.services.Expenses.ListTeam)
}

// ListAllExpenses handles GET /api/v1/expenses
func (h *Handlers) ListAllExpenses(c *gin.Context) {
	h.listExpenses(c, "List expenses", h.services.Expenses.ListAll)
}

func (h *Handlers) listExpenses(c *gin.Context, op string, list listFunc) {
	var q ListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, "invalid query parameters")
		return
	}
	expenses, err := list(c.Request.Context(), actorFrom(c), q.filter())
	if err != nil {
		h.respondError(c, op, err)
		return
	}
	ok(c, http.StatusOK, expenses)
}

// GetHistory handles GET /api/v1/expenses/:id/history
func (h *Handlers) GetHistory(c *gin.Context) {
	history, err := h.services.Approvals.History(c.Request.Context(), actorFrom(c), c.Param("id"))
	if err != nil {
		h.respondError(c, "Get history", err)
		return
	}
	ok(c, http.StatusOK, history)
}

// Decide handles POST /api/v1/expenses/:id/decision
func (h *Handlers) Decide(c *gin.Context) {
	var req DecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	exp, err := h.services.Approvals.Decide(c.Request.Context(), actorFrom(c), c.Param("id"), parseDecision(req.Decision), req.Comment)
	if err != nil {
		h.respondError(c, "Decide", err)
		return
	}
	ok(c, http.StatusOK, DecisionResponse{
		ExpenseID: exp.ID,
		Status:    exp.Status,
		Steps:     exp.ApprovalSteps,
		Version:   exp.Version,
	})
}

// PendingApprovals handles GET /api/v1/approvals/pending
func (h *Handlers) PendingApprovals(c *gin.Context) {
	expenses, err := h.services.Approvals.PendingFor(c.Request.Context(), actorFrom(c))
	if err != nil {
		h.respondError(c, "List pending approvals", err)
		return
	}
	ok(c, http.StatusOK, expenses)
}

// ListRules handles GET /api/v1/rules
func (h *Handlers) ListRules(c *gin.Context) {
	rules, err := h.services.Rules.List(c.Request.Context(), actorFrom(c))
	if err != nil {
		h.respondError(c, "List rules", err)
		return
	}
	ok(c, http.StatusOK, rules)
}

// GetRule handles GET /api/v1/rules/:id
func (h *Handlers) GetRule(c *gin.Context) {
	rule, err := h.services.Rules.Get(c.Request.Context(), actorFrom(c), c.Param("id"))
	if err != nil {
		h.respondError(c, "Get rule", err)
		return
	}
	ok(c, http.StatusOK, rule)
}

// CreateRule handles POST /api/v1/rules
func (h *Handlers) CreateRule(c *gin.Context) {
	var req RuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	rule, err := h.services.Rules.Create(c.Request.Context(), actorFrom(c), ruleInput(req))
	if err != nil {
		h.respondError(c, "Create rule", err)
		return
	}
	ok(c, http.StatusCreated, rule)
}

// UpdateRule handles PUT /api/v1/rules/:id
func (h *Handlers) UpdateRule(c *gin.Context) {
	var req RuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	rule, err := h.services.Rules.Update(c.Request.Context(), actorFrom(c), c.Param("id"), ruleInput(req))
	if err != nil {
		h.respondError(c, "Update rule", err)
		return
	}
	ok(c, http.StatusOK, rule)
}

// DeleteRule handles DELETE /api/v1/rules/:id
func (h *Handlers) DeleteRule(c *gin.Context) {
	if err := h.services.Rules.Delete(c.Request.Context(), actorFrom(c), c.Param("id")); err != nil {
		h.respondError(c, "Delete rule", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ActivateRule handles POST /api/v1/rules/:id/activate
func (h *Handlers) ActivateRule(c *gin.Context) {
	ctx, actor, id := c.Request.Context(), actorFrom(c), c.Param("id")
	if err := h.services.Rules.Activate(ctx, actor, id); err != nil {
		h.respondError(c, "Activate rule", err)
		return
	}
	rule, err := h.services.Rules.Get(ctx, actor, id)
	if err != nil {
		h.respondError(c, "Get rule", err)
		return
	}
	ok(c, http.StatusOK, rule)
}

// ListUsers handles GET /api/v1/users
func (h *Handlers) ListUsers(c *gin.Context) {
	users, err := h.services.Users.List(c.Request.Context(), actorFrom(c))
	if err != nil {
		h.respondError(c, "List users", err)
		return
	}
	ok(c, http.StatusOK, users)
}

// UpsertUser handles PUT /api/v1/users/:id
func (h *Handlers) UpsertUser(c *gin.Context) {
	var req UserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	user, err := h.services.Users.Upsert(c.Request.Context(), actorFrom(c), c.Param("id"), service.UserInput{
		Role:      req.Role,
		ManagerID: req.ManagerID,
	})
	if err != nil {
		h.respondError(c, "Save user", err)
		return
	}
	ok(c, http.StatusOK, user)
}

// ExportExpenses handles GET /api/v1/reports/expenses.xlsx. The workbook is
// built in memory so a failed export still gets a JSON error.
func (h *Handlers) ExportExpenses(c *gin.Context) {
	var q ListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, "invalid query parameters")
		return
	}
	filter := q.filter()
	filter.Limit, filter.Offset = 0, 0

	var buf bytes.Buffer
	if err := h.services.Reports.ExportExpenses(c.Request.Context(), actorFrom(c), filter, &buf); err != nil {
		h.respondError(c, "Export expenses", err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="expenses.xlsx"`)
	c.Data(http.StatusOK, h.services.Reports.ContentType(), buf.Bytes())
}

func ruleInput(req RuleRequest) service.RuleInput {
	return service.RuleInput{
		Name:                req.Name,
		Description:         req.Description,
		RuleType:            req.RuleType,
		PercentageThreshold: req.PercentageThreshold,
		SpecificApproverID:  req.SpecificApproverID,
		Steps:               req.Steps,
	}
}
