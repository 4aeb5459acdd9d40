package api

import (
	"bytes"
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"taxkit/internal/period"
	"taxkit/internal/ustva"
	"taxkit/internal/wizard"
	"taxkit/pkg/models"
	"taxkit/pkg/services"
)

// ustvaRequest selects a period and adjusts the default selection. A zero
// year and quarter mean the quarter before the current one.
type ustvaRequest struct {
	Year    int `json:"year" binding:"omitempty,min=1"`
	Quarter int `json:"quarter" binding:"omitempty,min=1,max=4"`
	wizard.Adjustments
	Notes string `json:"notes" binding:"max=500"`
}

type periodView struct {
	period.TaxPeriod
	Label        string `json:"label"`
	Months       string `json:"months"`
	DueDateLabel string `json:"dueDateLabel"`
}

// previewView is the summary step of the wizard.
type previewView struct {
	Period          periodView                 `json:"period"`
	Result          models.UStVAResult         `json:"result"`
	Kennziffern     map[int]string             `json:"kennziffern"`
	Plausibility    ustva.Plausibility         `json:"plausibility"`
	Inconsistencies []ustva.Inconsistency      `json:"inconsistencies"`
	InvoiceIDs      []string                   `json:"invoiceIds"`
	ExpenseIDs      []string                   `json:"expenseIds"`
	Invoices        []models.FinancialDocument `json:"invoices"`
	Expenses        []models.FinancialDocument `json:"expenses"`
}

type statusRequest struct {
	Status models.ReportStatus `json:"status" binding:"required,oneof=submitted accepted rejected"`
}

func newPeriodView(p period.TaxPeriod) periodView {
	return periodView{TaxPeriod: p, Label: p.String(), Months: p.QuarterLabel(), DueDateLabel: p.DueDateLabel()}
}

func kennziffern(r models.UStVAResult) map[int]string {
	out := make(map[int]string, 4)
	for kz, v := range r.Kennziffern() {
		out[kz] = v.StringFixed(2)
	}
	return out
}

// runWizard drives a session to the summary step.
func (s *Server) runWizard(ctx context.Context, userID string, req ustvaRequest) (*wizard.Wizard, error) {
	w := wizard.New(s.deps.Company.ID, userID, s.deps.Documents, s.deps.Reports, wizard.WithClock(s.deps.Now))
	if err := w.RunToSummary(ctx, req.Year, req.Quarter, req.Adjustments); err != nil {
		return nil, err
	}
	return w, nil
}

func (s *Server) previewUStVA(c *gin.Context) {
	var req ustvaRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		badRequest(c, err)
		return
	}

	w, err := s.runWizard(c.Request.Context(), userID(c), req)
	if err != nil {
		writeError(c, err)
		return
	}
	defer func() { _ = w.Cancel() }()

	result, _ := w.Result()
	plausibility, _ := w.Plausibility()
	sel := w.Selection()

	success(c, http.StatusOK, previewView{
		Period:          newPeriodView(w.Period()),
		Result:          result,
		Kennziffern:     kennziffern(result),
		Plausibility:    plausibility,
		Inconsistencies: w.Inconsistencies(),
		InvoiceIDs:      sel.Selected(models.KindInvoice),
		ExpenseIDs:      sel.Selected(models.KindExpense),
		Invoices:        w.Documents(models.KindInvoice),
		Expenses:        w.Documents(models.KindExpense),
	})
}

func (s *Server) submitUStVA(c *gin.Context) {
	var req ustvaRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		badRequest(c, err)
		return
	}

	w, err := s.runWizard(c.Request.Context(), userID(c), req)
	if err != nil {
		writeError(c, err)
		return
	}

	report, err := w.Submit(c.Request.Context(), req.Notes)
	if err != nil {
		writeError(c, err)
		return
	}
	success(c, http.StatusCreated, report)
}

func (s *Server) listReports(c *gin.Context) {
	reports, err := s.deps.Reports.ListByCompany(c.Request.Context(), s.deps.Company.ID)
	if err != nil {
		writeError(c, err)
		return
	}
	if reports == nil {
		reports = []*models.TaxDeclarationReport{}
	}
	success(c, http.StatusOK, reports)
}

func (s *Server) getReport(c *gin.Context) {
	report, err := s.findReport(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	success(c, http.StatusOK, report)
}

func (s *Server) updateReportStatus(c *gin.Context) {
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	id := c.Param("id")
	if _, err := s.findReport(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	if err := s.deps.Reports.UpdateStatus(c.Request.Context(), id, req.Status); err != nil {
		writeError(c, err)
		return
	}

	report, err := s.findReport(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	success(c, http.StatusOK, report)
}

func (s *Server) exportElster(c *gin.Context) {
	report, err := s.findReport(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}

	var buf bytes.Buffer
	if err := ustva.WriteElster(&buf, report, s.deps.Company); err != nil {
		writeError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="ustva-%d-Q%d.xml"`, report.Year, report.Quarter))
	c.Data(http.StatusOK, "application/xml; charset=ISO-8859-15", buf.Bytes())
}

// findReport hides reports of other companies.
func (s *Server) findReport(ctx context.Context, id string) (*models.TaxDeclarationReport, error) {
	report, err := s.deps.Reports.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if report.CompanyID != s.deps.Company.ID {
		return nil, fmt.Errorf("report %s: %w", id, services.ErrNotFound)
	}
	return report, nil
}

// bindOptionalJSON accepts an empty body as the zero request.
func bindOptionalJSON(c *gin.Context, obj any) error {
	if c.Request.ContentLength == 0 {
		return nil
	}
	return c.ShouldBindJSON(obj)
}

func userID(c *gin.Context) string {
	if id := c.GetHeader("X-User-ID"); id != "" {
		return id
	}
	return "api"
}
