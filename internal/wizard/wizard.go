// Package wizard drives a UStVA declaration session from period selection to
// the persisted report.
//
// A Wizard is safe for concurrent use. At most one suspending operation (the
// document fetch or the report save) runs per session; any other call made
// meanwhile fails with ErrBusy.
package wizard

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"taxkit/internal/logger"
	"taxkit/internal/period"
	"taxkit/internal/ustva"
	"taxkit/pkg/models"
	"taxkit/pkg/services"
)

// Step is a wizard state.
type Step int

const (
	StepPeriodSelection Step = iota
	StepIncomeReview
	StepExpenseReview
	StepSummary
	StepSubmitted
	StepCancelled
)

var stepNames = map[Step]string{
	StepPeriodSelection: "period_selection",
	StepIncomeReview:    "income_review",
	StepExpenseReview:   "expense_review",
	StepSummary:         "summary",
	StepSubmitted:       "submitted",
	StepCancelled:       "cancelled",
}

func (s Step) String() string {
	if name, ok := stepNames[s]; ok {
		return name
	}
	return fmt.Sprintf("step(%d)", int(s))
}

// Terminal reports whether no further transition is possible.
func (s Step) Terminal() bool {
	return s == StepSubmitted || s == StepCancelled
}

// Option configures a Wizard.
type Option func(*Wizard)

// WithClock overrides the time source for the default period and CreatedAt.
func WithClock(now func() time.Time) Option {
	return func(w *Wizard) { w.now = now }
}

// WithPeriod preselects a period instead of the previous quarter.
func WithPeriod(p period.TaxPeriod) Option {
	return func(w *Wizard) { w.period = p }
}

// Wizard is one declaration session of a user for a company.
type Wizard struct {
	mu   sync.Mutex
	busy bool
	gen  uint64 // bumped whenever fetched state is discarded

	companyID string
	userID    string
	store     services.DocumentStore
	reports   services.ReportRepository
	now       func() time.Time
	log       zerolog.Logger

	step      Step
	period    period.TaxPeriod
	invoices  []models.FinancialDocument
	expenses  []models.FinancialDocument
	selection *ustva.Selection
	result    *models.UStVAResult
	report    *models.TaxDeclarationReport
}

// New starts a session in StepPeriodSelection. The period defaults to the
// quarter before the current one.
func New(companyID, userID string, store services.DocumentStore, reports services.ReportRepository, opts ...Option) *Wizard {
	w := &Wizard{
		companyID: companyID,
		userID:    userID,
		store:     store,
		reports:   reports,
		now:       time.Now,
		log:       logger.WithComponent("ustva-wizard"),
		step:      StepPeriodSelection,
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.period.IsZero() {
		w.period = period.Previous(w.now())
	}
	w.log = w.log.With().Str("company_id", companyID).Logger()
	return w
}

// Step returns the current step.
func (w *Wizard) Step() Step {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.step
}

// Period returns the selected period.
func (w *Wizard) Period() period.TaxPeriod {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.period
}

// SetPeriod changes the period. Only allowed in StepPeriodSelection.
func (w *Wizard) SetPeriod(year, quarter int) error {
	const op = "SetPeriod"

	p, err := period.Resolve(year, quarter)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.checkIdle(op); err != nil {
		return err
	}
	if w.step != StepPeriodSelection {
		return &StepError{Op: op, Step: w.step, Err: ErrNotAllowed}
	}
	w.period = p
	return nil
}

// Next advances one step. Leaving StepPeriodSelection fetches the documents
// of the period and loads the default selection; entering StepSummary
// computes the result.
func (w *Wizard) Next(ctx context.Context) error {
	const op = "Next"

	w.mu.Lock()
	if err := w.checkIdle(op); err != nil {
		w.mu.Unlock()
		return err
	}

	switch w.step {
	case StepPeriodSelection:
		p, gen := w.period, w.gen
		w.busy = true
		w.mu.Unlock()

		invoices, expenses, err := w.fetch(ctx, p)

		w.mu.Lock()
		defer w.mu.Unlock()
		w.busy = false
		if w.gen != gen || w.step != StepPeriodSelection {
			w.log.Debug().Msg("Discarding fetched documents of a cancelled session")
			return &StepError{Op: op, Step: w.step, Err: ErrClosed}
		}
		if err != nil {
			return err
		}

		w.invoices, w.expenses = invoices, expenses
		w.selection = ustva.NewSelection(p, invoices, expenses)
		w.result = nil
		w.step = StepIncomeReview

		w.log.Info().
			Str("period", p.String()).
			Int("invoices", len(invoices)).
			Int("expenses", len(expenses)).
			Int("selected_invoices", w.selection.Count(models.KindInvoice)).
			Int("selected_expenses", w.selection.Count(models.KindExpense)).
			Msg("Loaded documents for period")
		return nil

	case StepIncomeReview:
		defer w.mu.Unlock()
		w.step = StepExpenseReview
		return nil

	case StepExpenseReview:
		defer w.mu.Unlock()
		if err := w.recompute(); err != nil {
			return err
		}
		w.step = StepSummary
		return nil

	default:
		defer w.mu.Unlock()
		return &StepError{Op: op, Step: w.step, Err: ErrInvalidTransition}
	}
}

// Back returns to the previous step. Going back to StepPeriodSelection
// discards the fetched documents and the selection.
func (w *Wizard) Back() error {
	const op = "Back"

	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.checkIdle(op); err != nil {
		return err
	}

	switch w.step {
	case StepIncomeReview:
		w.discard()
		w.step = StepPeriodSelection
	case StepExpenseReview:
		w.step = StepIncomeReview
	case StepSummary:
		w.step = StepExpenseReview
	default:
		return &StepError{Op: op, Step: w.step, Err: ErrInvalidTransition}
	}
	return nil
}

// Toggle flips one document in or out of the selection and reports whether
// the selection changed. Non-deductible expenses and unknown ids never change.
func (w *Wizard) Toggle(kind models.DocumentKind, id string) (bool, error) {
	var changed bool
	err := w.editSelection("Toggle", kind, func(s *ustva.Selection) {
		changed = s.Toggle(kind, id)
	})
	return changed, err
}

// SelectAll selects every eligible document of kind.
func (w *Wizard) SelectAll(kind models.DocumentKind) error {
	return w.editSelection("SelectAll", kind, func(s *ustva.Selection) { s.SelectAll(kind) })
}

// SelectNone deselects every document of kind.
func (w *Wizard) SelectNone(kind models.DocumentKind) error {
	return w.editSelection("SelectNone", kind, func(s *ustva.Selection) { s.SelectNone(kind) })
}

func (w *Wizard) editSelection(op string, kind models.DocumentKind, edit func(*ustva.Selection)) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.checkIdle(op); err != nil {
		return err
	}

	switch {
	case w.step == StepIncomeReview && kind == models.KindInvoice:
	case w.step == StepExpenseReview && kind == models.KindExpense:
	case w.step == StepSummary && (kind == models.KindInvoice || kind == models.KindExpense):
	default:
		return &StepError{Op: op, Step: w.step, Err: ErrNotAllowed}
	}

	if w.step != StepSummary {
		edit(w.selection)
		return nil
	}

	// restored when the recompute fails
	prev := w.selection.Clone()
	edit(w.selection)
	if err := w.recompute(); err != nil {
		w.selection = prev
		return err
	}
	return nil
}

// Submit persists the declaration and closes the session. The save is not
// cancelled with ctx once started. On a StorageError the session stays in
// StepSummary and Submit may be called again without recomputation.
func (w *Wizard) Submit(ctx context.Context, notes string) (*models.TaxDeclarationReport, error) {
	const op = "Submit"

	w.mu.Lock()
	if err := w.checkIdle(op); err != nil {
		w.mu.Unlock()
		return nil, err
	}
	if w.step != StepSummary || w.result == nil {
		step := w.step
		w.mu.Unlock()
		return nil, &StepError{Op: op, Step: step, Err: ErrInvalidTransition}
	}

	report := ustva.BuildReport(ustva.ReportInput{
		CompanyID: w.companyID,
		CreatedBy: w.userID,
		Notes:     notes,
		Period:    w.period,
		Selection: w.selection,
		Result:    *w.result,
		CreatedAt: w.now().UTC(),
	})
	w.busy = true
	w.mu.Unlock()

	id, err := w.reports.Save(context.WithoutCancel(ctx), report)

	w.mu.Lock()
	defer w.mu.Unlock()
	w.busy = false
	if err != nil {
		w.log.Error().Err(err).Str("period", w.period.String()).Msg("Failed to save declaration")
		return nil, services.WrapStorageError(op, err, fmt.Sprintf("UStVA %s", w.period))
	}

	report.ID = id
	w.report = report
	w.step = StepSubmitted

	w.log.Info().
		Str("report_id", id).
		Str("period", w.period.String()).
		Str("balance", report.Result.Balance.StringFixed(2)).
		Msg("Declaration saved")

	return report, nil
}

// Cancel discards the session. A fetch in flight is abandoned; a submit in
// flight cannot be cancelled.
func (w *Wizard) Cancel() error {
	const op = "Cancel"

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.step.Terminal() {
		return &StepError{Op: op, Step: w.step, Err: ErrClosed}
	}
	if w.busy && w.step == StepSummary {
		return &StepError{Op: op, Step: w.step, Err: ErrBusy}
	}
	w.discard()
	w.step = StepCancelled
	return nil
}

// Result returns the computed figures once the summary was reached.
func (w *Wizard) Result() (models.UStVAResult, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.result == nil {
		return models.UStVAResult{}, false
	}
	return *w.result, true
}

// Plausibility checks the current result.
func (w *Wizard) Plausibility() (ustva.Plausibility, bool) {
	r, ok := w.Result()
	if !ok {
		return ustva.Plausibility{}, false
	}
	return ustva.CheckPlausibility(r), true
}

// Selection returns a copy of the current selection, or nil before the fetch.
func (w *Wizard) Selection() *ustva.Selection {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.selection == nil {
		return nil
	}
	return w.selection.Clone()
}

// Documents returns the fetched documents of kind.
func (w *Wizard) Documents(kind models.DocumentKind) []models.FinancialDocument {
	w.mu.Lock()
	defer w.mu.Unlock()
	if kind == models.KindExpense {
		return slices.Clone(w.expenses)
	}
	return slices.Clone(w.invoices)
}

// Inconsistencies lists fetched documents whose tax does not match net x rate.
func (w *Wizard) Inconsistencies() []ustva.Inconsistency {
	w.mu.Lock()
	defer w.mu.Unlock()
	return ustva.CheckConsistency(slices.Concat(w.invoices, w.expenses))
}

// Report returns the saved report after a successful Submit.
func (w *Wizard) Report() *models.TaxDeclarationReport {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.report
}

func (w *Wizard) fetch(ctx context.Context, p period.TaxPeriod) (invoices, expenses []models.FinancialDocument, err error) {
	invoices, err = w.store.ListInvoices(ctx, w.companyID, p.Start, p.End)
	if err != nil {
		w.log.Error().Err(err).Str("period", p.String()).Msg("Failed to fetch invoices")
		return nil, nil, services.WrapDataFetchError("ListInvoices", err, p.String())
	}
	expenses, err = w.store.ListExpenses(ctx, w.companyID, p.Start, p.End)
	if err != nil {
		w.log.Error().Err(err).Str("period", p.String()).Msg("Failed to fetch expenses")
		return nil, nil, services.WrapDataFetchError("ListExpenses", err, p.String())
	}
	return invoices, expenses, nil
}

func (w *Wizard) recompute() error {
	r, err := ustva.Compute(w.invoices, w.expenses, w.selection)
	if err != nil {
		return err
	}
	w.result = &r
	return nil
}

func (w *Wizard) discard() {
	w.gen++
	w.invoices = nil
	w.expenses = nil
	w.selection = nil
	w.result = nil
}

func (w *Wizard) checkIdle(op string) error {
	if w.step.Terminal() {
		return &StepError{Op: op, Step: w.step, Err: ErrClosed}
	}
	if w.busy {
		return &StepError{Op: op, Step: w.step, Err: ErrBusy}
	}
	return nil
}
