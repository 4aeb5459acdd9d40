package wizard

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"taxkit/internal/ustva"
	"taxkit/pkg/models"
	"taxkit/pkg/services"
)

// 2025-04-02 lies in Q2, so the default period is Q1/2025.
var now = time.Date(2025, 4, 2, 9, 0, 0, 0, time.UTC)

func doc(kind models.DocumentKind, id, net, tax string, deductible bool) models.FinancialDocument {
	return models.FinancialDocument{
		ID:           id,
		Kind:         kind,
		NetAmount:    decimal.RequireFromString(net),
		TaxAmount:    decimal.RequireFromString(tax),
		TaxRate:      decimal.NewFromInt(19),
		DocumentDate: time.Date(2025, 2, 10, 0, 0, 0, 0, time.UTC),
		Status:       "paid",
		Deductible:   deductible,
	}
}

type fakeStore struct {
	invoices []models.FinancialDocument
	expenses []models.FinancialDocument
	err      error
	block    chan struct{}

	mu    sync.Mutex
	calls int
	start time.Time
}

func (s *fakeStore) ListInvoices(ctx context.Context, _ string, start, _ time.Time) ([]models.FinancialDocument, error) {
	s.mu.Lock()
	s.calls++
	s.start = start
	s.mu.Unlock()
	if s.block != nil {
		<-s.block
	}
	if s.err != nil {
		return nil, s.err
	}
	return s.invoices, nil
}

func (s *fakeStore) ListExpenses(context.Context, string, time.Time, time.Time) ([]models.FinancialDocument, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.expenses, nil
}

type fakeReports struct {
	mu      sync.Mutex
	saved   []*models.TaxDeclarationReport
	err     error
	ctxErrs []error
	block   chan struct{}
}

func (r *fakeReports) Save(ctx context.Context, report *models.TaxDeclarationReport) (string, error) {
	r.mu.Lock()
	r.ctxErrs = append(r.ctxErrs, ctx.Err())
	r.mu.Unlock()
	if r.block != nil {
		<-r.block
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return "", r.err
	}
	r.saved = append(r.saved, report)
	return "report-1", nil
}

func (r *fakeReports) FindByID(context.Context, string) (*models.TaxDeclarationReport, error) {
	return nil, services.ErrNotFound
}

func (r *fakeReports) ListByCompany(context.Context, string) ([]*models.TaxDeclarationReport, error) {
	return nil, nil
}

func (r *fakeReports) UpdateStatus(context.Context, string, models.ReportStatus) error {
	return nil
}

func newStore() *fakeStore {
	return &fakeStore{
		invoices: []models.FinancialDocument{doc(models.KindInvoice, "inv-1", "1000.00", "190.00", false)},
		expenses: []models.FinancialDocument{
			doc(models.KindExpense, "exp-1", "500.00", "95.00", true),
			doc(models.KindExpense, "exp-2", "100.00", "19.00", false),
		},
	}
}

func newWizard(store *fakeStore, reports *fakeReports) *Wizard {
	return New("company-1", "user-1", store, reports, WithClock(func() time.Time { return now }))
}

func advanceTo(t *testing.T, w *Wizard, step Step) {
	t.Helper()
	for w.Step() != step {
		require.NoError(t, w.Next(context.Background()))
	}
}

func TestWizard_HappyPath(t *testing.T) {
	store := newStore()
	reports := &fakeReports{}
	w := newWizard(store, reports)

	assert.Equal(t, StepPeriodSelection, w.Step())
	assert.Equal(t, "Q1/2025", w.Period().String())

	require.NoError(t, w.Next(context.Background()))
	assert.Equal(t, StepIncomeReview, w.Step())
	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), store.start)

	sel := w.Selection()
	require.NotNil(t, sel)
	assert.Equal(t, []string{"inv-1"}, sel.Selected(models.KindInvoice))
	assert.Equal(t, []string{"exp-1"}, sel.Selected(models.KindExpense))

	require.NoError(t, w.Next(context.Background()))
	assert.Equal(t, StepExpenseReview, w.Step())
	_, ok := w.Result()
	assert.False(t, ok)

	require.NoError(t, w.Next(context.Background()))
	assert.Equal(t, StepSummary, w.Step())

	result, ok := w.Result()
	require.True(t, ok)
	assert.True(t, decimal.RequireFromString("95.00").Equal(result.Balance))
	assert.True(t, decimal.RequireFromString("95.00").Equal(result.Zahllast))

	report, err := w.Submit(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "report-1", report.ID)
	assert.Equal(t, StepSubmitted, w.Step())
	assert.Equal(t, models.ReportCalculated, report.Status)
	assert.Equal(t, "UStVA Q1/2025 - Erstellt über Steuer-Wizard", report.Notes)
	assert.Equal(t, "user-1", report.CreatedBy)
	assert.Equal(t, now, report.CreatedAt)
	assert.Equal(t, []string{"exp-1"}, report.ExpenseIDs)
	require.Len(t, reports.saved, 1)

	// immutable once submitted
	assert.ErrorIs(t, w.Back(), ErrClosed)
	_, err = w.Toggle(models.KindInvoice, "inv-1")
	assert.ErrorIs(t, err, ErrClosed)
	_, err = w.Submit(context.Background(), "")
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, w.Cancel(), ErrClosed)
}

func TestWizard_SetPeriod(t *testing.T) {
	w := newWizard(newStore(), &fakeReports{})

	require.NoError(t, w.SetPeriod(2024, 4))
	assert.Equal(t, "Q4/2024", w.Period().String())

	err := w.SetPeriod(2024, 5)
	assert.Error(t, err)
	assert.Equal(t, "Q4/2024", w.Period().String())

	require.NoError(t, w.Next(context.Background()))
	assert.ErrorIs(t, w.SetPeriod(2025, 1), ErrNotAllowed)
}

func TestWizard_SelectionEditsPerStep(t *testing.T) {
	w := newWizard(newStore(), &fakeReports{})
	require.NoError(t, w.Next(context.Background()))

	// income review: invoices only
	changed, err := w.Toggle(models.KindInvoice, "inv-1")
	require.NoError(t, err)
	assert.True(t, changed)
	_, err = w.Toggle(models.KindExpense, "exp-1")
	assert.ErrorIs(t, err, ErrNotAllowed)
	require.NoError(t, w.SelectAll(models.KindInvoice))

	require.NoError(t, w.Next(context.Background()))

	// expense review: expenses only, non-deductible never admitted
	assert.ErrorIs(t, w.SelectNone(models.KindInvoice), ErrNotAllowed)
	changed, err = w.Toggle(models.KindExpense, "exp-2")
	require.NoError(t, err)
	assert.False(t, changed)
	require.NoError(t, w.SelectNone(models.KindExpense))

	require.NoError(t, w.Next(context.Background()))
	result, _ := w.Result()
	assert.True(t, decimal.RequireFromString("190.00").Equal(result.Balance))

	// summary: both kinds, recomputed on every edit
	require.NoError(t, w.SelectAll(models.KindExpense))
	result, _ = w.Result()
	assert.True(t, decimal.RequireFromString("95.00").Equal(result.Balance))

	_, err = w.Toggle(models.KindInvoice, "inv-1")
	require.NoError(t, err)
	result, _ = w.Result()
	assert.True(t, decimal.RequireFromString("-95.00").Equal(result.Balance))
	assert.True(t, decimal.RequireFromString("95.00").Equal(result.Erstattung))
	assert.True(t, result.Zahllast.IsZero())
}

func TestWizard_BackToPeriodSelectionDiscardsState(t *testing.T) {
	store := newStore()
	w := newWizard(store, &fakeReports{})
	advanceTo(t, w, StepSummary)

	require.NoError(t, w.Back())
	assert.Equal(t, StepExpenseReview, w.Step())
	require.NoError(t, w.Back())
	require.NoError(t, w.Back())
	assert.Equal(t, StepPeriodSelection, w.Step())
	assert.Nil(t, w.Selection())
	assert.Empty(t, w.Documents(models.KindInvoice))
	_, ok := w.Result()
	assert.False(t, ok)

	assert.ErrorIs(t, w.Back(), ErrInvalidTransition)

	require.NoError(t, w.Next(context.Background()))
	assert.Equal(t, 2, store.calls)
}

func TestWizard_FetchFailure(t *testing.T) {
	store := newStore()
	store.err = errors.New("deadline exceeded")
	w := newWizard(store, &fakeReports{})

	err := w.Next(context.Background())
	require.Error(t, err)
	assert.True(t, services.IsDataFetchError(err))
	assert.Equal(t, StepPeriodSelection, w.Step())

	// no automatic retry, but the caller may retry
	store.err = nil
	require.NoError(t, w.Next(context.Background()))
	assert.Equal(t, StepIncomeReview, w.Step())
}

func TestWizard_SubmitFailureKeepsSummary(t *testing.T) {
	reports := &fakeReports{err: services.ErrConflict}
	w := newWizard(newStore(), reports)
	advanceTo(t, w, StepSummary)
	before, _ := w.Result()

	_, err := w.Submit(context.Background(), "")
	require.Error(t, err)
	assert.True(t, services.IsStorageError(err))
	assert.ErrorIs(t, err, services.ErrConflict)
	assert.Equal(t, StepSummary, w.Step())

	after, _ := w.Result()
	assert.Equal(t, before, after)

	reports.err = nil
	report, err := w.Submit(context.Background(), "Q1 manuell")
	require.NoError(t, err)
	assert.Equal(t, "Q1 manuell", report.Notes)
	assert.Equal(t, StepSubmitted, w.Step())
}

func TestWizard_SubmitIgnoresCallerCancellation(t *testing.T) {
	reports := &fakeReports{}
	w := newWizard(newStore(), reports)
	advanceTo(t, w, StepSummary)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := w.Submit(ctx, "")
	require.NoError(t, err)
	require.Len(t, reports.ctxErrs, 1)
	assert.NoError(t, reports.ctxErrs[0])
}

func TestWizard_BusyDuringFetch(t *testing.T) {
	store := newStore()
	store.block = make(chan struct{})
	w := newWizard(store, &fakeReports{})

	done := make(chan error, 1)
	go func() { done <- w.Next(context.Background()) }()

	require.Eventually(t, func() bool {
		store.mu.Lock()
		defer store.mu.Unlock()
		return store.calls == 1
	}, time.Second, time.Millisecond)

	assert.ErrorIs(t, w.Next(context.Background()), ErrBusy)
	assert.ErrorIs(t, w.SetPeriod(2024, 1), ErrBusy)

	close(store.block)
	require.NoError(t, <-done)
	assert.Equal(t, StepIncomeReview, w.Step())
}

func TestWizard_BusyDuringSubmit(t *testing.T) {
	reports := &fakeReports{block: make(chan struct{})}
	w := newWizard(newStore(), reports)
	advanceTo(t, w, StepSummary)

	done := make(chan error, 1)
	go func() {
		_, err := w.Submit(context.Background(), "")
		done <- err
	}()

	require.Eventually(t, func() bool {
		reports.mu.Lock()
		defer reports.mu.Unlock()
		return len(reports.ctxErrs) == 1
	}, time.Second, time.Millisecond)

	assert.ErrorIs(t, w.Cancel(), ErrBusy)
	assert.ErrorIs(t, w.Back(), ErrBusy)
	_, err := w.Submit(context.Background(), "")
	assert.ErrorIs(t, err, ErrBusy)
	assert.Equal(t, StepSummary, w.Step())

	close(reports.block)
	require.NoError(t, <-done)
	assert.Equal(t, StepSubmitted, w.Step())
	assert.Len(t, reports.saved, 1)
}

func TestWizard_CancelDuringFetch(t *testing.T) {
	store := newStore()
	store.block = make(chan struct{})
	w := newWizard(store, &fakeReports{})

	done := make(chan error, 1)
	go func() { done <- w.Next(context.Background()) }()

	require.Eventually(t, func() bool {
		store.mu.Lock()
		defer store.mu.Unlock()
		return store.calls == 1
	}, time.Second, time.Millisecond)

	require.NoError(t, w.Cancel())
	close(store.block)

	assert.ErrorIs(t, <-done, ErrClosed)
	assert.Equal(t, StepCancelled, w.Step())
	assert.Nil(t, w.Selection())
}

func TestWizard_ComputationErrorBlocksSummary(t *testing.T) {
	store := newStore()
	store.invoices = []models.FinancialDocument{doc(models.KindInvoice, "inv-neg", "-10.00", "-1.90", false)}
	w := newWizard(store, &fakeReports{})

	require.NoError(t, w.Next(context.Background()))
	require.NoError(t, w.Next(context.Background()))

	err := w.Next(context.Background())
	assert.True(t, ustva.IsComputationError(err))
	assert.Equal(t, StepExpenseReview, w.Step())
}

func TestWizard_NextFromSummary(t *testing.T) {
	w := newWizard(newStore(), &fakeReports{})
	advanceTo(t, w, StepSummary)
	assert.ErrorIs(t, w.Next(context.Background()), ErrInvalidTransition)

	p, ok := w.Plausibility()
	require.True(t, ok)
	assert.True(t, p.OK())
	assert.Empty(t, w.Inconsistencies())
}
