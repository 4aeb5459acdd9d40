package wizard

import (
	"context"
	"fmt"
	"slices"

	"taxkit/pkg/models"
)

// Adjustments change the default selection by document id. An id may name
// an invoice or an expense.
type Adjustments struct {
	Include []string `json:"include,omitempty"`
	Exclude []string `json:"exclude,omitempty"`
}

// RunToSummary drives a fresh session through the review steps for the
// given period and applies adj in the summary. Used where no user clicks
// through the steps (CLI and API). A zero year or quarter keeps that half
// of the session's default period.
func (w *Wizard) RunToSummary(ctx context.Context, year, quarter int, adj Adjustments) error {
	const op = "RunToSummary"

	p := w.Period()
	if year == 0 {
		year = p.Year
	}
	if quarter == 0 {
		quarter = p.Quarter
	}
	if err := w.SetPeriod(year, quarter); err != nil {
		return err
	}
	for w.Step() != StepSummary {
		if err := w.Next(ctx); err != nil {
			return err
		}
	}

	for _, id := range adj.Exclude {
		if err := w.adjust(id, false); err != nil {
			return fmt.Errorf("%s: exclude %s: %w", op, id, err)
		}
	}
	for _, id := range adj.Include {
		if err := w.adjust(id, true); err != nil {
			return fmt.Errorf("%s: include %s: %w", op, id, err)
		}
	}
	return nil
}

func (w *Wizard) adjust(id string, want bool) error {
	kind, ok := w.kindOf(id)
	if !ok {
		return ErrUnknownDocument
	}
	sel := w.Selection()
	if sel.IsSelected(kind, id) == want {
		return nil
	}
	changed, err := w.Toggle(kind, id)
	if err != nil {
		return err
	}
	if !changed {
		return ErrNotSelectable
	}
	return nil
}

func (w *Wizard) kindOf(id string) (models.DocumentKind, bool) {
	for _, kind := range []models.DocumentKind{models.KindInvoice, models.KindExpense} {
		if slices.ContainsFunc(w.Documents(kind), func(d models.FinancialDocument) bool { return d.ID == id }) {
			return kind, true
		}
	}
	return "", false
}
