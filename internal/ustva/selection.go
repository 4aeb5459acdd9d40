package ustva

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/samber/lo"
	"taxkit/internal/period"
	"taxkit/pkg/models"
)

// Selection records which eligible documents of one period are included in
// the return. Only documents that are eligible for the loaded period are ever
// known to it, and a non-deductible expense is never selected.
//
// Selection is not safe for concurrent use; the wizard serializes access.
type Selection struct {
	period     period.TaxPeriod
	invoices   map[string]bool // eligible invoice id -> selected
	expenses   map[string]bool // eligible expense id -> selected
	deductible map[string]bool // eligible expense id -> deductible
}

// NewSelection loads the default selection for the given documents.
func NewSelection(p period.TaxPeriod, invoices, expenses []models.FinancialDocument) *Selection {
	s := &Selection{}
	s.LoadDefaults(p, invoices, expenses)
	return s
}

// IsEligible reports whether a document may take part in the return for p:
// it must carry an eligible status and a document date inside the period.
func IsEligible(p period.TaxPeriod, doc models.FinancialDocument) bool {
	return doc.HasEligibleStatus() && p.Contains(doc.DocumentDate)
}

// LoadDefaults replaces the state: every eligible invoice is selected, and of
// the eligible expenses only the deductible ones.
func (s *Selection) LoadDefaults(p period.TaxPeriod, invoices, expenses []models.FinancialDocument) {
	s.period = p
	s.invoices = make(map[string]bool)
	s.expenses = make(map[string]bool)
	s.deductible = make(map[string]bool)

	for _, inv := range invoices {
		if inv.Kind == models.KindInvoice && IsEligible(p, inv) {
			s.invoices[inv.ID] = true
		}
	}
	for _, exp := range expenses {
		if exp.Kind == models.KindExpense && IsEligible(p, exp) {
			s.expenses[exp.ID] = exp.Deductible
			s.deductible[exp.ID] = exp.Deductible
		}
	}
}

// Period returns the period the selection was loaded for.
func (s *Selection) Period() period.TaxPeriod {
	return s.period
}

// Toggle flips the membership of id and reports whether the state changed.
// Unknown ids and non-deductible expenses are left untouched.
func (s *Selection) Toggle(kind models.DocumentKind, id string) bool {
	set := s.set(kind)
	selected, known := set[id]
	if !known {
		return false
	}
	if kind == models.KindExpense && !s.deductible[id] {
		return false
	}
	set[id] = !selected
	return true
}

// SelectAll selects every eligible document of kind. For expenses this means
// every deductible one.
func (s *Selection) SelectAll(kind models.DocumentKind) {
	set := s.set(kind)
	for id := range set {
		set[id] = kind != models.KindExpense || s.deductible[id]
	}
}

// SelectNone clears the selection for kind.
func (s *Selection) SelectNone(kind models.DocumentKind) {
	set := s.set(kind)
	for id := range set {
		set[id] = false
	}
}

// IsSelected reports whether id is currently included.
func (s *Selection) IsSelected(kind models.DocumentKind, id string) bool {
	return s.set(kind)[id]
}

// Selected returns the included ids of kind in ascending order.
func (s *Selection) Selected(kind models.DocumentKind) []string {
	ids := lo.Keys(lo.PickBy(s.set(kind), func(_ string, selected bool) bool {
		return selected
	}))
	slices.Sort(ids)
	return ids
}

// Eligible returns all known ids of kind in ascending order.
func (s *Selection) Eligible(kind models.DocumentKind) []string {
	ids := lo.Keys(s.set(kind))
	slices.Sort(ids)
	return ids
}

// Count returns the number of included documents of kind.
func (s *Selection) Count(kind models.DocumentKind) int {
	return len(s.Selected(kind))
}

// Clone returns an independent copy.
func (s *Selection) Clone() *Selection {
	return &Selection{
		period:     s.period,
		invoices:   cloneSet(s.invoices),
		expenses:   cloneSet(s.expenses),
		deductible: cloneSet(s.deductible),
	}
}

func (s *Selection) set(kind models.DocumentKind) map[string]bool {
	switch kind {
	case models.KindInvoice:
		return s.invoices
	case models.KindExpense:
		return s.expenses
	}
	return nil
}

func cloneSet(m map[string]bool) map[string]bool {
	out := make(map[string]bool, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

type selectionEntry struct {
	ID         string `json:"id"`
	Selected   bool   `json:"selected"`
	Deductible *bool  `json:"deductible,omitempty"`
}

type selectionSnapshot struct {
	Year     int              `json:"year"`
	Quarter  int              `json:"quarter"`
	Invoices []selectionEntry `json:"invoices"`
	Expenses []selectionEntry `json:"expenses"`
}

// MarshalJSON encodes the selection with ids in ascending order.
func (s *Selection) MarshalJSON() ([]byte, error) {
	snap := selectionSnapshot{
		Year:    s.period.Year,
		Quarter: s.period.Quarter,
		Invoices: lo.Map(s.Eligible(models.KindInvoice), func(id string, _ int) selectionEntry {
			return selectionEntry{ID: id, Selected: s.invoices[id]}
		}),
		Expenses: lo.Map(s.Eligible(models.KindExpense), func(id string, _ int) selectionEntry {
			return selectionEntry{ID: id, Selected: s.expenses[id], Deductible: lo.ToPtr(s.deductible[id])}
		}),
	}
	return json.Marshal(snap)
}

// UnmarshalJSON restores a selection. Selected non-deductible expenses are
// dropped from the selection rather than rejected.
func (s *Selection) UnmarshalJSON(data []byte) error {
	const op = "Selection.UnmarshalJSON"

	var snap selectionSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	p, err := period.Resolve(snap.Year, snap.Quarter)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.period = p
	s.invoices = make(map[string]bool, len(snap.Invoices))
	s.expenses = make(map[string]bool, len(snap.Expenses))
	s.deductible = make(map[string]bool, len(snap.Expenses))

	for _, e := range snap.Invoices {
		s.invoices[e.ID] = e.Selected
	}
	for _, e := range snap.Expenses {
		deductible := e.Deductible != nil && *e.Deductible
		s.deductible[e.ID] = deductible
		s.expenses[e.ID] = e.Selected && deductible
	}
	return nil
}
