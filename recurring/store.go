/*
store.go - Recurring template store (CRUD + state machine)

PURPOSE:
  The only way templates are created or changed. Every operation reads the
  current row, checks the guard for the template's status, applies the
  change and writes the row back.

OPERATIONS:
  Create          validate, compute lead offset, status = active
  Get / List      read (List filters by status and customer name)
  Update          partial edit (never status or interval)
  Delete          remove the row (any status)
  Pause           active -> paused, dates untouched
  Resume          paused -> active, next shipping = NextDate(today, interval)
  Cancel          -> cancelled, terminal
  ChangeInterval  new interval + operator-supplied date pair
  Advance         scheduler only: next cycle from the current shipping date

LEAD OFFSET:
  LeadDays = first delivery - first shipping. Every recomputation (Resume,
  Advance) derives delivery from shipping + LeadDays. Operations that take
  an explicit date pair (ChangeInterval, Update) re-establish it.

CONCURRENCY:
  Read-modify-write sequences are serialized within the process. There is
  no protection against a second process writing the same table.

SEE ALSO:
  - guards.go: transition rules
  - repository.go: row mapping
  - scheduler/cycle.go: the caller of Advance
*/
package recurring

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Store implements the template operations on top of a TabularStore.
type Store struct {
	repo  *Repository
	clock Clock
	ids   IDGenerator

	mu sync.Mutex
}

// NewStore creates a template store.
func NewStore(tables TabularStore, clock Clock, ids IDGenerator) *Store {
	if clock == nil {
		clock = SystemClock{}
	}
	if ids == nil {
		ids = UUIDv7Generator{}
	}
	return &Store{repo: NewRepository(tables), clock: clock, ids: ids}
}

// =============================================================================
// CRUD
// =============================================================================

// Create validates params and stores a new active template.
func (s *Store) Create(ctx context.Context, p CreateParams) (TemplateID, error) {
	if err := validateCreate(p); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	t := &Template{
		ID:               TemplateID(s.ids.NewID()),
		Interval:         p.Interval,
		NextShippingDate: p.FirstShippingDate,
		NextDeliveryDate: p.FirstDeliveryDate,
		LeadDays:         DaysBetween(p.FirstShippingDate, p.FirstDeliveryDate),
		Status:           StatusActive,
		Customer:         p.Customer,
		Recipient:        p.Recipient,
		Shipping:         p.Shipping,
		Checklist:        p.Checklist,
		Lines:            append([]Line(nil), p.Lines...),
		Note:             p.Note,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.repo.Insert(ctx, t); err != nil {
		return "", fmt.Errorf("failed to create template: %w", err)
	}
	return t.ID, nil
}

// Get returns a template or ErrTemplateNotFound.
func (s *Store) Get(ctx context.Context, id TemplateID) (*Template, error) {
	return s.repo.Get(ctx, id)
}

// List returns templates matching filter in store order. Rows that cannot be
// decoded are left out.
func (s *Store) List(ctx context.Context, filter ListFilter) ([]*Template, error) {
	all, err := s.repo.All(ctx)
	if err != nil {
		return nil, err
	}
	needle := strings.ToLower(strings.TrimSpace(filter.CustomerNameContains))

	var out []*Template
	for _, t := range all {
		if filter.Status != nil && t.Status != *filter.Status {
			continue
		}
		if needle != "" && !strings.Contains(strings.ToLower(t.Customer.Name), needle) {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

// Active returns every active template, in store order.
//
// Rows that cannot be decoded are left out. They are reported by a
// *CorruptRowsError returned alongside the templates that did decode.
func (s *Store) Active(ctx context.Context) ([]*Template, error) {
	all, corrupt, err := s.repo.Scan(ctx)
	if err != nil {
		return nil, err
	}
	var out []*Template
	for _, t := range all {
		if t.Status == StatusActive {
			out = append(out, t)
		}
	}
	if len(corrupt) > 0 {
		return out, &CorruptRowsError{Rows: corrupt}
	}
	return out, nil
}

// Update applies a partial edit.
func (s *Store) Update(ctx context.Context, id TemplateID, f UpdateFields) error {
	return s.mutate(ctx, id, "update", CanEdit, func(t *Template) error {
		if f.Customer != nil {
			t.Customer = *f.Customer
		}
		if f.Recipient != nil {
			t.Recipient = *f.Recipient
		}
		if f.Shipping != nil {
			t.Shipping = *f.Shipping
		}
		if f.Checklist != nil {
			t.Checklist = *f.Checklist
		}
		if f.Note != nil {
			t.Note = *f.Note
		}
		if f.Lines != nil {
			t.Lines = append([]Line(nil), f.Lines...)
		}
		if f.NextShippingDate != nil {
			t.NextShippingDate = *f.NextShippingDate
		}
		if f.NextDeliveryDate != nil {
			t.NextDeliveryDate = *f.NextDeliveryDate
		}

		v := &ValidationError{}
		v.checkLines(t.Lines)
		v.checkDates(t.NextShippingDate, t.NextDeliveryDate)
		if len(v.Problems) > 0 {
			return v
		}
		if f.NextShippingDate != nil || f.NextDeliveryDate != nil {
			t.LeadDays = DaysBetween(t.NextShippingDate, t.NextDeliveryDate)
		}
		return nil
	})
}

// Delete removes a template regardless of status.
func (s *Store) Delete(ctx context.Context, id TemplateID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.repo.Delete(ctx, id)
}

// =============================================================================
// STATE MACHINE
// =============================================================================

// Pause stops a template from firing. Dates are left as they are.
func (s *Store) Pause(ctx context.Context, id TemplateID) error {
	return s.mutate(ctx, id, "pause", CanPause, func(t *Template) error {
		t.Status = StatusPaused
		return nil
	})
}

// Resume reactivates a paused template and reschedules it from today, not
// from the stale stored date, keeping the lead offset.
func (s *Store) Resume(ctx context.Context, id TemplateID) error {
	today := s.clock.Today()
	return s.mutate(ctx, id, "resume", CanResume, func(t *Template) error {
		t.Status = StatusActive
		t.reschedule(NextDate(today, t.Interval))
		return nil
	})
}

// Cancel is terminal. Cancelling twice is refused and changes nothing.
func (s *Store) Cancel(ctx context.Context, id TemplateID) error {
	return s.mutate(ctx, id, "cancel", CanCancel, func(t *Template) error {
		t.Status = StatusCancelled
		return nil
	})
}

// ChangeInterval replaces the interval and sets both next dates exactly as
// given; nothing is recomputed.
func (s *Store) ChangeInterval(ctx context.Context, id TemplateID, spec IntervalSpec, nextShipping, nextDelivery Date) error {
	v := &ValidationError{}
	if err := spec.Validate(); err != nil {
		v.Problems = append(v.Problems, err.Error())
	}
	v.checkDates(nextShipping, nextDelivery)
	if len(v.Problems) > 0 {
		return v
	}

	return s.mutate(ctx, id, "change interval", CanChangeInterval, func(t *Template) error {
		t.Interval = spec
		t.NextShippingDate = nextShipping
		t.NextDeliveryDate = nextDelivery
		t.LeadDays = DaysBetween(nextShipping, nextDelivery)
		return nil
	})
}

// Advance moves an executed template to its next cycle: the interval is
// applied to the current shipping date (not to executedOn) and
// LastExecutedDate is set to executedOn.
func (s *Store) Advance(ctx context.Context, id TemplateID, executedOn Date) (*Template, error) {
	var advanced *Template
	err := s.mutate(ctx, id, "advance", CanAdvance, func(t *Template) error {
		t.reschedule(NextDate(t.NextShippingDate, t.Interval))
		day := executedOn
		t.LastExecutedDate = &day
		advanced = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return advanced, nil
}

func (s *Store) mutate(ctx context.Context, id TemplateID, op string, guard func(Status) GuardResult, apply func(*Template) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := guard(t.Status).Err(t.ID, t.Status, op); err != nil {
		return err
	}
	if err := apply(t); err != nil {
		return err
	}
	t.UpdatedAt = s.clock.Now()
	return s.repo.Save(ctx, t)
}

// =============================================================================
// VALIDATION
// =============================================================================

func validateCreate(p CreateParams) error {
	v := &ValidationError{}
	if err := p.Interval.Validate(); err != nil {
		v.Problems = append(v.Problems, err.Error())
	}
	v.checkDates(p.FirstShippingDate, p.FirstDeliveryDate)
	v.checkLines(p.Lines)
	if len(v.Problems) > 0 {
		return v
	}
	return nil
}

func (v *ValidationError) checkLines(lines []Line) {
	if len(lines) == 0 {
		v.Problems = append(v.Problems, "at least one line is required")
		return
	}
	for i, l := range lines {
		if l.Quantity <= 0 {
			v.Problems = append(v.Problems, fmt.Sprintf("line %d: quantity must be > 0", i+1))
		}
		if strings.TrimSpace(l.ProductName) == "" {
			v.Problems = append(v.Problems, fmt.Sprintf("line %d: product name is required", i+1))
		}
		if l.UnitPrice.IsNegative() {
			v.Problems = append(v.Problems, fmt.Sprintf("line %d: unit price must not be negative", i+1))
		}
	}
}

func (v *ValidationError) checkDates(shipping, delivery Date) {
	if shipping.IsZero() {
		v.Problems = append(v.Problems, "shipping date is required")
	}
	if delivery.IsZero() {
		v.Problems = append(v.Problems, "delivery date is required")
	}
	if !shipping.IsZero() && !delivery.IsZero() && delivery.Before(shipping) {
		v.Problems = append(v.Problems, "delivery date must not precede shipping date")
	}
}
