package recurring_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/standing-orders/recurring"
)

func TestAddMonths_ClampsToMonthEnd(t *testing.T) {
	d := recurring.MustParseDate("2024-01-31")
	assert.Equal(t, "2024-02-29", d.AddMonths(1).String())
	assert.Equal(t, "2024-03-31", d.AddMonths(2).String())
	assert.Equal(t, "2024-04-30", d.AddMonths(3).String())
	assert.Equal(t, "2025-01-31", d.AddMonths(12).String())
	assert.Equal(t, "2023-12-31", d.AddMonths(-1).String())
}

func TestDaysBetween(t *testing.T) {
	a := recurring.MustParseDate("2024-02-27")
	b := recurring.MustParseDate("2024-03-02")
	assert.Equal(t, 4, recurring.DaysBetween(a, b))
	assert.Equal(t, -4, recurring.DaysBetween(b, a))
	assert.Equal(t, 0, recurring.DaysBetween(a, a))
}

func TestParseDate(t *testing.T) {
	d, err := recurring.ParseDate(" 2025-03-06 ")
	require.NoError(t, err)
	assert.Equal(t, recurring.NewDate(2025, time.March, 6), d)

	// The written calendar day wins over the UTC day.
	d, err = recurring.ParseDate("2025-03-06T00:30:00+09:00")
	require.NoError(t, err)
	assert.Equal(t, "2025-03-06", d.String())

	_, err = recurring.ParseDate("06/03/2025")
	assert.Error(t, err)
}

func TestDateOf_UsesLocation(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*60*60)
	instant := time.Date(2025, time.March, 5, 16, 0, 0, 0, time.UTC)

	assert.Equal(t, "2025-03-05", recurring.DateOf(instant).String())
	assert.Equal(t, "2025-03-06", recurring.DateOf(instant.In(tokyo)).String())
}

func TestDate_JSON(t *testing.T) {
	var holder struct {
		Ship recurring.Date  `json:"ship"`
		Last *recurring.Date `json:"last"`
		Zero recurring.Date  `json:"zero"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"ship": "2025-03-10", "last": null, "zero": ""}`), &holder))
	assert.Equal(t, "2025-03-10", holder.Ship.String())
	assert.Nil(t, holder.Last)
	assert.True(t, holder.Zero.IsZero())

	data, err := json.Marshal(holder)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ship": "2025-03-10", "last": null, "zero": null}`, string(data))
}

func TestISOWeekday(t *testing.T) {
	assert.Equal(t, 1, recurring.MustParseDate("2025-03-03").ISOWeekday())
	assert.Equal(t, 7, recurring.MustParseDate("2025-03-09").ISOWeekday())
}

func TestEndOfMonth(t *testing.T) {
	assert.Equal(t, "2024-02-29", recurring.EndOfMonth(2024, time.February).String())
	assert.Equal(t, "2100-02-28", recurring.EndOfMonth(2100, time.February).String())
	assert.Equal(t, 31, recurring.DaysIn(2025, time.December))
}

// =============================================================================
// GUARDS
// =============================================================================

func TestGuards(t *testing.T) {
	tests := []struct {
		name  string
		guard func(recurring.Status) recurring.GuardResult
		from  recurring.Status
		allow bool
	}{
		{"pause active", recurring.CanPause, recurring.StatusActive, true},
		{"pause paused", recurring.CanPause, recurring.StatusPaused, true},
		{"pause cancelled", recurring.CanPause, recurring.StatusCancelled, false},
		{"resume paused", recurring.CanResume, recurring.StatusPaused, true},
		{"resume active", recurring.CanResume, recurring.StatusActive, false},
		{"resume cancelled", recurring.CanResume, recurring.StatusCancelled, false},
		{"cancel active", recurring.CanCancel, recurring.StatusActive, true},
		{"cancel paused", recurring.CanCancel, recurring.StatusPaused, true},
		{"cancel cancelled", recurring.CanCancel, recurring.StatusCancelled, false},
		{"interval paused", recurring.CanChangeInterval, recurring.StatusPaused, true},
		{"edit cancelled", recurring.CanEdit, recurring.StatusCancelled, false},
		{"advance active", recurring.CanAdvance, recurring.StatusActive, true},
		{"advance paused", recurring.CanAdvance, recurring.StatusPaused, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.guard(tt.from)
			assert.Equal(t, tt.allow, result.Allowed)
			if !tt.allow {
				assert.NotEmpty(t, result.Reason)
				assert.True(t, recurring.IsConflict(result.Err("tpl-1", tt.from, "op")))
			}
		})
	}
}

// =============================================================================
// ROW CODEC
// =============================================================================

func TestTemplateRow_KeepsTextVerbatim(t *testing.T) {
	last := recurring.MustParseDate("2025-02-24")
	tpl := &recurring.Template{
		ID:               "tpl-1",
		Interval:         recurring.LastOfMonth(),
		NextShippingDate: recurring.MustParseDate("2025-03-31"),
		NextDeliveryDate: recurring.MustParseDate("2025-04-01"),
		LeadDays:         1,
		Status:           recurring.StatusPaused,
		LastExecutedDate: &last,
		Customer:         recurring.Party{Name: "佐藤商店", PostalCode: "0010010", Phone: "0120123456"},
		Shipping:         recurring.Shipping{DeliveryMethod: "Sagawa", CargoHandling: []string{"ナマモノ", "天地無用"}},
		Checklist:        recurring.Checklist{Invoice: true},
		Lines:            []recurring.Line{{ProductName: "Milk", Quantity: 3}},
	}

	row, err := recurring.EncodeTemplate(tpl)
	require.NoError(t, err)
	assert.Equal(t, "0010010", row["customer_postal_code"])
	assert.Equal(t, `{"type":"monthly_day","day":"last"}`, row["interval"])

	back, err := recurring.DecodeTemplate(row)
	require.NoError(t, err)
	assert.Equal(t, tpl.Customer, back.Customer)
	assert.Equal(t, tpl.Interval, back.Interval)
	assert.Equal(t, tpl.Shipping, back.Shipping)
	assert.Equal(t, tpl.Checklist, back.Checklist)
	assert.Equal(t, recurring.StatusPaused, back.Status)
	require.NotNil(t, back.LastExecutedDate)
	assert.Equal(t, last, *back.LastExecutedDate)
}

func TestDecodeTemplate_LegacyRow(t *testing.T) {
	// GIVEN: A row written before intervals were objects and lead was stored
	row := recurring.Row{
		"id":                 "old-1",
		"interval":           "3",
		"next_shipping_date": "2025-03-10",
		"next_delivery_date": "2025-03-13",
		"status":             "active",
		"lines":              `[{"product_name": "Rice", "unit_price": "5000", "quantity": 1}]`,
	}

	tpl, err := recurring.DecodeTemplate(row)

	require.NoError(t, err)
	assert.Equal(t, recurring.NMonthly(3), tpl.Interval)
	assert.Equal(t, 3, tpl.LeadDays)
	assert.Equal(t, recurring.StatusActive, tpl.Status)
	assert.Len(t, tpl.Lines, 1)
}

func TestDecodeTemplate_Status(t *testing.T) {
	row := func(status string) recurring.Row {
		return recurring.Row{
			"id":                 "tpl-1",
			"interval":           `{"kind":"weekly","n":1}`,
			"next_shipping_date": "2025-03-10",
			"next_delivery_date": "2025-03-11",
			"status":             status,
		}
	}

	tests := []struct {
		stored  string
		want    recurring.Status
		wantErr bool
	}{
		{"active", recurring.StatusActive, false},
		{"Cancelled", recurring.StatusCancelled, false},
		{" paused ", recurring.StatusPaused, false},
		{"archived", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.stored, func(t *testing.T) {
			tpl, err := recurring.DecodeTemplate(row(tt.stored))
			if tt.wantErr {
				// An unreadable status must never turn into an active template.
				assert.ErrorContains(t, err, "unknown status")
				assert.Nil(t, tpl)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, tpl.Status)
		})
	}
}
