package order

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetPlacedAt_DerivesCalendarFields(t *testing.T) {
	placedAt := time.Date(2026, time.March, 7, 19, 45, 12, 0, time.Local)
	o := New("order-1", placedAt)

	assert.Equal(t, "2026-03-07", o.Date)
	assert.Equal(t, 2026, o.Year)
	assert.Equal(t, 3, o.Month)
	assert.Equal(t, 7, o.Day)
	assert.Equal(t, 19, o.Hour)
	assert.Equal(t, 45, o.Minute)
	assert.Equal(t, int(time.Saturday), o.Weekday)

	_, week := placedAt.ISOWeek()
	assert.Equal(t, week, o.WeekNumber)
}

func TestSetPlacedAt_RecomputesAllFieldsOnChange(t *testing.T) {
	o := New("order-1", time.Date(2026, time.March, 7, 19, 45, 0, 0, time.Local))
	o.SetPlacedAt(time.Date(2025, time.December, 31, 23, 59, 0, 0, time.Local))

	assert.Equal(t, "2025-12-31", o.Date)
	assert.Equal(t, 2025, o.Year)
	assert.Equal(t, 12, o.Month)
	assert.Equal(t, 23, o.Hour)
	assert.Equal(t, 59, o.Minute)
}

func TestNew_InitializesInertFiscalRecord(t *testing.T) {
	o := New("order-1", time.Now())

	assert.Equal(t, FiscalStatusPending, o.Fiscal.Status)
	assert.Empty(t, o.Fiscal.DocumentNumber)
	assert.Empty(t, o.Fiscal.AccessKey)
	assert.Nil(t, o.Fiscal.IssuedAt)
}

func TestLine_Total(t *testing.T) {
	t.Run("quantity times unit price", func(t *testing.T) {
		line := Line{
			Name:      "X-Burger",
			Quantity:  3,
			UnitPrice: decimal.NewFromFloat(25.50),
		}
		assert.True(t, line.Total().Equal(decimal.NewFromFloat(76.50)))
	})

	t.Run("customizations are added per unit", func(t *testing.T) {
		line := Line{
			Name:      "X-Burger",
			Quantity:  2,
			UnitPrice: decimal.NewFromFloat(20),
			Customizations: map[string][]CustomizationItem{
				"Additional Items": {
					{Name: "bacon", Price: decimal.NewFromFloat(3)},
					{Name: "cheese", Price: decimal.NewFromFloat(2)},
				},
			},
		}
		// (20 + 3 + 2) * 2
		assert.True(t, line.Total().Equal(decimal.NewFromFloat(50)))
	})
}

func TestRecalculateTotals(t *testing.T) {
	o := New("order-1", time.Now())
	o.Lines = []Line{
		{Name: "Pizza", Quantity: 1, UnitPrice: decimal.NewFromFloat(40)},
		{Name: "Soda", Quantity: 2, UnitPrice: decimal.NewFromFloat(6)},
	}
	o.DeliveryFee = decimal.NewFromFloat(8)
	o.Discount = decimal.NewFromFloat(5)

	o.RecalculateTotals()

	assert.True(t, o.Subtotal.Equal(decimal.NewFromFloat(52)))
	assert.True(t, o.Total.Equal(decimal.NewFromFloat(55)))
}

func TestRecalculateTotals_NeverNegative(t *testing.T) {
	o := New("order-1", time.Now())
	o.Lines = []Line{
		{Name: "Soda", Quantity: 1, UnitPrice: decimal.NewFromFloat(6)},
	}
	o.Discount = decimal.NewFromFloat(100)

	o.RecalculateTotals()

	assert.True(t, o.Total.Equal(decimal.Zero))
}

func TestItemCount(t *testing.T) {
	o := New("order-1", time.Now())
	o.Lines = []Line{
		{Name: "Pizza", Quantity: 2},
		{Name: "Soda", Quantity: 3},
	}
	assert.Equal(t, 5, o.ItemCount())
}

func TestTransitionTo(t *testing.T) {
	t.Run("follows the full delivery path", func(t *testing.T) {
		o := New("order-1", time.Now())

		require.NoError(t, o.TransitionTo(StatusConfirmed))
		require.NoError(t, o.TransitionTo(StatusPreparing))
		require.NoError(t, o.TransitionTo(StatusOutForDelivery))
		require.NoError(t, o.TransitionTo(StatusDelivered))

		assert.Equal(t, StatusDelivered, o.Status)
	})

	t.Run("rejects skipping ahead", func(t *testing.T) {
		o := New("order-1", time.Now())
		err := o.TransitionTo(StatusOutForDelivery)
		assert.Error(t, err)
		assert.Equal(t, StatusPending, o.Status)
	})

	t.Run("rejects transitions out of a terminal status", func(t *testing.T) {
		o := New("order-1", time.Now())
		require.NoError(t, o.Cancel())
		assert.Error(t, o.TransitionTo(StatusConfirmed))
	})

	t.Run("allows cancellation from any non-terminal status", func(t *testing.T) {
		for _, from := range []Status{StatusPending, StatusConfirmed, StatusPreparing, StatusOutForDelivery} {
			o := New("order-1", time.Now())
			o.Status = from
			assert.NoError(t, o.Cancel(), "cancel from %s", from)
		}
	})

	t.Run("rejects unknown statuses", func(t *testing.T) {
		o := New("order-1", time.Now())
		assert.Error(t, o.TransitionTo(Status("shipped")))
	})
}
