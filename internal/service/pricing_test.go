package service

import (
	"testing"

	"pass-service/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestPriceFixedIgnoresGuestsAndDays(t *testing.T) {
	cfg := &models.PassConfig{
		PricingMode: models.PricingFixed,
		FixedPrice:  5000,
		// Variable fields set on purpose; FIXED must ignore them.
		BasePrice:     1000,
		GuestIncrease: 500,
		DayIncrease:   300,
	}

	for _, guests := range []int{1, 2, 7} {
		for _, days := range []int{1, 5, 30} {
			b := Price(cfg, guests, days)
			assert.Equal(t, int64(5000), b.Total, "guests=%d days=%d", guests, days)
		}
	}
}

func TestPriceVariable(t *testing.T) {
	cfg := testConfig() // base=1000, guest=500, day=300

	b := Price(cfg, 3, 5)

	assert.Equal(t, int64(1000), b.Base)
	assert.Equal(t, int64(2*500), b.Guest)
	assert.Equal(t, int64(4*300), b.Day)
	assert.Equal(t, int64(0), b.Commission)
	assert.Equal(t, int64(0), b.Tax)
	assert.Equal(t, int64(3200), b.Total)
}

func TestPriceVariableSingleGuestSingleDay(t *testing.T) {
	cfg := testConfig()

	b := Price(cfg, 1, 1)

	assert.Equal(t, int64(1000), b.Total)
}

func TestPriceCommissionIsFlatAmount(t *testing.T) {
	cfg := testConfig()
	cfg.Commission = 250

	b := Price(cfg, 3, 5)

	assert.Equal(t, int64(250), b.Commission)
	assert.Equal(t, int64(3450), b.Total)
}

func TestPriceTaxAppliesAfterCommission(t *testing.T) {
	cfg := testConfig()
	cfg.Commission = 250
	cfg.TaxEnabled = true
	cfg.TaxBasisPoints = 1000 // 10%

	b := Price(cfg, 3, 5)

	assert.Equal(t, int64(345), b.Tax)
	assert.Equal(t, int64(3795), b.Total)
}

func TestPriceDeterministic(t *testing.T) {
	cfg := testConfig()
	cfg.TaxEnabled = true
	cfg.TaxBasisPoints = 750

	first := Price(cfg, 4, 9)
	for i := 0; i < 100; i++ {
		assert.Equal(t, first, Price(cfg, 4, 9))
	}
}
