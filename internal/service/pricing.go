package service

import "pass-service/internal/models"

// PriceBreakdown itemizes how a pass price was computed. All amounts are in
// cents; tax uses basis points so the whole computation stays integral and
// the same inputs always price to the same cent.
type PriceBreakdown struct {
	Base       int64
	Guest      int64
	Day        int64
	Commission int64
	Tax        int64
	Total      int64
}

// Price computes the cost of a pass from a validated configuration. It is a
// pure function with no side effects.
//
// FIXED mode returns the configured flat price regardless of guests or days.
// VARIABLE mode charges the base price plus per-extra-guest and
// per-extra-day increases, then the commission (a flat amount in cents, not
// a rate), then tax on the running total when enabled.
func Price(cfg *models.PassConfig, guests, days int) PriceBreakdown {
	if cfg.PricingMode == models.PricingFixed {
		return PriceBreakdown{
			Base:  cfg.FixedPrice,
			Total: cfg.FixedPrice,
		}
	}

	extraGuests := int64(guests - 1)
	if extraGuests < 0 {
		extraGuests = 0
	}
	extraDays := int64(days - 1)
	if extraDays < 0 {
		extraDays = 0
	}

	b := PriceBreakdown{
		Base:  cfg.BasePrice,
		Guest: cfg.GuestIncrease * extraGuests,
		Day:   cfg.DayIncrease * extraDays,
	}
	amount := b.Base + b.Guest + b.Day

	if cfg.Commission > 0 {
		b.Commission = cfg.Commission
		amount += b.Commission
	}

	if cfg.TaxEnabled {
		b.Tax = amount * cfg.TaxBasisPoints / 10000
		amount += b.Tax
	}

	b.Total = amount
	return b
}
