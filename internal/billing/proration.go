package billing

import (
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/KabirBatra18/valoquick-sub001/internal/types"
)

// SeatCost is the breakdown of a pro-rated seat purchase. Amounts in paise.
type SeatCost struct {
	DaysRemaining   int   `json:"days_remaining"`
	PerSeatProRated int64 `json:"per_seat_pro_rated"`
	TotalProRated   int64 `json:"total_pro_rated"`
	RecurringAmount int64 `json:"recurring_amount"`
}

// ComputeSeatCost computes the pro-rated charge for adding seats mid-cycle
// and the full-cycle recurring amount for future renewals.
//
// The per-seat prorated amount is the plan's daily seat rate times the days
// remaining, rounded UP to the next paisa so partial days never under-charge.
// A currentPeriodEnd in the past yields zero owed now; callers must still
// honor the recurring amount at the next renewal.
func ComputeSeatCost(plan types.Plan, currentPeriodEnd time.Time, additionalSeats int, now time.Time) (SeatCost, error) {
	if additionalSeats <= 0 {
		return SeatCost{}, types.NewAppError(
			types.ErrCodeValidationSeatCount,
			"additional_seats must be a positive integer",
			nil,
		)
	}

	pricing, ok := PricingFor(plan)
	if !ok {
		return SeatCost{}, types.NewAppError(
			types.ErrCodeValidationInvalidPlan,
			"unsupported plan: "+string(plan),
			nil,
		)
	}

	daysRemaining := 0
	if currentPeriodEnd.After(now) {
		remaining := currentPeriodEnd.Sub(now)
		daysRemaining = int((remaining + 24*time.Hour - time.Nanosecond) / (24 * time.Hour))
	}

	dailyRate := decimal.NewFromInt(pricing.SeatPrice).
		Div(decimal.NewFromInt(int64(pricing.PeriodDays)))
	perSeat := dailyRate.Mul(decimal.NewFromInt(int64(daysRemaining))).Ceil().IntPart()

	return SeatCost{
		DaysRemaining:   daysRemaining,
		PerSeatProRated: perSeat,
		TotalProRated:   perSeat * int64(additionalSeats),
		RecurringAmount: pricing.SeatPrice * int64(additionalSeats),
	}, nil
}

// inr is the display locale for currency strings in API responses.
var inr = message.NewPrinter(language.MustParse("en-IN"))

// FormatAmount converts a paise amount into a locale-formatted rupee string
// with two decimal places, e.g. 40002 -> "₹400.02".
func FormatAmount(paise int64) string {
	major, _ := decimal.NewFromInt(paise).Div(decimal.NewFromInt(100)).Float64()
	return inr.Sprintf("₹%.2f", major)
}
