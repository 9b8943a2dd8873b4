package transactions

import (
	"github.com/shopspring/decimal"
)

// Processor pricing: 2.9% of the amount plus a 30 cent flat fee.
var (
	feeRate      = decimal.NewFromFloat(0.029)
	flatFeeCents = decimal.NewFromInt(30)
	centsPerUnit = decimal.NewFromInt(100)
)

// Charge breaks a payment amount into its processor parts. All values are
// integer minor units; Display converts at the API boundary.
type Charge struct {
	AmountCents int
	FeeCents    int
	TotalCents  int
}

// CalculateCharge derives the processor fee and grand total for an amount.
// The fee rounds half away from zero before the flat fee is added.
func CalculateCharge(amountCents int) Charge {
	amount := decimal.NewFromInt(int64(amountCents))
	fee := amount.Mul(feeRate).Round(0).Add(flatFeeCents)
	feeCents := int(fee.IntPart())
	return Charge{
		AmountCents: amountCents,
		FeeCents:    feeCents,
		TotalCents:  amountCents + feeCents,
	}
}

// AmountDisplay returns the amount in major units with two decimal places.
func (c Charge) AmountDisplay() decimal.Decimal {
	return DisplayAmount(c.AmountCents)
}

// FeeDisplay returns the fee in major units with two decimal places.
func (c Charge) FeeDisplay() decimal.Decimal {
	return DisplayAmount(c.FeeCents)
}

// TotalDisplay returns the total in major units with two decimal places.
func (c Charge) TotalDisplay() decimal.Decimal {
	return DisplayAmount(c.TotalCents)
}

// DisplayAmount converts integer cents into a 2-place major-unit amount.
// Response payloads carry money in this form; cents never leave the server.
func DisplayAmount(cents int) decimal.Decimal {
	return decimal.NewFromInt(int64(cents)).Div(centsPerUnit).Round(2)
}
