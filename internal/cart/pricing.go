package cart

import (
	"github.com/shopspring/decimal"

	"github.com/andresvillarreal/comprabot-backend/pkg/db/models"
)

var hundred = decimal.NewFromInt(100)

// Totals is a fully-computed money breakdown for a set of cart lines. All
// amounts are rounded to two decimal places.
type Totals struct {
	SubtotalUSD decimal.Decimal
	TaxPercent  decimal.Decimal
	TaxUSD      decimal.Decimal
	TotalUSD    decimal.Decimal
	FXRate      decimal.Decimal
	TotalLocal  decimal.Decimal
}

// ComputeTotals prices the given lines with the provided tax percentage and
// FX rate. Line prices are the cents snapshotted at add time.
func ComputeTotals(items []models.CartItem, taxPercent, fxRate decimal.Decimal) Totals {
	subtotalCents := int64(0)
	for _, item := range items {
		subtotalCents += int64(item.UnitPriceCents) * int64(item.Quantity)
	}

	subtotal := decimal.NewFromInt(subtotalCents).Div(hundred)
	tax := subtotal.Mul(taxPercent).Div(hundred).Round(2)
	total := subtotal.Add(tax).Round(2)
	totalLocal := total.Mul(fxRate).Round(2)

	return Totals{
		SubtotalUSD: subtotal.Round(2),
		TaxPercent:  taxPercent,
		TaxUSD:      tax,
		TotalUSD:    total,
		FXRate:      fxRate,
		TotalLocal:  totalLocal,
	}
}
