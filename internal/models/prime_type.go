package models

import (
	"math"
	"time"
)

// DefaultPrimeIcon is shown for prime types without an icon.
const DefaultPrimeIcon = "🔖"

// PrimeType is a catalog entry: a bonus category with a fixed amount in euros.
type PrimeType struct {
	Code      string    `db:"code" json:"code"`
	Label     string    `db:"label" json:"label"`
	Amount    float64   `db:"amount" json:"amount"`
	Icon      string    `db:"icon" json:"icon"`
	Active    bool      `db:"active" json:"active"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// DisplayIcon returns Icon or DefaultPrimeIcon when unset.
func (p PrimeType) DisplayIcon() string {
	if p.Icon == "" {
		return DefaultPrimeIcon
	}
	return p.Icon
}

// AmountCents returns the amount as integer cents. Totals are summed in cents.
func (p PrimeType) AmountCents() int64 {
	return ToCents(p.Amount)
}

// ToCents converts euros to cents, rounding half away from zero.
func ToCents(euros float64) int64 {
	return int64(math.Round(euros * 100))
}

// FromCents converts cents back to euros.
func FromCents(cents int64) float64 {
	return float64(cents) / 100
}
