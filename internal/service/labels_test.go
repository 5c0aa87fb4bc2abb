package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/primes-api/pkg/isoweek"
)

func TestFrenchLabels(t *testing.T) {
	sunday := isoweek.MustParseDate("2024-03-10")
	assert.Equal(t, "Dimanche", dayNameFR(sunday))
	assert.Equal(t, "Lundi", dayNameFR(sunday.AddDays(1)))
	assert.Equal(t, "10/03/2024", formatDateFR(sunday))
	assert.Equal(t, "Semaine 1 — 2025", weekLabel(isoweek.WeekKey{Year: 2025, Week: 1}))
	assert.Equal(t, "30/12/2024 → 05/01/2025", rangeLabel(isoweek.MustParseDate("2024-12-30"), isoweek.MustParseDate("2025-01-06")))
	assert.Equal(t, "0.00€", formatEuros(0))
	assert.Equal(t, "1234.50€", formatEuros(1234.5))
}
