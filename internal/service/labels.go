package service

import (
	"fmt"

	"github.com/noah-isme/primes-api/pkg/isoweek"
)

var dayNamesFR = [7]string{"Lundi", "Mardi", "Mercredi", "Jeudi", "Vendredi", "Samedi", "Dimanche"}

var monthLabelsFR = [12]string{"Janv", "Févr", "Mars", "Avr", "Mai", "Juin", "Juil", "Août", "Sept", "Oct", "Nov", "Déc"}

func dayNameFR(d isoweek.Date) string {
	return dayNamesFR[d.ISOWeekday()-1]
}

// formatDateFR renders dd/mm/yyyy.
func formatDateFR(d isoweek.Date) string {
	return d.Format("02/01/2006")
}

func weekLabel(k isoweek.WeekKey) string {
	return fmt.Sprintf("Semaine %d — %d", k.Week, k.Year)
}

// rangeLabel takes the half-open range and shows its last day inclusively.
func rangeLabel(start, endExclusive isoweek.Date) string {
	return formatDateFR(start) + " → " + formatDateFR(endExclusive.AddDays(-1))
}

func formatEuros(amount float64) string {
	return fmt.Sprintf("%.2f€", amount)
}
