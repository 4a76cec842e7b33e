package services

import (
	"math"
	"strings"
)

// precisionScale strips binary drift from float sums without applying currency rounding.
const precisionScale = 1e6

// CalculateCateringPrice prices a pre-bucketed catering order. Guest counts below one are
// treated as one. Upcharges (AdditionalCharge > 0) apply per guest regardless of quantity;
// standalone items (IsMenuItem false) multiply unit price by quantity and guests.
func CalculateCateringPrice(basePricePerPerson float64, charges []CateringCharge, guestCount int, combos []ComboCharge) CateringBreakdown {
	guests := guestCount
	if guests < 1 {
		guests = 1
	}
	g := float64(guests)

	breakdown := CateringBreakdown{
		BasePricePerPerson: basePricePerPerson,
		GuestCount:         guests,
		BasePriceTotal:     roundPrecision(basePricePerPerson * g),
		AdditionalCharges:  make([]CateringLine, 0, len(charges)+len(combos)),
	}

	total := 0.0
	for _, charge := range charges {
		var lineTotal float64
		switch {
		case charge.AdditionalCharge > 0:
			lineTotal = charge.AdditionalCharge * g
		case !charge.IsMenuItem:
			lineTotal = (charge.UnitPrice + charge.AdditionalCharge) * charge.Quantity * g
		default:
			// zero or negative upcharge on a menu item; negative acts as a discount
			lineTotal = charge.AdditionalCharge * g
		}
		lineTotal = roundPrecision(lineTotal)
		total += lineTotal
		breakdown.AdditionalCharges = append(breakdown.AdditionalCharges, CateringLine{
			ItemID:           charge.ItemID,
			Name:             charge.Name,
			Quantity:         charge.Quantity,
			UnitPrice:        charge.UnitPrice,
			AdditionalCharge: charge.AdditionalCharge,
			IsMenuItem:       charge.IsMenuItem,
			TotalPrice:       lineTotal,
		})
	}

	for _, combo := range combos {
		lineTotal := roundPrecision(combo.AdditionalCharge * g)
		total += lineTotal
		breakdown.AdditionalCharges = append(breakdown.AdditionalCharges, CateringLine{
			ItemID:           combo.ItemID,
			Name:             combo.Name,
			Category:         strings.TrimSpace(combo.Category),
			Quantity:         1,
			AdditionalCharge: combo.AdditionalCharge,
			IsMenuItem:       true,
			TotalPrice:       lineTotal,
		})
	}

	breakdown.AdditionalChargesTotal = roundPrecision(total)
	breakdown.FinalTotal = roundPrecision(breakdown.BasePriceTotal + breakdown.AdditionalChargesTotal)
	return breakdown
}

// CalculateCateringSelection prices the output of ExtractCateringItems. Base items are
// covered by the per-person price and do not appear as additional charges.
func CalculateCateringSelection(selection CateringSelection, guestCount int) CateringBreakdown {
	return CalculateCateringPrice(selection.BasePricePerPerson, selection.AdditionalChargeItems, guestCount, selection.ComboCategoryItems)
}

func roundPrecision(v float64) float64 {
	return math.Round(v*precisionScale) / precisionScale
}
