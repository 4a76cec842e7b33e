package services

import (
	"math"
	"strings"

	domain "github.com/cateringhub/pricing/internal/domain"
	"github.com/cateringhub/pricing/internal/platform/textutil"
)

const (
	// ServiceFeeReference identifies the untaxed platform service fee line.
	ServiceFeeReference = "service_fee"
	// AdjustmentsReference identifies the ad hoc adjustments line.
	AdjustmentsReference = "adjustments"

	maxProductNameLength        = 250
	maxProductDescriptionLength = 500
)

// BuildTaxLineItems flattens services and selections into tax line items in cents.
//
// Selections are processed in sorted key order so output is stable. The delivery fee is
// accepted for symmetry with the checkout call but never emitted: it travels to the tax
// provider as a shipping cost. The result has already passed ValidateLineItems.
func BuildTaxLineItems(services []Service, selections SelectedItems, serviceFee, deliveryFee, adjustmentsTotal float64) []TaxableLineItem {
	kept, _ := ValidateLineItems(buildTaxLineItems(services, selections, serviceFee, adjustmentsTotal))
	return kept
}

func buildTaxLineItems(services []Service, selections SelectedItems, serviceFee, adjustmentsTotal float64) []TaxableLineItem {
	items := make([]TaxableLineItem, 0, len(services)+2)
	for _, svc := range services {
		items = append(items, serviceLineItems(svc, selections)...)
	}
	return append(items, feeLineItems(serviceFee, adjustmentsTotal)...)
}

func feeLineItems(serviceFee, adjustmentsTotal float64) []TaxableLineItem {
	var items []TaxableLineItem
	if fee := toCents(serviceFee); fee > 0 {
		items = append(items, TaxableLineItem{
			Amount:      fee,
			Reference:   ServiceFeeReference,
			ProductData: &domain.ProductData{Name: "Service fee"},
		})
	}
	if adj := toCents(adjustmentsTotal); adj != 0 {
		items = append(items, TaxableLineItem{
			Amount:      adj,
			Reference:   AdjustmentsReference,
			TaxCode:     domain.TaxCodeTangibleGoods,
			ProductData: &domain.ProductData{Name: "Adjustments"},
		})
	}
	return items
}

// ServiceLineItems returns the line items a single service contributes, including its
// whole-service fallback line.
func ServiceLineItems(svc Service, selections SelectedItems) []TaxableLineItem {
	kept, _ := ValidateLineItems(serviceLineItems(svc, selections))
	return kept
}

// CateringLineItem bills a priced catering breakdown as one line referencing the service.
// It reports false when the breakdown totals nothing.
func CateringLineItem(svc Service, breakdown CateringBreakdown) (TaxableLineItem, bool) {
	amount := toCents(breakdown.FinalTotal)
	if amount <= 0 {
		return TaxableLineItem{}, false
	}
	return TaxableLineItem{
		Amount:      amount,
		Reference:   svc.ID,
		TaxCode:     TaxCodeForServiceType(svc.Type),
		ProductData: productData(svc.Name, svc.ID, ""),
	}, true
}

func serviceLineItems(svc Service, selections SelectedItems) []TaxableLineItem {
	input := domain.NormalizePricing(svc)
	code := TaxCodeForServiceType(svc.Type)
	index := newCatalogIndex(svc.ID, input.Catalog)
	isStaff := input.Type == domain.ServiceTypeStaff

	var items []TaxableLineItem
	for _, sel := range index.selected(selections) {
		item := sel.item
		effectiveQty := sel.qty
		floor := 1.0
		if item.MinQuantity != nil {
			floor = *item.MinQuantity
		}
		if effectiveQty < floor {
			effectiveQty = floor
		}

		multiplier := 1.0
		if isStaff {
			multiplier = staffDuration(input, selections, sel.key, svc.ID+"_"+item.ID, item.ID)
		}

		amount := toCents(itemUnitPrice(item) * effectiveQty * multiplier)
		if amount <= 0 {
			continue
		}
		items = append(items, TaxableLineItem{
			Amount:      amount,
			Reference:   svc.ID + "_" + item.ID,
			TaxCode:     code,
			ProductData: productData(item.Name, item.ID, item.Description),
		})
	}
	if len(items) > 0 {
		return items
	}

	qty := input.Quantity
	if qty <= 0 {
		qty = 1
	}
	multiplier := 1.0
	if isStaff {
		multiplier = staffDuration(input, selections, svc.ID)
	}
	amount := toCents(input.BasePrice * qty * multiplier)
	if amount <= 0 {
		return nil
	}
	return []TaxableLineItem{{
		Amount:      amount,
		Reference:   svc.ID,
		TaxCode:     code,
		ProductData: productData(svc.Name, svc.ID, ""),
	}}
}

// itemUnitPrice is the item's declared price, or its upcharge for upgrade-only items.
func itemUnitPrice(item CatalogItem) float64 {
	if item.Price > 0 {
		return item.Price
	}
	return item.AdditionalCharge
}

// staffDuration resolves billed hours: the first positive of the "<key>_duration" selections,
// the service duration and the minimum hours, floored at the minimum hours. It is 1 when no
// duration is known.
func staffDuration(input PricingInput, selections SelectedItems, keys ...string) float64 {
	hours := 0.0
	for _, key := range keys {
		if v := selections[key+durationSuffix]; v > 0 {
			hours = v
			break
		}
	}
	if hours <= 0 && input.Duration != nil && *input.Duration > 0 {
		hours = *input.Duration
	}
	if hours <= 0 {
		hours = input.MinimumHours
	}
	if hours < input.MinimumHours {
		hours = input.MinimumHours
	}
	if hours <= 0 {
		return 1
	}
	return hours
}

func productData(name, fallback, description string) *domain.ProductData {
	cleaned := textutil.Truncate(textutil.StripMarkup(name), maxProductNameLength)
	if cleaned == "" {
		cleaned = strings.TrimSpace(fallback)
	}
	return &domain.ProductData{
		Name:        cleaned,
		Description: textutil.Truncate(textutil.StripMarkup(description), maxProductDescriptionLength),
	}
}

// ValidateLineItems drops items with a negative amount or an empty reference.
func ValidateLineItems(items []TaxableLineItem) (kept []TaxableLineItem, dropped []TaxableLineItem) {
	kept = make([]TaxableLineItem, 0, len(items))
	for _, item := range items {
		if item.Amount < 0 || strings.TrimSpace(item.Reference) == "" {
			dropped = append(dropped, item)
			continue
		}
		kept = append(kept, item)
	}
	return kept, dropped
}

// toCents converts dollars to integer cents rounding half up. The epsilon absorbs
// representations such as 1.005 stored as 1.00499999.
func toCents(dollars float64) int64 {
	if math.IsNaN(dollars) || math.IsInf(dollars, 0) {
		return 0
	}
	return int64(math.Floor(dollars*100 + 0.5 + 1e-9))
}

// LineItemsTotal sums line item amounts in cents.
func LineItemsTotal(items []TaxableLineItem) int64 {
	var total int64
	for _, item := range items {
		total += item.Amount
	}
	return total
}
