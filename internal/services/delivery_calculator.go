package services

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	domain "github.com/cateringhub/pricing/internal/domain"
)

const (
	reasonNoDeliveryInfo     = "No delivery information provided"
	reasonPickupOnly         = "Pickup only"
	reasonAddressRequired    = "Delivery address is required"
	reasonNoRanges           = "Delivery is misconfigured: no delivery ranges defined"
	reasonNoValidRanges      = "Delivery is misconfigured: no valid delivery ranges"
	reasonDistanceUnverified = "Distance could not be verified; using the first delivery range"
)

var rangeNumberPattern = regexp.MustCompile(`\d+(?:\.\d+)?`)

// deliveryBand is a parsed DeliveryRange. Both bounds are inclusive.
type deliveryBand struct {
	label     string
	fee       float64
	lower     float64
	upper     float64
	unbounded bool
}

func (b deliveryBand) covers(miles float64) bool {
	if miles < b.lower {
		return false
	}
	return b.unbounded || miles <= b.upper
}

// parseDeliveryBand reads numeric bounds from labels such as "0-10 miles", "25+ miles",
// "Up to 10 miles" or "10". A single number without "+" is an upper bound starting at zero.
func parseDeliveryBand(r DeliveryRange) (deliveryBand, bool) {
	label := strings.TrimSpace(r.Range)
	matches := rangeNumberPattern.FindAllString(label, 2)
	if len(matches) == 0 {
		return deliveryBand{}, false
	}
	values := make([]float64, 0, len(matches))
	for _, m := range matches {
		v, err := strconv.ParseFloat(m, 64)
		if err != nil {
			return deliveryBand{}, false
		}
		values = append(values, v)
	}

	band := deliveryBand{label: label, fee: r.Fee}
	lowerLabel := strings.ToLower(label)
	switch {
	case len(values) == 2:
		band.lower = math.Min(values[0], values[1])
		band.upper = math.Max(values[0], values[1])
	case strings.Contains(label, "+") || strings.Contains(lowerLabel, "over") || strings.Contains(lowerLabel, "more than") || strings.Contains(lowerLabel, "beyond"):
		band.lower = values[0]
		band.unbounded = true
	default:
		band.upper = values[0]
	}
	return band, true
}

// CalculateDelivery evaluates delivery eligibility and fee for one service. It never fails:
// malformed options produce an ineligible quote with a reason. A nil distance is treated as
// unknown and the first valid band is used.
func CalculateDelivery(address string, options *DeliveryOptions, orderSubtotal float64, distanceMiles *float64) DeliveryQuote {
	quote := DeliveryQuote{Source: domain.DeliveryQuoteSourceLocal}

	if options == nil {
		quote.Reason = reasonNoDeliveryInfo
		return quote
	}
	if !options.Delivery {
		quote.Reason = reasonPickupOnly
		return quote
	}
	if strings.TrimSpace(address) == "" {
		quote.Reason = reasonAddressRequired
		return quote
	}
	if len(options.DeliveryRanges) == 0 {
		quote.Reason = reasonNoRanges
		return quote
	}

	bands := make([]deliveryBand, 0, len(options.DeliveryRanges))
	for _, r := range options.DeliveryRanges {
		if band, ok := parseDeliveryBand(r); ok {
			bands = append(bands, band)
		}
	}
	if len(bands) == 0 {
		quote.Reason = reasonNoValidRanges
		return quote
	}

	minimum := 0.0
	if options.DeliveryMinimum != nil && *options.DeliveryMinimum > 0 {
		minimum = *options.DeliveryMinimum
		required := minimum
		quote.MinimumRequired = &required
	}
	quote.MinimumEligible = orderSubtotal >= minimum

	var distanceReason string
	degraded := distanceMiles == nil || math.IsNaN(*distanceMiles)
	if degraded {
		quote.DistanceEligible = true
		quote.Fee = bands[0].fee
		quote.Range = bands[0].label
	} else {
		miles := math.Max(*distanceMiles, 0)
		matched := false
		for _, band := range bands {
			if band.covers(miles) {
				quote.DistanceEligible = true
				quote.Fee = band.fee
				quote.Range = band.label
				matched = true
				break
			}
		}
		if !matched {
			distanceReason = outOfRangeReason(bands, miles)
		}
	}

	quote.Eligible = quote.DistanceEligible && quote.MinimumEligible

	switch {
	case distanceReason != "":
		quote.Reason = distanceReason
	case !quote.MinimumEligible:
		quote.Reason = fmt.Sprintf("Minimum order of %s required for delivery (%s more needed)", formatDollars(minimum), formatDollars(minimum-orderSubtotal))
	case degraded:
		quote.Reason = reasonDistanceUnverified
	}
	return quote
}

func outOfRangeReason(bands []deliveryBand, miles float64) string {
	maxUpper := 0.0
	for _, band := range bands {
		if band.unbounded {
			return fmt.Sprintf("No delivery range covers %s miles", formatMiles(miles))
		}
		maxUpper = math.Max(maxUpper, band.upper)
	}
	if miles > maxUpper {
		return fmt.Sprintf("Delivery is not available beyond %s miles", formatMiles(maxUpper))
	}
	return fmt.Sprintf("No delivery range covers %s miles", formatMiles(miles))
}

func formatMiles(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatDollars(v float64) string {
	return fmt.Sprintf("$%.2f", v)
}
