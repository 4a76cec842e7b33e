package services

import (
	"math"
	"reflect"
	"strings"
	"testing"

	domain "github.com/cateringhub/pricing/internal/domain"
)

func floatPtr(v float64) *float64 { return &v }

func standardDeliveryOptions() *DeliveryOptions {
	return &DeliveryOptions{
		Delivery: true,
		Pickup:   true,
		DeliveryRanges: []DeliveryRange{
			{Range: "0-10", Fee: 0},
			{Range: "10-25", Fee: 15},
		},
		DeliveryMinimum: floatPtr(200),
	}
}

func TestCalculateDeliveryMinimumShortfall(t *testing.T) {
	quote := CalculateDelivery("123 Main St", standardDeliveryOptions(), 150, floatPtr(18))

	if quote.Fee != 15 || quote.Range != "10-25" {
		t.Fatalf("expected 10-25 band with fee 15, got %+v", quote)
	}
	if !quote.DistanceEligible {
		t.Fatalf("expected distance eligible")
	}
	if quote.MinimumEligible || quote.Eligible {
		t.Fatalf("expected minimum shortfall to block delivery, got %+v", quote)
	}
	if quote.MinimumRequired == nil || *quote.MinimumRequired != 200 {
		t.Fatalf("expected minimum required 200, got %v", quote.MinimumRequired)
	}
	if !strings.Contains(quote.Reason, "$50.00 more needed") {
		t.Fatalf("unexpected reason %q", quote.Reason)
	}
	if quote.Source != domain.DeliveryQuoteSourceLocal {
		t.Fatalf("expected local source, got %s", quote.Source)
	}
}

func TestCalculateDeliveryEligibleWithinBand(t *testing.T) {
	quote := CalculateDelivery("123 Main St", standardDeliveryOptions(), 450, floatPtr(4.2))
	if !quote.Eligible || quote.Fee != 0 || quote.Range != "0-10" {
		t.Fatalf("expected free eligible delivery, got %+v", quote)
	}
	if quote.Reason != "" {
		t.Fatalf("expected empty reason, got %q", quote.Reason)
	}
}

func TestCalculateDeliveryBeyondAllRanges(t *testing.T) {
	quote := CalculateDelivery("123 Main St", standardDeliveryOptions(), 150, floatPtr(30))

	if quote.DistanceEligible || quote.Eligible {
		t.Fatalf("expected distance ineligible, got %+v", quote)
	}
	if quote.Fee != 0 || quote.Range != "" {
		t.Fatalf("expected no matched band, got fee=%v range=%q", quote.Fee, quote.Range)
	}
	if quote.Reason != "Delivery is not available beyond 25 miles" {
		t.Fatalf("distance reason should win over minimum, got %q", quote.Reason)
	}
	if quote.MinimumEligible {
		t.Fatalf("minimum check should still be evaluated independently")
	}
}

func TestCalculateDeliveryBoundaryBelongsToFirstBand(t *testing.T) {
	quote := CalculateDelivery("123 Main St", standardDeliveryOptions(), 300, floatPtr(10))
	if quote.Range != "0-10" || quote.Fee != 0 {
		t.Fatalf("expected boundary distance in first band, got %+v", quote)
	}

	quote = CalculateDelivery("123 Main St", standardDeliveryOptions(), 300, floatPtr(25))
	if quote.Range != "10-25" || !quote.DistanceEligible {
		t.Fatalf("expected upper bound to be inclusive, got %+v", quote)
	}
}

func TestCalculateDeliveryRangeLabels(t *testing.T) {
	options := &DeliveryOptions{
		Delivery: true,
		DeliveryRanges: []DeliveryRange{
			{Range: "Up to 5 miles", Fee: 5},
			{Range: "5 - 15 miles", Fee: 10},
			{Range: "15+ miles", Fee: 40},
		},
	}

	tests := []struct {
		miles     float64
		wantRange string
		wantFee   float64
	}{
		{miles: 0, wantRange: "Up to 5 miles", wantFee: 5},
		{miles: -3, wantRange: "Up to 5 miles", wantFee: 5},
		{miles: 12, wantRange: "5 - 15 miles", wantFee: 10},
		{miles: 80, wantRange: "15+ miles", wantFee: 40},
	}
	for _, tc := range tests {
		quote := CalculateDelivery("1 Elm", options, 0, floatPtr(tc.miles))
		if quote.Range != tc.wantRange || quote.Fee != tc.wantFee || !quote.Eligible {
			t.Fatalf("miles=%v: expected %s/%v, got %+v", tc.miles, tc.wantRange, tc.wantFee, quote)
		}
		if quote.MinimumRequired != nil {
			t.Fatalf("expected no minimum, got %v", *quote.MinimumRequired)
		}
	}
}

func TestCalculateDeliveryDegradedWithoutDistance(t *testing.T) {
	quote := CalculateDelivery("123 Main St", standardDeliveryOptions(), 500, nil)
	if !quote.Eligible || !quote.DistanceEligible {
		t.Fatalf("expected eligible in degraded mode, got %+v", quote)
	}
	if quote.Range != "0-10" {
		t.Fatalf("expected first band, got %q", quote.Range)
	}
	if quote.Reason != reasonDistanceUnverified {
		t.Fatalf("expected degraded notice, got %q", quote.Reason)
	}

	nan := math.NaN()
	quote = CalculateDelivery("123 Main St", standardDeliveryOptions(), 100, &nan)
	if quote.Eligible || !strings.HasPrefix(quote.Reason, "Minimum order of $200.00") {
		t.Fatalf("expected minimum reason to take precedence, got %+v", quote)
	}
}

func TestCalculateDeliveryIneligibleConfigurations(t *testing.T) {
	tests := []struct {
		name       string
		address    string
		options    *DeliveryOptions
		wantReason string
	}{
		{name: "missing options", address: "1 Elm", options: nil, wantReason: reasonNoDeliveryInfo},
		{name: "pickup only", address: "1 Elm", options: &DeliveryOptions{Pickup: true}, wantReason: reasonPickupOnly},
		{name: "blank address", address: "  ", options: standardDeliveryOptions(), wantReason: reasonAddressRequired},
		{name: "no ranges", address: "1 Elm", options: &DeliveryOptions{Delivery: true}, wantReason: reasonNoRanges},
		{
			name:       "unparseable ranges",
			address:    "1 Elm",
			options:    &DeliveryOptions{Delivery: true, DeliveryRanges: []DeliveryRange{{Range: "local area", Fee: 10}}},
			wantReason: reasonNoValidRanges,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			quote := CalculateDelivery(tc.address, tc.options, 1000, floatPtr(3))
			if quote.Eligible || quote.DistanceEligible || quote.Fee != 0 {
				t.Fatalf("expected ineligible quote, got %+v", quote)
			}
			if quote.Reason != tc.wantReason {
				t.Fatalf("expected reason %q, got %q", tc.wantReason, quote.Reason)
			}
		})
	}
}

func TestCalculateDeliveryIsDeterministic(t *testing.T) {
	first := CalculateDelivery("123 Main St", standardDeliveryOptions(), 150, floatPtr(18))
	second := CalculateDelivery("123 Main St", standardDeliveryOptions(), 150, floatPtr(18))
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("expected identical quotes, got %+v and %+v", first, second)
	}
}
