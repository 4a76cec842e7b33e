package services

import (
	"reflect"
	"testing"

	domain "github.com/cateringhub/pricing/internal/domain"
)

func TestTaxCodeForServiceType(t *testing.T) {
	tests := map[ServiceType]TaxCode{
		domain.ServiceTypeCatering:     domain.TaxCodeTangibleGoods,
		domain.ServiceTypePartyRentals: domain.TaxCodeTangibleGoods,
		domain.ServiceTypeStaff:        domain.TaxCodeServices,
		domain.ServiceTypeVenues:       domain.TaxCodeServices,
		"Catering":                     domain.TaxCodeTangibleGoods,
		"photography":                  domain.TaxCodeServices,
		"":                             domain.TaxCodeServices,
	}
	for serviceType, want := range tests {
		if got := TaxCodeForServiceType(serviceType); got != want {
			t.Fatalf("%q: expected %s, got %s", serviceType, want, got)
		}
	}
}

func rentalService() Service {
	minQty := 4.0
	return Service{
		ID:    "svc_rent",
		Name:  "Party Rentals",
		Type:  domain.ServiceTypePartyRentals,
		Price: 300,
		Details: domain.PartyRentalDetails{Items: []CatalogItem{
			{ID: "tables", Name: "<b>Banquet</b> Table", Price: 12.5, MinQuantity: &minQty},
			{ID: "chairs", Name: "Chair", Price: 3.335},
		}},
	}
}

func staffService() Service {
	return Service{
		ID:    "svc_staff",
		Name:  "Event Staff",
		Type:  domain.ServiceTypeStaff,
		Price: 35,
		Details: domain.StaffDetails{MinimumHours: 4, Services: []CatalogItem{
			{ID: "server", Name: "Server", Price: 30},
			{ID: "bartender", Name: "Bartender", Price: 45},
		}},
	}
}

func TestBuildTaxLineItemsMatchesSelections(t *testing.T) {
	items := BuildTaxLineItems([]Service{rentalService()}, SelectedItems{
		"svc_rent_tables": 2,
		"chairs":          10,
		"tents":           1,
		"chairs_duration": 3,
		"svc_rent_zero":   0,
	}, 0, 0, 0)

	want := []TaxableLineItem{
		{Amount: 3335, Reference: "svc_rent_chairs", TaxCode: domain.TaxCodeTangibleGoods, ProductData: &domain.ProductData{Name: "Chair"}},
		{Amount: 5000, Reference: "svc_rent_tables", TaxCode: domain.TaxCodeTangibleGoods, ProductData: &domain.ProductData{Name: "Banquet Table"}},
	}
	if !reflect.DeepEqual(items, want) {
		t.Fatalf("unexpected line items:\nwant %+v\ngot  %+v", want, items)
	}
}

func TestBuildTaxLineItemsStaffDuration(t *testing.T) {
	tests := []struct {
		name       string
		svc        func() Service
		selections SelectedItems
		want       []int64
	}{
		{
			name:       "selected duration",
			svc:        staffService,
			selections: SelectedItems{"server": 2, "server_duration": 6},
			want:       []int64{36000},
		},
		{
			name:       "duration floored at minimum hours",
			svc:        staffService,
			selections: SelectedItems{"svc_staff_bartender": 1, "svc_staff_bartender_duration": 2},
			want:       []int64{18000},
		},
		{
			name: "service duration before minimum",
			svc: func() Service {
				svc := staffService()
				hours := 5.0
				svc.Duration = &hours
				return svc
			},
			selections: SelectedItems{"server": 1},
			want:       []int64{15000},
		},
		{
			name:       "whole service fallback uses minimum hours",
			svc:        staffService,
			selections: SelectedItems{},
			want:       []int64{14000},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			items := BuildTaxLineItems([]Service{tc.svc()}, tc.selections, 0, 0, 0)
			if len(items) != len(tc.want) {
				t.Fatalf("expected %d items, got %+v", len(tc.want), items)
			}
			for i, amount := range tc.want {
				if items[i].Amount != amount {
					t.Fatalf("item %d: expected %d, got %d", i, amount, items[i].Amount)
				}
				if items[i].TaxCode != domain.TaxCodeServices {
					t.Fatalf("expected services tax code, got %s", items[i].TaxCode)
				}
			}
		})
	}
}

func TestBuildTaxLineItemsFeesAndFallback(t *testing.T) {
	venue := Service{ID: "svc_venue", Name: "Garden Hall", Type: domain.ServiceTypeVenues, Price: 1500}
	catering := Service{
		ID:       "svc_cater",
		Name:     "Taco Bar",
		Type:     domain.ServiceTypeCatering,
		Price:    25,
		Quantity: 40,
		Details:  domain.CateringDetails{MenuItems: []CatalogItem{{ID: "guac", Price: 2}}},
	}

	items := BuildTaxLineItems([]Service{venue, catering}, SelectedItems{"other_item": 1}, 49.995, 35, 10.25)

	if len(items) != 4 {
		t.Fatalf("expected 4 line items, got %+v", items)
	}
	if items[0].Reference != "svc_venue" || items[0].Amount != 150000 || items[0].TaxCode != domain.TaxCodeServices {
		t.Fatalf("unexpected venue fallback %+v", items[0])
	}
	if items[0].ProductData == nil || items[0].ProductData.Name != "Garden Hall" {
		t.Fatalf("expected product name, got %+v", items[0].ProductData)
	}
	if items[1].Reference != "svc_cater" || items[1].Amount != 100000 || items[1].TaxCode != domain.TaxCodeTangibleGoods {
		t.Fatalf("unexpected catering fallback %+v", items[1])
	}
	if items[2].Reference != ServiceFeeReference || items[2].Amount != 5000 || items[2].TaxCode != "" {
		t.Fatalf("expected untaxed service fee rounded half up, got %+v", items[2])
	}
	if items[3].Reference != AdjustmentsReference || items[3].Amount != 1025 || items[3].TaxCode != domain.TaxCodeTangibleGoods {
		t.Fatalf("unexpected adjustments line %+v", items[3])
	}

	// delivery is never a line item
	if got, want := LineItemsTotal(items), int64(150000+100000+5000+1025); got != want {
		t.Fatalf("expected total %d, got %d", want, got)
	}
}

func TestBuildTaxLineItemsSkipsZeroAmounts(t *testing.T) {
	free := Service{ID: "svc_free", Type: domain.ServiceTypeCatering}
	items := BuildTaxLineItems([]Service{free}, SelectedItems{"x": 1}, 0, 0, 0)
	if len(items) != 0 {
		t.Fatalf("expected no line items for zero-priced service, got %+v", items)
	}

	items = BuildTaxLineItems(nil, nil, 0, 12, -5)
	if len(items) != 0 {
		t.Fatalf("expected negative adjustments to be dropped, got %+v", items)
	}
}

func TestValidateLineItems(t *testing.T) {
	kept, dropped := ValidateLineItems([]TaxableLineItem{
		{Amount: 100, Reference: "ok"},
		{Amount: -1, Reference: "negative"},
		{Amount: 0, Reference: "zero"},
		{Amount: 10, Reference: " "},
	})
	if len(kept) != 2 || kept[0].Reference != "ok" || kept[1].Reference != "zero" {
		t.Fatalf("unexpected kept items %+v", kept)
	}
	if len(dropped) != 2 {
		t.Fatalf("expected 2 dropped items, got %+v", dropped)
	}
}

func TestToCentsRoundsHalfUp(t *testing.T) {
	tests := map[float64]int64{
		1.005:  101,
		2.675:  268,
		0.004:  0,
		19.99:  1999,
		-0.25:  -25,
		100.50: 10050,
	}
	for dollars, want := range tests {
		if got := toCents(dollars); got != want {
			t.Fatalf("toCents(%v): expected %d, got %d", dollars, want, got)
		}
	}
}

func TestBuildTaxLineItemsIsDeterministic(t *testing.T) {
	selections := SelectedItems{"tables": 5, "chairs": 20, "svc_staff_server": 2}
	first := BuildTaxLineItems([]Service{rentalService(), staffService()}, selections, 15, 0, 0)
	second := BuildTaxLineItems([]Service{rentalService(), staffService()}, selections, 15, 0, 0)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("expected identical output")
	}
}

func TestBuildTaxLineItemsCountsEachItemOnce(t *testing.T) {
	items := BuildTaxLineItems([]Service{rentalService()}, SelectedItems{
		"chairs":          4,
		"svc_rent_chairs": 10,
		"tables":          5,
	}, 0, 0, 0)

	want := []TaxableLineItem{
		{Amount: 3335, Reference: "svc_rent_chairs", TaxCode: domain.TaxCodeTangibleGoods, ProductData: &domain.ProductData{Name: "Chair"}},
		{Amount: 6250, Reference: "svc_rent_tables", TaxCode: domain.TaxCodeTangibleGoods, ProductData: &domain.ProductData{Name: "Banquet Table"}},
	}
	if !reflect.DeepEqual(items, want) {
		t.Fatalf("unexpected line items:\nwant %+v\ngot  %+v", want, items)
	}
}

func TestCateringLineItem(t *testing.T) {
	svc := cateringService()
	svc.Name = "Taco <i>Bar</i>"

	line, ok := CateringLineItem(svc, CateringBreakdown{FinalTotal: 1262.5})
	if !ok {
		t.Fatalf("expected a line for a priced breakdown")
	}
	if line.Amount != 126250 || line.Reference != "svc_cater" || line.TaxCode != domain.TaxCodeTangibleGoods {
		t.Fatalf("unexpected catering line %+v", line)
	}
	if line.ProductData == nil || line.ProductData.Name != "Taco Bar" {
		t.Fatalf("expected sanitized product name, got %+v", line.ProductData)
	}
	if _, ok := CateringLineItem(svc, CateringBreakdown{}); ok {
		t.Fatalf("expected no line for an empty breakdown")
	}
}
