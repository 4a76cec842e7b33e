package payments

import (
	"context"
	"errors"
	"testing"

	"github.com/stripe/stripe-go/v78"

	domain "github.com/cateringhub/pricing/internal/domain"
	"github.com/cateringhub/pricing/internal/services"
)

type fakeTaxCalculationAPI struct {
	params *stripe.TaxCalculationParams
	result *stripe.TaxCalculation
	err    error
}

func (f *fakeTaxCalculationAPI) New(params *stripe.TaxCalculationParams) (*stripe.TaxCalculation, error) {
	f.params = params
	return f.result, f.err
}

func taxRequest() services.TaxCalculationRequest {
	return services.TaxCalculationRequest{
		Currency: "USD",
		LineItems: []domain.TaxableLineItem{
			{Amount: 100000, Reference: "svc_cater", TaxCode: domain.TaxCodeTangibleGoods},
			{Amount: 14000, Reference: "svc_staff", TaxCode: domain.TaxCodeServices},
			{Amount: 5000, Reference: services.ServiceFeeReference},
			{Amount: 0, Reference: "svc_free", TaxCode: domain.TaxCodeServices},
		},
		ShippingAmount: 1500,
		Address:        &services.TaxAddress{Line1: "1 Elm St", City: "Austin", State: "TX", PostalCode: "78701", Country: "us"},
	}
}

func TestStripeTaxCalculatorBuildsCalculation(t *testing.T) {
	api := &fakeTaxCalculationAPI{result: &stripe.TaxCalculation{
		ID:                 "taxcalc_123",
		TaxAmountExclusive: 9281,
		TaxBreakdown: []*stripe.TaxCalculationTaxBreakdown{
			{
				Amount:        9281,
				TaxableAmount: 112500,
				TaxRateDetails: &stripe.TaxCalculationTaxBreakdownTaxRateDetails{
					Country:           "US",
					State:             "TX",
					PercentageDecimal: "8.25",
					TaxType:           "sales_tax",
				},
			},
		},
	}}
	var events []string
	calc, err := NewStripeTaxCalculator(StripeTaxConfig{
		API:    api,
		Logger: func(_ context.Context, event string, _ map[string]any) { events = append(events, event) },
	})
	if err != nil {
		t.Fatalf("NewStripeTaxCalculator: %v", err)
	}

	quote, err := calc.CalculateTax(context.Background(), taxRequest())
	if err != nil {
		t.Fatalf("CalculateTax: %v", err)
	}
	if quote.CalculationID != "taxcalc_123" || quote.Amount != 9281 {
		t.Fatalf("unexpected quote %+v", quote)
	}
	if len(quote.Breakdown) != 1 || quote.Breakdown[0].Rate != 8.25 || quote.Breakdown[0].Jurisdiction != "US-TX" {
		t.Fatalf("unexpected breakdown %+v", quote.Breakdown)
	}

	params := api.params
	if params == nil {
		t.Fatalf("expected calculation params")
	}
	if *params.Currency != "usd" {
		t.Fatalf("expected lower-case currency, got %s", *params.Currency)
	}
	if len(params.LineItems) != 3 {
		t.Fatalf("expected zero-amount line to be skipped, got %d items", len(params.LineItems))
	}
	wantCodes := []string{stripeTaxCodeTangibleGoods, stripeTaxCodeServices, stripeTaxCodeNontaxable}
	for i, item := range params.LineItems {
		if *item.TaxCode != wantCodes[i] {
			t.Fatalf("item %d: expected tax code %s, got %s", i, wantCodes[i], *item.TaxCode)
		}
	}
	if params.ShippingCost == nil || *params.ShippingCost.Amount != 1500 {
		t.Fatalf("expected delivery as shipping cost, got %+v", params.ShippingCost)
	}
	addr := params.CustomerDetails.Address
	if *addr.Country != "US" || *addr.PostalCode != "78701" || addr.Line2 != nil {
		t.Fatalf("unexpected address params %+v", addr)
	}
	if len(events) != 1 || events[0] != "payments.stripe.tax.calculated" {
		t.Fatalf("expected calculation log event, got %v", events)
	}
}

func TestStripeTaxCalculatorErrors(t *testing.T) {
	api := &fakeTaxCalculationAPI{err: errors.New("rate limited")}
	calc, err := NewStripeTaxCalculator(StripeTaxConfig{API: api})
	if err != nil {
		t.Fatalf("NewStripeTaxCalculator: %v", err)
	}

	if _, err := calc.CalculateTax(context.Background(), services.TaxCalculationRequest{Currency: "USD"}); !errors.Is(err, services.ErrTaxAddressRequired) {
		t.Fatalf("expected ErrTaxAddressRequired, got %v", err)
	}

	req := taxRequest()
	if _, err := calc.CalculateTax(context.Background(), req); err == nil || !errors.Is(err, api.err) {
		t.Fatalf("expected wrapped api error, got %v", err)
	}

	req.LineItems = []domain.TaxableLineItem{{Amount: 0, Reference: "x"}}
	if _, err := calc.CalculateTax(context.Background(), req); err == nil {
		t.Fatalf("expected error without taxable line items")
	}
}

func TestNewStripeTaxCalculatorRequiresKey(t *testing.T) {
	if _, err := NewStripeTaxCalculator(StripeTaxConfig{APIKey: "  "}); err == nil {
		t.Fatalf("expected error without api key")
	}
}

func TestStripeTaxCode(t *testing.T) {
	if StripeTaxCode(domain.TaxCodeTangibleGoods) != "txcd_99999999" {
		t.Fatalf("unexpected tangible goods code")
	}
	if StripeTaxCode(domain.TaxCodeServices) != "txcd_20030000" {
		t.Fatalf("unexpected services code")
	}
	if StripeTaxCode("") != "txcd_00000000" {
		t.Fatalf("expected nontaxable code for untagged lines")
	}
}
