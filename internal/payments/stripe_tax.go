package payments

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"

	domain "github.com/cateringhub/pricing/internal/domain"
	"github.com/cateringhub/pricing/internal/services"
)

// Stripe product tax codes for the provider-neutral categories.
const (
	stripeTaxCodeTangibleGoods = "txcd_99999999"
	stripeTaxCodeServices      = "txcd_20030000"
	stripeTaxCodeNontaxable    = "txcd_00000000"
)

// ErrTaxAddressRequired is returned when no customer address is available for jurisdiction lookup.
var ErrTaxAddressRequired = services.ErrTaxAddressRequired

// StripeLogger defines the logging contract for Stripe operations.
type StripeLogger func(ctx context.Context, event string, fields map[string]any)

type taxCalculationAPI interface {
	New(params *stripe.TaxCalculationParams) (*stripe.TaxCalculation, error)
}

// StripeTaxConfig configures the StripeTaxCalculator.
type StripeTaxConfig struct {
	APIKey    string
	AccountID string
	Backends  *stripe.Backends
	Logger    StripeLogger
	API       taxCalculationAPI
}

// StripeTaxCalculator computes tax with Stripe Tax calculations.
type StripeTaxCalculator struct {
	api     taxCalculationAPI
	account string
	logger  StripeLogger
}

var _ services.TaxCalculator = (*StripeTaxCalculator)(nil)

// NewStripeTaxCalculator constructs a calculator from an API key or an injected client.
func NewStripeTaxCalculator(cfg StripeTaxConfig) (*StripeTaxCalculator, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" && cfg.API == nil {
		return nil, errors.New("stripe tax: api key is required")
	}

	api := cfg.API
	if api == nil {
		sc := client.New(apiKey, cfg.Backends)
		api = sc.TaxCalculations
	}

	logger := cfg.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &StripeTaxCalculator{
		api:     api,
		account: strings.TrimSpace(cfg.AccountID),
		logger:  logger,
	}, nil
}

// CalculateTax sends line items as exclusive-tax amounts and the delivery fee as shipping cost.
func (c *StripeTaxCalculator) CalculateTax(ctx context.Context, req services.TaxCalculationRequest) (services.TaxQuote, error) {
	if c == nil {
		return services.TaxQuote{}, errors.New("stripe tax: calculator is nil")
	}
	if req.Address == nil || strings.TrimSpace(req.Address.Country) == "" {
		return services.TaxQuote{}, ErrTaxAddressRequired
	}
	currency := strings.ToLower(strings.TrimSpace(req.Currency))
	if currency == "" {
		return services.TaxQuote{}, errors.New("stripe tax: currency is required")
	}

	params := &stripe.TaxCalculationParams{
		Currency: stripe.String(currency),
		CustomerDetails: &stripe.TaxCalculationCustomerDetailsParams{
			Address:       taxAddressParams(req.Address),
			AddressSource: stripe.String("shipping"),
		},
	}
	params.Context = ctx
	if c.account != "" {
		params.SetStripeAccount(c.account)
	}

	for _, item := range req.LineItems {
		if item.Amount <= 0 {
			continue
		}
		params.LineItems = append(params.LineItems, &stripe.TaxCalculationLineItemParams{
			Amount:      stripe.Int64(item.Amount),
			Reference:   stripe.String(item.Reference),
			TaxCode:     stripe.String(StripeTaxCode(item.TaxCode)),
			TaxBehavior: stripe.String("exclusive"),
			Quantity:    stripe.Int64(1),
		})
	}
	if len(params.LineItems) == 0 {
		return services.TaxQuote{}, errors.New("stripe tax: no taxable line items")
	}
	if req.ShippingAmount > 0 {
		params.ShippingCost = &stripe.TaxCalculationShippingCostParams{
			Amount: stripe.Int64(req.ShippingAmount),
		}
	}

	calc, err := c.api.New(params)
	if err != nil {
		return services.TaxQuote{}, fmt.Errorf("stripe tax: create calculation: %w", err)
	}

	quote := services.TaxQuote{
		CalculationID: calc.ID,
		Amount:        calc.TaxAmountExclusive,
	}
	for _, b := range calc.TaxBreakdown {
		if b == nil {
			continue
		}
		breakdown := services.TaxBreakdown{
			Amount:        b.Amount,
			TaxableAmount: b.TaxableAmount,
		}
		if details := b.TaxRateDetails; details != nil {
			breakdown.Name = string(details.TaxType)
			breakdown.Jurisdiction = strings.Trim(details.Country+"-"+details.State, "-")
			if rate, err := strconv.ParseFloat(details.PercentageDecimal, 64); err == nil {
				breakdown.Rate = rate
			}
		}
		quote.Breakdown = append(quote.Breakdown, breakdown)
	}

	c.logger(ctx, "payments.stripe.tax.calculated", map[string]any{
		"calculationId": calc.ID,
		"lineItems":     len(params.LineItems),
		"shipping":      req.ShippingAmount,
		"tax":           quote.Amount,
	})
	return quote, nil
}

// StripeTaxCode maps a line item tax category to a Stripe product tax code. Untagged lines
// such as the service fee are sent as nontaxable.
func StripeTaxCode(code domain.TaxCode) string {
	switch code {
	case domain.TaxCodeTangibleGoods:
		return stripeTaxCodeTangibleGoods
	case domain.TaxCodeServices:
		return stripeTaxCodeServices
	default:
		return stripeTaxCodeNontaxable
	}
}

func taxAddressParams(addr *services.TaxAddress) *stripe.AddressParams {
	params := &stripe.AddressParams{
		Country: stripe.String(strings.ToUpper(strings.TrimSpace(addr.Country))),
	}
	setString := func(dst **string, value string) {
		if v := strings.TrimSpace(value); v != "" {
			*dst = stripe.String(v)
		}
	}
	setString(&params.Line1, addr.Line1)
	setString(&params.Line2, addr.Line2)
	setString(&params.City, addr.City)
	setString(&params.State, addr.State)
	setString(&params.PostalCode, addr.PostalCode)
	return params
}
