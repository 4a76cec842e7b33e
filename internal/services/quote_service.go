package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/text/currency"

	domain "github.com/cateringhub/pricing/internal/domain"
	"github.com/cateringhub/pricing/internal/platform/textutil"
)

var (
	// ErrQuoteInvalidInput signals a malformed quote request.
	ErrQuoteInvalidInput = errors.New("quote: invalid input")
	// ErrQuoteTaxUnavailable is returned when the tax calculator fails.
	ErrQuoteTaxUnavailable = errors.New("quote: tax calculation unavailable")
	// ErrTaxAddressRequired is returned by tax calculators that cannot locate the customer.
	ErrTaxAddressRequired = errors.New("tax: customer address is required")
)

// QuoteServiceDeps wires collaborators for the quote service. Delivery and Tax are optional.
type QuoteServiceDeps struct {
	Delivery        *DeliveryResolver
	Tax             TaxCalculator
	DefaultCurrency string
	Clock           func() time.Time
	IDGenerator     func() string
	Logger          func(context.Context, string, map[string]any)
}

type quoteService struct {
	delivery *DeliveryResolver
	tax      TaxCalculator
	currency string
	now      func() time.Time
	newID    func() string
	logger   func(context.Context, string, map[string]any)
}

var _ QuoteService = (*quoteService)(nil)

// QuoteCommand carries one order to price. Amounts are in major currency units.
// DistanceMiles holds a precomputed distance per service id.
type QuoteCommand struct {
	Services        []Service
	Selections      SelectedItems
	GuestCount      int
	Combos          []ComboSelection
	DeliveryAddress string
	DistanceMiles   map[string]float64
	ServiceFee      float64
	Adjustments     float64
	Currency        string
	Address         *TaxAddress
	Metadata        map[string]string
}

// NewQuoteService constructs the order quote service.
func NewQuoteService(deps QuoteServiceDeps) (QuoteService, error) {
	defaultCurrency := strings.ToUpper(strings.TrimSpace(deps.DefaultCurrency))
	if defaultCurrency == "" {
		defaultCurrency = "USD"
	}
	if _, err := currency.ParseISO(defaultCurrency); err != nil {
		return nil, fmt.Errorf("quote service: invalid default currency %q: %w", defaultCurrency, err)
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return "qt_" + ulid.Make().String() }
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	resolver := deps.Delivery
	if resolver == nil {
		resolver = NewDeliveryResolver(DeliveryResolverDeps{Logger: logger})
	}

	return &quoteService{
		delivery: resolver,
		tax:      deps.Tax,
		currency: defaultCurrency,
		now:      func() time.Time { return clock().UTC() },
		newID:    idGen,
		logger:   logger,
	}, nil
}

// Quote runs catering pricing, line item construction, delivery resolution and tax for one order.
func (s *quoteService) Quote(ctx context.Context, cmd QuoteCommand) (Quote, error) {
	curr, err := s.validate(cmd)
	if err != nil {
		return Quote{}, err
	}

	services := cmd.Services

	quote := Quote{
		ID:         s.newID(),
		Currency:   curr,
		GuestCount: clampGuests(cmd.GuestCount),
		Metadata:   textutil.NormalizeStringMap(cmd.Metadata),
		CreatedAt:  s.now(),
	}

	// per-person catering bills its breakdown total as one line; other services are itemized
	raw := make([]TaxableLineItem, 0, len(services)+2)
	for _, svc := range services {
		if !isPerPersonCatering(svc) {
			raw = append(raw, serviceLineItems(svc, cmd.Selections)...)
			continue
		}
		breakdown := CalculateCateringSelection(ExtractCateringItems(svc, cmd.Selections, cmd.Combos), cmd.GuestCount)
		if quote.Catering == nil {
			quote.Catering = make(map[string]CateringBreakdown)
		}
		quote.Catering[svc.ID] = breakdown
		if line, ok := CateringLineItem(svc, breakdown); ok {
			raw = append(raw, line)
		}
	}
	raw = append(raw, feeLineItems(cmd.ServiceFee, cmd.Adjustments)...)

	items, dropped := ValidateLineItems(raw)
	for _, item := range dropped {
		s.logger(ctx, "quote.line_item_dropped", map[string]any{
			"quoteId":   quote.ID,
			"reference": item.Reference,
			"amount":    item.Amount,
		})
	}
	quote.LineItems = items

	for _, item := range items {
		switch item.Reference {
		case ServiceFeeReference, AdjustmentsReference:
			continue
		}
		quote.ServicesSubtotal += item.Amount
	}
	quote.ServiceFee = maxInt64(toCents(cmd.ServiceFee), 0)
	quote.Adjustments = toCents(cmd.Adjustments)

	if address := strings.TrimSpace(cmd.DeliveryAddress); address != "" {
		subtotal := float64(quote.ServicesSubtotal) / 100
		for _, svc := range services {
			if svc.Delivery == nil {
				continue
			}
			var distance *float64
			if miles, ok := cmd.DistanceMiles[svc.ID]; ok && !math.IsNaN(miles) {
				d := miles
				distance = &d
			}
			dq := s.delivery.Resolve(ctx, DeliveryQuoteCommand{
				Service:         svc,
				DeliveryAddress: address,
				OrderSubtotal:   subtotal,
				DistanceMiles:   distance,
			})
			if quote.Delivery == nil {
				quote.Delivery = make(map[string]DeliveryQuote)
			}
			quote.Delivery[svc.ID] = dq
			if dq.Eligible {
				quote.DeliveryFee += toCents(dq.Fee)
			}
		}
	}

	if s.tax != nil && len(items) > 0 {
		taxQuote, err := s.tax.CalculateTax(ctx, TaxCalculationRequest{
			Currency:       curr,
			LineItems:      items,
			ShippingAmount: quote.DeliveryFee,
			Address:        cmd.Address,
		})
		if err != nil {
			s.logger(ctx, "quote.tax_failed", map[string]any{
				"quoteId": quote.ID,
				"error":   err.Error(),
			})
			if errors.Is(err, ErrTaxAddressRequired) {
				return Quote{}, fmt.Errorf("%w: %w", ErrQuoteInvalidInput, err)
			}
			return Quote{}, fmt.Errorf("%w: %v", ErrQuoteTaxUnavailable, err)
		}
		quote.Tax = taxQuote.Amount
		quote.TaxCalculationID = taxQuote.CalculationID
	}

	quote.Total = quote.ServicesSubtotal + quote.ServiceFee + quote.DeliveryFee + quote.Adjustments + quote.Tax
	if quote.Total < 0 {
		quote.Total = 0
	}

	s.logger(ctx, "quote.computed", map[string]any{
		"quoteId":   quote.ID,
		"services":  len(services),
		"lineItems": len(items),
		"total":     quote.Total,
		"currency":  curr,
	})
	return quote, nil
}

func (s *quoteService) validate(cmd QuoteCommand) (string, error) {
	if len(cmd.Services) == 0 {
		return "", fmt.Errorf("%w: at least one service is required", ErrQuoteInvalidInput)
	}
	seen := make(map[string]struct{}, len(cmd.Services))
	for i, svc := range cmd.Services {
		id := strings.TrimSpace(svc.ID)
		if id == "" {
			return "", fmt.Errorf("%w: services[%d] id is required", ErrQuoteInvalidInput, i)
		}
		if _, dup := seen[id]; dup {
			return "", fmt.Errorf("%w: duplicate service %s", ErrQuoteInvalidInput, id)
		}
		seen[id] = struct{}{}
	}
	if cmd.ServiceFee < 0 || math.IsNaN(cmd.ServiceFee) || math.IsNaN(cmd.Adjustments) {
		return "", fmt.Errorf("%w: fees must be non-negative numbers", ErrQuoteInvalidInput)
	}

	curr := strings.ToUpper(strings.TrimSpace(cmd.Currency))
	if curr == "" {
		return s.currency, nil
	}
	unit, err := currency.ParseISO(curr)
	if err != nil {
		return "", fmt.Errorf("%w: unsupported currency %q", ErrQuoteInvalidInput, cmd.Currency)
	}
	return unit.String(), nil
}

func isPerPersonCatering(svc Service) bool {
	if svc.Type != domain.ServiceTypeCatering {
		return false
	}
	return domain.NormalizePricing(svc).PriceType == domain.PriceTypePerPerson
}

func clampGuests(guests int) int {
	if guests < 1 {
		return 1
	}
	return guests
}

func maxInt64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
