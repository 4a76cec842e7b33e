package services

import (
	"context"

	domain "github.com/cateringhub/pricing/internal/domain"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	Service               = domain.Service
	ServiceType           = domain.ServiceType
	CatalogItem           = domain.CatalogItem
	DeliveryOptions       = domain.DeliveryOptions
	DeliveryRange         = domain.DeliveryRange
	DeliveryQuote         = domain.DeliveryQuote
	SelectedItems         = domain.SelectedItems
	CateringCharge        = domain.CateringCharge
	ComboCharge           = domain.ComboCharge
	ComboSelection        = domain.ComboSelection
	CateringLine          = domain.CateringLine
	CateringBreakdown     = domain.CateringBreakdown
	CateringSelection     = domain.CateringSelection
	TaxableLineItem       = domain.TaxableLineItem
	TaxCode               = domain.TaxCode
	Quote                 = domain.Quote
	SystemHealthReport    = domain.SystemHealthReport
	SystemHealthCheck     = domain.SystemHealthCheck
	PricingInput          = domain.PricingInput
	DeliveryQuoteSource   = domain.DeliveryQuoteSource
	RemoteDeliveryRequest = domain.RemoteDeliveryRequest
)

// RemoteDeliveryQuoter fetches a delivery quote from the remote delivery-fee API.
// Any failure is reported as an error; callers substitute the local computation.
type RemoteDeliveryQuoter interface {
	QuoteDelivery(ctx context.Context, req RemoteDeliveryRequest) (DeliveryQuote, error)
}

// TaxCalculator computes tax for a set of line items, with delivery sent as shipping cost.
type TaxCalculator interface {
	CalculateTax(ctx context.Context, req TaxCalculationRequest) (TaxQuote, error)
}

// TaxCalculationRequest carries line items and the shipping channel amount in cents.
type TaxCalculationRequest struct {
	Currency       string
	LineItems      []TaxableLineItem
	ShippingAmount int64
	Address        *TaxAddress
}

// TaxAddress is the customer address used for tax jurisdiction lookup.
type TaxAddress struct {
	Line1      string
	Line2      string
	City       string
	State      string
	PostalCode string
	Country    string
}

// TaxQuote is the tax provider's answer.
type TaxQuote struct {
	CalculationID string
	Amount        int64
	Breakdown     []TaxBreakdown
}

// TaxBreakdown captures an individual tax component returned by the tax calculator.
type TaxBreakdown struct {
	Name          string
	Jurisdiction  string
	Rate          float64
	Amount        int64
	TaxableAmount int64
}

// QuoteService prices a full order: catering breakdowns, delivery, tax line items and tax.
type QuoteService interface {
	Quote(ctx context.Context, cmd QuoteCommand) (Quote, error)
}

// SystemService exposes health reporting for the health endpoints.
type SystemService interface {
	HealthReport(ctx context.Context) (SystemHealthReport, error)
}
