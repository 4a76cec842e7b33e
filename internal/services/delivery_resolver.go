package services

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	domain "github.com/cateringhub/pricing/internal/domain"
)

const deliveryMetricNamespace = "github.com/cateringhub/pricing/delivery"

// DeliveryResolverDeps wires the optional remote quoter and observability hooks.
type DeliveryResolverDeps struct {
	Remote RemoteDeliveryQuoter
	Meter  metric.Meter
	Logger func(context.Context, string, map[string]any)
}

// DeliveryResolver prefers the remote delivery-fee API and falls back to CalculateDelivery.
type DeliveryResolver struct {
	remote           RemoteDeliveryQuoter
	logger           func(context.Context, string, map[string]any)
	fallbacks        metric.Int64Counter
	fallbacksEnabled bool
}

// DeliveryQuoteCommand describes one service's delivery evaluation.
type DeliveryQuoteCommand struct {
	Service         Service
	DeliveryAddress string
	OrderSubtotal   float64
	DistanceMiles   *float64
}

// NewDeliveryResolver constructs a resolver. A nil Remote makes every call local.
func NewDeliveryResolver(deps DeliveryResolverDeps) *DeliveryResolver {
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	meter := deps.Meter
	if meter == nil {
		meter = otel.GetMeterProvider().Meter(deliveryMetricNamespace)
	}

	counter, err := meter.Int64Counter(
		"pricing.delivery.remote_fallbacks",
		metric.WithDescription("Count of delivery quotes computed locally after the remote API failed"),
	)
	if err != nil {
		logger(context.Background(), "delivery.metric_register_failed", map[string]any{"error": err.Error()})
	}

	return &DeliveryResolver{
		remote:           deps.Remote,
		logger:           logger,
		fallbacks:        counter,
		fallbacksEnabled: err == nil,
	}
}

// Resolve returns the remote quote when the API answers, otherwise the local computation.
// Remote failures are logged and counted, never returned. There is a single attempt per call.
func (r *DeliveryResolver) Resolve(ctx context.Context, cmd DeliveryQuoteCommand) DeliveryQuote {
	local := CalculateDelivery(cmd.DeliveryAddress, cmd.Service.Delivery, cmd.OrderSubtotal, cmd.DistanceMiles)
	if r == nil || r.remote == nil {
		return local
	}
	// Pickup-only and unconfigured services never reach the remote API.
	if cmd.Service.Delivery == nil || !cmd.Service.Delivery.Delivery || strings.TrimSpace(cmd.DeliveryAddress) == "" {
		return local
	}

	quote, err := r.remote.QuoteDelivery(ctx, RemoteDeliveryRequest{
		DeliveryAddress: strings.TrimSpace(cmd.DeliveryAddress),
		OrderSubtotal:   cmd.OrderSubtotal,
		ServiceID:       cmd.Service.ID,
		VendorID:        cmd.Service.VendorID,
		DistanceMiles:   cmd.DistanceMiles,
	})
	if err != nil {
		r.logger(ctx, "delivery.remote_fallback", map[string]any{
			"serviceId": cmd.Service.ID,
			"vendorId":  cmd.Service.VendorID,
			"error":     err.Error(),
		})
		if r.fallbacksEnabled {
			r.fallbacks.Add(ctx, 1, metric.WithAttributes(attribute.String("service_type", string(cmd.Service.Type))))
		}
		return local
	}

	quote.Source = domain.DeliveryQuoteSourceRemote
	return quote
}
