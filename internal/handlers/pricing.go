package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"

	domain "github.com/cateringhub/pricing/internal/domain"
	"github.com/cateringhub/pricing/internal/platform/httpx"
	"github.com/cateringhub/pricing/internal/platform/observability"
	"github.com/cateringhub/pricing/internal/services"
)

const maxPricingBodySize = 64 * 1024

var (
	errBodyTooLarge = errors.New("request body too large")
	errEmptyBody    = errors.New("request body is required")
)

// PricingHandlers exposes the pricing engine over HTTP.
type PricingHandlers struct {
	delivery *services.DeliveryResolver
	quotes   services.QuoteService
	maxBody  int64
}

// PricingOption customises PricingHandlers.
type PricingOption func(*PricingHandlers)

// WithPricingBodyLimit overrides the maximum accepted request body size in bytes.
func WithPricingBodyLimit(limit int64) PricingOption {
	return func(h *PricingHandlers) {
		if limit > 0 {
			h.maxBody = limit
		}
	}
}

// NewPricingHandlers constructs the pricing handlers. A nil resolver prices delivery locally.
func NewPricingHandlers(delivery *services.DeliveryResolver, quotes services.QuoteService, opts ...PricingOption) *PricingHandlers {
	h := &PricingHandlers{
		delivery: delivery,
		quotes:   quotes,
		maxBody:  maxPricingBodySize,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Routes wires the /pricing endpoints onto the provided router.
func (h *PricingHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/delivery", h.quoteDelivery)
	r.Post("/catering", h.priceCatering)
	r.Post("/line-items", h.buildLineItems)
	r.Post("/quote", h.quoteOrder)
}

func (h *PricingHandlers) quoteDelivery(w http.ResponseWriter, r *http.Request) {
	ctx, span := observability.StartSpan(r.Context(), "pricing.delivery")
	defer span.End()

	var req deliveryRequest
	if !h.decodeBody(ctx, w, r, &req) {
		return
	}
	if len(req.Service) == 0 {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "service is required", http.StatusBadRequest))
		return
	}
	svc, err := domain.DecodeService(req.Service)
	if err != nil {
		writeDecodeError(ctx, w, err)
		return
	}
	span.SetAttributes(attribute.String("pricing.service_type", string(svc.Type)))

	quote := h.delivery.Resolve(ctx, services.DeliveryQuoteCommand{
		Service:         svc,
		DeliveryAddress: req.DeliveryAddress,
		OrderSubtotal:   req.OrderSubtotal,
		DistanceMiles:   req.DistanceMiles,
	})
	httpx.WriteJSON(w, http.StatusOK, buildDeliveryQuotePayload(quote))
}

func (h *PricingHandlers) priceCatering(w http.ResponseWriter, r *http.Request) {
	ctx, span := observability.StartSpan(r.Context(), "pricing.catering")
	defer span.End()

	var req cateringRequest
	if !h.decodeBody(ctx, w, r, &req) {
		return
	}

	if len(req.Service) > 0 {
		svc, err := domain.DecodeService(req.Service)
		if err != nil {
			writeDecodeError(ctx, w, err)
			return
		}
		if svc.Type != domain.ServiceTypeCatering {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_service", fmt.Sprintf("service %s is not a catering service", svc.ID), http.StatusBadRequest))
			return
		}
		selections, err := domain.DecodeSelections(req.SelectedItems)
		if err != nil {
			writeDecodeError(ctx, w, err)
			return
		}
		selection := services.ExtractCateringItems(svc, selections, buildComboSelections(req.Combos))
		httpx.WriteJSON(w, http.StatusOK, buildCateringPayload(services.CalculateCateringSelection(selection, req.GuestCount)))
		return
	}

	charges := make([]services.CateringCharge, 0, len(req.AdditionalCharges))
	for _, c := range req.AdditionalCharges {
		charges = append(charges, services.CateringCharge{
			ItemID:           strings.TrimSpace(c.ItemID),
			Name:             strings.TrimSpace(c.Name),
			Quantity:         c.Quantity,
			UnitPrice:        c.UnitPrice,
			AdditionalCharge: c.AdditionalCharge,
			IsMenuItem:       c.IsMenuItem,
		})
	}
	combos := make([]services.ComboCharge, 0, len(req.ComboCharges))
	for _, c := range req.ComboCharges {
		combos = append(combos, services.ComboCharge{
			ItemID:           strings.TrimSpace(c.ItemID),
			CategoryID:       strings.TrimSpace(c.CategoryID),
			Category:         strings.TrimSpace(c.Category),
			Name:             strings.TrimSpace(c.Name),
			AdditionalCharge: c.AdditionalCharge,
			IsPremium:        c.IsPremium,
		})
	}
	breakdown := services.CalculateCateringPrice(req.BasePricePerPerson, charges, req.GuestCount, combos)
	httpx.WriteJSON(w, http.StatusOK, buildCateringPayload(breakdown))
}

func (h *PricingHandlers) buildLineItems(w http.ResponseWriter, r *http.Request) {
	ctx, span := observability.StartSpan(r.Context(), "pricing.line_items")
	defer span.End()

	var req lineItemsRequest
	if !h.decodeBody(ctx, w, r, &req) {
		return
	}
	svcs, err := domain.DecodeServices(req.Services)
	if err != nil {
		writeDecodeError(ctx, w, err)
		return
	}
	selections, err := domain.DecodeSelections(req.SelectedItems)
	if err != nil {
		writeDecodeError(ctx, w, err)
		return
	}

	items := services.BuildTaxLineItems(svcs, selections, req.ServiceFee, req.DeliveryFee, req.Adjustments)
	span.SetAttributes(attribute.Int("pricing.line_items", len(items)))
	httpx.WriteJSON(w, http.StatusOK, lineItemsResponse{
		LineItems: buildLineItemPayloads(items),
		Total:     services.LineItemsTotal(items),
	})
}

func (h *PricingHandlers) quoteOrder(w http.ResponseWriter, r *http.Request) {
	ctx, span := observability.StartSpan(r.Context(), "pricing.quote")
	defer span.End()

	if h.quotes == nil {
		httpx.WriteError(ctx, w, httpx.NewError("quote_service_unavailable", "quote service is unavailable", http.StatusServiceUnavailable))
		return
	}

	var req quoteRequest
	if !h.decodeBody(ctx, w, r, &req) {
		return
	}
	svcs, err := domain.DecodeServices(req.Services)
	if err != nil {
		writeDecodeError(ctx, w, err)
		return
	}
	selections, err := domain.DecodeSelections(req.SelectedItems)
	if err != nil {
		writeDecodeError(ctx, w, err)
		return
	}

	cmd := services.QuoteCommand{
		Services:        svcs,
		Selections:      selections,
		GuestCount:      req.GuestCount,
		Combos:          buildComboSelections(req.Combos),
		DeliveryAddress: req.DeliveryAddress,
		DistanceMiles:   req.DistanceMiles,
		ServiceFee:      req.ServiceFee,
		Adjustments:     req.Adjustments,
		Currency:        req.Currency,
		Metadata:        req.Metadata,
	}
	if req.Address != nil {
		cmd.Address = &services.TaxAddress{
			Line1:      req.Address.Line1,
			Line2:      req.Address.Line2,
			City:       req.Address.City,
			State:      req.Address.State,
			PostalCode: req.Address.PostalCode,
			Country:    req.Address.Country,
		}
	}

	quote, err := h.quotes.Quote(ctx, cmd)
	if err != nil {
		writeQuoteError(ctx, w, err)
		return
	}
	span.SetAttributes(attribute.String("pricing.quote_id", quote.ID), attribute.Int64("pricing.total", quote.Total))
	httpx.WriteJSON(w, http.StatusOK, buildQuotePayload(quote))
}

// decodeBody reads and unmarshals the request body, writing the error response itself.
func (h *PricingHandlers) decodeBody(ctx context.Context, w http.ResponseWriter, r *http.Request, dst any) bool {
	body, err := readLimitedBody(r, h.maxBody)
	if err != nil {
		switch {
		case errors.Is(err, errBodyTooLarge):
			httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body exceeds allowed size", http.StatusRequestEntityTooLarge))
		default:
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		}
		return false
	}
	if err := json.Unmarshal(body, dst); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", fmt.Sprintf("invalid JSON payload: %v", err), http.StatusBadRequest))
		return false
	}
	return true
}

func readLimitedBody(r *http.Request, limit int64) ([]byte, error) {
	if r == nil || r.Body == nil {
		return nil, errEmptyBody
	}
	if limit <= 0 {
		limit = maxPricingBodySize
	}
	reader := io.LimitReader(r.Body, limit+1)
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, errEmptyBody
	}
	if int64(len(data)) > limit {
		return nil, errBodyTooLarge
	}
	return data, nil
}

func writeDecodeError(ctx context.Context, w http.ResponseWriter, err error) {
	apiErr := httpx.NewError("invalid_service", err.Error(), http.StatusBadRequest)
	var decodeErr *domain.DecodeError
	if errors.As(err, &decodeErr) {
		apiErr = apiErr.WithField(decodeErr.Field)
	}
	httpx.WriteError(ctx, w, apiErr)
}

func writeQuoteError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrQuoteInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrQuoteTaxUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("tax_unavailable", "tax calculation is temporarily unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("quote_failed", "failed to compute quote", http.StatusInternalServerError))
	}
}

func buildComboSelections(combos []comboSelectionRequest) []services.ComboSelection {
	if len(combos) == 0 {
		return nil
	}
	out := make([]services.ComboSelection, 0, len(combos))
	for _, c := range combos {
		out = append(out, services.ComboSelection{
			ItemID:     strings.TrimSpace(c.ItemID),
			CategoryID: strings.TrimSpace(c.CategoryID),
			OptionIDs:  c.OptionIDs,
		})
	}
	return out
}

func buildDeliveryQuotePayload(q services.DeliveryQuote) deliveryQuotePayload {
	return deliveryQuotePayload{
		Fee:              q.Fee,
		Eligible:         q.Eligible,
		Range:            q.Range,
		Reason:           q.Reason,
		MinimumRequired:  q.MinimumRequired,
		DistanceEligible: q.DistanceEligible,
		MinimumEligible:  q.MinimumEligible,
		Source:           string(q.Source),
	}
}

func buildCateringPayload(b services.CateringBreakdown) cateringBreakdownPayload {
	lines := make([]cateringLinePayload, 0, len(b.AdditionalCharges))
	for _, line := range b.AdditionalCharges {
		lines = append(lines, cateringLinePayload{
			ItemID:           line.ItemID,
			Name:             line.Name,
			Category:         line.Category,
			Quantity:         line.Quantity,
			UnitPrice:        line.UnitPrice,
			AdditionalCharge: line.AdditionalCharge,
			IsMenuItem:       line.IsMenuItem,
			TotalPrice:       line.TotalPrice,
		})
	}
	return cateringBreakdownPayload{
		BasePricePerPerson:     b.BasePricePerPerson,
		GuestCount:             b.GuestCount,
		BasePriceTotal:         b.BasePriceTotal,
		AdditionalCharges:      lines,
		AdditionalChargesTotal: b.AdditionalChargesTotal,
		FinalTotal:             b.FinalTotal,
	}
}

func buildLineItemPayloads(items []services.TaxableLineItem) []lineItemPayload {
	out := make([]lineItemPayload, 0, len(items))
	for _, item := range items {
		payload := lineItemPayload{
			Amount:    item.Amount,
			Reference: item.Reference,
			TaxCode:   string(item.TaxCode),
		}
		if item.ProductData != nil {
			payload.ProductData = &productDataPayload{
				Name:        item.ProductData.Name,
				Description: item.ProductData.Description,
			}
		}
		out = append(out, payload)
	}
	return out
}

func buildQuotePayload(q services.Quote) quotePayload {
	payload := quotePayload{
		ID:               q.ID,
		Currency:         q.Currency,
		GuestCount:       q.GuestCount,
		LineItems:        buildLineItemPayloads(q.LineItems),
		ServicesSubtotal: q.ServicesSubtotal,
		ServiceFee:       q.ServiceFee,
		DeliveryFee:      q.DeliveryFee,
		Adjustments:      q.Adjustments,
		Tax:              q.Tax,
		Total:            q.Total,
		TaxCalculationID: q.TaxCalculationID,
		Metadata:         q.Metadata,
		CreatedAt:        q.CreatedAt.UTC().Format(time.RFC3339),
	}
	if len(q.Catering) > 0 {
		payload.Catering = make(map[string]cateringBreakdownPayload, len(q.Catering))
		for id, b := range q.Catering {
			payload.Catering[id] = buildCateringPayload(b)
		}
	}
	if len(q.Delivery) > 0 {
		payload.Delivery = make(map[string]deliveryQuotePayload, len(q.Delivery))
		for id, d := range q.Delivery {
			payload.Delivery[id] = buildDeliveryQuotePayload(d)
		}
	}
	return payload
}

type deliveryRequest struct {
	Service         map[string]any `json:"service"`
	DeliveryAddress string         `json:"deliveryAddress"`
	OrderSubtotal   float64        `json:"orderSubtotal"`
	DistanceMiles   *float64       `json:"distanceMiles"`
}

type comboSelectionRequest struct {
	ItemID     string   `json:"itemId"`
	CategoryID string   `json:"categoryId"`
	OptionIDs  []string `json:"optionIds"`
}

type cateringChargeRequest struct {
	ItemID           string  `json:"itemId"`
	Name             string  `json:"name"`
	Quantity         float64 `json:"quantity"`
	UnitPrice        float64 `json:"unitPrice"`
	AdditionalCharge float64 `json:"additionalCharge"`
	IsMenuItem       bool    `json:"isMenuItem"`
}

type comboChargeRequest struct {
	ItemID           string  `json:"itemId"`
	CategoryID       string  `json:"categoryId"`
	Category         string  `json:"category"`
	Name             string  `json:"name"`
	AdditionalCharge float64 `json:"additionalCharge"`
	IsPremium        bool    `json:"isPremium"`
}

type cateringRequest struct {
	Service            map[string]any          `json:"service"`
	SelectedItems      map[string]any          `json:"selectedItems"`
	Combos             []comboSelectionRequest `json:"combos"`
	GuestCount         int                     `json:"guestCount"`
	BasePricePerPerson float64                 `json:"basePricePerPerson"`
	AdditionalCharges  []cateringChargeRequest `json:"additionalCharges"`
	ComboCharges       []comboChargeRequest    `json:"comboCharges"`
}

type lineItemsRequest struct {
	Services      []map[string]any `json:"services"`
	SelectedItems map[string]any   `json:"selectedItems"`
	ServiceFee    float64          `json:"serviceFee"`
	DeliveryFee   float64          `json:"deliveryFee"`
	Adjustments   float64          `json:"adjustments"`
}

type addressRequest struct {
	Line1      string `json:"line1"`
	Line2      string `json:"line2"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
}

type quoteRequest struct {
	Services        []map[string]any        `json:"services"`
	SelectedItems   map[string]any          `json:"selectedItems"`
	GuestCount      int                     `json:"guestCount"`
	Combos          []comboSelectionRequest `json:"combos"`
	DeliveryAddress string                  `json:"deliveryAddress"`
	DistanceMiles   map[string]float64      `json:"distanceMiles"`
	ServiceFee      float64                 `json:"serviceFee"`
	Adjustments     float64                 `json:"adjustments"`
	Currency        string                  `json:"currency"`
	Address         *addressRequest         `json:"address"`
	Metadata        map[string]string       `json:"metadata"`
}

type deliveryQuotePayload struct {
	Fee              float64  `json:"fee"`
	Eligible         bool     `json:"eligible"`
	Range            string   `json:"range,omitempty"`
	Reason           string   `json:"reason,omitempty"`
	MinimumRequired  *float64 `json:"minimumRequired,omitempty"`
	DistanceEligible bool     `json:"distanceEligible"`
	MinimumEligible  bool     `json:"minimumEligible"`
	Source           string   `json:"source"`
}

type cateringLinePayload struct {
	ItemID           string  `json:"itemId"`
	Name             string  `json:"name"`
	Category         string  `json:"category,omitempty"`
	Quantity         float64 `json:"quantity"`
	UnitPrice        float64 `json:"unitPrice"`
	AdditionalCharge float64 `json:"additionalCharge"`
	IsMenuItem       bool    `json:"isMenuItem"`
	TotalPrice       float64 `json:"totalPrice"`
}

type cateringBreakdownPayload struct {
	BasePricePerPerson     float64               `json:"basePricePerPerson"`
	GuestCount             int                   `json:"guestCount"`
	BasePriceTotal         float64               `json:"basePriceTotal"`
	AdditionalCharges      []cateringLinePayload `json:"additionalCharges"`
	AdditionalChargesTotal float64               `json:"additionalChargesTotal"`
	FinalTotal             float64               `json:"finalTotal"`
}

type productDataPayload struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

type lineItemPayload struct {
	Amount      int64               `json:"amount"`
	Reference   string              `json:"reference"`
	TaxCode     string              `json:"taxCode,omitempty"`
	ProductData *productDataPayload `json:"productData,omitempty"`
}

type lineItemsResponse struct {
	LineItems []lineItemPayload `json:"lineItems"`
	Total     int64             `json:"total"`
}

type quotePayload struct {
	ID               string                              `json:"id"`
	Currency         string                              `json:"currency"`
	GuestCount       int                                 `json:"guestCount"`
	Catering         map[string]cateringBreakdownPayload `json:"catering,omitempty"`
	Delivery         map[string]deliveryQuotePayload     `json:"delivery,omitempty"`
	LineItems        []lineItemPayload                   `json:"lineItems"`
	ServicesSubtotal int64                               `json:"servicesSubtotal"`
	ServiceFee       int64                               `json:"serviceFee"`
	DeliveryFee      int64                               `json:"deliveryFee"`
	Adjustments      int64                               `json:"adjustments"`
	Tax              int64                               `json:"tax"`
	Total            int64                               `json:"total"`
	TaxCalculationID string                              `json:"taxCalculationId,omitempty"`
	Metadata         map[string]string                   `json:"metadata,omitempty"`
	CreatedAt        string                              `json:"createdAt"`
}
