package domain

// DeliveryRange is a distance band with a flat delivery fee, e.g. {"0-10 miles", 0}.
type DeliveryRange struct {
	Range string
	Fee   float64
}

// DeliveryOptions describes a service's delivery capability. Delivery=false means pickup only.
type DeliveryOptions struct {
	Delivery        bool
	Pickup          bool
	DeliveryRanges  []DeliveryRange
	DeliveryMinimum *float64
}

// DeliveryQuoteSource records which path produced a delivery quote.
type DeliveryQuoteSource string

const (
	DeliveryQuoteSourceLocal  DeliveryQuoteSource = "local"
	DeliveryQuoteSourceRemote DeliveryQuoteSource = "remote"
)

// DeliveryQuote is the outcome of a delivery eligibility evaluation.
type DeliveryQuote struct {
	Fee              float64
	Eligible         bool
	Range            string
	Reason           string
	MinimumRequired  *float64
	DistanceEligible bool
	MinimumEligible  bool
	Source           DeliveryQuoteSource
}

// RemoteDeliveryRequest is the payload sent to the remote delivery-fee API.
type RemoteDeliveryRequest struct {
	DeliveryAddress string
	OrderSubtotal   float64
	ServiceID       string
	VendorID        string
	DistanceMiles   *float64
}

// SelectedItems maps an item key to the selected quantity. Keys may be
// "serviceId_itemId", a bare "itemId", or "itemKey_duration" for time-based items.
type SelectedItems map[string]float64

// CateringCharge is a pre-bucketed base or additional item fed to the catering calculator.
type CateringCharge struct {
	ItemID           string
	Name             string
	Quantity         float64
	UnitPrice        float64
	AdditionalCharge float64
	IsMenuItem       bool
}

// ComboCharge is a selected combo option with its per-guest upcharge.
type ComboCharge struct {
	ItemID           string
	CategoryID       string
	Category         string
	Name             string
	AdditionalCharge float64
	IsPremium        bool
}

// CateringLine is a priced additional charge in a catering breakdown.
type CateringLine struct {
	ItemID           string
	Name             string
	Category         string
	Quantity         float64
	UnitPrice        float64
	AdditionalCharge float64
	IsMenuItem       bool
	TotalPrice       float64
}

// CateringBreakdown is the priced result of a catering order.
type CateringBreakdown struct {
	BasePricePerPerson     float64
	GuestCount             int
	BasePriceTotal         float64
	AdditionalCharges      []CateringLine
	AdditionalChargesTotal float64
	FinalTotal             float64
}

// TaxCode is the provider-neutral tax category of a line item.
type TaxCode string

const (
	TaxCodeTangibleGoods TaxCode = "general-tangible-goods"
	TaxCodeServices      TaxCode = "general-services"
)

// ProductData carries the display name of a line item for the tax provider.
type ProductData struct {
	Name        string
	Description string
}

// TaxableLineItem is one charge unit sent to tax calculation. Amount is in cents.
// An empty TaxCode means the line is not taxed.
type TaxableLineItem struct {
	Amount      int64
	Reference   string
	TaxCode     TaxCode
	ProductData *ProductData
}
