package domain

// ServiceType identifies the marketplace category a service is listed under.
type ServiceType string

const (
	// ServiceTypeCatering covers food and beverage offerings priced per guest.
	ServiceTypeCatering ServiceType = "catering"
	// ServiceTypePartyRentals covers rentable inventory (tables, tents, linens).
	ServiceTypePartyRentals ServiceType = "party_rentals"
	// ServiceTypeStaff covers hourly event staff.
	ServiceTypeStaff ServiceType = "staff"
	// ServiceTypeVenues covers venue spaces and packages.
	ServiceTypeVenues ServiceType = "venues"
)

// PriceType describes the unit a service's base price is quoted in.
type PriceType string

const (
	PriceTypePerPerson PriceType = "per_person"
	PriceTypeFlatRate  PriceType = "flat_rate"
	PriceTypePerHour   PriceType = "per_hour"
	PriceTypePerDay    PriceType = "per_day"
	PriceTypePerItem   PriceType = "per_item"
)

// Service is a vendor listing as consumed by the pricing engine.
type Service struct {
	ID        string
	VendorID  string
	Name      string
	Type      ServiceType
	Price     float64
	PriceType PriceType
	Quantity  float64
	Duration  *float64
	Delivery  *DeliveryOptions
	Details   ServiceDetails
}

// ServiceDetails is the type-specific payload of a service. Implementations are
// CateringDetails, PartyRentalDetails, StaffDetails and VenueDetails.
type ServiceDetails interface {
	Kind() ServiceType
	Catalog() []CatalogItem
}

// CatalogItem is a selectable sub-item of a service (menu item, rental item,
// staff role, venue option).
type CatalogItem struct {
	ID               string
	Name             string
	Description      string
	Price            float64
	AdditionalCharge float64
	MinQuantity      *float64
	IsPremium        bool
	Customizable     bool
	Combo            bool
	ComboCategories  []ComboCategory
}

// HasComboData reports whether the item is configured as a combo with selectable options.
func (i CatalogItem) HasComboData() bool {
	return i.Customizable || i.Combo || len(i.ComboCategories) > 0
}

// ComboCategory is a named group of options with a selection cap.
type ComboCategory struct {
	ID            string
	Name          string
	MaxSelections int
	Items         []ComboOption
}

// ComboOption is a single choice inside a combo category.
type ComboOption struct {
	ID               string
	Name             string
	AdditionalCharge float64
	IsPremium        bool
}

// CateringDetails holds the menu of a catering service.
type CateringDetails struct {
	PricePerPerson float64
	MenuItems      []CatalogItem
}

func (d CateringDetails) Kind() ServiceType      { return ServiceTypeCatering }
func (d CateringDetails) Catalog() []CatalogItem { return d.MenuItems }

// PartyRentalDetails holds rentable inventory.
type PartyRentalDetails struct {
	Items []CatalogItem
}

func (d PartyRentalDetails) Kind() ServiceType      { return ServiceTypePartyRentals }
func (d PartyRentalDetails) Catalog() []CatalogItem { return d.Items }

// StaffDetails holds staff offerings and the booking minimum in hours.
type StaffDetails struct {
	MinimumHours float64
	Services     []CatalogItem
}

func (d StaffDetails) Kind() ServiceType      { return ServiceTypeStaff }
func (d StaffDetails) Catalog() []CatalogItem { return d.Services }

// VenueDetails holds bookable venue options.
type VenueDetails struct {
	Options []CatalogItem
}

func (d VenueDetails) Kind() ServiceType      { return ServiceTypeVenues }
func (d VenueDetails) Catalog() []CatalogItem { return d.Options }

// PricingInput is the normalized pricing configuration of one service.
type PricingInput struct {
	ServiceID    string
	Type         ServiceType
	BasePrice    float64
	PriceType    PriceType
	Quantity     float64
	Duration     *float64
	MinimumHours float64
	Catalog      []CatalogItem
}

// NormalizePricing flattens a service and its details variant into a PricingInput.
func NormalizePricing(s Service) PricingInput {
	input := PricingInput{
		ServiceID: s.ID,
		Type:      s.Type,
		BasePrice: s.Price,
		PriceType: s.PriceType,
		Quantity:  s.Quantity,
		Duration:  s.Duration,
	}
	switch d := s.Details.(type) {
	case CateringDetails:
		return cateringPricing(input, d)
	case *CateringDetails:
		if d != nil {
			return cateringPricing(input, *d)
		}
	case PartyRentalDetails:
		input.Catalog = d.Items
	case *PartyRentalDetails:
		if d != nil {
			input.Catalog = d.Items
		}
	case StaffDetails:
		return staffPricing(input, d)
	case *StaffDetails:
		if d != nil {
			return staffPricing(input, *d)
		}
	case VenueDetails:
		input.Catalog = d.Options
	case *VenueDetails:
		if d != nil {
			input.Catalog = d.Options
		}
	}
	return input
}

func cateringPricing(input PricingInput, d CateringDetails) PricingInput {
	if d.PricePerPerson > 0 {
		input.BasePrice = d.PricePerPerson
	}
	if input.PriceType == "" {
		input.PriceType = PriceTypePerPerson
	}
	input.Catalog = d.MenuItems
	return input
}

func staffPricing(input PricingInput, d StaffDetails) PricingInput {
	if d.MinimumHours > 0 {
		input.MinimumHours = d.MinimumHours
	}
	if input.PriceType == "" {
		input.PriceType = PriceTypePerHour
	}
	input.Catalog = d.Services
	return input
}
