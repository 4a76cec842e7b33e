package domain

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/cast"
)

// ErrMissingServiceID is returned when a raw service record carries no identifier.
var ErrMissingServiceID = errors.New("service record: id is required")

// DecodeError reports a raw service record field that could not be decoded.
type DecodeError struct {
	Field string
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s: %v", e.Field, e.Err)
}

// Unwrap exposes the underlying error.
func (e *DecodeError) Unwrap() error { return e.Err }

// Details and catalog field names probed per service type, in priority order.
// Keys are folded (lower case, underscores removed) before lookup.
var (
	detailsKeys = map[ServiceType][]string{
		ServiceTypeCatering:     {"catering", "cateringdetails", "details"},
		ServiceTypePartyRentals: {"rentals", "partyrentals", "rentaldetails", "details"},
		ServiceTypeStaff:        {"staff", "staffdetails", "details"},
		ServiceTypeVenues:       {"venue", "venuedetails", "details"},
	}
	catalogKeys = map[ServiceType][]string{
		ServiceTypeCatering:     {"menuitems", "items", "menu"},
		ServiceTypePartyRentals: {"items", "rentalitems", "inventory"},
		ServiceTypeStaff:        {"services", "staffservices", "roles"},
		ServiceTypeVenues:       {"options", "venueoptions", "packages"},
	}
	serviceTypeAliases = map[string]ServiceType{
		"catering":      ServiceTypeCatering,
		"caterer":       ServiceTypeCatering,
		"party_rentals": ServiceTypePartyRentals,
		"party-rentals": ServiceTypePartyRentals,
		"party_rental":  ServiceTypePartyRentals,
		"rentals":       ServiceTypePartyRentals,
		"staff":         ServiceTypeStaff,
		"staffing":      ServiceTypeStaff,
		"venues":        ServiceTypeVenues,
		"venue":         ServiceTypeVenues,
	}
)

type serviceRecord struct {
	ID        string   `mapstructure:"id"`
	VendorID  string   `mapstructure:"vendorid"`
	Name      string   `mapstructure:"name"`
	Type      string   `mapstructure:"type"`
	Price     float64  `mapstructure:"price"`
	PriceType string   `mapstructure:"pricetype"`
	Quantity  float64  `mapstructure:"quantity"`
	Duration  *float64 `mapstructure:"duration"`
}

type deliveryRecord struct {
	Delivery        bool                  `mapstructure:"delivery"`
	Pickup          bool                  `mapstructure:"pickup"`
	DeliveryRanges  []deliveryRangeRecord `mapstructure:"deliveryranges"`
	DeliveryMinimum *float64              `mapstructure:"deliveryminimum"`
}

type deliveryRangeRecord struct {
	Range string  `mapstructure:"range"`
	Fee   float64 `mapstructure:"fee"`
}

type catalogItemRecord struct {
	ID               string                `mapstructure:"id"`
	Name             string                `mapstructure:"name"`
	Description      string                `mapstructure:"description"`
	Price            float64               `mapstructure:"price"`
	AdditionalCharge float64               `mapstructure:"additionalcharge"`
	MinQuantity      *float64              `mapstructure:"minquantity"`
	IsPremium        bool                  `mapstructure:"ispremium"`
	Customizable     bool                  `mapstructure:"customizable"`
	Combo            bool                  `mapstructure:"combo"`
	ComboCategories  []comboCategoryRecord `mapstructure:"combocategories"`
}

type comboCategoryRecord struct {
	ID            string              `mapstructure:"id"`
	Name          string              `mapstructure:"name"`
	MaxSelections int                 `mapstructure:"maxselections"`
	Items         []comboOptionRecord `mapstructure:"items"`
}

type comboOptionRecord struct {
	ID               string  `mapstructure:"id"`
	Name             string  `mapstructure:"name"`
	AdditionalCharge float64 `mapstructure:"additionalcharge"`
	IsPremium        bool    `mapstructure:"ispremium"`
}

// DecodeService converts a loosely typed service record (as read from JSON) into a Service
// with a typed details variant. Numeric fields accept numbers or strings such as "$1,200.50".
func DecodeService(raw map[string]any) (Service, error) {
	if len(raw) == 0 {
		return Service{}, ErrMissingServiceID
	}
	record := foldKeys(raw)
	aliasKeys(record, "vendorid", "vendor", "providerid")
	aliasKeys(record, "price", "baseprice", "rate")
	aliasKeys(record, "type", "servicetype", "category")

	var base serviceRecord
	if err := decodeInto("service", record, &base); err != nil {
		return Service{}, err
	}
	base.ID = strings.TrimSpace(base.ID)
	if base.ID == "" {
		return Service{}, ErrMissingServiceID
	}

	svc := Service{
		ID:        base.ID,
		VendorID:  strings.TrimSpace(base.VendorID),
		Name:      strings.TrimSpace(base.Name),
		Type:      normalizeServiceType(base.Type),
		Price:     base.Price,
		PriceType: PriceType(strings.ToLower(strings.TrimSpace(base.PriceType))),
		Quantity:  base.Quantity,
		Duration:  base.Duration,
	}

	details := detailsSource(record, svc.Type)

	delivery, err := decodeDelivery(record, details)
	if err != nil {
		return Service{}, err
	}
	svc.Delivery = delivery

	variant, err := decodeDetails(svc.Type, details)
	if err != nil {
		return Service{}, err
	}
	svc.Details = variant
	return svc, nil
}

// DecodeServices decodes a batch of records, stopping at the first failure. The returned
// *DecodeError's Field is indexed, e.g. "services[1]" or "services[1].menuitems".
func DecodeServices(raw []map[string]any) ([]Service, error) {
	out := make([]Service, 0, len(raw))
	for i, record := range raw {
		svc, err := DecodeService(record)
		if err != nil {
			path := fmt.Sprintf("services[%d]", i)
			var inner *DecodeError
			if errors.As(err, &inner) {
				if inner.Field != "service" {
					path += "." + inner.Field
				}
				err = inner.Err
			}
			return nil, &DecodeError{Field: path, Err: err}
		}
		out = append(out, svc)
	}
	return out, nil
}

// DecodeSelections converts loosely typed selection quantities ("2", 2, 2.5) into SelectedItems.
// Keys are kept verbatim; non-positive quantities are dropped.
func DecodeSelections(raw map[string]any) (SelectedItems, error) {
	out := make(SelectedItems, len(raw))
	for key, value := range raw {
		trimmed := strings.TrimSpace(key)
		if trimmed == "" {
			continue
		}
		qty, err := cast.ToFloat64E(value)
		if err != nil {
			return nil, &DecodeError{Field: "selectedItems." + trimmed, Err: err}
		}
		if qty <= 0 {
			continue
		}
		out[trimmed] = qty
	}
	return out, nil
}

func normalizeServiceType(value string) ServiceType {
	key := strings.ToLower(strings.TrimSpace(value))
	if t, ok := serviceTypeAliases[key]; ok {
		return t
	}
	return ServiceType(key)
}

func detailsSource(record map[string]any, t ServiceType) map[string]any {
	for _, key := range detailsKeys[t] {
		if nested := foldKeys(record[key]); nested != nil {
			return nested
		}
	}
	return record
}

func decodeDelivery(record, details map[string]any) (*DeliveryOptions, error) {
	var source map[string]any
	for _, candidate := range []map[string]any{record, details} {
		if nested := foldKeys(candidate["deliveryoptions"]); nested != nil {
			source = nested
			break
		}
	}
	if source == nil {
		return nil, nil
	}
	aliasKeys(source, "deliveryranges", "ranges", "deliveryzones")
	aliasKeys(source, "deliveryminimum", "minimum", "minimumorder")
	source["deliveryranges"] = foldList(source["deliveryranges"])

	var rec deliveryRecord
	if err := decodeInto("deliveryOptions", source, &rec); err != nil {
		return nil, err
	}
	opts := &DeliveryOptions{
		Delivery:        rec.Delivery,
		Pickup:          rec.Pickup,
		DeliveryMinimum: rec.DeliveryMinimum,
	}
	for _, r := range rec.DeliveryRanges {
		opts.DeliveryRanges = append(opts.DeliveryRanges, DeliveryRange{Range: strings.TrimSpace(r.Range), Fee: r.Fee})
	}
	return opts, nil
}

func decodeDetails(t ServiceType, details map[string]any) (ServiceDetails, error) {
	keys, known := catalogKeys[t]
	if !known {
		return nil, nil
	}
	catalog, err := decodeCatalog(details, keys)
	if err != nil {
		return nil, err
	}

	switch t {
	case ServiceTypeCatering:
		aliasKeys(details, "priceperperson", "baseprice", "perperson")
		price, err := floatField(details, "priceperperson")
		if err != nil {
			return nil, err
		}
		return CateringDetails{PricePerPerson: price, MenuItems: catalog}, nil
	case ServiceTypePartyRentals:
		return PartyRentalDetails{Items: catalog}, nil
	case ServiceTypeStaff:
		aliasKeys(details, "minimumhours", "minhours", "minimumduration")
		hours, err := floatField(details, "minimumhours")
		if err != nil {
			return nil, err
		}
		return StaffDetails{MinimumHours: hours, Services: catalog}, nil
	case ServiceTypeVenues:
		return VenueDetails{Options: catalog}, nil
	}
	return nil, nil
}

func decodeCatalog(details map[string]any, keys []string) ([]CatalogItem, error) {
	var raw any
	for _, key := range keys {
		if value, ok := details[key]; ok && value != nil {
			raw = value
			break
		}
	}
	entries := catalogEntries(raw)
	if len(entries) == 0 {
		return nil, nil
	}

	items := make([]CatalogItem, 0, len(entries))
	for i, entry := range entries {
		aliasKeys(entry, "id", "itemid", "key")
		aliasKeys(entry, "price", "unitprice", "priceperunit", "hourlyrate", "rate")
		aliasKeys(entry, "additionalcharge", "upcharge", "extracharge")
		aliasKeys(entry, "minquantity", "minimumquantity", "minqty")
		aliasKeys(entry, "ispremium", "premium")
		aliasKeys(entry, "combo", "iscombo")
		if _, ok := entry["combocategories"]; !ok {
			for _, alt := range []string{"categories", "options"} {
				if list, ok := entry[alt].([]any); ok && isObjectList(list) {
					entry["combocategories"] = list
					break
				}
			}
		}
		if cats, ok := entry["combocategories"].([]any); ok {
			folded := make([]any, 0, len(cats))
			for _, c := range cats {
				cat := foldKeys(c)
				if cat == nil {
					continue
				}
				aliasKeys(cat, "maxselections", "maxselection", "max", "limit")
				aliasKeys(cat, "items", "options", "choices")
				opts := foldList(cat["items"])
				for _, o := range opts {
					if opt, ok := o.(map[string]any); ok {
						aliasKeys(opt, "additionalcharge", "upcharge", "price")
						aliasKeys(opt, "ispremium", "premium")
					}
				}
				cat["items"] = opts
				folded = append(folded, cat)
			}
			entry["combocategories"] = folded
		}

		var rec catalogItemRecord
		if err := decodeInto(fmt.Sprintf("catalog[%d]", i), entry, &rec); err != nil {
			return nil, err
		}
		item := CatalogItem{
			ID:               strings.TrimSpace(rec.ID),
			Name:             strings.TrimSpace(rec.Name),
			Description:      strings.TrimSpace(rec.Description),
			Price:            rec.Price,
			AdditionalCharge: rec.AdditionalCharge,
			MinQuantity:      rec.MinQuantity,
			IsPremium:        rec.IsPremium,
			Customizable:     rec.Customizable,
			Combo:            rec.Combo,
		}
		if item.ID == "" {
			item.ID = item.Name
		}
		if item.ID == "" {
			continue
		}
		for _, cat := range rec.ComboCategories {
			category := ComboCategory{
				ID:            strings.TrimSpace(cat.ID),
				Name:          strings.TrimSpace(cat.Name),
				MaxSelections: cat.MaxSelections,
			}
			if category.ID == "" {
				category.ID = category.Name
			}
			for _, opt := range cat.Items {
				option := ComboOption{
					ID:               strings.TrimSpace(opt.ID),
					Name:             strings.TrimSpace(opt.Name),
					AdditionalCharge: opt.AdditionalCharge,
					IsPremium:        opt.IsPremium,
				}
				if option.ID == "" {
					option.ID = option.Name
				}
				category.Items = append(category.Items, option)
			}
			item.ComboCategories = append(item.ComboCategories, category)
		}
		items = append(items, item)
	}
	return items, nil
}

// catalogEntries accepts a list of item objects, a list of names, or an object keyed by item id.
func catalogEntries(raw any) []map[string]any {
	switch v := raw.(type) {
	case []any:
		out := make([]map[string]any, 0, len(v))
		for _, elem := range v {
			switch e := elem.(type) {
			case map[string]any, map[any]any:
				out = append(out, foldKeys(e))
			case string:
				if name := strings.TrimSpace(e); name != "" {
					out = append(out, map[string]any{"id": name, "name": name})
				}
			}
		}
		return out
	case map[string]any:
		keys := make([]string, 0, len(v))
		for key := range v {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		out := make([]map[string]any, 0, len(v))
		for _, key := range keys {
			switch e := v[key].(type) {
			case map[string]any, map[any]any:
				entry := foldKeys(e)
				if _, ok := entry["id"]; !ok {
					entry["id"] = key
				}
				out = append(out, entry)
			default:
				if price, err := cast.ToFloat64E(e); err == nil {
					out = append(out, map[string]any{"id": key, "name": key, "price": price})
				}
			}
		}
		return out
	}
	return nil
}

func floatField(m map[string]any, key string) (float64, error) {
	value, ok := m[key]
	if !ok || value == nil {
		return 0, nil
	}
	parsed, err := toMoney(value)
	if err != nil {
		return 0, &DecodeError{Field: key, Err: err}
	}
	return parsed, nil
}

func decodeInto(field string, input map[string]any, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       moneyStringHook,
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return &DecodeError{Field: field, Err: err}
	}
	if err := decoder.Decode(input); err != nil {
		return &DecodeError{Field: field, Err: err}
	}
	return nil
}

func moneyStringHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.String || to.Kind() != reflect.Float64 {
		return data, nil
	}
	return toMoney(reflect.ValueOf(data).String())
}

func toMoney(value any) (float64, error) {
	if s, ok := value.(string); ok {
		s = strings.NewReplacer("$", "", ",", "").Replace(strings.TrimSpace(s))
		if s == "" {
			return 0, nil
		}
		return cast.ToFloat64E(s)
	}
	return cast.ToFloat64E(value)
}

// foldKeys lower-cases the keys of one map level and strips underscores so that
// camelCase and snake_case spellings collapse to one key. The spelling without
// underscores wins. Nested values are left untouched.
func foldKeys(v any) map[string]any {
	var src map[string]any
	switch t := v.(type) {
	case map[string]any:
		src = t
	case map[any]any:
		src = make(map[string]any, len(t))
		for key, value := range t {
			src[cast.ToString(key)] = value
		}
	default:
		return nil
	}
	out := make(map[string]any, len(src))
	for _, pass := range []bool{false, true} {
		for key, value := range src {
			if strings.Contains(key, "_") != pass {
				continue
			}
			folded := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(key), "_", ""))
			if _, exists := out[folded]; exists {
				continue
			}
			out[folded] = value
		}
	}
	return out
}

// foldList folds the keys of every object in a list, dropping non-object entries.
func foldList(v any) []any {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]any, 0, len(list))
	for _, elem := range list {
		if m := foldKeys(elem); m != nil {
			out = append(out, m)
		}
	}
	return out
}

func isObjectList(list []any) bool {
	if len(list) == 0 {
		return false
	}
	for _, elem := range list {
		if _, ok := elem.(map[string]any); !ok {
			return false
		}
	}
	return true
}

func aliasKeys(m map[string]any, canonical string, alternates ...string) {
	if m == nil {
		return
	}
	if _, ok := m[canonical]; ok {
		return
	}
	for _, alt := range alternates {
		if value, ok := m[alt]; ok {
			m[canonical] = value
			return
		}
	}
}
