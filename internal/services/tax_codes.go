package services

import (
	"strings"

	domain "github.com/cateringhub/pricing/internal/domain"
)

var serviceTaxCodes = map[ServiceType]TaxCode{
	domain.ServiceTypeCatering:     domain.TaxCodeTangibleGoods,
	domain.ServiceTypePartyRentals: domain.TaxCodeTangibleGoods,
	domain.ServiceTypeStaff:        domain.TaxCodeServices,
	domain.ServiceTypeVenues:       domain.TaxCodeServices,
}

// TaxCodeForServiceType returns the tax category for a service type, defaulting to services.
func TaxCodeForServiceType(serviceType ServiceType) TaxCode {
	if code, ok := serviceTaxCodes[ServiceType(strings.ToLower(strings.TrimSpace(string(serviceType))))]; ok {
		return code
	}
	return domain.TaxCodeServices
}
