package domain

import (
	"time"
)

// ComboSelection lists the options a guest picked inside one combo category of a catalog item.
type ComboSelection struct {
	ItemID     string
	CategoryID string
	OptionIDs  []string
}

// CateringSelection is the bucketed view of a catering order produced before pricing.
type CateringSelection struct {
	BasePricePerPerson    float64
	BaseItems             []CateringCharge
	AdditionalChargeItems []CateringCharge
	ComboCategoryItems    []ComboCharge
}

// Quote is the priced result of a full order evaluation. Money fields are in cents.
type Quote struct {
	ID               string
	Currency         string
	GuestCount       int
	Catering         map[string]CateringBreakdown
	Delivery         map[string]DeliveryQuote
	LineItems        []TaxableLineItem
	ServicesSubtotal int64
	ServiceFee       int64
	DeliveryFee      int64
	Adjustments      int64
	Tax              int64
	Total            int64
	TaxCalculationID string
	Metadata         map[string]string
	CreatedAt        time.Time
}

// Probe statuses. Degraded means an optional dependency failed and pricing runs locally.
const (
	HealthStatusOK       = "ok"
	HealthStatusDegraded = "degraded"
	HealthStatusError    = "error"
)

// SystemHealthCheck is the outcome of one dependency probe.
type SystemHealthCheck struct {
	Status    string
	Detail    string
	Error     string
	Latency   time.Duration
	CheckedAt time.Time
}

// SystemHealthReport is what /readyz renders: the folded status, every probe, and build metadata.
type SystemHealthReport struct {
	Status      string
	Version     string
	CommitSHA   string
	Environment string
	Uptime      time.Duration
	GeneratedAt time.Time
	Checks      map[string]SystemHealthCheck
}
