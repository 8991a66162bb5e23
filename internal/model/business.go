package model

// BusinessType is the kind of tenant.
type BusinessType string

const (
	BusinessRestaurant   BusinessType = "restaurant"
	BusinessShop         BusinessType = "shop"
	BusinessStreetVendor BusinessType = "street_vendor"
)

// Tenant is one business on the platform.
type Tenant struct {
	ID           string       `json:"id" db:"id"`
	Name         string       `json:"name" db:"name"`
	BusinessType BusinessType `json:"businessType" db:"business_type"`
}

// BusinessProfile describes what a business type supports.
type BusinessProfile struct {
	Label         string
	DeliveryTypes map[DeliveryType]bool
}

var businessProfiles = map[BusinessType]BusinessProfile{
	BusinessRestaurant: {
		Label: "Restaurant",
		DeliveryTypes: map[DeliveryType]bool{
			DeliveryTypeDelivery: true,
			DeliveryTypeDineIn:   true,
			DeliveryTypeCar:      true,
			DeliveryTypeTakeaway: true,
		},
	},
	BusinessShop: {
		Label: "Shop",
		DeliveryTypes: map[DeliveryType]bool{
			DeliveryTypeDelivery: true,
			DeliveryTypeTakeaway: true,
		},
	},
	BusinessStreetVendor: {
		Label: "Street vendor",
		DeliveryTypes: map[DeliveryType]bool{
			DeliveryTypeDineIn:   true,
			DeliveryTypeTakeaway: true,
		},
	},
}

// BusinessProfileFor looks up the profile of a business type.
func BusinessProfileFor(t BusinessType) (BusinessProfile, bool) {
	p, ok := businessProfiles[t]
	return p, ok
}

// Supports reports whether the profile accepts orders of delivery type d.
func (p BusinessProfile) Supports(d DeliveryType) bool {
	return p.DeliveryTypes[d]
}

// DineInBusinessTypes lists the business types that run tabs.
func DineInBusinessTypes() []BusinessType {
	var out []BusinessType
	for _, t := range []BusinessType{BusinessRestaurant, BusinessShop, BusinessStreetVendor} {
		if businessProfiles[t].Supports(DeliveryTypeDineIn) {
			out = append(out, t)
		}
	}
	return out
}
