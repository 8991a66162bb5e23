package model

// RiderAvailability is the dispatch state of a rider.
type RiderAvailability string

const (
	RiderOnline     RiderAvailability = "online"
	RiderOffline    RiderAvailability = "offline"
	RiderOnDelivery RiderAvailability = "on_delivery"
)

// AvailabilityDivergence is a roster entry that disagrees with its profile.
type AvailabilityDivergence struct {
	TenantID string            `json:"tenantId"`
	RiderID  string            `json:"riderId"`
	Profile  RiderAvailability `json:"profile"`
	Roster   RiderAvailability `json:"roster"`
}

// Role of a verified caller.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleOwner    Role = "owner"
	RoleOperator Role = "operator"
	RoleRider    Role = "rider"
	RoleAdmin    Role = "admin"
)

// Identity is the verified caller produced by the auth layer.
type Identity struct {
	UserID   string `json:"userId"`
	TenantID string `json:"tenantId"`
	Role     Role   `json:"role"`
	Name     string `json:"name"`
}

// ActorName is what goes into status history entries.
func (i Identity) ActorName() string {
	if i.Name != "" {
		return i.Name
	}
	return i.UserID
}

// CanManageTenant reports whether the caller may settle or sweep tabs of tenantID.
func (i Identity) CanManageTenant(tenantID string) bool {
	switch i.Role {
	case RoleAdmin:
		return true
	case RoleOwner, RoleOperator:
		return i.TenantID == tenantID
	default:
		return false
	}
}

// TransitionRequest asks the delivery state machine to move orders.
type TransitionRequest struct {
	RiderID    string   `json:"-"`
	Actor      string   `json:"-"`
	OrderIDs   []string `json:"orderIds" validate:"required,min=1,dive,required"`
	Transition string   `json:"-"`
	Reason     string   `json:"reason,omitempty"`
}

// UpdateStatusRequest asks for a transition by target status.
type UpdateStatusRequest struct {
	OrderIDs []string    `json:"orderIds" validate:"required,min=1,dive,required"`
	Status   OrderStatus `json:"status" validate:"required"`
	Reason   string      `json:"reason,omitempty"`
}

// TransitionResult reports the orders moved by a transition.
type TransitionResult struct {
	OrderIDs      []string    `json:"orderIds"`
	Status        OrderStatus `json:"status"`
	RiderReleased bool        `json:"riderReleased"`
}
