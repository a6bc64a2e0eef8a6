package enum

// ── Group A: State machines (CHECK constrained in DB) ──

type OrderStatus string

const (
	OrderStatusDraft        OrderStatus = "DRAFT"
	OrderStatusApproved     OrderStatus = "DISETUJUI"
	OrderStatusDelivered    OrderStatus = "TERKIRIM"
	OrderStatusNotDelivered OrderStatus = "TIDAK_TERKIRIM"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusDraft, OrderStatusApproved, OrderStatusDelivered, OrderStatusNotDelivered:
		return true
	}
	return false
}

// ── Group B: Roles (CHECK constrained in DB) ──

type Role string

const (
	RoleAdmin   Role = "ADMIN"
	RoleManager Role = "MANAGER"
	RoleSales   Role = "SALES"
	RoleBasic   Role = "BASIC"
)

// Level gives the documented hierarchy ADMIN(4) > MANAGER(3) > SALES(2) > BASIC(1).
// Unknown roles are 0. Permissions are not derived from it.
func (r Role) Level() int {
	switch r {
	case RoleAdmin:
		return 4
	case RoleManager:
		return 3
	case RoleSales:
		return 2
	case RoleBasic:
		return 1
	}
	return 0
}

func (r Role) Valid() bool {
	return r.Level() > 0
}

// ── Group C: Pricing (CHECK constrained in DB) ──

type PriceType string

const (
	PriceTypeGrosir     PriceType = "GROSIR"
	PriceTypeSemiGrosir PriceType = "SEMI_GROSIR"
	PriceTypeRetail     PriceType = "RETAIL"
	PriceTypeModern     PriceType = "MODERN"
	PriceTypeCustom     PriceType = "CUSTOM"
)

func (p PriceType) Valid() bool {
	switch p {
	case PriceTypeGrosir, PriceTypeSemiGrosir, PriceTypeRetail, PriceTypeModern, PriceTypeCustom:
		return true
	}
	return false
}

type DiscountType string

const (
	DiscountTypePercentage DiscountType = "PERCENTAGE"
	DiscountTypeFixed      DiscountType = "FIXED"
)

func (d DiscountType) Valid() bool {
	return d == DiscountTypePercentage || d == DiscountTypeFixed
}

// ── Group D: Live event labels (no DB constraint) ──

const (
	EventOrderCreated       = "order.created"
	EventOrderUpdated       = "order.updated"
	EventOrderStatusChanged = "order.status_changed"
)
