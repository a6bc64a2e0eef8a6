package validation

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tokoline/sales-api/internal/enum"
	"github.com/tokoline/sales-api/internal/order"
	"github.com/tokoline/sales-api/internal/permission"
	"github.com/tokoline/sales-api/internal/pricing"
)

// DiscountInput is a requested discount at item or order level.
type DiscountInput struct {
	Type  string          `json:"type" validate:"required,oneof=PERCENTAGE FIXED"`
	Value decimal.Decimal `json:"value"`
}

// ItemInput is one proposed order line. ID is set when an existing line of
// the current order is being kept or changed.
type ItemInput struct {
	ID                *uuid.UUID       `json:"id,omitempty"`
	ProductID         uuid.UUID        `json:"productId" validate:"required"`
	Quantity          int32            `json:"quantity" validate:"gt=0"`
	PriceType         string           `json:"priceType" validate:"required,oneof=GROSIR SEMI_GROSIR RETAIL MODERN CUSTOM"`
	CustomPrice       *decimal.Decimal `json:"customPrice,omitempty"`
	CustomPriceReason string           `json:"customPriceReason,omitempty" validate:"max=500"`
	Discount          *DiscountInput   `json:"discount,omitempty"`
	Deleted           bool             `json:"deleted,omitempty"`
}

// OrderInput is the proposed content of an order for Create and Update.
type OrderInput struct {
	SalesID  uuid.UUID      `json:"salesId"`
	VisitID  *uuid.UUID     `json:"visitId,omitempty"`
	Notes    string         `json:"notes" validate:"max=1000"`
	Discount *DiscountInput `json:"discount,omitempty"`
	Items    []ItemInput    `json:"items" validate:"dive"`
}

// StatusInput is a proposed status change.
type StatusInput struct {
	Expected        string     `json:"expectedStatus" validate:"required"`
	Target          string     `json:"status" validate:"required,oneof=DRAFT DISETUJUI TERKIRIM TIDAK_TERKIRIM"`
	Notes           string     `json:"notes" validate:"max=1000"`
	RejectionReason string     `json:"rejectionReason" validate:"max=500"`
	DeliveryDate    *time.Time `json:"deliveryDate,omitempty"`
}

// Catalog maps product IDs to their list prices. Only products referenced by
// the request need to be present.
type Catalog map[uuid.UUID]pricing.PriceList

// Request carries everything a validation needs. Which fields are read
// depends on the Mode:
//   - Create: Actor, Input, Catalog, Sequence
//   - Update: Actor, Current, Input, Catalog
//   - StatusChange: Actor, Current, Status
type Request struct {
	Actor    permission.Actor
	Current  *order.Order
	Input    OrderInput
	Catalog  Catalog
	Sequence int
	Status   StatusInput
}

func (d *DiscountInput) toPricing() *pricing.Discount {
	if d == nil {
		return nil
	}
	return &pricing.Discount{Type: enum.DiscountType(d.Type), Value: d.Value}
}
