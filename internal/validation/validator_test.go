package validation_test

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tokoline/sales-api/internal/enum"
	"github.com/tokoline/sales-api/internal/errs"
	"github.com/tokoline/sales-api/internal/order"
	"github.com/tokoline/sales-api/internal/permission"
	"github.com/tokoline/sales-api/internal/pricing"
	"github.com/tokoline/sales-api/internal/validation"
)

var (
	fixedNow = time.Date(2026, 1, 15, 9, 30, 0, 0, time.UTC)

	productA = uuid.MustParse("aaaaaaaa-0000-0000-0000-000000000001")
	productB = uuid.MustParse("aaaaaaaa-0000-0000-0000-000000000002")
	visitID  = uuid.MustParse("bbbbbbbb-0000-0000-0000-000000000001")

	salesActor   = permission.Actor{ID: uuid.MustParse("cccccccc-0000-0000-0000-000000000001"), Name: "Budi", Role: enum.RoleSales, IsActive: true}
	otherSales   = permission.Actor{ID: uuid.MustParse("cccccccc-0000-0000-0000-000000000002"), Name: "Sari", Role: enum.RoleSales, IsActive: true}
	managerActor = permission.Actor{ID: uuid.MustParse("cccccccc-0000-0000-0000-000000000003"), Name: "Rina", Role: enum.RoleManager, IsActive: true}
	adminActor   = permission.Actor{ID: uuid.MustParse("cccccccc-0000-0000-0000-000000000004"), Name: "Admin", Role: enum.RoleAdmin, IsActive: true}
	basicActor   = permission.Actor{ID: uuid.MustParse("cccccccc-0000-0000-0000-000000000005"), Name: "Tamu", Role: enum.RoleBasic, IsActive: true}
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func testCatalog() validation.Catalog {
	return validation.Catalog{
		productA: {Grosir: dec("10000"), SemiGrosir: dec("11000"), Retail: dec("12000"), Modern: dec("12500")},
		productB: {Grosir: dec("5000"), SemiGrosir: dec("5250"), Retail: dec("5500"), Modern: dec("6000")},
	}
}

// sequentialIDs hands out predictable IDs so tests can refer to created lines.
func sequentialIDs() func() uuid.UUID {
	n := 0
	return func() uuid.UUID {
		n++
		var id uuid.UUID
		id[15] = byte(n)
		id[14] = byte(n >> 8)
		return id
	}
}

func newValidator(opts ...validation.Option) *validation.Validator {
	base := []validation.Option{
		validation.WithClock(func() time.Time { return fixedNow }),
		validation.WithIDGenerator(sequentialIDs()),
	}
	return validation.New(append(base, opts...)...)
}

func validInput() validation.OrderInput {
	v := visitID
	return validation.OrderInput{
		VisitID: &v,
		Items: []validation.ItemInput{
			{ProductID: productA, Quantity: 3, PriceType: "RETAIL"},
		},
	}
}

func createDraft(t *testing.T, v *validation.Validator, actor permission.Actor, in validation.OrderInput) *order.Order {
	t.Helper()
	o, err := v.Create(validation.Request{Actor: actor, Input: in, Catalog: testCatalog(), Sequence: 1})
	require.NoError(t, err)
	return o
}

func requireViolation(t *testing.T, err error, path string) *errs.ValidationError {
	t.Helper()
	var ve *errs.ValidationError
	require.True(t, errors.As(err, &ve), "expected ValidationError, got %v", err)
	assert.True(t, ve.Has(path), "expected violation at %q, got %+v", path, ve.Violations)
	return ve
}

// ── Create ──

func TestCreate_Success(t *testing.T) {
	v := newValidator()
	in := validInput()
	in.Items = []validation.ItemInput{
		{ProductID: productA, Quantity: 3, PriceType: "RETAIL", Discount: &validation.DiscountInput{Type: "PERCENTAGE", Value: dec("10")}},
		{ProductID: productB, Quantity: 2, PriceType: "CUSTOM", CustomPrice: decPtr("9999.99"), CustomPriceReason: "  promo toko baru  "},
	}
	in.Discount = &validation.DiscountInput{Type: "FIXED", Value: dec("1000")}

	o, err := v.Create(validation.Request{Actor: salesActor, Input: in, Catalog: testCatalog(), Sequence: 7})
	require.NoError(t, err)

	assert.Equal(t, "PO-20260115-007", o.OrderNumber)
	assert.Equal(t, enum.OrderStatusDraft, o.Status)
	assert.Equal(t, salesActor.ID, o.SalesID)
	assert.Equal(t, salesActor.ID, o.CreatedBy)
	require.NotNil(t, o.VisitID)
	assert.Equal(t, visitID, *o.VisitID)
	require.Len(t, o.Items, 2)

	a := o.Items[0]
	assert.True(t, dec("12000").Equal(a.UnitPrice))
	assert.True(t, dec("36000").Equal(a.Subtotal))
	assert.True(t, dec("3600").Equal(a.DiscountAmount))
	assert.True(t, dec("32400").Equal(a.FinalPrice))
	assert.Nil(t, a.CustomPrice)

	b := o.Items[1]
	assert.True(t, dec("9999.99").Equal(b.UnitPrice))
	assert.True(t, dec("19999.98").Equal(b.FinalPrice))
	assert.Equal(t, "promo toko baru", b.CustomPriceReason)
	assert.NotEqual(t, a.ID, b.ID)

	assert.True(t, dec("55999.98").Equal(o.GrossSubtotal), "gross %s", o.GrossSubtotal)
	assert.True(t, dec("52399.98").Equal(o.Subtotal), "subtotal %s", o.Subtotal)
	assert.True(t, dec("1000").Equal(o.DiscountAmount))
	assert.True(t, dec("51399.98").Equal(o.Total), "total %s", o.Total)

	sum := decimal.Zero
	for _, it := range o.ActiveItems() {
		sum = sum.Add(it.FinalPrice)
	}
	assert.True(t, sum.Sub(o.DiscountAmount).Equal(o.Total))

	require.Len(t, o.History, 1)
	assert.Equal(t, enum.OrderStatusDraft, o.History[0].Status)
	assert.Equal(t, salesActor.ID, o.History[0].UserID)
	assert.Equal(t, fixedNow, o.History[0].Timestamp)
}

func TestCreate_Violations(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(in *validation.OrderInput)
		path   string
	}{
		{
			name:   "no items",
			mutate: func(in *validation.OrderInput) { in.Items = nil },
			path:   "items",
		},
		{
			name: "only deleted items",
			mutate: func(in *validation.OrderInput) {
				in.Items[0].Deleted = true
			},
			path: "items",
		},
		{
			name: "duplicate product",
			mutate: func(in *validation.OrderInput) {
				in.Items = append(in.Items, validation.ItemInput{ProductID: productA, Quantity: 1, PriceType: "GROSIR"})
			},
			path: "items",
		},
		{
			name:   "zero quantity",
			mutate: func(in *validation.OrderInput) { in.Items[0].Quantity = 0 },
			path:   "items[0].quantity",
		},
		{
			name:   "unknown price type",
			mutate: func(in *validation.OrderInput) { in.Items[0].PriceType = "DISTRIBUTOR" },
			path:   "items[0].priceType",
		},
		{
			name:   "missing product id",
			mutate: func(in *validation.OrderInput) { in.Items[0].ProductID = uuid.Nil },
			path:   "items[0].productId",
		},
		{
			name:   "product not in catalog",
			mutate: func(in *validation.OrderInput) { in.Items[0].ProductID = uuid.New() },
			path:   "items[0].productId",
		},
		{
			name: "custom price zero",
			mutate: func(in *validation.OrderInput) {
				in.Items[0].PriceType = "CUSTOM"
				in.Items[0].CustomPrice = decPtr("0")
				in.Items[0].CustomPriceReason = "nego"
			},
			path: "items[0].customPrice",
		},
		{
			name: "custom price with three decimals",
			mutate: func(in *validation.OrderInput) {
				in.Items[0].PriceType = "CUSTOM"
				in.Items[0].CustomPrice = decPtr("100.005")
				in.Items[0].CustomPriceReason = "nego"
			},
			path: "items[0].customPrice",
		},
		{
			name: "custom price without reason",
			mutate: func(in *validation.OrderInput) {
				in.Items[0].PriceType = "CUSTOM"
				in.Items[0].CustomPrice = decPtr("9000")
				in.Items[0].CustomPriceReason = "   "
			},
			path: "items[0].customPriceReason",
		},
		{
			name: "item percentage above 100",
			mutate: func(in *validation.OrderInput) {
				in.Items[0].Discount = &validation.DiscountInput{Type: "PERCENTAGE", Value: dec("100.01")}
			},
			path: "items[0].discount.value",
		},
		{
			name: "order percentage above 100",
			mutate: func(in *validation.OrderInput) {
				in.Discount = &validation.DiscountInput{Type: "PERCENTAGE", Value: dec("150")}
			},
			path: "discount.value",
		},
		{
			name: "negative fixed discount",
			mutate: func(in *validation.OrderInput) {
				in.Discount = &validation.DiscountInput{Type: "FIXED", Value: dec("-1")}
			},
			path: "discount.value",
		},
		{
			name: "unknown discount type",
			mutate: func(in *validation.OrderInput) {
				in.Discount = &validation.DiscountInput{Type: "BOGO", Value: dec("1")}
			},
			path: "discount.type",
		},
		{
			name: "fixed order discount above subtotal",
			mutate: func(in *validation.OrderInput) {
				in.Discount = &validation.DiscountInput{Type: "FIXED", Value: dec("36000.01")}
			},
			path: "discount.value",
		},
		{
			name:   "sales without visit",
			mutate: func(in *validation.OrderInput) { in.VisitID = nil },
			path:   "visitId",
		},
		{
			name:   "sales creating for someone else",
			mutate: func(in *validation.OrderInput) { in.SalesID = otherSales.ID },
			path:   "salesId",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := newValidator()
			in := validInput()
			tt.mutate(&in)

			o, err := v.Create(validation.Request{Actor: salesActor, Input: in, Catalog: testCatalog(), Sequence: 1})
			assert.Nil(t, o)
			assert.ErrorIs(t, err, errs.ErrValidationFailed)
			requireViolation(t, err, tt.path)
		})
	}
}

func TestCreate_CollectsAllViolations(t *testing.T) {
	v := newValidator()
	in := validation.OrderInput{
		Items: []validation.ItemInput{
			{ProductID: productA, Quantity: 0, PriceType: "RETAIL"},
			{ProductID: productB, Quantity: 1, PriceType: "CUSTOM"},
		},
	}

	_, err := v.Create(validation.Request{Actor: salesActor, Input: in, Catalog: testCatalog(), Sequence: 1})
	ve := requireViolation(t, err, "items[0].quantity")
	assert.True(t, ve.Has("items[1].customPrice"))
	assert.True(t, ve.Has("items[1].customPriceReason"))
	assert.True(t, ve.Has("visitId"))
	assert.True(t, ve.HasField("customPrice"))
}

func TestCreate_DeletedLinesAreIgnored(t *testing.T) {
	v := newValidator()
	in := validInput()
	// A deleted line with otherwise invalid content must not block creation.
	in.Items = append(in.Items, validation.ItemInput{Deleted: true})

	o, err := v.Create(validation.Request{Actor: salesActor, Input: in, Catalog: testCatalog(), Sequence: 1})
	require.NoError(t, err)
	assert.Len(t, o.Items, 1)
	assert.True(t, dec("36000").Equal(o.Total))
}

func TestCreate_Admin(t *testing.T) {
	v := newValidator()
	in := validInput()
	in.VisitID = nil
	in.SalesID = salesActor.ID

	o, err := v.Create(validation.Request{Actor: adminActor, Input: in, Catalog: testCatalog(), Sequence: 12})
	require.NoError(t, err)
	assert.Nil(t, o.VisitID)
	assert.Equal(t, salesActor.ID, o.SalesID)
	assert.Equal(t, adminActor.ID, o.CreatedBy)
	assert.Equal(t, "PO-20260115-012", o.OrderNumber)
}

func TestCreate_PermissionDenied(t *testing.T) {
	inactive := salesActor
	inactive.IsActive = false

	for _, actor := range []permission.Actor{basicActor, managerActor, inactive} {
		t.Run(string(actor.Role)+"/"+actor.Name, func(t *testing.T) {
			v := newValidator()
			// Invalid content too: permission is checked first.
			in := validInput()
			in.Items = nil

			_, err := v.Create(validation.Request{Actor: actor, Input: in, Catalog: testCatalog(), Sequence: 1})
			assert.ErrorIs(t, err, errs.ErrPermissionDenied)
			var ve *errs.ValidationError
			assert.False(t, errors.As(err, &ve))
		})
	}
}

func TestCreate_SequenceOutOfRange(t *testing.T) {
	v := newValidator()
	for _, seq := range []int{0, 1000} {
		_, err := v.Create(validation.Request{Actor: salesActor, Input: validInput(), Catalog: testCatalog(), Sequence: seq})
		assert.Error(t, err, "sequence %d", seq)
	}
}

func TestCreate_Overflow(t *testing.T) {
	t.Run("unit price", func(t *testing.T) {
		v := newValidator()
		in := validInput()
		in.Items[0].PriceType = "CUSTOM"
		in.Items[0].CustomPrice = decPtr("1000000.00")
		in.Items[0].CustomPriceReason = "grosir besar"

		_, err := v.Create(validation.Request{Actor: salesActor, Input: in, Catalog: testCatalog(), Sequence: 1})
		var oe *errs.OverflowError
		require.True(t, errors.As(err, &oe), "got %v", err)
		assert.Equal(t, "items[0].unitPrice", oe.Field)
		assert.ErrorIs(t, err, errs.ErrPricingOverflow)
	})

	t.Run("line subtotal", func(t *testing.T) {
		v := newValidator()
		in := validInput()
		in.Items[0].PriceType = "CUSTOM"
		in.Items[0].CustomPrice = decPtr("999999.99")
		in.Items[0].CustomPriceReason = "grosir besar"
		in.Items[0].Quantity = 100000

		_, err := v.Create(validation.Request{Actor: salesActor, Input: in, Catalog: testCatalog(), Sequence: 1})
		var oe *errs.OverflowError
		require.True(t, errors.As(err, &oe), "got %v", err)
		assert.Equal(t, "items[0].subtotal", oe.Field)
	})
}

func TestCreate_CollectsPricingViolations(t *testing.T) {
	catalog := testCatalog()
	for id, list := range catalog {
		list.Modern = decimal.Zero
		catalog[id] = list
	}
	in := validInput()
	in.Items = []validation.ItemInput{
		{ProductID: productA, Quantity: 1, PriceType: "MODERN"},
		{ProductID: productB, Quantity: 1, PriceType: "MODERN"},
	}

	_, err := newValidator().Create(validation.Request{Actor: salesActor, Input: in, Catalog: catalog, Sequence: 1})
	ve := requireViolation(t, err, "items[0].priceType")
	assert.True(t, ve.Has("items[1].priceType"), "violations: %+v", ve.Violations)
}

func TestCreate_ViolationsWinOverOverflow(t *testing.T) {
	catalog := testCatalog()
	list := catalog[productB]
	list.Modern = decimal.Zero
	catalog[productB] = list

	in := validInput()
	in.Items = []validation.ItemInput{
		{ProductID: productA, Quantity: 1, PriceType: "CUSTOM", CustomPrice: decPtr("1000000.00"), CustomPriceReason: "grosir besar"},
		{ProductID: productB, Quantity: 1, PriceType: "MODERN"},
	}

	_, err := newValidator().Create(validation.Request{Actor: salesActor, Input: in, Catalog: catalog, Sequence: 1})
	requireViolation(t, err, "items[1].priceType")
}

func TestFixedDiscountScale(t *testing.T) {
	in := validInput()
	in.Discount = &validation.DiscountInput{Type: "FIXED", Value: dec("0.005")}

	_, err := newValidator().Create(validation.Request{Actor: salesActor, Input: in, Catalog: testCatalog(), Sequence: 1})
	ve := requireViolation(t, err, "discount.value")
	assert.Equal(t, "must have at most 2 decimal places", ve.Violations[0].Message)

	in.Discount.Value = dec("100000000")
	_, err = newValidator().Create(validation.Request{Actor: salesActor, Input: in, Catalog: testCatalog(), Sequence: 1})
	ve = requireViolation(t, err, "discount.value")
	assert.Equal(t, "must not exceed 99999999.99", ve.Violations[0].Message)
}

// ── Update ──

func TestUpdate_SalesOwnDraft(t *testing.T) {
	v := newValidator()
	in := validInput()
	in.Items = append(in.Items, validation.ItemInput{ProductID: productB, Quantity: 4, PriceType: "GROSIR"})
	current := createDraft(t, v, salesActor, in)
	snapshot := current.Clone()

	keep := current.Items[0].ID
	next, err := v.Update(validation.Request{
		Actor:   salesActor,
		Current: current,
		Catalog: testCatalog(),
		Input: validation.OrderInput{
			Notes: "kirim pagi",
			Items: []validation.ItemInput{
				{ID: &keep, ProductID: productA, Quantity: 5, PriceType: "GROSIR"},
			},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, current.OrderNumber, next.OrderNumber)
	assert.Equal(t, enum.OrderStatusDraft, next.Status)
	assert.Equal(t, current.History, next.History)
	assert.Equal(t, "kirim pagi", next.Notes)

	require.Len(t, next.Items, 2)
	assert.Equal(t, keep, next.Items[0].ID)
	assert.False(t, next.Items[0].Deleted)
	assert.True(t, next.Items[1].Deleted, "dropped line is kept as deleted")
	assert.True(t, dec("50000").Equal(next.Total))

	assert.Equal(t, snapshot, current, "current order must not be modified")
}

func TestUpdate_ExplicitDeleteAndNewLine(t *testing.T) {
	v := newValidator()
	current := createDraft(t, v, salesActor, validInput())
	gone := current.Items[0].ID

	next, err := v.Update(validation.Request{
		Actor:   salesActor,
		Current: current,
		Catalog: testCatalog(),
		Input: validation.OrderInput{
			Items: []validation.ItemInput{
				{ID: &gone, Deleted: true},
				{ProductID: productB, Quantity: 1, PriceType: "MODERN"},
			},
		},
	})
	require.NoError(t, err)
	require.Len(t, next.Items, 2)
	assert.True(t, next.Items[0].Deleted)
	assert.Equal(t, gone, next.Items[0].ID)
	assert.NotEqual(t, gone, next.Items[1].ID)
	assert.True(t, dec("6000").Equal(next.Total))
}

func TestUpdate_Violations(t *testing.T) {
	v := newValidator()
	current := createDraft(t, v, salesActor, validInput())
	existing := current.Items[0].ID
	foreign := uuid.New()

	tests := []struct {
		name  string
		items []validation.ItemInput
		disc  *validation.DiscountInput
		path  string
	}{
		{
			name: "item percentage above 100",
			items: []validation.ItemInput{
				{ID: &existing, ProductID: productA, Quantity: 1, PriceType: "RETAIL", Discount: &validation.DiscountInput{Type: "PERCENTAGE", Value: dec("101")}},
			},
			path: "items[0].discount.value",
		},
		{
			name:  "order percentage above 100",
			items: []validation.ItemInput{{ID: &existing, ProductID: productA, Quantity: 1, PriceType: "RETAIL"}},
			disc:  &validation.DiscountInput{Type: "PERCENTAGE", Value: dec("100.5")},
			path:  "discount.value",
		},
		{
			name:  "line from another order",
			items: []validation.ItemInput{{ID: &foreign, ProductID: productA, Quantity: 1, PriceType: "RETAIL"}},
			path:  "items[0].id",
		},
		{
			name: "same line twice",
			items: []validation.ItemInput{
				{ID: &existing, ProductID: productA, Quantity: 1, PriceType: "RETAIL"},
				{ID: &existing, ProductID: productB, Quantity: 1, PriceType: "RETAIL"},
			},
			path: "items[1].id",
		},
		{
			name:  "everything deleted",
			items: []validation.ItemInput{{ID: &existing, Deleted: true}},
			path:  "items",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Update(validation.Request{
				Actor:   salesActor,
				Current: current,
				Catalog: testCatalog(),
				Input:   validation.OrderInput{Items: tt.items, Discount: tt.disc},
			})
			requireViolation(t, err, tt.path)
		})
	}

	t.Run("removed line cannot come back", func(t *testing.T) {
		in := validInput()
		in.Items = append(in.Items, validation.ItemInput{ProductID: productB, Quantity: 2, PriceType: "RETAIL"})
		both := createDraft(t, v, salesActor, in)
		lineA, lineB := both.Items[0].ID, both.Items[1].ID

		trimmed, err := v.Update(validation.Request{
			Actor:   salesActor,
			Current: both,
			Catalog: testCatalog(),
			Input: validation.OrderInput{Items: []validation.ItemInput{
				{ID: &lineA, ProductID: productA, Quantity: 3, PriceType: "RETAIL"},
			}},
		})
		require.NoError(t, err)
		require.Len(t, trimmed.ActiveItems(), 1)

		_, err = v.Update(validation.Request{
			Actor:   salesActor,
			Current: trimmed,
			Catalog: testCatalog(),
			Input: validation.OrderInput{Items: []validation.ItemInput{
				{ID: &lineA, ProductID: productA, Quantity: 3, PriceType: "RETAIL"},
				{ID: &lineB, ProductID: productB, Quantity: 2, PriceType: "RETAIL"},
			}},
		})
		ve := requireViolation(t, err, "items[1].id")
		assert.Equal(t, "item was removed", ve.Violations[0].Message)

		// Repeating the deletion is harmless.
		next, err := v.Update(validation.Request{
			Actor:   salesActor,
			Current: trimmed,
			Catalog: testCatalog(),
			Input: validation.OrderInput{Items: []validation.ItemInput{
				{ID: &lineA, ProductID: productA, Quantity: 3, PriceType: "RETAIL"},
				{ID: &lineB, Deleted: true},
			}},
		})
		require.NoError(t, err)
		assert.True(t, dec("36000").Equal(next.Total))
	})
}

func TestUpdate_EditPolicy(t *testing.T) {
	v := newValidator()
	draft := createDraft(t, v, salesActor, validInput())
	approved, err := v.ChangeStatus(validation.Request{
		Actor:   managerActor,
		Current: draft,
		Status:  validation.StatusInput{Expected: "DRAFT", Target: "DISETUJUI"},
	})
	require.NoError(t, err)

	keep := draft.Items[0].ID
	in := validation.OrderInput{Items: []validation.ItemInput{{ID: &keep, ProductID: productA, Quantity: 9, PriceType: "RETAIL"}}}

	t.Run("sales cannot edit approved order", func(t *testing.T) {
		_, err := v.Update(validation.Request{Actor: salesActor, Current: approved, Input: in, Catalog: testCatalog()})
		requireViolation(t, err, "status")
	})

	t.Run("admin may edit approved order", func(t *testing.T) {
		next, err := v.Update(validation.Request{Actor: adminActor, Current: approved, Input: in, Catalog: testCatalog()})
		require.NoError(t, err)
		assert.Equal(t, enum.OrderStatusApproved, next.Status)
		assert.True(t, dec("108000").Equal(next.Total))
	})

	t.Run("admin exception switched off", func(t *testing.T) {
		strict := newValidator(validation.WithPolicy(validation.EditPolicy{AdminAnyStatus: false}))
		_, err := strict.Update(validation.Request{Actor: adminActor, Current: approved, Input: in, Catalog: testCatalog()})
		requireViolation(t, err, "status")
	})

	t.Run("other sales user", func(t *testing.T) {
		_, err := v.Update(validation.Request{Actor: otherSales, Current: draft, Input: in, Catalog: testCatalog()})
		assert.ErrorIs(t, err, errs.ErrPermissionDenied)
	})

	t.Run("manager has no update permission", func(t *testing.T) {
		_, err := v.Update(validation.Request{Actor: managerActor, Current: draft, Input: in, Catalog: testCatalog()})
		assert.ErrorIs(t, err, errs.ErrPermissionDenied)
	})
}

func TestUpdate_NoCurrentOrder(t *testing.T) {
	v := newValidator()
	_, err := v.Update(validation.Request{Actor: salesActor, Input: validInput()})
	assert.ErrorIs(t, err, validation.ErrNoCurrentOrder)
}

// ── StatusChange ──

func TestChangeStatus_Approve(t *testing.T) {
	v := newValidator()
	draft := createDraft(t, v, salesActor, validInput())

	next, err := v.ChangeStatus(validation.Request{
		Actor:   managerActor,
		Current: draft,
		Status:  validation.StatusInput{Expected: "DRAFT", Target: "DISETUJUI", Notes: " ok "},
	})
	require.NoError(t, err)
	assert.Equal(t, enum.OrderStatusApproved, next.Status)
	require.NotNil(t, next.ApprovedBy)
	assert.Equal(t, managerActor.ID, *next.ApprovedBy)
	require.Len(t, next.History, 2)
	assert.Equal(t, "ok", next.History[1].Notes)

	assert.Equal(t, enum.OrderStatusDraft, draft.Status)
	assert.Len(t, draft.History, 1)
}

func TestChangeStatus_RejectRequiresReason(t *testing.T) {
	v := newValidator()
	draft := createDraft(t, v, salesActor, validInput())

	_, err := v.ChangeStatus(validation.Request{
		Actor:   managerActor,
		Current: draft,
		Status:  validation.StatusInput{Expected: "DRAFT", Target: "TIDAK_TERKIRIM", RejectionReason: "  "},
	})
	requireViolation(t, err, "rejectionReason")

	next, err := v.ChangeStatus(validation.Request{
		Actor:   managerActor,
		Current: draft,
		Status:  validation.StatusInput{Expected: "DRAFT", Target: "TIDAK_TERKIRIM", RejectionReason: "toko tutup"},
	})
	require.NoError(t, err)
	assert.Equal(t, "toko tutup", next.RejectionReason)
	assert.Equal(t, "toko tutup", next.History[1].Notes)
}

func TestChangeStatus_Errors(t *testing.T) {
	v := newValidator()
	draft := createDraft(t, v, salesActor, validInput())

	tests := []struct {
		name   string
		actor  permission.Actor
		status validation.StatusInput
		check  func(t *testing.T, err error)
	}{
		{
			name:   "sales cannot approve",
			actor:  salesActor,
			status: validation.StatusInput{Expected: "DRAFT", Target: "DISETUJUI"},
			check:  func(t *testing.T, err error) { assert.ErrorIs(t, err, errs.ErrPermissionDenied) },
		},
		{
			name:   "inactive basic user moving to draft",
			actor:  permission.Actor{ID: basicActor.ID, Name: basicActor.Name, Role: enum.RoleBasic},
			status: validation.StatusInput{Expected: "TERKIRIM", Target: "DRAFT"},
			check:  func(t *testing.T, err error) { assert.ErrorIs(t, err, errs.ErrPermissionDenied) },
		},
		{
			name:   "other sales user moving to draft",
			actor:  otherSales,
			status: validation.StatusInput{Expected: "TERKIRIM", Target: "DRAFT"},
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, errs.ErrPermissionDenied)
				var te *errs.TransitionError
				assert.False(t, errors.As(err, &te), "denial must not carry the current status")
			},
		},
		{
			name:   "owner cannot move own order back to draft",
			actor:  salesActor,
			status: validation.StatusInput{Expected: "DRAFT", Target: "DRAFT"},
			check:  func(t *testing.T, err error) { assert.ErrorIs(t, err, errs.ErrPermissionDenied) },
		},
		{
			name:   "stale expected status",
			actor:  managerActor,
			status: validation.StatusInput{Expected: "DISETUJUI", Target: "TERKIRIM"},
			check: func(t *testing.T, err error) {
				var te *errs.TransitionError
				require.True(t, errors.As(err, &te))
				assert.True(t, te.Stale)
				assert.ErrorIs(t, err, errs.ErrInvalidTransition)
			},
		},
		{
			name:   "skip to delivered",
			actor:  managerActor,
			status: validation.StatusInput{Expected: "DRAFT", Target: "TERKIRIM"},
			check: func(t *testing.T, err error) {
				var te *errs.TransitionError
				require.True(t, errors.As(err, &te))
				assert.False(t, te.Stale)
			},
		},
		{
			name:   "missing expected status",
			actor:  managerActor,
			status: validation.StatusInput{Target: "DISETUJUI"},
			check:  func(t *testing.T, err error) { requireViolation(t, err, "expectedStatus") },
		},
		{
			name:   "unknown expected status",
			actor:  managerActor,
			status: validation.StatusInput{Expected: "PENDING", Target: "DISETUJUI"},
			check:  func(t *testing.T, err error) { requireViolation(t, err, "expectedStatus") },
		},
		{
			name:   "unknown target",
			actor:  adminActor,
			status: validation.StatusInput{Expected: "DRAFT", Target: "LOST"},
			check:  func(t *testing.T, err error) { requireViolation(t, err, "status") },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, err := v.ChangeStatus(validation.Request{Actor: tt.actor, Current: draft, Status: tt.status})
			assert.Nil(t, next)
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestChangeStatus_DeliveryDate(t *testing.T) {
	v := newValidator()
	draft := createDraft(t, v, salesActor, validInput())
	approved, err := v.ChangeStatus(validation.Request{
		Actor: adminActor, Current: draft,
		Status: validation.StatusInput{Expected: "DRAFT", Target: "DISETUJUI"},
	})
	require.NoError(t, err)

	when := fixedNow.Add(48 * time.Hour)
	delivered, err := v.ChangeStatus(validation.Request{
		Actor: managerActor, Current: approved,
		Status: validation.StatusInput{Expected: "DISETUJUI", Target: "TERKIRIM", DeliveryDate: &when},
	})
	require.NoError(t, err)
	require.NotNil(t, delivered.DeliveryDate)
	assert.Equal(t, when, *delivered.DeliveryDate)
	assert.Len(t, delivered.History, 3)
}

func TestValidate_Dispatch(t *testing.T) {
	v := newValidator()
	o, err := v.Validate(validation.ModeCreate, validation.Request{Actor: salesActor, Input: validInput(), Catalog: testCatalog(), Sequence: 1})
	require.NoError(t, err)
	assert.Equal(t, "PO-20260115-001", o.OrderNumber)

	_, err = v.Validate(validation.Mode(99), validation.Request{})
	assert.Error(t, err)
	assert.Equal(t, "StatusChange", validation.ModeStatusChange.String())
}

func TestDiscountRounding(t *testing.T) {
	v := newValidator()
	in := validInput()
	// 3 x 5500 = 16500; 12.345% = 2036.925 -> 2036.93
	in.Items = []validation.ItemInput{{ProductID: productB, Quantity: 3, PriceType: "RETAIL",
		Discount: &validation.DiscountInput{Type: "PERCENTAGE", Value: dec("12.345")}}}

	o, err := v.Create(validation.Request{Actor: salesActor, Input: in, Catalog: testCatalog(), Sequence: 1})
	require.NoError(t, err)
	assert.Equal(t, "2036.93", o.Items[0].DiscountAmount.StringFixed(2))
	assert.Equal(t, "14463.07", o.Total.StringFixed(2))
	assert.True(t, pricing.Round2(o.Total).Equal(o.Total))
}
