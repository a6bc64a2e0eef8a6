// Package permission decides whether an actor may perform an action.
//
// The role table is a flat, explicit enumeration: no role inherits another
// role's set at runtime, even though the documented hierarchy is monotonic.
package permission

import (
	"github.com/google/uuid"
	"github.com/tokoline/sales-api/internal/enum"
)

// Scope tells the evaluator how a permission is checked once the role holds it.
type Scope int

const (
	// Unconditional permissions only need role membership.
	Unconditional Scope = iota
	// OwnershipScoped permissions also require the actor to own the resource.
	OwnershipScoped
)

// Permission is a capability token of the form resource:action, tagged with
// its scope.
type Permission struct {
	Code  string
	Scope Scope
}

func (p Permission) String() string {
	return p.Code
}

func unconditional(code string) Permission { return Permission{Code: code, Scope: Unconditional} }
func ownerScoped(code string) Permission   { return Permission{Code: code, Scope: OwnershipScoped} }

var (
	// DashboardRead is the baseline permission. It is granted to every role
	// and survives account deactivation.
	DashboardRead = unconditional("dashboard:read")

	UserRead   = unconditional("user:read")
	UserManage = unconditional("user:manage")

	StoreRead   = unconditional("store:read")
	StoreManage = unconditional("store:manage")

	ProductRead   = unconditional("product:read")
	ProductManage = unconditional("product:manage")

	VisitRead    = unconditional("visit:read")
	VisitReadOwn = ownerScoped("visit:read-own")
	VisitCreate  = unconditional("visit:create")
	VisitUpdate  = unconditional("visit:update")

	OrderRead    = unconditional("order:read")
	OrderReadOwn = ownerScoped("order:read-own")
	OrderCreate  = unconditional("order:create")
	OrderUpdate  = unconditional("order:update")
	OrderApprove = unconditional("order:approve")
	OrderReject  = unconditional("order:reject")
	OrderDeliver = unconditional("order:deliver")

	PurchaseOrderGenerate = unconditional("purchase-order:generate")
	ReportRead            = unconditional("report:read")
)

// All lists every known permission in a stable order.
var All = []Permission{
	DashboardRead,
	UserRead, UserManage,
	StoreRead, StoreManage,
	ProductRead, ProductManage,
	VisitRead, VisitReadOwn, VisitCreate, VisitUpdate,
	OrderRead, OrderReadOwn, OrderCreate, OrderUpdate, OrderApprove, OrderReject, OrderDeliver,
	PurchaseOrderGenerate, ReportRead,
}

// Lookup resolves a code such as "order:approve" to its Permission.
func Lookup(code string) (Permission, bool) {
	for _, p := range All {
		if p.Code == code {
			return p, true
		}
	}
	return Permission{}, false
}

type set map[string]struct{}

func setOf(perms ...Permission) set {
	s := make(set, len(perms))
	for _, p := range perms {
		s[p.Code] = struct{}{}
	}
	return s
}

// roleTable is listed explicitly per role on purpose; see package doc.
var roleTable = map[enum.Role]set{
	enum.RoleAdmin: setOf(
		DashboardRead,
		UserRead, UserManage,
		StoreRead, StoreManage,
		ProductRead, ProductManage,
		VisitRead, VisitReadOwn, VisitCreate, VisitUpdate,
		OrderRead, OrderReadOwn, OrderCreate, OrderUpdate, OrderApprove, OrderReject, OrderDeliver,
		PurchaseOrderGenerate, ReportRead,
	),
	enum.RoleManager: setOf(
		DashboardRead,
		UserRead,
		StoreRead, StoreManage,
		ProductRead, ProductManage,
		VisitRead, VisitReadOwn,
		OrderRead, OrderReadOwn, OrderApprove, OrderReject, OrderDeliver,
		PurchaseOrderGenerate, ReportRead,
	),
	enum.RoleSales: setOf(
		DashboardRead,
		StoreRead, StoreManage,
		ProductRead,
		VisitReadOwn, VisitCreate, VisitUpdate,
		OrderReadOwn, OrderCreate, OrderUpdate,
	),
	enum.RoleBasic: setOf(
		DashboardRead,
		StoreRead,
		ProductRead,
	),
}

// RoleHas reports table membership only, ignoring activity and ownership.
func RoleHas(role enum.Role, p Permission) bool {
	_, ok := roleTable[role][p.Code]
	return ok
}

// Authorize decides a single permission check. It never fails: a denial is
// simply false and the caller decides how to surface it.
func Authorize(role enum.Role, p Permission, isActive bool, actingUserID, resourceOwnerID *uuid.UUID) bool {
	if !isActive {
		return p.Code == DashboardRead.Code && RoleHas(role, p)
	}
	if !RoleHas(role, p) {
		return false
	}
	switch p.Scope {
	case Unconditional:
		return true
	case OwnershipScoped:
		if actingUserID == nil || resourceOwnerID == nil {
			return false
		}
		return *actingUserID == *resourceOwnerID
	}
	return false
}

// AuthorizeAny passes when at least one permission passes.
func AuthorizeAny(role enum.Role, perms []Permission, isActive bool, actingUserID, resourceOwnerID *uuid.UUID) bool {
	for _, p := range perms {
		if Authorize(role, p, isActive, actingUserID, resourceOwnerID) {
			return true
		}
	}
	return false
}

// AuthorizeAll passes only when every permission passes. An empty list is
// denied.
func AuthorizeAll(role enum.Role, perms []Permission, isActive bool, actingUserID, resourceOwnerID *uuid.UUID) bool {
	if len(perms) == 0 {
		return false
	}
	for _, p := range perms {
		if !Authorize(role, p, isActive, actingUserID, resourceOwnerID) {
			return false
		}
	}
	return true
}

// ForTransition maps a target order status to the permission needed to move
// an order into it.
func ForTransition(target enum.OrderStatus) (Permission, bool) {
	switch target {
	case enum.OrderStatusApproved:
		return OrderApprove, true
	case enum.OrderStatusNotDelivered:
		return OrderReject, true
	case enum.OrderStatusDelivered:
		return OrderDeliver, true
	}
	return Permission{}, false
}
