package permission

import (
	"github.com/google/uuid"
	"github.com/tokoline/sales-api/internal/enum"
)

// Actor is the authenticated user as seen by the engine.
type Actor struct {
	ID       uuid.UUID
	Name     string
	Role     enum.Role
	IsActive bool
}

// Can checks p for the actor. ownerID is only consulted for ownership-scoped
// permissions; pass uuid.Nil when there is no resource.
func (a Actor) Can(p Permission, ownerID uuid.UUID) bool {
	return Authorize(a.Role, p, a.IsActive, idPtr(a.ID), idPtr(ownerID))
}

// CanAny is the any-of composite for a single resource.
func (a Actor) CanAny(ownerID uuid.UUID, perms ...Permission) bool {
	return AuthorizeAny(a.Role, perms, a.IsActive, idPtr(a.ID), idPtr(ownerID))
}

// CanAll is the all-of composite for a single resource.
func (a Actor) CanAll(ownerID uuid.UUID, perms ...Permission) bool {
	return AuthorizeAll(a.Role, perms, a.IsActive, idPtr(a.ID), idPtr(ownerID))
}

func (a Actor) IsAdmin() bool {
	return a.Role == enum.RoleAdmin
}

func idPtr(id uuid.UUID) *uuid.UUID {
	if id == uuid.Nil {
		return nil
	}
	return &id
}
