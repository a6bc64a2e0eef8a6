package service

import (
	"github.com/google/uuid"
	"github.com/tokoline/sales-api/internal/errs"
	"github.com/tokoline/sales-api/internal/permission"
)

// readScope resolves a list request to "everything" (nil) or "own records"
// (the actor's ID).
func readScope(actor permission.Actor, all, own permission.Permission) (*uuid.UUID, error) {
	if actor.Can(all, uuid.Nil) {
		return nil, nil
	}
	if actor.Can(own, actor.ID) {
		id := actor.ID
		return &id, nil
	}
	return nil, errs.ErrPermissionDenied
}

// ClampPage applies the default page size of 20 and the maximum of 100.
func ClampPage(limit, offset int) (int32, int32) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return int32(limit), int32(offset)
}
