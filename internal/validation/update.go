package validation

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/tokoline/sales-api/internal/errs"
	"github.com/tokoline/sales-api/internal/order"
)

// Update validates new content for an existing order. Lines of the current
// order that are missing from the input, or flagged deleted, are kept as
// soft-deleted lines and excluded from totals. Order number, status and
// history are carried over unchanged.
func (v *Validator) Update(req Request) (*order.Order, error) {
	current := req.Current
	if current == nil {
		return nil, ErrNoCurrentOrder
	}
	if err := v.policy.CheckEdit(req.Actor, current); err != nil {
		return nil, err
	}

	in := req.Input
	existing := make(map[uuid.UUID]order.Item, len(current.Items))
	for _, it := range current.Items {
		existing[it.ID] = it
	}

	var vs errs.Violations
	v.checkInput(in, &vs)
	checkItems(in.Items, req.Catalog, &vs)
	checkDiscount(in.Discount, "discount", &vs)
	seenIDs := make(map[uuid.UUID]bool, len(in.Items))
	for i, it := range in.Items {
		if it.ID == nil {
			continue
		}
		if prev, ok := existing[*it.ID]; !ok {
			vs.Add(fmt.Sprintf("items[%d].id", i), "item does not belong to this order")
		} else if prev.Deleted && !it.Deleted {
			vs.Add(fmt.Sprintf("items[%d].id", i), "item was removed")
		}
		if seenIDs[*it.ID] {
			vs.Add(fmt.Sprintf("items[%d].id", i), "item listed more than once")
		}
		seenIDs[*it.ID] = true
	}
	if err := vs.Err(); err != nil {
		return nil, err
	}

	next := current.Clone()
	next.Notes = in.Notes
	next.Discount = in.Discount.toPricing()
	next.UpdatedAt = v.now()
	next.Items = nil

	kept := make(map[uuid.UUID]bool, len(in.Items))
	var overflow error
	for i, it := range in.Items {
		if it.Deleted {
			if it.ID != nil {
				gone := existing[*it.ID]
				gone.Deleted = true
				next.Items = append(next.Items, gone)
				kept[*it.ID] = true
			}
			continue
		}

		id := v.newID()
		if it.ID != nil {
			id = *it.ID
			kept[id] = true
		}
		item, err := priceItem(i, it, req.Catalog, id)
		if err != nil {
			if err := collectPricingError(err, &vs, &overflow); err != nil {
				return nil, err
			}
			continue
		}
		next.Items = append(next.Items, item)
	}
	if err := vs.Err(); err != nil {
		return nil, err
	}
	if overflow != nil {
		return nil, overflow
	}

	// Lines dropped from the request stay on record as deleted.
	for _, it := range current.Items {
		if kept[it.ID] {
			continue
		}
		it.Deleted = true
		next.Items = append(next.Items, it)
	}

	if err := applyTotals(next); err != nil {
		return nil, err
	}
	return next, nil
}
