package ws

import "go-pos-ws/internal/model"

// Pending maps product id to the current_stock a local write expects once it
// lands. Entries are dropped by Reconcile when the feed confirms them.
type Pending map[uint]int

// Reconcile merges an authoritative product list with pending optimistic
// stock. While a write is unconfirmed the lower expected value is shown, so a
// re-fetch that raced ahead of the write does not put sold stock back.
// A pending entry is confirmed once authoritative stock is at or below it;
// entries for products no longer in the list are dropped.
func Reconcile(authoritative []model.SessionProduct, pending Pending) []model.SessionProduct {
	out := make([]model.SessionProduct, len(authoritative))
	present := make(map[uint]bool, len(authoritative))
	for i, p := range authoritative {
		present[p.ID] = true
		if expected, ok := pending[p.ID]; ok {
			if p.CurrentStock <= expected {
				delete(pending, p.ID)
			} else {
				p.CurrentStock = expected
			}
		}
		out[i] = p
	}
	for id := range pending {
		if !present[id] {
			delete(pending, id)
		}
	}
	return out
}
