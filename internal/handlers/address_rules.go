package handlers

import "snackstore/internal/models"

// The rules below own the "at most one default address" invariant. Every
// mutation clears the flag across the whole slice before setting it, so a
// document that somehow holds two defaults heals on the next write.

// appendAddress adds addr to the list. The first address is always the
// default; otherwise addr becomes default only when requested.
func appendAddress(addresses []models.Address, addr models.Address, wantDefault bool) []models.Address {
	addr.IsDefault = wantDefault || len(addresses) == 0
	if addr.IsDefault {
		for i := range addresses {
			addresses[i].IsDefault = false
		}
	}
	return append(addresses, addr)
}

// replaceAddress overwrites the fields of the address with the given id,
// promoting it to default when requested. Returns false if the id is
// unknown.
func replaceAddress(addresses []models.Address, id string, upd models.Address, wantDefault bool) bool {
	index := indexOfAddress(addresses, id)
	if index == -1 {
		return false
	}

	if wantDefault {
		for i := range addresses {
			addresses[i].IsDefault = false
		}
	}

	wasDefault := addresses[index].IsDefault
	addresses[index] = models.Address{
		ID:        id,
		Street:    upd.Street,
		City:      upd.City,
		State:     upd.State,
		ZipCode:   upd.ZipCode,
		IsDefault: wantDefault || wasDefault,
	}
	return true
}

// removeAddress deletes the address with the given id. When the default is
// removed and addresses remain, the first remaining address becomes the new
// default (list order, an intentionally implicit policy).
func removeAddress(addresses []models.Address, id string) ([]models.Address, bool) {
	index := indexOfAddress(addresses, id)
	if index == -1 {
		return addresses, false
	}

	wasDefault := addresses[index].IsDefault
	remaining := make([]models.Address, 0, len(addresses)-1)
	remaining = append(remaining, addresses[:index]...)
	remaining = append(remaining, addresses[index+1:]...)

	if wasDefault && len(remaining) > 0 {
		remaining[0].IsDefault = true
	}
	return remaining, true
}

// markDefaultAddress clears every default flag and sets it on the target.
// Idempotent. Returns false if the id is unknown.
func markDefaultAddress(addresses []models.Address, id string) bool {
	index := indexOfAddress(addresses, id)
	if index == -1 {
		return false
	}
	for i := range addresses {
		addresses[i].IsDefault = false
	}
	addresses[index].IsDefault = true
	return true
}

func indexOfAddress(addresses []models.Address, id string) int {
	for i, addr := range addresses {
		if addr.ID == id {
			return i
		}
	}
	return -1
}
