package lock

// MergePolicy picks the attributes that survive when two locked lots are
// merged into the single pending-fees lot.
type MergePolicy func(existing, incoming Lot) Lot

// KeepEarliestAcquired retains the lot created first, breaking ties on the
// lower nonce.
func KeepEarliestAcquired(existing, incoming Lot) Lot {
	if incoming.CreatedEpoch < existing.CreatedEpoch {
		return incoming
	}
	if incoming.CreatedEpoch == existing.CreatedEpoch && incoming.Nonce < existing.Nonce {
		return incoming
	}
	return existing
}

// KeepLaterUnlock retains the lot maturing last so merged fees never unlock
// earlier than any of their parts.
func KeepLaterUnlock(existing, incoming Lot) Lot {
	if incoming.UnlockEpoch > existing.UnlockEpoch {
		return incoming
	}
	return existing
}

// KeepFirst retains the lot already pending regardless of the incoming one.
func KeepFirst(existing, _ Lot) Lot { return existing }

// MergePolicyByName resolves a configured policy name.
func MergePolicyByName(name string) (MergePolicy, bool) {
	switch name {
	case "", "earliest-acquired":
		return KeepEarliestAcquired, true
	case "later-unlock":
		return KeepLaterUnlock, true
	case "keep-first":
		return KeepFirst, true
	default:
		return nil, false
	}
}
