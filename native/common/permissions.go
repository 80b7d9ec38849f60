package common

import coreerrors "nhbenergy/core/errors"

var ErrNotOwner = coreerrors.Permission("caller is not the owner")

// Permissions decides whether a caller may run privileged operations.
type Permissions interface {
	RequireOwner(caller [20]byte) error
}

// OwnerPermissions grants privileged access to a single owner address.
type OwnerPermissions struct {
	Owner [20]byte
}

func (p OwnerPermissions) RequireOwner(caller [20]byte) error {
	if p.Owner == ([20]byte{}) || caller != p.Owner {
		return ErrNotOwner
	}
	return nil
}
