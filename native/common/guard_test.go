package common

import (
	"errors"
	"testing"

	coreerrors "nhbenergy/core/errors"
)

func TestGuardHonoursPauseSet(t *testing.T) {
	pauses := NewPauseSet("lock")
	if err := Guard(pauses, "lock"); !errors.Is(err, ErrModulePaused) {
		t.Fatalf("expected paused error, got %v", err)
	}
	if err := Guard(pauses, "rewards"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	pauses.Set("lock", false)
	if err := Guard(pauses, "lock"); err != nil {
		t.Fatalf("expected unpaused module, got %v", err)
	}
	if err := Guard(nil, "lock"); err != nil {
		t.Fatalf("nil pause view must not block: %v", err)
	}
}

func TestOwnerPermissions(t *testing.T) {
	owner := [20]byte{7}
	perms := OwnerPermissions{Owner: owner}
	if err := perms.RequireOwner(owner); err != nil {
		t.Fatalf("owner rejected: %v", err)
	}
	err := perms.RequireOwner([20]byte{8})
	if !errors.Is(err, ErrNotOwner) || !errors.Is(err, coreerrors.ErrPermission) {
		t.Fatalf("expected permission error, got %v", err)
	}
	if err := (OwnerPermissions{}).RequireOwner([20]byte{}); err == nil {
		t.Fatalf("unset owner must reject every caller")
	}
}
