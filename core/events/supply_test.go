package events

import (
	"math/big"
	"testing"
)

func TestTokenSupplyEvent(t *testing.T) {
	evt := TokenSupply{Token: "LNHB", Total: big.NewInt(4750), Delta: big.NewInt(-250), Reason: SupplyReasonBurn}.Event()
	if evt.Type != TypeTokenSupply {
		t.Fatalf("unexpected type: %s", evt.Type)
	}
	want := map[string]string{"token": "LNHB", "total": "4750", "delta": "-250", "reason": "burn"}
	for k, v := range want {
		if evt.Attributes[k] != v {
			t.Fatalf("attribute %s = %q, want %q", k, evt.Attributes[k], v)
		}
	}
}

func TestTokenSupplyEventWithoutAmounts(t *testing.T) {
	evt := TokenSupply{Token: "NHB", Reason: SupplyReasonMint}.Event()
	if evt.Attributes["total"] != "0" {
		t.Fatalf("nil total should render as zero, got %q", evt.Attributes["total"])
	}
	if _, ok := evt.Attributes["delta"]; ok {
		t.Fatalf("nil delta should be omitted")
	}
}
