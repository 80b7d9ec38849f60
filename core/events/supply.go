package events

import (
	"math/big"

	"nhbenergy/core/types"
)

const (
	// TypeTokenSupply is emitted whenever mint or burn moves a token's supply.
	TypeTokenSupply = "token.supply"

	SupplyReasonMint = "mint"
	SupplyReasonBurn = "burn"
)

// TokenSupply reports the new total of a token after a supply change. Delta is
// negative for burns.
type TokenSupply struct {
	Token  string
	Total  *big.Int
	Delta  *big.Int
	Reason string
}

func (TokenSupply) EventType() string { return TypeTokenSupply }

func (e TokenSupply) Event() *types.Event {
	attrs := map[string]string{
		"token":  e.Token,
		"total":  bigString(e.Total),
		"reason": e.Reason,
	}
	if e.Delta != nil {
		attrs["delta"] = e.Delta.String()
	}
	return &types.Event{Type: TypeTokenSupply, Attributes: attrs}
}
