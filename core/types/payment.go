package types

import (
	"math/big"
	"sort"
)

// Payment moves Amount units of the (Token, Nonce) lot. Fungible tokens use
// nonce zero.
type Payment struct {
	Token  string
	Nonce  uint64
	Amount *big.Int
}

// TokenAmount pairs a token id with a quantity.
type TokenAmount struct {
	Token  string
	Amount *big.Int
}

// Clone returns a deep copy.
func (p Payment) Clone() Payment {
	out := p
	if p.Amount != nil {
		out.Amount = new(big.Int).Set(p.Amount)
	}
	return out
}

// MergeTokenAmounts folds entries with the same token together, drops zero
// amounts and returns the result sorted by token id.
func MergeTokenAmounts(in ...[]TokenAmount) []TokenAmount {
	totals := make(map[string]*big.Int)
	for _, list := range in {
		for _, entry := range list {
			if entry.Amount == nil || entry.Amount.Sign() == 0 {
				continue
			}
			acc, ok := totals[entry.Token]
			if !ok {
				acc = new(big.Int)
				totals[entry.Token] = acc
			}
			acc.Add(acc, entry.Amount)
		}
	}
	out := make([]TokenAmount, 0, len(totals))
	for token, amount := range totals {
		if amount.Sign() == 0 {
			continue
		}
		out = append(out, TokenAmount{Token: token, Amount: amount})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Token < out[j].Token })
	return out
}

// CloneTokenAmounts deep copies a token amount list.
func CloneTokenAmounts(in []TokenAmount) []TokenAmount {
	if in == nil {
		return nil
	}
	out := make([]TokenAmount, len(in))
	for i, entry := range in {
		out[i] = TokenAmount{Token: entry.Token}
		if entry.Amount != nil {
			out[i].Amount = new(big.Int).Set(entry.Amount)
		}
	}
	return out
}
