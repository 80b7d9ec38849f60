package state

import (
	"fmt"
	"math/big"
)

// BankBalance returns the holder's balance of (token, nonce). Missing entries
// default to zero.
func (m *Manager) BankBalance(holder [20]byte, token string, nonce uint64) (*big.Int, error) {
	return m.bigOrZero(balanceKey(holder, token, nonce))
}

func (m *Manager) BankPutBalance(holder [20]byte, token string, nonce uint64, amount *big.Int) error {
	if normalizeToken(token) == "" {
		return fmt.Errorf("token symbol required")
	}
	if amount == nil || amount.Sign() == 0 {
		return m.KVDelete(balanceKey(holder, token, nonce))
	}
	return m.putBig(balanceKey(holder, token, nonce), amount)
}

// TokenSupply returns the persisted total supply for the provided token. Missing
// entries default to zero.
func (m *Manager) TokenSupply(token string) (*big.Int, error) {
	if normalizeToken(token) == "" {
		return nil, fmt.Errorf("token symbol required")
	}
	return m.bigOrZero(tokenSupplyKey(token))
}

// SetTokenSupply overwrites the stored total supply for the token.
func (m *Manager) SetTokenSupply(token string, amount *big.Int) error {
	normalized := normalizeToken(token)
	if normalized == "" {
		return fmt.Errorf("token symbol required")
	}
	if amount != nil && amount.Sign() < 0 {
		return fmt.Errorf("token %s supply cannot be negative", normalized)
	}
	return m.putBig(tokenSupplyKey(normalized), amount)
}
