package bank

import (
	"fmt"
	"math/big"
	"strings"

	coreerrors "nhbenergy/core/errors"
	"nhbenergy/core/events"
)

var (
	errNilState            = coreerrors.Invariant("bank: state not configured")
	errInvalidAmount       = coreerrors.Validation("bank: amount must be positive")
	errUnknownToken        = coreerrors.Validation("bank: token symbol required")
	errInsufficientBalance = coreerrors.Validation("bank: insufficient balance")
	errSupplyUnderflow     = coreerrors.Invariant("bank: supply underflow")
)

type engineState interface {
	BankBalance(holder [20]byte, token string, nonce uint64) (*big.Int, error)
	BankPutBalance(holder [20]byte, token string, nonce uint64, amount *big.Int) error
	TokenSupply(token string) (*big.Int, error)
	SetTokenSupply(token string, amount *big.Int) error
}

// Ledger implements mint, burn and transfer over (holder, token, nonce)
// balances.
type Ledger struct {
	state   engineState
	emitter events.Emitter
}

func NewLedger() *Ledger {
	return &Ledger{emitter: events.NoopEmitter{}}
}

func (l *Ledger) SetState(state engineState) { l.state = state }

func (l *Ledger) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		l.emitter = events.NoopEmitter{}
		return
	}
	l.emitter = emitter
}

// NormalizeToken canonicalises token identifiers.
func NormalizeToken(token string) string {
	return strings.ToUpper(strings.TrimSpace(token))
}

func (l *Ledger) check(token string, amount *big.Int) (string, error) {
	if l == nil || l.state == nil {
		return "", errNilState
	}
	normalized := NormalizeToken(token)
	if normalized == "" {
		return "", errUnknownToken
	}
	if amount == nil || amount.Sign() <= 0 {
		return "", errInvalidAmount
	}
	return normalized, nil
}

// Balance returns the holder's balance of the (token, nonce) lot.
func (l *Ledger) Balance(holder [20]byte, token string, nonce uint64) (*big.Int, error) {
	if l == nil || l.state == nil {
		return nil, errNilState
	}
	return l.state.BankBalance(holder, NormalizeToken(token), nonce)
}

// Supply returns the total supply of token across every nonce.
func (l *Ledger) Supply(token string) (*big.Int, error) {
	if l == nil || l.state == nil {
		return nil, errNilState
	}
	return l.state.TokenSupply(NormalizeToken(token))
}

func (l *Ledger) Mint(to [20]byte, token string, nonce uint64, amount *big.Int) error {
	normalized, err := l.check(token, amount)
	if err != nil {
		return err
	}
	if err := l.credit(to, normalized, nonce, amount); err != nil {
		return err
	}
	return l.adjustSupply(normalized, amount, events.SupplyReasonMint)
}

func (l *Ledger) Burn(from [20]byte, token string, nonce uint64, amount *big.Int) error {
	normalized, err := l.check(token, amount)
	if err != nil {
		return err
	}
	if err := l.debit(from, normalized, nonce, amount); err != nil {
		return err
	}
	return l.adjustSupply(normalized, new(big.Int).Neg(amount), events.SupplyReasonBurn)
}

func (l *Ledger) Transfer(from, to [20]byte, token string, nonce uint64, amount *big.Int) error {
	normalized, err := l.check(token, amount)
	if err != nil {
		return err
	}
	if err := l.debit(from, normalized, nonce, amount); err != nil {
		return err
	}
	return l.credit(to, normalized, nonce, amount)
}

func (l *Ledger) credit(holder [20]byte, token string, nonce uint64, amount *big.Int) error {
	current, err := l.state.BankBalance(holder, token, nonce)
	if err != nil {
		return err
	}
	return l.state.BankPutBalance(holder, token, nonce, new(big.Int).Add(current, amount))
}

func (l *Ledger) debit(holder [20]byte, token string, nonce uint64, amount *big.Int) error {
	current, err := l.state.BankBalance(holder, token, nonce)
	if err != nil {
		return err
	}
	if current.Cmp(amount) < 0 {
		return fmt.Errorf("%w: %s/%d has %s, need %s", errInsufficientBalance, token, nonce, current, amount)
	}
	return l.state.BankPutBalance(holder, token, nonce, new(big.Int).Sub(current, amount))
}

func (l *Ledger) adjustSupply(token string, delta *big.Int, reason string) error {
	current, err := l.state.TokenSupply(token)
	if err != nil {
		return err
	}
	updated := new(big.Int).Add(current, delta)
	if updated.Sign() < 0 {
		return fmt.Errorf("%w: %s", errSupplyUnderflow, token)
	}
	if err := l.state.SetTokenSupply(token, updated); err != nil {
		return err
	}
	l.emitter.Emit(events.TokenSupply{Token: token, Total: updated, Delta: new(big.Int).Set(delta), Reason: reason})
	return nil
}
