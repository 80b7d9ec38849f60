package bank

import (
	"errors"
	"math/big"
	"testing"

	coreerrors "nhbenergy/core/errors"
	"nhbenergy/core/events"
)

type lotKey struct {
	holder [20]byte
	token  string
	nonce  uint64
}

type memState struct {
	balances map[lotKey]*big.Int
	supply   map[string]*big.Int
}

func newMemState() *memState {
	return &memState{balances: make(map[lotKey]*big.Int), supply: make(map[string]*big.Int)}
}

func (m *memState) BankBalance(holder [20]byte, token string, nonce uint64) (*big.Int, error) {
	if v, ok := m.balances[lotKey{holder, token, nonce}]; ok {
		return new(big.Int).Set(v), nil
	}
	return big.NewInt(0), nil
}

func (m *memState) BankPutBalance(holder [20]byte, token string, nonce uint64, amount *big.Int) error {
	m.balances[lotKey{holder, token, nonce}] = new(big.Int).Set(amount)
	return nil
}

func (m *memState) TokenSupply(token string) (*big.Int, error) {
	if v, ok := m.supply[token]; ok {
		return new(big.Int).Set(v), nil
	}
	return big.NewInt(0), nil
}

func (m *memState) SetTokenSupply(token string, amount *big.Int) error {
	m.supply[token] = new(big.Int).Set(amount)
	return nil
}

func TestMintTransferBurn(t *testing.T) {
	ledger := NewLedger()
	ledger.SetState(newMemState())
	rec := &events.Recorder{}
	ledger.SetEmitter(rec)

	alice, bob := [20]byte{1}, [20]byte{2}
	if err := ledger.Mint(alice, "lnhb", 3, big.NewInt(100)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := ledger.Transfer(alice, bob, "LNHB", 3, big.NewInt(40)); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if err := ledger.Burn(bob, "LNHB", 3, big.NewInt(15)); err != nil {
		t.Fatalf("burn: %v", err)
	}

	aliceBal, _ := ledger.Balance(alice, "LNHB", 3)
	bobBal, _ := ledger.Balance(bob, "LNHB", 3)
	otherNonce, _ := ledger.Balance(alice, "LNHB", 4)
	supply, _ := ledger.Supply("LNHB")
	if aliceBal.Int64() != 60 || bobBal.Int64() != 25 || otherNonce.Sign() != 0 {
		t.Fatalf("unexpected balances alice=%s bob=%s other=%s", aliceBal, bobBal, otherNonce)
	}
	if supply.Int64() != 85 {
		t.Fatalf("unexpected supply %s", supply)
	}
	if len(rec.Events()) != 2 {
		t.Fatalf("expected mint and burn supply events, got %d", len(rec.Events()))
	}
}

func TestTransferRejectsOverdraft(t *testing.T) {
	ledger := NewLedger()
	ledger.SetState(newMemState())
	err := ledger.Transfer([20]byte{1}, [20]byte{2}, "NHB", 0, big.NewInt(1))
	if !errors.Is(err, errInsufficientBalance) || !errors.Is(err, coreerrors.ErrValidation) {
		t.Fatalf("expected insufficient balance, got %v", err)
	}
	if err := ledger.Mint([20]byte{1}, "NHB", 0, big.NewInt(0)); !errors.Is(err, errInvalidAmount) {
		t.Fatalf("expected invalid amount, got %v", err)
	}
	if err := ledger.Mint([20]byte{1}, " ", 0, big.NewInt(1)); !errors.Is(err, errUnknownToken) {
		t.Fatalf("expected missing token error, got %v", err)
	}
}
