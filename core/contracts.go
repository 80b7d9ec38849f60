package core

import (
	"fmt"
	"math/big"
	"sort"
	"sync"

	coreerrors "nhbenergy/core/errors"
	"nhbenergy/core/types"
)

var (
	errUnknownContract = coreerrors.Validation("contracts: destination is not a registered contract")
	errUnknownEndpoint = coreerrors.Validation("contracts: endpoint not exposed by contract")
)

// ContractHandler receives a payment already credited to the contract.
type ContractHandler func(from [20]byte, payment types.Payment) error

type transferer interface {
	Transfer(from, to [20]byte, token string, nonce uint64, amount *big.Int) error
}

// ContractRegistry maps built-in contract addresses to their payable
// endpoints.
type ContractRegistry struct {
	mu        sync.RWMutex
	bank      transferer
	contracts map[[20]byte]map[string]ContractHandler
}

// NewContractRegistry returns an empty registry moving funds through bank.
func NewContractRegistry(bank transferer) *ContractRegistry {
	return &ContractRegistry{bank: bank, contracts: make(map[[20]byte]map[string]ContractHandler)}
}

// Register exposes handler at (addr, endpoint).
func (r *ContractRegistry) Register(addr [20]byte, endpoint string, handler ContractHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	endpoints, ok := r.contracts[addr]
	if !ok {
		endpoints = make(map[string]ContractHandler)
		r.contracts[addr] = endpoints
	}
	endpoints[endpoint] = handler
}

// IsContract reports whether addr is registered.
func (r *ContractRegistry) IsContract(addr [20]byte) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.contracts[addr]
	return ok
}

// Endpoints lists the endpoints exposed by addr in sorted order.
func (r *ContractRegistry) Endpoints(addr [20]byte) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.contracts[addr]))
	for name := range r.contracts[addr] {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Forward transfers payment from the sender to the contract and invokes the
// endpoint.
func (r *ContractRegistry) Forward(from, to [20]byte, endpoint string, payment types.Payment) error {
	r.mu.RLock()
	endpoints, ok := r.contracts[to]
	var handler ContractHandler
	if ok {
		handler = endpoints[endpoint]
	}
	r.mu.RUnlock()
	if !ok {
		return errUnknownContract
	}
	if handler == nil {
		return fmt.Errorf("%w: %s", errUnknownEndpoint, endpoint)
	}
	if err := r.bank.Transfer(from, to, payment.Token, payment.Nonce, payment.Amount); err != nil {
		return err
	}
	return handler(from, payment.Clone())
}
