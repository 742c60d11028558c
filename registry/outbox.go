// Copyright (c) 2025 The Alethea Network developers

// Distributed under the MIT software license, see the accompanying
// file LICENSE or <https://opensource.org/licenses/MIT>

package registry

import (
	"math/big"
	"sync"

	"github.com/alethea-net/oracle/alethea"
)

// ResolutionCallback notifies an external consumer, typically a prediction
// market, that its query settled.
type ResolutionCallback struct {
	QueryID    uint64
	Target     alethea.Address
	Outcome    string
	ResolvedAt uint64
	Data       []byte
}

// Outbox delivers resolution callbacks to external consumers.
type Outbox interface {
	SendResolution(cb *ResolutionCallback) error
}

// MemOutbox buffers callbacks in memory until drained.
type MemOutbox struct {
	mu  sync.Mutex
	buf []*ResolutionCallback
}

func (o *MemOutbox) SendResolution(cb *ResolutionCallback) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.buf = append(o.buf, cb)
	return nil
}

// Drain returns and clears the buffered callbacks.
func (o *MemOutbox) Drain() []*ResolutionCallback {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := o.buf
	o.buf = nil
	return out
}

// TokenLedger settles token movements against an external balance system.
// The registry calls Deposit when stake or rewards enter escrow and Payout
// when funds return to a voter.
type TokenLedger interface {
	Deposit(from alethea.Address, amount *big.Int) error
	Payout(to alethea.Address, amount *big.Int) error
}

// NopLedger accepts every transfer. Used when balances are tracked off-node.
type NopLedger struct{}

func (NopLedger) Deposit(alethea.Address, *big.Int) error { return nil }
func (NopLedger) Payout(alethea.Address, *big.Int) error  { return nil }
