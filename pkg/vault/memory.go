package vault

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/chainsafe/canton-token-flows/internal/metrics"
	"github.com/chainsafe/canton-token-flows/pkg/ledger"
)

type memoryState struct {
	ledger.StateAndRef
	relevant bool
	consumed bool
}

// MemoryVault is an in-memory Vault
type MemoryVault struct {
	mu     sync.RWMutex
	states map[ledger.StateRef]*memoryState
	order  []ledger.StateRef
	txs    map[string]*ledger.CommittedTransaction
}

// NewMemoryVault creates an empty MemoryVault
func NewMemoryVault() *MemoryVault {
	return &MemoryVault{
		states: make(map[ledger.StateRef]*memoryState),
		txs:    make(map[string]*ledger.CommittedTransaction),
	}
}

func (v *MemoryVault) Record(_ context.Context, tx *ledger.CommittedTransaction, mode Visibility, relevant Relevance) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if _, ok := v.txs[tx.ID]; ok {
		return nil
	}
	v.txs[tx.ID] = tx
	for _, ref := range tx.InputRefs() {
		if s, ok := v.states[ref]; ok {
			s.consumed = true
		}
	}
	for _, out := range tx.OutputStates() {
		ours := relevant(out.Record)
		if !ours && mode == RelevantOnly {
			continue
		}
		v.states[out.Ref] = &memoryState{StateAndRef: out, relevant: ours}
		v.order = append(v.order, out.Ref)
	}
	metrics.TransactionsRecorded.WithLabelValues(string(mode)).Inc()
	return nil
}

func (v *MemoryVault) FindCurrentRecord(_ context.Context, linearID string) (*ledger.StateAndRef, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	for i := len(v.order) - 1; i >= 0; i-- {
		s := v.states[v.order[i]]
		if s.Record.LinearID == linearID && !s.consumed {
			sr := s.StateAndRef
			return &sr, nil
		}
	}
	return nil, fmt.Errorf("%w: record %s", ErrNotFound, linearID)
}

func (v *MemoryVault) Unconsumed(_ context.Context, tokenTypeID string, holderIDs []string) ([]ledger.StateAndRef, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	var out []ledger.StateAndRef
	for _, ref := range v.order {
		s := v.states[ref]
		if !s.relevant || s.consumed || s.Record.TokenType.ID != tokenTypeID {
			continue
		}
		if !containsID(holderIDs, s.Record.Holder.ID) {
			continue
		}
		out = append(out, s.StateAndRef)
	}
	return out, nil
}

func (v *MemoryVault) SumBalance(_ context.Context, tokenTypeID string) (decimal.Decimal, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	sum := decimal.Zero
	for _, s := range v.states {
		if s.relevant && !s.consumed && s.Record.Fungible && s.Record.TokenType.ID == tokenTypeID {
			sum = sum.Add(s.Record.Amount)
		}
	}
	return sum, nil
}

func (v *MemoryVault) Transaction(_ context.Context, id string) (*ledger.CommittedTransaction, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	tx, ok := v.txs[id]
	if !ok {
		return nil, fmt.Errorf("%w: transaction %s", ErrNotFound, id)
	}
	return tx, nil
}
