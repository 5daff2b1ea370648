// Package store provides contract.Store implementations.
package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/warp/contract-admin/contract"
)

// =============================================================================
// MEMORY STORE - Session-scoped, in-process
// =============================================================================

// Memory holds one session's records. Every read returns copies.
type Memory struct {
	mu         sync.RWMutex
	workOrders []contract.WorkOrder
	invoices   []contract.Invoice
}

var _ contract.Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) WorkOrders() contract.Collection[contract.WorkOrder] {
	return m.workOrderTable(false)
}

func (m *Memory) Invoices() contract.Collection[contract.Invoice] {
	return m.invoiceTable(false)
}

func (m *Memory) workOrderTable(inTx bool) *table[contract.WorkOrder] {
	return &table[contract.WorkOrder]{mu: &m.mu, rows: &m.workOrders, clone: contract.WorkOrder.Clone, inTx: inTx}
}

func (m *Memory) invoiceTable(inTx bool) *table[contract.Invoice] {
	return &table[contract.Invoice]{mu: &m.mu, rows: &m.invoices, clone: contract.Invoice.Clone, inTx: inTx}
}

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback on error.
func (m *Memory) WithTx(ctx context.Context, fn func(contract.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.snapshot()

	if err := fn(&txMemoryView{parent: m}); err != nil {
		m.restore(snapshot)
		return err
	}
	return nil
}

type memorySnapshot struct {
	workOrders []contract.WorkOrder
	invoices   []contract.Invoice
}

// snapshot copies the slices only. Writes replace whole records, so the
// records themselves are never mutated in place.
func (m *Memory) snapshot() memorySnapshot {
	return memorySnapshot{
		workOrders: append([]contract.WorkOrder(nil), m.workOrders...),
		invoices:   append([]contract.Invoice(nil), m.invoices...),
	}
}

func (m *Memory) restore(s memorySnapshot) {
	m.workOrders = s.workOrders
	m.invoices = s.invoices
}

// txMemoryView runs under the parent's write lock.
type txMemoryView struct {
	parent *Memory
}

func (tv *txMemoryView) WorkOrders() contract.Collection[contract.WorkOrder] {
	return tv.parent.workOrderTable(true)
}

func (tv *txMemoryView) Invoices() contract.Collection[contract.Invoice] {
	return tv.parent.invoiceTable(true)
}

// WithTx nests by running fn on the same view; the outer transaction owns
// rollback.
func (tv *txMemoryView) WithTx(_ context.Context, fn func(contract.Store) error) error {
	return fn(tv)
}

// =============================================================================
// TABLE - Ordered rows of one record type
// =============================================================================

type table[T any] struct {
	mu    *sync.RWMutex
	rows  *[]T
	clone func(T) T
	// inTx tables run under a lock already held by WithTx.
	inTx bool
}

func (t *table[T]) lock() func() {
	if t.inTx {
		return func() {}
	}
	t.mu.Lock()
	return t.mu.Unlock
}

func (t *table[T]) rlock() func() {
	if t.inTx {
		return func() {}
	}
	t.mu.RLock()
	return t.mu.RUnlock
}

func (t *table[T]) checkIndex(index int) error {
	if index < 0 || index >= len(*t.rows) {
		return fmt.Errorf("%w: %d (len %d)", contract.ErrIndexOutOfRange, index, len(*t.rows))
	}
	return nil
}

func (t *table[T]) Append(_ context.Context, rec T) (int, error) {
	defer t.lock()()
	*t.rows = append(*t.rows, t.clone(rec))
	return len(*t.rows) - 1, nil
}

func (t *table[T]) Get(_ context.Context, index int) (T, error) {
	defer t.rlock()()
	if err := t.checkIndex(index); err != nil {
		var zero T
		return zero, err
	}
	return t.clone((*t.rows)[index]), nil
}

func (t *table[T]) Update(_ context.Context, index int, patch func(*T) error) error {
	defer t.lock()()
	if err := t.checkIndex(index); err != nil {
		return err
	}
	rec := t.clone((*t.rows)[index])
	if err := patch(&rec); err != nil {
		return err
	}
	// Copy-on-write keeps snapshots taken by WithTx intact.
	rows := append([]T(nil), *t.rows...)
	rows[index] = t.clone(rec)
	*t.rows = rows
	return nil
}

func (t *table[T]) RemoveAt(_ context.Context, index int) (T, error) {
	defer t.lock()()
	if err := t.checkIndex(index); err != nil {
		var zero T
		return zero, err
	}
	removed := (*t.rows)[index]
	rows := make([]T, 0, len(*t.rows)-1)
	rows = append(rows, (*t.rows)[:index]...)
	rows = append(rows, (*t.rows)[index+1:]...)
	*t.rows = rows
	return t.clone(removed), nil
}

func (t *table[T]) FindAll(_ context.Context, match func(T) bool) ([]contract.Row[T], error) {
	defer t.rlock()()
	var out []contract.Row[T]
	for i, rec := range *t.rows {
		c := t.clone(rec)
		if match(c) {
			out = append(out, contract.Row[T]{Index: i, Record: c})
		}
	}
	return out, nil
}

func (t *table[T]) All(_ context.Context) ([]T, error) {
	defer t.rlock()()
	out := make([]T, len(*t.rows))
	for i, rec := range *t.rows {
		out[i] = t.clone(rec)
	}
	return out, nil
}

func (t *table[T]) Len(_ context.Context) (int, error) {
	defer t.rlock()()
	return len(*t.rows), nil
}
