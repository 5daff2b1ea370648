/*
book.go - The contract book service

PURPOSE:
  Book is the only writer to a Store. Every operation finalizes its draft
  first, then runs the store-wide checks (duplicate keys, reference
  guards) and the write inside one WithTx, so a rejected submit leaves
  the Store untouched.

OPERATIONS:
  Work orders: CreateWorkOrder, EditWorkOrder, AddItem, RemoveItem,
               DeleteWorkOrder, WorkOrders, GetWorkOrder, ResolveItem
  Invoices:    CreateInvoice, EditInvoice, RecordMilestonePayment,
               DeleteInvoice, Invoices, GetInvoice, InvoicesFor

FATAL VS WARNING:
  Errors reject the submit. Warnings ride along with a successful result
  and are logged at warn level.
*/
package contract

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Book struct {
	store Store
	log   *zap.Logger
	now   func() time.Time
	newID func() string
}

type Option func(*Book)

func WithLogger(l *zap.Logger) Option {
	return func(b *Book) { b.log = l }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(b *Book) { b.now = now }
}

// WithIDGenerator replaces the work-order ID generator.
func WithIDGenerator(fn func() string) Option {
	return func(b *Book) { b.newID = fn }
}

func NewBook(store Store, opts ...Option) *Book {
	b := &Book{
		store: store,
		log:   zap.NewNop(),
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Book) warn(msg string, warnings []Warning, fields ...zap.Field) {
	for _, w := range warnings {
		b.log.Warn(msg, append(fields, zap.String("code", w.Code), zap.String("detail", w.Message))...)
	}
}

// =============================================================================
// WORK ORDERS
// =============================================================================

func (b *Book) CreateWorkOrder(ctx context.Context, d WorkOrderDraft) (WorkOrder, []Warning, error) {
	wo, warnings, err := d.Finalize(b.newID(), b.now())
	if err != nil {
		return WorkOrder{}, nil, err
	}

	err = b.store.WithTx(ctx, func(s Store) error {
		if err := checkDuplicateItems(ctx, s, wo.ItemKeys()); err != nil {
			return err
		}
		_, err := s.WorkOrders().Append(ctx, wo)
		return err
	})
	if err != nil {
		b.log.Info("work order rejected", zap.String("key", wo.WorkOrderKey.String()), zap.Error(err))
		return WorkOrder{}, nil, err
	}

	b.log.Info("work order created",
		zap.String("id", wo.ID),
		zap.String("key", wo.WorkOrderKey.String()),
		zap.Int("items", len(wo.Items)))
	b.warn("work order warning", warnings, zap.String("id", wo.ID))
	return wo, warnings, nil
}

func (b *Book) EditWorkOrder(ctx context.Context, id string, e WorkOrderEdit) (WorkOrder, []Warning, error) {
	var out WorkOrder
	var warnings []Warning

	err := b.store.WithTx(ctx, func(s Store) error {
		row, err := findWorkOrder(ctx, s, id)
		if err != nil {
			return err
		}
		return s.WorkOrders().Update(ctx, row.Index, func(wo *WorkOrder) error {
			edited, w, err := e.Apply(*wo)
			if err != nil {
				return err
			}
			*wo, out, warnings = edited, edited.Clone(), w
			return nil
		})
	})
	if err != nil {
		return WorkOrder{}, nil, err
	}

	b.log.Info("work order edited", zap.String("id", id))
	b.warn("work order warning", warnings, zap.String("id", id))
	return out, warnings, nil
}

// AddItem appends a line to an existing work order.
func (b *Book) AddItem(ctx context.Context, id string, in ItemInput) (WorkOrder, []Warning, error) {
	var vs violations
	in.validate(&vs, "item")
	if err := vs.err(); err != nil {
		return WorkOrder{}, nil, err
	}

	var out WorkOrder
	err := b.store.WithTx(ctx, func(s Store) error {
		row, err := findWorkOrder(ctx, s, id)
		if err != nil {
			return err
		}
		key := in.item().keyIn(row.Record.WorkOrderKey)
		if err := checkDuplicateItems(ctx, s, []ItemKey{key}); err != nil {
			return err
		}
		return s.WorkOrders().Update(ctx, row.Index, func(wo *WorkOrder) error {
			wo.Items = append(wo.Items, in.item())
			wo.derive()
			out = *wo
			return nil
		})
	})
	if err != nil {
		return WorkOrder{}, nil, err
	}

	warnings := out.Warnings()
	b.log.Info("work order item added", zap.String("id", id), zap.String("item", in.Name))
	b.warn("work order warning", warnings, zap.String("id", id))
	return out.Clone(), warnings, nil
}

// RemoveItem deletes the item with the given serial number. The last item
// cannot be removed.
func (b *Book) RemoveItem(ctx context.Context, id string, serialNo int) (WorkOrder, []Warning, error) {
	var out WorkOrder
	err := b.store.WithTx(ctx, func(s Store) error {
		row, err := findWorkOrder(ctx, s, id)
		if err != nil {
			return err
		}
		return s.WorkOrders().Update(ctx, row.Index, func(wo *WorkOrder) error {
			pos := serialNo - 1
			if pos < 0 || pos >= len(wo.Items) {
				return fmt.Errorf("%w: serial %d on work order %s", ErrItemNotFound, serialNo, id)
			}
			if len(wo.Items) == 1 {
				var vs violations
				vs.add("items", CodeRequired, "a work order needs at least one item")
				return vs.err()
			}
			wo.Items = append(wo.Items[:pos], wo.Items[pos+1:]...)
			wo.derive()
			out = *wo
			return nil
		})
	})
	if err != nil {
		return WorkOrder{}, nil, err
	}

	b.log.Info("work order item removed", zap.String("id", id), zap.Int("serial_no", serialNo))
	return out.Clone(), out.Warnings(), nil
}

// DeleteWorkOrder removes a work order unless an invoice references its key.
func (b *Book) DeleteWorkOrder(ctx context.Context, id string) error {
	err := b.store.WithTx(ctx, func(s Store) error {
		row, err := findWorkOrder(ctx, s, id)
		if err != nil {
			return err
		}
		key := row.Record.WorkOrderKey
		refs, err := s.Invoices().FindAll(ctx, func(inv Invoice) bool { return inv.References(key) })
		if err != nil {
			return err
		}
		if len(refs) > 0 {
			numbers := make([]string, len(refs))
			for i, r := range refs {
				numbers[i] = r.Record.InvoiceNumber
			}
			return &ReferentialIntegrityError{Key: key, InvoiceNumbers: numbers}
		}
		_, err = s.WorkOrders().RemoveAt(ctx, row.Index)
		return err
	})
	if err != nil {
		b.log.Info("work order delete rejected", zap.String("id", id), zap.Error(err))
		return err
	}
	b.log.Info("work order deleted", zap.String("id", id))
	return nil
}

func (b *Book) WorkOrders(ctx context.Context) ([]WorkOrder, error) {
	return b.store.WorkOrders().All(ctx)
}

func (b *Book) GetWorkOrder(ctx context.Context, id string) (WorkOrder, error) {
	row, err := findWorkOrder(ctx, b.store, id)
	if err != nil {
		return WorkOrder{}, err
	}
	return row.Record, nil
}

// ResolveItem finds the item an invoice will be raised against.
func (b *Book) ResolveItem(ctx context.Context, l ItemLookup) (ItemRef, error) {
	rows, err := b.store.WorkOrders().FindAll(ctx, func(wo WorkOrder) bool {
		return wo.WorkOrderKey.Matches(l.WorkOrderKey)
	})
	if err != nil {
		return ItemRef{}, err
	}
	if len(rows) == 0 {
		return ItemRef{}, fmt.Errorf("%w: %s", ErrWorkOrderNotFound, l.WorkOrderKey)
	}
	for _, r := range rows {
		for _, it := range r.Record.Items {
			if l.matches(r.Record, it) {
				return ItemRef{WorkOrder: r.Record, Item: it}, nil
			}
		}
	}
	return ItemRef{}, fmt.Errorf("%w: %q on %s", ErrItemNotFound, l.ItemName, l.WorkOrderKey)
}

func findWorkOrder(ctx context.Context, s Store, id string) (Row[WorkOrder], error) {
	rows, err := s.WorkOrders().FindAll(ctx, func(wo WorkOrder) bool { return wo.ID == id })
	if err != nil {
		return Row[WorkOrder]{}, err
	}
	if len(rows) == 0 {
		return Row[WorkOrder]{}, fmt.Errorf("%w: %s", ErrWorkOrderNotFound, id)
	}
	return rows[0], nil
}

// checkDuplicateItems rejects keys already present on any stored work order.
func checkDuplicateItems(ctx context.Context, s Store, keys []ItemKey) error {
	all, err := s.WorkOrders().All(ctx)
	if err != nil {
		return err
	}
	for _, wo := range all {
		for _, existing := range wo.ItemKeys() {
			for _, k := range keys {
				if existing.Matches(k) {
					return &DuplicateItemError{Key: k, WorkOrderID: wo.ID}
				}
			}
		}
	}
	return nil
}

// =============================================================================
// INVOICES
// =============================================================================

// CreateInvoice finalizes the draft and stores it under a unique number.
func (b *Book) CreateInvoice(ctx context.Context, d *InvoiceDraft) (Invoice, []Warning, error) {
	inv, warnings, err := d.Finalize(b.now())
	if err != nil {
		return Invoice{}, nil, err
	}

	err = b.store.WithTx(ctx, func(s Store) error {
		dup, err := s.Invoices().FindAll(ctx, func(existing Invoice) bool {
			return sameInvoiceNumber(existing.InvoiceNumber, inv.InvoiceNumber)
		})
		if err != nil {
			return err
		}
		if len(dup) > 0 {
			return &DuplicateInvoiceError{InvoiceNumber: inv.InvoiceNumber}
		}
		_, err = s.Invoices().Append(ctx, inv)
		return err
	})
	if err != nil {
		b.log.Info("invoice rejected", zap.String("invoice", inv.InvoiceNumber), zap.Error(err))
		return Invoice{}, nil, err
	}

	b.log.Info("invoice created",
		zap.String("invoice", inv.InvoiceNumber),
		zap.String("work_order", inv.WorkOrderKey.String()),
		zap.String("item", inv.ItemName),
		zap.String("payable", inv.PayableAmount.String()),
		zap.Int("milestones", len(inv.ClaimedMilestones)))
	b.warn("invoice warning", warnings, zap.String("invoice", inv.InvoiceNumber))
	return inv, warnings, nil
}

func (b *Book) EditInvoice(ctx context.Context, number string, e InvoiceEdit) (Invoice, []Warning, error) {
	return b.updateInvoice(ctx, number, "invoice edited", e.Apply)
}

// RecordMilestonePayment updates the progress of one claimed milestone.
func (b *Book) RecordMilestonePayment(ctx context.Context, number string, p MilestonePayment) (Invoice, []Warning, error) {
	return b.updateInvoice(ctx, number, "milestone payment recorded", p.Apply)
}

func (b *Book) updateInvoice(ctx context.Context, number, msg string, apply func(Invoice) (Invoice, []Warning, error)) (Invoice, []Warning, error) {
	var out Invoice
	var warnings []Warning

	err := b.store.WithTx(ctx, func(s Store) error {
		row, err := findInvoice(ctx, s, number)
		if err != nil {
			return err
		}
		return s.Invoices().Update(ctx, row.Index, func(inv *Invoice) error {
			updated, w, err := apply(*inv)
			if err != nil {
				return err
			}
			*inv, out, warnings = updated, updated.Clone(), w
			return nil
		})
	})
	if err != nil {
		return Invoice{}, nil, err
	}

	b.log.Info(msg, zap.String("invoice", number), zap.String("status", string(out.Status())))
	b.warn("invoice warning", warnings, zap.String("invoice", number))
	return out, warnings, nil
}

// DeleteInvoice removes an invoice. Nothing references invoices, so no
// guard applies.
func (b *Book) DeleteInvoice(ctx context.Context, number string) error {
	err := b.store.WithTx(ctx, func(s Store) error {
		row, err := findInvoice(ctx, s, number)
		if err != nil {
			return err
		}
		_, err = s.Invoices().RemoveAt(ctx, row.Index)
		return err
	})
	if err != nil {
		return err
	}
	b.log.Info("invoice deleted", zap.String("invoice", number))
	return nil
}

func (b *Book) Invoices(ctx context.Context) ([]Invoice, error) {
	return b.store.Invoices().All(ctx)
}

func (b *Book) GetInvoice(ctx context.Context, number string) (Invoice, error) {
	row, err := findInvoice(ctx, b.store, number)
	if err != nil {
		return Invoice{}, err
	}
	return row.Record, nil
}

// InvoicesFor lists the invoices raised against a work-order key.
func (b *Book) InvoicesFor(ctx context.Context, key WorkOrderKey) ([]Invoice, error) {
	rows, err := b.store.Invoices().FindAll(ctx, func(inv Invoice) bool { return inv.References(key) })
	if err != nil {
		return nil, err
	}
	out := make([]Invoice, len(rows))
	for i, r := range rows {
		out[i] = r.Record
	}
	return out, nil
}

func findInvoice(ctx context.Context, s Store, number string) (Row[Invoice], error) {
	rows, err := s.Invoices().FindAll(ctx, func(inv Invoice) bool {
		return sameInvoiceNumber(inv.InvoiceNumber, number)
	})
	if err != nil {
		return Row[Invoice]{}, err
	}
	if len(rows) == 0 {
		return Row[Invoice]{}, fmt.Errorf("%w: %s", ErrInvoiceNotFound, number)
	}
	return rows[0], nil
}

func sameInvoiceNumber(a, b string) bool {
	return strings.TrimSpace(a) == strings.TrimSpace(b)
}
