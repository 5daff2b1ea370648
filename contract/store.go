/*
store.go - Persistence interface for work orders and invoices

PURPOSE:
  Defines the interface between the Book and whatever holds the records.
  Records are addressed by their position in an ordered collection, the
  way a spreadsheet addresses rows.

KEY INTERFACES:
  Collection[T]: Ordered records with positional access
  Store:         The two collections plus atomic multi-write

COPY CONTRACT:
  Implementations hand out copies. Mutating a returned record never
  changes the stored one; use Update to write back.

ATOMICITY:
  WithTx runs fn against a transactional view. If fn returns an error
  every write made through the view is rolled back. The Book uses it
  for check-then-write operations (duplicate detection, delete guards).

IMPLEMENTATIONS:
  - contract/store/memory.go: Session-scoped in-memory store

SEE ALSO:
  - book.go: The only writer
*/
package contract

import "context"

// Row pairs a record with its position.
type Row[T any] struct {
	Index  int
	Record T
}

// Collection is an ordered list of records.
type Collection[T any] interface {
	// Append adds rec at the end and returns its index.
	Append(ctx context.Context, rec T) (int, error)

	// Get returns the record at index.
	Get(ctx context.Context, index int) (T, error)

	// Update applies patch to a copy of the record at index and stores it
	// if patch succeeds.
	Update(ctx context.Context, index int, patch func(*T) error) error

	// RemoveAt deletes the record at index; later records shift down.
	RemoveAt(ctx context.Context, index int) (T, error)

	// FindAll returns matching records in order.
	FindAll(ctx context.Context, match func(T) bool) ([]Row[T], error)

	// All returns every record in order.
	All(ctx context.Context) ([]T, error)

	Len(ctx context.Context) (int, error)
}

// Store holds one session's work orders and invoices.
type Store interface {
	WorkOrders() Collection[WorkOrder]
	Invoices() Collection[Invoice]

	// WithTx executes fn within a transaction.
	// If fn returns error, every write is rolled back.
	WithTx(ctx context.Context, fn func(Store) error) error
}
