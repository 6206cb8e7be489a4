package core

import "context"

// Store is the persistence contract the ledgers run against. One record
// per item, embedding its full bid/ticket sequence; the implementation
// must make CompareAndSwap on a given id linearizable so that at most one
// writer succeeds per version.
type Store[T Record] interface {
	// Create persists a new record. It fails with CodeInvalidSpec when
	// another open (pending or active) record of the same kind already
	// claims the asset, or when the id is taken.
	Create(ctx context.Context, rec T) error

	// Read returns the current record, carrying its stored version.
	// Fails with CodeNotFound when absent.
	Read(ctx context.Context, id string) (T, error)

	// CompareAndSwap writes rec if and only if the stored version equals
	// rec's version. On success the stored and in-memory versions are
	// bumped by one; on mismatch it fails with CodeConflict and leaves
	// rec untouched.
	CompareAndSwap(ctx context.Context, rec T) error

	// ListByStatus returns all records currently in the given status.
	ListByStatus(ctx context.Context, status Status) ([]T, error)
}

// casAttempts bounds the retry loop on version conflicts. Conflicts are
// the only retried failure; business precondition failures surface
// immediately.
const casAttempts = 3

// applyCAS runs one read-validate-write cycle, retrying on version
// conflict. apply sees a freshly read record on every attempt, so every
// business precondition is re-checked against the state that actually
// wins the race. No in-process lock is held across the store round trip.
func applyCAS[T Record](ctx context.Context, store Store[T], id string, apply func(T) error) (T, error) {
	var zero T
	for attempt := 0; attempt < casAttempts; attempt++ {
		rec, err := store.Read(ctx, id)
		if err != nil {
			return zero, err
		}
		if err := apply(rec); err != nil {
			return zero, err
		}
		err = store.CompareAndSwap(ctx, rec)
		if err == nil {
			return rec, nil
		}
		if !IsCode(err, CodeConflict) {
			return zero, err
		}
	}
	return zero, Errf(CodeConflict, "lost the write race %d times on %s", casAttempts, id)
}
