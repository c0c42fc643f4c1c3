package repository

import "context"

// StateStore is the generic string-keyed JSON-value store the adapter
// persists into. Addresses are hierarchical identifiers like
// "med-plan.0.patient-MaxMueller"; values are JSON strings.
type StateStore interface {
	// Get reads the value at address. ok is false when the address has
	// never been written.
	Get(ctx context.Context, address string) (value string, ok bool, err error)

	// Set writes the value at address, overwriting any previous value.
	Set(ctx context.Context, address, value string) error

	// EnsureExists provisions address before first write. Idempotent; an
	// existing value is never touched.
	EnsureExists(ctx context.Context, address, displayName string) error

	// Delete removes the address and its stored value.
	Delete(ctx context.Context, address string) error
}
