package session

import (
	"context"
	"time"
)

// Store is the key-value backend behind the Manager.
//
// Every multi-key mutation must be applied atomically. Index sets are allowed
// to point at records that expired passively; Reconcile removes those ids.
// Implementations wrap backend failures with ErrStoreUnavailable.
type Store interface {
	// Create writes the record, its meta shadow and both index memberships in
	// one transaction. Record and meta live for ttl; index set lifetimes are
	// extended to at least ttl.
	Create(ctx context.Context, s *Session, ttl time.Duration) error

	// Get returns the record or ErrSessionNotFound.
	Get(ctx context.Context, tenantID, sessionID string) (*Session, error)

	// Update rewrites record and meta with ttl only if the record still
	// exists, otherwise it returns ErrSessionNotFound. Index memberships are
	// not changed.
	Update(ctx context.Context, s *Session, ttl time.Duration) error

	// Delete removes the record, its meta and both index memberships.
	// Returns false if the record was already gone.
	Delete(ctx context.Context, tenantID, sessionID string) (bool, error)

	// DeleteByUser removes every session of the user together with the
	// user set and returns the number of records removed.
	DeleteByUser(ctx context.Context, tenantID, userID string) (int, error)

	// ListByUser returns the user's existing records, skipping ids whose
	// record is already gone.
	ListByUser(ctx context.Context, tenantID, userID string) ([]*Session, error)

	// ListByTenant batch-fetches every member of the tenant set.
	ListByTenant(ctx context.Context, tenantID string) ([]Entry, error)

	// Tenants lists tenants that currently own a tenant set.
	Tenants(ctx context.Context) ([]string, error)

	// Reconcile drops index members of the tenant whose record no longer
	// exists and returns how many ids were removed.
	Reconcile(ctx context.Context, tenantID string) (int, error)
}
