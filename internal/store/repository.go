/**
 * @description
 * Repository contracts for the giving-service. Business logic in internal/app
 * only depends on these interfaces; the concrete backing store (BoltDB, an
 * in-memory map or PostgreSQL) is chosen in cmd/giving-service.
 *
 * @notes
 * - Every Mutate/Update method runs its callback and the write as one atomic
 *   unit. Returning an error from the callback aborts without writing and the
 *   error is passed back unchanged.
 */
package store

import (
	"context"
	"errors"
	"time"

	"github.com/Moyowalker/foursquare-ajebo-website-V2-sub001/internal/domain"
)

var (
	ErrNotFound = errors.New("key not found")
	ErrConflict = errors.New("record already exists")
)

// KeyValueStore is the minimal storage the core needs: read, write and an
// atomic read-modify-write per key.
type KeyValueStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	// Update passes the current value (nil when absent) to fn and stores what
	// it returns.
	Update(ctx context.Context, key string, fn func(current []byte) ([]byte, error)) error
	// List returns values whose key starts with prefix, in key order.
	List(ctx context.Context, prefix string) ([][]byte, error)
}

type EventRepository interface {
	CreateEvent(ctx context.Context, event domain.Event) error
	GetEvent(ctx context.Context, id string) (*domain.Event, error)
	ListEvents(ctx context.Context) ([]domain.Event, error)
	UpdateEvent(ctx context.Context, id string, fn func(domain.Event) (domain.Event, error)) (*domain.Event, error)
}

type DonationRepository interface {
	GetDonation(ctx context.Context, reference string) (*domain.DonationRecord, error)
	// MutateDonation creates the record when current is nil.
	MutateDonation(ctx context.Context, reference string, fn func(current *domain.DonationRecord) (domain.DonationRecord, error)) (*domain.DonationRecord, error)
	ListDonationsByStatus(ctx context.Context, status domain.DonationStatus, updatedBefore time.Time) ([]domain.DonationRecord, error)
}

// Repository is the full storage surface the giving-service is wired with.
type Repository interface {
	EventRepository
	DonationRepository
}
