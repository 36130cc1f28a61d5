package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/Moyowalker/foursquare-ajebo-website-V2-sub001/internal/domain"
)

const (
	eventKeyPrefix    = "event/"
	donationKeyPrefix = "donation/"
)

// KVRepository implements EventRepository and DonationRepository on top of any
// KeyValueStore. Values are JSON documents, one per key.
type KVRepository struct {
	kv KeyValueStore
}

func NewKVRepository(kv KeyValueStore) *KVRepository {
	return &KVRepository{kv: kv}
}

func (r *KVRepository) CreateEvent(ctx context.Context, event domain.Event) error {
	return r.kv.Update(ctx, eventKeyPrefix+event.ID, func(current []byte) ([]byte, error) {
		if current != nil {
			return nil, fmt.Errorf("event %s: %w", event.ID, ErrConflict)
		}
		return json.Marshal(event)
	})
}

func (r *KVRepository) GetEvent(ctx context.Context, id string) (*domain.Event, error) {
	raw, err := r.kv.Get(ctx, eventKeyPrefix+id)
	if errors.Is(err, ErrNotFound) {
		return nil, domain.ErrEventNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load event: %w", err)
	}
	var event domain.Event
	if err := json.Unmarshal(raw, &event); err != nil {
		return nil, fmt.Errorf("failed to decode event %s: %w", id, err)
	}
	return &event, nil
}

// ListEvents returns events ordered by start time.
func (r *KVRepository) ListEvents(ctx context.Context) ([]domain.Event, error) {
	values, err := r.kv.List(ctx, eventKeyPrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	events := make([]domain.Event, 0, len(values))
	for _, raw := range values {
		var event domain.Event
		if err := json.Unmarshal(raw, &event); err != nil {
			return nil, fmt.Errorf("failed to decode event: %w", err)
		}
		events = append(events, event)
	}
	sort.SliceStable(events, func(i, j int) bool { return events[i].StartsAt.Before(events[j].StartsAt) })
	return events, nil
}

func (r *KVRepository) UpdateEvent(ctx context.Context, id string, fn func(domain.Event) (domain.Event, error)) (*domain.Event, error) {
	var updated domain.Event
	err := r.kv.Update(ctx, eventKeyPrefix+id, func(current []byte) ([]byte, error) {
		if current == nil {
			return nil, domain.ErrEventNotFound
		}
		var event domain.Event
		if err := json.Unmarshal(current, &event); err != nil {
			return nil, fmt.Errorf("failed to decode event %s: %w", id, err)
		}
		next, err := fn(event)
		if err != nil {
			return nil, err
		}
		updated = next
		return json.Marshal(next)
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

func (r *KVRepository) GetDonation(ctx context.Context, reference string) (*domain.DonationRecord, error) {
	raw, err := r.kv.Get(ctx, donationKeyPrefix+reference)
	if errors.Is(err, ErrNotFound) {
		return nil, domain.ErrDonationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load donation: %w", err)
	}
	var rec domain.DonationRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode donation %s: %w", reference, err)
	}
	return &rec, nil
}

func (r *KVRepository) MutateDonation(ctx context.Context, reference string, fn func(current *domain.DonationRecord) (domain.DonationRecord, error)) (*domain.DonationRecord, error) {
	var updated domain.DonationRecord
	err := r.kv.Update(ctx, donationKeyPrefix+reference, func(current []byte) ([]byte, error) {
		var existing *domain.DonationRecord
		if current != nil {
			existing = &domain.DonationRecord{}
			if err := json.Unmarshal(current, existing); err != nil {
				return nil, fmt.Errorf("failed to decode donation %s: %w", reference, err)
			}
		}
		next, err := fn(existing)
		if err != nil {
			return nil, err
		}
		next.Reference = reference
		updated = next
		return json.Marshal(next)
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

func (r *KVRepository) ListDonationsByStatus(ctx context.Context, status domain.DonationStatus, updatedBefore time.Time) ([]domain.DonationRecord, error) {
	values, err := r.kv.List(ctx, donationKeyPrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list donations: %w", err)
	}
	var out []domain.DonationRecord
	for _, raw := range values {
		var rec domain.DonationRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, fmt.Errorf("failed to decode donation: %w", err)
		}
		if rec.Status == status && rec.UpdatedAt.Before(updatedBefore) {
			out = append(out, rec)
		}
	}
	return out, nil
}
