package reservation

import (
	"context"
	"fmt"

	"github.com/fitnow/fitnow-api/internal/logging"
	"github.com/fitnow/fitnow-api/internal/model"
)

// Resource is the locked view of a bookable row as the ledger sees it.
type Resource struct {
	Ref       ResourceRef
	Capacity  int
	SeatsLeft int
	Tracked   bool
}

func activityResource(a *model.Activity) Resource {
	return Resource{
		Ref:       ResourceRef{Type: ResourceActivity, ID: a.ID},
		Capacity:  a.Capacity,
		SeatsLeft: a.SeatsLeft,
		Tracked:   !a.Kind.Unlimited(),
	}
}

func sessionResource(s *model.Session) Resource {
	return Resource{
		Ref:       ResourceRef{Type: ResourceSession, ID: s.ID},
		Capacity:  s.Capacity,
		SeatsLeft: s.SeatsLeft,
		Tracked:   true,
	}
}

// HasSeat reports whether a reservation against r may be admitted.
func (r Resource) HasSeat() bool {
	return !r.Tracked || r.SeatsLeft > 0
}

// Ledger adjusts seats_left.  Take and Release are only ever called inside
// the transaction that writes or deletes the matching reservation, and both
// use Resource.Tracked, so every Release pairs with an earlier Take.
type Ledger struct{}

// Take consumes one seat of a tracked resource.
func (Ledger) Take(ctx context.Context, tx Tx, r Resource) error {
	if !r.Tracked {
		return nil
	}
	if r.SeatsLeft <= 0 {
		return ErrCapacityExhausted
	}
	ok, err := tx.TakeSeat(ctx, r.Ref)
	if err != nil {
		return fmt.Errorf("take seat on %s %d: %w", r.Ref.Type, r.Ref.ID, err)
	}
	if !ok {
		return ErrCapacityExhausted
	}
	return nil
}

// Release returns one seat to a tracked resource.  seats_left never grows
// past capacity; a refused release means the pairing was broken elsewhere
// and is logged rather than failing the cancellation.
func (Ledger) Release(ctx context.Context, tx Tx, r Resource) error {
	if !r.Tracked {
		return nil
	}
	ok, err := tx.ReleaseSeat(ctx, r.Ref)
	if err != nil {
		return fmt.Errorf("release seat on %s %d: %w", r.Ref.Type, r.Ref.ID, err)
	}
	if !ok {
		logging.Warn().
			Str("resource", r.Ref.Type.String()).
			Uint64("resource_id", r.Ref.ID).
			Int("capacity", r.Capacity).
			Msg("seat release refused: seats_left already at capacity")
	}
	return nil
}
