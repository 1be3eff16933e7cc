package reservation

import (
	"context"
	"time"

	"github.com/fitnow/fitnow-api/internal/model"
)

// ResourceType distinguishes the two bookable tables.
type ResourceType int

const (
	ResourceActivity ResourceType = iota
	ResourceSession
)

func (t ResourceType) String() string {
	if t == ResourceSession {
		return "session"
	}
	return "activity"
}

// ResourceRef identifies a row whose seats_left the ledger may adjust.
type ResourceRef struct {
	Type ResourceType
	ID   uint64
}

// Store opens transactions and serves the committed-state listing.
type Store interface {
	// InTx runs fn inside one transaction.  fn receives the transaction's
	// context and must use it for every statement.  A non-nil error from fn
	// rolls the transaction back and is returned unchanged.
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	ListByUser(ctx context.Context, userID uint64, w model.Window, now time.Time) ([]model.ReservationItem, error)
}

// Tx is the set of reads and writes the coordinator performs while it holds
// a resource lock.  Lookups of absent rows return sql.ErrNoRows.
type Tx interface {
	// LockActivity reads the activity row with an exclusive lock.
	LockActivity(ctx context.Context, activityID uint64) (*model.Activity, error)
	// LockSession locks the session row and its parent activity row.
	LockSession(ctx context.Context, sessionID uint64) (*model.Session, *model.Activity, error)

	FindMembership(ctx context.Context, userID, activityID uint64) (*model.Reservation, error)
	HasSlot(ctx context.Context, userID, sessionID uint64) (bool, error)
	// CountSlotsBetween counts the user's session reservations for the
	// activity whose session starts in [from, to).
	CountSlotsBetween(ctx context.Context, userID, activityID uint64, from, to time.Time) (int, error)

	// Insert stores r and sets r.ID.  A uniqueness violation is reported
	// as ErrDuplicateReservation.
	Insert(ctx context.Context, r *model.Reservation) error
	// FindReservation and FindSlotReservation are plain reads used to find
	// the resource to lock before the reservation row itself is locked.
	FindReservation(ctx context.Context, reservationID, userID uint64) (*model.Reservation, error)
	FindSlotReservation(ctx context.Context, userID, sessionID uint64) (*model.Reservation, error)
	LockReservation(ctx context.Context, reservationID, userID uint64) (*model.Reservation, error)
	// Delete removes the reservation owned by userID or returns ErrNotFound.
	Delete(ctx context.Context, reservationID, userID uint64) error

	// TakeSeat decrements seats_left when it is positive; false means the
	// row had no seat left.
	TakeSeat(ctx context.Context, ref ResourceRef) (bool, error)
	// ReleaseSeat increments seats_left when it is below capacity; false
	// means the row was already full.
	ReleaseSeat(ctx context.Context, ref ResourceRef) (bool, error)
}
