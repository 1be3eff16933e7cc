package reservation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/fitnow/fitnow-api/internal/logging"
	"github.com/fitnow/fitnow-api/internal/metrics"
	"github.com/fitnow/fitnow-api/internal/model"
	"github.com/fitnow/fitnow-api/internal/queue"
)

// Publisher receives events after a transaction has committed.
type Publisher interface {
	Publish(ctx context.Context, ev queue.ReservationEvent) error
}

// Service runs the create and cancel protocols.  It holds no state shared
// between requests besides its collaborators.
type Service struct {
	store     Store
	events    Publisher // may be nil
	policy    Policy
	ledger    Ledger
	txTimeout time.Duration
	now       func() time.Time
}

// NewService wires a Service.  txTimeout bounds each transaction, lock wait
// included; zero means no extra bound beyond the caller's context.
func NewService(store Store, events Publisher, txTimeout time.Duration) *Service {
	if store == nil {
		panic("nil store passed to reservation.NewService")
	}
	return &Service{store: store, events: events, txTimeout: txTimeout, now: time.Now}
}

// ReserveActivity creates a membership reservation on an activity.  Seats
// are consumed only for kinds that track capacity.
func (s *Service) ReserveActivity(ctx context.Context, userID, activityID uint64) (*model.Reservation, error) {
	started := time.Now()
	var out *model.Reservation
	err := s.inTx(ctx, func(ctx context.Context, tx Tx) error {
		act, err := tx.LockActivity(ctx, activityID)
		if err != nil {
			return missing(err, ErrResourceNotFound, "lock activity")
		}
		grant, err := s.policy.AdmitMembership(ctx, tx, userID, act, s.now())
		if err != nil {
			return err
		}
		r := newReservation(userID, act.ID, nil, grant)
		if err := tx.Insert(ctx, r); err != nil {
			return err
		}
		if err := s.ledger.Take(ctx, tx, activityResource(act)); err != nil {
			return err
		}
		out = r
		return nil
	})
	s.finish("reserve_activity", started, err, userID, activityID)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, queue.RoutingCreated, out)
	return out, nil
}

// ReserveSession books one seat of a session.
func (s *Service) ReserveSession(ctx context.Context, userID, sessionID uint64) (*model.Reservation, error) {
	started := time.Now()
	var out *model.Reservation
	err := s.inTx(ctx, func(ctx context.Context, tx Tx) error {
		sess, act, err := tx.LockSession(ctx, sessionID)
		if err != nil {
			return missing(err, ErrResourceNotFound, "lock session")
		}
		grant, err := s.policy.AdmitSession(ctx, tx, userID, sess, act)
		if err != nil {
			return err
		}
		sid := sess.ID
		r := newReservation(userID, sess.ActivityID, &sid, grant)
		if err := tx.Insert(ctx, r); err != nil {
			return err
		}
		if err := s.ledger.Take(ctx, tx, sessionResource(sess)); err != nil {
			return err
		}
		out = r
		return nil
	})
	s.finish("reserve_session", started, err, userID, sessionID)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, queue.RoutingCreated, out)
	return out, nil
}

// CancelReservation deletes a reservation by id.  A seat is returned only
// when the owning resource tracks capacity.
func (s *Service) CancelReservation(ctx context.Context, userID, reservationID uint64) error {
	started := time.Now()
	var gone *model.Reservation
	err := s.inTx(ctx, func(ctx context.Context, tx Tx) error {
		r, err := tx.FindReservation(ctx, reservationID, userID)
		if err != nil {
			return missing(err, ErrNotFound, "find reservation")
		}
		gone, err = s.cancel(ctx, tx, r)
		return err
	})
	s.finish("cancel_reservation", started, err, userID, reservationID)
	if err != nil {
		return err
	}
	s.publish(ctx, queue.RoutingCancelled, gone)
	return nil
}

// CancelSession deletes the user's reservation of a session.
func (s *Service) CancelSession(ctx context.Context, userID, sessionID uint64) error {
	started := time.Now()
	var gone *model.Reservation
	err := s.inTx(ctx, func(ctx context.Context, tx Tx) error {
		r, err := tx.FindSlotReservation(ctx, userID, sessionID)
		if err != nil {
			return missing(err, ErrNotFound, "find session reservation")
		}
		gone, err = s.cancel(ctx, tx, r)
		return err
	})
	s.finish("cancel_session", started, err, userID, sessionID)
	if err != nil {
		return err
	}
	s.publish(ctx, queue.RoutingCancelled, gone)
	return nil
}

// cancel locks the owning resource before the reservation row, the same
// order create uses, then deletes and refunds.
func (s *Service) cancel(ctx context.Context, tx Tx, r *model.Reservation) (*model.Reservation, error) {
	var res Resource
	if r.SessionID != nil {
		sess, _, err := tx.LockSession(ctx, *r.SessionID)
		if err != nil {
			return nil, fmt.Errorf("lock session %d: %w", *r.SessionID, err)
		}
		res = sessionResource(sess)
	} else {
		act, err := tx.LockActivity(ctx, r.ActivityID)
		if err != nil {
			return nil, fmt.Errorf("lock activity %d: %w", r.ActivityID, err)
		}
		res = activityResource(act)
	}

	locked, err := tx.LockReservation(ctx, r.ID, r.UserID)
	if err != nil {
		// a concurrent cancel won the race
		return nil, missing(err, ErrNotFound, "lock reservation")
	}
	if err := tx.Delete(ctx, locked.ID, locked.UserID); err != nil {
		return nil, err
	}
	if err := s.ledger.Release(ctx, tx, res); err != nil {
		return nil, err
	}
	return locked, nil
}

// ListForUser returns the user's committed reservations for the window.
func (s *Service) ListForUser(ctx context.Context, userID uint64, w model.Window) ([]model.ReservationItem, error) {
	items, err := s.store.ListByUser(ctx, userID, w, s.now().UTC())
	if err != nil {
		logging.Error().Err(err).Uint64("user_id", userID).Str("when", string(w)).Msg("list reservations failed")
		return nil, fmt.Errorf("list reservations: %w", err)
	}
	return items, nil
}

// inTx bounds the whole transaction, lock waits included, by txTimeout.
// fn must issue every statement with the ctx it is handed.
func (s *Service) inTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	if s.txTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.txTimeout)
		defer cancel()
	}
	return s.store.InTx(ctx, fn)
}

func (s *Service) finish(op string, started time.Time, err error, userID, targetID uint64) {
	outcome := Outcome(err)
	metrics.ObserveReservation(op, outcome, started)
	if outcome == "internal" {
		logging.Error().Err(err).Str("op", op).Uint64("user_id", userID).Uint64("target_id", targetID).Msg("reservation transaction failed")
		return
	}
	logging.Debug().Str("op", op).Str("outcome", outcome).Uint64("user_id", userID).Uint64("target_id", targetID).Msg("reservation transaction")
}

func (s *Service) publish(ctx context.Context, key string, r *model.Reservation) {
	if s.events == nil || r == nil {
		return
	}
	ev := queue.ReservationEvent{
		EventID:       uuid.NewString(),
		Type:          key,
		ReservationID: r.ID,
		UserID:        r.UserID,
		ActivityID:    r.ActivityID,
		SessionID:     r.SessionID,
		PricePaid:     r.PricePaid,
		OccurredAt:    s.now().UTC().Format(time.RFC3339),
	}
	if r.StartAt != nil {
		ev.StartAt = r.StartAt.UTC().Format(time.RFC3339)
	}
	if r.EndAt != nil {
		ev.EndAt = r.EndAt.UTC().Format(time.RFC3339)
	}
	if err := s.events.Publish(ctx, ev); err != nil {
		logging.Warn().Err(err).Str("routing_key", key).Uint64("reservation_id", r.ID).Msg("publish reservation event failed")
	}
}

func newReservation(userID, activityID uint64, sessionID *uint64, g Grant) *model.Reservation {
	return &model.Reservation{
		UserID:     userID,
		ActivityID: activityID,
		SessionID:  sessionID,
		StartAt:    g.StartAt,
		EndAt:      g.EndAt,
		PricePaid:  g.PricePaid,
	}
}

// missing maps sql.ErrNoRows to the given sentinel and wraps anything else.
func missing(err, sentinel error, what string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return sentinel
	}
	return fmt.Errorf("%s: %w", what, err)
}
