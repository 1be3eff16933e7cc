package reservation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/fitnow/fitnow-api/internal/model"
)

// Grant is what an admitted request writes into the reservation.
type Grant struct {
	StartAt   *time.Time
	EndAt     *time.Time
	PricePaid *float64
}

// Policy decides whether a reservation may proceed.  It only reads through
// the transaction; the resource passed in must already be locked.
type Policy struct{}

// AdmitMembership checks a membership request against a locked activity
// and computes its validity window from the activity rules.
func (Policy) AdmitMembership(ctx context.Context, tx Tx, userID uint64, act *model.Activity, now time.Time) (Grant, error) {
	_, err := tx.FindMembership(ctx, userID, act.ID)
	switch {
	case err == nil:
		return Grant{}, ErrDuplicateReservation
	case !errors.Is(err, sql.ErrNoRows):
		return Grant{}, fmt.Errorf("find membership: %w", err)
	}
	if !activityResource(act).HasSeat() {
		return Grant{}, ErrCapacityExhausted
	}

	start, end := MembershipWindow(act.Rules, now)
	return Grant{StartAt: &start, EndAt: &end, PricePaid: act.Price}, nil
}

// AdmitSession checks a slot request against a locked session and its
// parent activity.  Rules run in order and the first failure wins:
// membership, weekly limit, duplicate, capacity.
func (Policy) AdmitSession(ctx context.Context, tx Tx, userID uint64, sess *model.Session, act *model.Activity) (Grant, error) {
	if act.Rules.SessionsNeedMembership() {
		m, err := tx.FindMembership(ctx, userID, act.ID)
		if errors.Is(err, sql.ErrNoRows) {
			return Grant{}, ErrMembershipRequired
		}
		if err != nil {
			return Grant{}, fmt.Errorf("find membership: %w", err)
		}
		if m.StartAt != nil && m.EndAt != nil &&
			(sess.StartAt.Before(*m.StartAt) || sess.StartAt.After(*m.EndAt)) {
			return Grant{}, ErrMembershipExpired
		}
	}

	if limit := act.Rules.Sessions.PerWeekLimit; limit > 0 {
		from, to := ISOWeek(sess.StartAt)
		n, err := tx.CountSlotsBetween(ctx, userID, act.ID, from, to)
		if err != nil {
			return Grant{}, fmt.Errorf("count weekly sessions: %w", err)
		}
		if n >= limit {
			return Grant{}, ErrWeeklyLimitReached
		}
	}

	dup, err := tx.HasSlot(ctx, userID, sess.ID)
	if err != nil {
		return Grant{}, fmt.Errorf("check slot: %w", err)
	}
	if dup {
		return Grant{}, ErrDuplicateReservation
	}
	if !sessionResource(sess).HasSeat() {
		return Grant{}, ErrCapacityExhausted
	}

	start, end := sess.StartAt, sess.EndAt
	return Grant{StartAt: &start, EndAt: &end, PricePaid: sess.Price}, nil
}

// MembershipWindow returns [now+delay, now+delay+duration] in UTC.
func MembershipWindow(r model.Rules, now time.Time) (time.Time, time.Time) {
	start := now.UTC().AddDate(0, 0, r.Membership.StartDelayDays)
	return start, start.AddDate(0, 0, r.Membership.DurationDays)
}

// ISOWeek returns the UTC bounds [Monday 00:00, next Monday 00:00) of the
// ISO week containing t.
func ISOWeek(t time.Time) (time.Time, time.Time) {
	t = t.UTC()
	offset := (int(t.Weekday()) + 6) % 7 // Monday = 0
	from := time.Date(t.Year(), t.Month(), t.Day()-offset, 0, 0, 0, 0, time.UTC)
	return from, from.AddDate(0, 0, 7)
}
