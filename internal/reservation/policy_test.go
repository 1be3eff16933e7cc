package reservation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fitnow/fitnow-api/internal/model"
)

func TestISOWeek(t *testing.T) {
	cases := []struct {
		in       time.Time
		wantFrom time.Time
	}{
		{time.Date(2025, 3, 17, 0, 0, 0, 0, time.UTC), time.Date(2025, 3, 17, 0, 0, 0, 0, time.UTC)},
		{time.Date(2025, 3, 19, 13, 30, 0, 0, time.UTC), time.Date(2025, 3, 17, 0, 0, 0, 0, time.UTC)},
		{time.Date(2025, 3, 23, 23, 59, 59, 0, time.UTC), time.Date(2025, 3, 17, 0, 0, 0, 0, time.UTC)},
		// week spanning a year boundary
		{time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC), time.Date(2024, 12, 30, 0, 0, 0, 0, time.UTC)},
		// non-UTC input is bucketed by its UTC instant
		{time.Date(2025, 3, 24, 1, 0, 0, 0, time.FixedZone("CET", 3600)), time.Date(2025, 3, 24, 0, 0, 0, 0, time.UTC)},
	}
	for _, c := range cases {
		from, to := ISOWeek(c.in)
		assert.Equal(t, c.wantFrom, from, "input %s", c.in)
		assert.Equal(t, c.wantFrom.AddDate(0, 0, 7), to, "input %s", c.in)
		assert.Equal(t, time.Monday, from.Weekday())
	}
}

func TestMembershipWindow(t *testing.T) {
	now := time.Date(2025, 3, 12, 9, 0, 0, 0, time.UTC)

	start, end := MembershipWindow(model.DefaultRules(), now)
	assert.Equal(t, now, start)
	assert.Equal(t, now.AddDate(0, 0, 30), end)

	r := model.Rules{Membership: model.MembershipRules{StartDelayDays: 2, DurationDays: 7}}
	start, end = MembershipWindow(r, now)
	assert.Equal(t, now.AddDate(0, 0, 2), start)
	assert.Equal(t, now.AddDate(0, 0, 9), end)
}

func TestAdmitSession_OrderOfChecks(t *testing.T) {
	st := newMemStore()
	// no membership and already at the weekly limit: membership wins
	st.addActivity(model.Activity{ID: 1, Kind: model.KindGym, Rules: model.Rules{
		Membership: model.MembershipRules{DurationDays: 30},
		Sessions:   model.SessionRules{PerWeekLimit: 1},
	}})
	addSlot(st, 10, 1, fixedNow.Add(time.Hour), 0)

	err := st.InTx(context.Background(), func(_ context.Context, tx Tx) error {
		sess, act, err := tx.LockSession(context.Background(), 10)
		require.NoError(t, err)
		_, err = Policy{}.AdmitSession(context.Background(), tx, 7, sess, act)
		return err
	})
	assert.ErrorIs(t, err, ErrMembershipRequired)
}

func TestAdmitMembership_DuplicateBeforeCapacity(t *testing.T) {
	st := newMemStore()
	st.addActivity(model.Activity{ID: 1, Kind: model.KindClubSport, Capacity: 1, SeatsLeft: 1})
	svc := newTestService(st, nil)
	_, err := svc.ReserveActivity(context.Background(), 7, 1)
	require.NoError(t, err)

	err = st.InTx(context.Background(), func(_ context.Context, tx Tx) error {
		act, err := tx.LockActivity(context.Background(), 1)
		require.NoError(t, err)
		require.Equal(t, 0, act.SeatsLeft)
		_, err = Policy{}.AdmitMembership(context.Background(), tx, 7, act, fixedNow)
		return err
	})
	assert.ErrorIs(t, err, ErrDuplicateReservation)
}

type failingTx struct {
	*memTx
	err error
}

func (f failingTx) TakeSeat(context.Context, ResourceRef) (bool, error)    { return false, f.err }
func (f failingTx) ReleaseSeat(context.Context, ResourceRef) (bool, error) { return false, nil }

func TestLedger(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("boom")
	tx := failingTx{memTx: &memTx{}, err: boom}

	untracked := Resource{Ref: ResourceRef{ID: 1}, Tracked: false}
	assert.NoError(t, Ledger{}.Take(ctx, tx, untracked))
	assert.NoError(t, Ledger{}.Release(ctx, tx, untracked))

	empty := Resource{Ref: ResourceRef{ID: 1}, Tracked: true, Capacity: 1, SeatsLeft: 0}
	assert.ErrorIs(t, Ledger{}.Take(ctx, tx, empty), ErrCapacityExhausted)

	open := Resource{Ref: ResourceRef{ID: 1}, Tracked: true, Capacity: 1, SeatsLeft: 1}
	err := Ledger{}.Take(ctx, tx, open)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, "internal", Outcome(err))

	// a refused release is logged, not returned
	assert.NoError(t, Ledger{}.Release(ctx, tx, open))
}

func TestOutcomeAndConflict(t *testing.T) {
	assert.Equal(t, "ok", Outcome(nil))
	assert.Equal(t, "capacity_exhausted", Outcome(ErrCapacityExhausted))
	assert.True(t, IsConflict(ErrWeeklyLimitReached))
	assert.True(t, IsConflict(ErrDuplicateReservation))
	assert.False(t, IsConflict(ErrResourceNotFound))
	assert.False(t, IsConflict(ErrNotFound))
	assert.False(t, IsConflict(errors.New("db gone")))
}
